package memory

import (
	"context"
	"testing"
	"time"

	"github.com/hamed0406/keepalive/internal/domain"
)

func TestMemoryStore_RecordReplacesPerTarget(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Now()

	records := []domain.Outcome{
		{TargetID: "org/b", Kind: domain.Success, Stage: "RUNNING", CheckedAt: now},
		{TargetID: "org/a", Kind: domain.HTTPFailure, StatusCode: 503, CheckedAt: now},
		{TargetID: "org/a", Kind: domain.Success, Stage: "SLEEPING", CheckedAt: now.Add(time.Minute)},
		// older result arriving late must not win
		{TargetID: "org/b", Kind: domain.TransportError, Err: "late", CheckedAt: now.Add(-time.Minute)},
	}
	for _, r := range records {
		if err := s.Record(ctx, r); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	all, err := s.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 targets, got %d", len(all))
	}
	if all[0].TargetID != "org/a" || all[0].Stage != "SLEEPING" {
		t.Fatalf("unexpected org/a: %+v", all[0])
	}
	if all[1].TargetID != "org/b" || all[1].Kind != domain.Success {
		t.Fatalf("unexpected org/b: %+v", all[1])
	}
}
