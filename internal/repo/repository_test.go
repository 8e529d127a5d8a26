package repo_test

import (
	"testing"

	"github.com/hamed0406/keepalive/internal/repo"
	"github.com/hamed0406/keepalive/internal/repo/memory"
)

// Compile-time interface satisfaction checks.
// Using external test package avoids import cycle.
func TestInterfaceSatisfaction(t *testing.T) {
	var _ repo.OutcomeStore = memory.New()
}
