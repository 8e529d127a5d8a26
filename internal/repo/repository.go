package repo

import (
	"context"

	"github.com/hamed0406/keepalive/internal/domain"
)

// OutcomeStore keeps the most recent outcome per target for the status API.
// It is not a history: recording a target replaces its previous outcome.
type OutcomeStore interface {
	Record(ctx context.Context, o domain.Outcome) error
	Latest(ctx context.Context) ([]domain.Outcome, error)
}
