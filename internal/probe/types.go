package probe

import (
	"context"

	"github.com/hamed0406/keepalive/internal/domain"
)

// Checker performs a single probe against a target. Implementations never
// return errors; every failure is folded into the Outcome.
type Checker interface {
	Check(ctx context.Context, target domain.Target) domain.Outcome
}
