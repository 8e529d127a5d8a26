package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/keepalive/internal/domain"
	"github.com/hamed0406/keepalive/internal/metrics"
	"github.com/hamed0406/keepalive/internal/notify"
)

// Alerter turns a failed outcome into one notification fan-out. Delivery
// errors are logged and dropped.
type Alerter struct {
	notifier notify.Notifier
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

func NewAlerter(n notify.Notifier, logger *zap.Logger, m *metrics.Metrics) *Alerter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Alerter{notifier: n, logger: logger, metrics: m}
}

func Subject(o domain.Outcome) string {
	return "keep-alive failed: " + o.TargetID
}

func Body(o domain.Outcome) string {
	return fmt.Sprintf("%s\nTarget: %s\nChecked: %s",
		o.Summary(), o.TargetID, o.CheckedAt.Format(time.RFC3339))
}

func (a *Alerter) Notify(ctx context.Context, o domain.Outcome) {
	if a == nil || a.notifier == nil {
		return
	}
	err := a.notifier.Send(ctx, Subject(o), Body(o))
	a.metrics.ObserveNotify(err)
	if err != nil {
		a.logger.Warn("notify_failed",
			zap.String("target", o.TargetID),
			zap.Errors("errors", multierr.Errors(err)),
		)
	}
}
