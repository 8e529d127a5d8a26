package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

var specParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseSchedule accepts a Go duration ("30m"), a five-field cron spec
// ("*/30 * * * *") or a descriptor ("@hourly").
func ParseSchedule(spec string) (cron.Schedule, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, fmt.Errorf("empty schedule")
	}
	if d, err := time.ParseDuration(spec); err == nil {
		if d < time.Minute {
			return nil, fmt.Errorf("schedule interval %s is shorter than a minute", d)
		}
		return cron.Every(d), nil
	}
	s, err := specParser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	return s, nil
}

type cronLogger struct {
	l *zap.SugaredLogger
}

func (c cronLogger) Info(msg string, kv ...interface{}) {
	c.l.Debugw("cron_"+msg, kv...)
}

func (c cronLogger) Error(err error, msg string, kv ...interface{}) {
	c.l.Errorw("cron_"+msg, append(kv, "error", err)...)
}

// RunScheduled calls job on every activation of s until ctx is done.
// Activations that fire while the previous job is still running are skipped.
func RunScheduled(ctx context.Context, s cron.Schedule, logger *zap.Logger, job func(context.Context)) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	cl := cronLogger{logger.Sugar()}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	c.Schedule(s, cron.FuncJob(func() { job(ctx) }))

	logger.Info("schedule_started", zap.Time("next", s.Next(time.Now())))
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	logger.Info("schedule_stopped")
	return nil
}
