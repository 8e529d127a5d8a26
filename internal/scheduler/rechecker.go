package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hamed0406/keepalive/internal/clock"
	"github.com/hamed0406/keepalive/internal/domain"
	"github.com/hamed0406/keepalive/internal/metrics"
	"github.com/hamed0406/keepalive/internal/probe"
	"github.com/hamed0406/keepalive/internal/repo"
	"github.com/hamed0406/keepalive/internal/runlog"
)

// Rand is the subset of *math/rand.Rand used to draw delays.
type Rand interface {
	Intn(n int) int
}

type Options struct {
	Checker probe.Checker
	Log     *runlog.Log
	Alerter *Alerter

	// Optional collaborators.
	Store   repo.OutcomeStore
	Metrics *metrics.Metrics
	Logger  *zap.Logger
	Clock   clock.Interface
	Rand    Rand

	// Inclusive delay range in minutes.
	DelayMin int
	DelayMax int
}

type RunReport struct {
	ID         string            `json:"id"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Outcomes   []domain.Outcome  `json:"outcomes"`
	Prune      runlog.PruneStats `json:"prune"`
	PruneError string            `json:"prune_error,omitempty"`
}

func (r RunReport) Failures() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Failed() {
			n++
		}
	}
	return n
}

// Runner checks targets one at a time and compacts the run log afterwards.
// At most one run is in progress per Runner.
type Runner struct {
	opts Options

	run sync.Mutex
	bg  sync.WaitGroup

	randMu sync.Mutex

	lastMu sync.RWMutex
	last   *RunReport
}

func New(o Options) *Runner {
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Clock == nil {
		o.Clock = clock.System()
	}
	if o.Rand == nil {
		o.Rand = newRand()
	}
	if o.Alerter == nil {
		o.Alerter = NewAlerter(nil, o.Logger, o.Metrics)
	}
	if o.DelayMin < 0 {
		o.DelayMin = 0
	}
	if o.DelayMax < o.DelayMin {
		o.DelayMax = o.DelayMin
	}
	return &Runner{opts: o}
}

// Delay draws the pre-probe wait uniformly from [DelayMin, DelayMax] minutes.
func (r *Runner) Delay() time.Duration {
	r.randMu.Lock()
	n := r.opts.DelayMin + r.opts.Rand.Intn(r.opts.DelayMax-r.opts.DelayMin+1)
	r.randMu.Unlock()
	return time.Duration(n) * time.Minute
}

// CheckTarget waits a random delay, probes the target once, writes the
// outcome to the run log and notifies on failure. It never fails; every
// problem ends up in the returned Outcome.
//
// Each check writes two run log lines: the delay announcement, then the
// outcome. If ctx is cancelled during the delay or the request, the outcome
// line is replaced by a "keep-alive skipped" line and nothing is notified,
// recorded or counted.
func (r *Runner) CheckTarget(ctx context.Context, t domain.Target) domain.Outcome {
	d := r.Delay()
	r.opts.Log.Printf("[%s] waiting %d minutes before probing", t.ID, int(d/time.Minute))
	if err := r.opts.Clock.Sleep(ctx, d); err != nil {
		out := domain.Outcome{TargetID: t.ID, Kind: domain.TransportError, Err: err.Error(), CheckedAt: r.opts.Clock.Now()}
		return r.skipped(out, err)
	}

	out := r.opts.Checker.Check(ctx, t)
	if err := ctx.Err(); err != nil {
		return r.skipped(out, err)
	}
	r.opts.Log.Write(out.Summary())
	r.opts.Metrics.ObserveProbe(out)
	if r.opts.Store != nil {
		if err := r.opts.Store.Record(ctx, out); err != nil {
			r.opts.Logger.Warn("outcome_record_failed", zap.String("target", t.ID), zap.Error(err))
		}
	}
	r.opts.Logger.Debug("target_checked",
		zap.String("target", t.ID),
		zap.Stringer("kind", out.Kind),
		zap.Int("status", out.StatusCode),
		zap.Duration("latency", out.Latency),
	)

	if out.Failed() {
		r.opts.Alerter.Notify(ctx, out)
	}
	return out
}

// skipped logs a check abandoned on shutdown. It is not an endpoint failure.
func (r *Runner) skipped(out domain.Outcome, err error) domain.Outcome {
	r.opts.Log.Printf("[%s] keep-alive skipped: %v", out.TargetID, err)
	r.opts.Logger.Info("target_skipped", zap.String("target", out.TargetID), zap.Error(err))
	return out
}

// Run checks every target in order, then prunes the run log once.
// It waits for any run already in progress.
func (r *Runner) Run(ctx context.Context, targets []domain.Target, retention time.Duration) RunReport {
	r.run.Lock()
	defer r.run.Unlock()
	return r.runOnce(ctx, targets, retention)
}

// RunIfIdle is Run, except it returns false instead of waiting when a run is
// already in progress.
func (r *Runner) RunIfIdle(ctx context.Context, targets []domain.Target, retention time.Duration) (RunReport, bool) {
	if !r.run.TryLock() {
		return RunReport{}, false
	}
	defer r.run.Unlock()
	return r.runOnce(ctx, targets, retention), true
}

// Start launches a run in the background. It returns false if one is
// already in progress.
func (r *Runner) Start(ctx context.Context, targets []domain.Target, retention time.Duration) bool {
	if !r.run.TryLock() {
		return false
	}
	r.bg.Add(1)
	go func() {
		defer r.bg.Done()
		defer r.run.Unlock()
		r.runOnce(ctx, targets, retention)
	}()
	return true
}

// Wait blocks until runs launched by Start have finished.
func (r *Runner) Wait() {
	r.bg.Wait()
}

func (r *Runner) Last() (RunReport, bool) {
	r.lastMu.RLock()
	defer r.lastMu.RUnlock()
	if r.last == nil {
		return RunReport{}, false
	}
	return *r.last, true
}

func (r *Runner) runOnce(ctx context.Context, targets []domain.Target, retention time.Duration) RunReport {
	rep := RunReport{
		ID:        uuid.NewString(),
		StartedAt: r.opts.Clock.Now(),
		Outcomes:  make([]domain.Outcome, 0, len(targets)),
	}
	log := r.opts.Logger.With(zap.String("run_id", rep.ID))
	log.Info("run_started", zap.Int("targets", len(targets)))

	for _, t := range targets {
		rep.Outcomes = append(rep.Outcomes, r.CheckTarget(ctx, t))
	}

	days := int(retention / (24 * time.Hour))
	st, err := r.opts.Log.Prune(retention)
	rep.Prune = st
	if err != nil {
		rep.PruneError = err.Error()
		r.opts.Log.Printf("log cleanup failed: %v", err)
		log.Warn("log_prune_failed", zap.String("path", r.opts.Log.Path()), zap.Error(err))
	} else {
		r.opts.Log.Printf("log cleanup done, keeping the last %d days", days)
		log.Info("log_pruned",
			zap.Int("kept", st.Kept),
			zap.Int("removed", st.Removed),
			zap.String("freed", humanize.Bytes(uint64(max(st.BytesBefore-st.BytesAfter, 0)))),
		)
	}

	rep.FinishedAt = r.opts.Clock.Now()
	r.opts.Metrics.ObserveRun(rep.FinishedAt, st)
	log.Info("run_finished",
		zap.Int("failures", rep.Failures()),
		zap.Duration("took", rep.FinishedAt.Sub(rep.StartedAt)),
	)

	r.lastMu.Lock()
	r.last = &rep
	r.lastMu.Unlock()
	return rep
}
