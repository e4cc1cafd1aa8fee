// CLAUDE:SUMMARY Cron-driven daemon mode: serialized job runs (never overlapping), last-run status, chi status server.
// Package schedule runs a job on a cron expression and reports the last run
// over HTTP. Runs never overlap: a tick that fires while the previous run is
// still in progress is skipped.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrInvalidSpec is returned (wrapped) when the cron expression does not parse.
var ErrInvalidSpec = errors.New("schedule: invalid cron expression")

// DefaultSpec is used when Config.Spec is empty.
const DefaultSpec = "@every 1h"

// Report is what a job run tells the scheduler about itself.
type Report struct {
	Result    string `json:"result"`
	ReleaseID string `json:"release_id,omitempty"`
}

// Job is one unit of scheduled work.
type Job func(ctx context.Context) (Report, error)

// Status describes the most recent completed run.
type Status struct {
	Runs      int       `json:"runs"`
	Failures  int       `json:"failures"`
	Running   bool      `json:"running"`
	StartedAt time.Time `json:"started_at,omitempty"`
	Duration  string    `json:"duration,omitempty"`
	Report    Report    `json:"last"`
	Error     string    `json:"error,omitempty"`
	Next      time.Time `json:"next,omitempty"`
}

// Config configures the scheduler.
type Config struct {
	// Spec is a five-field cron expression or a descriptor such as @hourly
	// or @every 30m. Default: DefaultSpec.
	Spec string
	// Listen is the status server address. Empty disables the server.
	Listen string
	// RunAtStart triggers one run before the first tick.
	RunAtStart bool
	Logger     *slog.Logger
}

func (c *Config) defaults() {
	if c.Spec == "" {
		c.Spec = DefaultSpec
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Scheduler owns the cron loop and the status record.
type Scheduler struct {
	config Config
	job    Job
	cron   *cron.Cron
	entry  cron.EntryID
	ctx    context.Context // parent of cron-triggered runs

	runMu sync.Mutex // serializes runs

	mu     sync.RWMutex
	status Status
}

// New validates the cron expression and registers job.
func New(cfg Config, job Job) (*Scheduler, error) {
	cfg.defaults()
	if _, err := parser.Parse(cfg.Spec); err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidSpec, cfg.Spec, err)
	}

	s := &Scheduler{config: cfg, job: job, ctx: context.Background()}
	s.cron = cron.New(
		cron.WithParser(parser),
		cron.WithChain(cron.Recover(cronLogger{cfg.Logger}), cron.SkipIfStillRunning(cronLogger{cfg.Logger})),
	)
	id, err := s.cron.AddFunc(cfg.Spec, func() { s.Trigger(s.ctx) })
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidSpec, cfg.Spec, err)
	}
	s.entry = id
	return s, nil
}

// Trigger runs the job now, waiting for any run in progress to finish first.
// The returned Status reflects this run.
func (s *Scheduler) Trigger(ctx context.Context) Status {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	start := time.Now()
	s.mu.Lock()
	s.status.Running = true
	s.mu.Unlock()

	s.config.Logger.Info("schedule: run started")
	report, err := s.job(ctx)
	elapsed := time.Since(start)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.Running = false
	s.status.Runs++
	s.status.StartedAt = start
	s.status.Duration = elapsed.Round(time.Millisecond).String()
	s.status.Report = report
	s.status.Error = ""
	if err != nil {
		s.status.Failures++
		s.status.Error = err.Error()
		s.config.Logger.Error("schedule: run failed", "error", err, "duration_ms", elapsed.Milliseconds())
	} else {
		s.config.Logger.Info("schedule: run finished",
			"result", report.Result, "release_id", report.ReleaseID, "duration_ms", elapsed.Milliseconds())
	}
	return s.status
}

// Status returns a snapshot of the last run.
func (s *Scheduler) Status() Status {
	s.mu.RLock()
	st := s.status
	s.mu.RUnlock()
	if e := s.cron.Entry(s.entry); e.Valid() {
		st.Next = e.Next
	}
	return st
}

// Run starts the cron loop and the optional status server, then blocks until
// ctx is cancelled. On return no job is running.
func (s *Scheduler) Run(ctx context.Context) error {
	s.ctx = ctx
	if s.config.RunAtStart {
		s.Trigger(ctx)
	}

	var srv *http.Server
	errCh := make(chan error, 1)
	if s.config.Listen != "" {
		srv = &http.Server{
			Addr:              s.config.Listen,
			Handler:           s.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			s.config.Logger.Info("schedule: status server listening", "addr", s.config.Listen)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("schedule: status server: %w", err)
			}
		}()
	}

	s.cron.Start()
	s.config.Logger.Info("schedule: started", "spec", s.config.Spec)

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	<-s.cron.Stop().Done()
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}
	s.config.Logger.Info("schedule: stopped")
	return runErr
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct{ l *slog.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug("schedule: cron "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error("schedule: cron "+msg, append([]any{"error", err}, keysAndValues...)...)
}
