package watcher

import (
	"context"

	"github.com/hazyhaar/relwatch/watcher/internal/schedule"
)

// Serve runs RunOnce at start-up and then on the Config.Schedule.Cron
// expression until ctx is cancelled. Runs never overlap. When
// Config.Schedule.Listen is set, a status server exposes /healthz, /status
// and POST /run. Failed runs are logged and reported on /status; they do
// not stop the loop.
func (r *Runner) Serve(ctx context.Context) error {
	s, err := r.scheduler()
	if err != nil {
		return err
	}
	return s.Run(ctx)
}

func (r *Runner) scheduler() (*schedule.Scheduler, error) {
	return schedule.New(schedule.Config{
		Spec:       r.config.Schedule.Cron,
		Listen:     r.config.Schedule.Listen,
		RunAtStart: true,
		Logger:     r.logger,
	}, r.job)
}

func (r *Runner) job(ctx context.Context) (schedule.Report, error) {
	out, err := r.RunOnce(ctx)
	rep := schedule.Report{Result: "failed"}
	if out != nil {
		rep.Result = string(out.Status)
		if out.Entry != nil {
			rep.ReleaseID = out.Entry.ID
		}
	}
	if err != nil {
		rep.Result = "failed"
	}
	return rep, err
}
