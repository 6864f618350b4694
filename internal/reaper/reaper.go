package reaper

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
)

// Expirer ends calls whose rooms have outlived their TTL. *calls.Service satisfies it.
type Expirer interface {
	ExpireStale(ctx context.Context, limit int) (int, error)
}

// Reaper periodically ends ongoing calls that nobody ended, so the call record
// catches up with the provider's own room expiry.
type Reaper struct {
	expirer   Expirer
	interval  time.Duration
	batchSize int
	timeout   time.Duration
	log       *slog.Logger

	extra     []job
	scheduler *gocron.Scheduler
}

type job struct {
	interval time.Duration
	fn       func()
}

// New returns a stopped reaper. A nil expirer runs only the tasks added with Every.
func New(expirer Expirer, interval time.Duration, batchSize int, log *slog.Logger) *Reaper {
	if interval <= 0 {
		interval = time.Minute
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if log == nil {
		log = slog.Default()
	}
	return &Reaper{
		expirer:   expirer,
		interval:  interval,
		batchSize: batchSize,
		timeout:   interval,
		log:       log.With("component", "reaper"),
	}
}

// Every adds a housekeeping task to the same scheduler. Call it before Start.
func (r *Reaper) Every(interval time.Duration, fn func()) {
	r.extra = append(r.extra, job{interval: interval, fn: fn})
}

// Start schedules the sweep. Runs never overlap.
func (r *Reaper) Start() error {
	s := gocron.NewScheduler(time.UTC)
	if r.expirer != nil {
		if _, err := s.Every(r.interval).SingletonMode().Do(r.runOnce); err != nil {
			return err
		}
	}
	for _, j := range r.extra {
		if _, err := s.Every(j.interval).SingletonMode().Do(j.fn); err != nil {
			return err
		}
	}
	s.StartAsync()
	r.scheduler = s
	r.log.Info("reaper started", "interval", r.interval.String())
	return nil
}

// Stop halts the scheduler; a sweep in progress finishes on its own.
func (r *Reaper) Stop() {
	if r.scheduler != nil {
		r.scheduler.Stop()
		r.scheduler = nil
	}
}

func (r *Reaper) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	n, err := r.expirer.ExpireStale(ctx, r.batchSize)
	if err != nil {
		r.log.Error("expire stale calls", "ended", n, "err", err)
		return
	}
	if n > 0 {
		r.log.Info("expired stale calls", "ended", n)
	}
}
