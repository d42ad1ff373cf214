package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/adamspd/DesignQuizBot/utils"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// ErrAlreadyRunning is returned when a guarded job is invoked while a
// previous invocation is still in flight.
var ErrAlreadyRunning = errors.New("job already running")

// Engine is the quiz state the scheduled jobs maintain.
type Engine interface {
	Rollover(ctx context.Context) (int64, error)
	ListUsers(ctx context.Context) ([]int64, error)
	SweepCaches() int
}

// DailyEnqueuer hands daily deliveries to a job queue.
type DailyEnqueuer interface {
	EnqueueDaily(ctx context.Context, userID int64, date string) error
}

type ScheduleConfig struct {
	Location      *time.Location
	DailySpec     string
	HeartbeatSpec string
	RolloverSpec  string
	SweepSpec     string
	Admins        []int64
	// Workers bounds inline daily delivery. Zero means 8.
	Workers  int
	SendRate rate.Limit
}

// DailyRun summarizes one daily question run.
type DailyRun struct {
	Users     int
	Delivered int
	Skipped   int
	Queued    int
	Failed    int
}

type Scheduler struct {
	cfg      ScheduleConfig
	cron     *cron.Cron
	engine   Engine
	delivery Delivery
	enqueuer DailyEnqueuer
	sweepers []func() int
	now      func() time.Time
	ctx      context.Context

	dailyRunning    atomic.Bool
	rolloverRunning atomic.Bool
}

// NewScheduler registers the configured jobs. An empty spec leaves that job
// unscheduled. With a nil enqueuer daily questions are delivered inline.
func NewScheduler(cfg ScheduleConfig, engine Engine, delivery Delivery, enqueuer DailyEnqueuer) (*Scheduler, error) {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 8
	}
	if cfg.SendRate == 0 {
		cfg.SendRate = DefaultSendRate
	}

	logger := CronLogger{}
	s := &Scheduler{
		cfg:      cfg,
		engine:   engine,
		delivery: delivery,
		enqueuer: enqueuer,
		now:      time.Now,
		ctx:      context.Background(),
		cron: cron.New(
			cron.WithLocation(cfg.Location),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
	}

	entries := []struct {
		name string
		spec string
		run  func(ctx context.Context) error
	}{
		{"daily questions", cfg.DailySpec, func(ctx context.Context) error {
			_, err := s.RunDailyQuestions(ctx)
			return err
		}},
		{"admin heartbeat", cfg.HeartbeatSpec, s.RunAdminHeartbeat},
		{"rollover", cfg.RolloverSpec, s.RunRollover},
		{"cache sweep", cfg.SweepSpec, func(ctx context.Context) error {
			s.RunCacheSweep()
			return nil
		}},
	}
	for _, e := range entries {
		if e.spec == "" {
			continue
		}
		e := e
		if _, err := s.cron.AddFunc(e.spec, func() {
			if err := e.run(s.ctx); err != nil {
				utils.LogError("Scheduled %s failed: %v", e.name, err)
			}
		}); err != nil {
			return nil, fmt.Errorf("schedule %s %q: %w", e.name, e.spec, err)
		}
		utils.LogJob("Scheduled %s at %q (%s)", e.name, e.spec, cfg.Location)
	}
	return s, nil
}

// AddSweeper registers an extra cleanup run by RunCacheSweep. fn returns the
// number of entries it dropped.
func (s *Scheduler) AddSweeper(fn func() int) {
	s.sweepers = append(s.sweepers, fn)
}

// Start runs the cron loop. Jobs receive ctx.
func (s *Scheduler) Start(ctx context.Context) {
	s.ctx = ctx
	s.cron.Start()
	utils.LogStartup("Scheduler started")
}

// Stop halts the cron loop and waits for running jobs.
func (s *Scheduler) Stop() {
	utils.LogShutdown("Stopping scheduler...")
	<-s.cron.Stop().Done()
}

// RunDailyQuestions rolls the day over and sends every user their daily
// question, either through the job queue or inline.
func (s *Scheduler) RunDailyQuestions(ctx context.Context) (DailyRun, error) {
	if !s.dailyRunning.CompareAndSwap(false, true) {
		utils.LogWarn("Daily questions still running, skipping this run")
		return DailyRun{}, ErrAlreadyRunning
	}
	defer s.dailyRunning.Store(false)

	start := time.Now()
	if f, ok := s.delivery.(interface{ ForgetSubscriptions() }); ok {
		f.ForgetSubscriptions()
	}
	switch _, err := s.rollover(ctx); {
	case errors.Is(err, ErrAlreadyRunning):
		utils.LogWarn("Rollover already in progress, daily run continues without it")
	case err != nil:
		return DailyRun{}, fmt.Errorf("rollover before daily run: %w", err)
	}

	users, err := s.engine.ListUsers(ctx)
	if err != nil {
		return DailyRun{}, fmt.Errorf("list users: %w", err)
	}

	var run DailyRun
	if s.enqueuer != nil {
		run = s.enqueueDaily(ctx, users)
	} else {
		run, err = s.deliverInline(ctx, users)
		if err != nil {
			return run, err
		}
	}

	utils.LogJob("Daily run: users=%d delivered=%d queued=%d skipped=%d failed=%d in %v",
		run.Users, run.Delivered, run.Queued, run.Skipped, run.Failed, time.Since(start))
	return run, nil
}

func (s *Scheduler) enqueueDaily(ctx context.Context, users []int64) DailyRun {
	run := DailyRun{Users: len(users)}
	date := s.now().In(s.cfg.Location).Format("2006-01-02")
	for _, id := range users {
		if err := s.enqueuer.EnqueueDaily(ctx, id, date); err != nil {
			utils.LogError("Queueing daily question for %d failed: %v", id, err)
			run.Failed++
			continue
		}
		run.Queued++
	}
	return run
}

func (s *Scheduler) deliverInline(ctx context.Context, users []int64) (DailyRun, error) {
	var delivered, skipped, failed atomic.Int64
	limiter := rate.NewLimiter(s.cfg.SendRate, 1)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for _, id := range users {
		id := id
		g.Go(func() error {
			if err := limiter.Wait(gctx); err != nil {
				return err
			}
			sent, err := s.delivery.DeliverDaily(gctx, id)
			switch {
			case err != nil:
				utils.LogError("Daily question for %d failed: %v", id, err)
				failed.Add(1)
			case sent:
				delivered.Add(1)
			default:
				skipped.Add(1)
			}
			return nil
		})
	}
	err := g.Wait()

	return DailyRun{
		Users:     len(users),
		Delivered: int(delivered.Load()),
		Skipped:   int(skipped.Load()),
		Failed:    int(failed.Load()),
	}, err
}

// RunRollover drops daily counters from previous days.
func (s *Scheduler) RunRollover(ctx context.Context) error {
	n, err := s.rollover(ctx)
	if errors.Is(err, ErrAlreadyRunning) {
		utils.LogWarn("Rollover still running, skipping this run")
	}
	if err != nil {
		return err
	}
	utils.LogJob("Rollover removed %d daily rows", n)
	return nil
}

// rollover runs at most one engine rollover at a time, whether it was
// started by its own schedule or by the daily run.
func (s *Scheduler) rollover(ctx context.Context) (int64, error) {
	if !s.rolloverRunning.CompareAndSwap(false, true) {
		return 0, ErrAlreadyRunning
	}
	defer s.rolloverRunning.Store(false)
	return s.engine.Rollover(ctx)
}

// RunAdminHeartbeat tells every admin the bot is alive.
func (s *Scheduler) RunAdminHeartbeat(ctx context.Context) error {
	var errs []error
	for _, id := range s.cfg.Admins {
		if err := s.delivery.SendHeartbeat(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("heartbeat to %d: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// RunCacheSweep evicts expired cache and session entries.
func (s *Scheduler) RunCacheSweep() int {
	n := s.engine.SweepCaches()
	for _, fn := range s.sweepers {
		n += fn()
	}
	utils.LogDebug("Cache sweep evicted %d entries", n)
	return n
}

// CronLogger forwards cron diagnostics to the application log.
type CronLogger struct{}

func (CronLogger) Info(msg string, keysAndValues ...interface{}) {
	utils.LogDebug("cron: %s %v", msg, keysAndValues)
}

func (CronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	utils.LogError("cron: %s: %v %v", msg, err, keysAndValues)
}
