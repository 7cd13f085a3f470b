// Package sched decides WHEN readings go out. A minute-resolution cron tick
// scans active subscribers and enqueues everyone whose send time has passed
// today and who has not received today's reading yet. Running on wall-clock
// dueness rather than a one-shot daily alarm means a restart inside the day
// catches up on the next tick.
package sched

import (
	"context"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"dailybread/core/logger"
	"dailybread/dispatch"
	"dailybread/plan"
	"dailybread/subscriber"
)

// Enqueuer accepts delivery jobs. Satisfied by *dispatch.Dispatcher.
type Enqueuer interface {
	Enqueue(dispatch.Job) bool
}

// Options configure the tick cycle.
type Options struct {
	SendTime string // global default "HH:MM"
	Location *time.Location
}

// Scheduler drives the daily send cycle.
type Scheduler struct {
	store subscriber.Store
	plan  *plan.Plan
	queue Enqueuer
	opts  Options

	mu   sync.Mutex
	cron *cron.Cron
}

// New builds a scheduler. Start registers the cron job.
func New(store subscriber.Store, p *plan.Plan, queue Enqueuer, opts Options) *Scheduler {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.SendTime == "" {
		opts.SendTime = "07:00"
	}
	return &Scheduler{store: store, plan: p, queue: queue, opts: opts}
}

// Start begins ticking once a minute until Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return nil
	}
	c := cron.New(cron.WithLocation(s.opts.Location))
	if _, err := c.AddFunc("* * * * *", func() {
		s.Tick(ctx, time.Now())
	}); err != nil {
		return err
	}
	c.Start()
	s.cron = c
	logger.SCHED.Info("scheduler started",
		slog.String("event", "sched.start"),
		slog.String("send_time", s.opts.SendTime),
		slog.String("tz", s.opts.Location.String()),
		slog.Int("plan_days", s.plan.Len()),
	)
	return nil
}

// Stop halts the cron loop and waits for a running tick to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
		logger.SCHED.Info("scheduler stopped", slog.String("event", "sched.stop"))
	}
}

// Tick runs one scan. Exported so commands can trigger an immediate pass.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) {
	start := time.Now()
	tickID := uuid.NewString()
	local := now.In(s.opts.Location)
	date := local.Format("2006-01-02")

	subs, err := s.store.ListActive(ctx)
	if err != nil {
		logger.SCHED.Error("tick scan failed",
			slog.String("event", "sched.tick_error"),
			slog.String("tick_id", tickID),
			slog.String("err", err.Error()),
		)
		return
	}

	due, enqueued := 0, 0
	for i := range subs {
		sub := subs[i]
		if !s.Due(&sub, local) {
			continue
		}
		due++
		entry, err := s.plan.Entry(sub.CurrentDay)
		if err != nil {
			logger.SCHED.Warn("subscriber past plan end",
				slog.String("event", "sched.entry_missing"),
				slog.String("tick_id", tickID),
				slog.Int64("chat_id", sub.ChatID),
				slog.Int("day", sub.CurrentDay),
			)
			continue
		}
		if s.queue.Enqueue(dispatch.Job{Sub: sub, Entry: entry, Date: date, TickID: tickID}) {
			enqueued++
		}
	}

	if due > 0 {
		logger.SCHED.Info("tick",
			slog.String("event", "sched.tick"),
			slog.String("tick_id", tickID),
			slog.Int("subscribers", len(subs)),
			slog.Int("due", due),
			slog.Int("enqueued", enqueued),
			slog.Duration("duration", logger.Took(start)),
		)
	}
}

// Due reports whether sub should receive today's reading at local time now.
func (s *Scheduler) Due(sub *subscriber.Subscriber, now time.Time) bool {
	if !sub.Active || sub.Completed(s.plan.Len()) {
		return false
	}
	date := now.Format("2006-01-02")
	if sub.SentOn(date) {
		return false
	}
	anchor, ok := s.anchor(sub, now)
	if !ok {
		return false
	}
	return !now.Before(anchor)
}

func (s *Scheduler) anchor(sub *subscriber.Subscriber, now time.Time) (time.Time, bool) {
	clock := strings.TrimSpace(sub.SendTime)
	if clock == "" {
		clock = s.opts.SendTime
	}
	t, err := time.Parse("15:04", clock)
	if err != nil {
		logger.SCHED.Warn("bad send time, using global default",
			slog.String("event", "sched.bad_send_time"),
			slog.Int64("chat_id", sub.ChatID),
			slog.String("send_time", clock),
		)
		t, err = time.Parse("15:04", s.opts.SendTime)
		if err != nil {
			return time.Time{}, false
		}
	}
	return time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), 0, 0, now.Location()), true
}
