// Package dispatch owns outbound delivery: a worker pool drains a queue of
// per-subscriber jobs, sends the reading over Telegram with retries and rate
// pacing, and commits progress only after the send is confirmed.
package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"log/slog"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	coreconfig "dailybread/core/config"
	"dailybread/core/logger"
	"dailybread/core/telegram/netutil"
	"dailybread/msg"
	"dailybread/plan"
	"dailybread/subscriber"
)

// Job is one pending delivery: a subscriber and the plan day to send.
type Job struct {
	Sub    subscriber.Subscriber
	Entry  plan.Entry
	Date   string // schedule date "2006-01-02" this send belongs to
	TickID string
}

// Options tune the dispatcher. Zero values fall back to sane defaults.
type Options struct {
	Workers      int
	QueueSize    int
	MaxRetries   int
	RetryBackoff time.Duration
	RatePerSec   float64
	OnComplete   string // coreconfig.OnCompleteDeactivate or OnCompleteReset
	SendPoll     bool
}

func (o *Options) normalize() {
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 2 * time.Second
	}
	if o.RatePerSec <= 0 {
		o.RatePerSec = 25
	}
	if o.OnComplete == "" {
		o.OnComplete = coreconfig.OnCompleteDeactivate
	}
}

// Dispatcher fans jobs out to workers. A chat is never in flight twice.
type Dispatcher struct {
	store     subscriber.Store
	plan      *plan.Plan
	transport Transport
	limiter   *rate.Limiter
	opts      Options

	queue chan Job
	wg    sync.WaitGroup

	mu       sync.Mutex
	inflight map[int64]struct{}

	sent   atomic.Uint64
	failed atomic.Uint64
}

// New builds a dispatcher. Start must be called before Enqueue.
func New(store subscriber.Store, p *plan.Plan, transport Transport, opts Options) *Dispatcher {
	opts.normalize()
	return &Dispatcher{
		store:     store,
		plan:      p,
		transport: transport,
		limiter:   rate.NewLimiter(rate.Limit(opts.RatePerSec), 1),
		opts:      opts,
		queue:     make(chan Job, opts.QueueSize),
		inflight:  make(map[int64]struct{}),
	}
}

// Start launches the worker pool. Workers exit when ctx is cancelled or the
// queue is closed via Stop.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.opts.Workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx)
	}
	logger.DISP.Info("dispatcher started",
		slog.String("event", "dispatch.start"),
		slog.Int("workers", d.opts.Workers),
		slog.Int("queue_size", d.opts.QueueSize),
	)
}

// Stop closes the queue and waits for in-flight jobs to finish.
func (d *Dispatcher) Stop() {
	close(d.queue)
	d.wg.Wait()
	logger.DISP.Info("dispatcher stopped",
		slog.String("event", "dispatch.stop"),
		slog.Uint64("sent", d.sent.Load()),
		slog.Uint64("failed", d.failed.Load()),
	)
}

// Enqueue hands a job to the pool. It returns false when the chat already has
// a job in flight or the queue is full; the next tick will retry.
func (d *Dispatcher) Enqueue(job Job) bool {
	d.mu.Lock()
	if _, busy := d.inflight[job.Sub.ChatID]; busy {
		d.mu.Unlock()
		return false
	}
	d.inflight[job.Sub.ChatID] = struct{}{}
	d.mu.Unlock()

	select {
	case d.queue <- job:
		return true
	default:
		d.release(job.Sub.ChatID)
		logger.DISP.Warn("queue full, job dropped",
			slog.String("event", "dispatch.queue_full"),
			slog.Int64("chat_id", job.Sub.ChatID),
			slog.String("tick_id", job.TickID),
		)
		return false
	}
}

// Stats returns total confirmed and failed deliveries since start.
func (d *Dispatcher) Stats() (sent, failed uint64) {
	return d.sent.Load(), d.failed.Load()
}

func (d *Dispatcher) release(chatID int64) {
	d.mu.Lock()
	delete(d.inflight, chatID)
	d.mu.Unlock()
}

func (d *Dispatcher) worker(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-d.queue:
			if !ok {
				return
			}
			d.deliver(ctx, job)
			d.release(job.Sub.ChatID)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, job Job) {
	start := time.Now()
	lang := job.Sub.Language

	text := msg.Reminder(lang, job.Entry)
	if err := d.limiter.Wait(ctx); err != nil {
		return
	}
	if err := d.sendWithRetry(ctx, job.Sub.ChatID, text, true); err != nil {
		d.failed.Add(1)
		logger.DISP.Error("delivery failed",
			slog.String("event", "dispatch.failed"),
			slog.String("tick_id", job.TickID),
			slog.Int64("chat_id", job.Sub.ChatID),
			slog.Int("day", job.Entry.Day),
			slog.String("err", err.Error()),
			slog.Duration("duration", logger.Took(start)),
		)
		return
	}

	advanced, err := d.store.Advance(ctx, job.Sub.ChatID, job.Sub.CurrentDay, job.Date)
	if err != nil {
		// Message went out but progress is unrecorded; the next tick will
		// redeliver today's reading rather than silently skip a day.
		logger.DISP.Error("advance failed after send",
			slog.String("event", "dispatch.advance_error"),
			slog.String("tick_id", job.TickID),
			slog.Int64("chat_id", job.Sub.ChatID),
			slog.Int("day", job.Sub.CurrentDay),
			slog.String("err", err.Error()),
		)
		return
	}

	d.sent.Add(1)
	logger.DISP.Info("reading sent",
		slog.String("event", "dispatch.sent"),
		slog.String("tick_id", job.TickID),
		slog.Int64("chat_id", job.Sub.ChatID),
		slog.Int("day", job.Entry.Day),
		slog.Bool("advanced", advanced),
		slog.Duration("duration", logger.Took(start)),
	)

	if advanced && job.Sub.CurrentDay+1 > d.plan.Len() {
		d.finishPlan(ctx, job, lang)
	}

	if d.opts.SendPoll {
		if err := d.transport.SendPoll(job.Sub.ChatID, msg.PollQuestion(lang), msg.PollOptions(lang)); err != nil {
			logger.DISP.Warn("poll send failed",
				slog.String("event", "dispatch.poll_failed"),
				slog.Int64("chat_id", job.Sub.ChatID),
				slog.String("err", err.Error()),
			)
		}
	}
}

func (d *Dispatcher) finishPlan(ctx context.Context, job Job, lang string) {
	if err := d.sendWithRetry(ctx, job.Sub.ChatID, msg.Completed(lang), false); err != nil {
		logger.DISP.Warn("completion message failed",
			slog.String("event", "dispatch.completion_failed"),
			slog.Int64("chat_id", job.Sub.ChatID),
			slog.String("err", err.Error()),
		)
	}

	var err error
	switch d.opts.OnComplete {
	case coreconfig.OnCompleteReset:
		err = d.store.Reset(ctx, job.Sub.ChatID)
	default:
		err = d.store.Deactivate(ctx, job.Sub.ChatID)
	}
	if err != nil {
		logger.DISP.Error("completion transition failed",
			slog.String("event", "dispatch.completion_error"),
			slog.Int64("chat_id", job.Sub.ChatID),
			slog.String("policy", d.opts.OnComplete),
			slog.String("err", err.Error()),
		)
		return
	}
	logger.DISP.Info("plan completed",
		slog.String("event", "dispatch.completed"),
		slog.String("tick_id", job.TickID),
		slog.Int64("chat_id", job.Sub.ChatID),
		slog.String("policy", d.opts.OnComplete),
	)
}

func (d *Dispatcher) sendWithRetry(ctx context.Context, chatID int64, text string, markdownV2 bool) error {
	var lastErr error
	for attempt := 0; attempt <= d.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, d.backoff(lastErr, attempt)); err != nil {
				return err
			}
		}
		lastErr = d.transport.SendMessage(chatID, text, markdownV2)
		if lastErr == nil {
			return nil
		}
		if !retryable(lastErr) {
			return lastErr
		}
		logger.DISP.Debug("send retry",
			slog.String("event", "dispatch.retry"),
			slog.Int64("chat_id", chatID),
			slog.Int("attempt", attempt+1),
			slog.String("err", lastErr.Error()),
		)
	}
	return lastErr
}

func (d *Dispatcher) backoff(err error, attempt int) time.Duration {
	var flood tele.FloodError
	if errors.As(err, &flood) && flood.RetryAfter > 0 {
		return time.Duration(flood.RetryAfter) * time.Second
	}
	return d.opts.RetryBackoff * time.Duration(attempt)
}

func retryable(err error) bool {
	var flood tele.FloodError
	if errors.As(err, &flood) {
		return true
	}
	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code >= 500
	}
	return netutil.ShouldRetry(err)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
