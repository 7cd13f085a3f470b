// Package bot wires configuration, storage, the reading plan, the scheduler
// and the dispatcher into a running Telegram bot.
package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	coreconfig "dailybread/core/config"
	"dailybread/core/database"
	"dailybread/core/logger"
	coretelegram "dailybread/core/telegram"
	"dailybread/core/telegram/middleware"
	"dailybread/dispatch"
	"dailybread/plan"
	"dailybread/sched"
	"dailybread/subscriber"

	tele "gopkg.in/telebot.v4"
)

// App holds the long-lived components of the bot process.
type App struct {
	cfg   *coreconfig.Config
	db    *sqlx.DB
	store subscriber.Store
	plan  *plan.Plan

	// Created in OnStart once the bot connection exists.
	disp  *dispatch.Dispatcher
	sched *sched.Scheduler

	dispCancel context.CancelFunc

	startedAt time.Time
}

// Bootstrap initializes logging, storage and the reading plan.
func Bootstrap(cfg *coreconfig.Config) (*App, error) {
	if err := logger.InitLogger(cfg); err != nil {
		return nil, fmt.Errorf("bot: logger init: %w", err)
	}

	dbCfg := database.Config{
		Path:          cfg.Database.Path,
		BusyTimeoutMS: cfg.Database.BusyTimeoutMS,
	}
	if err := database.RunMigrations(dbCfg); err != nil {
		return nil, fmt.Errorf("bot: migrations: %w", err)
	}
	db, err := database.Connect(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("bot: database: %w", err)
	}

	p, err := plan.Load(cfg.Plan.Path)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("bot: plan: %w", err)
	}

	return &App{
		cfg:       cfg,
		db:        db,
		store:     subscriber.NewSQLStore(db),
		plan:      p,
		startedAt: time.Now(),
	}, nil
}

// TelegramRunOptions assembles middlewares, routes and lifecycle hooks.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	reg := coretelegram.NewRegistry()
	a.registerCommands(reg)

	middlewares := []coretelegram.Middleware{
		{Name: "recover", Use: middleware.RecoverMiddleware},
		{Name: "logging", Use: middleware.LoggerMiddleware},
	}
	if iv := a.cfg.RateLimit.IntervalMS; iv > 0 {
		middlewares = append(middlewares, coretelegram.Middleware{
			Name: "rate_limit",
			Use:  middleware.RateLimitMiddleware(middleware.RateLimitOptions{Interval: time.Duration(iv) * time.Millisecond}),
		})
	}

	routes := a.buildRoutes(reg)

	return coretelegram.RunOptions{
		Config:      a.cfg,
		Registry:    reg,
		Middlewares: middlewares,
		Routes:      routes,
		OnStart:     a.onStart,
		OnStop:      a.onStop,
	}, nil
}

func (a *App) buildRoutes(reg *coretelegram.Registry) []coretelegram.Route {
	var routes []coretelegram.Route
	for name, cmd := range reg.Commands() {
		handler := cmd.Handler
		if cmd.AdminOnly {
			handler = middleware.AdminOnlyMiddleware(middleware.AdminOptions{
				AdminID: a.cfg.Telegram.AdminID,
			})(handler)
		}
		routes = append(routes, coretelegram.Route{Endpoint: name, Handler: handler})
		for _, alias := range cmd.Aliases {
			routes = append(routes, coretelegram.Route{Endpoint: alias, Handler: handler})
		}
	}
	if fallback := reg.TextFallback(); fallback != nil {
		routes = append(routes, coretelegram.Route{Endpoint: tele.OnText, Handler: fallback})
	}
	return routes
}

func (a *App) onStart(ctx context.Context, rt coretelegram.Runtime) error {
	dispCtx, cancel := context.WithCancel(context.Background())
	a.dispCancel = cancel

	a.disp = dispatch.New(a.store, a.plan, dispatch.NewTelebotTransport(rt.Bot), dispatch.Options{
		Workers:      a.cfg.Dispatch.Workers,
		QueueSize:    a.cfg.Dispatch.QueueSize,
		MaxRetries:   a.cfg.Dispatch.MaxRetries,
		RetryBackoff: a.cfg.Dispatch.RetryBackoff(),
		RatePerSec:   a.cfg.Dispatch.RatePerSecond,
		OnComplete:   a.cfg.Schedule.OnComplete,
		SendPoll:     a.cfg.Schedule.SendPoll,
	})
	a.disp.Start(dispCtx)

	a.sched = sched.New(a.store, a.plan, a.disp, sched.Options{
		SendTime: a.cfg.Schedule.SendTime,
		Location: a.cfg.Schedule.Location(),
	})
	return a.sched.Start(dispCtx)
}

func (a *App) onStop(ctx context.Context, rt coretelegram.Runtime) error {
	if a.sched != nil {
		a.sched.Stop()
	}
	if a.disp != nil {
		a.disp.Stop()
	}
	if a.dispCancel != nil {
		a.dispCancel()
	}
	return nil
}

// Close releases resources opened in Bootstrap.
func (a *App) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}
