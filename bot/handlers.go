package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"log/slog"

	tele "gopkg.in/telebot.v4"

	"dailybread/core/logger"
	coretelegram "dailybread/core/telegram"
	"dailybread/core/telegram/commands"
	"dailybread/core/telegram/helpers"
	"dailybread/msg"
	"dailybread/subscriber"
)

func (a *App) registerCommands(reg *coretelegram.Registry) {
	reg.RegisterCommand("/start", commands.Command{
		Handler:     a.handleStart,
		Description: "Show the start message",
	})
	reg.RegisterCommand("/subscribe", commands.Command{
		Handler:     a.handleSubscribe,
		Description: "Subscribe to the daily reminder",
	})
	reg.RegisterCommand("/unsubscribe", commands.Command{
		Handler:     a.handleUnsubscribe,
		Description: "Pause reminders, keeping progress",
	})
	reg.RegisterCommand("/today", commands.Command{
		Handler:     a.handleToday,
		Description: "Send today's reading right away",
	})
	reg.RegisterCommand("/settime", commands.Command{
		Handler:     a.handleSetTime,
		Description: "Set a personal reminder time",
		Aliases:     []string{"/settimer"},
	})
	reg.RegisterCommand("/setlang", commands.Command{
		Handler:     a.handleSetLang,
		Description: "Choose the language (en/de)",
	})
	reg.RegisterCommand("/progress", commands.Command{
		Handler:     a.handleProgress,
		Description: "Show your progress through the plan",
	})
	reg.RegisterCommand("/reset", commands.Command{
		Handler:     a.handleReset,
		Description: "Restart the plan at day 1",
	})
	reg.RegisterCommand("/help", commands.Command{
		Handler:     a.handleHelp,
		Description: "Show the help message",
	})
	reg.RegisterCommand("/chatinfo", commands.Command{
		Handler:     a.handleChatInfo,
		Description: "Show chat information",
		Hidden:      true,
	})
	reg.RegisterCommand("/stats", commands.Command{
		Handler:     a.handleStats,
		Description: "Show bot statistics",
		AdminOnly:   true,
		Hidden:      true,
	})

	reg.SetTextFallback(func(c tele.Context) error {
		return helpers.SendText(c, msg.Help(a.langFor(helpers.BuildContext(c), c)))
	})
}

// langFor resolves the reply language from the stored subscriber, defaulting
// to English for unknown chats.
func (a *App) langFor(ctx context.Context, c tele.Context) string {
	chat := c.Chat()
	if chat == nil {
		return msg.LangEN
	}
	sub, err := a.store.Get(ctx, chat.ID)
	if err != nil {
		return msg.LangEN
	}
	return sub.Language
}

// handleStart greets the chat and enrolls it at day 1 on first contact.
func (a *App) handleStart(c tele.Context) error {
	ctx := helpers.WithHandler(c, "start")
	chatID := c.Chat().ID

	sub, err := a.store.Get(ctx, chatID)
	if errors.Is(err, subscriber.ErrNotFound) {
		sub = subscriber.New(chatID, msg.LangEN, time.Now())
		if u := c.Sender(); u != nil && u.LanguageCode != "" {
			sub.Language = msg.Normalize(u.LanguageCode)
		}
		if err := a.store.Upsert(ctx, sub); err != nil {
			return err
		}
		logger.Info(ctx, "bot", "subscriber.enrolled", slog.Int64("chat_id", chatID))
	} else if err != nil {
		return err
	}
	return helpers.SendText(c, msg.Start(sub.Language))
}

func (a *App) handleSubscribe(c tele.Context) error {
	ctx := helpers.WithHandler(c, "subscribe")
	chatID := c.Chat().ID

	sub, err := a.store.Get(ctx, chatID)
	switch {
	case errors.Is(err, subscriber.ErrNotFound):
		sub = subscriber.New(chatID, msg.LangEN, time.Now())
		if u := c.Sender(); u != nil && u.LanguageCode != "" {
			sub.Language = msg.Normalize(u.LanguageCode)
		}
		if err := a.store.Upsert(ctx, sub); err != nil {
			return err
		}
		logger.Info(ctx, "bot", "subscriber.enrolled", slog.Int64("chat_id", chatID))
	case err != nil:
		return err
	case sub.Active:
		return helpers.SendText(c, msg.AlreadySubscribed(sub.Language))
	default:
		// Resubscribe keeps prior progress; touch only the active flag so a
		// concurrent dispatch cannot be reverted by this stale snapshot.
		if err := a.store.Activate(ctx, chatID); err != nil {
			return err
		}
		logger.Info(ctx, "bot", "subscriber.resumed",
			slog.Int64("chat_id", chatID),
			slog.Int("day", sub.CurrentDay),
		)
	}

	sendTime := sub.SendTime
	if sendTime == "" {
		sendTime = a.cfg.Schedule.SendTime
	}
	return helpers.SendText(c, msg.Subscribed(sub.Language, sendTime))
}

func (a *App) handleUnsubscribe(c tele.Context) error {
	ctx := helpers.WithHandler(c, "unsubscribe")
	chatID := c.Chat().ID

	err := a.store.Deactivate(ctx, chatID)
	if errors.Is(err, subscriber.ErrNotFound) {
		return helpers.SendText(c, msg.NotSubscribed(msg.LangEN))
	}
	if err != nil {
		return err
	}
	logger.Info(ctx, "bot", "subscriber.paused", slog.Int64("chat_id", chatID))
	return helpers.SendText(c, msg.Unsubscribed(a.langFor(ctx, c)))
}

// handleToday sends the current reading immediately without advancing
// progress; the scheduled send still happens.
func (a *App) handleToday(c tele.Context) error {
	ctx := helpers.WithHandler(c, "today")

	sub, err := a.store.Get(ctx, c.Chat().ID)
	if errors.Is(err, subscriber.ErrNotFound) {
		return helpers.SendText(c, msg.NotSubscribed(msg.LangEN))
	}
	if err != nil {
		return err
	}
	if sub.Completed(a.plan.Len()) {
		return helpers.SendText(c, msg.Completed(sub.Language))
	}
	entry, err := a.plan.Entry(sub.CurrentDay)
	if err != nil {
		return helpers.SendText(c, msg.ReminderFallback(sub.Language))
	}
	return helpers.SendMDV2(c, msg.Reminder(sub.Language, entry))
}

func (a *App) handleSetTime(c tele.Context) error {
	ctx := helpers.WithHandler(c, "settime")

	sub, err := a.store.Get(ctx, c.Chat().ID)
	if errors.Is(err, subscriber.ErrNotFound) {
		return helpers.SendText(c, msg.NotSubscribed(msg.LangEN))
	}
	if err != nil {
		return err
	}

	clock, ok := helpers.ParseClock(c.Message().Payload)
	if !ok {
		return helpers.SendText(c, msg.TimeUsage(sub.Language))
	}
	if err := a.store.SetSendTime(ctx, sub.ChatID, clock); err != nil {
		return err
	}
	logger.Info(ctx, "bot", "subscriber.send_time",
		slog.Int64("chat_id", sub.ChatID),
		slog.String("send_time", clock),
	)
	return helpers.SendText(c, msg.TimeSet(sub.Language, clock))
}

func (a *App) handleSetLang(c tele.Context) error {
	ctx := helpers.WithHandler(c, "setlang")

	sub, err := a.store.Get(ctx, c.Chat().ID)
	if errors.Is(err, subscriber.ErrNotFound) {
		return helpers.SendText(c, msg.NotSubscribed(msg.LangEN))
	}
	if err != nil {
		return err
	}

	arg := strings.TrimSpace(c.Message().Payload)
	if !msg.Supported(arg) {
		return helpers.SendText(c, msg.LanguageUsage(sub.Language))
	}
	sub.Language = msg.Normalize(arg)
	if err := a.store.SetLanguage(ctx, sub.ChatID, sub.Language); err != nil {
		return err
	}
	logger.Info(ctx, "bot", "subscriber.language",
		slog.Int64("chat_id", sub.ChatID),
		slog.String("lang", sub.Language),
	)
	return helpers.SendText(c, msg.LanguageSet(sub.Language))
}

func (a *App) handleProgress(c tele.Context) error {
	ctx := helpers.WithHandler(c, "progress")

	sub, err := a.store.Get(ctx, c.Chat().ID)
	if errors.Is(err, subscriber.ErrNotFound) {
		return helpers.SendText(c, msg.NotSubscribed(msg.LangEN))
	}
	if err != nil {
		return err
	}
	return helpers.SendText(c, msg.Progress(sub.Language, sub.CurrentDay, a.plan.Len()))
}

func (a *App) handleReset(c tele.Context) error {
	ctx := helpers.WithHandler(c, "reset")
	chatID := c.Chat().ID

	lang := a.langFor(ctx, c)
	err := a.store.Reset(ctx, chatID)
	if errors.Is(err, subscriber.ErrNotFound) {
		return helpers.SendText(c, msg.NotSubscribed(msg.LangEN))
	}
	if err != nil {
		return err
	}
	logger.Info(ctx, "bot", "subscriber.reset", slog.Int64("chat_id", chatID))
	return helpers.SendText(c, msg.ResetDone(lang))
}

func (a *App) handleHelp(c tele.Context) error {
	ctx := helpers.WithHandler(c, "help")
	return helpers.SendText(c, msg.Help(a.langFor(ctx, c)))
}

func (a *App) handleChatInfo(c tele.Context) error {
	helpers.WithHandler(c, "chatinfo")
	chat := c.Chat()
	if chat == nil {
		return nil
	}
	lines := []string{
		fmt.Sprintf("chat_id: %d", chat.ID),
		fmt.Sprintf("type: %s", chat.Type),
	}
	if chat.Username != "" {
		lines = append(lines, fmt.Sprintf("username: @%s", chat.Username))
	}
	if u := c.Sender(); u != nil {
		lines = append(lines, fmt.Sprintf("sender_id: %d", u.ID))
		if u.LanguageCode != "" {
			lines = append(lines, fmt.Sprintf("language_code: %s", u.LanguageCode))
		}
	}
	return helpers.SendText(c, strings.Join(lines, "\n"))
}

func (a *App) handleStats(c tele.Context) error {
	ctx := helpers.WithHandler(c, "stats")

	total, active, err := a.store.Count(ctx)
	if err != nil {
		return err
	}
	var sent, failed uint64
	if a.disp != nil {
		sent, failed = a.disp.Stats()
	}
	lines := []string{
		fmt.Sprintf("subscribers: %d (%d active)", total, active),
		fmt.Sprintf("plan days: %d", a.plan.Len()),
		fmt.Sprintf("sent: %d, failed: %d", sent, failed),
		fmt.Sprintf("uptime: %s", time.Since(a.startedAt).Round(time.Second)),
	}
	return helpers.SendText(c, strings.Join(lines, "\n"))
}
