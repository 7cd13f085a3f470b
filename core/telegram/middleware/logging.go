package middleware

import (
	"time"

	"dailybread/core/logger"
	tghelpers "dailybread/core/telegram/helpers"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

// LoggerMiddleware logs one receipt line per update, sets rid, and stores a
// request context for downstream handlers.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		upd := c.Update()
		chat := c.Chat()

		chatID := int64(0)
		if chat != nil {
			chatID = chat.ID
		}
		rid := logger.BuildRID(upd.ID, chatID)
		c.Set("rid", rid)

		ctx := logger.WithRID(logger.Background(), rid)
		ctx = logger.WithChatID(ctx, chatID)
		ctx = logger.WithLogger(ctx, logger.Component("tg"))
		tghelpers.StoreContext(c, ctx)

		attrs := []slog.Attr{
			slog.String("rid", rid),
		}
		if chatID != 0 {
			attrs = append(attrs, slog.Int64("chat_id", chatID))
		}
		if sender := c.Sender(); sender != nil && sender.LanguageCode != "" {
			attrs = append(attrs, slog.String("lang", sender.LanguageCode))
		}
		if t := c.Text(); t != "" {
			attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(t, 256)))
		}
		logger.LogEvent(ctx, logger.Component("tg"), slog.LevelDebug, "update.received", attrs...)

		start := time.Now()
		err := next(c)

		done := []slog.Attr{
			slog.String("status", logger.Status(err)),
			slog.String("rid", rid),
			slog.Duration("duration", logger.Took(start)),
		}
		if err != nil {
			done = append(done, slog.String("err", logger.SanitizeLimit(err.Error(), 256)))
		}
		logger.LogEvent(ctx, logger.Component("tg"), slog.LevelInfo, "handler.handled", done...)
		return err
	}
}
