package middleware

import (
	"strings"
	"time"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"
)

// Logger logs every handled update with its kind and duration
func Logger(logger *zap.Logger) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			start := time.Now()

			kind, text := describe(c)

			err := next(c)

			fields := []zap.Field{
				zap.String("type", kind),
				zap.String("text", text),
				zap.Duration("duration", time.Since(start)),
			}
			if user := c.Sender(); user != nil {
				fields = append(fields,
					zap.Int64("user_id", user.ID),
					zap.String("username", user.Username),
				)
			}
			if chat := c.Chat(); chat != nil {
				fields = append(fields, zap.Int64("chat_id", chat.ID))
			}

			if err != nil {
				fields = append(fields, zap.Error(err))
				logger.Error("handler error", fields...)
			} else {
				logger.Info("request handled", fields...)
			}

			return err
		}
	}
}

func describe(c tele.Context) (kind, text string) {
	if cb := c.Callback(); cb != nil {
		return "callback", strings.TrimPrefix(cb.Data, "\f")
	}
	if msg := c.Message(); msg != nil {
		return "message", msg.Text
	}
	return "other", ""
}
