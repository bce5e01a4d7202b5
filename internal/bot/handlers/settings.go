package handlers

import (
	"context"
	"time"

	"geojobs/internal/bot/utils"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"
)

// /digest shows the subscription status with a toggle
func HandleDigest(ctx *Context) tele.HandlerFunc {
	return func(c tele.Context) error {
		chatID := c.Chat().ID

		stateCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		subscribed, err := ctx.State.IsSubscribed(stateCtx, chatID)
		if err != nil {
			ctx.Logger.Error("failed to get subscription",
				zap.Int64("chat_id", chatID),
				zap.Error(err),
			)
			return c.Send("😔 Ошибка при получении настроек")
		}

		return c.Send(
			utils.FormatSubscriptionMessage(subscribed),
			utils.InlineDigestKeyboard(subscribed),
			tele.ModeMarkdownV2,
		)
	}
}

// /subscribe
func HandleSubscribe(ctx *Context) tele.HandlerFunc {
	return func(c tele.Context) error {
		if _, err := setSubscription(ctx, c.Chat().ID, true); err != nil {
			return c.Send("😔 Ошибка при включении рассылки")
		}
		return c.Send(
			"✅ Рассылка включена\\!\n\nНовые вакансии будут приходить в этот чат\\.",
			tele.ModeMarkdownV2,
		)
	}
}

// /unsubscribe
func HandleUnsubscribe(ctx *Context) tele.HandlerFunc {
	return func(c tele.Context) error {
		if _, err := setSubscription(ctx, c.Chat().ID, false); err != nil {
			return c.Send("😔 Ошибка при отключении рассылки")
		}
		return c.Send("🔕 Рассылка отключена")
	}
}

// setSubscription reports whether the state changed.
func setSubscription(ctx *Context, chatID int64, on bool) (bool, error) {
	stateCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var (
		changed bool
		err     error
	)
	if on {
		changed, err = ctx.State.Subscribe(stateCtx, chatID)
	} else {
		changed, err = ctx.State.Unsubscribe(stateCtx, chatID)
	}
	if err != nil {
		ctx.Logger.Error("failed to update subscription",
			zap.Int64("chat_id", chatID),
			zap.Bool("subscribe", on),
			zap.Error(err),
		)
		return false, err
	}

	if changed {
		ctx.Logger.Info("digest subscription changed",
			zap.Int64("chat_id", chatID),
			zap.Bool("subscribed", on),
		)
	}

	return changed, nil
}
