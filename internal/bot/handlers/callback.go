package handlers

import (
	"context"
	"strconv"
	"strings"
	"time"

	"geojobs/internal/bot/utils"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"
)

// HandleCallback processes all callback queries from inline buttons
func HandleCallback(ctx *Context) tele.HandlerFunc {
	return func(c tele.Context) error {
		cb := c.Callback()
		if cb == nil {
			ctx.Logger.Warn("callback is nil")
			return nil
		}

		// Remove form feed character if present (telebot adds \f prefix)
		data := strings.TrimPrefix(cb.Data, "\f")

		parts := strings.Split(data, ":")
		action := parts[0]

		ctx.Logger.Debug("routing callback",
			zap.String("action", action),
			zap.Int64("user_id", c.Sender().ID),
		)

		switch action {
		case utils.CallbackPage:
			return handleSearchPage(ctx, c, parts)
		case utils.CallbackDigestOn:
			return handleDigestToggle(ctx, c, true)
		case utils.CallbackDigestOff:
			return handleDigestToggle(ctx, c, false)
		case utils.CallbackPageCurrent:
			return c.Respond()
		default:
			ctx.Logger.Warn("unknown callback action",
				zap.String("action", action),
				zap.String("data", data),
			)
			return c.Respond(&tele.CallbackResponse{Text: "❓ Неизвестное действие"})
		}
	}
}

func handleSearchPage(ctx *Context, c tele.Context, parts []string) error {
	if len(parts) != 3 {
		return c.Respond(&tele.CallbackResponse{Text: "❌ Неверный формат"})
	}

	after, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "❌ Неверный формат"})
	}
	shown, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "❌ Неверный формат"})
	}

	userID := c.Sender().ID

	stateCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	filter, ok, err := ctx.State.GetSearchState(stateCtx, userID)
	if err != nil {
		ctx.Logger.Error("failed to load search state",
			zap.Int64("user_id", userID),
			zap.Error(err),
		)
		return c.Respond(&tele.CallbackResponse{Text: "😔 Ошибка"})
	}
	if !ok {
		return c.Respond(&tele.CallbackResponse{
			Text:      "⌛ Поиск устарел, повторите /search",
			ShowAlert: true,
		})
	}

	// drop the button so the same page is not requested twice
	if msg := c.Callback().Message; msg != nil {
		if err := c.Edit(msg.Text); err != nil {
			ctx.Logger.Debug("failed to edit pagination message", zap.Error(err))
		}
	}

	filter.AfterRawID = after
	if err := sendSearchPage(ctx, c, filter, shown); err != nil {
		return err
	}

	return c.Respond()
}

func handleDigestToggle(ctx *Context, c tele.Context, on bool) error {
	if _, err := setSubscription(ctx, c.Chat().ID, on); err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "😔 Ошибка сохранения"})
	}

	// Update the keyboard
	if err := c.Edit(
		utils.FormatSubscriptionMessage(on),
		utils.InlineDigestKeyboard(on),
		tele.ModeMarkdownV2,
	); err != nil {
		ctx.Logger.Warn("failed to edit message", zap.Error(err))
	}

	responseText := "✅ Рассылка включена"
	if !on {
		responseText = "🔕 Рассылка отключена"
	}

	return c.Respond(&tele.CallbackResponse{Text: responseText})
}
