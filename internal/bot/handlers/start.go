package handlers

import (
	"geojobs/internal/bot/utils"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"
)

// /start command
func HandleStart(ctx *Context) tele.HandlerFunc {
	return func(c tele.Context) error {
		var firstName string
		if sender := c.Sender(); sender != nil {
			firstName = sender.FirstName
			ctx.Logger.Info("user started bot",
				zap.Int64("user_id", sender.ID),
				zap.String("username", sender.Username),
			)
		}

		welcomeMsg := utils.FormatWelcomeMessage(firstName)

		return c.Send(
			welcomeMsg,
			utils.MainMenuKeyboard(),
			tele.ModeMarkdownV2,
		)
	}
}
