package handlers

import (
	"strings"

	"geojobs/internal/bot/utils"
	"geojobs/internal/models"

	tele "gopkg.in/telebot.v3"
)

// HandleText processes menu buttons and bare search queries
func HandleText(ctx *Context) tele.HandlerFunc {
	return func(c tele.Context) error {
		text := strings.TrimSpace(c.Text())

		switch text {
		case utils.BtnSearch:
			return c.Send(
				"🔍 Отправьте условия поиска в виде ключ\\=значение, например:\n"+
					"`city=Москва skill=GNSS`",
				tele.ModeMarkdownV2,
			)
		case utils.BtnVacancies:
			return runSearch(ctx, c, models.ScanFilter{IsEmployer: models.Bool(true)})
		case utils.BtnStats:
			return HandleStats(ctx)(c)
		case utils.BtnDigest:
			return HandleDigest(ctx)(c)
		case utils.BtnHelp:
			return HandleHelp(ctx)(c)
		}

		if strings.Contains(text, "=") {
			return startSearch(ctx, c, text)
		}

		return c.Send(
			"🤔 Не понял запрос\\. Справка: /help",
			utils.MainMenuKeyboard(),
			tele.ModeMarkdownV2,
		)
	}
}
