package handlers

import (
	"strings"

	"geojobs/internal/bot/utils"
	"geojobs/internal/models"

	tele "gopkg.in/telebot.v3"
)

// set by the pager, not typed by users
var pagingKeys = map[string]bool{"after_raw_id": true, "limit": true}

// /help [key]
func HandleHelp(ctx *Context) tele.HandlerFunc {
	return func(c tele.Context) error {
		if args := c.Args(); len(args) > 0 {
			key := strings.ReplaceAll(strings.ToLower(args[0]), "-", "_")
			text, _ := utils.FormatFilterKeyHelp(key)
			return c.Send(text, tele.ModeMarkdownV2)
		}

		return c.Send(
			utils.FormatHelpMessage(searchKeys()),
			utils.MainMenuKeyboard(),
			tele.ModeMarkdownV2,
		)
	}
}

func searchKeys() []string {
	keys := make([]string, 0, len(models.FilterKeys))
	for _, key := range models.FilterKeys {
		if !pagingKeys[key] {
			keys = append(keys, key)
		}
	}
	return keys
}
