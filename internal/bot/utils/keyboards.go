package utils

import (
	"fmt"

	tele "gopkg.in/telebot.v3"
)

// Reply keyboard button labels.
const (
	BtnSearch    = "🔍 Поиск"
	BtnVacancies = "🏢 Вакансии"
	BtnStats     = "📊 Статистика"
	BtnDigest    = "🔔 Рассылка"
	BtnHelp      = "❓ Справка"
)

// Callback actions, sent as "<action>[:<arg>...]".
const (
	CallbackPage        = "page"
	CallbackDigestOn    = "digest_on"
	CallbackDigestOff   = "digest_off"
	CallbackPageCurrent = "noop"
)

func MainMenuKeyboard() *tele.ReplyMarkup {
	menu := &tele.ReplyMarkup{ResizeKeyboard: true}

	btnSearch := menu.Text(BtnSearch)
	btnVacancies := menu.Text(BtnVacancies)
	btnStats := menu.Text(BtnStats)
	btnDigest := menu.Text(BtnDigest)
	btnHelp := menu.Text(BtnHelp)

	menu.Reply(
		menu.Row(btnSearch, btnVacancies),
		menu.Row(btnStats, btnDigest),
		menu.Row(btnHelp),
	)

	return menu
}

// InlineJobKeyboard links to the original post; nil when url is empty.
func InlineJobKeyboard(url string) *tele.ReplyMarkup {
	if url == "" {
		return nil
	}

	menu := &tele.ReplyMarkup{}

	btnOpen := menu.URL("🔗 Открыть объявление", url)

	menu.Inline(
		menu.Row(btnOpen),
	)

	return menu
}

// InlineNextPageKeyboard continues a search after afterRawID. The callback
// carries the cursor and how many rows were shown so far.
func InlineNextPageKeyboard(afterRawID int64, shown, total int64) *tele.ReplyMarkup {
	menu := &tele.ReplyMarkup{}

	btnCurrent := menu.Data(fmt.Sprintf("%d/%d", shown, total), CallbackPageCurrent)
	btnNext := menu.Data("Вперёд ➡️", fmt.Sprintf("%s:%d:%d", CallbackPage, afterRawID, shown))

	menu.Inline(menu.Row(btnCurrent, btnNext))
	return menu
}

func InlineDigestKeyboard(subscribed bool) *tele.ReplyMarkup {
	menu := &tele.ReplyMarkup{}

	var btnToggle tele.Btn
	if subscribed {
		btnToggle = menu.Data("🔕 Отключить", CallbackDigestOff)
	} else {
		btnToggle = menu.Data("🔔 Включить", CallbackDigestOn)
	}

	menu.Inline(menu.Row(btnToggle))

	return menu
}
