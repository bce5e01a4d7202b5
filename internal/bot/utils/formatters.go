package utils

import (
	"fmt"
	"strconv"
	"strings"

	"geojobs/internal/models"
)

const maxSourceTextRunes = 600

// FormatParsedJob renders one row as a MarkdownV2 card.
func FormatParsedJob(job *models.ParsedJob) string {
	var sb strings.Builder

	// Title in bold
	title := "Без названия"
	if job.PositionTitle != nil && *job.PositionTitle != "" {
		title = *job.PositionTitle
	}
	sb.WriteString(fmt.Sprintf("%s *%s*\n\n", roleIcon(job), EscapeMarkdown(title)))

	if location := formatLocation(job); location != "" {
		sb.WriteString(fmt.Sprintf("📍 *Где:* %s\n", EscapeMarkdown(location)))
	}

	if job.WorkFormat != nil && *job.WorkFormat != "" {
		sb.WriteString(fmt.Sprintf("🗓 *Формат:* %s\n", EscapeMarkdown(models.GetWorkFormatDisplayName(*job.WorkFormat))))
	}

	sb.WriteString(fmt.Sprintf("💰 *Зарплата:* %s\n", EscapeMarkdown(FormatSalary(job))))

	if job.ExperienceYears != nil {
		sb.WriteString(fmt.Sprintf("💼 *Опыт:* %s\n", EscapeMarkdown(FormatYears(*job.ExperienceYears))))
	}

	if len(job.Skills) > 0 {
		sb.WriteString(fmt.Sprintf("🧭 *Навыки:* %s\n", EscapeMarkdown(strings.Join(job.Skills, ", "))))
	}
	if len(job.Equipment) > 0 {
		sb.WriteString(fmt.Sprintf("📐 *Оборудование:* %s\n", EscapeMarkdown(strings.Join(job.Equipment, ", "))))
	}
	if len(job.Software) > 0 {
		sb.WriteString(fmt.Sprintf("💻 *ПО:* %s\n", EscapeMarkdown(strings.Join(job.Software, ", "))))
	}

	if job.Education != nil && *job.Education != "" {
		sb.WriteString(fmt.Sprintf("🎓 *Образование:* %s\n", EscapeMarkdown(*job.Education)))
	}

	if contacts := FormatContacts(job.Contacts); contacts != "" {
		sb.WriteString(fmt.Sprintf("📞 *Контакты:* %s\n", EscapeMarkdown(contacts)))
	}

	if job.PublishedAt != nil {
		sb.WriteString(fmt.Sprintf("📅 *Опубликовано:* %s\n", EscapeMarkdown(job.PublishedAt.Format("02.01.2006"))))
	}

	if job.SourceText != nil && *job.SourceText != "" {
		sb.WriteString(fmt.Sprintf("\n_%s_\n", EscapeMarkdown(TruncateString(*job.SourceText, maxSourceTextRunes))))
	}

	sb.WriteString(fmt.Sprintf("\n\\#%d", job.RawID))

	return sb.String()
}

func roleIcon(job *models.ParsedJob) string {
	switch {
	case job.Employer() && job.Candidate():
		return "🔁"
	case job.Employer():
		return "🏢"
	case job.Candidate():
		return "🙋"
	default:
		return "📄"
	}
}

func formatLocation(job *models.ParsedJob) string {
	var parts []string
	if job.City != nil && *job.City != "" {
		parts = append(parts, *job.City)
	}
	if job.Country != nil && *job.Country != "" {
		parts = append(parts, *job.Country)
	}
	return strings.Join(parts, ", ")
}

// FormatSalary renders the salary bounds, currency and period of a row.
func FormatSalary(job *models.ParsedJob) string {
	currency := ""
	if job.SalaryCurrency != nil {
		currency = *job.SalaryCurrency
	}
	switch strings.ToUpper(currency) {
	case "RUR", "RUB":
		currency = "₽"
	case "USD":
		currency = "$"
	case "EUR":
		currency = "€"
	}

	period := ""
	if job.SalaryPeriod != nil {
		if name := models.GetSalaryPeriodDisplayName(*job.SalaryPeriod); name != "" {
			period = " " + name
		}
	}

	var amount string
	switch {
	case job.SalaryFrom != nil && job.SalaryTo != nil && *job.SalaryFrom == *job.SalaryTo:
		amount = formatAmount(*job.SalaryFrom)
	case job.SalaryFrom != nil && job.SalaryTo != nil:
		amount = fmt.Sprintf("%s - %s", formatAmount(*job.SalaryFrom), formatAmount(*job.SalaryTo))
	case job.SalaryFrom != nil:
		amount = "от " + formatAmount(*job.SalaryFrom)
	case job.SalaryTo != nil:
		amount = "до " + formatAmount(*job.SalaryTo)
	default:
		return "не указана"
	}

	// currency symbol after amount (Russian style)
	return strings.TrimSpace(fmt.Sprintf("%s %s", amount, currency)) + period
}

// formatAmount groups thousands with spaces: 150000 -> "150 000".
func formatAmount(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	intPart, frac, hasFrac := strings.Cut(s, ".")

	sign := ""
	if strings.HasPrefix(intPart, "-") {
		sign, intPart = "-", intPart[1:]
	}

	var sb strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			sb.WriteByte(' ')
		}
		sb.WriteRune(r)
	}

	out := sign + sb.String()
	if hasFrac {
		out += "," + frac
	}
	return out
}

func FormatYears(years float64) string {
	n := strconv.FormatFloat(years, 'f', -1, 64)
	if years != float64(int64(years)) {
		return n + " года"
	}
	switch y := int64(years) % 100; {
	case y%10 == 1 && y != 11:
		return n + " год"
	case y%10 >= 2 && y%10 <= 4 && (y < 12 || y > 14):
		return n + " года"
	default:
		return n + " лет"
	}
}

// FormatContacts lists the contact channels in a stable order.
func FormatContacts(contacts models.RawJSON) string {
	var parts []string
	for _, key := range []string{"phone", "email", "telegram"} {
		v, ok := contacts.Lookup(key)
		if !ok {
			continue
		}
		switch val := v.(type) {
		case string:
			if val != "" {
				parts = append(parts, val)
			}
		case []interface{}:
			for _, item := range val {
				if s, ok := item.(string); ok && s != "" {
					parts = append(parts, s)
				}
			}
		}
	}
	return strings.Join(parts, ", ")
}

func FormatWelcomeMessage(firstName string) string {
	name := firstName
	if name == "" {
		name = "друг"
	}

	return fmt.Sprintf(`👋 Привет, *%s*\!

Я бот для поиска вакансий и резюме по геодезии и смежным специальностям\.

*Что я умею:*
• Показывать объявление по номеру
• Искать объявления по городу, навыкам и зарплате
• Присылать новые вакансии по подписке

*Команды:*
/search \- поиск объявлений
/job \- объявление по номеру
/stats \- статистика базы
/subscribe \- подписаться на новые вакансии
/help \- справка`, EscapeMarkdown(name))
}

// FormatHelpMessage lists the commands and the search keys users may type.
func FormatHelpMessage(keys []string) string {
	return `*📖 Справка*

*Основные команды:*

/start \- начать работу с ботом
/job 42 \- объявление с номером 42
/search \- поиск объявлений
/stats \- статистика базы
/subscribe \- получать новые вакансии
/unsubscribe \- отписаться
/help city \- подробнее о ключе поиска

*Поиск:*

Условия задаются в виде ключ\=значение, например:
` + "`/search is_employer=true city=Москва skill=GNSS`" + `

*Доступные ключи:*
` + "`" + strings.Join(keys, " ") + "`"
}

var filterKeyHints = map[string]string{
	"is_candidate":    "только резюме: yes/no, да/нет",
	"is_employer":     "только вакансии: yes/no, да/нет",
	"city":            "город без учёта регистра",
	"country":         "страна без учёта регистра",
	"work_format":     "формат работы, например вахта",
	"salary_currency": "валюта, например RUB",
	"salary_period":   "период оплаты: month, shift, hour",
	"source_id":       "источник объявления",
	"position":        "часть названия должности",
	"skill":           "навык, точное совпадение",
	"equipment":       "оборудование, точное совпадение",
	"software":        "программа, точное совпадение",
	"salary_at_least": "зарплата не ниже, объявления без зарплаты не попадут",
	"salary_at_most":  "зарплата не выше, объявления без зарплаты не попадут",
	"min_confidence":  "минимальная уверенность разбора от 0 до 1",
	"published_after": "опубликовано после даты ГГГГ-ММ-ДД",
}

// FormatFilterKeyHelp explains one search key; ok is false for unknown keys.
func FormatFilterKeyHelp(key string) (string, bool) {
	hint, ok := filterKeyHints[key]
	if !ok {
		return fmt.Sprintf("❓ Неизвестный ключ *%s*\\. Список ключей: /help", EscapeMarkdown(key)), false
	}
	return fmt.Sprintf("🔎 *%s*: %s\\.\n\nПример: `/search %s=…`",
		EscapeMarkdown(key), EscapeMarkdown(hint), key), true
}

func FormatNoJobsMessage() string {
	return `😔 *Объявления не найдены*

Попробуйте смягчить условия поиска\. Справка: /help`
}

func FormatJobNotFoundMessage(rawID int64) string {
	return fmt.Sprintf("🔍 Объявление \\#%d не найдено", rawID)
}

func FormatSearchSummary(total int64) string {
	return fmt.Sprintf("📋 *Найдено объявлений:* %d", total)
}

func FormatStatsMessage(total, employers, candidates int64) string {
	var sb strings.Builder

	sb.WriteString("*📊 Статистика*\n\n")
	sb.WriteString(fmt.Sprintf("Всего объявлений: %d\n", total))
	sb.WriteString(fmt.Sprintf("🏢 Вакансий: %d\n", employers))
	sb.WriteString(fmt.Sprintf("🙋 Резюме: %d\n", candidates))

	return sb.String()
}

func FormatSubscriptionMessage(subscribed bool) string {
	var sb strings.Builder

	sb.WriteString("*🔔 Рассылка новых вакансий*\n\n")

	status := "❌ Отключена"
	if subscribed {
		status = "✅ Включена"
	}
	sb.WriteString(fmt.Sprintf("*Статус:* %s\n", status))

	return sb.String()
}

func FormatDigestHeader(count int) string {
	return fmt.Sprintf("🔔 *Новые вакансии\\!*\n\nНайдено новых вакансий: %d", count)
}

// EscapeMarkdown escapes special characters for Telegram MarkdownV2
func EscapeMarkdown(text string) string {
	// _ * [ ] ( ) ~ ` > # + - = | { } . !
	replacer := strings.NewReplacer(
		"\\", "\\\\",
		"_", "\\_",
		"*", "\\*",
		"[", "\\[",
		"]", "\\]",
		"(", "\\(",
		")", "\\)",
		"~", "\\~",
		"`", "\\`",
		">", "\\>",
		"#", "\\#",
		"+", "\\+",
		"-", "\\-",
		"=", "\\=",
		"|", "\\|",
		"{", "\\{",
		"}", "\\}",
		".", "\\.",
		"!", "\\!",
	)

	return replacer.Replace(text)
}

// TruncateString cuts s to at most maxLen runes.
func TruncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-1]) + "…"
}
