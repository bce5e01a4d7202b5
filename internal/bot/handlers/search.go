package handlers

import (
	"context"
	"fmt"
	"time"

	"geojobs/internal/bot/utils"
	"geojobs/internal/models"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"
)

// /search key=value ...
func HandleSearch(ctx *Context) tele.HandlerFunc {
	return func(c tele.Context) error {
		var payload string
		if msg := c.Message(); msg != nil {
			payload = msg.Payload
		}
		return startSearch(ctx, c, payload)
	}
}

func startSearch(ctx *Context, c tele.Context, query string) error {
	filter, err := models.ParseQuery(query)
	if err != nil {
		return c.Send(
			fmt.Sprintf("❌ %s\n\nСправка по поиску: /help", utils.EscapeMarkdown(err.Error())),
			tele.ModeMarkdownV2,
		)
	}
	return runSearch(ctx, c, filter)
}

func runSearch(ctx *Context, c tele.Context, filter models.ScanFilter) error {
	userID := c.Sender().ID

	// the cursor belongs to pagination, not to the saved search
	filter.AfterRawID = 0
	filter.Limit = 0

	stateCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := ctx.State.SetSearchState(stateCtx, userID, filter); err != nil {
		ctx.Logger.Warn("failed to save search state",
			zap.Int64("user_id", userID),
			zap.Error(err),
		)
	}

	return sendSearchPage(ctx, c, filter, 0)
}

// sendSearchPage sends up to SearchPageSize cards after filter.AfterRawID and
// a "next" button when more rows remain.
func sendSearchPage(ctx *Context, c tele.Context, filter models.ScanFilter, shown int64) error {
	userID := c.Sender().ID
	pageSize := ctx.Config.SearchPageSize

	dbCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	total, err := ctx.Repo.Count(dbCtx, filter)
	if err != nil {
		ctx.Logger.Error("failed to count search results",
			zap.Int64("user_id", userID),
			zap.Error(err),
		)
		return c.Send("😔 Ошибка при поиске объявлений")
	}

	// one extra row tells whether another page exists
	page := filter
	page.Limit = pageSize + 1

	jobs, err := ctx.Repo.Scan(dbCtx, page)
	if err != nil {
		ctx.Logger.Error("failed to scan parsed jobs",
			zap.Int64("user_id", userID),
			zap.Error(err),
		)
		return c.Send("😔 Ошибка при поиске объявлений")
	}

	if len(jobs) == 0 {
		return c.Send(utils.FormatNoJobsMessage(), tele.ModeMarkdownV2)
	}

	hasMore := len(jobs) > pageSize
	if hasMore {
		jobs = jobs[:pageSize]
	}

	if shown == 0 {
		if err := c.Send(utils.FormatSearchSummary(total), tele.ModeMarkdownV2); err != nil {
			return err
		}
	}

	for i := range jobs {
		if err := sendJobCard(c, &jobs[i]); err != nil {
			ctx.Logger.Error("failed to send job card",
				zap.Int64("user_id", userID),
				zap.Int64("raw_id", jobs[i].RawID),
				zap.Error(err),
			)
		}
	}

	shown += int64(len(jobs))

	if !hasMore {
		return nil
	}

	last := jobs[len(jobs)-1].RawID
	return c.Send(
		fmt.Sprintf("📄 Показано %d из %d", shown, total),
		utils.InlineNextPageKeyboard(last, shown, total),
	)
}
