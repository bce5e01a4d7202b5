package handlers

import (
	"context"
	"strconv"
	"strings"
	"time"

	"geojobs/internal/bot/utils"
	apperrors "geojobs/internal/errors"
	"geojobs/internal/models"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"
)

// /job <raw_id>
func HandleJob(ctx *Context) tele.HandlerFunc {
	return func(c tele.Context) error {
		args := c.Args()
		if len(args) != 1 {
			return c.Send("ℹ️ Укажите номер объявления, например: /job 42")
		}

		rawID, err := strconv.ParseInt(strings.TrimPrefix(args[0], "#"), 10, 64)
		if err != nil || rawID <= 0 {
			return c.Send("❌ Номер объявления должен быть положительным числом")
		}

		dbCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		job, err := ctx.Repo.Get(dbCtx, rawID)
		if apperrors.IsNotFound(err) {
			return c.Send(utils.FormatJobNotFoundMessage(rawID), tele.ModeMarkdownV2)
		}
		if err != nil {
			ctx.Logger.Error("failed to get parsed job",
				zap.Int64("raw_id", rawID),
				zap.Error(err),
			)
			return c.Send("😔 Ошибка. Попробуйте позже.")
		}

		return sendJobCard(c, job)
	}
}

func sendJobCard(c tele.Context, job *models.ParsedJob) error {
	opts := []interface{}{tele.ModeMarkdownV2, tele.NoPreview}
	if job.URL != nil {
		if keyboard := utils.InlineJobKeyboard(*job.URL); keyboard != nil {
			opts = append(opts, keyboard)
		}
	}
	return c.Send(utils.FormatParsedJob(job), opts...)
}

// /stats
func HandleStats(ctx *Context) tele.HandlerFunc {
	return func(c tele.Context) error {
		dbCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		total, err := ctx.Repo.Count(dbCtx, models.ScanFilter{})
		if err != nil {
			ctx.Logger.Error("failed to count parsed jobs", zap.Error(err))
			return c.Send("😔 Ошибка при получении статистики")
		}

		employers, err := ctx.Repo.Count(dbCtx, models.ScanFilter{IsEmployer: models.Bool(true)})
		if err != nil {
			ctx.Logger.Error("failed to count employer posts", zap.Error(err))
			return c.Send("😔 Ошибка при получении статистики")
		}

		candidates, err := ctx.Repo.Count(dbCtx, models.ScanFilter{IsCandidate: models.Bool(true)})
		if err != nil {
			ctx.Logger.Error("failed to count candidate posts", zap.Error(err))
			return c.Send("😔 Ошибка при получении статистики")
		}

		return c.Send(
			utils.FormatStatsMessage(total, employers, candidates),
			tele.ModeMarkdownV2,
		)
	}
}
