package bot

import (
	"context"
	"fmt"
	"time"

	"geojobs/internal/bot/handlers"
	"geojobs/internal/bot/middleware"
	"geojobs/internal/config"
	"geojobs/internal/storage"
	"geojobs/internal/storage/redis"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"
)

// Bot represents Telegram bot
type Bot struct {
	bot    *tele.Bot
	repo   storage.Repository
	cache  *redis.Cache
	config *config.Config
	logger *zap.Logger
}

func New(
	cfg *config.Config,
	repo storage.Repository,
	cache *redis.Cache,
	logger *zap.Logger,
) (*Bot, error) {
	pref := tele.Settings{
		Token:  cfg.TelegramToken,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c tele.Context) {
			logger.Error("telegram update failed", zap.Error(err))
		},
	}

	b, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	bot := &Bot{
		bot:    b,
		repo:   repo,
		cache:  cache,
		config: cfg,
		logger: logger,
	}

	bot.setupMiddleware()

	bot.registerHandlers()

	logger.Info("bot initialized successfully")

	return bot, nil
}

func (b *Bot) setupMiddleware() {
	b.bot.Use(middleware.Recovery(b.logger))

	b.bot.Use(middleware.Logger(b.logger))

	b.bot.Use(middleware.RateLimit(b.cache, b.logger))
}

func (b *Bot) registerHandlers() {
	ctx := &handlers.Context{
		Repo:   b.repo,
		State:  b.cache,
		Config: b.config,
		Logger: b.logger,
	}

	b.bot.Handle("/start", handlers.HandleStart(ctx))
	b.bot.Handle("/help", handlers.HandleHelp(ctx))
	b.bot.Handle("/job", handlers.HandleJob(ctx))
	b.bot.Handle("/search", handlers.HandleSearch(ctx))
	b.bot.Handle("/stats", handlers.HandleStats(ctx))
	b.bot.Handle("/digest", handlers.HandleDigest(ctx))
	b.bot.Handle("/subscribe", handlers.HandleSubscribe(ctx))
	b.bot.Handle("/unsubscribe", handlers.HandleUnsubscribe(ctx))

	b.bot.Handle(tele.OnText, handlers.HandleText(ctx))

	b.bot.Handle(tele.OnCallback, handlers.HandleCallback(ctx))

	b.logger.Info("handlers registered")
}

func (b *Bot) Start(ctx context.Context) error {
	b.logger.Info("starting bot...")

	go b.bot.Start()

	<-ctx.Done()

	b.logger.Info("stopping bot...")
	b.bot.Stop()

	return nil
}

// Sender is the client the digest scheduler delivers through.
func (b *Bot) Sender() *tele.Bot {
	return b.bot
}
