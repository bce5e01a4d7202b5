// Package scheduler delivers new employer postings to subscribed chats on a
// cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"geojobs/internal/bot/utils"
	"geojobs/internal/logger"
	"geojobs/internal/models"
	"geojobs/internal/storage"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"
)

// Sender delivers messages; *tele.Bot satisfies it.
type Sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// State holds the subscriber set and the last delivered raw_id.
type State interface {
	Subscribers(ctx context.Context) ([]int64, error)
	Unsubscribe(ctx context.Context, chatID int64) (bool, error)
	DigestCursor(ctx context.Context) (int64, bool, error)
	SetDigestCursor(ctx context.Context, rawID int64) error
}

// Digest scans rows above the cursor and fans them out to subscribers.
type Digest struct {
	cron    *cron.Cron
	spec    string
	sender  Sender
	repo    storage.Repository
	state   State
	maxJobs int
	pause   time.Duration
	logger  *zap.Logger
}

func New(
	spec string,
	maxJobs int,
	sender Sender,
	repo storage.Repository,
	state State,
	log *zap.Logger,
) *Digest {
	adapter := logger.NewCronAdapter(log)

	return &Digest{
		cron: cron.New(
			cron.WithLogger(adapter),
			cron.WithChain(cron.Recover(adapter), cron.SkipIfStillRunning(adapter)),
		),
		spec:    spec,
		sender:  sender,
		repo:    repo,
		state:   state,
		maxJobs: maxJobs,
		pause:   500 * time.Millisecond,
		logger:  log,
	}
}

// WithPause sets the delay between two messages to the same chat.
func (d *Digest) WithPause(pause time.Duration) *Digest {
	d.pause = pause
	return d
}

// Start registers the job and blocks until ctx is done, then waits for a
// running delivery to finish.
func (d *Digest) Start(ctx context.Context) error {
	_, err := d.cron.AddFunc(d.spec, func() {
		if _, err := d.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Error("digest run failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	d.cron.Start()
	d.logger.Info("digest scheduler started", zap.String("schedule", d.spec))

	<-ctx.Done()

	<-d.cron.Stop().Done()
	d.logger.Info("digest scheduler stopped")

	return nil
}

// Run delivers one digest and returns how many postings went out. On the
// first run the cursor starts at the newest row so history is not replayed.
func (d *Digest) Run(ctx context.Context) (int, error) {
	cursor, ok, err := d.state.DigestCursor(ctx)
	if err != nil {
		return 0, fmt.Errorf("get digest cursor: %w", err)
	}

	if !ok {
		latest, err := d.repo.MaxRawID(ctx)
		if err != nil {
			return 0, fmt.Errorf("get max raw_id: %w", err)
		}
		if err := d.state.SetDigestCursor(ctx, latest); err != nil {
			return 0, fmt.Errorf("set digest cursor: %w", err)
		}
		d.logger.Info("digest cursor initialised", zap.Int64("raw_id", latest))
		return 0, nil
	}

	jobs, err := d.repo.Scan(ctx, models.ScanFilter{
		IsEmployer: models.Bool(true),
		AfterRawID: cursor,
		Limit:      d.maxJobs,
	})
	if err != nil {
		return 0, fmt.Errorf("scan new postings: %w", err)
	}

	if len(jobs) == 0 {
		d.logger.Debug("no new postings", zap.Int64("cursor", cursor))
		return 0, nil
	}

	subscribers, err := d.state.Subscribers(ctx)
	if err != nil {
		return 0, fmt.Errorf("get subscribers: %w", err)
	}

	for _, chatID := range subscribers {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		d.deliver(ctx, chatID, jobs)
	}

	// an interrupted delivery keeps the cursor so the next run repeats it
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	next := jobs[len(jobs)-1].RawID
	if err := d.state.SetDigestCursor(ctx, next); err != nil {
		return 0, fmt.Errorf("set digest cursor: %w", err)
	}

	d.logger.Info("digest delivered",
		zap.Int("postings", len(jobs)),
		zap.Int("subscribers", len(subscribers)),
		zap.Int64("cursor", next),
	)

	return len(jobs), nil
}

func (d *Digest) deliver(ctx context.Context, chatID int64, jobs []models.ParsedJob) {
	recipient := &tele.Chat{ID: chatID}

	if _, err := d.sender.Send(recipient, utils.FormatDigestHeader(len(jobs)), tele.ModeMarkdownV2); err != nil {
		d.handleSendError(ctx, chatID, 0, err)
		return
	}

	for i := range jobs {
		job := &jobs[i]

		opts := []interface{}{tele.ModeMarkdownV2, tele.NoPreview}
		if job.URL != nil {
			if keyboard := utils.InlineJobKeyboard(*job.URL); keyboard != nil {
				opts = append(opts, keyboard)
			}
		}

		if _, err := d.sender.Send(recipient, utils.FormatParsedJob(job), opts...); err != nil {
			if d.handleSendError(ctx, chatID, job.RawID, err) {
				return
			}
			continue
		}

		if i < len(jobs)-1 && d.pause > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(d.pause):
			}
		}
	}
}

// handleSendError logs a failed send and reports whether the chat is gone.
// Chats that blocked the bot are unsubscribed.
func (d *Digest) handleSendError(ctx context.Context, chatID, rawID int64, err error) bool {
	if errors.Is(err, tele.ErrBlockedByUser) || errors.Is(err, tele.ErrChatNotFound) {
		d.logger.Info("chat unreachable, unsubscribing",
			zap.Int64("chat_id", chatID),
			zap.Error(err),
		)
		if _, err := d.state.Unsubscribe(ctx, chatID); err != nil {
			d.logger.Error("failed to unsubscribe chat",
				zap.Int64("chat_id", chatID),
				zap.Error(err),
			)
		}
		return true
	}

	d.logger.Error("failed to send digest message",
		zap.Int64("chat_id", chatID),
		zap.Int64("raw_id", rawID),
		zap.Error(err),
	)
	return rawID == 0
}
