package handlers

import (
	"context"

	"geojobs/internal/config"
	"geojobs/internal/models"
	"geojobs/internal/storage"

	"go.uber.org/zap"
)

// State keeps per-user bot state between updates.
type State interface {
	SetSearchState(ctx context.Context, userID int64, filter models.ScanFilter) error
	GetSearchState(ctx context.Context, userID int64) (models.ScanFilter, bool, error)
	Subscribe(ctx context.Context, chatID int64) (bool, error)
	Unsubscribe(ctx context.Context, chatID int64) (bool, error)
	IsSubscribed(ctx context.Context, chatID int64) (bool, error)
}

// Context contains deps for all handlers
type Context struct {
	Repo   storage.Repository
	State  State
	Config *config.Config
	Logger *zap.Logger
}
