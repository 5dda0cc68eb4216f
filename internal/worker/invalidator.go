// Package worker runs background consumers next to the HTTP server.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"ledger/internal/amqp"
	"ledger/internal/core"
)

// UserInvalidator drops everything cached for one user
type UserInvalidator interface {
	InvalidateUser(ctx context.Context, user core.UserID) error
}

// ChangeConsumer delivers ledger change events
type ChangeConsumer interface {
	ConsumeLedgerChanged(ctx context.Context, handler func(context.Context, *amqp.LedgerChangedMessage) error) error
}

// CacheInvalidator evicts cached reports when a user's ledger changes
type CacheInvalidator struct {
	consumer ChangeConsumer
	cache    UserInvalidator
}

func NewCacheInvalidator(consumer ChangeConsumer, cache UserInvalidator) *CacheInvalidator {
	return &CacheInvalidator{consumer: consumer, cache: cache}
}

// HandleLedgerChanged processes a single message. Errors cause a requeue.
func (w *CacheInvalidator) HandleLedgerChanged(ctx context.Context, msg *amqp.LedgerChangedMessage) error {
	if err := w.cache.InvalidateUser(ctx, msg.UserID); err != nil {
		return fmt.Errorf("invalidate reports of %s: %w", msg.UserID, err)
	}
	slog.DebugContext(ctx, "Cached reports invalidated",
		"user_id", msg.UserID,
		"changed_at", msg.Timestamp)
	return nil
}

// Run blocks until ctx is cancelled or the consumer gives up.
func (w *CacheInvalidator) Run(ctx context.Context) error {
	slog.InfoContext(ctx, "Cache invalidator started")
	err := w.consumer.ConsumeLedgerChanged(ctx, w.HandleLedgerChanged)
	if ctx.Err() != nil {
		return nil
	}
	return err
}
