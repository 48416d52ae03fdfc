package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	defaultOutboxRetention = 30 * 24 * time.Hour
	defaultDLQRetention    = 90 * 24 * time.Hour
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type publishedOutbox interface {
	DeletePublishedBefore(tx *gorm.DB, cutoff time.Time) (int64, error)
	CountPending(tx *gorm.DB) (int64, error)
}

type deadLetters interface {
	DeleteFailedBefore(tx *gorm.DB, cutoff time.Time) (int64, error)
}

type OutboxRetentionParams struct {
	Logger          *logger.Logger
	DB              txRunner
	Outbox          publishedOutbox
	DLQ             deadLetters
	OutboxRetention time.Duration
	DLQRetention    time.Duration
}

// OutboxRetentionJob prunes published outbox rows and old dead letters.
// Unpublished rows are never touched.
type OutboxRetentionJob struct {
	logg            *logger.Logger
	db              txRunner
	outbox          publishedOutbox
	dlq             deadLetters
	outboxRetention time.Duration
	dlqRetention    time.Duration
	now             func() time.Time
}

func NewOutboxRetentionJob(params OutboxRetentionParams) (*OutboxRetentionJob, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.DB == nil:
		return nil, errors.New("db runner required")
	case params.Outbox == nil:
		return nil, errors.New("outbox repository required")
	case params.DLQ == nil:
		return nil, errors.New("dlq repository required")
	}
	outboxRetention := params.OutboxRetention
	if outboxRetention <= 0 {
		outboxRetention = defaultOutboxRetention
	}
	dlqRetention := params.DLQRetention
	if dlqRetention <= 0 {
		dlqRetention = defaultDLQRetention
	}
	return &OutboxRetentionJob{
		logg:            params.Logger,
		db:              params.DB,
		outbox:          params.Outbox,
		dlq:             params.DLQ,
		outboxRetention: outboxRetention,
		dlqRetention:    dlqRetention,
		now:             time.Now,
	}, nil
}

func (j *OutboxRetentionJob) Name() string { return "outbox_retention" }

func (j *OutboxRetentionJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	outboxCutoff := now.Add(-j.outboxRetention)
	dlqCutoff := now.Add(-j.dlqRetention)

	var published, dead, pending int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		if published, err = j.outbox.DeletePublishedBefore(tx, outboxCutoff); err != nil {
			return fmt.Errorf("delete published events: %w", err)
		}
		if dead, err = j.dlq.DeleteFailedBefore(tx, dlqCutoff); err != nil {
			return fmt.Errorf("delete dead letters: %w", err)
		}
		if pending, err = j.outbox.CountPending(tx); err != nil {
			return fmt.Errorf("count pending events: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"outbox_cutoff":     outboxCutoff,
		"dlq_cutoff":        dlqCutoff,
		"published_deleted": published,
		"dlq_deleted":       dead,
		"pending":           pending,
	}), "cron.outbox_retention")
	return nil
}
