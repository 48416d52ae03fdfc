package cron

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard})
}

type fakeLock struct {
	held     bool
	releases int
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.held {
		return false, nil
	}
	f.held = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.held = false
	f.releases++
	return nil
}

type countingJob struct {
	name string
	err  error
	runs int
}

func (j *countingJob) Name() string { return j.name }

func (j *countingJob) Run(context.Context) error {
	j.runs++
	return j.err
}

func TestSchedulerRunsEveryJobEvenAfterFailure(t *testing.T) {
	failing := &countingJob{name: "fails", err: errors.New("boom")}
	passing := &countingJob{name: "passes"}
	lock := &fakeLock{}
	reg := prometheus.NewRegistry()

	s, err := NewScheduler(SchedulerParams{
		Logger:  testLogger(),
		Jobs:    []Job{failing, nil, passing},
		Lock:    lock,
		Metrics: metrics.NewJobMetrics(reg),
	})
	require.NoError(t, err)
	require.NoError(t, s.runCycle(context.Background()))

	require.Equal(t, 1, failing.runs)
	require.Equal(t, 1, passing.runs)
	require.Equal(t, 1, lock.releases)
	require.False(t, lock.held)

	families, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
}

func TestSchedulerSkipsCycleWhenLockHeld(t *testing.T) {
	job := &countingJob{name: "job"}
	lock := &fakeLock{held: true}
	s, err := NewScheduler(SchedulerParams{Logger: testLogger(), Jobs: []Job{job}, Lock: lock})
	require.NoError(t, err)

	require.NoError(t, s.runCycle(context.Background()))
	require.Zero(t, job.runs)
	require.Zero(t, lock.releases)
}

func TestSchedulerRequiresLock(t *testing.T) {
	_, err := NewScheduler(SchedulerParams{Logger: testLogger()})
	require.Error(t, err)
}

type memoryLockStore struct {
	values map[string]string
}

func (m *memoryLockStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	return true, nil
}

func (m *memoryLockStore) Lookup(_ context.Context, key string) (string, bool, error) {
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *memoryLockStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

func TestRedisLockOnlyReleasesOwnToken(t *testing.T) {
	store := &memoryLockStore{values: map[string]string{}}
	first, err := NewRedisLock(store, "cron", time.Minute)
	require.NoError(t, err)
	second, err := NewRedisLock(store, "cron", time.Minute)
	require.NoError(t, err)

	ok, err := first.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = second.Acquire(context.Background())
	require.NoError(t, err)
	require.False(t, ok)

	// first's lease expired and second took over.
	delete(store.values, "cron")
	ok, err = second.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, first.Release(context.Background()))
	require.Contains(t, store.values, "cron")

	require.NoError(t, second.Release(context.Background()))
	require.NotContains(t, store.values, "cron")
}

func TestOutboxRetentionPrunesOnlyOldRows(t *testing.T) {
	conn := dbtest.Open(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	old := now.Add(-40 * 24 * time.Hour)
	recent := now.Add(-24 * time.Hour)

	insertEvent := func(publishedAt *time.Time) uuid.UUID {
		row := models.OutboxEvent{
			ID:            uuid.New(),
			EventType:     enums.EventNotificationRequested,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Payload:       json.RawMessage(`{}`),
			PublishedAt:   publishedAt,
		}
		require.NoError(t, conn.Create(&row).Error)
		return row.ID
	}
	oldPublished := insertEvent(&old)
	recentPublished := insertEvent(&recent)
	unpublished := insertEvent(nil)

	insertDead := func(failedAt time.Time) {
		require.NoError(t, conn.Create(&models.OutboxDLQ{
			ID:            uuid.New(),
			EventID:       uuid.New(),
			EventType:     enums.EventNotificationRequested,
			AggregateType: enums.AggregateDonation,
			AggregateID:   uuid.New(),
			Payload:       json.RawMessage(`{}`),
			ErrorReason:   enums.OutboxDLQReasonMaxAttempts,
			FailedAt:      failedAt,
		}).Error)
	}
	insertDead(now.Add(-100 * 24 * time.Hour))
	insertDead(recent)

	job, err := NewOutboxRetentionJob(OutboxRetentionParams{
		Logger:          testLogger(),
		DB:              db.NewFromConn(conn),
		Outbox:          outbox.NewRepository(conn),
		DLQ:             outbox.NewDLQRepository(conn),
		OutboxRetention: 30 * 24 * time.Hour,
		DLQRetention:    90 * 24 * time.Hour,
	})
	require.NoError(t, err)
	job.now = func() time.Time { return now }
	require.NoError(t, job.Run(context.Background()))

	var remaining []models.OutboxEvent
	require.NoError(t, conn.Find(&remaining).Error)
	ids := map[uuid.UUID]bool{}
	for _, r := range remaining {
		ids[r.ID] = true
	}
	require.False(t, ids[oldPublished])
	require.True(t, ids[recentPublished])
	require.True(t, ids[unpublished])

	var dead int64
	require.NoError(t, conn.Model(&models.OutboxDLQ{}).Count(&dead).Error)
	require.EqualValues(t, 1, dead)
}

type failingOutbox struct{}

func (failingOutbox) DeletePublishedBefore(*gorm.DB, time.Time) (int64, error) {
	return 0, errors.New("db down")
}

func (failingOutbox) CountPending(*gorm.DB) (int64, error) { return 0, nil }

type noopDLQ struct{}

func (noopDLQ) DeleteFailedBefore(*gorm.DB, time.Time) (int64, error) { return 0, nil }

type passthroughTx struct{}

func (passthroughTx) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error { return fn(nil) }

func TestOutboxRetentionPropagatesErrors(t *testing.T) {
	job, err := NewOutboxRetentionJob(OutboxRetentionParams{
		Logger: testLogger(),
		DB:     passthroughTx{},
		Outbox: failingOutbox{},
		DLQ:    noopDLQ{},
	})
	require.NoError(t, err)
	require.ErrorContains(t, job.Run(context.Background()), "db down")
}
