package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/registry"
)

type fakeTx struct{}

func (fakeTx) Ping(context.Context) error { return nil }

func (fakeTx) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error { return fn(nil) }

type fakeRepo struct {
	events    []models.OutboxEvent
	fetched   bool
	published []uuid.UUID
	failed    []uuid.UUID
	terminal  []uuid.UUID
}

func (r *fakeRepo) FetchUnpublishedForPublish(*gorm.DB, int, int) ([]models.OutboxEvent, error) {
	if r.fetched {
		return nil, nil
	}
	r.fetched = true
	return r.events, nil
}

func (r *fakeRepo) MarkPublishedTx(_ *gorm.DB, id uuid.UUID) error {
	r.published = append(r.published, id)
	return nil
}

func (r *fakeRepo) MarkFailedTx(_ *gorm.DB, id uuid.UUID, _ error) error {
	r.failed = append(r.failed, id)
	return nil
}

func (r *fakeRepo) MarkTerminalTx(_ *gorm.DB, id uuid.UUID, _ error, _ int) error {
	r.terminal = append(r.terminal, id)
	return nil
}

type fakeDLQ struct {
	entries []models.OutboxDLQ
}

func (d *fakeDLQ) InsertTx(_ *gorm.DB, entry models.OutboxDLQ) error {
	d.entries = append(d.entries, entry)
	return nil
}

type fakeRegistry struct {
	err error
}

func (r fakeRegistry) Resolve(event models.OutboxEvent) (*registry.ResolvedEvent, error) {
	if r.err != nil {
		return nil, r.err
	}
	return &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{EventType: event.EventType, Topic: "notify-topic"},
		Envelope:   outbox.PayloadEnvelope{EventID: event.ID.String(), OccurredAt: time.Now()},
	}, nil
}

type fakeTopic struct {
	errs     []error
	messages []*gcppubsub.Message
}

func (f *fakeTopic) Publish(_ context.Context, msg *gcppubsub.Message) (string, error) {
	f.messages = append(f.messages, msg)
	if len(f.errs) == 0 {
		return "msg-id", nil
	}
	err := f.errs[0]
	f.errs = f.errs[1:]
	return "", err
}

func newEvent(attempts int) models.OutboxEvent {
	payload, _ := json.Marshal(outbox.PayloadEnvelope{Version: 1, EventID: uuid.NewString(), Data: json.RawMessage(`{"kind":"order_confirmation"}`)})
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventNotificationRequested,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       payload,
		AttemptCount:  attempts,
	}
}

func newTestPublisher(t *testing.T, repo *fakeRepo, dlq *fakeDLQ, reg resolver, topic *fakeTopic, jobs *metrics.JobMetrics) *Publisher {
	t.Helper()
	p, err := NewPublisher(PublisherParams{
		Outbox:     config.OutboxConfig{BatchSize: 10, PollIntervalMS: 1, MaxAttempts: 3},
		Logger:     logger.New(logger.Options{ServiceName: "outbox-test", Output: io.Discard}),
		DB:         fakeTx{},
		Repository: repo,
		DLQ:        dlq,
		Registry:   reg,
		Topics: func(name string) topicPublisher {
			if name != "notify-topic" {
				return nil
			}
			return topic
		},
		Metrics: jobs,
	})
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}
	return p
}

func TestProcessBatchContinuesAfterTransientFailure(t *testing.T) {
	repo := &fakeRepo{events: []models.OutboxEvent{newEvent(0), newEvent(0)}}
	topic := &fakeTopic{errs: []error{errors.New("transient")}}
	p := newTestPublisher(t, repo, &fakeDLQ{}, fakeRegistry{}, topic, nil)

	processed, err := p.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch: %v", err)
	}
	if !processed {
		t.Fatal("expected batch to report processed")
	}
	if len(repo.failed) != 1 || repo.failed[0] != repo.events[0].ID {
		t.Fatalf("expected first row marked failed, got %v", repo.failed)
	}
	if len(repo.published) != 1 || repo.published[0] != repo.events[1].ID {
		t.Fatalf("expected second row published, got %v", repo.published)
	}
	attrs := topic.messages[1].Attributes
	if attrs["event_type"] != string(enums.EventNotificationRequested) || attrs["aggregate_type"] != "order" {
		t.Fatalf("unexpected attributes %v", attrs)
	}
}

func TestProcessBatchDeadLettersUnresolvableRows(t *testing.T) {
	repo := &fakeRepo{events: []models.OutboxEvent{newEvent(0)}}
	dlq := &fakeDLQ{}
	reg := fakeRegistry{err: registry.NewNonRetryableError(errors.New("unsupported event type"))}
	p := newTestPublisher(t, repo, dlq, reg, &fakeTopic{}, nil)

	if _, err := p.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch: %v", err)
	}
	if len(dlq.entries) != 1 || dlq.entries[0].ErrorReason != enums.OutboxDLQReasonNonRetryable {
		t.Fatalf("expected one non-retryable dlq entry, got %+v", dlq.entries)
	}
	if len(repo.terminal) != 1 {
		t.Fatalf("expected row marked terminal")
	}
}

func TestProcessBatchDeadLettersAfterMaxAttempts(t *testing.T) {
	repo := &fakeRepo{events: []models.OutboxEvent{newEvent(2)}}
	dlq := &fakeDLQ{}
	topic := &fakeTopic{errs: []error{errors.New("still down")}}
	p := newTestPublisher(t, repo, dlq, fakeRegistry{}, topic, nil)

	if _, err := p.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch: %v", err)
	}
	if len(dlq.entries) != 1 || dlq.entries[0].ErrorReason != enums.OutboxDLQReasonMaxAttempts {
		t.Fatalf("expected max_attempts dlq entry, got %+v", dlq.entries)
	}
	if len(repo.failed) != 0 {
		t.Fatalf("terminal rows should not also be marked failed")
	}
}

func TestProcessBatchMissingTopicIsNonRetryable(t *testing.T) {
	repo := &fakeRepo{events: []models.OutboxEvent{newEvent(0)}}
	dlq := &fakeDLQ{}
	p := newTestPublisher(t, repo, dlq, fakeRegistry{}, nil, nil)
	p.topics = func(string) topicPublisher { return nil }

	if _, err := p.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch: %v", err)
	}
	if len(dlq.entries) != 1 {
		t.Fatalf("expected dlq entry when no publisher is configured")
	}
}

func TestRunTracksBatchesAndStopsOnCancel(t *testing.T) {
	reg := prometheus.NewRegistry()
	jobs := metrics.NewJobMetrics(reg)
	repo := &fakeRepo{events: []models.OutboxEvent{newEvent(0)}}
	p := newTestPublisher(t, repo, &fakeDLQ{}, fakeRegistry{}, &fakeTopic{}, jobs)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := p.Run(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if len(repo.published) != 1 {
		t.Fatalf("expected one published row, got %d", len(repo.published))
	}
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if len(mfs) == 0 {
		t.Fatal("expected job metrics to be collected")
	}
}

func TestNextBackoffCaps(t *testing.T) {
	if got := nextBackoff(time.Second, time.Second, 3*time.Second); got != 2*time.Second {
		t.Fatalf("expected 2s got %s", got)
	}
	if got := nextBackoff(2*time.Second, time.Second, 3*time.Second); got != 3*time.Second {
		t.Fatalf("expected cap 3s got %s", got)
	}
}
