package main

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/priyamehta/platetrack-backend/pkg/config"
	"github.com/priyamehta/platetrack-backend/pkg/db/models"
	"github.com/priyamehta/platetrack-backend/pkg/enums"
	"github.com/priyamehta/platetrack-backend/pkg/logger"
)

type fakeRepo struct {
	events    []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
	fetchErr  error
}

func (r *fakeRepo) FetchUnpublished(limit, maxAttempts int) ([]models.OutboxEvent, error) {
	if r.fetchErr != nil {
		return nil, r.fetchErr
	}
	out := make([]models.OutboxEvent, 0, limit)
	for _, e := range r.events {
		if e.PublishedAt != nil || e.AttemptCount >= maxAttempts {
			continue
		}
		out = append(out, e)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *fakeRepo) MarkPublished(id uuid.UUID) error {
	r.published = append(r.published, id)
	for i := range r.events {
		if r.events[i].ID == id {
			now := time.Now().UTC()
			r.events[i].PublishedAt = &now
		}
	}
	return nil
}

func (r *fakeRepo) MarkFailed(id uuid.UUID, err error) error {
	r.failed = append(r.failed, id)
	for i := range r.events {
		if r.events[i].ID == id {
			r.events[i].AttemptCount++
			msg := err.Error()
			r.events[i].LastError = &msg
		}
	}
	return nil
}

type fakePublisher struct {
	messages []*gcppubsub.Message
	errs     map[int]error // index of call -> error
	calls    int
}

type fakeResult struct {
	err error
}

func (r fakeResult) Get(context.Context) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	return "server-id", nil
}

func (p *fakePublisher) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	idx := p.calls
	p.calls++
	p.messages = append(p.messages, msg)
	return fakeResult{err: p.errs[idx]}
}

type okPinger struct{}

func (okPinger) Ping(context.Context) error { return nil }

func newEvent(eventType enums.OutboxEventType, attempts int) models.OutboxEvent {
	payload, _ := json.Marshal(map[string]any{"version": 1})
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     eventType,
		AggregateType: enums.AggregateEntitlementRecord,
		AggregateID:   uuid.New(),
		Payload:       payload,
		CreatedAt:     time.Now().UTC(),
		AttemptCount:  attempts,
	}
}

func newTestService(t *testing.T, repo *fakeRepo, pub *fakePublisher) *Service {
	t.Helper()
	cfg := &config.Config{}
	cfg.Outbox.BatchSize = 10
	cfg.Outbox.MaxAttempts = 3

	svc, err := NewService(ServiceParams{
		Config:     cfg,
		Logger:     logger.New(logger.Options{ServiceName: "outbox-publisher-test"}),
		DB:         okPinger{},
		PubSub:     okPinger{},
		Repository: repo,
		Publisher:  pub,
	})
	require.NoError(t, err)
	return svc
}

func TestProcessBatchPublishesAndMarks(t *testing.T) {
	repo := &fakeRepo{events: []models.OutboxEvent{
		newEvent(enums.EventFamilyCheckedIn, 0),
		newEvent(enums.EventPlatesServed, 0),
	}}
	pub := &fakePublisher{}
	svc := newTestService(t, repo, pub)

	processed, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, processed)
	require.Len(t, repo.published, 2)
	require.Empty(t, repo.failed)

	require.Len(t, pub.messages, 2)
	require.Equal(t, string(enums.EventFamilyCheckedIn), pub.messages[0].Attributes["event_type"])
	require.Equal(t, string(enums.AggregateEntitlementRecord), pub.messages[0].Attributes["aggregate_type"])
	require.NotEmpty(t, pub.messages[0].Data)

	// nothing left to drain
	processed, err = svc.processBatch(context.Background())
	require.NoError(t, err)
	require.Zero(t, processed)
}

func TestProcessBatchRecordsFailureAndContinues(t *testing.T) {
	repo := &fakeRepo{events: []models.OutboxEvent{
		newEvent(enums.EventFamilyCheckedIn, 0),
		newEvent(enums.EventPlatesServed, 0),
	}}
	pub := &fakePublisher{errs: map[int]error{0: errors.New("topic unavailable")}}
	svc := newTestService(t, repo, pub)

	processed, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, processed)
	require.Len(t, repo.failed, 1)
	require.Len(t, repo.published, 1)
	require.Equal(t, repo.events[0].ID, repo.failed[0])
	require.Equal(t, 1, repo.events[0].AttemptCount)
	require.NotNil(t, repo.events[0].LastError)

	// the failed event is retried on the next pass
	processed, err = svc.processBatch(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, processed)
	require.Len(t, repo.published, 2)
}

func TestProcessBatchSkipsEventsPastAttemptCap(t *testing.T) {
	repo := &fakeRepo{events: []models.OutboxEvent{
		newEvent(enums.EventSessionReset, 3), // cap is 3 in newTestService
	}}
	pub := &fakePublisher{}
	svc := newTestService(t, repo, pub)

	processed, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	require.Zero(t, processed)
	require.Zero(t, pub.calls)
}

func TestProcessBatchSurfacesFetchErrors(t *testing.T) {
	repo := &fakeRepo{fetchErr: errors.New("connection reset")}
	svc := newTestService(t, repo, &fakePublisher{})

	_, err := svc.processBatch(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "fetch unpublished")
}

func TestNewServiceValidatesDependencies(t *testing.T) {
	cfg := &config.Config{}
	logg := logger.New(logger.Options{ServiceName: "outbox-publisher-test"})

	_, err := NewService(ServiceParams{Logger: logg, Repository: &fakeRepo{}, Publisher: &fakePublisher{}})
	require.Error(t, err)

	_, err = NewService(ServiceParams{Config: cfg, Logger: logg, Publisher: &fakePublisher{}})
	require.Error(t, err)

	_, err = NewService(ServiceParams{Config: cfg, Logger: logg, Repository: &fakeRepo{}})
	require.Error(t, err)
}

func TestNextBackoffDoublesUpToCap(t *testing.T) {
	base := 500 * time.Millisecond
	b := nextBackoff(0, base, maxBackoff)
	require.Equal(t, time.Second, b)
	b = nextBackoff(8*time.Second, base, maxBackoff)
	require.Equal(t, maxBackoff, b)
}
