package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/dezko/dezko-backend/pkg/config"
	"github.com/dezko/dezko-backend/pkg/db/models"
	"github.com/dezko/dezko-backend/pkg/enums"
	"github.com/dezko/dezko-backend/pkg/logger"
	"github.com/dezko/dezko-backend/pkg/metrics"
	"github.com/dezko/dezko-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize      = 50
	defaultPollInterval   = 500 * time.Millisecond
	defaultMaxAttempts    = 10
	defaultConcurrency    = 8
	defaultPublishTimeout = 15 * time.Second
	maxBackoff            = 10 * time.Second
	jitterWindow          = 250 * time.Millisecond
)

// errBlockedByEarlier marks a row skipped because an older row for the same
// aggregate failed in this batch. It is not counted as an attempt.
var errBlockedByEarlier = errors.New("earlier event for aggregate not yet published")

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type pinger interface {
	Ping(context.Context) error
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type dlqRepository interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) (string, error)
}

type publisherFactory func(topic string) publisher

type ServiceParams struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         dbClient
	PubSub     pinger
	Repository outboxRepository
	Registry   registryResolver
	DLQ        dlqRepository
	Publishers publisherFactory
	Metrics    *metrics.OutboxMetrics
}

// Service relays committed outbox rows to Pub/Sub. A batch is claimed with
// FOR UPDATE SKIP LOCKED, published with bounded concurrency across
// aggregates and strictly in order within one aggregate, and then settled
// row by row in the same transaction.
type Service struct {
	logg         *logger.Logger
	db           dbClient
	pubsub       pinger
	repo         outboxRepository
	registry     registryResolver
	dlq          dlqRepository
	publishers   publisherFactory
	metrics      *metrics.OutboxMetrics
	batchSize    int
	maxAttempts  int
	concurrency  int
	pollInterval time.Duration
}

// delivery is one claimed row and what happened to it.
type delivery struct {
	event    models.OutboxEvent
	resolved *registry.ResolvedEvent
	err      error
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Config == nil:
		return nil, errors.New("config is required")
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.PubSub == nil:
		return nil, errors.New("pubsub client is required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository is required")
	case params.Registry == nil:
		return nil, errors.New("event registry is required")
	case params.DLQ == nil:
		return nil, errors.New("dlq repository is required")
	case params.Publishers == nil:
		return nil, errors.New("publisher factory is required")
	}

	cfg := params.Config.Outbox
	return &Service{
		logg:         params.Logger,
		db:           params.DB,
		pubsub:       params.PubSub,
		repo:         params.Repository,
		registry:     params.Registry,
		dlq:          params.DLQ,
		publishers:   params.Publishers,
		metrics:      params.Metrics,
		batchSize:    positiveOr(cfg.BatchSize, defaultBatchSize),
		maxAttempts:  positiveOr(cfg.MaxAttempts, defaultMaxAttempts),
		concurrency:  positiveOr(cfg.Concurrency, defaultConcurrency),
		pollInterval: positiveDurationOr(time.Duration(cfg.PollIntervalMS)*time.Millisecond, defaultPollInterval),
	}, nil
}

// Run relays batches until ctx is cancelled. An empty batch waits one poll
// interval; a failing batch backs off exponentially up to maxBackoff.
func (s *Service) Run(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	if err := s.pubsub.Ping(ctx); err != nil {
		return fmt.Errorf("pubsub ping failed: %w", err)
	}

	wait := s.pollInterval
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		claimed, err := s.processBatch(ctx)
		switch {
		case err != nil:
			wait = nextBackoff(wait, s.pollInterval, maxBackoff)
			s.logg.Error(s.logg.WithField(ctx, "retry_in_ms", wait.Milliseconds()), "outbox.batch_failed", err)
		case claimed > 0:
			wait = s.pollInterval
			continue
		default:
			wait = s.pollInterval
		}
		if err := sleep(ctx, withJitter(wait)); err != nil {
			return err
		}
	}
}

// processBatch returns how many rows it claimed.
func (s *Service) processBatch(ctx context.Context) (int, error) {
	claimed := 0
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return fmt.Errorf("claim batch: %w", err)
		}
		claimed = len(events)
		if claimed == 0 {
			return nil
		}

		deliveries := make([]delivery, len(events))
		for i, event := range events {
			deliveries[i] = delivery{event: event}
			deliveries[i].resolved, deliveries[i].err = s.registry.Resolve(event)
		}
		s.publishAll(ctx, deliveries)

		for _, d := range deliveries {
			if err := s.settle(ctx, tx, d); err != nil {
				return err
			}
		}
		return nil
	})
	return claimed, err
}

// publishAll fans deliveries out per aggregate. Rows of one aggregate go out
// sequentially and the first failure holds back the rest, so subscribers
// never see a booking's paid event before its created event.
func (s *Service) publishAll(ctx context.Context, deliveries []delivery) {
	var order []uuid.UUID
	byAggregate := map[uuid.UUID][]int{}
	for i, d := range deliveries {
		if d.err != nil {
			continue
		}
		id := d.event.AggregateID
		if _, seen := byAggregate[id]; !seen {
			order = append(order, id)
		}
		byAggregate[id] = append(byAggregate[id], i)
	}

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for _, id := range order {
		indexes := byAggregate[id]
		g.Go(func() error {
			var blocked bool
			for _, i := range indexes {
				if blocked {
					deliveries[i].err = errBlockedByEarlier
					continue
				}
				if err := s.publish(ctx, deliveries[i]); err != nil {
					deliveries[i].err = err
					blocked = true
				}
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (s *Service) publish(ctx context.Context, d delivery) error {
	topic := d.resolved.Descriptor.Topic
	pub := s.publishers(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("no publisher for topic %q", topic))
	}
	env := d.resolved.Envelope
	msg := &gcppubsub.Message{
		Data:        d.event.Payload,
		OrderingKey: d.event.AggregateID.String(),
		Attributes: map[string]string{
			"event_id":       env.EventID,
			"event_type":     string(d.event.EventType),
			"aggregate_type": string(d.event.AggregateType),
			"aggregate_id":   d.event.AggregateID.String(),
			"schema_version": strconv.Itoa(env.Version),
			"occurred_at":    env.OccurredAt.UTC().Format(time.RFC3339Nano),
		},
	}
	publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()
	_, err := pub.Publish(publishCtx, msg)
	return err
}

// settle records the outcome of one delivery. Only bookkeeping failures are
// returned; they roll back the whole batch.
func (s *Service) settle(ctx context.Context, tx *gorm.DB, d delivery) error {
	event := d.event
	logCtx := s.logg.WithFields(ctx, deliveryFields(d))
	eventType := string(event.EventType)

	switch {
	case d.err == nil:
		if err := s.repo.MarkPublishedTx(tx, event.ID); err != nil {
			return fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		s.metrics.Record(eventType, metrics.PublishPublished)
		s.metrics.ObserveLag(eventType, d.resolved.Envelope.OccurredAt)
		s.logg.Debug(logCtx, "outbox.published")
		return nil

	case errors.Is(d.err, errBlockedByEarlier):
		s.logg.Debug(logCtx, "outbox.held_back")
		return nil

	case d.resolved == nil, registry.IsNonRetryable(d.err):
		return s.deadLetter(logCtx, tx, event, enums.OutboxDLQReasonNonRetryable, d.err)

	case event.AttemptCount+1 >= s.maxAttempts:
		return s.deadLetter(logCtx, tx, event, enums.OutboxDLQReasonMaxAttempts,
			fmt.Errorf("gave up after %d attempts: %w", event.AttemptCount+1, d.err))
	}

	s.logg.Warn(s.logg.WithField(logCtx, "error", d.err.Error()), "outbox.publish_failed")
	if err := s.repo.MarkFailedTx(tx, event.ID, d.err); err != nil {
		return fmt.Errorf("mark failed %s: %w", event.ID, err)
	}
	s.metrics.Record(eventType, metrics.PublishRetried)
	return nil
}

func (s *Service) deadLetter(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error) error {
	s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
		"error_reason": reason,
		"error":        cause.Error(),
	}), "outbox.dead_lettered")

	msg := cause.Error()
	entry := models.OutboxDLQ{
		EventID:       event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		ErrorReason:   reason,
		ErrorMessage:  &msg,
		AttemptCount:  event.AttemptCount,
		FailedAt:      time.Now().UTC(),
	}
	if err := s.dlq.InsertTx(tx, entry); err != nil {
		return fmt.Errorf("insert dlq %s: %w", event.ID, err)
	}
	if err := s.repo.MarkTerminalTx(tx, event.ID, cause, s.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, err)
	}
	s.metrics.Record(string(event.EventType), metrics.PublishDeadLettered)
	return nil
}

func deliveryFields(d delivery) map[string]any {
	fields := map[string]any{
		"outbox_id":      d.event.ID.String(),
		"event_type":     d.event.EventType,
		"aggregate_type": d.event.AggregateType,
		"aggregate_id":   d.event.AggregateID.String(),
		"attempt_count":  d.event.AttemptCount,
	}
	if d.resolved != nil {
		fields["topic"] = d.resolved.Descriptor.Topic
		fields["event_id"] = d.resolved.Envelope.EventID
		if actor := d.resolved.Envelope.Actor; actor != nil {
			fields["actor_id"] = actor.UserID.String()
		}
	}
	return fields
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

func positiveDurationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func nextBackoff(current, base, limit time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	if next := current * 2; next < limit {
		return next
	}
	return limit
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + rand.N(jitterWindow)
}
