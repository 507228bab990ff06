// Package events delivers post-commit notifications about user state changes.
// Delivery runs on a background worker pool and never feeds back into the
// transaction that produced the event.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/user-management-api/internal/models"
	"github.com/noah-isme/user-management-api/pkg/jobs"
	"github.com/noah-isme/user-management-api/pkg/middleware/requestid"
)

const (
	ResultDelivered   = "delivered"
	ResultRetry       = "retry"
	ResultDeadLetter  = "dead_letter"
	ResultEnqueueFail = "enqueue_failed"
)

// Publisher delivers a single event to one destination.
type Publisher interface {
	Publish(ctx context.Context, event models.Event) error
}

// Sink binds a publisher to the topics it receives. No topics means every topic.
type Sink struct {
	Name      string
	Topics    []string
	Publisher Publisher
}

func (s Sink) accepts(topic string) bool {
	if len(s.Topics) == 0 {
		return true
	}
	for _, t := range s.Topics {
		if t == topic {
			return true
		}
	}
	return false
}

// Recorder receives delivery outcomes, typically for metrics.
type Recorder interface {
	RecordEventPublished(topic, sink, result string)
}

// Config tunes the delivery pool.
type Config struct {
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
}

type delivery struct {
	sink  Sink
	event models.Event
}

// Dispatcher fans events out to sinks through a retrying job queue.
type Dispatcher struct {
	queue      *jobs.Queue
	sinks      []Sink
	deadLetter DeadLetterStore
	recorder   Recorder
	logger     *zap.Logger
	now        func() time.Time
}

// NewDispatcher builds a dispatcher. deadLetter and recorder may be nil.
func NewDispatcher(sinks []Sink, cfg Config, deadLetter DeadLetterStore, recorder Recorder, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{
		sinks:      sinks,
		deadLetter: deadLetter,
		recorder:   recorder,
		logger:     logger,
		now:        time.Now,
	}
	d.queue = jobs.NewQueue("events", d.deliver, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		DeadLetter: d.onDeadLetter,
		Logger:     logger,
	})
	return d
}

// Start launches the delivery workers.
func (d *Dispatcher) Start(ctx context.Context) {
	d.queue.Start(ctx)
}

// Stop halts the workers. Events still buffered go to the dead-letter store.
func (d *Dispatcher) Stop() {
	d.queue.Stop()
}

// Shutdown delivers buffered events until ctx is done, then stops. Whatever is left
// when the deadline passes is dead-lettered.
func (d *Dispatcher) Shutdown(ctx context.Context) {
	if err := d.queue.Drain(ctx); err != nil {
		d.logger.Warn("event drain incomplete", zap.Error(err))
	}
	d.queue.Stop()
}

// Dispatch enqueues an event for every sink subscribed to topic. It never blocks on delivery
// and never returns an error to the caller; failures are logged and dead-lettered.
func (d *Dispatcher) Dispatch(ctx context.Context, topic, userID string, payload interface{}) {
	event, err := d.newEvent(ctx, topic, userID, payload)
	if err != nil {
		d.logger.Warn("event payload rejected", zap.String("topic", topic), zap.String("user_id", userID), zap.Error(err))
		return
	}

	for _, sink := range d.sinks {
		if !sink.accepts(topic) {
			continue
		}
		job := jobs.Job{ID: event.ID, Type: sink.Name, Payload: delivery{sink: sink, event: event}}
		if err := d.queue.Enqueue(job); err != nil {
			d.record(topic, sink.Name, ResultEnqueueFail)
			d.logger.Warn("event enqueue failed", zap.String("topic", topic), zap.String("sink", sink.Name), zap.String("event_id", event.ID), zap.Error(err))
			d.onDeadLetter(context.Background(), job, err)
		}
	}
}

func (d *Dispatcher) newEvent(ctx context.Context, topic, userID string, payload interface{}) (models.Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return models.Event{}, fmt.Errorf("marshal event payload: %w", err)
	}
	return models.Event{
		ID:         uuid.NewString(),
		Topic:      topic,
		UserID:     userID,
		RequestID:  requestid.FromContext(ctx),
		Payload:    raw,
		OccurredAt: d.now().UTC(),
	}, nil
}

func (d *Dispatcher) deliver(ctx context.Context, job jobs.Job) error {
	item, ok := job.Payload.(delivery)
	if !ok {
		return nil
	}
	if err := item.sink.Publisher.Publish(ctx, item.event); err != nil {
		d.record(item.event.Topic, item.sink.Name, ResultRetry)
		return fmt.Errorf("%s publish %s: %w", item.sink.Name, item.event.Topic, err)
	}
	d.record(item.event.Topic, item.sink.Name, ResultDelivered)
	return nil
}

func (d *Dispatcher) onDeadLetter(ctx context.Context, job jobs.Job, cause error) {
	item, ok := job.Payload.(delivery)
	if !ok {
		return
	}
	d.record(item.event.Topic, item.sink.Name, ResultDeadLetter)
	d.logger.Error("event dead-lettered",
		zap.String("topic", item.event.Topic),
		zap.String("sink", item.sink.Name),
		zap.String("event_id", item.event.ID),
		zap.String("user_id", item.event.UserID),
		zap.Int("attempts", job.Attempt),
		zap.Error(cause),
	)
	if d.deadLetter == nil {
		return
	}
	entry := DeadLetter{
		Event:    item.event,
		Sink:     item.sink.Name,
		Attempts: job.Attempt,
		FailedAt: d.now().UTC(),
	}
	if cause != nil {
		entry.Error = cause.Error()
	}
	if err := d.deadLetter.Push(ctx, entry); err != nil {
		d.logger.Error("dead-letter push failed", zap.String("event_id", item.event.ID), zap.Error(err))
	}
}

func (d *Dispatcher) record(topic, sink, result string) {
	if d.recorder != nil {
		d.recorder.RecordEventPublished(topic, sink, result)
	}
}

// Emitter is satisfied by Dispatcher and Noop.
type Emitter interface {
	Dispatch(ctx context.Context, topic, userID string, payload interface{})
}

// Noop discards every event. Used when notifications are disabled.
type Noop struct{}

// Dispatch implements the dispatcher contract.
func (Noop) Dispatch(context.Context, string, string, interface{}) {}
