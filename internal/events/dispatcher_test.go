package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/user-management-api/internal/models"
	"github.com/noah-isme/user-management-api/pkg/middleware/requestid"
)

type capturePublisher struct {
	events chan models.Event
	err    error
}

func newCapturePublisher(err error) *capturePublisher {
	return &capturePublisher{events: make(chan models.Event, 16), err: err}
}

func (p *capturePublisher) Publish(_ context.Context, event models.Event) error {
	p.events <- event
	return p.err
}

type memoryDeadLetters struct {
	mu      sync.Mutex
	entries []DeadLetter
	pushed  chan struct{}
}

func (m *memoryDeadLetters) Push(_ context.Context, entry DeadLetter) error {
	m.mu.Lock()
	m.entries = append(m.entries, entry)
	m.mu.Unlock()
	m.pushed <- struct{}{}
	return nil
}

type countingRecorder struct {
	mu      sync.Mutex
	results map[string]int
}

func (r *countingRecorder) RecordEventPublished(topic, sink, result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.results == nil {
		r.results = map[string]int{}
	}
	r.results[sink+":"+result]++
}

func (r *countingRecorder) count(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.results[key]
}

func receive(t *testing.T, ch <-chan models.Event) models.Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
		return models.Event{}
	}
}

func TestDispatchRoutesByTopic(t *testing.T) {
	all := newCapturePublisher(nil)
	eloOnly := newCapturePublisher(nil)
	recorder := &countingRecorder{}
	d := NewDispatcher([]Sink{
		{Name: "redis", Publisher: all},
		{Name: "webhook", Topics: []string{models.TopicEloUpdated}, Publisher: eloOnly},
	}, Config{Workers: 1, RetryDelay: time.Millisecond}, nil, recorder, nil)
	d.Start(context.Background())
	defer d.Stop()

	ctx := requestid.WithValue(context.Background(), "req-42")
	d.Dispatch(ctx, models.TopicAvailabilityUpdated, "u1", map[string]string{"availability": "busy"})
	d.Dispatch(ctx, models.TopicEloUpdated, "u1", map[string]float64{"new_rating": 1216})

	first := receive(t, all.events)
	second := receive(t, all.events)
	webhook := receive(t, eloOnly.events)

	topics := []string{first.Topic, second.Topic}
	assert.ElementsMatch(t, []string{models.TopicAvailabilityUpdated, models.TopicEloUpdated}, topics)
	assert.Equal(t, models.TopicEloUpdated, webhook.Topic)
	assert.Equal(t, "req-42", webhook.RequestID)
	assert.Equal(t, "u1", webhook.UserID)
	assert.JSONEq(t, `{"new_rating":1216}`, string(webhook.Payload))
	assert.NotEmpty(t, webhook.ID)

	select {
	case ev := <-eloOnly.events:
		t.Fatalf("unexpected webhook delivery for %s", ev.Topic)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDispatchDeadLettersAfterRetries(t *testing.T) {
	failing := newCapturePublisher(errors.New("workflow down"))
	store := &memoryDeadLetters{pushed: make(chan struct{}, 1)}
	recorder := &countingRecorder{}
	d := NewDispatcher([]Sink{{Name: "webhook", Publisher: failing}},
		Config{Workers: 1, MaxRetries: 2, RetryDelay: time.Millisecond}, store, recorder, nil)
	d.Start(context.Background())
	defer d.Stop()

	d.Dispatch(context.Background(), models.TopicEloUpdated, "u1", map[string]int{"delta": 16})

	select {
	case <-store.pushed:
	case <-time.After(2 * time.Second):
		t.Fatal("event was not dead-lettered")
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	require.Len(t, store.entries, 1)
	entry := store.entries[0]
	assert.Equal(t, "webhook", entry.Sink)
	assert.Equal(t, 3, entry.Attempts)
	assert.Contains(t, entry.Error, "workflow down")
	assert.Equal(t, 3, recorder.count("webhook:"+ResultRetry))
	assert.Equal(t, 1, recorder.count("webhook:"+ResultDeadLetter))
}

func TestDispatchRejectsUnencodablePayload(t *testing.T) {
	pub := newCapturePublisher(nil)
	d := NewDispatcher([]Sink{{Name: "redis", Publisher: pub}}, Config{Workers: 1}, nil, nil, nil)
	d.Start(context.Background())
	defer d.Stop()

	d.Dispatch(context.Background(), models.TopicJobClaimed, "u1", make(chan int))

	select {
	case <-pub.events:
		t.Fatal("unencodable payload should not be delivered")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDispatchBeforeStartDeadLetters(t *testing.T) {
	store := &memoryDeadLetters{pushed: make(chan struct{}, 1)}
	d := NewDispatcher([]Sink{{Name: "redis", Publisher: newCapturePublisher(nil)}}, Config{}, store, nil, nil)

	d.Dispatch(context.Background(), models.TopicPerformanceMilestone, "u1", map[string]int{"milestone": 10})

	store.mu.Lock()
	defer store.mu.Unlock()
	require.Len(t, store.entries, 1)
	assert.Equal(t, models.TopicPerformanceMilestone, store.entries[0].Event.Topic)
}

func TestShutdownDeliversBufferedEvents(t *testing.T) {
	pub := newCapturePublisher(nil)
	store := &memoryDeadLetters{pushed: make(chan struct{}, 4)}
	d := NewDispatcher([]Sink{{Name: "redis", Publisher: pub}}, Config{Workers: 1}, store, nil, nil)
	d.Start(context.Background())

	for i := 0; i < 3; i++ {
		d.Dispatch(context.Background(), models.TopicJobClaimed, "u1", map[string]int{"n": i})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	d.Shutdown(ctx)

	assert.Len(t, pub.events, 3)
	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Empty(t, store.entries)
}

func TestNoopDispatch(t *testing.T) {
	assert.NotPanics(t, func() {
		Noop{}.Dispatch(context.Background(), models.TopicEloUpdated, "u1", nil)
	})
}
