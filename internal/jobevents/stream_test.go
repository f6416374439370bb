package jobevents

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type stubSource struct {
	events     chan Event
	subscribed chan struct{}
	err        error
}

func newStubSource(buffer int) *stubSource {
	return &stubSource{events: make(chan Event, buffer), subscribed: make(chan struct{})}
}

func (s *stubSource) Subscribe(ctx context.Context) (<-chan Event, error) {
	if s.err != nil {
		return nil, s.err
	}
	close(s.subscribed)
	return s.events, nil
}

func TestEventStreamCustomClockAndPayload(t *testing.T) {
	fixed := time.Date(2030, time.January, 12, 8, 30, 0, 0, time.UTC)
	source := newStubSource(1)
	handler := NewEventStreamHandler(source, WithHeartbeatInterval(0), WithNowFunc(func() time.Time { return fixed }))

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	ctx, cancel := context.WithCancel(req.Context())
	defer cancel()
	req = req.WithContext(ctx)

	rr := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		handler.ServeHTTP(rr, req)
		close(done)
	}()

	select {
	case <-source.subscribed:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("event source was not subscribed")
	}

	source.events <- Event{Type: EventDone, JobID: "job-1", Status: "done"}

	// The handler must return right after the terminal event without
	// waiting for the channel to close, so leave it open here: a test
	// that closes it immediately can't distinguish "stopped because of
	// the done event" from "stopped because the channel closed".
	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("handler did not terminate after a terminal event")
	}

	body := rr.Body.String()
	require.Contains(t, body, "event: done")
	require.Contains(t, body, `"job_id":"job-1"`)
}

func TestEventStreamStopsAfterTerminalEventEvenWithMoreQueued(t *testing.T) {
	source := newStubSource(2)
	handler := NewEventStreamHandler(source, WithHeartbeatInterval(0))

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	ctx, cancel := context.WithCancel(req.Context())
	defer cancel()
	req = req.WithContext(ctx)

	rr := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		handler.ServeHTTP(rr, req)
		close(done)
	}()

	select {
	case <-source.subscribed:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("event source was not subscribed")
	}

	// Queue a terminal event followed by a bogus progress event that
	// should never be read: the handler must return as soon as it sees
	// the failed event, not keep draining the channel.
	source.events <- Event{Type: EventFailed, JobID: "job-1", Status: "failed", Error: "boom"}
	source.events <- Event{Type: EventProgress, JobID: "job-1", Status: "running"}

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("handler did not terminate after a terminal event")
	}

	body := rr.Body.String()
	require.Contains(t, body, "event: failed")
	require.NotContains(t, body, "event: progress")
}

func TestEventStreamRejectsNonGet(t *testing.T) {
	handler := NewEventStreamHandler(newStubSource(1))
	req := httptest.NewRequest(http.MethodPost, "/events", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestEventStreamUnavailableWhenSourceNil(t *testing.T) {
	handler := NewEventStreamHandler(nil)
	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestEventStreamSubscribeErrorIsSurfaced(t *testing.T) {
	source := newStubSource(1)
	source.err = context.Canceled
	handler := NewEventStreamHandler(source)

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), context.Canceled.Error()))
}

func TestBusPublishReachesSubscriber(t *testing.T) {
	bus := NewBus()
	source := bus.ForJob("job-1")

	ch, err := source.Subscribe(context.Background())
	require.NoError(t, err)

	bus.Publish(Event{Type: EventProgress, JobID: "job-1", Status: "running", Current: 1, Total: 2})

	select {
	case ev := <-ch:
		require.Equal(t, EventProgress, ev.Type)
	case <-time.After(time.Second):
		t.Fatal("did not receive published event")
	}
}
