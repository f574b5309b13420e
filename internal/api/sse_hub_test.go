package api

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"finresearch/internal/research"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubRoutesEventsByRun(t *testing.T) {
	hub := NewSSEHub()
	defer hub.Close()

	a, cancelA := hub.Subscribe("run-a")
	defer cancelA()
	b, cancelB := hub.Subscribe("run-b")
	defer cancelB()

	assert.Equal(t, 1, hub.ClientCount("run-a"))
	assert.Equal(t, 1, hub.ClientCount("run-b"))

	sink := NewSSEEventSink(hub)
	sink.Publish(research.Event{Type: research.EventRunStarted, RunID: "run-a"})

	select {
	case ev := <-a:
		assert.Equal(t, research.EventRunStarted, ev.Type)
	case <-time.After(time.Second):
		t.Fatal("run-a listener did not receive its event")
	}

	select {
	case ev := <-b:
		t.Fatalf("run-b listener received foreign event %v", ev)
	case <-time.After(50 * time.Millisecond):
	}

	cancelA()
	assert.Equal(t, 0, hub.ClientCount("run-a"))
	assert.Equal(t, []string{"run-b"}, hub.ActiveRuns())
}

func TestSubscribeReceivesEventBroadcastImmediately(t *testing.T) {
	hub := NewSSEHub()
	defer hub.Close()

	for i := 0; i < 50; i++ {
		events, cancel := hub.Subscribe("run-now")
		hub.Broadcast(research.Event{Type: research.EventRunStarted, RunID: "run-now"})

		select {
		case ev := <-events:
			assert.Equal(t, research.EventRunStarted, ev.Type)
		case <-time.After(time.Second):
			t.Fatalf("iteration %d: event broadcast right after Subscribe was lost", i)
		}
		cancel()
	}
	assert.Empty(t, hub.ActiveRuns())
}

func TestSubscribeCancelIsIdempotent(t *testing.T) {
	hub := NewSSEHub()
	defer hub.Close()

	_, cancel := hub.Subscribe("run-x")
	cancel()
	cancel()
	assert.Equal(t, 0, hub.ClientCount("run-x"))
}

func TestNilSinkIsSafe(t *testing.T) {
	var s *SSEEventSink
	s.Publish(research.Event{RunID: "x"})
}

func TestHandleSSEStreamsUntilRunEnds(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewSSEHub()
	defer hub.Close()

	r := gin.New()
	r.GET("/events", hub.HandleSSE)
	srv := httptest.NewServer(r)
	defer srv.Close()

	go func() {
		for hub.ClientCount("run-1") == 0 {
			time.Sleep(5 * time.Millisecond)
		}
		hub.Broadcast(research.Event{Type: research.EventPlanReady, RunID: "run-1", Count: 2})
		hub.Broadcast(research.Event{Type: research.EventRunCompleted, RunID: "run-1"})
	}()

	resp, err := http.Get(srv.URL + "/events?run_id=run-1")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream"), resp.Header.Get("Content-Type"))
	assert.Contains(t, string(body), "event:plan_ready")
	assert.Contains(t, string(body), "event:run_completed")
}

func TestHandleSSERequiresRunID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewSSEHub()
	defer hub.Close()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/events", nil)
	hub.HandleSSE(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
