package api

import (
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"finresearch/internal"
	"finresearch/internal/research"

	"github.com/gin-gonic/gin"
)

// SSEHub streams run progress events to clients subscribed by run ID
type SSEHub struct {
	clients   map[string]map[chan research.Event]bool
	clientsMu sync.RWMutex
	broadcast chan research.Event
	done      chan struct{}
	closeOnce sync.Once

	pingInterval time.Duration
	logger       *internal.Logger
}

// NewSSEHub creates a new SSE hub and starts its loop
func NewSSEHub() *SSEHub {
	hub := &SSEHub{
		clients:      make(map[string]map[chan research.Event]bool),
		broadcast:    make(chan research.Event, 100),
		done:         make(chan struct{}),
		pingInterval: 30 * time.Second,
		logger:       internal.DefaultLogger.With("SSE"),
	}

	go hub.run()
	return hub
}

// Close stops the hub loop
func (h *SSEHub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

func (h *SSEHub) run() {
	for {
		select {
		case <-h.done:
			return

		case event := <-h.broadcast:
			h.clientsMu.RLock()
			for clientChan := range h.clients[event.RunID] {
				select {
				case clientChan <- event:
				default:
					h.logger.Warn("client channel full for run %s, skipping event", event.RunID)
				}
			}
			h.clientsMu.RUnlock()
		}
	}
}

// Broadcast sends an event to all clients listening to its run
func (h *SSEHub) Broadcast(event research.Event) {
	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn("broadcast channel full, dropping event: %s", event.Type)
	}
}

// Subscribe registers a listener for runID. Registration is complete when
// Subscribe returns, so events broadcast afterwards reach the listener. The
// returned cancel func must be called when the listener goes away.
func (h *SSEHub) Subscribe(runID string) (<-chan research.Event, func()) {
	ch := make(chan research.Event, 16)

	h.clientsMu.Lock()
	if h.clients[runID] == nil {
		h.clients[runID] = make(map[chan research.Event]bool)
	}
	h.clients[runID][ch] = true
	h.logger.Debug("client registered for run %s (total clients: %d)", runID, len(h.clients[runID]))
	h.clientsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() { h.unsubscribe(runID, ch) })
	}
}

func (h *SSEHub) unsubscribe(runID string, ch chan research.Event) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	clients, exists := h.clients[runID]
	if !exists {
		return
	}
	delete(clients, ch)
	h.logger.Debug("client unregistered from run %s (remaining clients: %d)", runID, len(clients))
	if len(clients) == 0 {
		delete(h.clients, runID)
	}
}

// HandleSSE streams events for the run named by the run_id query parameter
func (h *SSEHub) HandleSSE(c *gin.Context) {
	runID := c.Query("run_id")
	if runID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "run_id parameter required", "code": "INVALID_INPUT"})
		return
	}

	c.Header("Content-Type", "text/event-stream;charset=utf-8")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	events, cancel := h.Subscribe(runID)
	defer cancel()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case event := <-events:
			eventJSON, err := json.Marshal(event)
			if err != nil {
				h.logger.Error("failed to marshal event: %v", err)
				return true
			}
			c.SSEvent(string(event.Type), string(eventJSON))
			// the stream ends with the run
			return event.Type != research.EventRunCompleted && event.Type != research.EventRunFailed

		case <-time.After(h.pingInterval):
			c.SSEvent("ping", `{"status": "alive", "timestamp": "`+time.Now().Format(time.RFC3339)+`"}`)
			return true

		case <-ctx.Done():
			return false
		}
	})
}

// ActiveRuns returns run IDs with connected clients
func (h *SSEHub) ActiveRuns() []string {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()

	runs := make([]string, 0, len(h.clients))
	for runID := range h.clients {
		runs = append(runs, runID)
	}
	return runs
}

// ClientCount returns the number of connected clients for a run
func (h *SSEHub) ClientCount(runID string) int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients[runID])
}
