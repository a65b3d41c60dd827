package devtools

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/reactor/pkg/reactive"
)

// EventType identifies a stream event.
type EventType string

const (
	EventBatchStarted   EventType = "batch_started"
	EventBatchCommitted EventType = "batch_committed"
	EventBatchDeferred  EventType = "batch_deferred"
	EventFlush          EventType = "flush"
	EventDiagnostic     EventType = "diagnostic"
)

// Event is sent to stream clients as JSON.
type Event struct {
	Type       EventType `json:"type"`
	Time       time.Time `json:"time"`
	Batch      string    `json:"batch,omitempty"`
	Writes     int       `json:"writes,omitempty"`
	Pending    int       `json:"pending,omitempty"`
	ElapsedMS  float64   `json:"elapsedMs,omitempty"`
	Iterations int       `json:"iterations,omitempty"`
	Code       string    `json:"code,omitempty"`
	Message    string    `json:"message,omitempty"`

	// Diagnostic is the full coded diagnostic, for diagnostic events.
	Diagnostic json.RawMessage `json:"diagnostic,omitempty"`
}

// Stream broadcasts scheduler events to WebSocket clients. It implements
// reactive.Observer; events are queued without blocking the runtime and
// dropped when the queue is full.
type Stream struct {
	reactive.NopObserver

	clients  map[*websocket.Conn]bool
	mu       sync.RWMutex
	upgrader websocket.Upgrader
	events   chan Event
	logger   *slog.Logger
}

// NewStream creates a stream with room for buffer queued events.
func NewStream(buffer int, logger *slog.Logger) *Stream {
	if buffer <= 0 {
		buffer = 256
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Stream{
		clients: make(map[*websocket.Conn]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // devtools are bound to a local address
			},
		},
		events: make(chan Event, buffer),
		logger: logger,
	}
}

// HandleWebSocket upgrades the connection and keeps it registered until the
// client disconnects.
func (s *Stream) HandleWebSocket(w http.ResponseWriter, req *http.Request) {
	conn, err := s.upgrader.Upgrade(w, req, nil)
	if err != nil {
		return
	}

	s.mu.Lock()
	s.clients[conn] = true
	s.mu.Unlock()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.mu.Lock()
	delete(s.clients, conn)
	s.mu.Unlock()
	conn.Close()
}

// Run delivers queued events until ctx is done, then closes every client.
func (s *Stream) Run(ctx context.Context) {
	defer s.Close()
	for {
		select {
		case ev := <-s.events:
			s.broadcast(ev)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Stream) publish(ev Event) {
	ev.Time = time.Now()
	select {
	case s.events <- ev:
	default:
		s.logger.Debug("devtools stream full, dropping event", "type", ev.Type)
	}
}

func (s *Stream) broadcast(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}

	s.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(s.clients))
	for client := range s.clients {
		clients = append(clients, client)
	}
	s.mu.RUnlock()

	for _, client := range clients {
		if err := client.WriteMessage(websocket.TextMessage, data); err != nil {
			s.mu.Lock()
			delete(s.clients, client)
			s.mu.Unlock()
			client.Close()
		}
	}
}

// ClientCount returns the number of connected clients.
func (s *Stream) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Close closes all client connections.
func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for client := range s.clients {
		client.Close()
		delete(s.clients, client)
	}
}

// BatchStarted implements reactive.Observer.
func (s *Stream) BatchStarted(b reactive.BatchInfo) {
	s.publish(Event{Type: EventBatchStarted, Batch: b.ID.String()})
}

// BatchCommitted implements reactive.Observer.
func (s *Stream) BatchCommitted(b reactive.BatchInfo, elapsed time.Duration) {
	s.publish(Event{
		Type:      EventBatchCommitted,
		Batch:     b.ID.String(),
		Writes:    b.Writes,
		ElapsedMS: float64(elapsed.Microseconds()) / 1000,
	})
}

// BatchDeferred implements reactive.Observer.
func (s *Stream) BatchDeferred(b reactive.BatchInfo) {
	s.publish(Event{Type: EventBatchDeferred, Batch: b.ID.String(), Pending: b.Pending})
}

// FlushCompleted implements reactive.Observer.
func (s *Stream) FlushCompleted(iterations int) {
	s.publish(Event{Type: EventFlush, Iterations: iterations})
}

// Diagnostic implements reactive.Observer.
func (s *Stream) Diagnostic(d *reactive.Diagnostic) {
	s.publish(Event{
		Type:       EventDiagnostic,
		Code:       d.Code,
		Message:    d.FormatCompact(),
		Diagnostic: json.RawMessage(d.FormatJSON()),
	})
}
