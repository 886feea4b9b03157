// Package sse implements the server-sent-events subsystem: long-lived
// subscriber registration per routing path, periodic heartbeats, and
// fan-out publishing.
package sse

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mockrelay/mockrelay/pkg/logging"
)

// Event is one server-sent event.
type Event struct {
	ID   string
	Type string
	Data string
}

// subscriber is one open event-stream connection.
type subscriber struct {
	id     string
	events chan Event
}

// Broker manages event-stream subscribers keyed by routing path.
// Subscriber connections live outside the request/response worker
// lifetime: Register blocks until the client disconnects.
type Broker struct {
	mu   sync.RWMutex
	subs map[string]map[string]*subscriber
	log  *slog.Logger
}

// NewBroker creates an empty broker.
func NewBroker(log *slog.Logger) *Broker {
	if log == nil {
		log = logging.Nop()
	}
	return &Broker{
		subs: make(map[string]map[string]*subscriber),
		log:  log,
	}
}

// Register upgrades the connection to an event stream and blocks until the
// client disconnects. A heartbeat comment is written every heartbeatMillis
// (disabled when non-positive); when pushIDOnConnect is set, the connection
// identifier is pushed as the first event. Returns an error when the
// connection cannot be upgraded.
func (b *Broker) Register(path string, heartbeatMillis int64, pushIDOnConnect bool, w http.ResponseWriter, r *http.Request) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return fmt.Errorf("sse: connection on %s does not support streaming", path)
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sub := &subscriber{
		id:     uuid.NewString(),
		events: make(chan Event, 16),
	}
	b.add(path, sub)
	defer b.remove(path, sub.id)

	b.log.Debug("sse subscriber registered", "path", path, "connection_id", sub.id)

	if pushIDOnConnect {
		writeEvent(w, Event{Type: "connection", ID: sub.id, Data: sub.id})
		flusher.Flush()
	}

	var heartbeat <-chan time.Time
	if heartbeatMillis > 0 {
		ticker := time.NewTicker(time.Duration(heartbeatMillis) * time.Millisecond)
		defer ticker.Stop()
		heartbeat = ticker.C
	}

	for {
		select {
		case <-r.Context().Done():
			b.log.Debug("sse subscriber disconnected", "path", path, "connection_id", sub.id)
			return nil
		case <-heartbeat:
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()
		case ev := <-sub.events:
			writeEvent(w, ev)
			flusher.Flush()
		}
	}
}

// Publish sends an event to every subscriber registered on the path and
// returns the number of subscribers it was delivered to. Subscribers whose
// buffers are full are skipped rather than blocked on.
func (b *Broker) Publish(path string, ev Event) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	delivered := 0
	for _, sub := range b.subs[path] {
		select {
		case sub.events <- ev:
			delivered++
		default:
		}
	}
	return delivered
}

// SubscriberCount returns the number of open subscriptions on the path.
func (b *Broker) SubscriberCount(path string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[path])
}

func (b *Broker) add(path string, sub *subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs[path] == nil {
		b.subs[path] = make(map[string]*subscriber)
	}
	b.subs[path][sub.id] = sub
}

func (b *Broker) remove(path, id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs[path], id)
	if len(b.subs[path]) == 0 {
		delete(b.subs, path)
	}
}

// writeEvent writes one event in text/event-stream framing. Multi-line
// data is split into repeated data: fields.
func writeEvent(w http.ResponseWriter, ev Event) {
	if ev.ID != "" {
		fmt.Fprintf(w, "id: %s\n", ev.ID)
	}
	if ev.Type != "" {
		fmt.Fprintf(w, "event: %s\n", ev.Type)
	}
	for _, line := range strings.Split(ev.Data, "\n") {
		fmt.Fprintf(w, "data: %s\n", line)
	}
	fmt.Fprint(w, "\n")
}
