package pipeline

import (
	"sync"
	"time"

	"github.com/codebuildervaibhav/video-summarizer/internal/monitor"
	"github.com/codebuildervaibhav/video-summarizer/internal/types"
)

const defaultSubBufSize = 64

// Event types
const (
	EventStage  = "stage"
	EventSample = "sample"
)

// Stage event statuses
const (
	StatusStarted   = "started"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Event is one progress frame for a session.
type Event struct {
	Type    string          `json:"type"`
	Session string          `json:"session"`
	Stage   string          `json:"stage,omitempty"`
	Status  string          `json:"status,omitempty"`
	State   types.State     `json:"state,omitempty"`
	Error   string          `json:"error,omitempty"`
	Sample  *monitor.Sample `json:"sample,omitempty"`
	At      time.Time       `json:"at"`
}

type subscriber struct {
	session string
	ch      chan Event
}

// Hub fans progress events out to per-session subscribers. Slow subscribers
// miss frames rather than blocking publishers.
type Hub struct {
	mu          sync.RWMutex
	nextID      int
	subscribers map[int]subscriber
}

func NewHub() *Hub {
	return &Hub{subscribers: make(map[int]subscriber)}
}

// Subscribe registers for events of session.
func (h *Hub) Subscribe(session string, buffer int) (int, <-chan Event) {
	if buffer <= 0 {
		buffer = defaultSubBufSize
	}
	ch := make(chan Event, buffer)

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subscribers[id] = subscriber{session: session, ch: ch}
	h.mu.Unlock()

	return id, ch
}

// Unsubscribe closes the subscriber's channel.
func (h *Hub) Unsubscribe(id int) {
	h.mu.Lock()
	sub, ok := h.subscribers[id]
	if ok {
		delete(h.subscribers, id)
	}
	h.mu.Unlock()

	if ok {
		close(sub.ch)
	}
}

func (h *Hub) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subscribers {
		if sub.session != e.Session {
			continue
		}
		select {
		case sub.ch <- e:
		default:
		}
	}
}
