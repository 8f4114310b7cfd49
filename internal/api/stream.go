package api

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Stream message types.
const (
	StreamInactivity  = "inactivity"
	StreamTaskTimeout = "task_timeout"
)

// StreamMessage is pushed to websocket subscribers when a session timer
// produces a result nobody asked for.
type StreamMessage struct {
	Type     string    `json:"type"`
	Seq      int64     `json:"seq"`
	ServerTS time.Time `json:"server_ts"`
	Result   any       `json:"result"`
}

const clientBuffer = 16

type subscriber struct {
	send chan []byte
}

// hub fans a session's timer results out to its stream subscribers. A
// subscriber whose buffer is full is dropped rather than blocking the
// session's timer goroutine.
type hub struct {
	mu          sync.Mutex
	seq         int64
	subscribers map[*subscriber]struct{}
	closed      bool
}

func newHub() *hub {
	return &hub{subscribers: make(map[*subscriber]struct{})}
}

func (h *hub) subscribe() (*subscriber, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, false
	}
	sub := &subscriber{send: make(chan []byte, clientBuffer)}
	h.subscribers[sub] = struct{}{}
	return sub, true
}

func (h *hub) unsubscribe(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subscribers[sub]; ok {
		delete(h.subscribers, sub)
		close(sub.send)
	}
}

func (h *hub) publish(typ string, result any, now time.Time) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}

	h.seq++
	data, err := json.Marshal(StreamMessage{Type: typ, Seq: h.seq, ServerTS: now, Result: result})
	if err != nil {
		return fmt.Errorf("marshal stream message: %w", err)
	}

	for sub := range h.subscribers {
		select {
		case sub.send <- data:
		default:
			delete(h.subscribers, sub)
			close(sub.send)
		}
	}
	return nil
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for sub := range h.subscribers {
		close(sub.send)
	}
	h.subscribers = nil
}
