// Package broadcast delivers scan progress events to live listeners.
package broadcast

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/okian/lineup/internal/domain/model"
	"github.com/okian/lineup/pkg/logger"
	"github.com/okian/lineup/pkg/metrics"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const (
	defaultSubscriberBuffer = 64
	writeTimeout            = 5 * time.Second
)

type subscriber struct {
	scanID string // empty receives every scan
	ch     chan model.Event
}

// Hub fans events out to WebSocket subscribers. Events for a subscriber whose
// buffer is full are dropped so a slow browser never stalls a scan.
type Hub struct {
	mu      sync.RWMutex
	subs    map[*subscriber]struct{}
	buffer  int
	origins []string
	log     logger.Logger
	done    chan struct{}
	once    sync.Once
}

// HubOption applies a configuration option to the Hub.
type HubOption func(*Hub)

// WithSubscriberBuffer sets how many events may queue per subscriber.
func WithSubscriberBuffer(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

// WithOriginPatterns sets the origins allowed to open a socket.
func WithOriginPatterns(patterns ...string) HubOption {
	return func(h *Hub) {
		h.origins = patterns
	}
}

// NewHub creates an empty Hub.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		subs:   make(map[*subscriber]struct{}),
		buffer: defaultSubscriberBuffer,
		log:    logger.Get().Named("broadcast"),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Publish implements scan.Sink.
func (h *Hub) Publish(_ context.Context, ev model.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs {
		if s.scanID != "" && s.scanID != ev.ScanID {
			continue
		}
		select {
		case s.ch <- ev:
			metrics.RecordEventPublished("websocket")
		default:
			metrics.RecordEventDropped("websocket")
		}
	}
}

// Subscribe registers a listener. The returned cancel func must be called.
func (h *Hub) Subscribe(scanID string) (<-chan model.Event, func()) {
	s := &subscriber{scanID: scanID, ch: make(chan model.Event, h.buffer)}
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	return s.ch, func() {
		h.mu.Lock()
		delete(h.subs, s)
		h.mu.Unlock()
	}
}

// Subscribers returns the number of live subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// ServeHTTP upgrades the request and streams events as JSON messages until
// the client goes away. The optional scan_id query parameter filters events.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.origins})
	if err != nil {
		h.log.Warn(r.Context(), "websocket accept failed", logger.Error(err))
		return
	}
	defer c.Close(websocket.StatusInternalError, "unexpected close")

	ctx := c.CloseRead(r.Context())
	events, cancel := h.Subscribe(r.URL.Query().Get("scan_id"))
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			_ = c.Close(websocket.StatusGoingAway, "server shutting down")
			return
		case ev := <-events:
			wctx, wcancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, c, ev)
			wcancel()
			if err != nil {
				h.log.Debug(ctx, "websocket write failed", logger.Error(err))
				return
			}
		}
	}
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.once.Do(func() { close(h.done) })
}
