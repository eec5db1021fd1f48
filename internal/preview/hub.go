// Package preview serves the built site over HTTP with a live-reload
// channel (server-sent events) that browsers subscribe to.
package preview

import (
	"bufio"
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"git.home.luguber.info/inful/contentforge/internal/build"
	"git.home.luguber.info/inful/contentforge/internal/logfields"
	"git.home.luguber.info/inful/contentforge/internal/metrics"
)

const (
	reloadPayload    = `{"type":"reload"}`
	clientBuffer     = 8
	defaultHeartbeat = 30 * time.Second
)

// Hub manages SSE subscribers and broadcasts reload events to them.
type Hub struct {
	mu        sync.RWMutex
	nextID    int
	clients   map[int]*client
	closed    bool
	heartbeat time.Duration
	recorder  metrics.Recorder
}

type client struct {
	id   int
	ch   chan string
	done chan struct{}
}

// NewHub creates a hub. A nil recorder disables metrics.
func NewHub(recorder metrics.Recorder) *Hub {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &Hub{clients: map[int]*client{}, heartbeat: defaultHeartbeat, recorder: recorder}
}

// ServeHTTP streams reload events to one subscriber until it disconnects or
// the hub is closed.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}
	c := h.register(clientBuffer)
	if c == nil {
		http.Error(w, "live reload shutting down", http.StatusServiceUnavailable)
		return
	}
	defer h.remove(c.id)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	bw := bufio.NewWriter(w)
	send := func(s string) bool {
		if _, err := bw.WriteString(s); err != nil {
			slog.Debug("Live reload write failed", logfields.Error(err))
			return false
		}
		if err := bw.Flush(); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}
	if !send(": connected\n\n") {
		return
	}

	hb := time.NewTicker(h.heartbeat)
	defer hb.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-c.done:
			return
		case <-hb.C:
			if !send(": ping\n\n") {
				return
			}
		case msg := <-c.ch:
			if !send("data: " + msg + "\n\n") {
				return
			}
		}
	}
}

// register adds a subscriber; nil once the hub is closed.
func (h *Hub) register(buffer int) *client {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	c := &client{id: h.nextID, ch: make(chan string, buffer), done: make(chan struct{})}
	h.nextID++
	h.clients[c.id] = c
	h.recorder.SetLiveReloadClients(len(h.clients))
	return c
}

func (h *Hub) remove(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[id]; ok {
		delete(h.clients, id)
		close(c.done)
		h.recorder.SetLiveReloadClients(len(h.clients))
	}
}

// Clients returns the number of connected subscribers.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// NotifyBuildFinished sends a reload event to every subscriber without
// blocking. A subscriber whose buffer is full is dropped.
func (h *Hub) NotifyBuildFinished(_ context.Context, res *build.Result) {
	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return
	}
	snapshot := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		snapshot = append(snapshot, c)
	}
	h.mu.RUnlock()

	dropped := 0
	for _, c := range snapshot {
		select {
		case c.ch <- reloadPayload:
		default:
			dropped++
			h.remove(c.id)
		}
	}
	h.recorder.IncLiveReloadBroadcast()

	attrs := []any{logfields.Clients(len(snapshot)), slog.Int("dropped", dropped)}
	if res != nil {
		attrs = append(attrs, logfields.BuildID(res.ID))
	}
	slog.Debug("Live reload broadcast", attrs...)
}

// Close disconnects every subscriber and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	clients := h.clients
	h.clients = map[int]*client{}
	h.mu.Unlock()

	for _, c := range clients {
		close(c.done)
	}
	h.recorder.SetLiveReloadClients(0)
}

// clientScript connects to the hub and reloads the page on every reload event.
const clientScript = `(() => {
  if (window.__CONTENTFORGE_LR__) return;
  window.__CONTENTFORGE_LR__ = true;
  function connect() {
    const es = new EventSource('` + ReloadPath + `');
    es.onmessage = (e) => {
      try {
        const msg = JSON.parse(e.data);
        if (msg.type === 'reload') location.reload();
      } catch (_) {}
    };
    es.onerror = () => { es.close(); setTimeout(connect, 2000); };
  }
  connect();
})();
`

func serveClientScript(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	if _, err := w.Write([]byte(clientScript)); err != nil {
		slog.Debug("Failed to write live reload script", logfields.Error(err))
	}
}
