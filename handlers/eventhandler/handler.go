package eventhandler

import (
	"context"
	"encoding/json"
	"log/slog"
	"maps"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/DRuggeri/cellwatch/watchers/common"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	historySize    = 20
	coalesceWindow = time.Minute
)

// coalesced lists the kinds a denied or broken scanner repeats on every pass.
var coalesced = map[common.EventKind]bool{
	common.EventAccessRequested: true,
	common.EventScanFailed:      true,
}

// EventReceiveHandler fans events out to clients. It keeps the last few
// events for clients that connect later and folds repeats of noisy kinds
// into a single event carrying a "repeats" attribute.
type EventReceiveHandler struct {
	log          *slog.Logger
	now          func() time.Time
	clients      map[string]chan<- common.Event
	history      []common.Event
	last         map[common.EventKind]*repeat
	clientsMutex sync.Mutex
}

type repeat struct {
	message string
	sentAt  time.Time
	count   int
}

type EventSendHandler struct {
	log      *slog.Logger
	watcher  *EventReceiveHandler
	upgrader websocket.Upgrader
}

func NewEventWatcher(ctx context.Context, log *slog.Logger) (*EventReceiveHandler, *EventSendHandler, error) {
	if log == nil {
		log = slog.Default()
	}

	watcher := &EventReceiveHandler{
		log:     log.With("component", "eventReceiveHandler"),
		now:     time.Now,
		clients: make(map[string]chan<- common.Event),
		history: []common.Event{},
		last:    make(map[common.EventKind]*repeat),
	}

	sendHandler := &EventSendHandler{
		log:     log.With("component", "eventSendHandler"),
		watcher: watcher,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}

	return watcher, sendHandler, nil
}

func (h *EventReceiveHandler) AddClient(id string, ch chan<- common.Event) {
	h.subscribe(id, ch)
}

// subscribe adds a client and returns the events it missed. Both happen under
// one lock so nothing is delivered twice or lost in between.
func (h *EventReceiveHandler) subscribe(id string, ch chan<- common.Event) []common.Event {
	h.clientsMutex.Lock()
	h.clients[id] = ch
	clientCount := len(h.clients)
	backlog := make([]common.Event, len(h.history))
	copy(backlog, h.history)
	h.clientsMutex.Unlock()
	h.log.Debug("added event client", "id", id, "totalClients", clientCount, "backlog", len(backlog))
	return backlog
}

func (h *EventReceiveHandler) RemoveClient(id string) {
	h.clientsMutex.Lock()
	delete(h.clients, id)
	clientCount := len(h.clients)
	h.clientsMutex.Unlock()
	h.log.Debug("removed event client", "id", id, "totalClients", clientCount)
}

func (h *EventReceiveHandler) BroadcastEvent(event common.Event) {
	h.clientsMutex.Lock()
	event, send := h.coalesce(event)
	if !send {
		h.clientsMutex.Unlock()
		return
	}
	h.history = append(h.history, event)
	if len(h.history) > historySize {
		h.history = h.history[len(h.history)-historySize:]
	}

	if len(h.clients) == 0 {
		h.clientsMutex.Unlock()
		return
	}

	clientsCopy := make(map[string]chan<- common.Event, len(h.clients))
	for k, v := range h.clients {
		clientsCopy[k] = v
	}
	h.clientsMutex.Unlock()

	for id, ch := range clientsCopy {
		select {
		case ch <- event:
		default:
			h.log.Warn("event client channel full, skipping", "id", id, "kind", event.Kind)
		}
	}
}

// coalesce reports whether event should go out. A repeat of the last event
// of a coalesced kind inside coalesceWindow is only counted; the count rides
// along on the next one sent. Caller holds clientsMutex.
func (h *EventReceiveHandler) coalesce(event common.Event) (common.Event, bool) {
	if event.Kind == common.EventPermissionChanged {
		// New permission state, so the next request or failure is news again.
		clear(h.last)
		return event, true
	}
	if !coalesced[event.Kind] {
		return event, true
	}

	now := h.now()
	r := h.last[event.Kind]
	if r != nil && r.message == event.Message {
		if now.Sub(r.sentAt) < coalesceWindow {
			r.count++
			h.log.Debug("coalescing repeated event", "kind", event.Kind, "repeats", r.count)
			return event, false
		}
		if r.count > 0 {
			attrs := make(map[string]string, len(event.Attributes)+1)
			maps.Copy(attrs, event.Attributes)
			attrs["repeats"] = strconv.Itoa(r.count)
			event.Attributes = attrs
		}
	}
	h.last[event.Kind] = &repeat{message: event.Message, sentAt: now}
	return event, true
}

func (h *EventSendHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Info("websocket upgrade failed", "error", err.Error())
		return
	}
	defer conn.Close()

	// The request context is not cancelled for hijacked connections, so watch
	// for the client going away by reading until the connection fails.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	thisChan := make(chan common.Event, 10)
	clientID := uuid.New().String()

	backlog := h.watcher.subscribe(clientID, thisChan)
	defer h.watcher.RemoveClient(clientID)

	for _, event := range backlog {
		data, _ := json.Marshal(event)
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.log.Debug("client disconnected during backlog", "error", err.Error())
			return
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-thisChan:
			data, _ := json.Marshal(event)
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.log.Debug("client disconnected", "error", err.Error())
				return
			}
		}
	}
}
