package statushandler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/DRuggeri/cellwatch/cell"
	"github.com/DRuggeri/cellwatch/watchers/common"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type StatusWatcher struct {
	log           *slog.Logger
	clients       map[string]chan<- common.CellStatus
	clientsMutex  sync.Mutex
	currentStatus common.CellStatus
	currentMutex  sync.RWMutex
}

type StatusSendHandler struct {
	log      *slog.Logger
	watcher  *StatusWatcher
	upgrader websocket.Upgrader
}

func NewStatusWatcher(ctx context.Context, log *slog.Logger) (*StatusWatcher, *StatusSendHandler, error) {
	if log == nil {
		log = slog.Default()
	}

	watcher := &StatusWatcher{
		log:     log.With("component", "statusReceiveHandler"),
		clients: make(map[string]chan<- common.CellStatus),
		currentStatus: common.CellStatus{
			Cells: []cell.Record{},
		},
	}

	sendHandler := &StatusSendHandler{
		log:     log.With("component", "statusSendHandler"),
		watcher: watcher,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}

	return watcher, sendHandler, nil
}

func (h *StatusWatcher) AddClient(id string, ch chan<- common.CellStatus) {
	h.clientsMutex.Lock()
	h.clients[id] = ch
	clientCount := len(h.clients)
	h.clientsMutex.Unlock()
	h.log.Debug("added status client", "id", id, "totalClients", clientCount)
}

func (h *StatusWatcher) RemoveClient(id string) {
	h.clientsMutex.Lock()
	delete(h.clients, id)
	clientCount := len(h.clients)
	h.clientsMutex.Unlock()
	h.log.Debug("removed status client", "id", id, "totalClients", clientCount)
}

func (h *StatusWatcher) UpdateStatus(status common.CellStatus) {
	safeCopy := copyStatus(status)

	h.currentMutex.Lock()
	h.currentStatus = safeCopy
	h.currentMutex.Unlock()

	h.clientsMutex.Lock()
	if len(h.clients) == 0 {
		h.clientsMutex.Unlock()
		return
	}

	h.log.Debug("broadcasting status", "clients", len(h.clients), "cells", len(safeCopy.Cells))
	clientsCopy := make(map[string]chan<- common.CellStatus, len(h.clients))
	for k, v := range h.clients {
		clientsCopy[k] = v
	}
	h.clientsMutex.Unlock()

	for id, ch := range clientsCopy {
		select {
		case ch <- safeCopy:
		default:
			// The serial display can fall behind; it only needs the latest anyway
			if id != "statusinator" {
				h.log.Warn("status client channel full, skipping", "id", id)
			}
		}
	}
}

func (h *StatusWatcher) GetCurrentStatus() common.CellStatus {
	h.currentMutex.RLock()
	defer h.currentMutex.RUnlock()
	return copyStatus(h.currentStatus)
}

// copyStatus gives every receiver its own cell slice.
func copyStatus(status common.CellStatus) common.CellStatus {
	safeCopy := status
	safeCopy.Cells = make([]cell.Record, len(status.Cells))
	copy(safeCopy.Cells, status.Cells)
	return safeCopy
}

func (h *StatusSendHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Plain requests get the current status as JSON
	if r.Header.Get("Upgrade") == "" {
		b, err := json.Marshal(h.watcher.GetCurrentStatus())
		if err != nil {
			h.log.Error("failed to marshal status", "error", err.Error())
			http.Error(w, "failed to marshal status", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(b)
		return
	}

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

	thisChan := make(chan common.CellStatus, 5)
	clientID := uuid.New().String()

	h.watcher.AddClient(clientID, thisChan)
	defer h.watcher.RemoveClient(clientID)

	if !h.send(conn, h.watcher.GetCurrentStatus()) {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case status := <-thisChan:
			if !h.send(conn, status) {
				return
			}
		}
	}
}

func (h *StatusSendHandler) send(conn *websocket.Conn, status common.CellStatus) bool {
	data, err := json.Marshal(status)
	if err != nil {
		h.log.Error("failed to marshal status", "error", err.Error())
		return false
	}
	conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		h.log.Debug("client disconnected", "error", err.Error())
		return false
	}
	return true
}
