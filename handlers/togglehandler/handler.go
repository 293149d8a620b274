package togglehandler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/DRuggeri/cellwatch/cell"
	"github.com/DRuggeri/cellwatch/watchers/cells"
	"github.com/DRuggeri/cellwatch/watchers/common"
)

// Toggler flips the displayed role of one cell. cells.CellWatcher satisfies it.
type Toggler interface {
	SetActive(cellID int64, active bool) (cell.Record, error)
}

// ToggleHandler serves POST /cells/active?cellId=<id>&active=<bool>.
type ToggleHandler struct {
	toggler Toggler
	notify  func(common.Event)
	log     *slog.Logger
}

func NewToggleHandler(ctx context.Context, toggler Toggler, notify func(common.Event), log *slog.Logger) (*ToggleHandler, error) {
	if log == nil {
		log = slog.Default()
	}
	if toggler == nil {
		return nil, errors.New("a toggler is required")
	}

	return &ToggleHandler{
		toggler: toggler,
		notify:  notify,
		log:     log.With("component", "toggleHandler"),
	}, nil
}

func (h *ToggleHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "only POST is supported", http.StatusMethodNotAllowed)
		return
	}

	id, err := strconv.ParseInt(r.URL.Query().Get("cellId"), 10, 64)
	if err != nil {
		http.Error(w, "cellId must be an integer", http.StatusBadRequest)
		return
	}
	active, err := strconv.ParseBool(r.URL.Query().Get("active"))
	if err != nil {
		http.Error(w, "active must be true or false", http.StatusBadRequest)
		return
	}

	h.log.Debug("toggle received", "client", r.RemoteAddr, "cell", id, "active", active)

	rec, err := h.toggler.SetActive(id, active)
	if errors.Is(err, cells.ErrUnknownCell) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Error("failed to toggle cell", "cell", id, "error", err.Error())
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if h.notify != nil {
		h.notify(common.NewEvent(common.EventCellToggled, rec.Title(), map[string]string{
			"cellId": strconv.FormatInt(id, 10),
			"active": strconv.FormatBool(rec.IsActive()),
		}))
	}

	b, _ := json.Marshal(rec)
	w.Header().Set("Content-Type", "application/json")
	w.Write(b)
}
