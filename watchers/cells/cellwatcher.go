package cells

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/DRuggeri/cellwatch/cell"
	"github.com/DRuggeri/cellwatch/permissions"
	"github.com/DRuggeri/cellwatch/scanner"
	"github.com/DRuggeri/cellwatch/watchers"
	"github.com/DRuggeri/cellwatch/watchers/common"
)

var ErrUnknownCell = errors.New("cell is not in the current snapshot")

// Recorder receives measurements about passes. observability.CellCollector
// satisfies it.
type Recorder interface {
	ObservePermission(s permissions.Status)
	ObserveRequest()
	ObserveScan(cells []cell.Record, err error, took time.Duration)
}

// Update is the outcome of one pass.
type Update struct {
	Transition   permissions.Transition
	Scanned      bool
	ScanErr      error
	CellsChanged bool
	Status       common.CellStatus
	Events       []common.Event
}

// Notify is true when the presentation layer has something new to show.
func (u Update) Notify() bool {
	return u.Transition.Changed() || u.CellsChanged
}

// CellWatcher owns the permission gate and the current cell snapshot. Passes
// run one at a time; the snapshot is replaced, never edited in place.
type CellWatcher struct {
	gate     *permissions.Gate
	scanner  scanner.Scanner
	recorder Recorder
	log      *slog.Logger
	changed  chan struct{}

	passMux   sync.Mutex
	mux       sync.RWMutex
	cells     []cell.Record
	updatedAt time.Time
}

func NewCellWatcher(ctx context.Context, host permissions.Host, sc scanner.Scanner, rec Recorder, log *slog.Logger) (*CellWatcher, error) {
	if log == nil {
		log = slog.Default()
	}
	if host == nil {
		return nil, fmt.Errorf("a permission host is required")
	}
	if sc == nil {
		return nil, fmt.Errorf("a scanner is required")
	}

	return &CellWatcher{
		gate:     permissions.NewGate(host, log),
		scanner:  sc,
		recorder: rec,
		log:      log.With("operation", "CellWatcher"),
		changed:  make(chan struct{}, 1),
		cells:    []cell.Record{},
	}, nil
}

// Start runs the first activation pass.
func (w *CellWatcher) Start(ctx context.Context) Update {
	w.log.Info("starting")
	return w.activate(ctx)
}

// Resume re-checks permissions after the process comes back to the
// foreground, asks for access once if denied and scans if granted.
func (w *CellWatcher) Resume(ctx context.Context) Update {
	w.log.Debug("resuming")
	return w.activate(ctx)
}

// Refresh scans again without re-checking permissions. It does nothing
// unless access was granted on the last check.
func (w *CellWatcher) Refresh(ctx context.Context) Update {
	w.passMux.Lock()
	defer w.passMux.Unlock()

	st := w.gate.Status()
	u := Update{Transition: permissions.Transition{From: st, To: st, Activation: w.gate.Activation()}}
	if st == permissions.StatusGranted {
		w.scan(ctx, &u)
	}
	u.Status = w.Status()
	return u
}

func (w *CellWatcher) activate(ctx context.Context) Update {
	w.passMux.Lock()
	defer w.passMux.Unlock()

	t := w.gate.Activate()
	u := Update{Transition: t}

	if t.Changed() {
		u.Events = append(u.Events, common.NewEvent(common.EventPermissionChanged,
			fmt.Sprintf("permission status is now %s", t.To),
			map[string]string{"from": t.From.String(), "to": t.To.String()}))
		if w.recorder != nil {
			w.recorder.ObservePermission(t.To)
		}
	}
	if t.Requested {
		u.Events = append(u.Events, common.NewEvent(common.EventAccessRequested,
			"access to location and phone state requested", nil))
		if w.recorder != nil {
			w.recorder.ObserveRequest()
		}
	}

	if t.To == permissions.StatusGranted {
		w.scan(ctx, &u)
	} else {
		// Nothing may be shown while access is missing.
		u.CellsChanged = w.swap([]cell.Record{})
	}

	u.Status = w.Status()
	return u
}

func (w *CellWatcher) scan(ctx context.Context, u *Update) {
	start := time.Now()
	samples, err := w.scanner.Scan(ctx)

	recs := []cell.Record{}
	if err != nil {
		w.log.Warn("scan failed", "error", err)
		u.ScanErr = err
		u.Events = append(u.Events, common.NewEvent(common.EventScanFailed, err.Error(), nil))
	} else {
		recs = scanner.ToRecords(samples, w.log)
	}

	if w.recorder != nil {
		w.recorder.ObserveScan(recs, err, time.Since(start))
	}

	u.Scanned = true
	u.CellsChanged = w.swap(recs)
	w.log.Debug("scan complete", "cells", len(recs), "changed", u.CellsChanged)
}

// swap replaces the snapshot and reports whether it differs from the old one.
func (w *CellWatcher) swap(recs []cell.Record) bool {
	w.mux.Lock()
	defer w.mux.Unlock()

	if reflect.DeepEqual(w.cells, recs) {
		return false
	}
	w.cells = recs
	w.updatedAt = time.Now().UTC()
	return true
}

// Status returns the current permission status and a copy of the snapshot.
func (w *CellWatcher) Status() common.CellStatus {
	w.mux.RLock()
	defer w.mux.RUnlock()

	cells := make([]cell.Record, len(w.cells))
	copy(cells, w.cells)
	return common.CellStatus{
		Permission: w.gate.Status(),
		Activation: w.gate.Activation(),
		Cells:      cells,
		UpdatedAt:  w.updatedAt,
	}
}

// SetActive toggles the displayed role of one cell in the snapshot.
func (w *CellWatcher) SetActive(cellID int64, active bool) (cell.Record, error) {
	w.mux.Lock()
	idx := -1
	for i, c := range w.cells {
		if c.CellID == cellID {
			idx = i
			break
		}
	}
	if idx < 0 {
		w.mux.Unlock()
		return cell.Record{}, fmt.Errorf("%w: %d", ErrUnknownCell, cellID)
	}

	next := make([]cell.Record, len(w.cells))
	copy(next, w.cells)
	next[idx].SetActive(active)
	w.cells = next
	w.updatedAt = time.Now().UTC()
	rec := next[idx]
	w.mux.Unlock()

	w.log.Info("cell toggled", "cell", cellID, "active", active)
	select {
	case w.changed <- struct{}{}:
	default:
	}
	return rec, nil
}

// Watch runs passes for each lifecycle event and forwards status snapshots
// and events. A status is only sent when something visible changed.
func (w *CellWatcher) Watch(ctx context.Context, lifecycle <-chan watchers.LifecycleEvent, statusChan chan<- common.CellStatus, eventChan chan<- common.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.changed:
			if !w.sendStatus(ctx, statusChan, w.Status()) {
				return
			}
		case ev, ok := <-lifecycle:
			if !ok {
				w.log.Info("lifecycle channel closed - stopping")
				return
			}

			var u Update
			switch ev {
			case watchers.EventStart:
				u = w.Start(ctx)
			case watchers.EventResume:
				u = w.Resume(ctx)
			case watchers.EventRefresh:
				u = w.Refresh(ctx)
			default:
				w.log.Warn("bunk lifecycle event provided - ignoring", "event", ev)
				continue
			}

			for _, e := range u.Events {
				if eventChan == nil {
					break
				}
				select {
				case <-ctx.Done():
					return
				case eventChan <- e:
				}
			}

			if u.Notify() && !w.sendStatus(ctx, statusChan, u.Status) {
				return
			}
		}
	}
}

func (w *CellWatcher) sendStatus(ctx context.Context, statusChan chan<- common.CellStatus, s common.CellStatus) bool {
	select {
	case <-ctx.Done():
		return false
	case statusChan <- s:
		return true
	}
}
