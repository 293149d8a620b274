// Package common provides the payloads watchers hand to the presentation layer.
package common

import (
	"time"

	"github.com/DRuggeri/cellwatch/cell"
	"github.com/DRuggeri/cellwatch/permissions"
	"github.com/google/uuid"
)

// CellStatus is a snapshot of everything the presentation layer shows.
type CellStatus struct {
	Permission permissions.Status `json:"permission"`
	Activation uint64             `json:"activation"`
	Cells      []cell.Record      `json:"cells"`
	UpdatedAt  time.Time          `json:"updatedAt"`
}

// Serving returns the first primary cell, if any.
func (s CellStatus) Serving() (cell.Record, bool) {
	for _, c := range s.Cells {
		if c.ConnectionType == cell.RolePrimary {
			return c, true
		}
	}
	return cell.Record{}, false
}

type EventKind string

const (
	EventPermissionChanged EventKind = "permission-changed"
	EventAccessRequested   EventKind = "access-requested"
	EventScanFailed        EventKind = "scan-failed"
	EventCellToggled       EventKind = "cell-toggled"
)

// Event is a single notable occurrence in a watcher.
type Event struct {
	ID         string            `json:"id"`
	Kind       EventKind         `json:"kind"`
	Message    string            `json:"message"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Time       time.Time         `json:"time"`
}

func NewEvent(kind EventKind, message string, attributes map[string]string) Event {
	return Event{
		ID:         uuid.New().String(),
		Kind:       kind,
		Message:    message,
		Attributes: attributes,
		Time:       time.Now().UTC(),
	}
}
