package statusinator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"unicode/utf8"

	"github.com/DRuggeri/cellwatch/permissions"
	"github.com/DRuggeri/cellwatch/watchers/common"
	"github.com/jacobsa/go-serial/serial"
)

// Opener opens the display port. Swapped out in tests.
type Opener func(opts serial.OpenOptions) (io.ReadWriteCloser, error)

func openSerial(opts serial.OpenOptions) (io.ReadWriteCloser, error) {
	return serial.Open(opts)
}

type Statusinator struct {
	opts serial.OpenOptions
	open Opener
	port io.ReadWriteCloser
	log  *slog.Logger
	mux  *sync.Mutex
}

// Only the serving cell is sent to keep the payload small enough for the display
type BriefStatus struct {
	Permission permissions.Status `json:"permission"`
	Cells      int                `json:"cells"`
	Serving    string             `json:"serving,omitempty"`
	RSRP       int                `json:"rsrp,omitempty"`
	Signal     int                `json:"signal,omitempty"`
}

func Brief(s common.CellStatus) BriefStatus {
	b := BriefStatus{
		Permission: s.Permission,
		Cells:      len(s.Cells),
	}
	if c, ok := s.Serving(); ok {
		b.Serving = c.Title()
		b.RSRP = c.RSRP
		b.Signal = c.SignalStrength
	}
	return b
}

func NewStatusinator(port string, l *slog.Logger) (*Statusinator, error) {
	opts := serial.OpenOptions{
		PortName:              port,
		BaudRate:              115200,
		DataBits:              8,
		ParityMode:            serial.PARITY_NONE,
		StopBits:              1,
		InterCharacterTimeout: 100,
		MinimumReadSize:       0,
	}
	return newStatusinator(opts, openSerial, l)
}

func newStatusinator(opts serial.OpenOptions, open Opener, l *slog.Logger) (*Statusinator, error) {
	if l == nil {
		l = slog.Default()
	}

	p, err := open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open display port %s: %w", opts.PortName, err)
	}

	return &Statusinator{
		opts: opts,
		open: open,
		port: p,
		log:  l.With("operation", "statusinator"),
		mux:  &sync.Mutex{},
	}, nil
}

func (m *Statusinator) Watch(controlContext context.Context, status <-chan common.CellStatus, events <-chan common.Event) {
	m.log.Info("watching for statuses")
	for {
		select {
		case <-controlContext.Done():
			return
		case s, ok := <-status:
			if !ok {
				m.log.Info("status channel closed - stopping")
				return
			}
			m.log.Debug("received status update")
			b, err := json.Marshal(Brief(s))
			if err != nil {
				m.log.Error("failed to marshal to JSON", "error", err)
				continue
			}
			m.send("status", b)
		case e, ok := <-events:
			if !ok {
				m.log.Info("event channel closed - stopping")
				return
			}
			payload := truncate(fmt.Sprintf("[%s] %s", e.Kind, e.Message), logWidth)
			m.send("log", []byte(payload))
		}
	}
}

// logWidth is how many characters the display fits on its log line.
const logWidth = 80

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

func (m *Statusinator) send(t string, payload []byte) {
	m.mux.Lock()
	defer m.mux.Unlock()

	b := []byte(t)
	b = append(b, ':')
	b = append(b, payload...)
	b = append(b, '\n')

	_, err := m.port.Write(b)
	if err != nil {
		m.port.Close()
		p, oerr := m.open(m.opts)
		if oerr != nil {
			m.log.Warn("error writing to port - failed to reopen", "error", err, "openError", oerr)
			return
		}
		m.log.Warn("error writing to port - reopened", "error", err)
		m.port = p
	}
}

func (m *Statusinator) Close() error {
	m.mux.Lock()
	defer m.mux.Unlock()
	return m.port.Close()
}
