package modem

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/DRuggeri/cellwatch/scanner"
	"github.com/jacobsa/go-serial/serial"
)

const COMMAND_SERVING_CELL = "AT+QENG=\"servingcell\"\r\n"

var ErrCommandFailed = errors.New("modem returned an error")
var ErrNoResponse = errors.New("modem did not answer in time")

var idleDuration = time.Duration(10) * time.Millisecond

// Opener opens the serial port. Swapped out in tests.
type Opener func(opts serial.OpenOptions) (io.ReadWriteCloser, error)

func openSerial(opts serial.OpenOptions) (io.ReadWriteCloser, error) {
	return serial.Open(opts)
}

// Modem reads serving cell information from a Quectel style modem over its
// AT command port.
type Modem struct {
	opts    serial.OpenOptions
	open    Opener
	port    io.ReadWriteCloser
	timeout time.Duration
	log     *slog.Logger
	mux     *sync.Mutex
}

func NewModem(port string, baud uint, timeout time.Duration, l *slog.Logger) (*Modem, error) {
	opts := serial.OpenOptions{
		PortName:              port,
		BaudRate:              baud,
		DataBits:              8,
		ParityMode:            serial.PARITY_NONE,
		StopBits:              1,
		InterCharacterTimeout: 100,
		MinimumReadSize:       0,
	}
	return newModem(opts, openSerial, timeout, l)
}

func newModem(opts serial.OpenOptions, open Opener, timeout time.Duration, l *slog.Logger) (*Modem, error) {
	if l == nil {
		l = slog.Default()
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	p, err := open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open modem port %s: %w", opts.PortName, err)
	}

	return &Modem{
		opts:    opts,
		open:    open,
		port:    p,
		timeout: timeout,
		log:     l.With("operation", "modem", "port", opts.PortName),
		mux:     &sync.Mutex{},
	}, nil
}

// Scan implements scanner.Scanner.
func (m *Modem) Scan(ctx context.Context) ([]scanner.Sample, error) {
	lines, err := m.Exchange(ctx, COMMAND_SERVING_CELL, qengPrefix)
	if err != nil {
		return nil, err
	}
	return ParseServingCell(lines, m.log), nil
}

// Exchange sends one command and returns the response lines before the
// final result code. Only lines starting with prefix are kept, so unsolicited
// result codes interleaved with the response are dropped. An empty prefix
// keeps every line.
func (m *Modem) Exchange(ctx context.Context, cmd string, prefix string) ([]string, error) {
	m.mux.Lock()
	defer m.mux.Unlock()

	if err := m.write(cmd); err != nil {
		return nil, err
	}

	deadline := time.Now().Add(m.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	echo := strings.TrimSpace(cmd)
	r := bufio.NewReader(m.port)
	pending := ""
	lines := []string{}

	for {
		// A chatty modem can keep producing complete lines without ever
		// sending a final result code.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if time.Now().After(deadline) {
			return nil, ErrNoResponse
		}

		chunk, err := r.ReadString('\n')
		pending += chunk

		if err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}

		// A final result code may arrive without a trailing newline.
		if err == nil || isFinal(strings.TrimSpace(pending)) {
			line := strings.TrimSpace(pending)
			pending = ""

			switch {
			case line == "" || line == echo:
			case line == "OK":
				return lines, nil
			case isFinal(line):
				return nil, fmt.Errorf("%w: %s", ErrCommandFailed, line)
			case strings.HasPrefix(line, prefix):
				lines = append(lines, line)
			default:
				m.log.Debug("ignoring unsolicited line", "line", line)
			}
			continue
		}

		time.Sleep(idleDuration)
	}
}

func isFinal(line string) bool {
	return line == "OK" || line == "ERROR" || strings.HasPrefix(line, "+CME ERROR") || strings.HasPrefix(line, "+CMS ERROR")
}

func (m *Modem) write(cmd string) error {
	l, err := m.port.Write([]byte(cmd))
	if err == nil && l < len(cmd) {
		err = fmt.Errorf("expected to write %d but only wrote %d", len(cmd), l)
	}
	if err == nil {
		return nil
	}

	m.port.Close()
	p, oerr := m.open(m.opts)
	if oerr != nil {
		m.log.Warn("error writing to port - failed to reopen", "error", err, "openError", oerr)
		return fmt.Errorf("failed to write command: %w", err)
	}
	m.log.Warn("error writing to port - reopened", "error", err)
	m.port = p

	l, err = m.port.Write([]byte(cmd))
	if err != nil {
		return fmt.Errorf("failed to write command after reopen: %w", err)
	}
	if l < len(cmd) {
		return fmt.Errorf("expected to write %d but only wrote %d", len(cmd), l)
	}
	return nil
}

func (m *Modem) Close() error {
	m.mux.Lock()
	defer m.mux.Unlock()
	return m.port.Close()
}
