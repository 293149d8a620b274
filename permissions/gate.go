package permissions

import (
	"log/slog"
	"sync"
)

// Transition is the outcome of one pass through the gate.
type Transition struct {
	From       Status
	To         Status
	Activation uint64
	Requested  bool
}

func (t Transition) Changed() bool {
	return t.From != t.To
}

// Gate tracks the last observed permission status. It starts at
// StatusUnknown and is only moved by CheckStatus and Activate.
type Gate struct {
	host Host
	log  *slog.Logger
	mux  sync.RWMutex

	// checkMux keeps overlapping checks from seeing each other's
	// transient StatusChecking.
	checkMux sync.Mutex

	status     Status
	activation uint64
	checkedAt  uint64
	requestAt  uint64
}

func NewGate(host Host, log *slog.Logger) *Gate {
	if log == nil {
		log = slog.Default()
	}
	return &Gate{
		host:   host,
		log:    log.With("operation", "PermissionGate"),
		status: StatusUnknown,
	}
}

func (g *Gate) Status() Status {
	g.mux.RLock()
	defer g.mux.RUnlock()
	return g.status
}

// Activation is the number of activation passes run so far.
func (g *Gate) Activation() uint64 {
	g.mux.RLock()
	defer g.mux.RUnlock()
	return g.activation
}

// CheckedAt is the activation during which the status was last checked.
func (g *Gate) CheckedAt() uint64 {
	g.mux.RLock()
	defer g.mux.RUnlock()
	return g.checkedAt
}

// CheckStatus re-reads the host without prompting the user.
func (g *Gate) CheckStatus() Transition {
	g.checkMux.Lock()
	defer g.checkMux.Unlock()

	g.mux.Lock()
	from := g.status
	g.status = StatusChecking
	g.mux.Unlock()

	// Checking is only visible to concurrent readers while the host is queried.
	to := Check(g.host, g.log)

	g.mux.Lock()
	defer g.mux.Unlock()
	g.status = to
	g.checkedAt = g.activation

	t := Transition{From: from, To: to, Activation: g.activation}
	if t.Changed() {
		g.log.Info("permission status changed", "from", from, "to", to, "activation", g.activation)
	}
	return t
}

// RequestAccess asks the host for the whole required set in one batch. It
// issues at most one request per activation and returns whether it did.
func (g *Gate) RequestAccess() bool {
	g.mux.Lock()
	if g.host == nil || g.activation == 0 || g.requestAt == g.activation {
		g.mux.Unlock()
		return false
	}
	g.requestAt = g.activation
	activation := g.activation
	g.mux.Unlock()

	ps := Required()
	g.log.Info("requesting permissions", "permissions", ps, "activation", activation)
	g.host.RequestPermissions(ps)
	return true
}

// Activate starts a new activation (start up or resume), checks the status
// and requests access once if it is denied.
func (g *Gate) Activate() Transition {
	g.mux.Lock()
	g.activation++
	g.mux.Unlock()

	t := g.CheckStatus()
	if t.To == StatusDenied {
		t.Requested = g.RequestAccess()
	}
	return t
}
