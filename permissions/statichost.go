package permissions

import "sync"

// StaticHost keeps grants in memory. Requests are recorded but never granted
// on their own; call Grant to simulate the user accepting.
type StaticHost struct {
	mux      sync.Mutex
	granted  map[Permission]bool
	err      error
	requests [][]Permission
}

func NewStaticHost(granted ...Permission) *StaticHost {
	h := &StaticHost{granted: map[Permission]bool{}}
	h.Grant(granted...)
	return h
}

func (h *StaticHost) Grant(ps ...Permission) {
	h.mux.Lock()
	defer h.mux.Unlock()
	for _, p := range ps {
		h.granted[p] = true
	}
}

func (h *StaticHost) Revoke(ps ...Permission) {
	h.mux.Lock()
	defer h.mux.Unlock()
	for _, p := range ps {
		delete(h.granted, p)
	}
}

// SetError makes every HasPermission call fail with err until cleared with nil.
func (h *StaticHost) SetError(err error) {
	h.mux.Lock()
	defer h.mux.Unlock()
	h.err = err
}

func (h *StaticHost) HasPermission(p Permission) (bool, error) {
	h.mux.Lock()
	defer h.mux.Unlock()
	if h.err != nil {
		return false, h.err
	}
	return h.granted[p], nil
}

func (h *StaticHost) RequestPermissions(ps []Permission) {
	h.mux.Lock()
	defer h.mux.Unlock()
	batch := make([]Permission, len(ps))
	copy(batch, ps)
	h.requests = append(h.requests, batch)
}

// Requests returns every batch passed to RequestPermissions, oldest first.
func (h *StaticHost) Requests() [][]Permission {
	h.mux.Lock()
	defer h.mux.Unlock()
	out := make([][]Permission, len(h.requests))
	copy(out, h.requests)
	return out
}
