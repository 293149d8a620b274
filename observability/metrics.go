// Package observability exposes Prometheus metrics for the cell watcher.
package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/DRuggeri/cellwatch/cell"
	"github.com/DRuggeri/cellwatch/permissions"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var statuses = []permissions.Status{
	permissions.StatusUnknown,
	permissions.StatusChecking,
	permissions.StatusGranted,
	permissions.StatusDenied,
}

// CellCollector bundles the Prometheus metrics for permission checks and
// scans. A nil *CellCollector is valid and records nothing.
type CellCollector struct {
	gatherer prometheus.Gatherer

	Permission     *prometheus.GaugeVec
	AccessRequests prometheus.Counter
	Scans          *prometheus.CounterVec
	ScanDurations  prometheus.Histogram
	VisibleCells   *prometheus.GaugeVec
}

// NewCellCollector registers the metrics against reg, defaulting to the
// global registry when nil.
func NewCellCollector(reg prometheus.Registerer) (*CellCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	permission, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "cellwatch_permission_status",
		Help: "1 for the current permission status, 0 for the others.",
	}, []string{"status"}), "cellwatch_permission_status")
	if err != nil {
		return nil, err
	}

	requests, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cellwatch_access_requests_total",
		Help: "Number of times access to the required permissions was requested.",
	}), "cellwatch_access_requests_total")
	if err != nil {
		return nil, err
	}

	scans, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cellwatch_scans_total",
		Help: "Number of scans, labeled by result.",
	}, []string{"result"}), "cellwatch_scans_total")
	if err != nil {
		return nil, err
	}

	durations, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cellwatch_scan_duration_seconds",
		Help:    "Scan latency in seconds.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}), "cellwatch_scan_duration_seconds")
	if err != nil {
		return nil, err
	}

	visible, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "cellwatch_visible_cells",
		Help: "Cells in the current snapshot, labeled by network type and node name.",
	}, []string{"network", "node"}), "cellwatch_visible_cells")
	if err != nil {
		return nil, err
	}

	c := &CellCollector{
		gatherer:       gatherer,
		Permission:     permission,
		AccessRequests: requests,
		Scans:          scans,
		ScanDurations:  durations,
		VisibleCells:   visible,
	}
	c.ObservePermission(permissions.StatusUnknown)
	return c, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *CellCollector) Handler() http.Handler {
	if c == nil || c.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

func (c *CellCollector) ObservePermission(s permissions.Status) {
	if c == nil || c.Permission == nil {
		return
	}
	for _, st := range statuses {
		v := 0.0
		if st == s {
			v = 1
		}
		c.Permission.WithLabelValues(st.String()).Set(v)
	}
}

func (c *CellCollector) ObserveRequest() {
	if c == nil || c.AccessRequests == nil {
		return
	}
	c.AccessRequests.Inc()
}

func (c *CellCollector) ObserveScan(cells []cell.Record, err error, took time.Duration) {
	if c == nil {
		return
	}

	result := "ok"
	if err != nil {
		result = "error"
	}
	if c.Scans != nil {
		c.Scans.WithLabelValues(result).Inc()
	}
	if c.ScanDurations != nil {
		c.ScanDurations.Observe(took.Seconds())
	}
	if c.VisibleCells != nil {
		c.VisibleCells.Reset()
		for _, r := range cells {
			c.VisibleCells.WithLabelValues(r.NetworkType, r.NodeName()).Inc()
		}
	}
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, h prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(h); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return h, nil
}
