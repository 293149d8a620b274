package cells

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DRuggeri/cellwatch/cell"
	"github.com/DRuggeri/cellwatch/permissions"
	"github.com/DRuggeri/cellwatch/scanner"
	"github.com/DRuggeri/cellwatch/watchers"
	"github.com/DRuggeri/cellwatch/watchers/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func i64(i int64) *int64 { return &i }
func ip(i int) *int      { return &i }

type stubScanner struct {
	mux     sync.Mutex
	samples []scanner.Sample
	err     error
	calls   int
}

func (s *stubScanner) set(samples []scanner.Sample, err error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	s.samples = samples
	s.err = err
}

func (s *stubScanner) Scan(ctx context.Context) ([]scanner.Sample, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	s.calls++
	return s.samples, s.err
}

type countingRecorder struct {
	permissions []permissions.Status
	requests    int
	scans       int
	failures    int
}

func (r *countingRecorder) ObservePermission(s permissions.Status) {
	r.permissions = append(r.permissions, s)
}

func (r *countingRecorder) ObserveRequest() { r.requests++ }

func (r *countingRecorder) ObserveScan(cells []cell.Record, err error, took time.Duration) {
	r.scans++
	if err != nil {
		r.failures++
	}
}

var lteServing = scanner.Sample{
	Technology: "LTE",
	Role:       "primary",
	MCC:        "262",
	MNC:        "01",
	TAC:        "41773",
	CellID:     i64(1001),
	PCI:        ip(123),
	RSRP:       ip(-85),
	ARFCN:      1300,
}

var nrSecondary = scanner.Sample{
	Technology: "NR SA",
	Role:       "secondary",
	CellID:     i64(4096),
	RSRP:       ip(-99),
	ARFCN:      632628,
}

func kinds(events []common.Event) []common.EventKind {
	out := []common.EventKind{}
	for _, e := range events {
		out = append(out, e.Kind)
	}
	return out
}

func TestNewCellWatcherRequiresCollaborators(t *testing.T) {
	_, err := NewCellWatcher(context.Background(), nil, &stubScanner{}, nil, nil)
	assert.Error(t, err)
	_, err = NewCellWatcher(context.Background(), permissions.NewStaticHost(), nil, nil, nil)
	assert.Error(t, err)
}

func TestDeniedThenGrantedOnResume(t *testing.T) {
	host := permissions.NewStaticHost()
	sc := &stubScanner{samples: []scanner.Sample{lteServing}}
	rec := &countingRecorder{}
	w, err := NewCellWatcher(context.Background(), host, sc, rec, nil)
	require.NoError(t, err)

	assert.Equal(t, permissions.StatusUnknown, w.Status().Permission)
	assert.Empty(t, w.Status().Cells)

	u := w.Start(context.Background())
	assert.Equal(t, permissions.StatusDenied, u.Transition.To)
	assert.True(t, u.Transition.Requested)
	assert.True(t, u.Notify())
	assert.False(t, u.Scanned)
	assert.Equal(t, 0, sc.calls)
	assert.Empty(t, u.Status.Cells)
	assert.Equal(t, []common.EventKind{common.EventPermissionChanged, common.EventAccessRequested}, kinds(u.Events))
	require.Len(t, host.Requests(), 1)
	assert.ElementsMatch(t, permissions.Required(), host.Requests()[0])

	host.Grant(permissions.Required()...)
	u = w.Resume(context.Background())
	assert.Equal(t, permissions.StatusDenied, u.Transition.From)
	assert.Equal(t, permissions.StatusGranted, u.Transition.To)
	assert.False(t, u.Transition.Requested)
	assert.True(t, u.Scanned)
	assert.True(t, u.CellsChanged)
	require.Len(t, u.Status.Cells, 1)

	c := u.Status.Cells[0]
	assert.EqualValues(t, 3, c.EnbNumber())
	assert.Equal(t, 233, c.Sector())
	assert.Equal(t, "eNB", c.NodeName())
	assert.True(t, c.IsActive())
	assert.Len(t, host.Requests(), 1)

	assert.Equal(t, []permissions.Status{permissions.StatusDenied, permissions.StatusGranted}, rec.permissions)
	assert.Equal(t, 1, rec.requests)
	assert.Equal(t, 1, rec.scans)
}

func TestResumeIsIdempotent(t *testing.T) {
	host := permissions.NewStaticHost(permissions.Required()...)
	sc := &stubScanner{samples: []scanner.Sample{lteServing}}
	w, err := NewCellWatcher(context.Background(), host, sc, nil, nil)
	require.NoError(t, err)

	u := w.Start(context.Background())
	assert.True(t, u.Notify())

	u = w.Resume(context.Background())
	assert.False(t, u.Transition.Changed())
	assert.False(t, u.CellsChanged)
	assert.False(t, u.Notify())
	assert.Empty(t, u.Events)
	assert.Empty(t, host.Requests())
}

func TestRequestOncePerActivation(t *testing.T) {
	host := permissions.NewStaticHost()
	w, err := NewCellWatcher(context.Background(), host, &stubScanner{}, nil, nil)
	require.NoError(t, err)

	w.Start(context.Background())
	u := w.Refresh(context.Background())
	assert.False(t, u.Scanned)
	assert.False(t, u.Notify())
	assert.Len(t, host.Requests(), 1)

	u = w.Resume(context.Background())
	assert.False(t, u.Transition.Changed())
	assert.True(t, u.Transition.Requested)
	assert.False(t, u.Notify())
	assert.Len(t, host.Requests(), 2)
}

func TestSecondaryNRCell(t *testing.T) {
	host := permissions.NewStaticHost(permissions.Required()...)
	sc := &stubScanner{samples: []scanner.Sample{lteServing, nrSecondary}}
	w, err := NewCellWatcher(context.Background(), host, sc, nil, nil)
	require.NoError(t, err)

	u := w.Start(context.Background())
	require.Len(t, u.Status.Cells, 2)

	nr := u.Status.Cells[1]
	assert.Nil(t, nr.PCI)
	assert.Equal(t, "gNB", nr.NodeName())
	assert.True(t, nr.IsActive())
	assert.Equal(t, cell.RoleSecondary, nr.ConnectionType)

	serving, ok := u.Status.Serving()
	require.True(t, ok)
	assert.EqualValues(t, 1001, serving.CellID)
}

func TestScanFailureClearsCellsButNotPermission(t *testing.T) {
	host := permissions.NewStaticHost(permissions.Required()...)
	sc := &stubScanner{samples: []scanner.Sample{lteServing}}
	rec := &countingRecorder{}
	w, err := NewCellWatcher(context.Background(), host, sc, rec, nil)
	require.NoError(t, err)

	w.Start(context.Background())
	require.Len(t, w.Status().Cells, 1)

	sc.set(nil, errors.New("modem went away"))
	u := w.Refresh(context.Background())
	assert.Error(t, u.ScanErr)
	assert.True(t, u.CellsChanged)
	assert.Empty(t, u.Status.Cells)
	assert.NotNil(t, u.Status.Cells)
	assert.Equal(t, permissions.StatusGranted, u.Status.Permission)
	assert.Equal(t, []common.EventKind{common.EventScanFailed}, kinds(u.Events))
	assert.Equal(t, 1, rec.failures)
}

func TestScanHonoursContext(t *testing.T) {
	host := permissions.NewStaticHost(permissions.Required()...)
	sc := scanner.ScanFunc(func(ctx context.Context) ([]scanner.Sample, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return []scanner.Sample{lteServing}, nil
	})
	w, err := NewCellWatcher(context.Background(), host, sc, nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	u := w.Start(ctx)
	assert.ErrorIs(t, u.ScanErr, context.Canceled)
	assert.Equal(t, permissions.StatusGranted, u.Status.Permission)
	assert.Empty(t, u.Status.Cells)

	u = w.Refresh(context.Background())
	assert.NoError(t, u.ScanErr)
	assert.Len(t, u.Status.Cells, 1)
}

func TestRevokedAccessClearsCells(t *testing.T) {
	host := permissions.NewStaticHost(permissions.Required()...)
	sc := &stubScanner{samples: []scanner.Sample{lteServing}}
	w, err := NewCellWatcher(context.Background(), host, sc, nil, nil)
	require.NoError(t, err)

	w.Start(context.Background())
	host.Revoke(permissions.PhoneState)

	u := w.Resume(context.Background())
	assert.Equal(t, permissions.StatusDenied, u.Transition.To)
	assert.Empty(t, u.Status.Cells)
	assert.Equal(t, 1, sc.calls)
}

func TestSetActive(t *testing.T) {
	host := permissions.NewStaticHost(permissions.Required()...)
	sc := &stubScanner{samples: []scanner.Sample{lteServing}}
	w, err := NewCellWatcher(context.Background(), host, sc, nil, nil)
	require.NoError(t, err)
	w.Start(context.Background())

	before := w.Status()

	rec, err := w.SetActive(1001, false)
	require.NoError(t, err)
	assert.False(t, rec.IsActive())
	assert.False(t, w.Status().Cells[0].IsActive())
	assert.True(t, before.Cells[0].IsActive())

	_, err = w.SetActive(77, true)
	assert.ErrorIs(t, err, ErrUnknownCell)
}

func TestWatch(t *testing.T) {
	host := permissions.NewStaticHost()
	sc := &stubScanner{samples: []scanner.Sample{lteServing}}
	w, err := NewCellWatcher(context.Background(), host, sc, nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	lifecycle := make(chan watchers.LifecycleEvent)
	statuses := make(chan common.CellStatus, 10)
	events := make(chan common.Event, 10)
	done := make(chan struct{})
	go func() {
		w.Watch(ctx, lifecycle, statuses, events)
		close(done)
	}()

	lifecycle <- watchers.EventStart
	s := <-statuses
	assert.Equal(t, permissions.StatusDenied, s.Permission)
	assert.Equal(t, common.EventPermissionChanged, (<-events).Kind)
	assert.Equal(t, common.EventAccessRequested, (<-events).Kind)

	host.Grant(permissions.Required()...)
	lifecycle <- watchers.EventResume
	s = <-statuses
	assert.Equal(t, permissions.StatusGranted, s.Permission)
	require.Len(t, s.Cells, 1)

	// Nothing changed, nothing is sent.
	lifecycle <- watchers.EventRefresh
	lifecycle <- watchers.LifecycleEvent("bogus")
	assert.Empty(t, statuses)

	_, err = w.SetActive(1001, false)
	require.NoError(t, err)
	select {
	case s = <-statuses:
		assert.False(t, s.Cells[0].IsActive())
	case <-time.After(time.Second):
		t.Fatal("no status after toggle")
	}

	close(lifecycle)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
}
