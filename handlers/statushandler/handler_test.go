package statushandler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DRuggeri/cellwatch/cell"
	"github.com/DRuggeri/cellwatch/permissions"
	"github.com/DRuggeri/cellwatch/watchers/common"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusPayload struct {
	Permission string `json:"permission"`
	Cells      []struct {
		CellID    int64  `json:"cellId"`
		NodeName  string `json:"nodeName"`
		EnbNumber int64  `json:"enbNumber"`
		Active    bool   `json:"active"`
	} `json:"cells"`
}

func grantedStatus() common.CellStatus {
	return common.CellStatus{
		Permission: permissions.StatusGranted,
		Activation: 1,
		Cells: []cell.Record{{
			NetworkType:    "LTE",
			CellID:         1001,
			ConnectionType: cell.RolePrimary,
		}},
	}
}

func TestCurrentStatusIsCopied(t *testing.T) {
	w, _, err := NewStatusWatcher(context.Background(), nil)
	require.NoError(t, err)

	s := grantedStatus()
	w.UpdateStatus(s)
	s.Cells[0].CellID = 5

	got := w.GetCurrentStatus()
	assert.EqualValues(t, 1001, got.Cells[0].CellID)
	got.Cells[0].CellID = 6
	assert.EqualValues(t, 1001, w.GetCurrentStatus().Cells[0].CellID)
}

func TestFullClientIsSkipped(t *testing.T) {
	w, _, err := NewStatusWatcher(context.Background(), nil)
	require.NoError(t, err)

	ch := make(chan common.CellStatus, 1)
	w.AddClient("slow", ch)
	w.UpdateStatus(grantedStatus())
	w.UpdateStatus(grantedStatus())
	assert.Len(t, ch, 1)

	w.RemoveClient("slow")
	<-ch
	w.UpdateStatus(grantedStatus())
	assert.Empty(t, ch)
}

func TestServeJSON(t *testing.T) {
	w, handler, err := NewStatusWatcher(context.Background(), nil)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cellinfo", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"permission":"unknown","activation":0,"cells":[],"updatedAt":"0001-01-01T00:00:00Z"}`, rec.Body.String())

	w.UpdateStatus(grantedStatus())
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cellinfo", nil))

	var p statusPayload
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, "granted", p.Permission)
	require.Len(t, p.Cells, 1)
	assert.Equal(t, "eNB", p.Cells[0].NodeName)
	assert.EqualValues(t, 3, p.Cells[0].EnbNumber)
	assert.True(t, p.Cells[0].Active)
}

func TestServeWebsocket(t *testing.T) {
	w, handler, err := NewStatusWatcher(context.Background(), nil)
	require.NoError(t, err)

	srv := httptest.NewServer(handler)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var p statusPayload
	require.NoError(t, conn.ReadJSON(&p))
	assert.Equal(t, "unknown", p.Permission)
	assert.Empty(t, p.Cells)

	// The client registers before the initial send, so this update is not lost
	w.UpdateStatus(grantedStatus())
	require.NoError(t, conn.ReadJSON(&p))
	assert.Equal(t, "granted", p.Permission)
	require.Len(t, p.Cells, 1)
	assert.EqualValues(t, 1001, p.Cells[0].CellID)
}
