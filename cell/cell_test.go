package cell_test

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/DRuggeri/cellwatch/cell"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(i int) *int { return &i }

func lteRecord() cell.Record {
	return cell.Record{
		NetworkType:    "LTE",
		MCC:            "262",
		MNC:            "01",
		TAC:            "41773",
		ConnectionType: cell.RoleSecondary,
		RSRP:           -85,
		SignalStrength: 60,
		CellID:         1001,
		RFCN:           1300,
		PCI:            intPtr(123),
		RSRQ:           intPtr(-10),
		SINR:           intPtr(15),
		BandNr:         3,
		BandName:       "B3 (1800)",
		RxFrequency:    1815.0,
		TxFrequency:    1720.0,
	}
}

func TestEnbAndSectorDerivation(t *testing.T) {
	for _, id := range []int64{0, 1, 255, 256, 257, 1001, 26809356, math.MaxInt64} {
		r := cell.Record{CellID: id}
		assert.Equal(t, id/256, r.EnbNumber(), "enb for %d", id)
		assert.Equal(t, int(id%256), r.Sector(), "sector for %d", id)
		assert.Equal(t, id, r.EnbNumber()*256+int64(r.Sector()), "recombine %d", id)
	}

	r := cell.Record{CellID: 1001}
	assert.EqualValues(t, 3, r.EnbNumber())
	assert.Equal(t, 233, r.Sector())

	// Derived values follow later changes to the id.
	r.CellID = 512
	assert.EqualValues(t, 2, r.EnbNumber())
	assert.Equal(t, 0, r.Sector())
}

func TestIsActiveFollowsRole(t *testing.T) {
	cases := map[cell.ConnectionRole]bool{
		cell.RolePrimary:   true,
		cell.RoleSecondary: true,
		cell.RoleNone:      false,
	}
	for role, want := range cases {
		r := cell.Record{ConnectionType: role}
		assert.Equal(t, want, r.IsActive(), role.String())
		assert.Equal(t, want, role.IsActive(), role.String())
	}
}

func TestSetActiveOnlyTouchesRole(t *testing.T) {
	orig := lteRecord()

	r := lteRecord()
	r.SetActive(true)
	assert.Equal(t, cell.RolePrimary, r.ConnectionType)
	assert.True(t, r.IsActive())
	r.ConnectionType = orig.ConnectionType
	assert.Equal(t, orig, r)

	r = lteRecord()
	r.SetActive(false)
	assert.Equal(t, cell.RoleNone, r.ConnectionType)
	assert.False(t, r.IsActive())
	r.ConnectionType = orig.ConnectionType
	assert.Equal(t, orig, r)
}

func TestParseConnectionRoleIsTotal(t *testing.T) {
	assert.Equal(t, cell.RolePrimary, cell.ParseConnectionRole("Primary"))
	assert.Equal(t, cell.RolePrimary, cell.ParseConnectionRole("servingcell"))
	assert.Equal(t, cell.RoleSecondary, cell.ParseConnectionRole("SCELL"))
	assert.Equal(t, cell.RoleNone, cell.ParseConnectionRole("none"))
	assert.Equal(t, cell.RoleNone, cell.ParseConnectionRole(""))
	assert.Equal(t, cell.RoleNone, cell.ParseConnectionRole("tertiary"))
	assert.Equal(t, "none", cell.ConnectionRole(42).String())
	assert.False(t, cell.ConnectionRole(42).IsActive())
}

func TestNodeNames(t *testing.T) {
	assert.Equal(t, "Cell", cell.NodeName(cell.Gsm))
	assert.Equal(t, "NB", cell.NodeName(cell.Wcdma))
	assert.Equal(t, "eNB", cell.NodeName(cell.Lte))
	assert.Equal(t, "gNB", cell.NodeName(cell.Nr))
	for _, t2 := range []cell.NetworkType{cell.Unknown, cell.Cdma, cell.Tdscdma, cell.NetworkType(99)} {
		assert.Equal(t, cell.UnknownNode, cell.NodeName(t2))
	}

	assert.Equal(t, "eNB", cell.NodeNameForLabel("lte"))
	assert.Equal(t, "eNB", cell.NodeNameForLabel("LTE"))
	assert.Equal(t, "eNB", cell.NodeNameForLabel("Lte"))
	assert.Equal(t, "gNB", cell.NodeNameForLabel("nr sa"))
	assert.Equal(t, "gNB", cell.NodeNameForLabel("5g"))
	assert.Equal(t, "gNB", cell.NodeNameForLabel("NR"))
	assert.Equal(t, "NB", cell.NodeNameForLabel("umts"))
	assert.Equal(t, "Cell", cell.NodeNameForLabel("gsm"))

	for _, label := range []string{"", "?", "WCDMA", "CDMA", "NR NSA", " LTE", "LTE-A", "wifi"} {
		assert.Equal(t, cell.UnknownNode, cell.NodeNameForLabel(label), label)
	}
}

func TestLabelAndTypedLookupsAgree(t *testing.T) {
	for _, label := range []string{"GSM", "UMTS", "LTE", "NR", "5G", "NR SA"} {
		typed := cell.NetworkTypeForLabel(label)
		assert.NotEqual(t, cell.Unknown, typed, label)
		assert.Equal(t, cell.NodeName(typed), cell.NodeNameForLabel(label), label)
	}
}

func TestNetworkTypeFromValueIsTotal(t *testing.T) {
	want := []cell.NetworkType{cell.Unknown, cell.Cdma, cell.Gsm, cell.Wcdma, cell.Lte, cell.Nr, cell.Tdscdma}
	for code, nt := range want {
		got := cell.NetworkTypeFromValue(int32(code))
		assert.Equal(t, nt, got)
		assert.Equal(t, int32(code), got.Value())
	}

	for _, code := range []int32{-1, 7, 8, 100, math.MaxInt32, math.MinInt32} {
		assert.Equal(t, cell.Unknown, cell.NetworkTypeFromValue(code), "code %d", code)
	}
	assert.Equal(t, "LTE", cell.Lte.String())
	assert.Equal(t, "Unknown", cell.NetworkType(77).String())
}

func TestRecordJSONCarriesDerivedFields(t *testing.T) {
	r := lteRecord()
	b, err := json.Marshal(r)
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &out))
	assert.EqualValues(t, 3, out["enbNumber"])
	assert.EqualValues(t, 233, out["sectorId"])
	assert.Equal(t, "eNB", out["nodeName"])
	assert.Equal(t, true, out["active"])
	assert.Equal(t, "secondary", out["connectionType"])

	var back cell.Record
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, r, back)
}

func TestRecordJSONOmitsAbsentMetrics(t *testing.T) {
	r := cell.Record{NetworkType: "NR SA", CellID: 4096, RSRP: -100}
	b, err := json.Marshal(r)
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &out))
	assert.NotContains(t, out, "pci")
	assert.NotContains(t, out, "rsrq")
	assert.NotContains(t, out, "sinr")

	var back cell.Record
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Nil(t, back.PCI)
	assert.Equal(t, cell.RoleNone, back.ConnectionType)
}

func TestNormalizeAndValidate(t *testing.T) {
	r := cell.Record{CellID: -1}
	r.Normalize()
	assert.Equal(t, cell.UnknownValue, r.MCC)
	assert.Equal(t, cell.UnknownValue, r.MNC)
	assert.Equal(t, cell.UnknownValue, r.TAC)
	assert.Equal(t, cell.UnknownValue, r.BandName)
	assert.Equal(t, cell.UnknownValue, r.NetworkType)
	assert.ErrorIs(t, r.Validate(), cell.ErrNegativeCellID)

	ok := lteRecord()
	ok.Normalize()
	assert.Equal(t, lteRecord(), ok)
	assert.NoError(t, ok.Validate())
	assert.Equal(t, "eNB 3:233 - LTE", ok.Title())
}
