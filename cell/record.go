package cell

import (
	"encoding/json"
	"errors"
	"fmt"
)

// UnknownValue marks a textual field the scan did not report.
const UnknownValue = "?"

var ErrNegativeCellID = errors.New("cell id must not be negative")

// Record is one observed cell at one point in time. PCI, RSRQ and SINR are
// nil when the radio technology did not report them.
type Record struct {
	NetworkType    string         `json:"networkType"`
	MCC            string         `json:"mcc"`
	MNC            string         `json:"mnc"`
	TAC            string         `json:"tac"`
	ConnectionType ConnectionRole `json:"connectionType"`
	RSRP           int            `json:"rsrp"`
	SignalStrength int            `json:"signalStrength"`
	CellID         int64          `json:"cellId"`
	RFCN           int            `json:"rfcn"`
	PCI            *int           `json:"pci,omitempty"`
	RSRQ           *int           `json:"rsrq,omitempty"`
	SINR           *int           `json:"sinr,omitempty"`
	BandNr         int            `json:"bandNr"`
	BandName       string         `json:"bandName"`
	RxFrequency    float64        `json:"rxFrequency"`
	TxFrequency    float64        `json:"txFrequency"`
}

// EnbNumber is the node part of the cell id.
func (r Record) EnbNumber() int64 {
	return r.CellID / 256
}

// Sector is the sector part of the cell id.
func (r Record) Sector() int {
	return int(r.CellID % 256)
}

func (r Record) IsActive() bool {
	return r.ConnectionType.IsActive()
}

// SetActive marks the cell primary or not connected. No other field changes.
func (r *Record) SetActive(active bool) {
	if active {
		r.ConnectionType = RolePrimary
	} else {
		r.ConnectionType = RoleNone
	}
}

func (r Record) NodeName() string {
	return NodeNameForLabel(r.NetworkType)
}

// Title is the heading used for a cell card, e.g. "eNB 3:233 - LTE".
func (r Record) Title() string {
	return fmt.Sprintf("%s %d:%d - %s", r.NodeName(), r.EnbNumber(), r.Sector(), r.NetworkType)
}

func (r Record) Validate() error {
	if r.CellID < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeCellID, r.CellID)
	}
	return nil
}

// Normalize replaces empty textual fields with UnknownValue.
func (r *Record) Normalize() {
	for _, f := range []*string{&r.NetworkType, &r.MCC, &r.MNC, &r.TAC, &r.BandName} {
		if *f == "" {
			*f = UnknownValue
		}
	}
}

// MarshalJSON adds the derived fields so consumers do not have to recompute
// them.
func (r Record) MarshalJSON() ([]byte, error) {
	type plain Record
	return json.Marshal(struct {
		plain
		EnbNumber int64  `json:"enbNumber"`
		SectorID  int    `json:"sectorId"`
		NodeName  string `json:"nodeName"`
		Active    bool   `json:"active"`
	}{
		plain:     plain(r),
		EnbNumber: r.EnbNumber(),
		SectorID:  r.Sector(),
		NodeName:  r.NodeName(),
		Active:    r.IsActive(),
	})
}
