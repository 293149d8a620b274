// Package scanner is the boundary to whatever produces raw cell
// observations. It maps those observations onto cell.Record.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/DRuggeri/cellwatch/cell"
)

var ErrMissingCellID = errors.New("sample has no cell id")
var ErrMissingRSRP = errors.New("sample has no rsrp")

// Scanner returns the cells currently visible. Each call returns a finite,
// complete list.
type Scanner interface {
	Scan(ctx context.Context) ([]Sample, error)
}

// ScanFunc adapts a plain function to Scanner.
type ScanFunc func(ctx context.Context) ([]Sample, error)

func (f ScanFunc) Scan(ctx context.Context) ([]Sample, error) {
	return f(ctx)
}

// Sample is one raw observation as reported by a scanner. Pointer fields are
// nil when the radio did not report the value.
type Sample struct {
	Technology     string  `yaml:"technology" json:"technology"`
	Role           string  `yaml:"role" json:"role"`
	MCC            string  `yaml:"mcc" json:"mcc"`
	MNC            string  `yaml:"mnc" json:"mnc"`
	TAC            string  `yaml:"tac" json:"tac"`
	CellID         *int64  `yaml:"cellId" json:"cellId"`
	PCI            *int    `yaml:"pci" json:"pci"`
	RSRP           *int    `yaml:"rsrp" json:"rsrp"`
	RSRQ           *int    `yaml:"rsrq" json:"rsrq"`
	SINR           *int    `yaml:"sinr" json:"sinr"`
	SignalStrength *int    `yaml:"signalStrength" json:"signalStrength"`
	ARFCN          int     `yaml:"arfcn" json:"arfcn"`
	Band           int     `yaml:"band" json:"band"`
	BandName       string  `yaml:"bandName" json:"bandName"`
	DownlinkMHz    float64 `yaml:"downlinkMHz" json:"downlinkMHz"`
	UplinkMHz      float64 `yaml:"uplinkMHz" json:"uplinkMHz"`
}

// ToRecord converts a sample. Unknown roles become cell.RoleNone and absent
// metrics stay absent.
func ToRecord(s Sample) (cell.Record, error) {
	if s.CellID == nil {
		return cell.Record{}, ErrMissingCellID
	}
	if s.RSRP == nil {
		return cell.Record{}, ErrMissingRSRP
	}

	r := cell.Record{
		NetworkType:    s.Technology,
		MCC:            s.MCC,
		MNC:            s.MNC,
		TAC:            s.TAC,
		ConnectionType: cell.ParseConnectionRole(s.Role),
		RSRP:           *s.RSRP,
		CellID:         *s.CellID,
		RFCN:           s.ARFCN,
		PCI:            s.PCI,
		RSRQ:           s.RSRQ,
		SINR:           s.SINR,
		BandNr:         s.Band,
		BandName:       s.BandName,
		RxFrequency:    s.DownlinkMHz,
		TxFrequency:    s.UplinkMHz,
	}
	if err := r.Validate(); err != nil {
		return cell.Record{}, err
	}

	if s.SignalStrength != nil {
		r.SignalStrength = *s.SignalStrength
	} else {
		r.SignalStrength = SignalLevel(*s.RSRP)
	}

	if ch, ok := LookupChannel(cell.NetworkTypeForLabel(s.Technology), s.ARFCN, s.Band); ok {
		if r.BandNr == 0 {
			r.BandNr = ch.Band
		}
		if r.BandName == "" {
			r.BandName = ch.BandName
		}
		if r.RxFrequency == 0 && r.TxFrequency == 0 {
			r.RxFrequency = ch.DownlinkMHz
			r.TxFrequency = ch.UplinkMHz
		}
	}

	r.Normalize()
	return r, nil
}

// ToRecords converts every usable sample. Samples without a valid cell id
// or an rsrp are dropped. The result is never nil.
func ToRecords(samples []Sample, log *slog.Logger) []cell.Record {
	if log == nil {
		log = slog.Default()
	}

	out := make([]cell.Record, 0, len(samples))
	for i, s := range samples {
		r, err := ToRecord(s)
		if err != nil {
			log.Debug("dropping sample", "index", i, "sample", s, "error", err)
			continue
		}
		out = append(out, r)
	}
	return out
}

// SignalLevel scales an RSRP in dBm onto 0-100.
func SignalLevel(rsrp int) int {
	const floor, ceiling = -140, -44
	switch {
	case rsrp <= floor:
		return 0
	case rsrp >= ceiling:
		return 100
	}
	return (rsrp - floor) * 100 / (ceiling - floor)
}

func (s Sample) String() string {
	id := "?"
	if s.CellID != nil {
		id = fmt.Sprint(*s.CellID)
	}
	rsrp := "?"
	if s.RSRP != nil {
		rsrp = fmt.Sprint(*s.RSRP)
	}
	return fmt.Sprintf("%s/%s cell=%s rsrp=%s", s.Technology, s.Role, id, rsrp)
}
