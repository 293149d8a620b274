// Package cellview renders cell snapshots for a terminal and talks to a
// running cellwatch daemon.
package cellview

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/DRuggeri/cellwatch/cell"
	"github.com/DRuggeri/cellwatch/permissions"
	"github.com/DRuggeri/cellwatch/watchers/common"
)

const cardWidth = 44

const (
	MessageChecking           = "Checking permissions..."
	MessagePermissionRequired = "Location and phone state permissions are required to show nearby cells."
	MessageOpenSettings       = "Grant them, then resume with: cellview resume"
	MessageNoCells            = "No cells visible."
)

// Render writes what the Cells screen shows for s.
func Render(w io.Writer, s common.CellStatus) error {
	var b strings.Builder

	switch s.Permission {
	case permissions.StatusUnknown, permissions.StatusChecking:
		b.WriteString(MessageChecking + "\n")
	case permissions.StatusDenied:
		b.WriteString(MessagePermissionRequired + "\n")
		b.WriteString(MessageOpenSettings + "\n")
	default:
		if len(s.Cells) == 0 {
			b.WriteString(MessageNoCells + "\n")
		}
		for i, c := range s.Cells {
			if i > 0 {
				b.WriteString("\n")
			}
			writeCard(&b, c)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func writeCard(b *strings.Builder, c cell.Record) {
	heading := c.Title()
	rsrp := fmt.Sprintf("%d dBm", c.RSRP)
	if c.IsActive() {
		rsrp += " *"
	}
	pad := cardWidth - utf8.RuneCountInString(heading) - utf8.RuneCountInString(rsrp)
	if pad < 1 {
		pad = 1
	}
	b.WriteString(heading + strings.Repeat(" ", pad) + rsrp + "\n")
	fmt.Fprintf(b, "MCC: %s MNC: %s TAC: %s\n", orUnknown(c.MCC), orUnknown(c.MNC), orUnknown(c.TAC))
	b.WriteString(strings.Repeat("-", cardWidth) + "\n")

	if c.PCI != nil {
		infoRow(b, "PCI", strconv.Itoa(*c.PCI))
	}
	if c.RSRQ != nil {
		infoRow(b, "RSRQ", fmt.Sprintf("%d dB", *c.RSRQ))
	}
	if c.SINR != nil {
		infoRow(b, "SINR", fmt.Sprintf("%d dB", *c.SINR))
	}
	infoRow(b, "RX Frequency", mhz(c.RxFrequency))
	infoRow(b, "TX Frequency", mhz(c.TxFrequency))
	band := strconv.Itoa(c.BandNr)
	if c.BandName != "" && c.BandName != cell.UnknownValue {
		band += " " + c.BandName
	}
	infoRow(b, "Band Nr", band)
}

func infoRow(b *strings.Builder, label string, value string) {
	pad := cardWidth - utf8.RuneCountInString(label) - utf8.RuneCountInString(value)
	if pad < 1 {
		pad = 1
	}
	b.WriteString(label + strings.Repeat(" ", pad) + value + "\n")
}

func mhz(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64) + " MHz"
}

func orUnknown(s string) string {
	if s == "" {
		return cell.UnknownValue
	}
	return s
}
