// Package modem talks to a cellular modem over its serial AT command port
// and turns the engineering mode report into scan samples.
package modem

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/DRuggeri/cellwatch/scanner"
)

const qengPrefix = "+QENG:"

// ParseServingCell parses the response to AT+QENG="servingcell". Lines it
// does not understand are skipped.
//
// Layouts (after the +QENG: prefix):
//
//	"servingcell",<state>,"LTE",<is_tdd>,<mcc>,<mnc>,<cellid>,<pci>,<earfcn>,<band>,<ul_bw>,<dl_bw>,<tac>,<rsrp>,<rsrq>,<rssi>,<sinr>,...
//	"servingcell",<state>,"NR5G-SA",<duplex>,<mcc>,<mnc>,<cellid>,<pci>,<tac>,<arfcn>,<band>,<dl_bw>,<rsrp>,<rsrq>,<sinr>,...
//	"servingcell",<state>,"WCDMA",<mcc>,<mnc>,<lac>,<cellid>,<uarfcn>,<psc>,<rac>,<rscp>,<ecio>,...
//	"servingcell",<state>,"GSM",<mcc>,<mnc>,<lac>,<cellid>,<bsic>,<arfcn>,<band>,<rxlev>,...
//	"LTE",<is_tdd>,<mcc>,... (EN-DC anchor, same fields as the LTE layout)
func ParseServingCell(lines []string, log *slog.Logger) []scanner.Sample {
	if log == nil {
		log = slog.Default()
	}

	out := []scanner.Sample{}
	for _, line := range lines {
		if !strings.HasPrefix(line, qengPrefix) {
			continue
		}
		f := splitFields(strings.TrimPrefix(line, qengPrefix))
		if len(f) == 0 {
			continue
		}

		var s *scanner.Sample
		switch {
		case f[0] == "servingcell" && len(f) > 3:
			if f[1] == "SEARCH" {
				continue
			}
			s = parseTechnology(f[2], f[3:])
		case f[0] == "LTE":
			s = parseLTE(f[1:])
		}

		if s == nil {
			log.Debug("skipping unrecognized engineering line", "line", line)
			continue
		}
		s.Role = "primary"
		out = append(out, *s)
	}
	return out
}

func parseTechnology(tech string, f []string) *scanner.Sample {
	switch tech {
	case "LTE":
		return parseLTE(f)
	case "NR5G-SA":
		return parseNRSA(f)
	case "WCDMA":
		return parseWCDMA(f)
	case "GSM":
		return parseGSM(f)
	}
	return nil
}

func parseLTE(f []string) *scanner.Sample {
	if len(f) < 14 {
		return nil
	}
	return &scanner.Sample{
		Technology: "LTE",
		MCC:        field(f, 1),
		MNC:        field(f, 2),
		CellID:     hexInt(f, 3),
		PCI:        intField(f, 4),
		ARFCN:      intOrZero(f, 5),
		Band:       intOrZero(f, 6),
		TAC:        hexDecimal(f, 9),
		RSRP:       intField(f, 10),
		RSRQ:       intField(f, 11),
		SINR:       intField(f, 13),
	}
}

func parseNRSA(f []string) *scanner.Sample {
	if len(f) < 12 {
		return nil
	}
	return &scanner.Sample{
		Technology: "NR SA",
		MCC:        field(f, 1),
		MNC:        field(f, 2),
		CellID:     hexInt(f, 3),
		PCI:        intField(f, 4),
		TAC:        hexDecimal(f, 5),
		ARFCN:      intOrZero(f, 6),
		Band:       intOrZero(f, 7),
		RSRP:       intField(f, 9),
		RSRQ:       intField(f, 10),
		SINR:       intField(f, 11),
	}
}

func parseWCDMA(f []string) *scanner.Sample {
	if len(f) < 8 {
		return nil
	}
	return &scanner.Sample{
		Technology: "UMTS",
		MCC:        field(f, 0),
		MNC:        field(f, 1),
		TAC:        hexDecimal(f, 2),
		CellID:     hexInt(f, 3),
		ARFCN:      intOrZero(f, 4),
		RSRP:       intField(f, 7),
	}
}

func parseGSM(f []string) *scanner.Sample {
	if len(f) < 8 {
		return nil
	}
	return &scanner.Sample{
		Technology: "GSM",
		MCC:        field(f, 0),
		MNC:        field(f, 1),
		TAC:        hexDecimal(f, 2),
		CellID:     hexInt(f, 3),
		ARFCN:      intOrZero(f, 5),
		Band:       intOrZero(f, 6),
		RSRP:       intField(f, 7),
	}
}

func splitFields(s string) []string {
	parts := strings.Split(s, ",")
	for i, p := range parts {
		parts[i] = strings.Trim(strings.TrimSpace(p), `"`)
	}
	return parts
}

// field returns "" for a missing or "-" value.
func field(f []string, i int) string {
	if i >= len(f) || f[i] == "-" {
		return ""
	}
	return f[i]
}

func intField(f []string, i int) *int {
	v, err := strconv.Atoi(field(f, i))
	if err != nil {
		return nil
	}
	return &v
}

func intOrZero(f []string, i int) int {
	if v := intField(f, i); v != nil {
		return *v
	}
	return 0
}

func hexInt(f []string, i int) *int64 {
	v, err := strconv.ParseInt(field(f, i), 16, 64)
	if err != nil {
		return nil
	}
	return &v
}

func hexDecimal(f []string, i int) string {
	if v := hexInt(f, i); v != nil {
		return strconv.FormatInt(*v, 10)
	}
	return ""
}
