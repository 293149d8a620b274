package scanner

import (
	"fmt"
	"math"

	"github.com/DRuggeri/cellwatch/cell"
)

// Channel is the band and carrier frequencies behind a channel number.
type Channel struct {
	Band        int
	BandName    string
	DownlinkMHz float64
	UplinkMHz   float64
}

type lteBand struct {
	band   int
	name   string
	dlLow  float64
	offsDL int
	maxDL  int
	ulLow  float64
	tdd    bool
}

// 3GPP TS 36.101 table 5.7.3-1, common bands only.
var lteBands = []lteBand{
	{band: 1, name: "2100", dlLow: 2110, offsDL: 0, maxDL: 599, ulLow: 1920},
	{band: 2, name: "1900", dlLow: 1930, offsDL: 600, maxDL: 1199, ulLow: 1850},
	{band: 3, name: "1800", dlLow: 1805, offsDL: 1200, maxDL: 1949, ulLow: 1710},
	{band: 4, name: "AWS", dlLow: 2110, offsDL: 1950, maxDL: 2399, ulLow: 1710},
	{band: 5, name: "850", dlLow: 869, offsDL: 2400, maxDL: 2649, ulLow: 824},
	{band: 7, name: "2600", dlLow: 2620, offsDL: 2750, maxDL: 3449, ulLow: 2500},
	{band: 8, name: "900", dlLow: 925, offsDL: 3450, maxDL: 3799, ulLow: 880},
	{band: 12, name: "700a", dlLow: 729, offsDL: 5010, maxDL: 5179, ulLow: 699},
	{band: 13, name: "700c", dlLow: 746, offsDL: 5180, maxDL: 5279, ulLow: 777},
	{band: 20, name: "800", dlLow: 791, offsDL: 6150, maxDL: 6449, ulLow: 832},
	{band: 28, name: "700", dlLow: 758, offsDL: 9210, maxDL: 9659, ulLow: 703},
	{band: 38, name: "2600 TDD", dlLow: 2570, offsDL: 37750, maxDL: 38249, tdd: true},
	{band: 40, name: "2300 TDD", dlLow: 2300, offsDL: 38650, maxDL: 39649, tdd: true},
	{band: 41, name: "2500 TDD", dlLow: 2496, offsDL: 39650, maxDL: 41589, tdd: true},
	{band: 66, name: "AWS-3", dlLow: 2110, offsDL: 66436, maxDL: 67335, ulLow: 1710},
	{band: 71, name: "600", dlLow: 617, offsDL: 68586, maxDL: 68935, ulLow: 663},
}

type nrBand struct {
	band  int
	name  string
	dlLow float64
	dlHi  float64
	ulLow float64
	tdd   bool
}

// 3GPP TS 38.101 table 5.2-1. Overlapping bands are listed in preference order.
var nrBands = []nrBand{
	{band: 1, name: "2100", dlLow: 2110, dlHi: 2170, ulLow: 1920},
	{band: 3, name: "1800", dlLow: 1805, dlHi: 1880, ulLow: 1710},
	{band: 7, name: "2600", dlLow: 2620, dlHi: 2690, ulLow: 2500},
	{band: 20, name: "800", dlLow: 791, dlHi: 821, ulLow: 832},
	{band: 28, name: "700", dlLow: 758, dlHi: 803, ulLow: 703},
	{band: 71, name: "600", dlLow: 617, dlHi: 652, ulLow: 663},
	{band: 41, name: "2500", dlLow: 2496, dlHi: 2690, tdd: true},
	{band: 78, name: "3500", dlLow: 3300, dlHi: 3800, tdd: true},
	{band: 77, name: "3700", dlLow: 3300, dlHi: 4200, tdd: true},
	{band: 258, name: "26 GHz", dlLow: 24250, dlHi: 27500, tdd: true},
	{band: 257, name: "28 GHz", dlLow: 26500, dlHi: 29500, tdd: true},
}

// LookupChannel derives band and frequencies from a channel number. band may
// be 0 when the scanner did not report it.
func LookupChannel(t cell.NetworkType, arfcn int, band int) (Channel, bool) {
	switch t {
	case cell.Lte:
		return lteChannel(arfcn, band)
	case cell.Nr:
		return nrChannel(arfcn, band)
	}
	return Channel{}, false
}

func lteChannel(earfcn int, band int) (Channel, bool) {
	for _, b := range lteBands {
		if earfcn < b.offsDL || earfcn > b.maxDL {
			continue
		}
		if band != 0 && band != b.band {
			continue
		}
		dl := round(b.dlLow + 0.1*float64(earfcn-b.offsDL))
		ul := dl
		if !b.tdd {
			ul = round(b.ulLow + 0.1*float64(earfcn-b.offsDL))
		}
		return Channel{
			Band:        b.band,
			BandName:    fmt.Sprintf("B%d (%s)", b.band, b.name),
			DownlinkMHz: dl,
			UplinkMHz:   ul,
		}, true
	}
	return Channel{}, false
}

// NRFrequency converts an NR-ARFCN on the global raster to MHz.
func NRFrequency(arfcn int) (float64, bool) {
	n := float64(arfcn)
	switch {
	case arfcn < 0:
		return 0, false
	case arfcn < 600000:
		return round(0.005 * n), true
	case arfcn < 2016667:
		return round(3000 + 0.015*(n-600000)), true
	case arfcn <= 3279165:
		return round(24250.08 + 0.06*(n-2016667)), true
	}
	return 0, false
}

func nrChannel(arfcn int, band int) (Channel, bool) {
	dl, ok := NRFrequency(arfcn)
	if !ok {
		return Channel{}, false
	}
	for _, b := range nrBands {
		if dl < b.dlLow || dl > b.dlHi {
			continue
		}
		if band != 0 && band != b.band {
			continue
		}
		ul := dl
		if !b.tdd {
			ul = round(dl - b.dlLow + b.ulLow)
		}
		return Channel{
			Band:        b.band,
			BandName:    fmt.Sprintf("n%d (%s)", b.band, b.name),
			DownlinkMHz: dl,
			UplinkMHz:   ul,
		}, true
	}
	return Channel{DownlinkMHz: dl, UplinkMHz: dl, Band: band}, true
}

func round(f float64) float64 {
	return math.Round(f*1000) / 1000
}
