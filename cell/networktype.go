// Package cell holds the normalized cell measurement model and the
// classification helpers used to label it for display.
package cell

// NetworkType is a radio generation. The integer value is stable and is the
// only form used when encoding a type outside this process.
type NetworkType int32

const (
	Unknown NetworkType = iota
	Cdma
	Gsm
	Wcdma
	Lte
	Nr
	Tdscdma
)

var networkTypeNames = map[NetworkType]string{
	Unknown: "Unknown",
	Cdma:    "CDMA",
	Gsm:     "GSM",
	Wcdma:   "WCDMA",
	Lte:     "LTE",
	Nr:      "NR",
	Tdscdma: "TD-SCDMA",
}

// NetworkTypeFromValue decodes an integer code. Codes outside 0-6 decode to
// Unknown.
func NetworkTypeFromValue(v int32) NetworkType {
	t := NetworkType(v)
	if _, ok := networkTypeNames[t]; !ok {
		return Unknown
	}
	return t
}

func (t NetworkType) Value() int32 {
	return int32(t)
}

func (t NetworkType) String() string {
	if n, ok := networkTypeNames[t]; ok {
		return n
	}
	return networkTypeNames[Unknown]
}
