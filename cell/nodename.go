package cell

import "strings"

// UnknownNode is the node name for any type without a conventional name.
const UnknownNode = "Unknown"

var nodeNames = map[NetworkType]string{
	Gsm:   "Cell",
	Wcdma: "NB",
	Lte:   "eNB",
	Nr:    "gNB",
}

// Free-form labels resolve through NetworkType so both lookups share one table.
var labelTypes = map[string]NetworkType{
	"GSM":   Gsm,
	"UMTS":  Wcdma,
	"LTE":   Lte,
	"NR":    Nr,
	"5G":    Nr,
	"NR SA": Nr,
}

// NodeName returns the conventional name of the radio network node serving
// a cell of the given type, e.g. "eNB" for LTE.
func NodeName(t NetworkType) string {
	if n, ok := nodeNames[t]; ok {
		return n
	}
	return UnknownNode
}

// NetworkTypeForLabel resolves a case-insensitive network label such as
// "lte" or "NR SA". Unrecognized labels resolve to Unknown.
func NetworkTypeForLabel(label string) NetworkType {
	if t, ok := labelTypes[strings.ToUpper(label)]; ok {
		return t
	}
	return Unknown
}

// NodeNameForLabel is NodeName for a free-form label.
func NodeNameForLabel(label string) string {
	return NodeName(NetworkTypeForLabel(label))
}
