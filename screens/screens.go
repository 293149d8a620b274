// Package screens lists the fixed set of views the presentation layer offers.
package screens

import "encoding/json"

type Screen uint8

const (
	Cells Screen = iota
	Settings
)

type info struct {
	route string
	label string
	icon  string
}

var table = map[Screen]info{
	Cells:    {route: "cellinfo", label: "Cells", icon: "cell-tower"},
	Settings: {route: "settings", label: "Settings", icon: "settings"},
}

// All returns the screens in navigation order. Cells is the start screen.
func All() []Screen {
	return []Screen{Cells, Settings}
}

func (s Screen) Route() string { return table[s].route }
func (s Screen) Label() string { return table[s].label }
func (s Screen) Icon() string  { return table[s].icon }

// Path is the HTTP path the screen is served on.
func (s Screen) Path() string {
	return "/" + s.Route()
}

func (s Screen) String() string {
	return s.Route()
}

func ByRoute(route string) (Screen, bool) {
	for _, s := range All() {
		if s.Route() == route {
			return s, true
		}
	}
	return 0, false
}

func (s Screen) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Route string `json:"route"`
		Label string `json:"label"`
		Icon  string `json:"icon"`
		Path  string `json:"path"`
	}{s.Route(), s.Label(), s.Icon(), s.Path()})
}
