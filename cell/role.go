package cell

import (
	"encoding/json"
	"strings"
)

// ConnectionRole is the serving status of a cell at the moment it was
// observed. The zero value is RoleNone.
type ConnectionRole uint8

const (
	RoleNone ConnectionRole = iota
	RolePrimary
	RoleSecondary
)

var roleNames = map[ConnectionRole]string{
	RoleNone:      "none",
	RolePrimary:   "primary",
	RoleSecondary: "secondary",
}

// ParseConnectionRole maps a role label to a ConnectionRole. Anything it does
// not recognize is RoleNone.
func ParseConnectionRole(s string) ConnectionRole {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "primary", "serving", "servingcell", "pcell":
		return RolePrimary
	case "secondary", "scell", "pscell":
		return RoleSecondary
	}
	return RoleNone
}

// IsActive is true for primary and secondary cells.
func (r ConnectionRole) IsActive() bool {
	return r == RolePrimary || r == RoleSecondary
}

func (r ConnectionRole) String() string {
	if n, ok := roleNames[r]; ok {
		return n
	}
	return roleNames[RoleNone]
}

func (r ConnectionRole) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

func (r *ConnectionRole) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*r = ParseConnectionRole(s)
	return nil
}
