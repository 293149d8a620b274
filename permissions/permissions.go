// Package permissions decides whether it is currently legal to read cellular
// data and asks the host for access when it is not.
package permissions

import (
	"encoding/json"
	"fmt"
	"log/slog"
)

type Permission string

const (
	FineLocation   Permission = "fine-location"
	CoarseLocation Permission = "coarse-location"
	PhoneState     Permission = "phone-state"
)

// Required returns the permissions that must all be granted before a scan.
func Required() []Permission {
	return []Permission{FineLocation, CoarseLocation, PhoneState}
}

func (p Permission) IsValid() bool {
	switch p {
	case FineLocation, CoarseLocation, PhoneState:
		return true
	}
	return false
}

// Host is the platform permission subsystem. RequestPermissions must not
// block; its outcome is only visible through later HasPermission calls.
type Host interface {
	HasPermission(p Permission) (bool, error)
	RequestPermissions(ps []Permission)
}

type Status int

const (
	StatusUnknown Status = iota
	StatusChecking
	StatusGranted
	StatusDenied
)

var statusNames = map[Status]string{
	StatusUnknown:  "unknown",
	StatusChecking: "checking",
	StatusGranted:  "granted",
	StatusDenied:   "denied",
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return statusNames[StatusUnknown]
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Status) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return err
	}
	for k, v := range statusNames {
		if v == str {
			*s = k
			return nil
		}
	}
	return fmt.Errorf("unknown permission status %q", str)
}

// Check reports StatusGranted when the host allows every required
// permission. A host that cannot be queried counts as StatusDenied.
func Check(host Host, log *slog.Logger) Status {
	if log == nil {
		log = slog.Default()
	}
	if host == nil {
		log.Warn("no permission host configured - denying")
		return StatusDenied
	}

	for _, p := range Required() {
		ok, err := host.HasPermission(p)
		if err != nil {
			log.Warn("permission query failed - denying", "permission", p, "error", err)
			return StatusDenied
		}
		if !ok {
			log.Debug("permission not granted", "permission", p)
			return StatusDenied
		}
	}
	return StatusGranted
}
