package domain

import (
	"fmt"
	"strings"

	"larder/pkg/apperr"
)

// SessionStatus is the lifecycle state of a shopping session.
type SessionStatus string

const (
	SessionActive    SessionStatus = "ACTIVE"
	SessionCompleted SessionStatus = "COMPLETED"
	SessionAbandoned SessionStatus = "ABANDONED"
)

// sessionTransitions lists the allowed targets for each state. Terminal states have none.
var sessionTransitions = map[SessionStatus][]SessionStatus{
	SessionActive:    {SessionCompleted, SessionAbandoned},
	SessionCompleted: nil,
	SessionAbandoned: nil,
}

// ParseSessionStatus converts a stored or requested value into a SessionStatus.
func ParseSessionStatus(raw string) (SessionStatus, error) {
	s := SessionStatus(strings.ToUpper(strings.TrimSpace(raw)))
	if _, ok := sessionTransitions[s]; !ok {
		return "", apperr.Validation("status", apperr.RuleInvalidValue, fmt.Sprintf("unknown session status %q", raw))
	}
	return s, nil
}

func (s SessionStatus) String() string { return string(s) }

// CanTransitionTo reports whether the session may move from s to target.
func (s SessionStatus) CanTransitionTo(target SessionStatus) bool {
	if s == target {
		return false
	}
	for _, allowed := range sessionTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// IsFinished reports whether s is terminal.
func (s SessionStatus) IsFinished() bool {
	return s == SessionCompleted || s == SessionAbandoned
}

// DeviceType describes the client a session was started from.
type DeviceType string

const (
	DeviceMobile  DeviceType = "MOBILE"
	DeviceTablet  DeviceType = "TABLET"
	DeviceDesktop DeviceType = "DESKTOP"
)

// ParseDeviceType validates an optional device type. An empty input yields "".
func ParseDeviceType(raw string) (DeviceType, error) {
	v := strings.ToUpper(strings.TrimSpace(raw))
	switch DeviceType(v) {
	case "":
		return "", nil
	case DeviceMobile, DeviceTablet, DeviceDesktop:
		return DeviceType(v), nil
	default:
		return "", apperr.Validation("deviceType", apperr.RuleInvalidValue, fmt.Sprintf("unknown device type %q", raw))
	}
}

func (d DeviceType) String() string { return string(d) }
