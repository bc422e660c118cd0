package types

import (
	"fmt"
	"time"
)

// AlarmState is the interpreted state of the panel. It is derived from the
// panel's free-text status and never set directly by callers.
type AlarmState int

const (
	AlarmStateUnavailable AlarmState = iota
	AlarmStateDisarmed
	AlarmStateArming
	AlarmStateArmedAway
	AlarmStateArmedHome
	AlarmStateArmedNight
)

func (a AlarmState) String() string {
	switch a {
	case AlarmStateUnavailable:
		return "Unavailable"
	case AlarmStateDisarmed:
		return "Disarmed"
	case AlarmStateArming:
		return "Arming"
	case AlarmStateArmedAway:
		return "Armed Away"
	case AlarmStateArmedHome:
		return "Armed Home"
	case AlarmStateArmedNight:
		return "Armed Night"
	default:
		return fmt.Sprintf("Unknown AlarmState(%d)", a)
	}
}

// ArmMode selects the arming level requested from the panel.
type ArmMode int

const (
	ArmModeAway ArmMode = iota
	ArmModeHome
	ArmModeNight
)

func (m ArmMode) String() string {
	switch m {
	case ArmModeAway:
		return "Away"
	case ArmModeHome:
		return "Home"
	case ArmModeNight:
		return "Night"
	default:
		return fmt.Sprintf("Unknown ArmMode(%d)", m)
	}
}

// StateEvent is emitted by the panel controller whenever the interpreted
// state changes between polls.
type StateEvent struct {
	State     AlarmState
	RawStatus string
	Time      time.Time
}

// CacheData is the snapshot persisted between runs so the bridge can publish
// a retained state before the first poll completes.
type CacheData struct {
	Host       string     `json:"host"`
	State      AlarmState `json:"state"`
	RawStatus  string     `json:"raw_status"`
	LastUpdate time.Time  `json:"last_update"`
}
