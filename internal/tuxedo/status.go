package tuxedo

import (
	"strings"

	"tuxedo2mqtt/internal/types"
)

// ParseStatus maps the panel's free-text security status to an AlarmState.
// Unrecognized strings ("Entry Delay Active", "Not Ready Fault", firmware
// surprises) degrade to Unavailable rather than failing.
func ParseStatus(raw string) types.AlarmState {
	switch raw {
	case "Armed Away":
		return types.AlarmStateArmedAway
	case "Armed Instant":
		return types.AlarmStateArmedNight
	case "Armed Stay":
		return types.AlarmStateArmedHome
	case "Ready To Arm":
		return types.AlarmStateDisarmed
	}
	if strings.HasSuffix(raw, " Secs Remaining") {
		return types.AlarmStateArming
	}
	return types.AlarmStateUnavailable
}
