package mqtt

import "tuxedo2mqtt/internal/types"

// HAState maps an AlarmState to the state name Home Assistant's MQTT alarm
// panel expects.
func HAState(state types.AlarmState) string {
	switch state {
	case types.AlarmStateDisarmed:
		return "disarmed"
	case types.AlarmStateArming:
		return "arming"
	case types.AlarmStateArmedAway:
		return "armed_away"
	case types.AlarmStateArmedHome:
		return "armed_home"
	case types.AlarmStateArmedNight:
		return "armed_night"
	default:
		return "unavailable"
	}
}
