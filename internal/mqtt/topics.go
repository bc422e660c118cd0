package mqtt

import "fmt"

type Topics struct {
	prefix string
}

func NewTopics(prefix string) *Topics {
	return &Topics{prefix: prefix}
}

// Status is the bridge availability topic (online/offline, LWT).
func (t *Topics) Status() string {
	return fmt.Sprintf("%s/status", t.prefix)
}

// Config carries the panel description published at connect.
func (t *Topics) Config() string {
	return fmt.Sprintf("%s/config", t.prefix)
}

// State carries the retained alarm state JSON.
func (t *Topics) State() string {
	return fmt.Sprintf("%s/alarm/state", t.prefix)
}

// Command receives ARM_AWAY/ARM_HOME/ARM_NIGHT/DISARM commands.
func (t *Topics) Command() string {
	return fmt.Sprintf("%s/alarm/command", t.prefix)
}
