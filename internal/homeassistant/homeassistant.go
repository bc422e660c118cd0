package homeassistant

import (
	"fmt"

	"tuxedo2mqtt/internal/config"
	"tuxedo2mqtt/internal/log"
	"tuxedo2mqtt/internal/mqtt"
	"tuxedo2mqtt/internal/util"
)

type HomeAssistant struct {
	config *config.Config
	mqtt   mqtt.MQTTClient
	log    *log.Logger
}

func New(cfg *config.Config, mqttClient mqtt.MQTTClient, logger *log.Logger) *HomeAssistant {
	return &HomeAssistant{
		config: cfg,
		mqtt:   mqttClient,
		log:    logger,
	}
}

func (ha *HomeAssistant) Start() {
	ha.log.Info("Starting Home Assistant integration")
	ha.publishAlarmConfig()
}

func (ha *HomeAssistant) publishAlarmConfig() {
	objectID := fmt.Sprintf("alarm_%s", util.Slugify(ha.config.Tuxedo.Host))
	topics := ha.mqtt.Topics()

	discovery := map[string]interface{}{
		"name":                 "Tuxedo Touch",
		"unique_id":            fmt.Sprintf("%s_%s", ha.mqtt.GetPrefix(), objectID),
		"state_topic":          topics.State(),
		"command_topic":        topics.Command(),
		"availability_topic":   topics.Status(),
		"payload_disarm":       "DISARM",
		"payload_arm_away":     "ARM_AWAY",
		"payload_arm_home":     "ARM_HOME",
		"payload_arm_night":    "ARM_NIGHT",
		"value_template":       "{{ value_json.state }}",
		"supported_features":   []string{"arm_home", "arm_away", "arm_night"},
		"code_arm_required":    false,
		"code_disarm_required": false,
	}

	// Without a configured default code the panel rejects commands, so ask
	// Home Assistant to collect one and append it to the command payload.
	if ha.config.Tuxedo.Code == "" {
		discovery["code"] = "REMOTE_CODE"
		discovery["code_arm_required"] = true
		discovery["code_disarm_required"] = true
		discovery["command_template"] = "{{ action }} {{ code }}"
	}

	topic := fmt.Sprintf("%s/alarm_control_panel/%s/%s/config", ha.config.HomeAssistant.Prefix, ha.mqtt.GetPrefix(), objectID)
	ha.mqtt.Publish(topic, discovery, true)
}
