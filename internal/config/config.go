package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Tuxedo        TuxedoConfig        `yaml:"tuxedo"`
	MQTT          MQTTConfig          `yaml:"mqtt"`
	HomeAssistant HomeAssistantConfig `yaml:"homeassistant"`
	Log           string              `yaml:"log"`
	Cache         bool                `yaml:"cache"`
}

type TuxedoConfig struct {
	Host string `yaml:"host"`
	// APIKey and APIIV are the hex-encoded cipher material obtained during
	// provisioning (64 and 32 hex characters respectively).
	APIKey string `yaml:"api_key"`
	APIIV  string `yaml:"api_iv"`
	// Code is the default 4-digit entry code. Optional; commands without a
	// per-call code fail locally when no default is configured.
	Code         string `yaml:"code"`
	PollInterval int    `yaml:"poll_interval"`
	Timeout      int    `yaml:"timeout"`
	// SkipCertificateValidation disables server certificate checks. Panels
	// on the local network present self-signed certificates, so this
	// defaults to true unless set explicitly.
	SkipCertificateValidation *bool `yaml:"skip_certificate_validation"`
}

type MQTTConfig struct {
	ClientID           string `yaml:"client_id"`
	Host               string `yaml:"host"`
	Port               int    `yaml:"port"`
	Keepalive          int    `yaml:"keepalive"`
	Password           string `yaml:"password"`
	QOS                int    `yaml:"qos"`
	Retain             bool   `yaml:"retain"`
	Username           string `yaml:"username"`
	CA                 string `yaml:"ca"`
	Cert               string `yaml:"cert"`
	Key                string `yaml:"key"`
	RejectUnauthorized bool   `yaml:"reject_unauthorized"`
	Prefix             string `yaml:"prefix"`
	Clean              bool   `yaml:"clean"`
}

type HomeAssistantConfig struct {
	Discovery bool   `yaml:"discovery"`
	Prefix    string `yaml:"prefix"`
}

func LoadConfig(configFile string) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %v", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("error parsing config file: %v", err)
	}

	// Set default values
	if config.MQTT.ClientID == "" {
		config.MQTT.ClientID = "tuxedo2mqtt"
	}
	if config.MQTT.Host == "" {
		config.MQTT.Host = "localhost"
	}
	if config.MQTT.Port == 0 {
		config.MQTT.Port = 1883
	}
	if config.MQTT.Keepalive == 0 {
		config.MQTT.Keepalive = 60
	}
	if config.MQTT.Prefix == "" {
		config.MQTT.Prefix = "tuxedo2mqtt"
	}
	if config.HomeAssistant.Prefix == "" {
		config.HomeAssistant.Prefix = "homeassistant"
	}
	if config.Log == "" {
		config.Log = "info"
	}
	if config.Tuxedo.PollInterval == 0 {
		config.Tuxedo.PollInterval = 30
	}
	if config.Tuxedo.Timeout == 0 {
		config.Tuxedo.Timeout = 10
	}
	if config.Tuxedo.SkipCertificateValidation == nil {
		skip := true
		config.Tuxedo.SkipCertificateValidation = &skip
	}

	if config.Tuxedo.Host == "" {
		return nil, fmt.Errorf("tuxedo.host is required")
	}
	if config.Tuxedo.APIKey == "" || config.Tuxedo.APIIV == "" {
		return nil, fmt.Errorf("tuxedo.api_key and tuxedo.api_iv are required")
	}
	if config.Tuxedo.Code != "" && !validCode(config.Tuxedo.Code) {
		return nil, fmt.Errorf("tuxedo.code must be 4 digits")
	}

	return &config, nil
}

func validCode(code string) bool {
	if len(code) != 4 {
		return false
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
