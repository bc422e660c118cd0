package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"tuxedo2mqtt/internal/cache"
	"tuxedo2mqtt/internal/config"
	"tuxedo2mqtt/internal/homeassistant"
	"tuxedo2mqtt/internal/log"
	"tuxedo2mqtt/internal/mqtt"
	"tuxedo2mqtt/internal/panel"
)

func main() {
	configFile := flag.String("config", "config.yml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Create logger
	logger := log.NewLogger(cfg.Log)

	// Create panel controller
	p, err := panel.NewPanel(cfg, logger)
	if err != nil {
		logger.Error("Failed to create panel: %v", err)
		os.Exit(1)
	}

	// Load cache if enabled, so a retained state is available before the
	// first poll completes
	if cfg.Cache {
		cacheData, err := cache.LoadCache()
		if err != nil {
			logger.Warning("Failed to load cache: %v", err)
		} else if cacheData != nil && cacheData.Host == cfg.Tuxedo.Host {
			p.SetCachedData(cacheData)
			logger.Info("Loaded panel state from cache")
		}
	} else {
		if err := cache.DeleteCache(); err != nil {
			logger.Warning("Failed to delete stale cache: %v", err)
		}
	}

	// Create MQTT client
	mqttClient := mqtt.NewMQTT(&cfg.MQTT, p, logger)

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Connect to MQTT broker
	if err := mqttClient.Connect(); err != nil {
		logger.Error("Failed to connect to MQTT broker: %v", err)
		os.Exit(1)
	}

	// Start panel polling and forward state changes to MQTT
	p.Start()
	go mqttClient.Listen()

	// Publish Home Assistant discovery config if enabled
	if cfg.HomeAssistant.Discovery {
		ha := homeassistant.New(cfg, mqttClient, logger)
		ha.Start()
	}

	// Wait for termination signal
	<-sigChan

	// Graceful shutdown
	logger.Info("Shutting down...")
	p.Stop()
	mqttClient.Close()

	// Save cache if enabled
	if cfg.Cache {
		if err := cache.SaveCache(p.GetCacheableData()); err != nil {
			logger.Warning("Failed to save cache: %v", err)
		} else {
			logger.Info("Saved panel state to cache")
		}
	}
}
