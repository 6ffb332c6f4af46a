// Package config centralizes the environment-variable configuration
// pattern the teacher's cmd/pinchd/main.go applies inline, so both
// process entry points (placement-center, mqtt-broker) read their
// settings the same way.
package config

import (
	"os"
	"strconv"
)

// PlacementCenter holds the placement-center process's configuration.
type PlacementCenter struct {
	Port        string
	ClusterName string
	DBPath      string
}

// LoadPlacementCenter reads placement-center configuration from the
// environment, applying the same defaults-on-empty pattern as the
// teacher's relay.
func LoadPlacementCenter() PlacementCenter {
	return PlacementCenter{
		Port:        getString("ROBUSTMQ_PLACEMENT_PORT", "1228"),
		ClusterName: getString("ROBUSTMQ_CLUSTER_NAME", "default-cluster"),
		DBPath:      getString("ROBUSTMQ_PLACEMENT_DB", "./placement-center.db"),
	}
}

// MQTTBroker holds the MQTT broker process's configuration.
type MQTTBroker struct {
	Port           string
	ClusterName    string
	PlacementAddr  string
	BrokerID       uint64
	AdvertisedAddr string
	RateLimit      float64
	RateBurst      int
	DevMode        bool
}

// LoadMQTTBroker reads MQTT broker configuration from the environment.
func LoadMQTTBroker() MQTTBroker {
	port := getString("ROBUSTMQ_BROKER_PORT", "1883")
	return MQTTBroker{
		Port:           port,
		ClusterName:    getString("ROBUSTMQ_CLUSTER_NAME", "default-cluster"),
		PlacementAddr:  getString("ROBUSTMQ_PLACEMENT_ADDR", "http://localhost:1228"),
		BrokerID:       uint64(getInt("ROBUSTMQ_BROKER_ID", 1)),
		AdvertisedAddr: getString("ROBUSTMQ_BROKER_ADVERTISED_ADDR", "localhost:"+port),
		RateLimit:      getFloat("ROBUSTMQ_RATE_LIMIT", 50.0),
		RateBurst:      getInt("ROBUSTMQ_RATE_BURST", 100),
		DevMode:        os.Getenv("ROBUSTMQ_DEV") == "1",
	}
}

func getString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			return f
		}
	}
	return fallback
}
