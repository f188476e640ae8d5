package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// SERVER_ADDR is the base URL of a running server, e.g. http://localhost:5000
	ServerAddr string `envconfig:"SERVER_ADDR"`
	// E2E_DEBUG_JSON dumps request and response bodies
	DebugJSON bool `envconfig:"E2E_DEBUG_JSON" default:"false"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
	// EXPIRY_THRESHOLD and SWEEP_PERIOD must match the server under test
	ExpiryThreshold string `envconfig:"EXPIRY_THRESHOLD" default:"10s"`
	SweepPeriod     string `envconfig:"SWEEP_PERIOD" default:"15s"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
