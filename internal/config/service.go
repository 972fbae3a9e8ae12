package config

import "time"

type ServiceConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
	ClientURL   string `yaml:"client_url"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Format      string `yaml:"format"`
	Output      string `yaml:"output"`
	Development bool   `yaml:"development"`
}

type JWTConfig struct {
	Secret string `yaml:"secret"`
}

// ReconcilerConfig controls the background status poller.
type ReconcilerConfig struct {
	// Interval between poll cycles.
	Interval time.Duration `yaml:"interval"`
	// Grace is how long a processing payment is left alone before the
	// poller starts asking the provider about it.
	Grace time.Duration `yaml:"grace"`
	// BatchSize caps how many payments one cycle polls.
	BatchSize int `yaml:"batch_size"`
}

func (c *ReconcilerConfig) applyDefaults() {
	if c.Interval <= 0 {
		c.Interval = time.Minute
	}
	if c.Grace <= 0 {
		c.Grace = 2 * time.Minute
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
}
