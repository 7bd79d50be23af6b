package pausectl

import (
	"fmt"
	"time"
)

// Config controls how the local mirror is kept fresh.
type Config struct {
	// ResyncInterval is how often the mirror is rebuilt from the shared
	// store. Staleness from missed notifications is bounded by it.
	ResyncInterval time.Duration `yaml:"resyncInterval"`

	// JitterRatio spreads resync ticks so a fleet of workers does not hit
	// the store in lockstep. 0 disables jitter.
	JitterRatio float64 `yaml:"jitterRatio"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		ResyncInterval: 60 * time.Second,
		JitterRatio:    0.1,
	}
}

// Validate ensures config values are safe.
func (c Config) Validate() error {
	if c.ResyncInterval <= 0 {
		return fmt.Errorf("ResyncInterval must be >0")
	}
	if c.JitterRatio < 0 || c.JitterRatio > 1 {
		return fmt.Errorf("JitterRatio must be between 0 and 1")
	}
	return nil
}
