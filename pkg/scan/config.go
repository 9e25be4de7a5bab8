package scan

import (
	"log/slog"
	"time"
)

// Config holds controller parameters.
type Config struct {
	// Progress ticker. Progress advances by TickStep every TickInterval and
	// stops on its own at TickCeiling, which must stay below 100.
	TickInterval time.Duration
	TickStep     int
	TickCeiling  int

	// EstimatedDuration seeds the cosmetic time-remaining display.
	EstimatedDuration time.Duration

	Logger *slog.Logger
}

// DefaultConfig returns the standard ticker: +5% every 250ms up to 90%,
// counting down from 5 seconds.
func DefaultConfig() Config {
	return Config{
		TickInterval:      250 * time.Millisecond,
		TickStep:          5,
		TickCeiling:       90,
		EstimatedDuration: 5 * time.Second,
		Logger:            slog.Default(),
	}
}

func (c Config) normalized() Config {
	def := DefaultConfig()
	if c.TickInterval <= 0 {
		c.TickInterval = def.TickInterval
	}
	if c.TickStep <= 0 {
		c.TickStep = def.TickStep
	}
	if c.TickCeiling <= 0 || c.TickCeiling >= 100 {
		c.TickCeiling = def.TickCeiling
	}
	if c.EstimatedDuration < 0 {
		c.EstimatedDuration = 0
	}
	if c.Logger == nil {
		c.Logger = def.Logger
	}
	return c
}

// estimatedTime returns the seconds left for a given progress.
func (c Config) estimatedTime(progress int) float64 {
	left := c.EstimatedDuration.Seconds() * (1 - float64(progress)/100)
	if left < 0 {
		return 0
	}
	return left
}
