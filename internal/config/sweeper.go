package config

import (
	"sync"
	"time"
)

type SweeperConfig struct {
	Interval          time.Duration
	RecentWindow      time.Duration
	ProcessingGrace   time.Duration
	MaxAttempts       int
	Concurrency       int
	RetryDelay        time.Duration
	StaleSessionAfter time.Duration
	MaxActiveSessions int
}

var (
	sweeperConfig *SweeperConfig
	sweeperOnce   sync.Once
)

func LoadSweeperConfig() *SweeperConfig {
	sweeperOnce.Do(func() {
		sweeperConfig = &SweeperConfig{
			Interval:          envDuration("SWEEP_INTERVAL", 5*time.Minute),
			RecentWindow:      envDuration("SWEEP_RECENT_WINDOW", time.Hour),
			ProcessingGrace:   envDuration("SWEEP_PROCESSING_GRACE", 2*time.Minute),
			MaxAttempts:       envInt("SWEEP_MAX_ATTEMPTS", 2),
			Concurrency:       envInt("SWEEP_CONCURRENCY", 4),
			RetryDelay:        envDuration("SWEEP_RETRY_DELAY", 2*time.Second),
			StaleSessionAfter: envDuration("SESSION_STALE_AFTER", 30*time.Minute),
			MaxActiveSessions: envInt("SESSION_MAX_ACTIVE", 5),
		}
	})
	return sweeperConfig
}
