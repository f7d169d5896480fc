package config

import (
	"os"
	"sync"
	"time"
)

type OpenRouterConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

var (
	openRouterConfig *OpenRouterConfig
	openRouterOnce   sync.Once
)

func LoadOpenRouterConfig() *OpenRouterConfig {
	openRouterOnce.Do(func() {
		openRouterConfig = &OpenRouterConfig{
			APIKey:  os.Getenv("OPENROUTER_API_KEY"),
			Model:   envString("OPENROUTER_MODEL", "openai/gpt-4o-mini"),
			BaseURL: envString("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
			Timeout: envDuration("OPENROUTER_TIMEOUT", 90*time.Second),
		}
	})
	return openRouterConfig
}
