package config

import (
	"os"
	"sync"
	"time"
)

// ProviderConfig points at the conversational-AI provider that hosts the
// voice interviews.
type ProviderConfig struct {
	BaseURL         string
	APIKey          string
	MetadataTimeout time.Duration
	AudioTimeout    time.Duration
	AudioDir        string
}

var (
	providerConfig *ProviderConfig
	providerOnce   sync.Once
)

func LoadProviderConfig() *ProviderConfig {
	providerOnce.Do(func() {
		providerConfig = &ProviderConfig{
			BaseURL:         envString("PROVIDER_BASE_URL", "https://api.elevenlabs.io"),
			APIKey:          os.Getenv("PROVIDER_API_KEY"),
			MetadataTimeout: envDuration("PROVIDER_METADATA_TIMEOUT", 30*time.Second),
			AudioTimeout:    envDuration("PROVIDER_AUDIO_TIMEOUT", 120*time.Second),
			AudioDir:        envString("AUDIO_DIR", "./uploads/audio"),
		}
	})
	return providerConfig
}
