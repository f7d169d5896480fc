package config

import (
	"os"
	"sync"
	"time"
)

type NotifierConfig struct {
	WebhookURL string
	Secret     string
	Timeout    time.Duration
}

var (
	notifierConfig *NotifierConfig
	notifierOnce   sync.Once
)

func LoadNotifierConfig() *NotifierConfig {
	notifierOnce.Do(func() {
		notifierConfig = &NotifierConfig{
			WebhookURL: os.Getenv("NOTIFIER_WEBHOOK_URL"),
			Secret:     os.Getenv("NOTIFIER_WEBHOOK_SECRET"),
			Timeout:    envDuration("NOTIFIER_TIMEOUT", 15*time.Second),
		}
	})
	return notifierConfig
}
