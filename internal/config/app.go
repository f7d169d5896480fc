package config

import (
	"os"
	"sync"
)

type AppConfig struct {
	Name    string
	Env     string
	Port    string
	BaseURL string
}

var (
	appConfig *AppConfig
	appOnce   sync.Once
)

func LoadAppConfig() *AppConfig {
	appOnce.Do(func() {
		appConfig = &AppConfig{
			Name:    envString("APP_NAME", "interview-pipeline"),
			Env:     envString("APP_ENV", "development"),
			Port:    envString("APP_PORT", ":8080"),
			BaseURL: os.Getenv("APP_URL"),
		}
	})
	return appConfig
}

func (c *AppConfig) IsProduction() bool {
	return c.Env == "production"
}
