package config

import (
	"os"
	"sync"
	"time"
)

type MeetingConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

var (
	meetingConfig *MeetingConfig
	meetingOnce   sync.Once
)

func LoadMeetingConfig() *MeetingConfig {
	meetingOnce.Do(func() {
		meetingConfig = &MeetingConfig{
			BaseURL: envString("MEETING_API_URL", "https://api.zoom.us/v2"),
			Token:   os.Getenv("MEETING_API_TOKEN"),
			Timeout: envDuration("MEETING_API_TIMEOUT", 20*time.Second),
		}
	})
	return meetingConfig
}
