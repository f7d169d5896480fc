package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fadilmartias/interview-pipeline/internal/config"
	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
)

type MeetingRequest struct {
	Topic           string
	StartTime       time.Time
	DurationMinutes int
}

type Meeting struct {
	ID       string
	JoinURL  string
	Password string
}

type MeetingServiceInterface interface {
	CreateMeeting(ctx context.Context, req MeetingRequest) (*Meeting, error)
}

type MeetingService struct {
	client *resty.Client
}

func NewMeetingService(cfg *config.MeetingConfig) *MeetingService {
	return &MeetingService{
		client: resty.New().
			SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
			SetAuthToken(cfg.Token).
			SetTimeout(cfg.Timeout),
	}
}

func (s *MeetingService) CreateMeeting(ctx context.Context, req MeetingRequest) (*Meeting, error) {
	if req.DurationMinutes <= 0 {
		req.DurationMinutes = 60
	}
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]interface{}{
			"topic":      req.Topic,
			"type":       2,
			"start_time": req.StartTime.UTC().Format(time.RFC3339),
			"duration":   req.DurationMinutes,
			"timezone":   "UTC",
		}).
		Post("/users/me/meetings")
	if err != nil {
		return nil, fmt.Errorf("create meeting: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("create meeting: status %d: %s", resp.StatusCode(), truncate(resp.String(), 200))
	}

	body := resp.String()
	meeting := &Meeting{
		ID:       gjson.Get(body, "id").String(),
		JoinURL:  gjson.Get(body, "join_url").String(),
		Password: gjson.Get(body, "password").String(),
	}
	if meeting.JoinURL == "" {
		return nil, errors.New("create meeting: response without join_url")
	}
	return meeting, nil
}
