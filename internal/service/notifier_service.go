package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fadilmartias/interview-pipeline/internal/config"
	"github.com/fadilmartias/interview-pipeline/internal/logger"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

const NotificationOnboarding = "onboarding"

type Notification struct {
	CandidateID *uuid.UUID `json:"candidate_id"`
	RecordingID uuid.UUID  `json:"recording_id"`
	Type        string     `json:"type"`
	OccurredAt  time.Time  `json:"occurred_at"`
}

type NotifierServiceInterface interface {
	Send(ctx context.Context, n Notification) error
}

// WebhookNotifier hands notifications to the mail service over HTTP; the
// mail service owns templates and delivery.
type WebhookNotifier struct {
	client *resty.Client
	url    string
	secret string
}

func NewWebhookNotifier(cfg *config.NotifierConfig) *WebhookNotifier {
	return &WebhookNotifier{
		client: resty.New().SetTimeout(cfg.Timeout),
		url:    cfg.WebhookURL,
		secret: cfg.Secret,
	}
}

func (n *WebhookNotifier) Send(ctx context.Context, notification Notification) error {
	req := n.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(notification)
	if n.secret != "" {
		req.SetHeader("X-Webhook-Secret", n.secret)
	}
	resp, err := req.Post(n.url)
	if err != nil {
		return fmt.Errorf("notify %s: %w", notification.Type, err)
	}
	if resp.IsError() {
		return fmt.Errorf("notify %s: status %d: %s", notification.Type, resp.StatusCode(), truncate(resp.String(), 200))
	}
	return nil
}

// LogNotifier is used when no webhook is configured.
type LogNotifier struct {
	log *logger.Logger
}

func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{log: log.With("service", "LogNotifier")}
}

func (n *LogNotifier) Send(ctx context.Context, notification Notification) error {
	if notification.RecordingID == uuid.Nil {
		return errors.New("notification without recording")
	}
	n.log.Info("notification not delivered, no webhook configured",
		"type", notification.Type,
		"recording_id", notification.RecordingID,
		"candidate_id", notification.CandidateID,
	)
	return nil
}
