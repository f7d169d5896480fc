package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/fadilmartias/interview-pipeline/internal/config"
	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
)

// OpenRouterService scores interviews through the OpenRouter chat API. It is
// the fallback scorer when no Gemini key is configured.
type OpenRouterService struct {
	APIKey  string
	Model   string
	BaseURL string
	client  *resty.Client
}

func NewOpenRouterService(cfg *config.OpenRouterConfig) *OpenRouterService {
	return &OpenRouterService{
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
		BaseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  resty.New().SetTimeout(cfg.Timeout),
	}
}

func (s *OpenRouterService) ScoreInterview(ctx context.Context, transcript string) (*InterviewScore, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+s.APIKey).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]interface{}{
			"model": s.Model,
			"messages": []map[string]string{
				{"role": "system", "content": "You are an AI evaluating screening interviews. Answer with JSON only."},
				{"role": "user", "content": buildScoringPrompt(transcript)},
			},
		}).
		Post(s.BaseURL + "/chat/completions")
	if err != nil {
		return nil, fmt.Errorf("openrouter request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("openrouter status %d: %s", resp.StatusCode(), truncate(resp.String(), 200))
	}

	text := gjson.Get(resp.String(), "choices.0.message.content").String()
	if text == "" {
		return nil, fmt.Errorf("no response from LLM")
	}
	score, err := parseInterviewScore(text)
	if err != nil {
		return nil, err
	}
	score.Model = s.Model
	return score, nil
}
