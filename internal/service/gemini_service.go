package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/fadilmartias/interview-pipeline/internal/config"
	"github.com/fadilmartias/interview-pipeline/internal/logger"
	"google.golang.org/genai"
)

type GeminiService struct {
	Client         *genai.Client
	Model          string
	MaxRetries     int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	RequestTimeout time.Duration

	// CircuitCooldown is how long the breaker stays open before a single
	// trial request is let through.
	CircuitCooldown time.Duration

	log               *logger.Logger
	now               func() time.Time
	mu                sync.Mutex
	consecutiveErrors int
	circuitBreakerMax int
	openedAt          time.Time
	trialInFlight     bool
}

const defaultCircuitCooldown = 60 * time.Second

func NewGeminiService(ctx context.Context, cfg *config.GeminiConfig, log *logger.Logger) (*GeminiService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY not set")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiService{
		Client:            client,
		Model:             cfg.Model,
		MaxRetries:        3,
		BaseDelay:         time.Second,
		MaxDelay:          90 * time.Second,
		RequestTimeout:    90 * time.Second,
		CircuitCooldown:   defaultCircuitCooldown,
		log:               log.With("service", "GeminiService"),
		circuitBreakerMax: 5,
	}, nil
}

func (s *GeminiService) ScoreInterview(ctx context.Context, transcript string) (*InterviewScore, error) {
	result, err := s.GenerateContent(ctx, s.Model, buildScoringPrompt(transcript))
	if err != nil {
		if errs, open := s.GetCircuitBreakerStatus(); open {
			s.log.Warn("gemini circuit breaker open", "consecutive_errors", errs, "cooldown", s.cooldown())
		}
		return nil, err
	}
	score, err := parseInterviewScore(result.Text())
	if err != nil {
		return nil, err
	}
	score.Model = s.Model
	return score, nil
}

func (s *GeminiService) GenerateContent(ctx context.Context, model string, prompt string) (*genai.GenerateContentResponse, error) {
	if model == "" {
		return nil, fmt.Errorf("model name cannot be empty")
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, fmt.Errorf("prompt cannot be empty")
	}

	if err := s.allowRequest(); err != nil {
		return nil, err
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, s.RequestTimeout)
	defer cancel()

	genConfig := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(float32(0.1)),
		ResponseMIMEType: "application/json",
	}

	var lastErr error
	for attempt := 0; attempt <= s.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := s.calculateBackoff(attempt)
			s.log.Warn("retrying GenerateContent", "attempt", attempt, "max_retries", s.MaxRetries, "delay", delay)

			select {
			case <-time.After(delay):
			case <-timeoutCtx.Done():
				s.recordFailure()
				return nil, fmt.Errorf("context timeout during retry: %w", timeoutCtx.Err())
			}
		}

		result, err := s.Client.Models.GenerateContent(
			timeoutCtx,
			model,
			genai.Text(prompt),
			genConfig,
		)
		if err == nil {
			s.recordSuccess()
			if err := s.validateGenerateResponse(result); err != nil {
				return nil, fmt.Errorf("invalid response: %w", err)
			}
			return result, nil
		}

		lastErr = err
		if !s.isRetryableError(err) {
			s.recordFailure()
			return nil, fmt.Errorf("generate content failed: %w", err)
		}
		s.log.Warn("retryable gemini error", "attempt", attempt+1, "error", err)
	}

	s.recordFailure()
	return nil, fmt.Errorf("max retries (%d) exceeded for GenerateContent: %w", s.MaxRetries, lastErr)
}

func (s *GeminiService) calculateBackoff(attempt int) time.Duration {
	delay := s.BaseDelay * time.Duration(math.Pow(2, float64(attempt-1)))
	if delay > s.MaxDelay {
		delay = s.MaxDelay
	}
	// +/-12.5% jitter, still capped at MaxDelay.
	jitter := float64(delay) * 0.25
	delay += time.Duration(jitter*rand.Float64() - jitter/2)
	if delay > s.MaxDelay {
		delay = s.MaxDelay
	}
	return delay
}

func (s *GeminiService) isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *genai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case 429, 500, 502, 503, 504:
			return true
		default:
			return false
		}
	}

	errMsg := err.Error()
	return strings.Contains(errMsg, "connection refused") ||
		strings.Contains(errMsg, "connection reset") ||
		strings.Contains(errMsg, "timeout") ||
		strings.Contains(errMsg, "temporary failure") ||
		strings.Contains(errMsg, "EOF")
}

func (s *GeminiService) validateGenerateResponse(resp *genai.GenerateContentResponse) error {
	if resp == nil {
		return fmt.Errorf("response is nil")
	}
	if len(resp.Candidates) == 0 {
		return fmt.Errorf("no candidates in response")
	}
	if resp.Candidates[0].Content == nil {
		return fmt.Errorf("candidate content is nil")
	}
	if len(resp.Candidates[0].Content.Parts) == 0 {
		return fmt.Errorf("no parts in content")
	}
	return nil
}

func (s *GeminiService) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

func (s *GeminiService) cooldown() time.Duration {
	if s.CircuitCooldown > 0 {
		return s.CircuitCooldown
	}
	return defaultCircuitCooldown
}

// allowRequest admits every call while the breaker is closed. Once open it
// rejects calls until the cooldown elapses, then admits one trial call whose
// outcome closes or reopens the breaker.
func (s *GeminiService) allowRequest() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.consecutiveErrors < s.circuitBreakerMax {
		return nil
	}
	if s.trialInFlight {
		return fmt.Errorf("circuit breaker half-open: trial request in flight")
	}
	if wait := s.cooldown() - s.clock().Sub(s.openedAt); wait > 0 {
		return fmt.Errorf("circuit breaker open: too many consecutive errors (%d), retry in %s",
			s.consecutiveErrors, wait.Round(time.Second))
	}
	s.trialInFlight = true
	if s.log != nil {
		s.log.Info("circuit breaker half-open, sending trial request")
	}
	return nil
}

func (s *GeminiService) recordSuccess() {
	s.mu.Lock()
	s.consecutiveErrors = 0
	s.trialInFlight = false
	s.openedAt = time.Time{}
	s.mu.Unlock()
}

func (s *GeminiService) recordFailure() {
	s.mu.Lock()
	s.consecutiveErrors++
	s.trialInFlight = false
	if s.consecutiveErrors >= s.circuitBreakerMax {
		s.openedAt = s.clock()
	}
	s.mu.Unlock()
}

// GetCircuitBreakerStatus reports isOpen while calls are being rejected,
// either inside the cooldown or while a trial call is outstanding.
func (s *GeminiService) GetCircuitBreakerStatus() (consecutiveErrors int, isOpen bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.consecutiveErrors < s.circuitBreakerMax {
		return s.consecutiveErrors, false
	}
	return s.consecutiveErrors, s.trialInFlight || s.clock().Sub(s.openedAt) < s.cooldown()
}
