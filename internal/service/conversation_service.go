package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/fadilmartias/interview-pipeline/internal/config"
	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
)

type ConversationServiceInterface interface {
	GetConversationMetadata(ctx context.Context, conversationID string) (*ConversationMetadata, error)
	GetConversationAudio(ctx context.Context, conversationID string) ([]byte, error)
}

// TranscriptTurn is one provider transcript entry. Message is nil when the
// provider sent null (tool-call artifacts do this).
type TranscriptTurn struct {
	Role              string
	Message           *string
	TimeInCallSeconds *float64
	DurationMs        *int64
	IsToolCall        bool
	Raw               json.RawMessage
}

type ConversationMetadata struct {
	ConversationID  string
	Status          string
	StartedAt       *time.Time
	EndedAt         *time.Time
	DurationSeconds int
	Transcript      []TranscriptTurn
	Raw             json.RawMessage
}

// InProgress reports whether the provider is still producing the conversation.
func (m *ConversationMetadata) InProgress() bool {
	switch strings.ToLower(m.Status) {
	case "initiated", "in-progress", "in_progress", "processing":
		return true
	default:
		return false
	}
}

// ProviderError wraps every failed provider call: transport errors, timeouts,
// non-2xx answers and unparseable bodies. All of them are retryable.
type ProviderError struct {
	Op             string
	ConversationID string
	StatusCode     int
	Err            error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider %s %s: status %d: %v", e.Op, e.ConversationID, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("provider %s %s: %v", e.Op, e.ConversationID, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

func (e *ProviderError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}

type ConversationService struct {
	client          *resty.Client
	metadataTimeout time.Duration
	audioTimeout    time.Duration
}

func NewConversationService(cfg *config.ProviderConfig) *ConversationService {
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader("xi-api-key", cfg.APIKey)
	return &ConversationService{
		client:          client,
		metadataTimeout: cfg.MetadataTimeout,
		audioTimeout:    cfg.AudioTimeout,
	}
}

func (s *ConversationService) GetConversationMetadata(ctx context.Context, conversationID string) (*ConversationMetadata, error) {
	body, err := s.get(ctx, "metadata", conversationID, "/v1/convai/conversations/{id}", s.metadataTimeout, "application/json")
	if err != nil {
		return nil, err
	}
	meta, err := ParseConversation(conversationID, body)
	if err != nil {
		return nil, &ProviderError{Op: "metadata", ConversationID: conversationID, Err: err}
	}
	return meta, nil
}

func (s *ConversationService) GetConversationAudio(ctx context.Context, conversationID string) ([]byte, error) {
	body, err := s.get(ctx, "audio", conversationID, "/v1/convai/conversations/{id}/audio", s.audioTimeout, "audio/mpeg")
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, &ProviderError{Op: "audio", ConversationID: conversationID, Err: errors.New("empty audio body")}
	}
	return body, nil
}

func (s *ConversationService) get(ctx context.Context, op, conversationID, path string, timeout time.Duration, accept string) ([]byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Accept", accept).
		SetPathParam("id", conversationID).
		Get(path)
	if err != nil {
		return nil, &ProviderError{Op: op, ConversationID: conversationID, Err: err}
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return nil, &ProviderError{
			Op:             op,
			ConversationID: conversationID,
			StatusCode:     resp.StatusCode(),
			Err:            errors.New(truncate(resp.String(), 300)),
		}
	}
	return resp.Body(), nil
}

// ParseConversation validates the provider body and lifts the fields the
// reconciler reads into typed values. The body itself is kept as Raw.
func ParseConversation(conversationID string, body []byte) (*ConversationMetadata, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New("conversation body is not valid JSON")
	}
	doc := gjson.ParseBytes(body)
	if !doc.IsObject() {
		return nil, errors.New("conversation body is not a JSON object")
	}

	meta := &ConversationMetadata{
		ConversationID: conversationID,
		Status:         doc.Get("status").String(),
		Raw:            json.RawMessage(body),
	}
	if id := doc.Get("conversation_id").String(); id != "" {
		meta.ConversationID = id
	}

	if start := doc.Get("metadata.start_time_unix_secs"); start.Exists() && start.Int() > 0 {
		t := time.Unix(start.Int(), 0).UTC()
		meta.StartedAt = &t
	}
	if d := doc.Get("metadata.call_duration_secs"); d.Exists() {
		meta.DurationSeconds = int(d.Int())
	}
	if meta.StartedAt != nil && meta.DurationSeconds > 0 {
		end := meta.StartedAt.Add(time.Duration(meta.DurationSeconds) * time.Second)
		meta.EndedAt = &end
	}

	transcript := doc.Get("transcript")
	if transcript.Exists() && !transcript.IsArray() && transcript.Type != gjson.Null {
		return nil, errors.New("transcript is not an array")
	}
	transcript.ForEach(func(_, item gjson.Result) bool {
		turn := TranscriptTurn{
			Role: item.Get("role").String(),
			Raw:  json.RawMessage(item.Raw),
		}
		if msg := item.Get("message"); msg.Exists() && msg.Type != gjson.Null {
			text := msg.String()
			turn.Message = &text
		}
		if t := item.Get("time_in_call_secs"); t.Exists() && t.Type == gjson.Number {
			v := t.Float()
			turn.TimeInCallSeconds = &v
		}
		if d := item.Get("duration_ms"); d.Exists() && d.Type == gjson.Number {
			v := d.Int()
			turn.DurationMs = &v
		}
		calls := item.Get("tool_calls")
		results := item.Get("tool_results")
		turn.IsToolCall = (calls.IsArray() && len(calls.Array()) > 0) || (results.IsArray() && len(results.Array()) > 0)
		meta.Transcript = append(meta.Transcript, turn)
		return true
	})
	return meta, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
