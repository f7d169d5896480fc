package testutil

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fadilmartias/interview-pipeline/internal/service"
)

func Turn(role, message string) service.TranscriptTurn {
	return service.TranscriptTurn{Role: role, Message: &message}
}

func NullTurn(role string) service.TranscriptTurn {
	return service.TranscriptTurn{Role: role}
}

func ToolTurn(role, message string) service.TranscriptTurn {
	t := Turn(role, message)
	t.IsToolCall = true
	return t
}

// Conversation builds a finished provider conversation with the given turns.
func Conversation(id string, turns ...service.TranscriptTurn) *service.ConversationMetadata {
	start := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	end := start.Add(15 * time.Minute)
	return &service.ConversationMetadata{
		ConversationID:  id,
		Status:          "done",
		StartedAt:       &start,
		EndedAt:         &end,
		DurationSeconds: 900,
		Transcript:      turns,
		Raw:             []byte(`{"conversation_id":"` + id + `","status":"done"}`),
	}
}

// FakeProvider serves canned conversations. Errors take precedence over data.
type FakeProvider struct {
	mu            sync.Mutex
	metadata      map[string]*service.ConversationMetadata
	metadataErr   map[string]error
	audio         map[string][]byte
	audioErr      error
	metadataCalls map[string]int
	delay         time.Duration
}

func NewFakeProvider() *FakeProvider {
	return &FakeProvider{
		metadata:      map[string]*service.ConversationMetadata{},
		metadataErr:   map[string]error{},
		audio:         map[string][]byte{},
		metadataCalls: map[string]int{},
	}
}

func (p *FakeProvider) SetConversation(meta *service.ConversationMetadata) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.metadata[meta.ConversationID] = meta
	delete(p.metadataErr, meta.ConversationID)
}

func (p *FakeProvider) SetMetadataError(conversationID string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.metadataErr[conversationID] = err
}

func (p *FakeProvider) SetAudio(conversationID string, data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.audio[conversationID] = data
}

func (p *FakeProvider) SetAudioError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.audioErr = err
}

// SetDelay makes every metadata call block for d, widening race windows.
func (p *FakeProvider) SetDelay(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.delay = d
}

func (p *FakeProvider) MetadataCalls(conversationID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.metadataCalls[conversationID]
}

func (p *FakeProvider) GetConversationMetadata(ctx context.Context, conversationID string) (*service.ConversationMetadata, error) {
	p.mu.Lock()
	p.metadataCalls[conversationID]++
	delay := p.delay
	err := p.metadataErr[conversationID]
	meta := p.metadata[conversationID]
	p.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, &service.ProviderError{Op: "metadata", ConversationID: conversationID, Err: ctx.Err()}
		}
	}
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, &service.ProviderError{Op: "metadata", ConversationID: conversationID, StatusCode: 404, Err: errors.New("conversation not found")}
	}
	return meta, nil
}

func (p *FakeProvider) GetConversationAudio(ctx context.Context, conversationID string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.audioErr != nil {
		return nil, p.audioErr
	}
	data, ok := p.audio[conversationID]
	if !ok {
		return nil, &service.ProviderError{Op: "audio", ConversationID: conversationID, StatusCode: 404, Err: errors.New("no audio")}
	}
	return data, nil
}

// MemoryArtifactStore keeps artifacts in a map.
type MemoryArtifactStore struct {
	mu    sync.Mutex
	Files map[string][]byte
}

func NewMemoryArtifactStore() *MemoryArtifactStore {
	return &MemoryArtifactStore{Files: map[string][]byte{}}
}

func (s *MemoryArtifactStore) Save(ctx context.Context, name string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Files[name] = append([]byte(nil), data...)
	return "mem://" + name, nil
}

func (s *MemoryArtifactStore) Get(name string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.Files[name]
	return data, ok
}

// FakeNotifier publishes every notification on Sent.
type FakeNotifier struct {
	Sent chan service.Notification
	Err  error
}

func NewFakeNotifier() *FakeNotifier {
	return &FakeNotifier{Sent: make(chan service.Notification, 16)}
}

func (n *FakeNotifier) Send(ctx context.Context, notification service.Notification) error {
	n.Sent <- notification
	return n.Err
}

type FakeScorer struct {
	mu    sync.Mutex
	Score *service.InterviewScore
	Err   error
	Calls int
	Last  string
}

func (s *FakeScorer) ScoreInterview(ctx context.Context, transcript string) (*service.InterviewScore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls++
	s.Last = transcript
	if s.Err != nil {
		return nil, s.Err
	}
	score := *s.Score
	return &score, nil
}

type FakeMeetings struct {
	Meeting  *service.Meeting
	Err      error
	Requests []service.MeetingRequest
}

func (m *FakeMeetings) CreateMeeting(ctx context.Context, req service.MeetingRequest) (*service.Meeting, error) {
	m.Requests = append(m.Requests, req)
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Meeting, nil
}
