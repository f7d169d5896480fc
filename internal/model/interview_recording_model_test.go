package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordingPayload(t *testing.T) {
	rec := &InterviewRecording{}
	assert.Equal(t, RecordingPayload{}, rec.Payload())

	rec.RawPayload = EncodePayload(RecordingPayload{
		Conversation:          []byte(`{"status":"done"}`),
		EmptyTranscript:       true,
		EmptyTranscriptReason: "provider returned no transcript turns",
	})
	p := rec.Payload()
	require.True(t, p.EmptyTranscript)
	assert.JSONEq(t, `{"status":"done"}`, string(p.Conversation))
	assert.Nil(t, p.LastError)

	rec.RawPayload = []byte("not json")
	assert.Equal(t, RecordingPayload{}, rec.Payload())
}

func TestSyntheticConversation(t *testing.T) {
	assert.True(t, IsSyntheticConversation("manual_1234"))
	assert.False(t, IsSyntheticConversation("abc123"))
	assert.False(t, IsSyntheticConversation("manualx"))
}

func TestStatusHelpers(t *testing.T) {
	assert.True(t, RecordingFailed.Retryable())
	assert.True(t, RecordingProcessing.Retryable())
	assert.False(t, RecordingCompleted.Retryable())

	assert.True(t, SessionReady.IsActive())
	assert.True(t, SessionInProgress.IsActive())
	assert.True(t, SessionPartial.IsTerminal())
	assert.False(t, SessionReady.IsTerminal())

	assert.Equal(t, RoleCandidate, RoleFromProvider("user"))
	assert.Equal(t, RoleInterviewer, RoleFromProvider("agent"))
	assert.Equal(t, RoleSystem, RoleFromProvider("tool"))
}
