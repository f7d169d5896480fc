package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// InterviewScore is the black-box scorer output. Scores are on a 0-10 scale.
type InterviewScore struct {
	OverallScore        float64
	TechnicalScore      float64
	CommunicationScore  float64
	ProblemSolvingScore float64
	Recommendation      string
	Summary             string
	Model               string
	Raw                 string
}

type ScorerServiceInterface interface {
	ScoreInterview(ctx context.Context, transcript string) (*InterviewScore, error)
}

func buildScoringPrompt(transcript string) string {
	return fmt.Sprintf(`
You are an experienced technical recruiter reviewing a screening interview transcript.

Return your answer STRICTLY in JSON format with this schema:
{
	"overall_score": <float 0-10, one decimal>,
	"technical_score": <float 0-10>,
	"communication_score": <float 0-10>,
	"problem_solving_score": <float 0-10>,
	"recommendation": "<one of: reject, on_hold, proceed, hire>",
	"summary": "<two or three sentences on strengths and gaps>"
}

Transcript:
%s
`, transcript)
}

// parseInterviewScore reads the scorer JSON, tolerating markdown code fences.
func parseInterviewScore(text string) (*InterviewScore, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)
	if !gjson.Valid(text) {
		return nil, errors.New("scorer returned invalid JSON")
	}
	if !gjson.Get(text, "overall_score").Exists() {
		return nil, errors.New("scorer response missing overall_score")
	}
	return &InterviewScore{
		OverallScore:        clampScore(gjson.Get(text, "overall_score").Float()),
		TechnicalScore:      clampScore(gjson.Get(text, "technical_score").Float()),
		CommunicationScore:  clampScore(gjson.Get(text, "communication_score").Float()),
		ProblemSolvingScore: clampScore(gjson.Get(text, "problem_solving_score").Float()),
		Recommendation:      gjson.Get(text, "recommendation").String(),
		Summary:             gjson.Get(text, "summary").String(),
		Raw:                 text,
	}, nil
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 10 {
		return 10
	}
	return v
}
