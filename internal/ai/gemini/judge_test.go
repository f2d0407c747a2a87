package gemini

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
)

func TestJudgeScore(t *testing.T) {
	t.Parallel()

	stub := &stubGenerator{response: `{"fit_score": 72, "reasoning": "solid backend background"}`}
	judge := NewJudge(stub, zap.NewNop(), 0)

	got, err := judge.Score(context.Background(), "job description", "resume text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Score != 72 {
		t.Fatalf("expected score 72, got %d", got.Score)
	}
	if got.Reasoning != "solid backend background" {
		t.Fatalf("unexpected reasoning: %q", got.Reasoning)
	}
	if got.Raw == "" {
		t.Fatalf("expected raw response to be kept")
	}
}

func TestJudgeScoreCoercion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		response string
		want     int
		wantErr  bool
	}{
		{name: "string score", response: `{"fit_score": "64", "reasoning": "ok"}`, want: 64},
		{name: "fractional score rounds", response: `{"fit_score": 59.6}`, want: 60},
		{name: "above range clamps", response: `{"fit_score": 140}`, want: 100},
		{name: "fenced json", response: "```json\n{\"fit_score\": 33}\n```", want: 33},
		{name: "missing score", response: `{"reasoning": "no number"}`, wantErr: true},
		{name: "non numeric score", response: `{"fit_score": "high"}`, wantErr: true},
		{name: "not json", response: "the candidate seems fine", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			judge := NewJudge(&stubGenerator{response: tt.response}, zap.NewNop(), 0)
			got, err := judge.Score(context.Background(), "jd", "resume")
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Score != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, got.Score)
			}
		})
	}
}

func TestJudgeScoreGeneratorFailure(t *testing.T) {
	t.Parallel()

	judge := NewJudge(&stubGenerator{err: errors.New("quota exceeded")}, zap.NewNop(), 0)
	if _, err := judge.Score(context.Background(), "jd", "resume"); err == nil {
		t.Fatal("expected error")
	}
}

func TestJudgeScoreRequiresInputs(t *testing.T) {
	t.Parallel()

	judge := NewJudge(&stubGenerator{}, zap.NewNop(), 0)
	if _, err := judge.Score(context.Background(), "", "resume"); err == nil {
		t.Fatal("expected error for empty job description")
	}
	if _, err := judge.Score(context.Background(), "jd", ""); err == nil {
		t.Fatal("expected error for empty resume")
	}
}
