package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/talentsift/talentsift/internal/ai"
	"github.com/talentsift/talentsift/internal/logger"
)

//go:embed judge_prompt.md
var judgePromptTemplate string

// Judge asks Gemini for an independent 0-100 overall-fit opinion.
type Judge struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
}

// NewJudge creates the holistic-fit oracle.
func NewJudge(generator contentGenerator, log *zap.Logger, maxLogLength int) *Judge {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Judge{
		generator: generator,
		logger:    log,
		maxLogLen: maxLogLength,
	}
}

// Score implements ai.HolisticJudge. The returned score is clamped to [0,100];
// out-of-range or non-numeric model output is an error so the caller can apply
// its neutral-default policy.
func (j *Judge) Score(ctx context.Context, jobDescription, resumeText string) (*ai.HolisticAssessment, error) {
	if strings.TrimSpace(jobDescription) == "" {
		return nil, fmt.Errorf("job description is required")
	}
	if strings.TrimSpace(resumeText) == "" {
		return nil, fmt.Errorf("resume text is required")
	}

	prompt := strings.ReplaceAll(judgePromptTemplate, "{{JOB_DESCRIPTION}}", sanitizeUTF8(jobDescription))
	prompt = strings.ReplaceAll(prompt, "{{RESUME_TEXT}}", sanitizeUTF8(resumeText))

	raw, err := j.generator.GenerateContent(ctx, prompt)
	if err != nil {
		return nil, err
	}

	j.logger.Debug("holistic judgment response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", logger.Truncate(raw, j.maxLogLen)),
	)

	var data map[string]any
	if err := json.Unmarshal([]byte(extractJSON(raw)), &data); err != nil {
		return nil, fmt.Errorf("parse holistic judgment: %w", err)
	}

	scoreVal, ok := data["fit_score"]
	if !ok {
		return nil, fmt.Errorf("holistic judgment is missing fit_score")
	}

	score := coerceInt(scoreVal, -1)
	if score < 0 {
		return nil, fmt.Errorf("holistic judgment fit_score is not numeric")
	}
	if score > 100 {
		score = 100
	}

	return &ai.HolisticAssessment{
		Score:     score,
		Reasoning: coerceString(data["reasoning"]),
		Raw:       raw,
	}, nil
}
