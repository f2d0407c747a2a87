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

// contentGenerator is the slice of Generator the oracles need; tests stub it.
type contentGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

//go:embed skills_prompt.md
var skillsPromptTemplate string

const defaultMaxLogLength = 200

// SkillMatcher asks Gemini which required skills appear in a resume.
type SkillMatcher struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
}

// NewSkillMatcher creates the skill-detection oracle.
func NewSkillMatcher(generator contentGenerator, log *zap.Logger, maxLogLength int) *SkillMatcher {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &SkillMatcher{
		generator: generator,
		logger:    log,
		maxLogLen: maxLogLength,
	}
}

type skillMatchResponse struct {
	MustHaveMatched   []skillMatchEntry `json:"must_have_matched"`
	NiceToHaveMatched []skillMatchEntry `json:"nice_to_have_matched"`
}

type skillMatchEntry struct {
	Skill             string `json:"skill"`
	Found             any    `json:"found"`
	ProficiencyLevel  string `json:"proficiency_level"`
	YearsOfExperience string `json:"years_of_experience"`
}

// Match implements ai.SkillMatcher. Every skill from both input lists is
// present in the result exactly once, in input order; skills the model omits
// come back as not found.
func (m *SkillMatcher) Match(ctx context.Context, resumeText string, mustHave, niceToHave []string) (*ai.SkillMatchSet, error) {
	if strings.TrimSpace(resumeText) == "" {
		return nil, fmt.Errorf("resume text is required")
	}

	prompt := strings.ReplaceAll(skillsPromptTemplate, "{{RESUME_TEXT}}", sanitizeUTF8(resumeText))
	prompt = strings.ReplaceAll(prompt, "{{MUST_HAVE_SKILLS}}", strings.Join(mustHave, ", "))
	prompt = strings.ReplaceAll(prompt, "{{NICE_TO_HAVE_SKILLS}}", strings.Join(niceToHave, ", "))

	m.logger.Debug("skill match request",
		zap.Int("must_have_count", len(mustHave)),
		zap.Int("nice_to_have_count", len(niceToHave)),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
	)

	raw, err := m.generator.GenerateContent(ctx, prompt)
	if err != nil {
		return nil, err
	}

	m.logger.Debug("skill match response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", logger.Truncate(raw, m.maxLogLen)),
	)

	var resp skillMatchResponse
	if err := json.Unmarshal([]byte(extractJSON(raw)), &resp); err != nil {
		return nil, fmt.Errorf("parse skill match response: %w", err)
	}

	return &ai.SkillMatchSet{
		MustHave:   alignMatches(mustHave, resp.MustHaveMatched),
		NiceToHave: alignMatches(niceToHave, resp.NiceToHaveMatched),
	}, nil
}

// alignMatches maps model output back onto the requested skill list so the
// result always covers every requested skill, in order, regardless of what
// the model returned.
func alignMatches(requested []string, entries []skillMatchEntry) []ai.SkillMatch {
	byName := make(map[string]skillMatchEntry, len(entries))
	for _, e := range entries {
		byName[strings.ToLower(strings.TrimSpace(e.Skill))] = e
	}

	matches := make([]ai.SkillMatch, 0, len(requested))
	for _, skill := range requested {
		match := ai.SkillMatch{Skill: skill}
		if e, ok := byName[strings.ToLower(strings.TrimSpace(skill))]; ok {
			match.Found = coerceBool(e.Found)
			match.ProficiencyLevel = strings.TrimSpace(e.ProficiencyLevel)
			match.YearsOfExperience = strings.TrimSpace(e.YearsOfExperience)
		}
		matches = append(matches, match)
	}
	return matches
}

// sanitizeUTF8 replaces invalid byte sequences before the text reaches the
// API transport.
func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, "�")
}
