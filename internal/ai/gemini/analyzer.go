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

//go:embed profile_prompt.md
var profilePromptTemplate string

//go:embed insights_prompt.md
var insightsPromptTemplate string

const notSpecified = "Not specified"

// Analyzer runs the narrative analyses: candidate identity extraction and the
// summary/skill-depth/tenure/company-tier insights bundle.
type Analyzer struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
}

// NewAnalyzer creates the analysis oracle.
func NewAnalyzer(generator contentGenerator, log *zap.Logger, maxLogLength int) *Analyzer {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Analyzer{
		generator: generator,
		logger:    log,
		maxLogLen: maxLogLength,
	}
}

// Extract implements ai.ProfileExtractor. Missing fields come back as
// "Not specified" so reports never carry empty identity columns.
func (a *Analyzer) Extract(ctx context.Context, resumeText string) (*ai.CandidateInfo, error) {
	if strings.TrimSpace(resumeText) == "" {
		return nil, fmt.Errorf("resume text is required")
	}

	prompt := strings.ReplaceAll(profilePromptTemplate, "{{RESUME_TEXT}}", sanitizeUTF8(resumeText))

	raw, err := a.generator.GenerateContent(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var info ai.CandidateInfo
	if err := json.Unmarshal([]byte(extractJSON(raw)), &info); err != nil {
		return nil, fmt.Errorf("parse candidate info: %w", err)
	}

	fillNotSpecified(&info.Name)
	fillNotSpecified(&info.Email)
	fillNotSpecified(&info.Phone)
	fillNotSpecified(&info.Position)
	fillNotSpecified(&info.Location)
	fillNotSpecified(&info.TotalExperience)

	return &info, nil
}

type insightsResponse struct {
	Summary             []string        `json:"ai_summary"`
	SkillDepth          []ai.SkillDepth `json:"skill_depth_analysis"`
	ProfessionalSummary struct {
		AverageJobTenure string        `json:"average_job_tenure"`
		TenureAssessment string        `json:"tenure_assessment"`
		CareerGap        *ai.CareerGap `json:"career_gap"`
		IndustryExposure []struct {
			Industry   string `json:"industry"`
			Percentage any    `json:"percentage"`
		} `json:"industry_exposure"`
		TotalCompanies any `json:"total_companies"`
	} `json:"professional_summary"`
	CompanyTiers struct {
		Startup    any `json:"startup_percentage"`
		MidSize    any `json:"mid_size_percentage"`
		Enterprise any `json:"enterprise_percentage"`
	} `json:"company_tier_analysis"`
}

// Analyze implements ai.InsightsAnalyzer. The response is normalized: summary
// capped at 4 bullets, proficiency percentages clamped to [0,100], company
// tiers rescaled to sum 100.
func (a *Analyzer) Analyze(ctx context.Context, jobDescription, resumeText string, matchedSkills []string) (*ai.Insights, error) {
	if strings.TrimSpace(resumeText) == "" {
		return nil, fmt.Errorf("resume text is required")
	}

	skills := strings.Join(matchedSkills, ", ")
	if skills == "" {
		skills = "none detected"
	}

	prompt := strings.ReplaceAll(insightsPromptTemplate, "{{JOB_DESCRIPTION}}", sanitizeUTF8(jobDescription))
	prompt = strings.ReplaceAll(prompt, "{{RESUME_TEXT}}", sanitizeUTF8(resumeText))
	prompt = strings.ReplaceAll(prompt, "{{MATCHED_SKILLS}}", skills)

	raw, err := a.generator.GenerateContent(ctx, prompt)
	if err != nil {
		return nil, err
	}

	a.logger.Debug("insights response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", logger.Truncate(raw, a.maxLogLen)),
	)

	var resp insightsResponse
	if err := json.Unmarshal([]byte(extractJSON(raw)), &resp); err != nil {
		return nil, fmt.Errorf("parse insights response: %w", err)
	}

	insights := &ai.Insights{
		Summary:    resp.Summary,
		SkillDepth: resp.SkillDepth,
		ProfessionalSummary: ai.ProfessionalSummary{
			AverageJobTenure:      resp.ProfessionalSummary.AverageJobTenure,
			TenureAssessment:      resp.ProfessionalSummary.TenureAssessment,
			CareerGap:             resp.ProfessionalSummary.CareerGap,
			MajorIndustryExposure: []ai.IndustryExposure{},
			TotalCompanies:        coerceInt(resp.ProfessionalSummary.TotalCompanies, 0),
		},
		CompanyTiers: normalizeTiers(
			coerceInt(resp.CompanyTiers.Startup, 0),
			coerceInt(resp.CompanyTiers.MidSize, 0),
			coerceInt(resp.CompanyTiers.Enterprise, 0),
		),
	}

	if len(insights.Summary) > 4 {
		insights.Summary = insights.Summary[:4]
	}

	for i := range insights.SkillDepth {
		p := insights.SkillDepth[i].ProficiencyPercentage
		if p < 0 {
			insights.SkillDepth[i].ProficiencyPercentage = 0
		} else if p > 100 {
			insights.SkillDepth[i].ProficiencyPercentage = 100
		}
	}

	for _, e := range resp.ProfessionalSummary.IndustryExposure {
		insights.ProfessionalSummary.MajorIndustryExposure = append(
			insights.ProfessionalSummary.MajorIndustryExposure,
			ai.IndustryExposure{
				Industry:   e.Industry,
				Percentage: coerceInt(e.Percentage, 0),
			},
		)
	}

	fillNotSpecified(&insights.ProfessionalSummary.AverageJobTenure)
	if insights.ProfessionalSummary.TenureAssessment == "" {
		insights.ProfessionalSummary.TenureAssessment = "Moderate"
	}

	return insights, nil
}

// normalizeTiers rescales the three tier percentages to sum 100, with an even
// split when the model returned nothing usable.
func normalizeTiers(startup, midSize, enterprise int) ai.CompanyTierAnalysis {
	total := startup + midSize + enterprise
	if total <= 0 {
		return ai.CompanyTierAnalysis{
			StartupPercentage:    33,
			MidSizePercentage:    34,
			EnterprisePercentage: 33,
		}
	}

	out := ai.CompanyTierAnalysis{
		StartupPercentage: startup * 100 / total,
		MidSizePercentage: midSize * 100 / total,
	}
	out.EnterprisePercentage = 100 - out.StartupPercentage - out.MidSizePercentage
	return out
}

func fillNotSpecified(s *string) {
	if strings.TrimSpace(*s) == "" {
		*s = notSpecified
	}
}
