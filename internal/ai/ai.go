// Package ai defines the oracle contracts the screening pipeline depends on.
// Oracles are external judgment producers (LLM calls); their output is
// untrusted input to the deterministic aggregation logic, never authoritative.
package ai

import "context"

// SkillMatch is the oracle's verdict for a single required skill.
type SkillMatch struct {
	Skill             string `json:"skill"`
	Found             bool   `json:"found_in_resume"`
	ProficiencyLevel  string `json:"proficiency_level,omitempty"`
	YearsOfExperience string `json:"years_of_experience,omitempty"`
}

// SkillMatchSet holds per-skill verdicts for both skill tiers.
type SkillMatchSet struct {
	MustHave   []SkillMatch
	NiceToHave []SkillMatch
}

// MatchedCount returns how many skills in the list were found.
func MatchedCount(matches []SkillMatch) int {
	n := 0
	for _, m := range matches {
		if m.Found {
			n++
		}
	}
	return n
}

// HolisticAssessment is the independent 0-100 overall-fit opinion.
type HolisticAssessment struct {
	Score     int
	Reasoning string
	Raw       string
}

// CandidateInfo is the contact/identity block extracted from a resume.
// Missing fields default to "Not specified".
type CandidateInfo struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	Position        string `json:"position"`
	Location        string `json:"location"`
	TotalExperience string `json:"total_experience"`
}

// SkillDepth estimates proficiency for one matched skill.
type SkillDepth struct {
	SkillName             string `json:"skill_name"`
	ProficiencyPercentage int    `json:"proficiency_percentage"`
	Evidence              string `json:"evidence,omitempty"`
}

// CareerGap describes a gap in the candidate's history, when present.
type CareerGap struct {
	Duration string `json:"duration"`
	Reason   string `json:"reason,omitempty"`
}

// IndustryExposure is one industry share of the candidate's history.
type IndustryExposure struct {
	Industry   string `json:"industry"`
	Percentage int    `json:"percentage"`
}

// ProfessionalSummary covers tenure, gaps and industry exposure.
type ProfessionalSummary struct {
	AverageJobTenure      string             `json:"average_job_tenure"`
	TenureAssessment      string             `json:"tenure_assessment"`
	CareerGap             *CareerGap         `json:"career_gap,omitempty"`
	MajorIndustryExposure []IndustryExposure `json:"major_industry_exposure"`
	TotalCompanies        int                `json:"total_companies"`
}

// CompanyTierAnalysis is the startup/mid-size/enterprise distribution of the
// candidate's employers, normalized to sum 100.
type CompanyTierAnalysis struct {
	StartupPercentage    int `json:"startup_percentage"`
	MidSizePercentage    int `json:"mid_size_percentage"`
	EnterprisePercentage int `json:"enterprise_percentage"`
}

// Insights bundles the narrative analyses attached to a candidate report.
type Insights struct {
	Summary             []string            `json:"ai_summary"`
	SkillDepth          []SkillDepth        `json:"skill_depth_analysis"`
	ProfessionalSummary ProfessionalSummary `json:"professional_summary"`
	CompanyTiers        CompanyTierAnalysis `json:"company_tier_analysis"`
}

// SkillMatcher detects which required skills appear in a resume.
type SkillMatcher interface {
	Match(ctx context.Context, resumeText string, mustHave, niceToHave []string) (*SkillMatchSet, error)
}

// HolisticJudge rates overall candidate fit against the job description.
type HolisticJudge interface {
	Score(ctx context.Context, jobDescription, resumeText string) (*HolisticAssessment, error)
}

// ProfileExtractor pulls candidate identity fields out of a resume.
type ProfileExtractor interface {
	Extract(ctx context.Context, resumeText string) (*CandidateInfo, error)
}

// InsightsAnalyzer produces the summary, skill-depth, tenure and company-tier
// analyses for a resume.
type InsightsAnalyzer interface {
	Analyze(ctx context.Context, jobDescription, resumeText string, matchedSkills []string) (*Insights, error)
}

// NotSpecified marks identity fields the extractor could not find.
const NotSpecified = "Not specified"

// DefaultCandidateInfo is the substitute when identity extraction fails.
// Oracle failures degrade the report, they never fail the screening.
func DefaultCandidateInfo() *CandidateInfo {
	return &CandidateInfo{
		Name:            "Unknown",
		Email:           NotSpecified,
		Phone:           NotSpecified,
		Position:        NotSpecified,
		Location:        NotSpecified,
		TotalExperience: NotSpecified,
	}
}

// DefaultInsights is the degraded-but-valid substitute when the analysis
// oracle fails entirely.
func DefaultInsights(matchedSkills []string) *Insights {
	depth := make([]SkillDepth, 0, len(matchedSkills))
	for _, s := range matchedSkills {
		depth = append(depth, SkillDepth{
			SkillName:             s,
			ProficiencyPercentage: 50,
			Evidence:              "Unable to assess automatically",
		})
	}
	return &Insights{
		Summary: []string{
			"Unable to generate detailed summary due to an analysis error.",
			"Please review the resume manually for a comprehensive assessment.",
		},
		SkillDepth: depth,
		ProfessionalSummary: ProfessionalSummary{
			AverageJobTenure:      NotSpecified,
			TenureAssessment:      "Moderate",
			MajorIndustryExposure: []IndustryExposure{},
		},
		CompanyTiers: CompanyTierAnalysis{
			StartupPercentage:    33,
			MidSizePercentage:    34,
			EnterprisePercentage: 33,
		},
	}
}
