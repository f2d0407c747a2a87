package scoring

import "math"

const (
	// Default weights assigned when a job is created from plain skill name lists.
	DefaultMustHaveWeight   = 8
	DefaultNiceToHaveWeight = 5

	// Skills at or above this weight count as contributing when matched.
	contributingWeightThreshold = 8
	maxContributingSkills       = 3

	mustHaveTierShare   = 0.85
	niceToHaveTierShare = 0.15

	skillsShare   = 0.70
	holisticShare = 0.30

	// NeutralHolisticScore substitutes for a failed or unparsable holistic judgment.
	NeutralHolisticScore = 50
)

// Skill is a required or preferred qualification with its scoring weight.
type Skill struct {
	Name   string `json:"skill"`
	Weight int    `json:"weight"`
}

// Match reports whether a single skill was detected in a resume.
type Match struct {
	Skill string
	Found bool
}

// Input carries everything the aggregation needs. Matches are keyed back to
// the skill lists by name; matches for unknown skills are ignored.
type Input struct {
	MustHave          []Skill
	NiceToHave        []Skill
	MustHaveMatches   []Match
	NiceToHaveMatches []Match
	HolisticScore     int
}

// FitScore is the final deterministic aggregation result.
type FitScore struct {
	Score                      int      `json:"score"`
	WeightedSkillsContributing []string `json:"weighted_skills_contributing"`
}

// Breakdown exposes the intermediate tier scores alongside the final result.
type Breakdown struct {
	MustHaveTierScore   float64
	NiceToHaveTierScore float64
	SkillsScore         float64
	Fit                 FitScore
}

// Aggregate combines weighted skill coverage with the holistic judgment into a
// single 0-100 score. An empty tier scores 0. The holistic score is clamped
// before mixing so a malformed oracle value cannot push the result out of range.
func Aggregate(in Input) Breakdown {
	mustTier, contributing := tierScore(in.MustHave, in.MustHaveMatches, true)
	niceTier, _ := tierScore(in.NiceToHave, in.NiceToHaveMatches, false)

	skillsScore := mustTier*mustHaveTierShare + niceTier*niceToHaveTierShare

	holistic := clamp(in.HolisticScore)
	final := clamp(int(math.Round(skillsScore*skillsShare + float64(holistic)*holisticShare)))

	return Breakdown{
		MustHaveTierScore:   mustTier,
		NiceToHaveTierScore: niceTier,
		SkillsScore:         skillsScore,
		Fit: FitScore{
			Score:                      final,
			WeightedSkillsContributing: contributing,
		},
	}
}

// tierScore computes (matched weight / total weight) * 100 for one tier and,
// for the must-have tier, collects matched high-weight skills in list order.
func tierScore(skills []Skill, matches []Match, collectContributing bool) (float64, []string) {
	contributing := []string{}

	totalWeight := 0
	for _, s := range skills {
		totalWeight += s.Weight
	}
	if totalWeight <= 0 {
		return 0, contributing
	}

	found := make(map[string]bool, len(matches))
	for _, m := range matches {
		if m.Found {
			found[m.Skill] = true
		}
	}

	matchedWeight := 0
	for _, s := range skills {
		if !found[s.Name] {
			continue
		}
		matchedWeight += s.Weight
		if collectContributing && s.Weight >= contributingWeightThreshold && len(contributing) < maxContributingSkills {
			contributing = append(contributing, s.Name)
		}
	}

	return float64(matchedWeight) / float64(totalWeight) * 100, contributing
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// WithDefaultWeights converts plain skill names into weighted skills.
func WithDefaultWeights(names []string, weight int) []Skill {
	skills := make([]Skill, 0, len(names))
	for _, n := range names {
		skills = append(skills, Skill{Name: n, Weight: weight})
	}
	return skills
}
