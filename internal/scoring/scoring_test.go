package scoring

import (
	"reflect"
	"testing"
)

func TestAggregateSpecScenario(t *testing.T) {
	t.Parallel()

	in := Input{
		MustHave:   []Skill{{Name: "Python", Weight: 8}, {Name: "SQL", Weight: 8}},
		NiceToHave: []Skill{{Name: "Docker", Weight: 5}},
		MustHaveMatches: []Match{
			{Skill: "Python", Found: true},
			{Skill: "SQL", Found: false},
		},
		NiceToHaveMatches: []Match{{Skill: "Docker", Found: false}},
		HolisticScore:     60,
	}

	got := Aggregate(in)

	if got.MustHaveTierScore != 50 {
		t.Fatalf("must-have tier: expected 50, got %v", got.MustHaveTierScore)
	}
	if got.NiceToHaveTierScore != 0 {
		t.Fatalf("nice-to-have tier: expected 0, got %v", got.NiceToHaveTierScore)
	}
	if got.SkillsScore != 42.5 {
		t.Fatalf("skills score: expected 42.5, got %v", got.SkillsScore)
	}
	if got.Fit.Score != 48 {
		t.Fatalf("final score: expected 48, got %d", got.Fit.Score)
	}
	if !reflect.DeepEqual(got.Fit.WeightedSkillsContributing, []string{"Python"}) {
		t.Fatalf("contributing skills: expected [Python], got %v", got.Fit.WeightedSkillsContributing)
	}
}

func TestAggregateBounds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   Input
		want int
	}{
		{
			name: "everything matched with max holistic",
			in: Input{
				MustHave:          []Skill{{Name: "Go", Weight: 8}},
				NiceToHave:        []Skill{{Name: "K8s", Weight: 5}},
				MustHaveMatches:   []Match{{Skill: "Go", Found: true}},
				NiceToHaveMatches: []Match{{Skill: "K8s", Found: true}},
				HolisticScore:     100,
			},
			want: 100,
		},
		{
			name: "nothing matched with zero holistic",
			in: Input{
				MustHave:   []Skill{{Name: "Go", Weight: 8}},
				NiceToHave: []Skill{{Name: "K8s", Weight: 5}},
			},
			want: 0,
		},
		{
			name: "empty tiers score zero",
			in: Input{
				HolisticScore: 80,
			},
			want: 24,
		},
		{
			name: "holistic above range is clamped before mixing",
			in: Input{
				HolisticScore: 1000,
			},
			want: 30,
		},
		{
			name: "holistic below range is clamped before mixing",
			in: Input{
				MustHave:        []Skill{{Name: "Go", Weight: 8}},
				MustHaveMatches: []Match{{Skill: "Go", Found: true}},
				HolisticScore:   -50,
			},
			want: 60,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Aggregate(tt.in)
			if got.Fit.Score != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, got.Fit.Score)
			}
			if got.Fit.Score < 0 || got.Fit.Score > 100 {
				t.Fatalf("score out of range: %d", got.Fit.Score)
			}
			if got.MustHaveTierScore < 0 || got.MustHaveTierScore > 100 {
				t.Fatalf("must-have tier out of range: %v", got.MustHaveTierScore)
			}
			if got.NiceToHaveTierScore < 0 || got.NiceToHaveTierScore > 100 {
				t.Fatalf("nice-to-have tier out of range: %v", got.NiceToHaveTierScore)
			}
		})
	}
}

func TestAggregateContributingSkills(t *testing.T) {
	t.Parallel()

	in := Input{
		MustHave: []Skill{
			{Name: "Go", Weight: 9},
			{Name: "SQL", Weight: 8},
			{Name: "REST", Weight: 5},
			{Name: "Kafka", Weight: 10},
			{Name: "Terraform", Weight: 8},
		},
		MustHaveMatches: []Match{
			{Skill: "Go", Found: true},
			{Skill: "SQL", Found: true},
			{Skill: "REST", Found: true},
			{Skill: "Kafka", Found: true},
			{Skill: "Terraform", Found: true},
		},
		HolisticScore: 70,
	}

	got := Aggregate(in)

	// REST is matched but below the weight threshold; Terraform is above but
	// the list caps at three entries, kept in original list order.
	want := []string{"Go", "SQL", "Kafka"}
	if !reflect.DeepEqual(got.Fit.WeightedSkillsContributing, want) {
		t.Fatalf("expected %v, got %v", want, got.Fit.WeightedSkillsContributing)
	}
}

func TestAggregateIgnoresUnknownMatches(t *testing.T) {
	t.Parallel()

	in := Input{
		MustHave:        []Skill{{Name: "Go", Weight: 8}},
		MustHaveMatches: []Match{{Skill: "COBOL", Found: true}},
	}

	got := Aggregate(in)
	if got.MustHaveTierScore != 0 {
		t.Fatalf("expected unknown skill match to be ignored, got tier %v", got.MustHaveTierScore)
	}
}

func TestWithDefaultWeights(t *testing.T) {
	t.Parallel()

	skills := WithDefaultWeights([]string{"Go", "SQL"}, DefaultMustHaveWeight)
	want := []Skill{{Name: "Go", Weight: 8}, {Name: "SQL", Weight: 8}}
	if !reflect.DeepEqual(skills, want) {
		t.Fatalf("expected %v, got %v", want, skills)
	}
}
