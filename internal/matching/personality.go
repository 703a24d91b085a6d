package matching

import (
	"math"
	"strings"
)

// numericScale is the known answer scale for numeric questions.
const numericScale = 10

// PersonalityScore is the personality-based similarity between two
// answer sets, with the per-category breakdown.
type PersonalityScore struct {
	Overall   float64
	Breakdown Breakdown
}

// neutralPersonality is returned when there is nothing to compare.
func neutralPersonality() PersonalityScore {
	return PersonalityScore{
		Overall: 0.5,
		Breakdown: Breakdown{
			Communication: 0.5,
			Values:        0.5,
			Lifestyle:     0.5,
			Personality:   0.5,
		},
	}
}

// ScorePersonality computes the per-question similarity between two
// ordered answer sequences. Questions are paired by QuestionID; a
// question only one user answered is skipped. With no common questions
// (or either side empty) every field is a neutral 0.5.
//
// All returned values are rounded to 3 decimals for display; callers
// must not rely on the rounding for exact comparisons.
func ScorePersonality(answers1, answers2 []Answer) PersonalityScore {
	if len(answers1) == 0 || len(answers2) == 0 {
		return neutralPersonality()
	}

	byQuestion := make(map[string]Answer, len(answers2))
	for _, a := range answers2 {
		byQuestion[a.QuestionID] = a
	}

	total := 0.0
	common := 0
	perCategory := make(map[Category][]float64, 4)

	for _, a1 := range answers1 {
		a2, ok := byQuestion[a1.QuestionID]
		if !ok {
			continue
		}
		common++

		sim := answerSimilarity(a1, a2)
		total += sim
		cat := normalizeCategory(a1.Category)
		perCategory[cat] = append(perCategory[cat], sim)
	}

	if common == 0 {
		return neutralPersonality()
	}

	return PersonalityScore{
		Overall: round3(total / float64(common)),
		Breakdown: Breakdown{
			Communication: round3(categoryMean(perCategory[CategoryCommunication])),
			Values:        round3(categoryMean(perCategory[CategoryValues])),
			Lifestyle:     round3(categoryMean(perCategory[CategoryLifestyle])),
			Personality:   round3(categoryMean(perCategory[CategoryPersonality])),
		},
	}
}

// answerSimilarity scores a single question pair in [0,1]. Answers of
// different kinds for the same question contribute zero similarity.
func answerSimilarity(a, b Answer) float64 {
	if a.Kind != b.Kind {
		return 0.0
	}

	switch a.Kind {
	case AnswerNumeric:
		distance := math.Abs(float64(clampScale(a.Numeric) - clampScale(b.Numeric)))
		return (numericScale - distance) / numericScale
	case AnswerBoolean:
		if a.Boolean == b.Boolean {
			return 1.0
		}
		return 0.0
	case AnswerMultipleChoice:
		return jaccard(a.Choices, b.Choices)
	case AnswerText:
		if strings.EqualFold(a.Text, b.Text) {
			return 1.0
		}
		// Partial credit: both answered, content differs.
		return 0.5
	default:
		return 0.0
	}
}

// clampScale bounds a numeric answer to the declared 1-10 scale.
func clampScale(v int) int {
	if v < 1 {
		return 1
	}
	if v > numericScale {
		return numericScale
	}
	return v
}

// jaccard is |intersection| / |union| over two choice sets; 0 when the
// union is empty.
func jaccard(choices1, choices2 []string) float64 {
	set1 := make(map[string]struct{}, len(choices1))
	for _, c := range choices1 {
		set1[c] = struct{}{}
	}
	set2 := make(map[string]struct{}, len(choices2))
	for _, c := range choices2 {
		set2[c] = struct{}{}
	}

	intersection := 0
	for c := range set1 {
		if _, ok := set2[c]; ok {
			intersection++
		}
	}
	union := len(set1) + len(set2) - intersection
	if union == 0 {
		return 0.0
	}
	return float64(intersection) / float64(union)
}

func categoryMean(scores []float64) float64 {
	if len(scores) == 0 {
		return 0.5
	}
	sum := 0.0
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores))
}

// round3 rounds to 3 decimals for presentation.
func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
