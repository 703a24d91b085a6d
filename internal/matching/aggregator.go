package matching

import (
	"math"
	"sort"
	"strings"
)

// Blend weights between the personality score and the second term
// (preference overlap for v1, advanced factors for v2).
const (
	personalityBlendWeight = 0.6
	secondaryBlendWeight   = 0.4
)

// ReasonIneligible is the single reason attached to a gated-out pair.
const ReasonIneligible = "Basic compatibility criteria not met"

// Engine aggregates the scorers into full pairwise compatibility
// results. It is stateless apart from the injected clock in the
// advanced scorer; concurrent use is safe.
type Engine struct {
	advanced *AdvancedScorer
}

func NewEngine() *Engine {
	return &Engine{advanced: NewAdvancedScorer()}
}

// Score computes the compatibility result for a pair under the given
// algorithm version. Anything other than VersionAdvanced runs as
// VersionBasic, on gated and scored paths alike. The eligibility gate
// short-circuits: a pair that violates a hard precondition scores zero
// without running the weighted blend at all.
func (e *Engine) Score(user1, user2 *Profile, version Version) *Result {
	if version != VersionAdvanced {
		version = VersionBasic
	}

	if !basicallyCompatible(user1, user2) {
		return &Result{
			Score:           0,
			Version:         version,
			Breakdown:       Breakdown{},
			SharedInterests: []string{},
			Reasons:         []string{ReasonIneligible},
		}
	}

	personality := ScorePersonality(user1.Answers, user2.Answers)
	shared := SharedInterests(user1.Interests, user2.Interests)

	switch version {
	case VersionAdvanced:
		return e.scoreAdvanced(user1, user2, personality, shared)
	default:
		return e.scoreBasic(user1, user2, personality, shared)
	}
}

func (e *Engine) scoreBasic(user1, user2 *Profile, personality PersonalityScore, shared []string) *Result {
	prefScore := preferencesOverlapScore(user1, user2)

	final := personality.Overall*personalityBlendWeight + prefScore*secondaryBlendWeight

	// Shared interests nudge the basic score up, capped at +0.2.
	boost := math.Min(float64(len(shared))*0.05, 0.2)
	final = math.Min(final+boost, 1.0)

	return &Result{
		Score:           round1(final * 100),
		Version:         VersionBasic,
		Breakdown:       personality.Breakdown,
		SharedInterests: shared,
		Reasons:         compatibilityReasons(personality.Overall, prefScore, shared),
	}
}

func (e *Engine) scoreAdvanced(user1, user2 *Profile, personality PersonalityScore, shared []string) *Result {
	// Dealbreaker alignment is directional; the averaged value keeps
	// the result symmetric in the pair, which the cache key relies on.
	alignment1 := dealbreakerAlignment(user1, user2)
	alignment2 := dealbreakerAlignment(user2, user1)
	alignment := (alignment1 + alignment2) / 2

	advanced := e.advanced.Score(user1, user2, len(shared), alignment, personality.Overall)

	final := personality.Overall*personalityBlendWeight + advanced.AdvancedScore*secondaryBlendWeight

	return &Result{
		Score:           round1(final * 100),
		Version:         VersionAdvanced,
		Breakdown:       personality.Breakdown,
		SharedInterests: shared,
		AdvancedFactors: &AdvancedFactors{
			ActivityScore:     advanced.ActivityScore,
			ResponseRateScore: advanced.ResponseRateScore,
			ReciprocityScore:  advanced.ReciprocityScore,
			Details:           advanced.Details,
		},
		ScoringWeights: &ScoringWeights{
			PersonalityWeight: personalityBlendWeight,
			AdvancedWeight:    secondaryBlendWeight,
		},
		Reasons: compatibilityReasons(personality.Overall, advanced.AdvancedScore, shared),
	}
}

// basicallyCompatible is the hard eligibility gate: mutual age ranges,
// mutual gender interest and distance inside both maxDistance limits.
// A check whose inputs are absent passes; missing data is handled by
// the soft scoring, not the gate.
func basicallyCompatible(user1, user2 *Profile) bool {
	if !ageAccepted(user1, user2) || !ageAccepted(user2, user1) {
		return false
	}
	if !genderAccepted(user1, user2) || !genderAccepted(user2, user1) {
		return false
	}

	if user1.HasLocation() && user2.HasLocation() {
		distance := haversineKm(*user1.Latitude, *user1.Longitude, *user2.Latitude, *user2.Longitude)
		if exceedsMaxDistance(user1.Preferences, distance) || exceedsMaxDistance(user2.Preferences, distance) {
			return false
		}
	}
	return true
}

// ageAccepted reports whether other's age falls inside p's declared
// age range.
func ageAccepted(p, other *Profile) bool {
	if p.Preferences == nil || other.Age == nil {
		return true
	}
	age := *other.Age
	if p.Preferences.MinAge > 0 && age < p.Preferences.MinAge {
		return false
	}
	if p.Preferences.MaxAge > 0 && age > p.Preferences.MaxAge {
		return false
	}
	return true
}

// genderAccepted reports whether other's gender is in p's declared
// interested-gender set.
func genderAccepted(p, other *Profile) bool {
	if p.Preferences == nil || len(p.Preferences.InterestedInGenders) == 0 || other.Gender == "" {
		return true
	}
	for _, g := range p.Preferences.InterestedInGenders {
		if strings.EqualFold(g, other.Gender) || strings.EqualFold(g, "any") {
			return true
		}
	}
	return false
}

func exceedsMaxDistance(prefs *Preferences, distance float64) bool {
	return prefs != nil && prefs.MaxDistance > 0 && distance > prefs.MaxDistance
}

func prefMaxDistance(prefs *Preferences) float64 {
	if prefs == nil {
		return 0
	}
	return prefs.MaxDistance
}

// preferencesOverlapScore averages the age-range overlap fraction and
// the distance headroom score over however many of the two factors are
// computable; with neither it stays neutral.
func preferencesOverlapScore(user1, user2 *Profile) float64 {
	score := 0.0
	factors := 0

	if user1.Preferences != nil && user2.Preferences != nil &&
		user1.Preferences.MinAge > 0 && user1.Preferences.MaxAge > 0 &&
		user2.Preferences.MinAge > 0 && user2.Preferences.MaxAge > 0 {
		score += ageRangeOverlap(user1.Preferences, user2.Preferences)
		factors++
	}

	if user1.HasLocation() && user2.HasLocation() {
		distance := haversineKm(*user1.Latitude, *user1.Longitude, *user2.Latitude, *user2.Longitude)
		maxDistance := minPositive(prefMaxDistance(user1.Preferences), prefMaxDistance(user2.Preferences))
		if maxDistance > 0 {
			score += math.Max(0, 1-distance/maxDistance)
		} else {
			score += 1.0
		}
		factors++
	}

	if factors == 0 {
		return 0.5
	}
	return score / float64(factors)
}

// ageRangeOverlap is the fraction of the union of the two declared age
// ranges that both ranges cover (inclusive bounds).
func ageRangeOverlap(p1, p2 *Preferences) float64 {
	overlapStart := maxInt(p1.MinAge, p2.MinAge)
	overlapEnd := minInt(p1.MaxAge, p2.MaxAge)
	if overlapStart > overlapEnd {
		return 0.0
	}
	overlap := overlapEnd - overlapStart + 1
	union := maxInt(p1.MaxAge, p2.MaxAge) - minInt(p1.MinAge, p2.MinAge) + 1
	return float64(overlap) / float64(union)
}

// dealbreakerAlignment scores how well other satisfies p's hard
// preferences: start from 1.0 and deduct per violated check. With no
// applicable checks the score is a neutral 0.7.
func dealbreakerAlignment(p, other *Profile) float64 {
	alignment := 1.0
	checks := 0

	var prefs Preferences
	if p.Preferences != nil {
		prefs = *p.Preferences
	}

	if other.Age != nil {
		minAge := prefs.MinAge
		if minAge == 0 {
			minAge = 18
		}
		maxAge := prefs.MaxAge
		if maxAge == 0 {
			maxAge = 100
		}
		checks++
		if *other.Age < minAge || *other.Age > maxAge {
			alignment -= 0.3
		}
	}

	if p.HasLocation() && other.HasLocation() && prefs.MaxDistance > 0 {
		checks++
		if approxDistanceKm(*p.Latitude, *p.Longitude, *other.Latitude, *other.Longitude) > prefs.MaxDistance {
			alignment -= 0.2
		}
	}

	if prefs.Gender != "" && other.Gender != "" {
		checks++
		if !strings.EqualFold(prefs.Gender, other.Gender) && !strings.EqualFold(prefs.Gender, "any") {
			alignment -= 0.4
		}
	}

	if checks == 0 {
		return 0.7
	}
	return math.Max(0.0, math.Min(1.0, alignment))
}

// SharedInterests intersects two interest lists case-insensitively and
// returns the sorted, lowercased intersection.
func SharedInterests(interests1, interests2 []string) []string {
	if len(interests1) == 0 || len(interests2) == 0 {
		return []string{}
	}

	set1 := make(map[string]struct{}, len(interests1))
	for _, i := range interests1 {
		set1[strings.ToLower(i)] = struct{}{}
	}

	seen := make(map[string]struct{})
	shared := make([]string, 0)
	for _, i := range interests2 {
		lower := strings.ToLower(i)
		if _, ok := set1[lower]; !ok {
			continue
		}
		if _, dup := seen[lower]; dup {
			continue
		}
		seen[lower] = struct{}{}
		shared = append(shared, lower)
	}
	sort.Strings(shared)
	return shared
}

// compatibilityReasons derives the human-readable reasons attached to
// a result. At least one reason is always returned.
func compatibilityReasons(personalityScore, preferencesScore float64, shared []string) []string {
	reasons := []string{}

	if personalityScore > 0.7 {
		reasons = append(reasons, "Highly compatible personalities")
	} else if personalityScore > 0.5 {
		reasons = append(reasons, "Good personality match")
	}

	if preferencesScore > 0.7 {
		reasons = append(reasons, "Well-aligned preferences")
	} else if preferencesScore > 0.5 {
		reasons = append(reasons, "Compatible preferences")
	}

	if len(shared) > 2 {
		reasons = append(reasons, "Many shared interests: "+strings.Join(shared[:3], ", "))
	} else if len(shared) > 0 {
		reasons = append(reasons, "Shared interests: "+strings.Join(shared, ", "))
	}

	if len(reasons) == 0 {
		reasons = append(reasons, "Basic compatibility criteria met")
	}
	return reasons
}

// round1 rounds the public 0-100 score to one decimal.
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minPositive(a, b float64) float64 {
	switch {
	case a <= 0:
		return b
	case b <= 0:
		return a
	case a < b:
		return a
	default:
		return b
	}
}
