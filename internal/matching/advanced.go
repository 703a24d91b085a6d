package matching

import (
	"fmt"
	"math"
	"time"
)

// Weights for the advanced factor blend. They must sum to 1.0; the
// init check fails fast at startup rather than skewing every score.
const (
	activityWeight     = 0.3
	responseRateWeight = 0.4
	reciprocityWeight  = 0.3
)

func init() {
	sum := activityWeight + responseRateWeight + reciprocityWeight
	if math.Abs(sum-1.0) > 1e-3 {
		panic(fmt.Sprintf("matching: advanced factor weights sum to %v, want 1.0", sum))
	}
}

// AdvancedResult carries the behavioral sub-scores for a pair plus the
// weighted combination, all rounded to 3 decimals.
type AdvancedResult struct {
	ActivityScore     float64
	ResponseRateScore float64
	ReciprocityScore  float64
	AdvancedScore     float64
	Details           AdvancedFactorDetails
}

// AdvancedScorer computes activity, response-rate and reciprocity
// sub-scores. The clock is injectable so decay curves are testable.
type AdvancedScorer struct {
	now func() time.Time
}

func NewAdvancedScorer() *AdvancedScorer {
	return &AdvancedScorer{now: time.Now}
}

// Score combines the three behavioral factors for a profile pair.
// personalityScore and dealbreakerAlignment are inputs from the
// aggregator; sharedInterests is the mutual interest count.
func (s *AdvancedScorer) Score(user, target *Profile, sharedInterests int, dealbreakerAlignment, personalityScore float64) AdvancedResult {
	now := s.now()

	userActivity := activityScore(now, user.LastActiveAt, user.LastLoginAt)
	targetActivity := activityScore(now, target.LastActiveAt, target.LastLoginAt)
	activity := (userActivity + targetActivity) / 2

	userResponse := responseRateScore(user.MessagesSent, user.MessagesReceived, user.MatchesCount)
	targetResponse := responseRateScore(target.MessagesSent, target.MessagesReceived, target.MatchesCount)
	responseRate := (userResponse + targetResponse) / 2

	reciprocity := reciprocityScore(sharedInterests, dealbreakerAlignment, personalityScore)

	combined := activity*activityWeight + responseRate*responseRateWeight + reciprocity*reciprocityWeight

	return AdvancedResult{
		ActivityScore:     round3(activity),
		ResponseRateScore: round3(responseRate),
		ReciprocityScore:  round3(reciprocity),
		AdvancedScore:     round3(combined),
		Details: AdvancedFactorDetails{
			UserActivity:       round3(userActivity),
			TargetActivity:     round3(targetActivity),
			UserResponseRate:   round3(userResponse),
			TargetResponseRate: round3(targetResponse),
		},
	}
}

// activityScore decays piecewise linearly with hours since the most
// recent of lastActiveAt/lastLoginAt:
//
//	<=24h  1.0 -> 0.9
//	<=72h  0.9 -> 0.7
//	<=168h 0.7 -> 0.5
//	<=720h 0.5 -> 0.3
//	beyond: linear toward 0, floored at 0
//
// Missing both timestamps is treated as unknown, not inactive: 0.5.
func activityScore(now time.Time, lastActiveAt, lastLoginAt *time.Time) float64 {
	mostRecent := mostRecentTime(lastActiveAt, lastLoginAt)
	if mostRecent == nil {
		return 0.5
	}

	hours := now.Sub(*mostRecent).Hours()
	if hours < 0 {
		hours = 0
	}

	switch {
	case hours <= 24:
		return 1.0 - (hours/24)*0.1
	case hours <= 72:
		return 0.9 - ((hours-24)/48)*0.2
	case hours <= 168:
		return 0.7 - ((hours-72)/96)*0.2
	case hours <= 720:
		return 0.5 - ((hours-168)/552)*0.2
	default:
		return math.Max(0.0, 0.3-((hours-720)/720)*0.3)
	}
}

func mostRecentTime(a, b *time.Time) *time.Time {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case b.After(*a):
		return b
	default:
		return a
	}
}

// responseRateScore rewards balanced conversations. New accounts with
// no matches get the benefit of the doubt; hoarding matches without
// replying scores lowest.
func responseRateScore(sent, received, matches int) float64 {
	if matches == 0 {
		return 0.7
	}
	if sent == 0 && received == 0 {
		return 0.3
	}
	if received == 0 {
		// Sends but never gets replies.
		return 0.5
	}
	if sent == 0 {
		// Receives but never responds.
		return 0.2
	}

	ratio := float64(sent) / float64(received)

	var score float64
	switch {
	case ratio >= 0.7 && ratio <= 1.5:
		score = 1.0
	case ratio < 0.7:
		score = math.Max(0.2, ratio/0.7)
	default:
		score = math.Max(0.5, 1.0-(ratio-1.5)*0.2)
	}

	// Small bonus for absolute volume, capped at 100 messages total.
	volume := math.Min(float64(sent+received), 100) / 100
	return math.Min(1.0, score+volume*0.1)
}

// reciprocityScore predicts mutual interest from dealbreaker alignment,
// personality similarity and shared interests (saturating at 5).
func reciprocityScore(sharedInterests int, dealbreakerAlignment, personalityScore float64) float64 {
	interestScore := math.Min(1.0, float64(sharedInterests)/5)

	reciprocity := dealbreakerAlignment*0.40 + personalityScore*0.35 + interestScore*0.25
	return math.Min(1.0, math.Max(0.0, reciprocity))
}
