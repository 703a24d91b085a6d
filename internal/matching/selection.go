package matching

import (
	"context"
	"sort"
)

// SelectRanked scores the requester against every candidate, drops
// candidates below minScore (0-100 scale), sorts the rest by score
// descending and truncates to size. The sort is stable so equal scores
// keep their input order and the selection stays deterministic.
//
// The loop honors ctx cancellation: a caller that abandons a selection
// pass gets a nil result and the context error; nothing is mutated
// outside local accumulation, so partial work is safely discarded.
func (e *Engine) SelectRanked(ctx context.Context, requester *Profile, candidates []*Profile, minScore float64, size int) (*Selection, error) {
	if size < 0 {
		size = 0
	}

	scores := make(map[string]float64, len(candidates))
	ranked := make([]*Profile, 0, len(candidates))

	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result := e.Score(requester, candidate, VersionBasic)
		if result.Score < minScore {
			continue
		}
		scores[candidate.UserID] = result.Score
		ranked = append(ranked, candidate)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return scores[ranked[i].UserID] > scores[ranked[j].UserID]
	})

	if len(ranked) > size {
		ranked = ranked[:size]
	}

	selected := make([]string, 0, len(ranked))
	selectedScores := make(map[string]float64, len(ranked))
	for _, p := range ranked {
		selected = append(selected, p.UserID)
		selectedScores[p.UserID] = scores[p.UserID]
	}

	return &Selection{SelectedIDs: selected, Scores: selectedScores}, nil
}
