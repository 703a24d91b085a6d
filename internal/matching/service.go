package matching

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

var (
	ErrMissingProfile = errors.New("profile is required")
)

// Service is the public surface of the matching core, consumed by the
// HTTP layer and by collaborators that need invalidation hooks.
type Service interface {
	// ScoreCompatibility scores a pair under the given algorithm
	// version, consulting the pair cache first.
	ScoreCompatibility(ctx context.Context, user1, user2 *Profile, version Version) (*Result, error)

	// BatchCompatibility scores each profile against the base profile
	// with the basic algorithm.
	BatchCompatibility(ctx context.Context, base *Profile, others []*Profile) (map[string]*Result, error)

	// GenerateDailySelection ranks candidates for the requester and
	// returns the top matches above the minimum score.
	GenerateDailySelection(ctx context.Context, requester *Profile, candidates []*Profile, size int) (*Selection, error)

	// InvalidateUser drops every cached pair mentioning the user.
	InvalidateUser(ctx context.Context, userID string) int

	// AlgorithmStats returns the running calculation statistics.
	AlgorithmStats() StatsSnapshot

	// CacheHealthy reports whether the pair cache backend is usable.
	CacheHealthy(ctx context.Context) bool
}

type service struct {
	engine   *Engine
	cache    *PairCache
	stats    *Stats
	minScore float64
	log      *zap.Logger
}

// ServiceConfig carries the tunables the service needs from the
// process configuration.
type ServiceConfig struct {
	// MinCompatibilityScore is the selection threshold on the public
	// 0-100 scale.
	MinCompatibilityScore float64
}

func NewService(engine *Engine, cache *PairCache, stats *Stats, cfg ServiceConfig, log *zap.Logger) Service {
	if log == nil {
		log = zap.NewNop()
	}
	if stats == nil {
		stats = NewStats()
	}
	return &service{
		engine:   engine,
		cache:    cache,
		stats:    stats,
		minScore: cfg.MinCompatibilityScore,
		log:      log,
	}
}

func (s *service) ScoreCompatibility(ctx context.Context, user1, user2 *Profile, version Version) (*Result, error) {
	if user1 == nil || user2 == nil {
		return nil, ErrMissingProfile
	}

	if cached, ok := s.cache.Get(ctx, user1.UserID, user2.UserID, version); ok {
		s.log.Debug("pair cache hit",
			zap.String("user1", user1.UserID),
			zap.String("user2", user2.UserID),
			zap.String("version", string(version)))
		return cached, nil
	}

	result := s.engine.Score(user1, user2, version)

	recordCalculation(version, result.Score)
	s.stats.Record(version, result.Score)

	// Best effort; a failed write just means recomputation next time.
	s.cache.Set(ctx, user1.UserID, user2.UserID, version, result)

	return result, nil
}

func (s *service) BatchCompatibility(ctx context.Context, base *Profile, others []*Profile) (map[string]*Result, error) {
	if base == nil {
		return nil, ErrMissingProfile
	}

	results := make(map[string]*Result, len(others))
	for _, other := range others {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result, err := s.ScoreCompatibility(ctx, base, other, VersionBasic)
		if err != nil {
			return nil, err
		}
		results[other.UserID] = result
	}
	return results, nil
}

func (s *service) GenerateDailySelection(ctx context.Context, requester *Profile, candidates []*Profile, size int) (*Selection, error) {
	if requester == nil {
		return nil, ErrMissingProfile
	}

	selection, err := s.engine.SelectRanked(ctx, requester, candidates, s.minScore, size)
	if err != nil {
		return nil, err
	}

	recordSelection(len(selection.SelectedIDs))
	s.log.Info("daily selection generated",
		zap.String("userId", requester.UserID),
		zap.Int("candidates", len(candidates)),
		zap.Int("selected", len(selection.SelectedIDs)))

	return selection, nil
}

func (s *service) InvalidateUser(ctx context.Context, userID string) int {
	return s.cache.ClearForUser(ctx, userID)
}

func (s *service) AlgorithmStats() StatsSnapshot {
	return s.stats.Snapshot()
}

func (s *service) CacheHealthy(ctx context.Context) bool {
	if !s.cache.Enabled() {
		return false
	}
	_, _, err := s.cache.store.Get(ctx, "compatibility:healthcheck")
	return err == nil
}
