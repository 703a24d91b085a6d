package matching

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/goldwen/matching-service/internal/common/utils"
	"github.com/gorilla/mux"
)

// serviceVersion is reported by the health and stats endpoints.
const serviceVersion = "2.0.0"

// ProfileSource loads stored profiles for requests that do not inline
// them. Nil means callers must always supply profiles themselves.
type ProfileSource interface {
	GetProfile(ctx context.Context, userID string) (*Profile, error)
	ListCandidates(ctx context.Context, userID string, excludeIDs []string, limit int) ([]*Profile, error)
}

// HandlerConfig carries the selection-size tunables from the process
// configuration.
type HandlerConfig struct {
	DefaultSelectionSize int
	MaxSelectionSize     int
}

type Handler struct {
	service  Service
	profiles ProfileSource
	cfg      HandlerConfig
	log      *zap.Logger
}

func NewHandler(service Service, profiles ProfileSource, cfg HandlerConfig, log *zap.Logger) *Handler {
	if cfg.DefaultSelectionSize <= 0 {
		cfg.DefaultSelectionSize = 5
	}
	if cfg.MaxSelectionSize <= 0 {
		cfg.MaxSelectionSize = 10
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{service: service, profiles: profiles, cfg: cfg, log: log}
}

// CalculateCompatibility scores a pair with the personality-only (v1)
// algorithm.
func (h *Handler) CalculateCompatibility(w http.ResponseWriter, r *http.Request) {
	h.calculate(w, r, VersionBasic)
}

// CalculateCompatibilityV2 scores a pair with the personality plus
// advanced-factors (v2) algorithm.
func (h *Handler) CalculateCompatibilityV2(w http.ResponseWriter, r *http.Request) {
	h.calculate(w, r, VersionAdvanced)
}

func (h *Handler) calculate(w http.ResponseWriter, r *http.Request, version Version) {
	var dto CompatibilityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	if err := utils.ValidateStruct(&dto); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.service.ScoreCompatibility(r.Context(), dto.User1Profile, dto.User2Profile, version)
	if err != nil {
		h.log.Error("compatibility calculation failed",
			zap.String("version", string(version)), zap.Error(err))
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to calculate compatibility")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, result)
}

// BatchCompatibility scores each submitted profile against the base
// profile using the v1 algorithm.
func (h *Handler) BatchCompatibility(w http.ResponseWriter, r *http.Request) {
	var dto BatchCompatibilityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	if err := utils.ValidateStruct(&dto); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	results, err := h.service.BatchCompatibility(r.Context(), dto.BaseProfile, dto.ProfilesToCompare)
	if err != nil {
		h.log.Error("batch compatibility failed", zap.Error(err))
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to calculate batch compatibility")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, BatchCompatibilityResultDTO{Results: results})
}

// GenerateDailySelection ranks the submitted candidates and returns
// the top matches for the user.
func (h *Handler) GenerateDailySelection(w http.ResponseWriter, r *http.Request) {
	var dto DailySelectionRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	if err := utils.ValidateStruct(&dto); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	size := dto.SelectionSize
	if size == 0 {
		size = h.cfg.DefaultSelectionSize
	}
	if size > h.cfg.MaxSelectionSize {
		utils.RespondWithError(w, http.StatusBadRequest,
			fmt.Sprintf("selectionSize must be at most %d", h.cfg.MaxSelectionSize))
		return
	}

	user := dto.UserProfile
	candidates := dto.AvailableProfiles
	if user == nil || len(candidates) == 0 {
		if h.profiles == nil {
			utils.RespondWithError(w, http.StatusBadRequest, "userProfile and availableProfiles are required when no profile store is configured")
			return
		}
		var err error
		if user == nil {
			user, err = h.profiles.GetProfile(r.Context(), dto.UserID)
			if err != nil {
				h.log.Warn("profile lookup failed",
					zap.String("userId", dto.UserID), zap.Error(err))
				utils.RespondWithError(w, http.StatusNotFound, "User profile not found")
				return
			}
		}
		if len(candidates) == 0 {
			candidates, err = h.profiles.ListCandidates(r.Context(), dto.UserID, nil, 100)
			if err != nil {
				h.log.Error("candidate lookup failed",
					zap.String("userId", dto.UserID), zap.Error(err))
				utils.RespondWithError(w, http.StatusInternalServerError, "Failed to load candidate profiles")
				return
			}
		}
	}

	selection, err := h.service.GenerateDailySelection(r.Context(), user, candidates, size)
	if err != nil {
		h.log.Error("daily selection failed",
			zap.String("userId", dto.UserID), zap.Error(err))
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to generate daily selection")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, DailySelectionResultDTO{
		SelectedProfiles: selection.SelectedIDs,
		Scores:           selection.Scores,
	})
}

// InvalidateUserCache drops all cached pairs mentioning the user, e.g.
// after a profile update.
func (h *Handler) InvalidateUserCache(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	if userID == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "Missing user ID")
		return
	}

	cleared := h.service.InvalidateUser(r.Context(), userID)
	utils.RespondWithJSON(w, http.StatusOK, InvalidateUserResultDTO{
		UserID:         userID,
		EntriesCleared: cleared,
	})
}

// GetAlgorithmStats reports running calculation statistics.
func (h *Handler) GetAlgorithmStats(w http.ResponseWriter, r *http.Request) {
	snapshot := h.service.AlgorithmStats()

	utils.RespondWithJSON(w, http.StatusOK, AlgorithmStatsDTO{
		TotalCalculations: snapshot.TotalCalculations,
		V2Calculations:    snapshot.V2Calculations,
		AverageScore:      snapshot.AverageScore,
		LastUpdate:        snapshot.LastUpdate.Format(time.RFC3339),
		Status:            "online",
		Version:           string(VersionAdvanced),
	})
}

// HealthCheck reports service and cache health. A degraded cache is
// reported but does not make the service unhealthy: scoring proceeds
// uncached.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	cacheStatus := "ok"
	if !h.service.CacheHealthy(r.Context()) {
		cacheStatus = "degraded"
	}

	utils.RespondWithJSON(w, http.StatusOK, HealthCheckDTO{
		Status:    "healthy",
		Version:   serviceVersion,
		Cache:     cacheStatus,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
