package matching

import (
	"net/http"

	"github.com/goldwen/matching-service/internal/common/utils"
	"github.com/gorilla/mux"
)

// RequireAPIKey authenticates requests with the X-API-Key header.
func RequireAPIKey(apiKey string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("X-API-Key") != apiKey {
				utils.RespondWithError(w, http.StatusUnauthorized, "Invalid API key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func RegisterRoutes(router *mux.Router, handler *Handler, apiKey string) {
	api := router.PathPrefix("/api/v1/matching").Subrouter()
	api.Use(RequireAPIKey(apiKey))

	// Pairwise scoring
	api.HandleFunc("/calculate-compatibility", handler.CalculateCompatibility).Methods("POST")
	api.HandleFunc("/calculate-compatibility-v2", handler.CalculateCompatibilityV2).Methods("POST")
	api.HandleFunc("/batch-compatibility", handler.BatchCompatibility).Methods("POST")

	// Selection
	api.HandleFunc("/generate-daily-selection", handler.GenerateDailySelection).Methods("POST")

	// Cache maintenance
	api.HandleFunc("/cache/users/{userId}", handler.InvalidateUserCache).Methods("DELETE")

	// Stats
	api.HandleFunc("/algorithm/stats", handler.GetAlgorithmStats).Methods("GET")
}
