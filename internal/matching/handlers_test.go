package matching

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAPIKey = "test-key"

// fakeProfileSource serves canned profiles for selection requests that
// omit them.
type fakeProfileSource struct {
	profiles map[string]*Profile
}

func (f *fakeProfileSource) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	p, ok := f.profiles[userID]
	if !ok {
		return nil, errors.New("profile not found")
	}
	return p, nil
}

func (f *fakeProfileSource) ListCandidates(ctx context.Context, userID string, excludeIDs []string, limit int) ([]*Profile, error) {
	var candidates []*Profile
	for id, p := range f.profiles {
		if id != userID {
			candidates = append(candidates, p)
		}
	}
	return candidates, nil
}

func newTestRouter(t *testing.T, source ProfileSource) *mux.Router {
	t.Helper()
	return newTestRouterWithConfig(t, source, HandlerConfig{})
}

func newTestRouterWithConfig(t *testing.T, source ProfileSource, cfg HandlerConfig) *mux.Router {
	t.Helper()

	handler := NewHandler(newTestService(newMemStore()), source, cfg, nil)

	router := mux.NewRouter()
	router.HandleFunc("/health", handler.HealthCheck).Methods("GET")
	RegisterRoutes(router, handler, testAPIKey)
	return router
}

func doJSON(t *testing.T, router *mux.Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("X-API-Key", testAPIKey)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestAPIKeyMiddleware(t *testing.T) {
	router := newTestRouter(t, nil)

	req := httptest.NewRequest("GET", "/api/v1/matching/algorithm/stats", nil)
	req.Header.Set("X-API-Key", "wrong")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid API key")

	rec = doJSON(t, router, "GET", "/api/v1/matching/algorithm/stats", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCalculateCompatibilityEndpoint(t *testing.T) {
	router := newTestRouter(t, nil)

	body := CompatibilityRequestDTO{
		User1Profile: testProfile("u1"),
		User2Profile: testProfile("u2"),
	}

	rec := doJSON(t, router, "POST", "/api/v1/matching/calculate-compatibility", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var result Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, VersionBasic, result.Version)
	assert.Nil(t, result.AdvancedFactors)
}

func TestCalculateCompatibilityV2Endpoint(t *testing.T) {
	router := newTestRouter(t, nil)

	body := CompatibilityRequestDTO{
		User1Profile: testProfile("u1"),
		User2Profile: testProfile("u2"),
	}

	rec := doJSON(t, router, "POST", "/api/v1/matching/calculate-compatibility-v2", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var result Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, VersionAdvanced, result.Version)
	assert.NotNil(t, result.AdvancedFactors)
	assert.NotNil(t, result.ScoringWeights)
}

func TestCalculateCompatibilityRejectsMissingProfile(t *testing.T) {
	router := newTestRouter(t, nil)

	rec := doJSON(t, router, "POST", "/api/v1/matching/calculate-compatibility",
		CompatibilityRequestDTO{User1Profile: testProfile("u1")})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCalculateCompatibilityRejectsMalformedJSON(t *testing.T) {
	router := newTestRouter(t, nil)

	req := httptest.NewRequest("POST", "/api/v1/matching/calculate-compatibility",
		bytes.NewBufferString("{not json"))
	req.Header.Set("X-API-Key", testAPIKey)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBatchCompatibilityEndpoint(t *testing.T) {
	router := newTestRouter(t, nil)

	body := BatchCompatibilityRequestDTO{
		BaseProfile:       testProfile("base"),
		ProfilesToCompare: []*Profile{testProfile("a"), testProfile("b")},
	}

	rec := doJSON(t, router, "POST", "/api/v1/matching/batch-compatibility", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var result BatchCompatibilityResultDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Len(t, result.Results, 2)
}

func TestBatchCompatibilityRejectsEmptyList(t *testing.T) {
	router := newTestRouter(t, nil)

	rec := doJSON(t, router, "POST", "/api/v1/matching/batch-compatibility",
		BatchCompatibilityRequestDTO{BaseProfile: testProfile("base")})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerateDailySelectionEndpoint(t *testing.T) {
	router := newTestRouter(t, nil)

	body := DailySelectionRequestDTO{
		UserID:            "requester",
		UserProfile:       testProfile("requester"),
		AvailableProfiles: []*Profile{testProfile("a"), testProfile("b"), testProfile("c")},
		SelectionSize:     2,
	}

	rec := doJSON(t, router, "POST", "/api/v1/matching/generate-daily-selection", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var result DailySelectionResultDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Len(t, result.SelectedProfiles, 2)
	assert.Len(t, result.Scores, 2)
}

func TestGenerateDailySelectionRejectsOversizedSelection(t *testing.T) {
	router := newTestRouter(t, nil)

	body := DailySelectionRequestDTO{
		UserID:        "requester",
		UserProfile:   testProfile("requester"),
		SelectionSize: 50,
	}

	rec := doJSON(t, router, "POST", "/api/v1/matching/generate-daily-selection", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerateDailySelectionUsesConfiguredDefaultSize(t *testing.T) {
	router := newTestRouterWithConfig(t, nil, HandlerConfig{
		DefaultSelectionSize: 2,
		MaxSelectionSize:     3,
	})

	body := DailySelectionRequestDTO{
		UserID:      "requester",
		UserProfile: testProfile("requester"),
		AvailableProfiles: []*Profile{
			testProfile("a"), testProfile("b"), testProfile("c"), testProfile("d"),
		},
	}

	rec := doJSON(t, router, "POST", "/api/v1/matching/generate-daily-selection", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var result DailySelectionResultDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Len(t, result.SelectedProfiles, 2)
}

func TestGenerateDailySelectionEnforcesConfiguredMaxSize(t *testing.T) {
	router := newTestRouterWithConfig(t, nil, HandlerConfig{
		DefaultSelectionSize: 2,
		MaxSelectionSize:     3,
	})

	body := DailySelectionRequestDTO{
		UserID:      "requester",
		UserProfile: testProfile("requester"),
		AvailableProfiles: []*Profile{
			testProfile("a"), testProfile("b"), testProfile("c"), testProfile("d"),
		},
		SelectionSize: 4,
	}

	rec := doJSON(t, router, "POST", "/api/v1/matching/generate-daily-selection", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "at most 3")

	body.SelectionSize = 3
	rec = doJSON(t, router, "POST", "/api/v1/matching/generate-daily-selection", body)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGenerateDailySelectionLoadsProfilesFromStore(t *testing.T) {
	source := &fakeProfileSource{profiles: map[string]*Profile{
		"requester": testProfile("requester"),
		"a":         testProfile("a"),
		"b":         testProfile("b"),
	}}
	router := newTestRouter(t, source)

	rec := doJSON(t, router, "POST", "/api/v1/matching/generate-daily-selection",
		DailySelectionRequestDTO{UserID: "requester"})
	require.Equal(t, http.StatusOK, rec.Code)

	var result DailySelectionResultDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.ElementsMatch(t, []string{"a", "b"}, result.SelectedProfiles)
}

func TestGenerateDailySelectionWithoutProfilesOrStore(t *testing.T) {
	router := newTestRouter(t, nil)

	rec := doJSON(t, router, "POST", "/api/v1/matching/generate-daily-selection",
		DailySelectionRequestDTO{UserID: "requester"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerateDailySelectionUnknownUser(t *testing.T) {
	source := &fakeProfileSource{profiles: map[string]*Profile{}}
	router := newTestRouter(t, source)

	rec := doJSON(t, router, "POST", "/api/v1/matching/generate-daily-selection",
		DailySelectionRequestDTO{UserID: "ghost"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInvalidateUserCacheEndpoint(t *testing.T) {
	router := newTestRouter(t, nil)

	rec := doJSON(t, router, "DELETE", "/api/v1/matching/cache/users/user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var result InvalidateUserResultDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "user-1", result.UserID)
	assert.Zero(t, result.EntriesCleared)
}

func TestHealthCheckEndpointIsUnauthenticated(t *testing.T) {
	router := newTestRouter(t, nil)

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var result HealthCheckDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "healthy", result.Status)
	assert.Equal(t, "ok", result.Cache)
}

func TestGetAlgorithmStatsEndpoint(t *testing.T) {
	router := newTestRouter(t, nil)

	body := CompatibilityRequestDTO{
		User1Profile: testProfile("u1"),
		User2Profile: testProfile("u2"),
	}
	doJSON(t, router, "POST", "/api/v1/matching/calculate-compatibility-v2", body)

	rec := doJSON(t, router, "GET", "/api/v1/matching/algorithm/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats AlgorithmStatsDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, int64(1), stats.TotalCalculations)
	assert.Equal(t, int64(1), stats.V2Calculations)
	assert.Equal(t, "online", stats.Status)
}
