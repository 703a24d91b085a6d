// internal/matching/dto.go
package matching

// DTOs for API requests/responses

type CompatibilityRequestDTO struct {
	User1Profile *Profile `json:"user1Profile" validate:"required"`
	User2Profile *Profile `json:"user2Profile" validate:"required"`
}

type BatchCompatibilityRequestDTO struct {
	BaseProfile       *Profile   `json:"baseProfile" validate:"required"`
	ProfilesToCompare []*Profile `json:"profilesToCompare" validate:"required,min=1,max=100"`
}

type BatchCompatibilityResultDTO struct {
	Results map[string]*Result `json:"results"`
}

type DailySelectionRequestDTO struct {
	UserID            string     `json:"userId" validate:"required"`
	UserProfile       *Profile   `json:"userProfile"`
	AvailableProfiles []*Profile `json:"availableProfiles"`
	SelectionSize     int        `json:"selectionSize" validate:"omitempty,min=1"`
}

type DailySelectionResultDTO struct {
	SelectedProfiles []string           `json:"selectedProfiles"`
	Scores           map[string]float64 `json:"scores"`
}

type InvalidateUserResultDTO struct {
	UserID         string `json:"userId"`
	EntriesCleared int    `json:"entriesCleared"`
}

type AlgorithmStatsDTO struct {
	TotalCalculations int64   `json:"totalCalculations"`
	V2Calculations    int64   `json:"totalV2Calculations"`
	AverageScore      float64 `json:"averageScore"`
	LastUpdate        string  `json:"lastUpdate"`
	Status            string  `json:"status"`
	Version           string  `json:"version"`
}

type HealthCheckDTO struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Cache     string `json:"cache"`
	Timestamp string `json:"timestamp"`
}
