package matching

import (
	"encoding/json"
	"fmt"
	"time"
)

// Version selects which scoring algorithm a result was produced by.
type Version string

const (
	// VersionBasic is personality-based scoring only.
	VersionBasic Version = "v1"
	// VersionAdvanced blends personality with behavioral factors.
	VersionAdvanced Version = "v2"
)

// Category groups personality questions for the score breakdown.
type Category string

const (
	CategoryCommunication Category = "communication"
	CategoryValues        Category = "values"
	CategoryLifestyle     Category = "lifestyle"
	CategoryPersonality   Category = "personality"
)

// AnswerKind discriminates the payload of an Answer.
type AnswerKind string

const (
	AnswerNumeric        AnswerKind = "numeric"
	AnswerBoolean        AnswerKind = "boolean"
	AnswerMultipleChoice AnswerKind = "multiple_choice"
	AnswerText           AnswerKind = "text"
)

// Answer is a tagged union over the four supported answer payloads.
// Exactly one payload is populated, selected by Kind. Use the
// constructors below rather than building the struct by hand.
type Answer struct {
	QuestionID string
	Category   Category
	Kind       AnswerKind

	Numeric int
	Boolean bool
	Choices []string
	Text    string
}

func NumericAnswer(questionID string, category Category, value int) Answer {
	return Answer{QuestionID: questionID, Category: normalizeCategory(category), Kind: AnswerNumeric, Numeric: value}
}

func BooleanAnswer(questionID string, category Category, value bool) Answer {
	return Answer{QuestionID: questionID, Category: normalizeCategory(category), Kind: AnswerBoolean, Boolean: value}
}

func MultipleChoiceAnswer(questionID string, category Category, choices []string) Answer {
	return Answer{QuestionID: questionID, Category: normalizeCategory(category), Kind: AnswerMultipleChoice, Choices: choices}
}

func TextAnswer(questionID string, category Category, text string) Answer {
	return Answer{QuestionID: questionID, Category: normalizeCategory(category), Kind: AnswerText, Text: text}
}

func normalizeCategory(c Category) Category {
	switch c {
	case CategoryCommunication, CategoryValues, CategoryLifestyle, CategoryPersonality:
		return c
	default:
		return CategoryPersonality
	}
}

// answerWire is the JSON representation: one optional field per payload,
// matching the public API schema.
type answerWire struct {
	QuestionID           string    `json:"questionId"`
	Category             *Category `json:"category,omitempty"`
	NumericAnswer        *int      `json:"numericAnswer,omitempty"`
	BooleanAnswer        *bool     `json:"booleanAnswer,omitempty"`
	MultipleChoiceAnswer []string  `json:"multipleChoiceAnswer,omitempty"`
	TextAnswer           *string   `json:"textAnswer,omitempty"`
}

func (a Answer) MarshalJSON() ([]byte, error) {
	w := answerWire{QuestionID: a.QuestionID}
	if a.Category != "" {
		c := a.Category
		w.Category = &c
	}
	switch a.Kind {
	case AnswerNumeric:
		w.NumericAnswer = &a.Numeric
	case AnswerBoolean:
		w.BooleanAnswer = &a.Boolean
	case AnswerMultipleChoice:
		w.MultipleChoiceAnswer = a.Choices
	case AnswerText:
		w.TextAnswer = &a.Text
	default:
		return nil, fmt.Errorf("answer %q: unknown kind %q", a.QuestionID, a.Kind)
	}
	return json.Marshal(w)
}

// UnmarshalJSON rejects answers with zero or multiple payloads populated,
// so a malformed answer fails loudly instead of silently scoring as empty.
func (a *Answer) UnmarshalJSON(data []byte) error {
	var w answerWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	category := CategoryPersonality
	if w.Category != nil {
		category = normalizeCategory(*w.Category)
	}

	populated := 0
	var out Answer
	if w.NumericAnswer != nil {
		populated++
		out = NumericAnswer(w.QuestionID, category, *w.NumericAnswer)
	}
	if w.BooleanAnswer != nil {
		populated++
		out = BooleanAnswer(w.QuestionID, category, *w.BooleanAnswer)
	}
	if len(w.MultipleChoiceAnswer) > 0 {
		populated++
		out = MultipleChoiceAnswer(w.QuestionID, category, w.MultipleChoiceAnswer)
	}
	if w.TextAnswer != nil && *w.TextAnswer != "" {
		populated++
		out = TextAnswer(w.QuestionID, category, *w.TextAnswer)
	}

	switch populated {
	case 0:
		return fmt.Errorf("answer %q: no payload populated", w.QuestionID)
	case 1:
		*a = out
		return nil
	default:
		return fmt.Errorf("answer %q: %d payloads populated, want exactly one", w.QuestionID, populated)
	}
}

// Preferences are a user's hard matching preferences. Zero values mean
// "not specified"; every check that reads them tolerates absence.
type Preferences struct {
	MinAge              int      `json:"minAge,omitempty"`
	MaxAge              int      `json:"maxAge,omitempty"`
	Gender              string   `json:"gender,omitempty"`
	InterestedInGenders []string `json:"interestedInGenders,omitempty"`
	MaxDistance         float64  `json:"maxDistance,omitempty"`
}

// Profile is the immutable scoring input. The scorers never mutate it;
// it is assembled by the profile store (or the request body) per call.
type Profile struct {
	UserID    string   `json:"userId"`
	Age       *int     `json:"age,omitempty"`
	Gender    string   `json:"gender,omitempty"`
	Interests []string `json:"interests"`
	Languages []string `json:"languages,omitempty"`

	Answers     []Answer     `json:"personalityAnswers"`
	Preferences *Preferences `json:"preferences,omitempty"`

	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`

	LastActiveAt *time.Time `json:"lastActiveAt,omitempty"`
	LastLoginAt  *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt    *time.Time `json:"createdAt,omitempty"`

	MessagesSent     int `json:"messagesSent"`
	MessagesReceived int `json:"messagesReceived"`
	MatchesCount     int `json:"matchesCount"`
}

// HasLocation reports whether both coordinates are present.
func (p *Profile) HasLocation() bool {
	return p.Latitude != nil && p.Longitude != nil
}

// Breakdown holds per-category personality scores, each in [0,1].
type Breakdown struct {
	Communication float64 `json:"communication"`
	Values        float64 `json:"values"`
	Lifestyle     float64 `json:"lifestyle"`
	Personality   float64 `json:"personality"`
}

// AdvancedFactorDetails exposes the per-user sub-scores behind the
// averaged advanced factors.
type AdvancedFactorDetails struct {
	UserActivity       float64 `json:"userActivity"`
	TargetActivity     float64 `json:"targetActivity"`
	UserResponseRate   float64 `json:"userResponseRate"`
	TargetResponseRate float64 `json:"targetResponseRate"`
}

// AdvancedFactors are the behavioral sub-scores of v2 scoring.
type AdvancedFactors struct {
	ActivityScore     float64               `json:"activityScore"`
	ResponseRateScore float64               `json:"responseRateScore"`
	ReciprocityScore  float64               `json:"reciprocityScore"`
	Details           AdvancedFactorDetails `json:"details"`
}

// ScoringWeights echo the blend weights used to produce a v2 result.
type ScoringWeights struct {
	PersonalityWeight float64 `json:"personalityWeight"`
	AdvancedWeight    float64 `json:"advancedWeight"`
}

// Result is the public compatibility result for a pair of profiles.
// Score is on the 0-100 scale; everything else stays in [0,1].
type Result struct {
	Score           float64          `json:"compatibilityScore"`
	Version         Version          `json:"version,omitempty"`
	Breakdown       Breakdown        `json:"details"`
	SharedInterests []string         `json:"sharedInterests"`
	AdvancedFactors *AdvancedFactors `json:"advancedFactors,omitempty"`
	ScoringWeights  *ScoringWeights  `json:"scoringWeights,omitempty"`
	Reasons         []string         `json:"reasons,omitempty"`
}

// Selection is the outcome of ranking a candidate set for a requester.
type Selection struct {
	SelectedIDs []string           `json:"selectedProfiles"`
	Scores      map[string]float64 `json:"scores"`
}
