// Package profilestore loads fully populated matching profiles from
// Postgres. The scoring core never touches the database itself; this
// package is the profile-fetch collaborator wired in at the edges.
package profilestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/goldwen/matching-service/internal/matching"
)

var (
	ErrNotFound      = errors.New("profile not found")
	ErrInvalidUserID = errors.New("user ID is not a valid UUID")
)

type Repository interface {
	// GetProfile returns the fully populated profile for a user, or
	// ErrNotFound.
	GetProfile(ctx context.Context, userID string) (*matching.Profile, error)

	// ListCandidates returns active profiles for matching, excluding
	// the user themselves and the given IDs.
	ListCandidates(ctx context.Context, userID string, excludeIDs []string, limit int) ([]*matching.Profile, error)
}

type postgresRepository struct {
	db *sqlx.DB
}

func NewPostgresRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

type profileRow struct {
	UserID           string         `db:"user_id"`
	BirthDate        *time.Time     `db:"birth_date"`
	Gender           sql.NullString `db:"gender"`
	Interests        pq.StringArray `db:"interests"`
	Languages        pq.StringArray `db:"languages"`
	MinAge           sql.NullInt64  `db:"min_age"`
	MaxAge           sql.NullInt64  `db:"max_age"`
	PreferredGender  sql.NullString `db:"preferred_gender"`
	MaxDistance      sql.NullFloat64 `db:"max_distance"`
	Latitude         sql.NullFloat64 `db:"latitude"`
	Longitude        sql.NullFloat64 `db:"longitude"`
	LastActiveAt     *time.Time     `db:"last_active_at"`
	LastLoginAt      *time.Time     `db:"last_login_at"`
	CreatedAt        *time.Time     `db:"created_at"`
	MessagesSent     int            `db:"messages_sent"`
	MessagesReceived int            `db:"messages_received"`
	MatchesCount     int            `db:"matches_count"`
}

type answerRow struct {
	QuestionID     string         `db:"question_id"`
	Category       sql.NullString `db:"category"`
	NumericAnswer  sql.NullInt64  `db:"numeric_answer"`
	BooleanAnswer  sql.NullBool   `db:"boolean_answer"`
	MultipleChoice pq.StringArray `db:"multiple_choice_answer"`
	TextAnswer     sql.NullString `db:"text_answer"`
}

func (r *postgresRepository) GetProfile(ctx context.Context, userID string) (*matching.Profile, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return nil, ErrInvalidUserID
	}

	query := `
		SELECT
			u.id AS user_id,
			p.birth_date, p.gender, p.interests, p.languages,
			p.min_age, p.max_age, p.preferred_gender, p.max_distance,
			p.latitude, p.longitude,
			u.last_active_at, u.last_login_at, u.created_at,
			COALESCE(m.messages_sent, 0) AS messages_sent,
			COALESCE(m.messages_received, 0) AS messages_received,
			COALESCE(mc.matches_count, 0) AS matches_count
		FROM users u
		JOIN profiles p ON p.user_id = u.id
		LEFT JOIN LATERAL (
			SELECT
				COUNT(*) FILTER (WHERE sender_id = u.id) AS messages_sent,
				COUNT(*) FILTER (WHERE receiver_id = u.id) AS messages_received
			FROM messages
			WHERE sender_id = u.id OR receiver_id = u.id
		) m ON TRUE
		LEFT JOIN LATERAL (
			SELECT COUNT(*) AS matches_count
			FROM matches
			WHERE user1_id = u.id OR user2_id = u.id
		) mc ON TRUE
		WHERE u.id = $1`

	var row profileRow
	if err := r.db.GetContext(ctx, &row, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get profile %s: %w", userID, err)
	}

	answers, err := r.getAnswers(ctx, userID)
	if err != nil {
		return nil, err
	}

	return buildProfile(row, answers), nil
}

func (r *postgresRepository) ListCandidates(ctx context.Context, userID string, excludeIDs []string, limit int) ([]*matching.Profile, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return nil, ErrInvalidUserID
	}
	if limit <= 0 {
		limit = 100
	}

	exclude := make([]string, 0, len(excludeIDs)+1)
	exclude = append(exclude, userID)
	for _, id := range excludeIDs {
		if _, err := uuid.Parse(id); err == nil {
			exclude = append(exclude, id)
		}
	}

	query := `
		SELECT u.id AS user_id
		FROM users u
		JOIN profiles p ON p.user_id = u.id
		WHERE p.status = 'active'
		  AND NOT (u.id = ANY($1))
		ORDER BY u.last_active_at DESC NULLS LAST
		LIMIT $2`

	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, pq.Array(exclude), limit); err != nil {
		return nil, fmt.Errorf("list candidates for %s: %w", userID, err)
	}

	profiles := make([]*matching.Profile, 0, len(ids))
	for _, id := range ids {
		profile, err := r.GetProfile(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		profiles = append(profiles, profile)
	}
	return profiles, nil
}

func (r *postgresRepository) getAnswers(ctx context.Context, userID string) ([]matching.Answer, error) {
	query := `
		SELECT question_id, category, numeric_answer, boolean_answer,
		       multiple_choice_answer, text_answer
		FROM personality_answers
		WHERE user_id = $1
		ORDER BY created_at`

	var rows []answerRow
	if err := r.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, fmt.Errorf("get personality answers %s: %w", userID, err)
	}

	answers := make([]matching.Answer, 0, len(rows))
	for _, row := range rows {
		category := matching.CategoryPersonality
		if row.Category.Valid {
			category = matching.Category(row.Category.String)
		}

		switch {
		case row.NumericAnswer.Valid:
			answers = append(answers, matching.NumericAnswer(row.QuestionID, category, int(row.NumericAnswer.Int64)))
		case row.BooleanAnswer.Valid:
			answers = append(answers, matching.BooleanAnswer(row.QuestionID, category, row.BooleanAnswer.Bool))
		case len(row.MultipleChoice) > 0:
			answers = append(answers, matching.MultipleChoiceAnswer(row.QuestionID, category, row.MultipleChoice))
		case row.TextAnswer.Valid && row.TextAnswer.String != "":
			answers = append(answers, matching.TextAnswer(row.QuestionID, category, row.TextAnswer.String))
		}
	}
	return answers, nil
}

func buildProfile(row profileRow, answers []matching.Answer) *matching.Profile {
	profile := &matching.Profile{
		UserID:           row.UserID,
		Interests:        row.Interests,
		Languages:        row.Languages,
		Answers:          answers,
		LastActiveAt:     row.LastActiveAt,
		LastLoginAt:      row.LastLoginAt,
		CreatedAt:        row.CreatedAt,
		MessagesSent:     row.MessagesSent,
		MessagesReceived: row.MessagesReceived,
		MatchesCount:     row.MatchesCount,
	}

	if row.Gender.Valid {
		profile.Gender = row.Gender.String
	}
	if row.BirthDate != nil {
		age := ageFromBirthDate(*row.BirthDate, time.Now())
		profile.Age = &age
	}
	if row.Latitude.Valid && row.Longitude.Valid {
		lat, lon := row.Latitude.Float64, row.Longitude.Float64
		profile.Latitude = &lat
		profile.Longitude = &lon
	}

	if row.MinAge.Valid || row.MaxAge.Valid || row.PreferredGender.Valid || row.MaxDistance.Valid {
		prefs := &matching.Preferences{}
		if row.MinAge.Valid {
			prefs.MinAge = int(row.MinAge.Int64)
		}
		if row.MaxAge.Valid {
			prefs.MaxAge = int(row.MaxAge.Int64)
		}
		if row.PreferredGender.Valid {
			prefs.Gender = row.PreferredGender.String
		}
		if row.MaxDistance.Valid {
			prefs.MaxDistance = row.MaxDistance.Float64
		}
		profile.Preferences = prefs
	}

	return profile
}

func ageFromBirthDate(birthDate, now time.Time) int {
	age := now.Year() - birthDate.Year()
	if now.Month() < birthDate.Month() ||
		(now.Month() == birthDate.Month() && now.Day() < birthDate.Day()) {
		age--
	}
	if age < 0 {
		age = 0
	}
	return age
}
