// Package postgres backs the conversation-state and profile stores with
// PostgreSQL. Chat transcripts stay on the filesystem; only the memory
// documents that benefit from concurrent access live here.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/yavru421/llama-tail/internal/core/domain"
)

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// StateStore persists conversation state as one row per chat with the
// entity and importance collections in JSONB.
type StateStore struct {
	db *sql.DB
}

func NewStateStore(db *sql.DB) *StateStore {
	return &StateStore{db: db}
}

func (s *StateStore) EnsureSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026041501)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS conversation_states (
	chat_id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL DEFAULT '',
	topic_summary TEXT NOT NULL DEFAULT '',
	key_entities JSONB NOT NULL DEFAULT '[]'::jsonb,
	stage TEXT NOT NULL,
	importance_scores JSONB NOT NULL DEFAULT '{}'::jsonb,
	last_updated TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS user_profiles (
	user_id TEXT PRIMARY KEY,
	communication_style JSONB NOT NULL DEFAULT '{}'::jsonb,
	preferred_response_length TEXT NOT NULL,
	topic_preferences JSONB NOT NULL DEFAULT '{}'::jsonb,
	clarification_frequency DOUBLE PRECISION NOT NULL DEFAULT 0,
	last_updated TIMESTAMPTZ NOT NULL
);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (s *StateStore) Load(ctx context.Context, chatID string) (*domain.ConversationState, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT chat_id, user_id, topic_summary, key_entities, stage, importance_scores, last_updated
FROM conversation_states
WHERE chat_id = $1
`, chatID)

	var (
		state        domain.ConversationState
		entitiesJSON []byte
		scoresJSON   []byte
		stage        string
	)
	err := row.Scan(&state.ChatID, &state.UserID, &state.TopicSummary, &entitiesJSON, &stage, &scoresJSON, &state.LastUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	state.Stage = domain.Stage(stage)
	if err := json.Unmarshal(entitiesJSON, &state.KeyEntities); err != nil {
		return nil, fmt.Errorf("decode key entities: %w", err)
	}
	if err := json.Unmarshal(scoresJSON, &state.ImportanceScores); err != nil {
		return nil, fmt.Errorf("decode importance scores: %w", err)
	}
	return &state, nil
}

func (s *StateStore) Save(ctx context.Context, state *domain.ConversationState) error {
	entitiesJSON, err := json.Marshal(state.KeyEntities)
	if err != nil {
		return fmt.Errorf("encode key entities: %w", err)
	}
	scoresJSON, err := json.Marshal(state.ImportanceScores)
	if err != nil {
		return fmt.Errorf("encode importance scores: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO conversation_states (chat_id, user_id, topic_summary, key_entities, stage, importance_scores, last_updated)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (chat_id) DO UPDATE SET
	user_id = EXCLUDED.user_id,
	topic_summary = EXCLUDED.topic_summary,
	key_entities = EXCLUDED.key_entities,
	stage = EXCLUDED.stage,
	importance_scores = EXCLUDED.importance_scores,
	last_updated = EXCLUDED.last_updated
`, state.ChatID, state.UserID, state.TopicSummary, entitiesJSON, string(state.Stage), scoresJSON, state.LastUpdated)
	if err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

// ProfileStore persists user style profiles, one row per user.
type ProfileStore struct {
	db *sql.DB
}

func NewProfileStore(db *sql.DB) *ProfileStore {
	return &ProfileStore{db: db}
}

func (s *ProfileStore) Load(ctx context.Context, userID string) (*domain.UserProfile, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT user_id, communication_style, preferred_response_length, topic_preferences, clarification_frequency, last_updated
FROM user_profiles
WHERE user_id = $1
`, userID)

	var (
		profile    domain.UserProfile
		styleJSON  []byte
		topicsJSON []byte
		length     string
	)
	err := row.Scan(&profile.UserID, &styleJSON, &length, &topicsJSON, &profile.ClarificationFrequency, &profile.LastUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	profile.PreferredResponseLength = domain.ResponseLength(length)
	if err := json.Unmarshal(styleJSON, &profile.CommunicationStyle); err != nil {
		return nil, fmt.Errorf("decode communication style: %w", err)
	}
	if err := json.Unmarshal(topicsJSON, &profile.TopicPreferences); err != nil {
		return nil, fmt.Errorf("decode topic preferences: %w", err)
	}
	return &profile, nil
}

func (s *ProfileStore) Save(ctx context.Context, profile *domain.UserProfile) error {
	styleJSON, err := json.Marshal(profile.CommunicationStyle)
	if err != nil {
		return fmt.Errorf("encode communication style: %w", err)
	}
	topicsJSON, err := json.Marshal(profile.TopicPreferences)
	if err != nil {
		return fmt.Errorf("encode topic preferences: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO user_profiles (user_id, communication_style, preferred_response_length, topic_preferences, clarification_frequency, last_updated)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (user_id) DO UPDATE SET
	communication_style = EXCLUDED.communication_style,
	preferred_response_length = EXCLUDED.preferred_response_length,
	topic_preferences = EXCLUDED.topic_preferences,
	clarification_frequency = EXCLUDED.clarification_frequency,
	last_updated = EXCLUDED.last_updated
`, profile.UserID, styleJSON, string(profile.PreferredResponseLength), topicsJSON, profile.ClarificationFrequency, profile.LastUpdated)
	if err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}
