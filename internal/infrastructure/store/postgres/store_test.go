package postgres

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/yavru421/llama-tail/internal/core/domain"
)

func TestStateStoreLoadMissReturnsNil(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	store := NewStateStore(db)
	mock.ExpectQuery("FROM conversation_states").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"chat_id", "user_id", "topic_summary", "key_entities", "stage", "importance_scores", "last_updated"}))

	state, err := store.Load(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if state != nil {
		t.Fatalf("expected nil state on miss, got %+v", state)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestStateStoreLoadDecodesCollections(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	store := NewStateStore(db)
	updated := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"chat_id", "user_id", "topic_summary", "key_entities", "stage", "importance_scores", "last_updated"}).
		AddRow("deploys", "dana", "Discussion about: Service Alpha", []byte(`["Service Alpha","config.yaml"]`), "developing", []byte(`{"m1":0.8}`), updated)

	mock.ExpectQuery("FROM conversation_states").
		WithArgs("deploys").
		WillReturnRows(rows)

	state, err := store.Load(context.Background(), "deploys")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if state.Stage != domain.StageDeveloping {
		t.Errorf("unexpected stage %q", state.Stage)
	}
	if len(state.KeyEntities) != 2 || state.KeyEntities[0] != "Service Alpha" {
		t.Errorf("unexpected entities %v", state.KeyEntities)
	}
	if state.ImportanceScores["m1"] != 0.8 {
		t.Errorf("unexpected importance scores %v", state.ImportanceScores)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestStateStoreSaveUpserts(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	store := NewStateStore(db)
	state := domain.NewConversationState("deploys", "dana", time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	state.KeyEntities = []string{"Service Alpha"}
	state.Stage = domain.StageDeveloping
	state.ImportanceScores["m1"] = 0.8

	entitiesJSON, _ := json.Marshal(state.KeyEntities)
	scoresJSON, _ := json.Marshal(state.ImportanceScores)
	mock.ExpectExec("INSERT INTO conversation_states").
		WithArgs("deploys", "dana", "", entitiesJSON, "developing", scoresJSON, state.LastUpdated).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.Save(context.Background(), state); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestProfileStoreLoadMissReturnsNil(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	store := NewProfileStore(db)
	mock.ExpectQuery("FROM user_profiles").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "communication_style", "preferred_response_length", "topic_preferences", "clarification_frequency", "last_updated"}))

	profile, err := store.Load(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if profile != nil {
		t.Fatalf("expected nil profile on miss, got %+v", profile)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestProfileStoreRoundTrip(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	store := NewProfileStore(db)
	profile := domain.NewUserProfile("dana", time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	profile.CommunicationStyle[domain.StyleFormality] = 0.4
	profile.TopicPreferences["kubernetes"] = 0.3
	profile.ClarificationFrequency = 0.25

	styleJSON, _ := json.Marshal(profile.CommunicationStyle)
	topicsJSON, _ := json.Marshal(profile.TopicPreferences)
	mock.ExpectExec("INSERT INTO user_profiles").
		WithArgs("dana", styleJSON, "adaptive", topicsJSON, 0.25, profile.LastUpdated).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.Save(context.Background(), profile); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	rows := sqlmock.NewRows([]string{"user_id", "communication_style", "preferred_response_length", "topic_preferences", "clarification_frequency", "last_updated"}).
		AddRow("dana", styleJSON, "adaptive", topicsJSON, 0.25, profile.LastUpdated)
	mock.ExpectQuery("FROM user_profiles").
		WithArgs("dana").
		WillReturnRows(rows)

	loaded, err := store.Load(context.Background(), "dana")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.CommunicationStyle[domain.StyleFormality] != 0.4 {
		t.Errorf("unexpected style %v", loaded.CommunicationStyle)
	}
	if loaded.PreferredResponseLength != domain.ResponseLengthAdaptive {
		t.Errorf("unexpected response length %q", loaded.PreferredResponseLength)
	}
	if loaded.TopicPreferences["kubernetes"] != 0.3 {
		t.Errorf("unexpected topics %v", loaded.TopicPreferences)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestEnsureSchemaRunsInTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	store := NewStateStore(db)
	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").WithArgs(int64(2026041501)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS conversation_states").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	if err := store.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
