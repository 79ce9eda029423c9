// Package localfs persists chats, conversation state and user profiles as
// JSON files under a single data directory. It is the default backend and
// needs no external services.
package localfs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/yavru421/llama-tail/internal/core/domain"
)

const (
	chatsSubdir    = "chats"
	stateSubdir    = "state"
	profilesSubdir = "profiles"
)

// identifiers become file names, so they are restricted to a safe charset.
var identifierRe = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

func validateIdentifier(kind, id string) error {
	if id == "" || !identifierRe.MatchString(id) || strings.HasPrefix(id, ".") {
		return domain.WrapError(domain.ErrInvalidInput, "validate "+kind, fmt.Errorf("invalid %s %q", kind, id))
	}
	return nil
}

// Store implements the chat, state and profile stores over one directory
// tree: <dir>/chats/<id>.json, <dir>/state/<id>.json, <dir>/profiles/<id>.json.
type Store struct {
	dir string
}

func New(dir string) (*Store, error) {
	for _, sub := range []string{chatsSubdir, stateSubdir, profilesSubdir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(subdir, id string) string {
	return filepath.Join(s.dir, subdir, id+".json")
}

// writeJSON writes via a temp file and rename so a crash mid-write never
// leaves a truncated document behind.
func (s *Store) writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}

func (s *Store) readJSON(path string, value any) (bool, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, value); err != nil {
		return false, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return true, nil
}

// Load returns the chat's turns in stored order. A missing chat is an empty
// history.
func (s *Store) Load(ctx context.Context, chatID string) ([]domain.EnhancedMessage, error) {
	if err := validateIdentifier("chat id", chatID); err != nil {
		return nil, err
	}
	var turns []domain.EnhancedMessage
	if _, err := s.readJSON(s.path(chatsSubdir, chatID), &turns); err != nil {
		return nil, err
	}
	return turns, nil
}

// Append rewrites the whole chat file with the new turn added. Chat files
// stay small enough that the read-modify-write is fine.
func (s *Store) Append(ctx context.Context, chatID string, turn domain.EnhancedMessage) error {
	turns, err := s.Load(ctx, chatID)
	if err != nil {
		return err
	}
	return s.writeJSON(s.path(chatsSubdir, chatID), append(turns, turn))
}

// Create makes an empty chat file. Creating an existing chat is a no-op so
// the operation is idempotent.
func (s *Store) Create(ctx context.Context, chatID string) error {
	if err := validateIdentifier("chat id", chatID); err != nil {
		return err
	}
	path := s.path(chatsSubdir, chatID)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return s.writeJSON(path, []domain.EnhancedMessage{})
}

// List returns all chat names in sorted order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.dir, chatsSubdir))
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	chats := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") || strings.HasPrefix(name, ".") {
			continue
		}
		chats = append(chats, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(chats)
	return chats, nil
}

// StateStore is the localfs conversation-state backend.
type StateStore struct {
	store *Store
}

func NewStateStore(store *Store) *StateStore { return &StateStore{store: store} }

func (s *StateStore) Load(ctx context.Context, chatID string) (*domain.ConversationState, error) {
	if err := validateIdentifier("chat id", chatID); err != nil {
		return nil, err
	}
	var state domain.ConversationState
	found, err := s.store.readJSON(s.store.path(stateSubdir, chatID), &state)
	if err != nil || !found {
		return nil, err
	}
	return &state, nil
}

func (s *StateStore) Save(ctx context.Context, state *domain.ConversationState) error {
	if err := validateIdentifier("chat id", state.ChatID); err != nil {
		return err
	}
	return s.store.writeJSON(s.store.path(stateSubdir, state.ChatID), state)
}

// ProfileStore is the localfs user-profile backend.
type ProfileStore struct {
	store *Store
}

func NewProfileStore(store *Store) *ProfileStore { return &ProfileStore{store: store} }

func (s *ProfileStore) Load(ctx context.Context, userID string) (*domain.UserProfile, error) {
	if err := validateIdentifier("user id", userID); err != nil {
		return nil, err
	}
	var profile domain.UserProfile
	found, err := s.store.readJSON(s.store.path(profilesSubdir, userID), &profile)
	if err != nil || !found {
		return nil, err
	}
	return &profile, nil
}

func (s *ProfileStore) Save(ctx context.Context, profile *domain.UserProfile) error {
	if err := validateIdentifier("user id", profile.UserID); err != nil {
		return err
	}
	return s.store.writeJSON(s.store.path(profilesSubdir, profile.UserID), profile)
}
