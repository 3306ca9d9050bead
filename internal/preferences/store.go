package preferences

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/togpt/togpt/internal/i18n"
)

const (
	storageKey     = "user-preferences"
	currentVersion = 1
)

// KV is the subset of storage.KV the preference store needs.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

type envelope struct {
	Version     int             `json:"version"`
	Preferences json.RawMessage `json:"preferences,omitempty"`
}

// Store holds the current preferences and persists changes.
type Store struct {
	kv       KV
	logger   *slog.Logger
	validate *validator.Validate

	mu      sync.RWMutex
	prefs   Preferences
	loading bool
	errMsg  string
}

// Open loads persisted preferences from kv, migrating older payloads.
// Unreadable or invalid data falls back to defaults.
func Open(ctx context.Context, kv KV, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		kv:       kv,
		logger:   logger,
		validate: newValidator(),
		prefs:    Default(),
	}
	s.load(ctx)
	return s
}

func (s *Store) load(ctx context.Context) {
	raw, ok, err := s.kv.Get(ctx, storageKey)
	if err != nil {
		s.logger.Warn("failed to read preferences", "err", err)
		return
	}
	if !ok {
		return
	}

	prefs, version, err := decode(raw)
	if err != nil {
		s.logger.Warn("discarding unreadable preferences", "err", err)
		return
	}
	if err := s.validate.Struct(prefs); err != nil {
		s.logger.Warn("discarding invalid preferences", "err", err)
		return
	}
	s.prefs = prefs

	if version < currentVersion {
		s.logger.Info("migrated preferences", "from", version, "to", currentVersion)
		if err := s.persist(ctx, prefs); err != nil {
			s.logger.Warn("failed to persist migrated preferences", "err", err)
		}
	}
}

// decode reads a versioned envelope. Version 0 payloads, including bare
// preference objects written before the envelope existed, are merged over
// the defaults.
func decode(raw []byte) (Preferences, int, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Preferences{}, 0, err
	}
	body := env.Preferences
	if len(body) == 0 {
		body = raw
	}
	if env.Version > currentVersion {
		return Preferences{}, env.Version, fmt.Errorf("unsupported preferences version %d", env.Version)
	}

	prefs := Default()
	if err := json.Unmarshal(body, &prefs); err != nil {
		return Preferences{}, env.Version, err
	}
	return prefs, env.Version, nil
}

func (s *Store) persist(ctx context.Context, prefs Preferences) error {
	body, err := json.Marshal(prefs)
	if err != nil {
		return err
	}
	data, err := json.Marshal(envelope{Version: currentVersion, Preferences: body})
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, storageKey, data)
}

// Preferences returns the current preferences.
func (s *Store) Preferences() Preferences {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prefs
}

// Update validates and applies a partial update. An invalid value leaves the
// preferences untouched and sets the user-facing error. A persistence
// failure keeps the in-memory change and reports the error.
func (s *Store) Update(ctx context.Context, p Partial) error {
	s.mu.Lock()
	s.loading = true
	s.errMsg = ""
	language := s.prefs.Language

	if err := s.validate.Struct(p); err != nil {
		verr := toValidationError(err, language)
		s.errMsg = verr.Error()
		s.loading = false
		s.mu.Unlock()
		return verr
	}

	next := p.apply(s.prefs)
	s.prefs = next
	s.mu.Unlock()

	err := s.persist(ctx, next)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		s.errMsg = i18n.T(next.Language, i18n.PrefsSaveFailed)
		s.logger.Warn("failed to persist preferences", "err", err)
		return fmt.Errorf("%s: %w", s.errMsg, err)
	}
	return nil
}

func (s *Store) IsLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Error returns the last user-facing error, or "".
func (s *Store) Error() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.errMsg
}

func (s *Store) SetError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errMsg = msg
}
