package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/togpt/togpt/internal/chat"
)

// PersistenceError describes a failed read or write. The Store never returns
// it to callers; it is only logged.
type PersistenceError struct {
	Op  string
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Store persists registry state. Every method is fire-and-forget: failures
// are logged and the caller carries on with in-memory state.
type Store struct {
	kv       KV
	logger   *slog.Logger
	validate *validator.Validate
}

func NewStore(kv KV, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{kv: kv, logger: logger, validate: validator.New()}
}

func (s *Store) fail(op, key string, err error) {
	perr := &PersistenceError{Op: op, Key: key, Err: err}
	s.logger.Warn("failed to persist state", "op", op, "key", key, "err", perr)
}

// SaveChats writes the whole chat map, obfuscated.
func (s *Store) SaveChats(ctx context.Context, chats map[string]chat.Conversation) {
	if chats == nil {
		chats = map[string]chat.Conversation{}
	}
	data, err := json.Marshal(chats)
	if err != nil {
		s.fail("encode", KeyChats, err)
		return
	}
	if err := s.kv.Set(ctx, KeyChats, Obfuscate(data)); err != nil {
		s.fail("write", KeyChats, err)
	}
}

// LoadChats returns the persisted chats. Records that fail structural
// validation are dropped; an unreadable payload yields an empty map.
func (s *Store) LoadChats(ctx context.Context) map[string]chat.Conversation {
	out := make(map[string]chat.Conversation)

	raw, ok, err := s.kv.Get(ctx, KeyChats)
	if err != nil {
		s.fail("read", KeyChats, err)
		return out
	}
	if !ok {
		return out
	}

	var records map[string]json.RawMessage
	if err := json.Unmarshal(Deobfuscate(raw), &records); err != nil {
		s.fail("decode", KeyChats, err)
		return out
	}

	for id, rec := range records {
		conv, err := s.decodeConversation(rec)
		if err != nil {
			s.logger.Warn("dropping invalid conversation record", "chat", id, "err", err)
			continue
		}
		out[id] = conv
	}
	return out
}

// SaveActiveChat stores the active chat id; an empty id removes the key.
func (s *Store) SaveActiveChat(ctx context.Context, id string) {
	var err error
	if id == "" {
		err = s.kv.Delete(ctx, KeyActiveChat)
	} else {
		err = s.kv.Set(ctx, KeyActiveChat, []byte(id))
	}
	if err != nil {
		s.fail("write", KeyActiveChat, err)
	}
}

func (s *Store) LoadActiveChat(ctx context.Context) string {
	raw, ok, err := s.kv.Get(ctx, KeyActiveChat)
	if err != nil {
		s.fail("read", KeyActiveChat, err)
		return ""
	}
	if !ok {
		return ""
	}
	return string(raw)
}

// ClearStorage removes chats and the active id. Preferences are kept.
func (s *Store) ClearStorage(ctx context.Context) {
	if err := s.kv.Delete(ctx, KeyChats, KeyActiveChat); err != nil {
		s.fail("delete", KeyChats, err)
	}
}
