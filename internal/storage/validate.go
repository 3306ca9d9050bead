package storage

import (
	"encoding/json"
	"fmt"

	"github.com/togpt/togpt/internal/chat"
)

// Persisted records use pointers so that a missing field and a zero value
// can be told apart during validation.
type messageRecord struct {
	ID           *string  `json:"id" validate:"required"`
	Content      *string  `json:"content" validate:"required"`
	Role         *string  `json:"role" validate:"required,oneof=user assistant"`
	Timestamp    *float64 `json:"timestamp" validate:"required"`
	Error        *bool    `json:"error"`
	IsHistorical *bool    `json:"isHistorical"`
}

type conversationRecord struct {
	ID        *string         `json:"id" validate:"required"`
	Title     *string         `json:"title" validate:"required"`
	CreatedAt *float64        `json:"createdAt" validate:"required"`
	UpdatedAt *float64        `json:"updatedAt" validate:"required"`
	Messages  []messageRecord `json:"messages" validate:"required,dive"`
	Archived  *bool           `json:"archived"`
}

func (s *Store) decodeConversation(raw json.RawMessage) (chat.Conversation, error) {
	var rec conversationRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return chat.Conversation{}, fmt.Errorf("decode: %w", err)
	}
	if err := s.validate.Struct(rec); err != nil {
		return chat.Conversation{}, fmt.Errorf("validate: %w", err)
	}

	conv := chat.Conversation{
		ID:        *rec.ID,
		Title:     *rec.Title,
		CreatedAt: int64(*rec.CreatedAt),
		UpdatedAt: int64(*rec.UpdatedAt),
		Messages:  make([]chat.Message, 0, len(rec.Messages)),
	}
	if rec.Archived != nil {
		conv.Archived = *rec.Archived
	}
	for _, m := range rec.Messages {
		msg := chat.Message{
			ID:        *m.ID,
			Content:   *m.Content,
			Role:      chat.Role(*m.Role),
			Timestamp: int64(*m.Timestamp),
		}
		if m.Error != nil {
			msg.Error = *m.Error
		}
		if m.IsHistorical != nil {
			msg.IsHistorical = *m.IsHistorical
		}
		conv.Messages = append(conv.Messages, msg)
	}
	return conv, nil
}
