package chat

import (
	"fmt"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single entry in a conversation. Only assistant messages are
// ever appended to after creation (continuation).
type Message struct {
	ID           string `json:"id"`
	Content      string `json:"content"`
	Role         Role   `json:"role"`
	Timestamp    int64  `json:"timestamp"`
	Error        bool   `json:"error,omitempty"`
	IsHistorical bool   `json:"isHistorical,omitempty"`
}

// Conversation is a titled, ordered list of messages.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt int64     `json:"createdAt"`
	UpdatedAt int64     `json:"updatedAt"`
	Messages  []Message `json:"messages"`
	Archived  bool      `json:"archived,omitempty"`
}

func (c Conversation) clone() Conversation {
	out := c
	out.Messages = make([]Message, len(c.Messages))
	copy(out.Messages, c.Messages)
	return out
}

func (c Conversation) indexOf(messageID string) int {
	for i := range c.Messages {
		if c.Messages[i].ID == messageID {
			return i
		}
	}
	return -1
}

// Model names a backend. The active model is process-wide.
type Model string

const (
	ModelGemini Model = "gemini"
	ModelGrok   Model = "grok"
)

// ParseModel validates a model name against the known set.
func ParseModel(s string, known []Model) (Model, error) {
	for _, m := range known {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownModel, s)
}

// State is an immutable snapshot of the registry handed to observers.
type State struct {
	Chats                 map[string]Conversation `json:"chats"`
	ActiveChat            string                  `json:"activeChat,omitempty"`
	ActiveModel           Model                   `json:"activeModel"`
	Loading               bool                    `json:"loading"`
	IsGenerating          bool                    `json:"isGenerating"`
	ModelSwitchCooldown   bool                    `json:"modelSwitchCooldown"`
	ShowModelChangeNotice bool                    `json:"showModelChangeNotice"`
	SearchTerm            string                  `json:"searchTerm"`
}

func epochMillis(t time.Time) int64 {
	return t.UnixMilli()
}
