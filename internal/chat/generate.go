package chat

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/togpt/togpt/internal/i18n"
	"github.com/togpt/togpt/internal/llm"
)

const titleMaxRunes = 50

// pending tracks one send or edit between dispatch and completion.
type pending struct {
	chatID        string
	ticket        uint64
	userID        string
	placeholderID string
	prevTitle     string
	retitled      bool
}

// SendMessage appends a user message to the active chat (creating one if
// needed) and asks the active model's session for a reply. It blocks until
// the reply, failure or cancellation has been applied and returns the id of
// the chat it wrote to.
func (r *Registry) SendMessage(ctx context.Context, content string) (string, error) {
	r.mu.Lock()
	if _, ok := r.chats[r.active]; !ok {
		r.createChatLocked(ctx)
	}
	conv := r.chats[r.active]
	if _, busy := r.inFlight[conv.ID]; busy {
		r.mu.Unlock()
		return conv.ID, ErrBusy
	}

	p := r.stageLocked(conv, content, len(conv.Messages) == 0)
	session := r.sessions[conv.ID][r.activeModel]
	r.persistChatsLocked(ctx)
	r.mu.Unlock()
	r.notify()

	response, err := session.SendMessage(ctx, content)
	r.complete(ctx, p, response, err)
	return p.chatID, nil
}

// EditMessage replaces the message with messageID and everything after it
// with a new user message, then regenerates the reply.
func (r *Registry) EditMessage(ctx context.Context, messageID, content string) error {
	r.mu.Lock()
	conv, ok := r.chats[r.active]
	if !ok {
		r.mu.Unlock()
		return ErrNoActiveChat
	}
	if _, busy := r.inFlight[conv.ID]; busy {
		r.mu.Unlock()
		return ErrBusy
	}
	idx := conv.indexOf(messageID)
	if idx < 0 {
		r.mu.Unlock()
		return ErrMessageNotFound
	}

	conv.Messages = append([]Message(nil), conv.Messages[:idx]...)
	session := r.sessions[conv.ID][r.activeModel]
	session.SetHistory(turnsFrom(conv.Messages))

	p := r.stageLocked(conv, content, idx == 0)
	r.persistChatsLocked(ctx)
	r.mu.Unlock()
	r.notify()

	response, err := session.SendMessage(ctx, content)
	r.complete(ctx, p, response, err)
	return nil
}

// stageLocked appends the user message and an empty assistant placeholder
// and marks the chat busy.
func (r *Registry) stageLocked(conv *Conversation, content string, retitle bool) pending {
	now := r.nowMillis()
	p := pending{
		chatID:        conv.ID,
		userID:        r.opts.NewID(),
		placeholderID: r.opts.NewID(),
		prevTitle:     conv.Title,
		retitled:      retitle && strings.TrimSpace(content) != "",
	}
	if p.retitled {
		conv.Title = deriveTitle(content)
	}
	conv.Messages = append(conv.Messages,
		Message{ID: p.userID, Content: content, Role: RoleUser, Timestamp: now},
		Message{ID: p.placeholderID, Content: "", Role: RoleAssistant, Timestamp: now},
	)
	r.touchLocked(conv)

	r.ticket++
	p.ticket = r.ticket
	r.inFlight[conv.ID] = p.ticket
	r.refreshFlagsLocked()
	return p
}

// complete applies the outcome of a send or edit. It only touches the
// placeholder it created, so a late result after a stop or a clear is
// harmless.
func (r *Registry) complete(ctx context.Context, p pending, response string, err error) {
	r.mu.Lock()
	if r.inFlight[p.chatID] == p.ticket {
		delete(r.inFlight, p.chatID)
		r.refreshFlagsLocked()
	}

	conv, ok := r.chats[p.chatID]
	if !ok {
		r.mu.Unlock()
		r.notify()
		return
	}
	idx := conv.indexOf(p.placeholderID)
	if idx < 0 {
		r.mu.Unlock()
		r.notify()
		return
	}

	switch {
	case err != nil:
		conv.Messages[idx] = Message{
			ID:        r.opts.NewID(),
			Content:   r.userFacing(err),
			Role:      RoleAssistant,
			Timestamp: r.nowMillis(),
			Error:     true,
		}
		r.logger.Warn("generation failed", "chat", p.chatID, "err", err)
	case response == "":
		// Cancelled: drop the exchange entirely.
		conv.Messages = slices.Delete(conv.Messages, idx, idx+1)
		if u := conv.indexOf(p.userID); u >= 0 {
			conv.Messages = slices.Delete(conv.Messages, u, u+1)
		}
		if p.retitled {
			conv.Title = p.prevTitle
		}
	default:
		conv.Messages[idx] = Message{
			ID:        r.opts.NewID(),
			Content:   response,
			Role:      RoleAssistant,
			Timestamp: r.nowMillis(),
		}
	}
	r.touchLocked(conv)
	r.persistChatsLocked(ctx)
	r.mu.Unlock()
	r.notify()
}

// ContinueGeneration asks the active model to continue the assistant
// message messageID and appends the result to it. Failures are logged and
// leave the message as it was.
func (r *Registry) ContinueGeneration(ctx context.Context, messageID string) error {
	r.mu.Lock()
	conv, ok := r.chats[r.active]
	if !ok {
		r.mu.Unlock()
		return ErrNoActiveChat
	}
	if _, busy := r.inFlight[conv.ID]; busy {
		r.mu.Unlock()
		return ErrBusy
	}
	idx := conv.indexOf(messageID)
	if idx < 0 || conv.Messages[idx].Role != RoleAssistant {
		r.mu.Unlock()
		return ErrMessageNotFound
	}
	chatID := conv.ID
	r.ticket++
	ticket := r.ticket
	r.inFlight[chatID] = ticket
	r.refreshFlagsLocked()
	session := r.sessions[chatID][r.activeModel]
	r.mu.Unlock()
	r.notify()

	response, err := session.ContinueGeneration(ctx)

	r.mu.Lock()
	if r.inFlight[chatID] == ticket {
		delete(r.inFlight, chatID)
		r.refreshFlagsLocked()
	}
	switch {
	case err != nil:
		r.logger.Warn("continuation failed", "chat", chatID, "err", err)
	case response != "":
		if conv, ok := r.chats[chatID]; ok {
			if i := conv.indexOf(messageID); i >= 0 {
				conv.Messages[i].Content += "\n\n" + response
				// The session only extends its latest reply.
				session.SetHistory(turnsFrom(conv.Messages))
				r.touchLocked(conv)
				r.persistChatsLocked(ctx)
			}
		}
	}
	r.mu.Unlock()
	r.notify()
	return nil
}

// StopGeneration aborts the active chat's in-flight call and clears the
// busy flags right away.
func (r *Registry) StopGeneration() {
	r.mu.Lock()
	chatID := r.active
	session := r.sessions[chatID][r.activeModel]
	delete(r.inFlight, chatID)
	r.loading = false
	r.generating = false
	r.mu.Unlock()

	if session != nil {
		session.AbortGeneration()
	}
	r.notify()
}

func (r *Registry) userFacing(err error) string {
	var lerr *llm.Error
	if errors.As(err, &lerr) && lerr.Message != "" {
		return lerr.Message
	}
	return i18n.T(r.opts.Language(), i18n.GenericError)
}

// turnsFrom converts visible messages into backend history. Error messages
// and empty placeholders never reach the backend.
func turnsFrom(messages []Message) []llm.Turn {
	turns := make([]llm.Turn, 0, len(messages))
	for _, m := range messages {
		if m.Error || (m.Role == RoleAssistant && m.Content == "") {
			continue
		}
		role := llm.RoleUser
		if m.Role == RoleAssistant {
			role = llm.RoleAssistant
		}
		turns = append(turns, llm.Turn{Role: role, Content: m.Content})
	}
	return turns
}

func deriveTitle(content string) string {
	runes := []rune(content)
	if len(runes) > titleMaxRunes {
		runes = runes[:titleMaxRunes]
	}
	return string(runes)
}
