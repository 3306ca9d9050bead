// Package chat holds the conversation registry: every chat, the active chat
// and model, and the per-chat backend sessions.
package chat

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/togpt/togpt/internal/i18n"
	"github.com/togpt/togpt/internal/llm"
)

var (
	ErrBusy            = errors.New("a response is already being generated for this chat")
	ErrNoActiveChat    = errors.New("no active chat")
	ErrChatNotFound    = errors.New("chat not found")
	ErrMessageNotFound = errors.New("message not found")
	ErrUnknownModel    = errors.New("unknown model")
)

// DefaultCooldown is how long model switching stays locked after a switch.
const DefaultCooldown = 3 * time.Second

// Session is one backend conversation; llm.Adapter implements it.
type Session interface {
	SendMessage(ctx context.Context, text string) (string, error)
	ContinueGeneration(ctx context.Context) (string, error)
	AbortGeneration()
	ResetChat()
	SetHistory(turns []llm.Turn)
}

// SessionFactory creates a fresh session for a model.
type SessionFactory func(model Model) Session

// Persister stores registry state. Implementations handle their own errors.
type Persister interface {
	SaveChats(ctx context.Context, chats map[string]Conversation)
	LoadChats(ctx context.Context) map[string]Conversation
	SaveActiveChat(ctx context.Context, id string)
	LoadActiveChat(ctx context.Context) string
	ClearStorage(ctx context.Context)
}

type Options struct {
	Models       []Model // defaults to gemini, grok
	DefaultModel Model
	Cooldown     time.Duration
	// Language returns the preference language used for default titles and
	// fallback error text.
	Language func() string
	Logger   *slog.Logger
	Now      func() time.Time
	NewID    func() string
}

// Registry is the single owner of chat state. All methods are safe for
// concurrent use; backend calls run outside the lock.
type Registry struct {
	store   Persister
	factory SessionFactory
	opts    Options
	logger  *slog.Logger

	mu            sync.Mutex
	chats         map[string]*Conversation
	sessions      map[string]map[Model]Session
	active        string
	activeModel   Model
	inFlight      map[string]uint64
	ticket        uint64
	loading       bool
	generating    bool
	cooldownUntil time.Time
	cooldownTimer *time.Timer
	modelNotice   bool
	searchTerm    string

	obsMu     sync.Mutex
	observers map[int]func(State)
	nextObs   int
}

// New restores persisted state and seeds each restored chat's sessions with
// its message history.
func New(ctx context.Context, store Persister, factory SessionFactory, opts Options) *Registry {
	if len(opts.Models) == 0 {
		opts.Models = []Model{ModelGemini, ModelGrok}
	}
	if opts.DefaultModel == "" || !slices.Contains(opts.Models, opts.DefaultModel) {
		opts.DefaultModel = opts.Models[0]
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = DefaultCooldown
	}
	if opts.Language == nil {
		opts.Language = func() string { return "auto" }
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}

	r := &Registry{
		store:       store,
		factory:     factory,
		opts:        opts,
		logger:      opts.Logger,
		chats:       make(map[string]*Conversation),
		sessions:    make(map[string]map[Model]Session),
		activeModel: opts.DefaultModel,
		inFlight:    make(map[string]uint64),
		observers:   make(map[int]func(State)),
	}

	for id, conv := range store.LoadChats(ctx) {
		c := conv.clone()
		c.ID = id
		r.chats[id] = &c
		r.sessions[id] = r.newSessions(turnsFrom(c.Messages))
	}
	if active := store.LoadActiveChat(ctx); active != "" {
		if _, ok := r.chats[active]; ok {
			r.active = active
		} else {
			r.logger.Info("persisted active chat no longer exists", "chat", active)
		}
	}
	r.logger.Debug("registry restored", "chats", len(r.chats), "active", r.active)
	return r
}

func (r *Registry) newSessions(history []llm.Turn) map[Model]Session {
	out := make(map[Model]Session, len(r.opts.Models))
	for _, m := range r.opts.Models {
		s := r.factory(m)
		if len(history) > 0 {
			s.SetHistory(history)
		}
		out[m] = s
	}
	return out
}

// Subscribe registers fn to receive a snapshot after every change. The
// returned func removes it.
func (r *Registry) Subscribe(fn func(State)) func() {
	r.obsMu.Lock()
	defer r.obsMu.Unlock()
	id := r.nextObs
	r.nextObs++
	r.observers[id] = fn
	return func() {
		r.obsMu.Lock()
		defer r.obsMu.Unlock()
		delete(r.observers, id)
	}
}

func (r *Registry) notify() {
	r.obsMu.Lock()
	fns := make([]func(State), 0, len(r.observers))
	for _, fn := range r.observers {
		fns = append(fns, fn)
	}
	r.obsMu.Unlock()
	if len(fns) == 0 {
		return
	}
	state := r.Snapshot()
	for _, fn := range fns {
		fn(state)
	}
}

// Snapshot returns a deep copy of the current state.
func (r *Registry) Snapshot() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Registry) snapshotLocked() State {
	chats := make(map[string]Conversation, len(r.chats))
	for id, c := range r.chats {
		chats[id] = c.clone()
	}
	return State{
		Chats:                 chats,
		ActiveChat:            r.active,
		ActiveModel:           r.activeModel,
		Loading:               r.loading,
		IsGenerating:          r.generating,
		ModelSwitchCooldown:   r.cooldownActiveLocked(),
		ShowModelChangeNotice: r.modelNotice,
		SearchTerm:            r.searchTerm,
	}
}

// Conversations lists chats whose title contains term (case-insensitive),
// most recently updated first.
func (r *Registry) Conversations(term string) []Conversation {
	r.mu.Lock()
	defer r.mu.Unlock()
	needle := strings.ToLower(strings.TrimSpace(term))
	out := make([]Conversation, 0, len(r.chats))
	for _, c := range r.chats {
		if needle != "" && !strings.Contains(strings.ToLower(c.Title), needle) {
			continue
		}
		out = append(out, c.clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt != out[j].UpdatedAt {
			return out[i].UpdatedAt > out[j].UpdatedAt
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Conversation returns a copy of one chat.
func (r *Registry) Conversation(id string) (Conversation, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.chats[id]
	if !ok {
		return Conversation{}, false
	}
	return c.clone(), true
}

func (r *Registry) ActiveChat() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

func (r *Registry) ActiveModel() Model {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activeModel
}

// Models returns the configured model names.
func (r *Registry) Models() []Model {
	return slices.Clone(r.opts.Models)
}

func (r *Registry) SetSearchTerm(term string) {
	r.mu.Lock()
	r.searchTerm = term
	r.mu.Unlock()
	r.notify()
}

func (r *Registry) HideModelChangeNotice() {
	r.mu.Lock()
	r.modelNotice = false
	r.mu.Unlock()
	r.notify()
}

// CreateChat makes a new empty chat, activates it and returns its id.
func (r *Registry) CreateChat(ctx context.Context) string {
	r.mu.Lock()
	id := r.createChatLocked(ctx)
	r.mu.Unlock()
	r.notify()
	return id
}

func (r *Registry) createChatLocked(ctx context.Context) string {
	now := r.nowMillis()
	id := r.opts.NewID()
	r.chats[id] = &Conversation{
		ID:        id,
		Title:     i18n.T(r.opts.Language(), i18n.NewChatTitle),
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  []Message{},
	}
	r.sessions[id] = r.newSessions(nil)
	r.active = id
	r.persistChatsLocked(ctx)
	r.store.SaveActiveChat(ctx, id)
	r.logger.Debug("chat created", "chat", id)
	return id
}

// SetActiveChat switches the active chat. An unknown id is rejected.
func (r *Registry) SetActiveChat(ctx context.Context, id string) error {
	r.mu.Lock()
	if _, ok := r.chats[id]; !ok {
		r.mu.Unlock()
		return ErrChatNotFound
	}
	r.active = id
	r.store.SaveActiveChat(ctx, id)
	r.mu.Unlock()
	r.notify()
	return nil
}

// DeleteChat removes a chat and its sessions. Deleting the active chat
// leaves no chat active.
func (r *Registry) DeleteChat(ctx context.Context, id string) {
	r.mu.Lock()
	sessions := r.sessions[id]
	if _, ok := r.chats[id]; ok {
		delete(r.chats, id)
		delete(r.sessions, id)
		delete(r.inFlight, id)
		r.refreshFlagsLocked()
		if r.active == id {
			r.active = ""
			r.store.SaveActiveChat(ctx, "")
		}
		r.persistChatsLocked(ctx)
		r.logger.Debug("chat deleted", "chat", id)
	}
	r.mu.Unlock()

	for _, s := range sessions {
		s.AbortGeneration()
	}
	r.notify()
}

// ClearAllChats removes every chat and wipes persisted chat state.
func (r *Registry) ClearAllChats(ctx context.Context) {
	r.mu.Lock()
	old := r.sessions
	r.chats = make(map[string]*Conversation)
	r.sessions = make(map[string]map[Model]Session)
	r.inFlight = make(map[string]uint64)
	r.active = ""
	r.refreshFlagsLocked()
	r.store.ClearStorage(ctx)
	r.mu.Unlock()

	for _, pair := range old {
		for _, s := range pair {
			s.AbortGeneration()
		}
	}
	r.notify()
}

// ClearMessages empties the active chat and gives it fresh sessions.
func (r *Registry) ClearMessages(ctx context.Context) error {
	r.mu.Lock()
	conv, ok := r.chats[r.active]
	if !ok {
		r.mu.Unlock()
		return ErrNoActiveChat
	}
	old := r.sessions[conv.ID]
	conv.Messages = []Message{}
	r.touchLocked(conv)
	r.sessions[conv.ID] = r.newSessions(nil)
	delete(r.inFlight, conv.ID)
	r.refreshFlagsLocked()
	r.persistChatsLocked(ctx)
	r.mu.Unlock()

	for _, s := range old {
		s.AbortGeneration()
	}
	r.notify()
	return nil
}

// SetActiveModel switches the process-wide model. It reports false when the
// switch was ignored (same model or cooldown). Switching away from a chat
// that already has messages starts a new chat.
func (r *Registry) SetActiveModel(ctx context.Context, model Model) (bool, error) {
	if !slices.Contains(r.opts.Models, model) {
		return false, ErrUnknownModel
	}

	r.mu.Lock()
	if model == r.activeModel || r.cooldownActiveLocked() {
		r.mu.Unlock()
		return false, nil
	}
	if conv, ok := r.chats[r.active]; ok && len(conv.Messages) > 0 {
		r.createChatLocked(ctx)
	}
	r.activeModel = model
	r.modelNotice = true
	r.cooldownUntil = r.opts.Now().Add(r.opts.Cooldown)
	if r.cooldownTimer != nil {
		r.cooldownTimer.Stop()
	}
	r.cooldownTimer = time.AfterFunc(r.opts.Cooldown, r.notify)
	r.mu.Unlock()

	r.logger.Info("active model changed", "model", model)
	r.notify()
	return true, nil
}

func (r *Registry) cooldownActiveLocked() bool {
	return r.opts.Now().Before(r.cooldownUntil)
}

// Close stops background timers.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cooldownTimer != nil {
		r.cooldownTimer.Stop()
	}
}

func (r *Registry) nowMillis() int64 {
	return epochMillis(r.opts.Now())
}

// touchLocked bumps updatedAt, never moving it backwards.
func (r *Registry) touchLocked(c *Conversation) {
	now := r.nowMillis()
	if now < c.UpdatedAt {
		now = c.UpdatedAt
	}
	c.UpdatedAt = now
}

func (r *Registry) persistChatsLocked(ctx context.Context) {
	out := make(map[string]Conversation, len(r.chats))
	for id, c := range r.chats {
		out[id] = c.clone()
	}
	r.store.SaveChats(ctx, out)
}

func (r *Registry) refreshFlagsLocked() {
	busy := len(r.inFlight) > 0
	r.loading = busy
	r.generating = busy
}
