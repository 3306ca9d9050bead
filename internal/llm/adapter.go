package llm

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/togpt/togpt/internal/i18n"
	"github.com/togpt/togpt/internal/preferences"
)

const (
	DefaultMaxRetries = 2
	DefaultRetryDelay = 500 * time.Millisecond
)

// PreferenceSource supplies the preferences read at the start of each call.
type PreferenceSource interface {
	Preferences() preferences.Preferences
}

type AdapterOptions struct {
	MaxRetries int
	RetryDelay time.Duration
	Logger     *slog.Logger
}

// Adapter owns one backend conversation: its history, the in-flight call,
// the retry counter and the last successful response. A chat gets one
// Adapter per model.
type Adapter struct {
	provider   Provider
	prefs      PreferenceSource
	logger     *slog.Logger
	maxRetries int
	retryDelay time.Duration

	mu           sync.Mutex
	history      []entry
	seq          uint64
	call         *call
	retryCount   int
	lastResponse string
	session      session
}

type entry struct {
	seq  uint64
	turn Turn
}

// session is the derived per-preferences configuration. It is rebuilt
// whenever the preferences differ from the ones it was built from.
type session struct {
	ready  bool
	prefs  preferences.Preferences
	system string
	params GenerationParams
}

type call struct {
	ctx     context.Context
	cancel  context.CancelFunc
	aborted atomic.Bool
}

func (c *call) abort() {
	c.aborted.Store(true)
	c.cancel()
}

// isAborted treats a cancelled parent context the same as an explicit abort.
func (c *call) isAborted() bool {
	return c.aborted.Load() || c.ctx.Err() != nil
}

func NewAdapter(provider Provider, prefs PreferenceSource, opts AdapterOptions) *Adapter {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Adapter{
		provider:   provider,
		prefs:      prefs,
		logger:     opts.Logger.With("provider", provider.Name()),
		maxRetries: opts.MaxRetries,
		retryDelay: opts.RetryDelay,
	}
}

func (a *Adapter) preferences() preferences.Preferences {
	if a.prefs == nil {
		return preferences.Default()
	}
	return a.prefs.Preferences()
}

// SendMessage sends text and returns the formatted response. The user turn
// is staged in history and only kept if a response is committed. An abort
// returns ("", nil) with history unchanged.
func (a *Adapter) SendMessage(ctx context.Context, text string) (string, error) {
	lang := a.preferences().Language
	if strings.TrimSpace(text) == "" {
		return "", &Error{Kind: KindValidation, Message: i18n.T(lang, i18n.EmptyInput)}
	}

	a.mu.Lock()
	c := a.beginLocked(ctx)
	staged := a.appendLocked(Turn{Role: RoleUser, Content: text})
	a.mu.Unlock()
	defer a.finish(c)

	for {
		a.mu.Lock()
		a.syncSessionLocked()
		req := a.requestLocked()
		a.mu.Unlock()

		resp, err := a.generate(c.ctx, req)
		if c.isAborted() {
			a.rollback(staged)
			return "", nil
		}
		if err == nil {
			a.mu.Lock()
			a.commitLocked(staged, Turn{Role: RoleAssistant, Content: resp})
			a.lastResponse = resp
			a.retryCount = 0
			a.mu.Unlock()
			return resp, nil
		}

		category := Categorize(err)
		a.mu.Lock()
		a.retryCount++
		attempt := a.retryCount
		exhausted := !category.retryable() || attempt >= a.maxRetries
		if exhausted {
			a.retryCount = 0
			a.removeLocked(staged)
		}
		a.session.ready = false
		a.mu.Unlock()

		if exhausted {
			a.logger.Error("generation failed", "attempts", attempt, "category", category, "err", err)
			return "", &Error{Kind: KindTerminal, Category: category, Message: category.message(lang), Err: err}
		}

		a.logger.Warn("retrying generation", "attempt", attempt, "max", a.maxRetries, "err", err)
		if !sleepCtx(c.ctx, a.retryDelay*time.Duration(attempt)) {
			a.rollback(staged)
			return "", nil
		}
	}
}

// ContinueGeneration asks the backend to continue its last answer. The
// instruction is sent with the request but never stored. On success the
// last assistant turn is extended so history matches what the user sees.
func (a *Adapter) ContinueGeneration(ctx context.Context) (string, error) {
	lang := a.preferences().Language

	a.mu.Lock()
	c := a.beginLocked(ctx)
	a.syncSessionLocked()
	req := a.requestLocked()
	if lastAssistant(req.Turns) < 0 && a.lastResponse != "" {
		req.Turns = append(req.Turns, Turn{Role: RoleAssistant, Content: a.lastResponse})
	}
	req.Turns = append(req.Turns, Turn{Role: RoleUser, Content: i18n.T(lang, i18n.ContinueInstruction)})
	a.mu.Unlock()
	defer a.finish(c)

	resp, err := a.generate(c.ctx, req)
	if c.isAborted() {
		return "", nil
	}
	if err != nil {
		a.logger.Warn("continuation failed", "err", err)
		return "", &Error{Kind: KindContinuation, Category: Categorize(err), Message: i18n.T(lang, i18n.ContinueFailed), Err: err}
	}

	a.mu.Lock()
	for i := len(a.history) - 1; i >= 0; i-- {
		if a.history[i].turn.Role == RoleAssistant {
			a.history[i].turn.Content += "\n\n" + resp
			break
		}
	}
	a.lastResponse = resp
	a.mu.Unlock()
	return resp, nil
}

// AbortGeneration cancels the in-flight call, if any. Safe to call at any
// time and more than once.
func (a *Adapter) AbortGeneration() {
	a.mu.Lock()
	c := a.call
	a.call = nil
	a.mu.Unlock()
	if c != nil {
		c.abort()
	}
}

// ResetChat drops all history.
func (a *Adapter) ResetChat() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history = nil
	a.lastResponse = ""
	a.retryCount = 0
	a.session.ready = false
}

// SetHistory replaces the history. Any staged turn of an in-flight call is
// discarded with the old history.
func (a *Adapter) SetHistory(turns []Turn) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history = a.history[:0:0]
	for _, t := range turns {
		a.appendLocked(t)
	}
	a.retryCount = 0
	a.session.ready = false
}

// History returns a copy of the committed turns.
func (a *Adapter) History() []Turn {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Turn, len(a.history))
	for i, e := range a.history {
		out[i] = e.turn
	}
	return out
}

func (a *Adapter) beginLocked(ctx context.Context) *call {
	if a.call != nil {
		a.call.abort()
	}
	callCtx, cancel := context.WithCancel(ctx)
	a.call = &call{ctx: callCtx, cancel: cancel}
	return a.call
}

func (a *Adapter) finish(c *call) {
	a.mu.Lock()
	if a.call == c {
		a.call = nil
	}
	a.mu.Unlock()
	c.cancel()
}

func (a *Adapter) syncSessionLocked() {
	p := a.preferences()
	if a.session.ready && a.session.prefs == p {
		return
	}
	a.session = session{
		ready:  true,
		prefs:  p,
		system: SystemPrompt(p),
		params: ParamsFor(p.ResponseSpeed),
	}
	a.logger.Debug("session configured", "speed", p.ResponseSpeed, "fontSize", p.FontSize, "language", p.Language)
}

func (a *Adapter) requestLocked() Request {
	turns := make([]Turn, len(a.history))
	for i, e := range a.history {
		turns[i] = e.turn
	}
	return Request{System: a.session.system, Turns: turns, Params: a.session.params}
}

func (a *Adapter) appendLocked(t Turn) uint64 {
	a.seq++
	a.history = append(a.history, entry{seq: a.seq, turn: t})
	return a.seq
}

// commitLocked inserts t right after the staged turn. If the staged turn is
// gone (history was reset mid-call) the response is dropped.
func (a *Adapter) commitLocked(staged uint64, t Turn) {
	i := a.indexLocked(staged)
	if i < 0 {
		return
	}
	a.seq++
	a.history = append(a.history, entry{})
	copy(a.history[i+2:], a.history[i+1:])
	a.history[i+1] = entry{seq: a.seq, turn: t}
}

func (a *Adapter) removeLocked(seq uint64) {
	if i := a.indexLocked(seq); i >= 0 {
		a.history = append(a.history[:i], a.history[i+1:]...)
	}
}

func (a *Adapter) rollback(seq uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.removeLocked(seq)
}

func (a *Adapter) indexLocked(seq uint64) int {
	for i := range a.history {
		if a.history[i].seq == seq {
			return i
		}
	}
	return -1
}

func (a *Adapter) generate(ctx context.Context, req Request) (string, error) {
	stream, err := a.provider.Stream(ctx, req)
	if err != nil {
		return "", err
	}
	raw, err := collectText(stream)
	if err != nil {
		return "", err
	}
	text := FormatResponse(applyStopSequences(raw, req.Params.StopSequences))
	if text == "" {
		return "", errEmptyResponse
	}
	return text, nil
}

func lastAssistant(turns []Turn) int {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == RoleAssistant {
			return i
		}
	}
	return -1
}

// sleepCtx waits for d or until ctx is done. It reports whether the full
// duration elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
