package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/togpt/togpt/internal/llm"
)

type memPersister struct {
	mu     sync.Mutex
	chats  map[string]Conversation
	active string
	saves  int
}

func (m *memPersister) SaveChats(_ context.Context, chats map[string]Conversation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chats = chats
	m.saves++
}

func (m *memPersister) LoadChats(context.Context) map[string]Conversation {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]Conversation, len(m.chats))
	for k, v := range m.chats {
		out[k] = v.clone()
	}
	return out
}

func (m *memPersister) SaveActiveChat(_ context.Context, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = id
}

func (m *memPersister) LoadActiveChat(context.Context) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

func (m *memPersister) ClearStorage(context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chats = nil
	m.active = ""
}

func (m *memPersister) snapshot() (map[string]Conversation, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.chats, m.active
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type harness struct {
	reg       *Registry
	store     *memPersister
	clock     *fakeClock
	providers map[Model]*llm.MockProvider
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHarness(t *testing.T, store *memPersister) *harness {
	t.Helper()
	if store == nil {
		store = &memPersister{}
	}
	h := &harness{
		store: store,
		clock: &fakeClock{t: time.UnixMilli(1_700_000_000_000)},
		providers: map[Model]*llm.MockProvider{
			ModelGemini: llm.NewMockProvider("gemini"),
			ModelGrok:   llm.NewMockProvider("grok"),
		},
	}
	var seq int
	var seqMu sync.Mutex
	factory := func(m Model) Session {
		return llm.NewAdapter(h.providers[m], nil, llm.AdapterOptions{RetryDelay: time.Millisecond, Logger: discardLogger()})
	}
	h.reg = New(context.Background(), store, factory, Options{
		Logger: discardLogger(),
		Now:    h.clock.Now,
		NewID: func() string {
			seqMu.Lock()
			defer seqMu.Unlock()
			seq++
			return fmt.Sprintf("id-%d", seq)
		},
	})
	t.Cleanup(h.reg.Close)
	return h
}

func (h *harness) active(t *testing.T) Conversation {
	t.Helper()
	c, ok := h.reg.Conversation(h.reg.ActiveChat())
	if !ok {
		t.Fatal("no active conversation")
	}
	return c
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestSendMessageFreshStart(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	h.providers[ModelGemini].AddTextResponse("Selam! Nasıl yardımcı olabilirim?")

	chatID, err := h.reg.SendMessage(ctx, "Merhaba")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	state := h.reg.Snapshot()
	if len(state.Chats) != 1 || state.ActiveChat != chatID {
		t.Fatalf("state=%+v", state)
	}
	conv := state.Chats[chatID]
	if conv.Title != "Merhaba" {
		t.Errorf("title=%q", conv.Title)
	}
	if len(conv.Messages) != 2 {
		t.Fatalf("messages=%+v", conv.Messages)
	}
	if conv.Messages[0].Role != RoleUser || conv.Messages[0].Content != "Merhaba" {
		t.Errorf("user message=%+v", conv.Messages[0])
	}
	if conv.Messages[1].Role != RoleAssistant || conv.Messages[1].Content != "Selam! Nasıl yardımcı olabilirim?" {
		t.Errorf("assistant message=%+v", conv.Messages[1])
	}
	if state.Loading || state.IsGenerating {
		t.Error("flags still set")
	}

	persisted, active := h.store.snapshot()
	if active != chatID || len(persisted[chatID].Messages) != 2 {
		t.Fatalf("persisted active=%q chats=%+v", active, persisted)
	}
}

func TestSendMessageTitleOnlyFromFirstMessage(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	h.providers[ModelGemini].AddTextResponse("bir").AddTextResponse("iki")

	long := "Bu mesaj elli karakterden çok daha uzun bir başlık adayı, kesilmesi gerekiyor"
	h.reg.SendMessage(ctx, long)
	h.reg.SendMessage(ctx, "ikinci mesaj")

	conv := h.active(t)
	if want := string([]rune(long)[:50]); conv.Title != want {
		t.Fatalf("title=%q, want %q", conv.Title, want)
	}
	if len(conv.Messages) != 4 {
		t.Fatalf("messages=%d", len(conv.Messages))
	}
	req, _ := h.providers[ModelGemini].LastRequest()
	if len(req.Turns) != 3 {
		t.Fatalf("backend turns=%v", req.Turns)
	}
}

func TestNewChatHasDefaultTitle(t *testing.T) {
	h := newHarness(t, nil)
	id := h.reg.CreateChat(context.Background())
	conv, _ := h.reg.Conversation(id)
	if conv.Title != "Yeni Sohbet" || conv.Messages == nil || len(conv.Messages) != 0 {
		t.Fatalf("new chat=%+v", conv)
	}
	if h.reg.ActiveChat() != id {
		t.Fatal("new chat not active")
	}
}

func TestEditFirstMessageRetitles(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	mock := h.providers[ModelGemini]
	mock.AddTextResponse("cevap 1").AddTextResponse("cevap 2").AddTextResponse("yeni cevap")

	h.reg.SendMessage(ctx, "ilk soru")
	h.reg.SendMessage(ctx, "ikinci soru")
	first := h.active(t).Messages[0]

	if err := h.reg.EditMessage(ctx, first.ID, "düzeltilmiş soru"); err != nil {
		t.Fatalf("EditMessage: %v", err)
	}
	conv := h.active(t)
	if conv.Title != "düzeltilmiş soru" {
		t.Errorf("title=%q", conv.Title)
	}
	if len(conv.Messages) != 2 || conv.Messages[0].Content != "düzeltilmiş soru" || conv.Messages[1].Content != "yeni cevap" {
		t.Fatalf("messages=%+v", conv.Messages)
	}
	req, _ := mock.LastRequest()
	if len(req.Turns) != 1 || req.Turns[0].Content != "düzeltilmiş soru" {
		t.Fatalf("backend history after edit=%v", req.Turns)
	}
}

func TestEditLaterMessageKeepsTitle(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	mock := h.providers[ModelGemini]
	mock.AddTextResponse("cevap 1").AddTextResponse("cevap 2").AddTextResponse("cevap 2b")

	h.reg.SendMessage(ctx, "ilk soru")
	h.reg.SendMessage(ctx, "ikinci soru")
	second := h.active(t).Messages[2]

	if err := h.reg.EditMessage(ctx, second.ID, "ikinci soru (düzeltilmiş)"); err != nil {
		t.Fatal(err)
	}
	conv := h.active(t)
	if conv.Title != "ilk soru" {
		t.Errorf("title=%q", conv.Title)
	}
	if len(conv.Messages) != 4 || conv.Messages[3].Content != "cevap 2b" {
		t.Fatalf("messages=%+v", conv.Messages)
	}
	req, _ := mock.LastRequest()
	want := []string{"ilk soru", "cevap 1", "ikinci soru (düzeltilmiş)"}
	if len(req.Turns) != len(want) {
		t.Fatalf("turns=%v", req.Turns)
	}
	for i, w := range want {
		if req.Turns[i].Content != w {
			t.Errorf("turn %d=%q, want %q", i, req.Turns[i].Content, w)
		}
	}
}

func TestEditUnknownMessage(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	h.reg.CreateChat(ctx)
	if err := h.reg.EditMessage(ctx, "nope", "x"); !errors.Is(err, ErrMessageNotFound) {
		t.Fatalf("err=%v", err)
	}
}

func TestStopGenerationDropsExchange(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	mock := h.providers[ModelGemini]
	mock.AddTextResponse("önceki cevap")
	mock.AddTurn(llm.MockTurn{Text: "gecikmiş", Delay: 5 * time.Second})

	h.reg.SendMessage(ctx, "önceki soru")
	before := h.active(t)

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.reg.SendMessage(ctx, "uzun soru")
	}()
	waitFor(t, func() bool { return mock.RequestCount() == 2 })
	if s := h.reg.Snapshot(); !s.Loading || !s.IsGenerating {
		t.Fatal("flags not set during generation")
	}

	h.reg.StopGeneration()
	if s := h.reg.Snapshot(); s.Loading || s.IsGenerating {
		t.Fatal("flags not cleared immediately by StopGeneration")
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("send did not return after stop")
	}

	after := h.active(t)
	if len(after.Messages) != len(before.Messages) {
		t.Fatalf("messages after stop=%+v", after.Messages)
	}
	if after.Title != before.Title {
		t.Fatalf("title changed to %q", after.Title)
	}
}

func TestStopFirstMessageRestoresTitle(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	mock := h.providers[ModelGemini]
	mock.AddTurn(llm.MockTurn{Text: "x", Delay: 5 * time.Second})

	h.reg.CreateChat(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.reg.SendMessage(ctx, "iptal edilecek")
	}()
	waitFor(t, func() bool { return mock.RequestCount() == 1 })
	h.reg.StopGeneration()
	<-done

	conv := h.active(t)
	if len(conv.Messages) != 0 || conv.Title != "Yeni Sohbet" {
		t.Fatalf("conv=%+v", conv)
	}
}

func TestBusyChatRejectsSecondSend(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	mock := h.providers[ModelGemini]
	mock.AddTurn(llm.MockTurn{Text: "yavaş", Delay: 100 * time.Millisecond})

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.reg.SendMessage(ctx, "ilk")
	}()
	waitFor(t, func() bool { return mock.RequestCount() == 1 })

	before := h.active(t)
	if _, err := h.reg.SendMessage(ctx, "ikinci"); !errors.Is(err, ErrBusy) {
		t.Fatalf("err=%v, want ErrBusy", err)
	}
	if err := h.reg.ContinueGeneration(ctx, before.Messages[1].ID); !errors.Is(err, ErrBusy) {
		t.Fatalf("continue err=%v, want ErrBusy", err)
	}
	if got := h.active(t); len(got.Messages) != len(before.Messages) {
		t.Fatal("rejected send changed state")
	}
	<-done
	if got := h.active(t); len(got.Messages) != 2 || got.Messages[1].Content != "yavaş" {
		t.Fatalf("messages=%+v", got.Messages)
	}
}

func TestFailureBecomesErrorMessage(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	mock := h.providers[ModelGemini]
	mock.AddError(&llm.StatusError{StatusCode: 401, Err: errors.New("bad key")})
	mock.AddTextResponse("şimdi oldu")

	h.reg.SendMessage(ctx, "soru")
	conv := h.active(t)
	if len(conv.Messages) != 2 {
		t.Fatalf("messages=%+v", conv.Messages)
	}
	errMsg := conv.Messages[1]
	if !errMsg.Error || errMsg.Role != RoleAssistant || errMsg.Content != "Yetkilendirme hatası. Lütfen daha sonra tekrar deneyin." {
		t.Fatalf("error message=%+v", errMsg)
	}
	if s := h.reg.Snapshot(); s.Loading || s.IsGenerating {
		t.Fatal("flags not cleared after failure")
	}

	h.reg.SendMessage(ctx, "tekrar")
	req, _ := mock.LastRequest()
	for _, turn := range req.Turns {
		if turn.Content == errMsg.Content {
			t.Fatal("error message leaked into backend history")
		}
	}
}

func TestEmptyContentShowsValidationMessage(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	h.reg.SendMessage(ctx, "   ")
	conv := h.active(t)
	if len(conv.Messages) != 2 || !conv.Messages[1].Error || conv.Messages[1].Content != "Lütfen bir mesaj girin." {
		t.Fatalf("messages=%+v", conv.Messages)
	}
	if h.providers[ModelGemini].RequestCount() != 0 {
		t.Fatal("provider called for blank input")
	}
}

func TestBlankFirstMessageKeepsTitle(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	h.reg.SendMessage(ctx, "   ")
	if got := h.active(t).Title; got != "Yeni Sohbet" {
		t.Fatalf("title=%q", got)
	}

	h.providers[ModelGemini].AddTextResponse("cevap")
	h.reg.SendMessage(ctx, "gerçek soru")
	if got := h.active(t).Title; got != "Yeni Sohbet" {
		t.Fatalf("title changed by a later message: %q", got)
	}
}

func TestContinueGenerationAppends(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	mock := h.providers[ModelGemini]
	mock.AddTextResponse("Tamam!").AddTextResponse("ek bilgi")

	h.reg.SendMessage(ctx, "soru")
	bot := h.active(t).Messages[1]
	if llm.ShouldOfferContinue(bot.Content) {
		t.Fatal("fixture should not look truncated")
	}

	if err := h.reg.ContinueGeneration(ctx, bot.ID); err != nil {
		t.Fatalf("ContinueGeneration: %v", err)
	}
	got := h.active(t).Messages[1]
	if got.Content != "Tamam!\n\nek bilgi" {
		t.Fatalf("content=%q", got.Content)
	}
	if s := h.reg.Snapshot(); s.Loading || s.IsGenerating {
		t.Fatal("flags not cleared")
	}
}

func TestContinueEarlierReplyKeepsHistoryInStep(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	mock := h.providers[ModelGemini]
	mock.AddTextResponse("first answer").AddTextResponse("second answer").
		AddTextResponse("more").AddTextResponse("third answer")

	h.reg.SendMessage(ctx, "q1")
	h.reg.SendMessage(ctx, "q2")
	first := h.active(t).Messages[1]

	if err := h.reg.ContinueGeneration(ctx, first.ID); err != nil {
		t.Fatalf("ContinueGeneration: %v", err)
	}
	conv := h.active(t)
	if conv.Messages[1].Content != "first answer\n\nmore" || conv.Messages[3].Content != "second answer" {
		t.Fatalf("messages=%+v", conv.Messages)
	}

	h.reg.SendMessage(ctx, "q3")
	req, _ := mock.LastRequest()
	want := []string{"q1", "first answer\n\nmore", "q2", "second answer", "q3"}
	if len(req.Turns) != len(want) {
		t.Fatalf("turns=%v", req.Turns)
	}
	for i, w := range want {
		if req.Turns[i].Content != w {
			t.Errorf("turn %d=%q, want %q", i, req.Turns[i].Content, w)
		}
	}
}

func TestContinueFailureLeavesMessage(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	h.providers[ModelGemini].AddTextResponse("cevap").AddError(errors.New("boom"))

	h.reg.SendMessage(ctx, "soru")
	bot := h.active(t).Messages[1]
	if err := h.reg.ContinueGeneration(ctx, bot.ID); err != nil {
		t.Fatalf("continuation failure should be soft: %v", err)
	}
	conv := h.active(t)
	if len(conv.Messages) != 2 || conv.Messages[1].Content != "cevap" {
		t.Fatalf("messages=%+v", conv.Messages)
	}
}

func TestContinueRejectsUserMessage(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	h.providers[ModelGemini].AddTextResponse("cevap")
	h.reg.SendMessage(ctx, "soru")
	user := h.active(t).Messages[0]
	if err := h.reg.ContinueGeneration(ctx, user.ID); !errors.Is(err, ErrMessageNotFound) {
		t.Fatalf("err=%v", err)
	}
}

func TestSetActiveModelForksNonEmptyChat(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	h.providers[ModelGemini].AddTextResponse("gemini cevabı")
	h.providers[ModelGrok].AddTextResponse("grok cevabı")

	original, _ := h.reg.SendMessage(ctx, "soru")

	switched, err := h.reg.SetActiveModel(ctx, ModelGrok)
	if err != nil || !switched {
		t.Fatalf("SetActiveModel = %v, %v", switched, err)
	}
	state := h.reg.Snapshot()
	if state.ActiveChat == original || len(state.Chats) != 2 {
		t.Fatalf("expected a new chat, state=%+v", state)
	}
	if !state.ModelSwitchCooldown || !state.ShowModelChangeNotice || state.ActiveModel != ModelGrok {
		t.Fatalf("state=%+v", state)
	}
	if len(state.Chats[original].Messages) != 2 {
		t.Fatal("original chat modified")
	}

	h.reg.SendMessage(ctx, "grok'a soru")
	req, _ := h.providers[ModelGrok].LastRequest()
	if len(req.Turns) != 1 {
		t.Fatalf("grok session saw other chat history: %v", req.Turns)
	}
}

func TestSetActiveModelEmptyChatNoFork(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	id := h.reg.CreateChat(ctx)

	if ok, _ := h.reg.SetActiveModel(ctx, ModelGrok); !ok {
		t.Fatal("switch refused")
	}
	if h.reg.ActiveChat() != id || len(h.reg.Snapshot().Chats) != 1 {
		t.Fatal("empty chat should not fork")
	}
}

func TestSetActiveModelCooldown(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	if ok, _ := h.reg.SetActiveModel(ctx, ModelGrok); !ok {
		t.Fatal("first switch refused")
	}
	if ok, _ := h.reg.SetActiveModel(ctx, ModelGemini); ok {
		t.Fatal("switch during cooldown accepted")
	}
	if h.reg.ActiveModel() != ModelGrok {
		t.Fatal("model changed during cooldown")
	}

	h.clock.Advance(DefaultCooldown)
	if h.reg.Snapshot().ModelSwitchCooldown {
		t.Fatal("cooldown still active after 3s")
	}
	if ok, _ := h.reg.SetActiveModel(ctx, ModelGemini); !ok {
		t.Fatal("switch after cooldown refused")
	}
	if ok, _ := h.reg.SetActiveModel(ctx, ModelGemini); ok {
		t.Fatal("switching to the current model should be a no-op")
	}
	if _, err := h.reg.SetActiveModel(ctx, Model("claude")); !errors.Is(err, ErrUnknownModel) {
		t.Fatalf("err=%v", err)
	}

	h.reg.HideModelChangeNotice()
	if h.reg.Snapshot().ShowModelChangeNotice {
		t.Fatal("notice not hidden")
	}
}

func TestDeleteActiveChat(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	a := h.reg.CreateChat(ctx)
	b := h.reg.CreateChat(ctx)

	h.reg.DeleteChat(ctx, b)
	state := h.reg.Snapshot()
	if _, ok := state.Chats[b]; ok {
		t.Fatal("chat still present")
	}
	if state.ActiveChat != "" {
		t.Fatalf("active=%q, want empty", state.ActiveChat)
	}
	persisted, active := h.store.snapshot()
	if _, ok := persisted[b]; ok || active != "" {
		t.Fatalf("persisted chats=%v active=%q", persisted, active)
	}
	if _, ok := persisted[a]; !ok {
		t.Fatal("other chat lost")
	}

	h.reg.DeleteChat(ctx, "unknown")
	if len(h.reg.Snapshot().Chats) != 1 {
		t.Fatal("deleting unknown id changed state")
	}
}

func TestDeleteInactiveChatKeepsActive(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	a := h.reg.CreateChat(ctx)
	b := h.reg.CreateChat(ctx)
	h.reg.DeleteChat(ctx, a)
	if h.reg.ActiveChat() != b {
		t.Fatalf("active=%q, want %q", h.reg.ActiveChat(), b)
	}
}

func TestSetActiveChat(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	a := h.reg.CreateChat(ctx)
	h.reg.CreateChat(ctx)

	if err := h.reg.SetActiveChat(ctx, a); err != nil {
		t.Fatal(err)
	}
	if _, active := h.store.snapshot(); active != a {
		t.Fatalf("persisted active=%q", active)
	}
	if err := h.reg.SetActiveChat(ctx, "missing"); !errors.Is(err, ErrChatNotFound) {
		t.Fatalf("err=%v", err)
	}
	if h.reg.ActiveChat() != a {
		t.Fatal("active changed on invalid id")
	}
}

func TestClearAllChats(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	h.providers[ModelGemini].AddTextResponse("x")
	h.reg.SendMessage(ctx, "soru")
	h.reg.CreateChat(ctx)

	h.reg.ClearAllChats(ctx)
	state := h.reg.Snapshot()
	if len(state.Chats) != 0 || state.ActiveChat != "" {
		t.Fatalf("state=%+v", state)
	}
	persisted, active := h.store.snapshot()
	if len(persisted) != 0 || active != "" {
		t.Fatal("storage not cleared")
	}
}

func TestClearMessagesResetsSessions(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	mock := h.providers[ModelGemini]
	mock.AddTextResponse("bir").AddTextResponse("iki")

	h.reg.SendMessage(ctx, "eski soru")
	if err := h.reg.ClearMessages(ctx); err != nil {
		t.Fatal(err)
	}
	if n := len(h.active(t).Messages); n != 0 {
		t.Fatalf("messages=%d", n)
	}

	h.reg.SendMessage(ctx, "yeni soru")
	req, _ := mock.LastRequest()
	if len(req.Turns) != 1 || req.Turns[0].Content != "yeni soru" {
		t.Fatalf("backend kept old history: %v", req.Turns)
	}
}

func TestRestoreSeedsSessions(t *testing.T) {
	store := &memPersister{
		chats: map[string]Conversation{
			"c1": {
				ID: "c1", Title: "eski", CreatedAt: 1, UpdatedAt: 2,
				Messages: []Message{
					{ID: "m1", Content: "eski soru", Role: RoleUser, Timestamp: 1},
					{ID: "m2", Content: "eski cevap", Role: RoleAssistant, Timestamp: 2},
					{ID: "m3", Content: "hata", Role: RoleAssistant, Timestamp: 3, Error: true},
				},
			},
		},
		active: "c1",
	}
	h := newHarness(t, store)
	h.providers[ModelGemini].AddTextResponse("yeni cevap")

	if h.reg.ActiveChat() != "c1" {
		t.Fatalf("active=%q", h.reg.ActiveChat())
	}
	h.reg.SendMessage(context.Background(), "yeni soru")
	req, _ := h.providers[ModelGemini].LastRequest()
	want := []string{"eski soru", "eski cevap", "yeni soru"}
	if len(req.Turns) != len(want) {
		t.Fatalf("turns=%v", req.Turns)
	}
	for i, w := range want {
		if req.Turns[i].Content != w {
			t.Errorf("turn %d=%q, want %q", i, req.Turns[i].Content, w)
		}
	}
}

func TestRestoreDropsDanglingActive(t *testing.T) {
	store := &memPersister{chats: map[string]Conversation{}, active: "gone"}
	h := newHarness(t, store)
	if h.reg.ActiveChat() != "" {
		t.Fatalf("active=%q, want empty", h.reg.ActiveChat())
	}
}

func TestConversationsFilterAndOrder(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	mock := h.providers[ModelGemini]
	mock.AddTextResponse("a").AddTextResponse("b").AddTextResponse("c")

	h.reg.CreateChat(ctx)
	h.reg.SendMessage(ctx, "Go dilinde kanallar")
	h.clock.Advance(time.Second)
	h.reg.CreateChat(ctx)
	h.reg.SendMessage(ctx, "Rust ownership")
	h.clock.Advance(time.Second)
	h.reg.CreateChat(ctx)
	h.reg.SendMessage(ctx, "go modülleri")

	all := h.reg.Conversations("")
	if len(all) != 3 || all[0].Title != "go modülleri" || all[2].Title != "Go dilinde kanallar" {
		t.Fatalf("order=%v", titles(all))
	}
	goChats := h.reg.Conversations("GO")
	if len(goChats) != 2 {
		t.Fatalf("filtered=%v", titles(goChats))
	}

	h.reg.SetSearchTerm("rust")
	if h.reg.Snapshot().SearchTerm != "rust" {
		t.Fatal("search term not stored")
	}
}

func titles(cs []Conversation) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Title
	}
	return out
}

func TestUpdatedAtNeverDecreases(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	h.providers[ModelGemini].AddTextResponse("x")
	id := h.reg.CreateChat(ctx)
	before, _ := h.reg.Conversation(id)

	h.clock.Advance(-time.Hour)
	h.reg.SendMessage(ctx, "geri giden saat")
	after, _ := h.reg.Conversation(id)
	if after.UpdatedAt < before.UpdatedAt {
		t.Fatalf("updatedAt went backwards: %d -> %d", before.UpdatedAt, after.UpdatedAt)
	}
}

func TestSubscribeReceivesSnapshots(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	var mu sync.Mutex
	var states []State
	unsubscribe := h.reg.Subscribe(func(s State) {
		mu.Lock()
		defer mu.Unlock()
		states = append(states, s)
	})

	id := h.reg.CreateChat(ctx)
	mu.Lock()
	n := len(states)
	mu.Unlock()
	if n == 0 {
		t.Fatal("observer not notified")
	}
	last := states[n-1]
	if last.ActiveChat != id {
		t.Fatalf("last state active=%q, want %q", last.ActiveChat, id)
	}

	// Snapshots are copies.
	last.Chats[id] = Conversation{Title: "mutated"}
	if c, _ := h.reg.Conversation(id); c.Title == "mutated" {
		t.Fatal("snapshot aliases registry state")
	}

	unsubscribe()
	h.reg.CreateChat(ctx)
	mu.Lock()
	defer mu.Unlock()
	if len(states) != n {
		t.Fatal("observer called after unsubscribe")
	}
}

func TestParseModel(t *testing.T) {
	known := []Model{ModelGemini, ModelGrok}
	if m, err := ParseModel("grok", known); err != nil || m != ModelGrok {
		t.Fatalf("ParseModel(grok)=%v, %v", m, err)
	}
	if _, err := ParseModel("gpt", known); !errors.Is(err, ErrUnknownModel) {
		t.Fatalf("err=%v", err)
	}
}
