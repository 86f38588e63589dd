package assistant_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/zhouzirui/nexus-social/backend/internal/config"
	"github.com/zhouzirui/nexus-social/backend/internal/model/chat"
	"github.com/zhouzirui/nexus-social/backend/internal/service/ai"
	"github.com/zhouzirui/nexus-social/backend/internal/service/assistant"
	chatservice "github.com/zhouzirui/nexus-social/backend/internal/service/chat"
)

const fallback = "temporarily unavailable"

var (
	alex  = chat.User{ID: "u1", Name: "Alex"}
	sarah = chat.User{ID: "u2", Name: "Sarah"}
	bot   = chat.User{ID: "u3", Name: "Gemini AI"}
)

type providerCall struct {
	history []chat.Utterance
	prompt  string
}

type fakeProvider struct {
	mu       sync.Mutex
	calls    []providerCall
	generate func(ctx context.Context, prompt string) (string, error)
}

func (p *fakeProvider) Generate(ctx context.Context, history []chat.Utterance, prompt string) (string, error) {
	p.mu.Lock()
	p.calls = append(p.calls, providerCall{history: history, prompt: prompt})
	p.mu.Unlock()
	return p.generate(ctx, prompt)
}

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func reply(text string) func(context.Context, string) (string, error) {
	return func(context.Context, string) (string, error) { return text, nil }
}

func newFixture(t *testing.T, provider ai.Provider, timeout time.Duration) (*chatservice.Service, *assistant.Orchestrator) {
	t.Helper()

	store, err := chatservice.NewService([]chat.Session{
		{ID: "a", Participants: []chat.User{alex, bot}},
		{ID: "b", Participants: []chat.User{alex, bot}},
		{ID: "h", Participants: []chat.User{alex, sarah}},
	})
	if err != nil {
		t.Fatalf("NewService err: %v", err)
	}

	cfg := config.ChatConfig{
		AssistantID:   bot.ID,
		ContextWindow: 5,
		ReplyTimeout:  timeout,
		FallbackText:  fallback,
	}
	resolver := chatservice.NewResolver(cfg.AssistantID, cfg.ContextWindow)
	return store, assistant.NewOrchestrator(store, resolver, provider, cfg, nil)
}

func transcript(t *testing.T, store *chatservice.Service, sessionID string) []chat.Message {
	t.Helper()
	messages, err := store.LoadTranscript(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("LoadTranscript err: %v", err)
	}
	return messages
}

func assertExchange(t *testing.T, store *chatservice.Service, sessionID, prompt, answer string) {
	t.Helper()

	session, err := store.GetSession(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("GetSession err: %v", err)
	}
	if session.Pending {
		t.Fatal("expected typing flag to be cleared")
	}
	if len(session.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %+v", session.Messages)
	}
	if m := session.Messages[0]; m.SenderID != alex.ID || m.Content != prompt {
		t.Fatalf("unexpected user message %+v", m)
	}
	if m := session.Messages[1]; m.SenderID != bot.ID || m.Content != answer {
		t.Fatalf("unexpected assistant message %+v", m)
	}
	if session.LastMessage == nil || session.LastMessage.Content != answer {
		t.Fatalf("unexpected last message %+v", session.LastMessage)
	}
}

func TestSendMessageAppendsAssistantReply(t *testing.T) {
	provider := &fakeProvider{generate: reply("hello there")}
	store, orchestrator := newFixture(t, provider, time.Second)

	msg, err := orchestrator.SendMessage(context.Background(), "a", alex.ID, "hi")
	if err != nil {
		t.Fatalf("SendMessage err: %v", err)
	}
	if msg.Content != "hi" || msg.SenderID != alex.ID {
		t.Fatalf("unexpected stored message %+v", msg)
	}

	orchestrator.Wait()

	assertExchange(t, store, "a", "hi", "hello there")

	if provider.callCount() != 1 {
		t.Fatalf("expected one provider call, got %d", provider.callCount())
	}
	call := provider.calls[0]
	if call.prompt != "hi" {
		t.Fatalf("unexpected prompt %q", call.prompt)
	}
	if len(call.history) != 1 || call.history[0].Role != chat.RoleUser || call.history[0].Content != "hi" {
		t.Fatalf("expected history to include the new message, got %+v", call.history)
	}
}

func TestSendMessageUsesFallbackOnProviderError(t *testing.T) {
	provider := &fakeProvider{generate: func(context.Context, string) (string, error) {
		return "", &ai.ProviderError{Op: "invoke", Err: errors.New("unauthorized")}
	}}
	store, orchestrator := newFixture(t, provider, time.Second)

	if _, err := orchestrator.SendMessage(context.Background(), "a", alex.ID, "hi"); err != nil {
		t.Fatalf("SendMessage err: %v", err)
	}
	orchestrator.Wait()

	assertExchange(t, store, "a", "hi", fallback)
}

func TestSendMessageHumanThreadSkipsProvider(t *testing.T) {
	provider := &fakeProvider{generate: reply("should not happen")}
	store, orchestrator := newFixture(t, provider, time.Second)

	events, cancel := store.Subscribe(8)
	defer cancel()

	if _, err := orchestrator.SendMessage(context.Background(), "h", alex.ID, "lunch?"); err != nil {
		t.Fatalf("SendMessage err: %v", err)
	}
	orchestrator.Wait()

	if provider.callCount() != 0 {
		t.Fatalf("expected no provider call, got %d", provider.callCount())
	}

	messages := transcript(t, store, "h")
	if len(messages) != 1 || messages[0].Content != "lunch?" {
		t.Fatalf("unexpected transcript %+v", messages)
	}

	ev := <-events
	if ev.Type != chat.EventMessageAppended {
		t.Fatalf("unexpected event %s", ev.Type)
	}
	select {
	case ev := <-events:
		t.Fatalf("unexpected extra event %+v", ev)
	default:
	}
}

func TestConcurrentSessionsDoNotCrossContaminate(t *testing.T) {
	gates := map[string]chan struct{}{
		"for a": make(chan struct{}),
		"for b": make(chan struct{}),
	}
	provider := &fakeProvider{generate: func(_ context.Context, prompt string) (string, error) {
		<-gates[prompt]
		return "reply " + prompt, nil
	}}
	store, orchestrator := newFixture(t, provider, 5*time.Second)
	ctx := context.Background()

	if _, err := orchestrator.SendMessage(ctx, "a", alex.ID, "for a"); err != nil {
		t.Fatalf("SendMessage a err: %v", err)
	}
	if _, err := orchestrator.SendMessage(ctx, "b", alex.ID, "for b"); err != nil {
		t.Fatalf("SendMessage b err: %v", err)
	}

	// b resolves first although a was sent first.
	close(gates["for b"])
	deadline := time.Now().Add(2 * time.Second)
	for {
		session, _ := store.GetSession(ctx, "b")
		if !session.Pending {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for reply in b")
		}
		time.Sleep(5 * time.Millisecond)
	}
	close(gates["for a"])
	orchestrator.Wait()

	assertExchange(t, store, "a", "for a", "reply for a")
	assertExchange(t, store, "b", "for b", "reply for b")
}

func TestSendMessageRejectsWhileReplyPending(t *testing.T) {
	gate := make(chan struct{})
	provider := &fakeProvider{generate: func(context.Context, string) (string, error) {
		<-gate
		return "hello there", nil
	}}
	store, orchestrator := newFixture(t, provider, 5*time.Second)
	ctx := context.Background()

	if _, err := orchestrator.SendMessage(ctx, "a", alex.ID, "hi"); err != nil {
		t.Fatalf("SendMessage err: %v", err)
	}

	_, err := orchestrator.SendMessage(ctx, "a", alex.ID, "are you there?")
	if !errors.Is(err, chatservice.ErrRequestInFlight) {
		t.Fatalf("expected ErrRequestInFlight, got %v", err)
	}
	if n := len(transcript(t, store, "a")); n != 1 {
		t.Fatalf("rejected send must not append, got %d messages", n)
	}

	close(gate)
	orchestrator.Wait()

	assertExchange(t, store, "a", "hi", "hello there")
}

func TestReplyTimeoutFallsBack(t *testing.T) {
	gate := make(chan struct{})
	t.Cleanup(func() { close(gate) })

	// Ignores ctx to prove the timeout does not depend on provider cooperation.
	provider := &fakeProvider{generate: func(context.Context, string) (string, error) {
		<-gate
		return "too late", nil
	}}
	store, orchestrator := newFixture(t, provider, 20*time.Millisecond)

	if _, err := orchestrator.SendMessage(context.Background(), "a", alex.ID, "hi"); err != nil {
		t.Fatalf("SendMessage err: %v", err)
	}
	orchestrator.Wait()

	assertExchange(t, store, "a", "hi", fallback)
}

func TestProviderPanicFallsBack(t *testing.T) {
	provider := &fakeProvider{generate: func(context.Context, string) (string, error) {
		panic("boom")
	}}
	store, orchestrator := newFixture(t, provider, time.Second)

	if _, err := orchestrator.SendMessage(context.Background(), "a", alex.ID, "hi"); err != nil {
		t.Fatalf("SendMessage err: %v", err)
	}
	orchestrator.Wait()

	assertExchange(t, store, "a", "hi", fallback)
}

func TestEmptyProviderReplyFallsBack(t *testing.T) {
	provider := &fakeProvider{generate: reply("  ")}
	store, orchestrator := newFixture(t, provider, time.Second)

	if _, err := orchestrator.SendMessage(context.Background(), "a", alex.ID, "hi"); err != nil {
		t.Fatalf("SendMessage err: %v", err)
	}
	orchestrator.Wait()

	assertExchange(t, store, "a", "hi", fallback)
}

func TestReplySurvivesCanceledRequest(t *testing.T) {
	provider := &fakeProvider{generate: func(ctx context.Context, _ string) (string, error) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		return "hello there", nil
	}}
	store, orchestrator := newFixture(t, provider, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	if _, err := orchestrator.SendMessage(ctx, "a", alex.ID, "hi"); err != nil {
		t.Fatalf("SendMessage err: %v", err)
	}
	cancel()
	orchestrator.Wait()

	assertExchange(t, store, "a", "hi", "hello there")
}

func TestSendMessageTypingEvents(t *testing.T) {
	provider := &fakeProvider{generate: reply("hello there")}
	store, orchestrator := newFixture(t, provider, time.Second)

	events, cancel := store.Subscribe(8)
	defer cancel()

	if _, err := orchestrator.SendMessage(context.Background(), "a", alex.ID, "hi"); err != nil {
		t.Fatalf("SendMessage err: %v", err)
	}
	orchestrator.Wait()

	want := []struct {
		typ     chat.EventType
		pending bool
	}{
		{chat.EventTypingChanged, true},
		{chat.EventMessageAppended, false},
		{chat.EventMessageAppended, false},
		{chat.EventTypingChanged, false},
	}
	for i, w := range want {
		select {
		case ev := <-events:
			if ev.Type != w.typ || ev.Pending != w.pending {
				t.Fatalf("event %d: got %s/%v want %s/%v", i, ev.Type, ev.Pending, w.typ, w.pending)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for event %d", i)
		}
	}
}

func TestSendMessageValidation(t *testing.T) {
	provider := &fakeProvider{generate: reply("hello there")}
	store, orchestrator := newFixture(t, provider, time.Second)
	ctx := context.Background()

	if _, err := orchestrator.SendMessage(ctx, "a", alex.ID, "   "); !errors.Is(err, chatservice.ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
	if _, err := orchestrator.SendMessage(ctx, "missing", alex.ID, "hi"); !errors.Is(err, chatservice.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if _, err := orchestrator.SendMessage(ctx, "missing", alex.ID, ""); !errors.Is(err, chatservice.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound for blank send, got %v", err)
	}
	if _, err := orchestrator.SendMessage(ctx, "a", sarah.ID, "hi"); !errors.Is(err, chatservice.ErrInvalidParticipant) {
		t.Fatalf("expected ErrInvalidParticipant, got %v", err)
	}
	orchestrator.Wait()

	session, _ := store.GetSession(ctx, "a")
	if session.Pending || len(session.Messages) != 0 {
		t.Fatalf("failed sends must leave the session idle and empty: %+v", session)
	}
	if provider.callCount() != 0 {
		t.Fatalf("expected no provider call, got %d", provider.callCount())
	}
}

func assertNoEvent(t *testing.T, events <-chan chat.Event) {
	t.Helper()
	select {
	case ev := <-events:
		t.Fatalf("unexpected event %s pending=%v", ev.Type, ev.Pending)
	default:
	}
}

func TestNonParticipantSendIsRejectedWithoutTyping(t *testing.T) {
	gate := make(chan struct{})
	provider := &fakeProvider{generate: func(context.Context, string) (string, error) {
		<-gate
		return "hello there", nil
	}}
	store, orchestrator := newFixture(t, provider, 5*time.Second)
	ctx := context.Background()

	events, cancel := store.Subscribe(16)
	defer cancel()

	// Idle thread.
	if _, err := orchestrator.SendMessage(ctx, "a", sarah.ID, "hi"); !errors.Is(err, chatservice.ErrInvalidParticipant) {
		t.Fatalf("expected ErrInvalidParticipant, got %v", err)
	}
	assertNoEvent(t, events)

	// Reply pending.
	if _, err := orchestrator.SendMessage(ctx, "a", alex.ID, "hi"); err != nil {
		t.Fatalf("SendMessage err: %v", err)
	}
	for _, want := range []chat.EventType{chat.EventTypingChanged, chat.EventMessageAppended} {
		if ev := <-events; ev.Type != want {
			t.Fatalf("expected %s, got %s", want, ev.Type)
		}
	}

	if _, err := orchestrator.SendMessage(ctx, "a", sarah.ID, "x"); !errors.Is(err, chatservice.ErrInvalidParticipant) {
		t.Fatalf("expected ErrInvalidParticipant while pending, got %v", err)
	}
	assertNoEvent(t, events)

	close(gate)
	orchestrator.Wait()

	assertExchange(t, store, "a", "hi", "hello there")
	if provider.callCount() != 1 {
		t.Fatalf("expected one provider call, got %d", provider.callCount())
	}
}

func TestAssistantSenderDoesNotTriggerReply(t *testing.T) {
	provider := &fakeProvider{generate: reply("echo")}
	store, orchestrator := newFixture(t, provider, time.Second)

	if _, err := orchestrator.SendMessage(context.Background(), "a", bot.ID, "Hello Alex!"); err != nil {
		t.Fatalf("SendMessage err: %v", err)
	}
	orchestrator.Wait()

	if provider.callCount() != 0 {
		t.Fatalf("expected no provider call, got %d", provider.callCount())
	}
	if n := len(transcript(t, store, "a")); n != 1 {
		t.Fatalf("expected 1 message, got %d", n)
	}
}

func TestRequestReply(t *testing.T) {
	provider := &fakeProvider{generate: reply("hello there")}
	store, orchestrator := newFixture(t, provider, time.Second)
	ctx := context.Background()

	msg, err := store.Append(ctx, "a", chat.Message{SenderID: alex.ID, Content: "hi"})
	if err != nil {
		t.Fatalf("Append err: %v", err)
	}
	if err := orchestrator.RequestReply(ctx, "a", msg); err != nil {
		t.Fatalf("RequestReply err: %v", err)
	}
	orchestrator.Wait()

	assertExchange(t, store, "a", "hi", "hello there")

	if err := orchestrator.RequestReply(ctx, "h", msg); !errors.Is(err, assistant.ErrNotAutomated) {
		t.Fatalf("expected ErrNotAutomated, got %v", err)
	}
}

func TestShutdownHonorsContext(t *testing.T) {
	gate := make(chan struct{})
	provider := &fakeProvider{generate: func(context.Context, string) (string, error) {
		<-gate
		return "hello there", nil
	}}
	_, orchestrator := newFixture(t, provider, 5*time.Second)

	if _, err := orchestrator.SendMessage(context.Background(), "a", alex.ID, "hi"); err != nil {
		t.Fatalf("SendMessage err: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := orchestrator.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	close(gate)
	if err := orchestrator.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown err: %v", err)
	}
}
