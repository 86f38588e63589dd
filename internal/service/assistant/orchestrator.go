// Package assistant drives automated replies in threads the assistant takes part in.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/zhouzirui/nexus-social/backend/internal/config"
	"github.com/zhouzirui/nexus-social/backend/internal/model/chat"
	"github.com/zhouzirui/nexus-social/backend/internal/service/ai"
	chatservice "github.com/zhouzirui/nexus-social/backend/internal/service/chat"
)

// ErrNotAutomated is returned by RequestReply for threads without the assistant.
var ErrNotAutomated = errors.New("session is not an automated thread")

// Store is the part of the session store the orchestrator depends on.
type Store interface {
	GetSession(ctx context.Context, sessionID string) (chat.Session, error)
	Append(ctx context.Context, sessionID string, message chat.Message) (chat.Message, error)
	BeginReply(ctx context.Context, sessionID string) error
	EndReply(ctx context.Context, sessionID string) error
}

// Orchestrator appends user messages and, for automated threads, schedules
// the assistant reply. At most one reply is pending per session.
type Orchestrator struct {
	store    Store
	resolver *chatservice.Resolver
	provider ai.Provider
	cfg      config.ChatConfig
	logger   *slog.Logger

	wg sync.WaitGroup
}

// NewOrchestrator wires the orchestrator. Zero config values fall back to defaults.
func NewOrchestrator(store Store, resolver *chatservice.Resolver, provider ai.Provider, cfg config.ChatConfig, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ReplyTimeout <= 0 {
		cfg.ReplyTimeout = config.DefaultReplyTimeout
	}
	if cfg.ContextWindow <= 0 {
		cfg.ContextWindow = resolver.WindowSize()
	}
	if strings.TrimSpace(cfg.FallbackText) == "" {
		cfg.FallbackText = config.DefaultFallbackText
	}

	return &Orchestrator{
		store:    store,
		resolver: resolver,
		provider: provider,
		cfg:      cfg,
		logger:   logger.With("component", "assistant"),
	}
}

// SendMessage appends a message from senderID. In an automated thread a user
// message also schedules the assistant reply; the call returns once the user
// message is stored, without waiting for the reply.
func (o *Orchestrator) SendMessage(ctx context.Context, sessionID, senderID, content string) (chat.Message, error) {
	session, err := o.store.GetSession(ctx, sessionID)
	if err != nil {
		return chat.Message{}, err
	}
	if strings.TrimSpace(content) == "" {
		return chat.Message{}, chatservice.ErrEmptyMessage
	}

	// Membership before the pending flag: a misrouted send must not toggle typing.
	if !session.HasParticipant(senderID) {
		return chat.Message{}, fmt.Errorf("%w: %s in %s", chatservice.ErrInvalidParticipant, senderID, sessionID)
	}

	message := chat.Message{SenderID: senderID, Content: content, Kind: chat.KindText}

	if !o.resolver.IsAutomatedThread(session) || senderID == o.resolver.AssistantID() {
		return o.store.Append(ctx, sessionID, message)
	}

	// Reject before appending so a rejected send leaves the thread untouched.
	if err := o.store.BeginReply(ctx, sessionID); err != nil {
		return chat.Message{}, err
	}

	stored, err := o.store.Append(ctx, sessionID, message)
	if err != nil {
		if endErr := o.store.EndReply(ctx, sessionID); endErr != nil {
			o.logger.Error("failed to clear pending flag", "session_id", sessionID, "error", endErr)
		}
		return chat.Message{}, err
	}

	o.dispatch(ctx, sessionID, stored)
	return stored, nil
}

// RequestReply schedules an assistant reply to a message already in the session.
func (o *Orchestrator) RequestReply(ctx context.Context, sessionID string, userMessage chat.Message) error {
	session, err := o.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if !o.resolver.IsAutomatedThread(session) {
		return fmt.Errorf("%w: %s", ErrNotAutomated, sessionID)
	}

	if err := o.store.BeginReply(ctx, sessionID); err != nil {
		return err
	}

	o.dispatch(ctx, sessionID, userMessage)
	return nil
}

// Wait blocks until every scheduled reply has landed.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Shutdown waits for scheduled replies or until ctx is done.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) dispatch(ctx context.Context, sessionID string, trigger chat.Message) {
	// The reply outlives the request that triggered it.
	replyCtx := context.WithoutCancel(ctx)

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.reply(replyCtx, sessionID, trigger)
	}()
}

func (o *Orchestrator) reply(ctx context.Context, sessionID string, trigger chat.Message) {
	defer func() {
		if err := o.store.EndReply(ctx, sessionID); err != nil {
			o.logger.Error("failed to clear pending flag", "session_id", sessionID, "error", err)
		}
	}()

	started := time.Now()
	text, err := o.generate(ctx, sessionID, trigger)
	if err != nil {
		o.logger.Warn("assistant reply failed, using fallback text",
			"session_id", sessionID,
			"error", err,
			"elapsed", time.Since(started),
		)
		text = o.cfg.FallbackText
	}

	stored, err := o.store.Append(ctx, sessionID, chat.Message{
		SenderID: o.resolver.AssistantID(),
		Content:  text,
		Kind:     chat.KindText,
	})
	if err != nil {
		o.logger.Error("failed to append assistant reply", "session_id", sessionID, "error", err)
		return
	}

	o.logger.Info("assistant reply appended",
		"session_id", sessionID,
		"message_id", stored.ID,
		"elapsed", time.Since(started),
	)
}

type generation struct {
	text string
	err  error
}

// generate re-reads the session by id, so the context reflects the thread as
// it is now, and calls the provider under the reply timeout.
func (o *Orchestrator) generate(ctx context.Context, sessionID string, trigger chat.Message) (string, error) {
	session, err := o.store.GetSession(ctx, sessionID)
	if err != nil {
		return "", err
	}
	history := o.resolver.BuildContext(session, o.cfg.ContextWindow)

	ctx, cancel := context.WithTimeout(ctx, o.cfg.ReplyTimeout)
	defer cancel()

	done := make(chan generation, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- generation{err: &ai.ProviderError{Op: "generate", Err: fmt.Errorf("panic: %v", r)}}
			}
		}()
		text, err := o.provider.Generate(ctx, history, trigger.Content)
		done <- generation{text: text, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return "", res.err
		}
		if strings.TrimSpace(res.text) == "" {
			return "", &ai.ProviderError{Op: "generate", Err: errors.New("empty reply")}
		}
		return res.text, nil
	case <-ctx.Done():
		return "", &ai.ProviderError{Op: "generate", Err: ctx.Err()}
	}
}
