// Package app assembles the chat core shared by the HTTP server and the console tool.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/zhouzirui/nexus-social/backend/internal/config"
	"github.com/zhouzirui/nexus-social/backend/internal/model/catalog"
	"github.com/zhouzirui/nexus-social/backend/internal/model/chat"
	"github.com/zhouzirui/nexus-social/backend/internal/service/ai"
	"github.com/zhouzirui/nexus-social/backend/internal/service/assistant"
	chatservice "github.com/zhouzirui/nexus-social/backend/internal/service/chat"
)

// Core holds the wired services. Everything is built once at startup.
type Core struct {
	Catalog      catalog.Store
	Chat         *chatservice.Service
	Resolver     *chatservice.Resolver
	Provider     *ai.Service
	Orchestrator *assistant.Orchestrator
}

// NewCore loads the catalog, seeds the store and connects the provider.
// A provider that fails to initialize degrades to offline mode.
func NewCore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Core, error) {
	if logger == nil {
		logger = slog.Default()
	}

	data, err := catalog.Load(cfg.Catalog.Path, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	store := catalog.NewMemoryStore(data)

	sessions, err := data.Sessions()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve seed chats: %w", err)
	}
	chatSvc, err := chatservice.NewService(sessions)
	if err != nil {
		return nil, fmt.Errorf("failed to seed chat store: %w", err)
	}

	assistantUser, ok := store.FindUser(cfg.Chat.AssistantID)
	if !ok {
		logger.Warn("assistant user missing from catalog", "assistant_id", cfg.Chat.AssistantID)
		assistantUser = chat.User{ID: cfg.Chat.AssistantID}
	}

	provider, err := ai.NewService(ctx, cfg.AI, assistantUser)
	if err != nil {
		logger.Warn("failed to initialize AI provider, running offline", "error", err)
		provider = ai.NewOfflineService(cfg.AI, assistantUser)
	}
	if provider.Available() {
		logger.Info("AI provider ready", "model", cfg.AI.Model)
	} else {
		logger.Info("AI provider offline, replies use the offline text")
	}

	resolver := chatservice.NewResolver(cfg.Chat.AssistantID, cfg.Chat.ContextWindow)

	return &Core{
		Catalog:      store,
		Chat:         chatSvc,
		Resolver:     resolver,
		Provider:     provider,
		Orchestrator: assistant.NewOrchestrator(chatSvc, resolver, provider, cfg.Chat, logger),
	}, nil
}
