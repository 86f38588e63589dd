package ai

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/zhouzirui/nexus-social/backend/internal/config"
	"github.com/zhouzirui/nexus-social/backend/internal/model/chat"
)

// Service is the generation provider backed by an eino chat chain.
// Without a chat model it runs in offline mode and never touches the network.
type Service struct {
	cfg    config.AIConfig
	system string
	chain  compose.Runnable[map[string]any, *schema.Message]
}

// NewService creates the provider from configuration. Missing credentials are
// not an error: the returned service is permanently offline.
func NewService(ctx context.Context, cfg config.AIConfig, assistant chat.User) (*Service, error) {
	if !cfg.Enabled() {
		return NewOfflineService(cfg, assistant), nil
	}

	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	return NewServiceWithModel(ctx, chatModel, cfg, assistant)
}

// NewServiceWithModel compiles the prompt chain around an existing chat model.
func NewServiceWithModel(ctx context.Context, chatModel model.BaseChatModel, cfg config.AIConfig, assistant chat.User) (*Service, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Service{
		cfg:    withDefaultTexts(cfg),
		system: BuildSystemPrompt(DefaultPromptTemplate(), assistant),
		chain:  runnable,
	}, nil
}

// NewOfflineService returns a provider that always answers with the offline text.
func NewOfflineService(cfg config.AIConfig, assistant chat.User) *Service {
	return &Service{
		cfg:    withDefaultTexts(cfg),
		system: BuildSystemPrompt(DefaultPromptTemplate(), assistant),
	}
}

func withDefaultTexts(cfg config.AIConfig) config.AIConfig {
	if strings.TrimSpace(cfg.OfflineText) == "" {
		cfg.OfflineText = config.DefaultOfflineText
	}
	if strings.TrimSpace(cfg.EmptyReplyText) == "" {
		cfg.EmptyReplyText = config.DefaultEmptyReplyText
	}
	return cfg
}

// Available reports whether a chat model is configured.
func (s *Service) Available() bool {
	return s != nil && s.chain != nil
}

// Generate produces the assistant reply for prompt given the recent history.
func (s *Service) Generate(ctx context.Context, history []chat.Utterance, prompt string) (string, error) {
	if !s.Available() {
		return s.cfg.OfflineText, nil
	}

	input := s.buildChainInput(history, prompt)

	response, err := s.chain.Invoke(ctx, input)
	if err != nil {
		return "", &ProviderError{Op: "invoke", Err: err}
	}

	var content string
	if response != nil {
		content = strings.TrimSpace(response.Content)
	}
	if content == "" {
		log.Printf("[ai] model returned empty content, history=%d", len(history))
		return s.cfg.EmptyReplyText, nil
	}

	log.Printf("[ai] generated reply, history=%d, length=%d", len(history), len(content))
	return content, nil
}

func (s *Service) buildChainInput(history []chat.Utterance, prompt string) map[string]any {
	return map[string]any{
		"system":  s.system,
		"history": buildHistoryMessages(history, prompt),
		"query":   prompt,
	}
}

// buildHistoryMessages converts utterances to schema messages. A trailing user
// utterance equal to the prompt is dropped so the model sees the latest turn once.
func buildHistoryMessages(history []chat.Utterance, prompt string) []*schema.Message {
	if n := len(history); n > 0 {
		last := history[n-1]
		if last.Role == chat.RoleUser && last.Content == prompt {
			history = history[:n-1]
		}
	}
	if len(history) == 0 {
		return nil
	}

	messages := make([]*schema.Message, 0, len(history))
	for _, u := range history {
		switch u.Role {
		case chat.RoleAssistant:
			messages = append(messages, schema.AssistantMessage(u.Content, nil))
		default:
			messages = append(messages, schema.UserMessage(u.Content))
		}
	}
	return messages
}
