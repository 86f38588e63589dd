package ai

import (
	"fmt"
	"strings"

	"github.com/zhouzirui/nexus-social/backend/internal/model/chat"
)

// PromptTemplate defines the structure of the assistant's system prompt
type PromptTemplate struct {
	SystemPrompt     string
	PersonalityHints []string
	ContextRules     []string
}

// DefaultPromptTemplate returns the built-in Nexus Social assistant template
func DefaultPromptTemplate() PromptTemplate {
	return PromptTemplate{
		SystemPrompt: "You are a helpful AI assistant in a social media app called Nexus Social. Keep responses concise and friendly.",
		PersonalityHints: []string{
			"Warm and upbeat, like a friend replying in a DM",
			"Curious about what the user shares without prying",
		},
		ContextRules: []string{
			"Answer in a few short sentences unless asked for detail",
			"Use the recent chat history for context; do not repeat it back",
			"Never claim to see images, videos or audio the user has not described",
		},
	}
}

// BuildSystemPrompt renders the template for the assistant identity
func BuildSystemPrompt(tpl PromptTemplate, assistant chat.User) string {
	if strings.TrimSpace(assistant.Name) == "" {
		return tpl.SystemPrompt
	}

	bio := strings.TrimSpace(assistant.Bio)
	if bio == "" {
		bio = "AI Assistant"
	}

	return fmt.Sprintf(`%s

Identity:
- Name: %s
- Profile: %s

Personality:
- %s

Conversation rules:
- %s`,
		tpl.SystemPrompt,
		assistant.Name,
		bio,
		strings.Join(tpl.PersonalityHints, "\n- "),
		strings.Join(tpl.ContextRules, "\n- "),
	)
}
