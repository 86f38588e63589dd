package chat

import "github.com/zhouzirui/nexus-social/backend/internal/model/chat"

// DefaultWindowSize bounds how many recent messages are sent as context.
const DefaultWindowSize = 5

// Resolver decides which threads involve the assistant and shapes their
// history into role-tagged context.
type Resolver struct {
	assistantID string
	windowSize  int
}

// NewResolver returns a resolver for the reserved assistant id.
// A non-positive windowSize falls back to DefaultWindowSize.
func NewResolver(assistantID string, windowSize int) *Resolver {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	return &Resolver{assistantID: assistantID, windowSize: windowSize}
}

// AssistantID returns the reserved participant id.
func (r *Resolver) AssistantID() string {
	return r.assistantID
}

// WindowSize returns the configured context bound.
func (r *Resolver) WindowSize() int {
	return r.windowSize
}

// IsAutomatedThread reports whether the assistant is a member of the session.
func (r *Resolver) IsAutomatedThread(session chat.Session) bool {
	return r.assistantID != "" && session.HasParticipant(r.assistantID)
}

// BuildContext maps the most recent windowSize messages to utterances,
// oldest first. A non-positive windowSize uses the resolver's own bound.
func (r *Resolver) BuildContext(session chat.Session, windowSize int) []chat.Utterance {
	if windowSize <= 0 {
		windowSize = r.windowSize
	}

	messages := session.Messages
	if len(messages) == 0 {
		return nil
	}

	startIdx := 0
	if len(messages) > windowSize {
		startIdx = len(messages) - windowSize
	}

	history := make([]chat.Utterance, 0, len(messages)-startIdx)
	for _, msg := range messages[startIdx:] {
		role := chat.RoleUser
		if msg.SenderID == r.assistantID {
			role = chat.RoleAssistant
		}
		history = append(history, chat.Utterance{Role: role, Content: msg.Content})
	}
	return history
}
