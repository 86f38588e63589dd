package chat

// Role tags an utterance for the generation provider.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Utterance is one role-tagged line of conversational context.
type Utterance struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
