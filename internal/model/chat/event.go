package chat

// EventType names a session change pushed to observers.
type EventType string

const (
	EventMessageAppended EventType = "message.appended"
	EventTypingChanged   EventType = "typing.changed"
)

// Event notifies observers that a session changed. Message is set for
// EventMessageAppended, Pending for EventTypingChanged.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"sessionId"`
	Message   *Message  `json:"message,omitempty"`
	Pending   bool      `json:"pending"`
}
