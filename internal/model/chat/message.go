package chat

// MessageKind 标识消息的媒体类型。核心流程只产生文本消息。
type MessageKind string

const (
	KindText  MessageKind = "text"
	KindImage MessageKind = "image"
	KindVideo MessageKind = "video"
	KindAudio MessageKind = "audio"
)

// Message is a single immutable turn inside a session.
// Timestamp is milliseconds since the Unix epoch.
type Message struct {
	ID        string      `json:"id"`
	SenderID  string      `json:"senderId"`
	Content   string      `json:"content"`
	Kind      MessageKind `json:"type"`
	Timestamp int64       `json:"timestamp"`
	Read      bool        `json:"read,omitempty"`
	MediaURL  string      `json:"mediaUrl,omitempty"`
}
