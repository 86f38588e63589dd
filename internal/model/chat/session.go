package chat

// Session captures a conversation thread between two or more participants.
// LastMessage always mirrors the final element of Messages.
type Session struct {
	ID           string    `json:"id"`
	Participants []User    `json:"participants"`
	Messages     []Message `json:"messages"`
	LastMessage  *Message  `json:"lastMessage,omitempty"`
	IsGroup      bool      `json:"isGroup,omitempty"`
	Name         string    `json:"name,omitempty"`
	// Pending is set while an assistant reply is being generated.
	Pending bool `json:"pending"`
}

// HasParticipant reports whether userID is a member of the session.
func (s Session) HasParticipant(userID string) bool {
	for _, p := range s.Participants {
		if p.ID == userID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers can read without sharing slices with the store.
func (s Session) Clone() Session {
	out := s
	out.Participants = append([]User(nil), s.Participants...)
	out.Messages = append([]Message(nil), s.Messages...)
	if s.LastMessage != nil {
		last := *s.LastMessage
		out.LastMessage = &last
	}
	return out
}
