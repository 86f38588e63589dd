package stream

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/nexus-social/backend/internal/model/chat"
	"github.com/zhouzirui/nexus-social/backend/pkg/utils"
)

// DefaultHeartbeat is the interval between keep-alive events.
const DefaultHeartbeat = 15 * time.Second

// Source is the part of the session store the stream reads from.
type Source interface {
	GetSession(ctx context.Context, sessionID string) (chat.Session, error)
	Subscribe(buffer int) (<-chan chat.Event, func())
}

// Handler pushes session events to browsers via Server-Sent Events
type Handler struct {
	chatSvc   Source
	buffer    int
	heartbeat time.Duration
}

// New creates a new stream handler
func New(chatSvc Source, buffer int, heartbeat time.Duration) *Handler {
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}
	return &Handler{
		chatSvc:   chatSvc,
		buffer:    buffer,
		heartbeat: heartbeat,
	}
}

// StreamEvent is the payload of every SSE event
type StreamEvent struct {
	SessionID string        `json:"sessionId,omitempty"`
	Session   *chat.Session `json:"session,omitempty"`
	Message   *chat.Message `json:"message,omitempty"`
	Pending   *bool         `json:"pending,omitempty"`
	Time      string        `json:"time,omitempty"`
}

// RegisterRoutes 注册事件流路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/events", h.handleEvents)
}

// handleEvents streams store events, optionally filtered to one session.
// A session filter starts the stream with a snapshot of that session.
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	ctx := r.Context()
	sessionID := r.URL.Query().Get("sessionId")

	// Subscribe before the snapshot so nothing lands between the two.
	events, cancel := h.chatSvc.Subscribe(h.buffer)
	defer cancel()

	var snapshot *chat.Session
	if sessionID != "" {
		session, err := h.chatSvc.GetSession(ctx, sessionID)
		if err != nil {
			utils.RespondError(w, http.StatusNotFound, "session not found")
			return
		}
		snapshot = &session
	}

	utils.SetupSSEHeaders(w)
	log.Printf("[stream] opening event stream session=%q", sessionID)

	if snapshot != nil {
		utils.SendSSEEvent(w, flusher, "session", StreamEvent{SessionID: sessionID, Session: snapshot})
	} else {
		utils.SendSSEEvent(w, flusher, "status", map[string]string{"message": "stream established"})
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[stream] closing event stream session=%q", sessionID)
			return
		case t := <-ticker.C:
			utils.SendSSEEvent(w, flusher, "heartbeat", StreamEvent{Time: t.UTC().Format(time.RFC3339)})
		case ev, ok := <-events:
			if !ok {
				return
			}
			if sessionID != "" && ev.SessionID != sessionID {
				continue
			}
			name, payload := toStreamEvent(ev)
			utils.SendSSEEvent(w, flusher, name, payload)
		}
	}
}

func toStreamEvent(ev chat.Event) (string, StreamEvent) {
	switch ev.Type {
	case chat.EventTypingChanged:
		pending := ev.Pending
		return "typing", StreamEvent{SessionID: ev.SessionID, Pending: &pending}
	default:
		return "message", StreamEvent{SessionID: ev.SessionID, Message: ev.Message}
	}
}
