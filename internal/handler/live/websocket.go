package live

import (
	"context"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	chathandler "github.com/zhouzirui/nexus-social/backend/internal/handler/chat"
	"github.com/zhouzirui/nexus-social/backend/internal/middleware"
	"github.com/zhouzirui/nexus-social/backend/internal/model/catalog"
	"github.com/zhouzirui/nexus-social/backend/internal/model/chat"
	chatservice "github.com/zhouzirui/nexus-social/backend/internal/service/chat"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
	writeTimeout = 10 * time.Second
)

// WebSocketHandler WebSocket实时会话处理器
type WebSocketHandler struct {
	chatSvc  *chatservice.Service
	sender   chathandler.Sender
	catalog  catalog.Store
	buffer   int
	upgrader websocket.Upgrader
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(chatSvc *chatservice.Service, sender chathandler.Sender, catalogStore catalog.Store, allowedOrigins []string, buffer int) *WebSocketHandler {
	return &WebSocketHandler{
		chatSvc: chatSvc,
		sender:  sender,
		catalog: catalogStore,
		buffer:  buffer,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || middleware.AllowsOrigin(allowedOrigins, origin)
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *WebSocketHandler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.handleWebSocket)
}

type inboundMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	SenderID  string `json:"senderId,omitempty"`
	Content   string `json:"content,omitempty"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// connWriter serializes writes; gorilla connections allow one concurrent writer.
type connWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *connWriter) writeJSON(msg outgoingMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(msg)
}

func (c *connWriter) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
}

// handleWebSocket 处理WebSocket连接
func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[live] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	out := &connWriter{conn: conn}

	events, unsubscribe := h.chatSvc.Subscribe(h.buffer)
	defer unsubscribe()

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	go h.pingLoop(ctx, out)
	go h.forwardEvents(ctx, out, events)

	log.Printf("[live] new connection from %s", r.RemoteAddr)

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[live] read error: %v", err)
			}
			return
		}

		conn.SetReadDeadline(time.Now().Add(readTimeout))
		h.handleMessage(ctx, out, &msg)
	}
}

func (h *WebSocketHandler) handleMessage(ctx context.Context, out *connWriter, msg *inboundMessage) {
	switch msg.Type {
	case "select":
		session, err := h.chatSvc.GetSession(ctx, msg.SessionID)
		if err != nil {
			h.sendError(out, msg.SessionID, err)
			return
		}
		h.send(out, outgoingMessage{Type: "session", SessionID: session.ID, Data: session})
	case "send":
		senderID := strings.TrimSpace(msg.SenderID)
		if senderID == "" {
			senderID = h.catalog.CurrentUser().ID
		}
		// The stored message and any reply arrive through the event feed.
		if _, err := h.sender.SendMessage(ctx, msg.SessionID, senderID, msg.Content); err != nil {
			h.sendError(out, msg.SessionID, err)
		}
	default:
		h.send(out, outgoingMessage{
			Type:      "error",
			SessionID: msg.SessionID,
			Data:      map[string]any{"message": "unknown message type: " + msg.Type, "code": http.StatusBadRequest},
		})
	}
}

func (h *WebSocketHandler) forwardEvents(ctx context.Context, out *connWriter, events <-chan chat.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			h.send(out, toOutgoing(ev))
		}
	}
}

func toOutgoing(ev chat.Event) outgoingMessage {
	if ev.Type == chat.EventTypingChanged {
		return outgoingMessage{
			Type:      "typing",
			SessionID: ev.SessionID,
			Data:      map[string]bool{"pending": ev.Pending},
		}
	}
	return outgoingMessage{Type: "message", SessionID: ev.SessionID, Data: ev.Message}
}

func (h *WebSocketHandler) send(out *connWriter, msg outgoingMessage) {
	msg.Timestamp = time.Now().UnixMilli()
	if err := out.writeJSON(msg); err != nil {
		log.Printf("[live] write %s failed: %v", msg.Type, err)
	}
}

func (h *WebSocketHandler) sendError(out *connWriter, sessionID string, err error) {
	h.send(out, outgoingMessage{
		Type:      "error",
		SessionID: sessionID,
		Data:      map[string]any{"message": err.Error(), "code": chathandler.StatusFor(err)},
	})
}

// pingLoop 定期发送ping消息
func (h *WebSocketHandler) pingLoop(ctx context.Context, out *connWriter) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := out.ping(); err != nil {
				return
			}
		}
	}
}
