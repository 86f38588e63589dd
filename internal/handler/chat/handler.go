package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/nexus-social/backend/internal/model/catalog"
	"github.com/zhouzirui/nexus-social/backend/internal/model/chat"
	chatService "github.com/zhouzirui/nexus-social/backend/internal/service/chat"
	"github.com/zhouzirui/nexus-social/backend/pkg/utils"
)

// Sender delivers a message into a session, scheduling assistant replies where needed.
type Sender interface {
	SendMessage(ctx context.Context, sessionID, senderID, content string) (chat.Message, error)
}

// Handler 会话与消息的HTTP处理器
type Handler struct {
	chatSvc *chatService.Service
	sender  Sender
	catalog catalog.Store
}

// New 创建聊天处理器
func New(chatSvc *chatService.Service, sender Sender, catalogStore catalog.Store) *Handler {
	return &Handler{
		chatSvc: chatSvc,
		sender:  sender,
		catalog: catalogStore,
	}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/sessions", h.handleListSessions)
	r.Get("/sessions/{sessionID}", h.handleGetSession)
	r.Get("/sessions/{sessionID}/messages", h.handleListMessages)
	r.Post("/sessions/{sessionID}/messages", h.handleSendMessage)
}

func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.chatSvc.ListSessions(r.Context()))
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.chatSvc.GetSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, session)
}

func (h *Handler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := h.chatSvc.LoadTranscript(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, messages)
}

// handleSendMessage 发送消息；缺省发送者为当前用户
func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		SenderID string `json:"senderId"`
		Content  string `json:"content"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	senderID := strings.TrimSpace(payload.SenderID)
	if senderID == "" {
		senderID = h.catalog.CurrentUser().ID
	}

	message, err := h.sender.SendMessage(r.Context(), chi.URLParam(r, "sessionID"), senderID, payload.Content)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusCreated, message)
}

// StatusFor maps store and orchestrator errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, chatService.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, chatService.ErrInvalidParticipant), errors.Is(err, chatService.ErrEmptyMessage):
		return http.StatusBadRequest
	case errors.Is(err, chatService.ErrRequestInFlight):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func respondServiceError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("[chat] request failed: %v", err)
		utils.RespondError(w, status, "internal error")
		return
	}
	utils.RespondError(w, status, err.Error())
}
