package catalog

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/nexus-social/backend/internal/model/catalog"
	"github.com/zhouzirui/nexus-social/backend/pkg/utils"
)

// Handler 静态目录数据的HTTP处理器
type Handler struct {
	store catalog.Store
}

// New 创建目录处理器
func New(store catalog.Store) *Handler {
	return &Handler{
		store: store,
	}
}

// RegisterRoutes 注册目录相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/me", h.handleCurrentUser)
	r.Get("/users", h.handleListUsers)
	r.Get("/users/{userID}", h.handleGetUser)
	r.Get("/posts", h.handleListPosts)
	r.Get("/stories", h.handleListStories)
	r.Get("/reels", h.handleListReels)
}

func (h *Handler) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.store.CurrentUser())
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.store.Users())
}

func (h *Handler) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, ok := h.store.FindUser(chi.URLParam(r, "userID"))
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "user not found")
		return
	}
	utils.RespondJSON(w, http.StatusOK, user)
}

func (h *Handler) handleListPosts(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.store.Posts())
}

func (h *Handler) handleListStories(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.store.Stories())
}

func (h *Handler) handleListReels(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.store.Reels())
}
