package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	catalogHandler "github.com/zhouzirui/nexus-social/backend/internal/handler/catalog"
	"github.com/zhouzirui/nexus-social/backend/internal/handler/chat"
	"github.com/zhouzirui/nexus-social/backend/internal/handler/live"
	"github.com/zhouzirui/nexus-social/backend/internal/handler/stream"
	middlewarePkg "github.com/zhouzirui/nexus-social/backend/internal/middleware"
	"github.com/zhouzirui/nexus-social/backend/internal/model/catalog"
	chatService "github.com/zhouzirui/nexus-social/backend/internal/service/chat"
	"github.com/zhouzirui/nexus-social/backend/pkg/utils"
)

// Options tunes the presentation surfaces.
type Options struct {
	AllowedOrigins []string
	EventBuffer    int
}

// NewRouter wires HTTP routes to core services.
func NewRouter(catalogStore catalog.Store, chatSvc *chatService.Service, sender chat.Sender, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(opts.AllowedOrigins))

	// Create handlers
	catalogH := catalogHandler.New(catalogStore)
	chatH := chat.New(chatSvc, sender, catalogStore)
	streamH := stream.New(chatSvc, opts.EventBuffer, stream.DefaultHeartbeat)
	liveH := live.NewWebSocketHandler(chatSvc, sender, catalogStore, opts.AllowedOrigins, opts.EventBuffer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(api chi.Router) {
		catalogH.RegisterRoutes(api)
		chatH.RegisterRoutes(api)
		streamH.RegisterRoutes(api)
		liveH.RegisterRoutes(api)
	})

	return r
}
