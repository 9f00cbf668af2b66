package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/z-chat/backend/internal/config"
	"github.com/zhouzirui/z-chat/backend/internal/handler/chat"
	"github.com/zhouzirui/z-chat/backend/internal/handler/completion"
	"github.com/zhouzirui/z-chat/backend/internal/handler/identity"
	"github.com/zhouzirui/z-chat/backend/internal/handler/persona"
	"github.com/zhouzirui/z-chat/backend/internal/handler/stream"
	middlewarePkg "github.com/zhouzirui/z-chat/backend/internal/middleware"
	personaModel "github.com/zhouzirui/z-chat/backend/internal/model/persona"
	aiService "github.com/zhouzirui/z-chat/backend/internal/service/ai"
	chatService "github.com/zhouzirui/z-chat/backend/internal/service/chat"
	"github.com/zhouzirui/z-chat/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services. aiSvc may be nil, in which
// case completion routes answer 503.
func NewRouter(serverCfg config.ServerConfig, personas personaModel.Store, chatSvc *chatService.Service, aiSvc *aiService.Service) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(serverCfg.AllowedOrigin))

	completionHandler := completion.New(nil)
	chatHandler := chat.New(chatSvc, personas, nil)
	streamHandler := stream.New(nil, chatSvc)
	if aiSvc != nil {
		completionHandler = completion.New(aiSvc)
		chatHandler = chat.New(chatSvc, personas, aiSvc)
		streamHandler = stream.New(aiSvc, chatSvc)
	}
	personaHandler := persona.New(personas)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]any{"status": "ok", "ai": aiSvc != nil})
	})

	r.Route("/api", func(api chi.Router) {
		api.Use(identity.Middleware(serverCfg.SecureCookie))

		personaHandler.RegisterRoutes(api)
		completionHandler.RegisterRoutes(api)
		chatHandler.RegisterRoutes(api)
		streamHandler.RegisterRoutes(api)
	})

	return r
}
