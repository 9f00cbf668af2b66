package chat

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/z-chat/backend/internal/handler/identity"
	"github.com/zhouzirui/z-chat/backend/internal/model/persona"
	chatService "github.com/zhouzirui/z-chat/backend/internal/service/chat"
	"github.com/zhouzirui/z-chat/backend/internal/service/conversation"
	"github.com/zhouzirui/z-chat/backend/pkg/utils"
)

const (
	maxBodyBytes       = 16 << 10
	defaultTurnTimeout = 90 * time.Second
)

// PersonaCompleter 为指定角色提供补全能力
type PersonaCompleter interface {
	ForPersona(p persona.Persona) conversation.Completer
}

// Handler 会话与 WebSocket 聊天的 HTTP 处理器
type Handler struct {
	chatSvc      *chatService.Service
	personaStore persona.Store
	completer    PersonaCompleter
	upgrader     websocket.Upgrader
	turnTimeout  time.Duration
}

// New 创建聊天处理器，completer 为 nil 时 WebSocket 接口不可用
func New(chatSvc *chatService.Service, personaStore persona.Store, completer PersonaCompleter) *Handler {
	return &Handler{
		chatSvc:      chatSvc,
		personaStore: personaStore,
		completer:    completer,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		turnTimeout: defaultTurnTimeout,
	}
}

// RegisterRoutes 注册会话相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/session", h.handleCreateSession)
	r.Get("/session/{sessionID}/transcript", h.handleTranscript)
	r.Delete("/session/{sessionID}", h.handleEndSession)
	r.Get("/ws/{sessionID}", h.handleWebSocket)
}

// handleCreateSession 创建会话，用户标识来自 cookie
func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		PersonaID string `json:"personaId"`
	}

	if r.ContentLength != 0 {
		if err := utils.DecodeJSON(r.Body, maxBodyBytes, &payload); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	p, err := persona.Resolve(h.personaStore, payload.PersonaID)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	userID, ok := identity.UserFromContext(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusBadRequest, chatService.ErrUserRequired.Error())
		return
	}

	session, err := h.chatSvc.CreateSession(r.Context(), userID, p)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusCreated, session)
}

// handleTranscript 返回会话记录快照
func (h *Handler) handleTranscript(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	session, err := h.chatSvc.GetSession(r.Context(), sessionID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	ctrl, _, err := h.chatSvc.Controller(r.Context(), sessionID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"session":  session,
		"messages": ctrl.Transcript(),
		"busy":     ctrl.IsBusy(),
	})
}

// handleEndSession 结束会话并丢弃记录
func (h *Handler) handleEndSession(w http.ResponseWriter, r *http.Request) {
	if err := h.chatSvc.EndSession(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		h.respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	if errors.Is(err, chatService.ErrSessionNotFound) {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}
	utils.RespondError(w, http.StatusInternalServerError, err.Error())
}
