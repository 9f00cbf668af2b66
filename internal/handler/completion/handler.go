package completion

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/z-chat/backend/internal/handler/identity"
	"github.com/zhouzirui/z-chat/backend/internal/model/chat"
	"github.com/zhouzirui/z-chat/backend/internal/service/ai"
	"github.com/zhouzirui/z-chat/backend/internal/service/conversation"
	"github.com/zhouzirui/z-chat/backend/pkg/utils"
)

const maxBodyBytes = 256 << 10

// Handler 提供 /chat 补全接口
type Handler struct {
	completer conversation.Completer
}

// New 创建补全处理器，completer 为 nil 时接口返回 503
func New(completer conversation.Completer) *Handler {
	return &Handler{completer: completer}
}

// RegisterRoutes 注册补全路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.handleComplete)
}

func (h *Handler) handleComplete(w http.ResponseWriter, r *http.Request) {
	if h.completer == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "ai completion unavailable")
		return
	}

	var payload chat.CompletionRequest
	if err := utils.DecodeJSON(r.Body, maxBodyBytes, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := validate(payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if payload.User == "" {
		if id, ok := identity.UserFromContext(r.Context()); ok {
			payload.User = id
		}
	}
	payload.Messages = conversation.Tail(payload.Messages)

	text, err := h.completer.Complete(r.Context(), payload)
	if err != nil {
		if errors.Is(err, ai.ErrNoUserMessage) {
			utils.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Error().Err(err).Str("component", "completion").Str("user", payload.User).Msg("completion failed")
		utils.RespondError(w, http.StatusBadGateway, "completion failed")
		return
	}

	utils.RespondJSON(w, http.StatusOK, chat.CompletionResponse{Text: &text})
}

func validate(payload chat.CompletionRequest) error {
	if len(payload.Messages) == 0 {
		return errors.New("messages are required")
	}
	for i, msg := range payload.Messages {
		if !msg.Who.Valid() {
			return fmt.Errorf("messages[%d]: unknown speaker %q", i, msg.Who)
		}
	}
	return nil
}
