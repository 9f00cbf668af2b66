package stream

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/z-chat/backend/internal/model/chat"
	"github.com/zhouzirui/z-chat/backend/internal/model/persona"
	chatService "github.com/zhouzirui/z-chat/backend/internal/service/chat"
	"github.com/zhouzirui/z-chat/backend/internal/service/conversation"
	"github.com/zhouzirui/z-chat/backend/pkg/utils"
)

const (
	maxBodyBytes       = 16 << 10
	defaultTurnTimeout = 90 * time.Second
)

// Streamer produces a reply as a stream of message chunks.
type Streamer interface {
	StreamCompletion(ctx context.Context, p persona.Persona, req chat.CompletionRequest) (*schema.StreamReader[*schema.Message], error)
}

// Handler runs conversation turns whose replies are relayed via Server-Sent Events
type Handler struct {
	streamer    Streamer
	chatSvc     *chatService.Service
	turnTimeout time.Duration
}

// New creates a new stream handler. A nil streamer disables the route.
func New(streamer Streamer, chatSvc *chatService.Service) *Handler {
	return &Handler{
		streamer:    streamer,
		chatSvc:     chatSvc,
		turnTimeout: defaultTurnTimeout,
	}
}

// StreamResponse represents a streaming response chunk
type StreamResponse struct {
	Event     string `json:"event"`
	Content   string `json:"content,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	Finished  bool   `json:"finished,omitempty"`
	Error     string `json:"error,omitempty"`
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/session/{sessionID}/stream", h.handleStream)
}

// handleStream 追加用户消息并以 SSE 推送回复：start、若干 delta、message、end。
// 失败时推送 error 事件，会话回到空闲状态。
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	if h.streamer == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "AI service is not configured")
		return
	}

	var payload struct {
		Text string `json:"text"`
	}
	if err := utils.DecodeJSON(r.Body, maxBodyBytes, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := conversation.ValidateInput(payload.Text); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	sessionID := chi.URLParam(r, "sessionID")
	ctrl, p, err := h.chatSvc.Controller(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, chatService.ErrSessionNotFound) {
			utils.RespondError(w, http.StatusNotFound, err.Error())
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	turn, err := ctrl.Start(payload.Text)
	if err != nil {
		utils.RespondError(w, http.StatusConflict, "turn in flight")
		return
	}

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	h.send(w, flusher, StreamResponse{Event: "start", SessionID: sessionID})

	ctx, cancel := context.WithTimeout(r.Context(), h.turnTimeout)
	defer cancel()

	content, err := h.relay(ctx, w, flusher, sessionID, p, turn)
	outcome := conversation.Success(content)
	if err != nil {
		outcome = conversation.Failure(err)
	}

	reply, err := ctrl.Resolve(turn, outcome)
	if err != nil {
		log.Warn().Err(err).Str("component", "stream").Str("session", sessionID).Msg("turn failed")
		h.send(w, flusher, StreamResponse{Event: "error", SessionID: sessionID, Error: err.Error()})
		return
	}

	h.send(w, flusher, StreamResponse{Event: "message", SessionID: sessionID, Content: reply.Message})
	h.send(w, flusher, StreamResponse{Event: "end", SessionID: sessionID, Finished: true})

	log.Info().
		Str("component", "stream").
		Str("session", sessionID).
		Str("persona", p.ID).
		Msg("completed response")
}

// relay forwards every non-empty chunk as a delta event and returns the
// concatenated raw reply.
func (h *Handler) relay(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, sessionID string, p persona.Persona, turn *conversation.Turn) (string, error) {
	stream, err := h.streamer.StreamCompletion(ctx, p, turn.Request)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	chunks := make([]*schema.Message, 0, 8)
	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			return "", recvErr
		}
		if chunk == nil {
			continue
		}

		chunks = append(chunks, chunk)
		if chunk.Content != "" {
			h.send(w, flusher, StreamResponse{
				Event:     "delta",
				SessionID: sessionID,
				Content:   chunk.Content,
			})
		}
	}

	if len(chunks) == 0 {
		return "", nil
	}
	response, err := schema.ConcatMessages(chunks)
	if err != nil {
		return "", err
	}
	return response.Content, nil
}

func (h *Handler) send(w http.ResponseWriter, flusher http.Flusher, response StreamResponse) {
	if err := utils.SendSSEEvent(w, flusher, response.Event, response); err != nil {
		log.Debug().Err(err).Str("component", "stream").Msg("failed to send SSE event")
	}
}
