package chat

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/z-chat/backend/internal/model/chat"
	"github.com/zhouzirui/z-chat/backend/internal/service/conversation"
	"github.com/zhouzirui/z-chat/backend/pkg/utils"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
	writeTimeout = 10 * time.Second
)

type inboundMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// wsConn serialises writes; gorilla connections allow one writer at a time.
type wsConn struct {
	mu        sync.Mutex
	conn      *websocket.Conn
	sessionID string
}

func (c *wsConn) send(kind string, data interface{}) {
	payload, err := utils.JSON.Marshal(outgoingMessage{
		Type:      kind,
		SessionID: c.sessionID,
		Data:      data,
		Timestamp: time.Now().Unix(),
	})
	if err != nil {
		log.Error().Err(err).Str("component", "websocket").Msg("encode frame failed")
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		log.Debug().Err(err).Str("component", "websocket").Str("type", kind).Msg("write failed")
	}
}

func (c *wsConn) sendError(message string) {
	c.send("error", map[string]string{"message": message})
}

func (c *wsConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
}

// handleWebSocket 在服务端托管的会话上按轮次处理用户输入
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if h.completer == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "ai completion unavailable")
		return
	}

	ctrl, p, err := h.chatSvc.Controller(r.Context(), sessionID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	completer := h.completer.ForPersona(p)

	raw, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("component", "websocket").Msg("upgrade failed")
		return
	}
	defer raw.Close()

	conn := &wsConn{conn: raw, sessionID: sessionID}
	logger := log.With().Str("component", "websocket").Str("session", sessionID).Logger()
	logger.Info().Msg("connection opened")

	// an in-flight turn is cancelled when the socket goes away
	ctx, cancel := context.WithCancel(context.Background())

	_ = raw.SetReadDeadline(time.Now().Add(readTimeout))
	raw.SetPongHandler(func(string) error {
		return raw.SetReadDeadline(time.Now().Add(readTimeout))
	})
	go pingLoop(ctx, conn)

	conn.send("transcript", map[string]any{
		"messages": ctrl.Transcript(),
		"busy":     ctrl.IsBusy(),
		"persona":  p.ID,
	})

	var turns sync.WaitGroup
	defer turns.Wait()
	defer cancel()

	for {
		_, data, err := raw.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn().Err(err).Msg("read error")
			}
			return
		}
		_ = raw.SetReadDeadline(time.Now().Add(readTimeout))

		var msg inboundMessage
		if err := utils.JSON.Unmarshal(data, &msg); err != nil {
			conn.sendError("invalid frame")
			continue
		}

		switch msg.Type {
		case "message":
			h.startTurn(ctx, conn, ctrl, completer, msg.Text, &turns)
		case "transcript":
			conn.send("transcript", map[string]any{
				"messages": ctrl.Transcript(),
				"busy":     ctrl.IsBusy(),
			})
		default:
			conn.sendError("unsupported message type: " + msg.Type)
		}
	}
}

// startTurn begins a turn synchronously so that a second submission while
// awaiting a reply is rejected, then waits for the reply in the background.
func (h *Handler) startTurn(ctx context.Context, conn *wsConn, ctrl *conversation.Controller, completer conversation.Completer, text string, turns *sync.WaitGroup) {
	if err := conversation.ValidateInput(text); err != nil {
		conn.sendError(err.Error())
		return
	}

	turn, err := ctrl.Start(text)
	if err != nil {
		if errors.Is(err, conversation.ErrTurnInFlight) {
			conn.sendError("turn in flight")
			return
		}
		conn.sendError(err.Error())
		return
	}

	conn.send("busy", map[string]any{"busy": true, "message": chat.UserMessage(text)})

	turns.Add(1)
	go func() {
		defer turns.Done()

		turnCtx, cancel := context.WithTimeout(ctx, h.turnTimeout)
		defer cancel()

		raw, err := completer.Complete(turnCtx, turn.Request)
		outcome := conversation.Success(raw)
		if err != nil {
			outcome = conversation.Failure(err)
		}

		reply, err := ctrl.Resolve(turn, outcome)
		if err != nil {
			log.Warn().Err(err).Str("component", "websocket").Uint64("turn", turn.ID).Msg("turn failed")
			conn.sendError("reply failed, please try again")
		} else {
			conn.send("reply", map[string]any{"message": reply})
		}
		conn.send("busy", map[string]any{"busy": false})
	}()
}

// pingLoop 定期发送 ping 保持连接
func pingLoop(ctx context.Context, conn *wsConn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.ping(); err != nil {
				return
			}
		}
	}
}
