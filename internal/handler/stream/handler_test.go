package stream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/z-chat/backend/internal/model/chat"
	"github.com/zhouzirui/z-chat/backend/internal/model/persona"
	chatservice "github.com/zhouzirui/z-chat/backend/internal/service/chat"
)

type fakeStreamer struct {
	chunks []string
	err    error
	got    chat.CompletionRequest
}

func (f *fakeStreamer) StreamCompletion(_ context.Context, _ persona.Persona, req chat.CompletionRequest) (*schema.StreamReader[*schema.Message], error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	msgs := make([]*schema.Message, 0, len(f.chunks))
	for _, c := range f.chunks {
		msgs = append(msgs, schema.AssistantMessage(c, nil))
	}
	return schema.StreamReaderFromArray(msgs), nil
}

func setup(t *testing.T, streamer Streamer) (*chi.Mux, *chatservice.Service, string) {
	t.Helper()
	chatSvc := chatservice.NewService()
	p, ok := persona.NewMemoryStore(persona.Seed()).FindByID(persona.DefaultID)
	require.True(t, ok)
	session, err := chatSvc.CreateSession(context.Background(), "user-1", p)
	require.NoError(t, err)

	r := chi.NewRouter()
	New(streamer, chatSvc).RegisterRoutes(r)
	return r, chatSvc, session.ID
}

func post(r http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestStreamRelaysDeltasAndStoresTrimmedReply(t *testing.T) {
	streamer := &fakeStreamer{chunks: []string{"  Hel", "lo  "}}
	r, chatSvc, sessionID := setup(t, streamer)

	rec := post(r, "/session/"+sessionID+"/stream", `{"text":"hi"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.Contains(t, body, "event: start")
	assert.Contains(t, body, `"content":"  Hel"`)
	assert.Contains(t, body, "event: message\ndata: {\"event\":\"message\",\"content\":\"Hello\"")
	assert.Contains(t, body, "event: end")

	require.Len(t, streamer.got.Messages, 2)
	assert.Equal(t, "user-1", streamer.got.User)

	ctrl, _, err := chatSvc.Controller(context.Background(), sessionID)
	require.NoError(t, err)
	assert.False(t, ctrl.IsBusy())
	transcript := ctrl.Transcript()
	require.Len(t, transcript, 3)
	assert.Equal(t, chat.BotMessage("Hello"), transcript[2])
}

func TestStreamFailureSendsErrorEvent(t *testing.T) {
	r, chatSvc, sessionID := setup(t, &fakeStreamer{err: errors.New("model offline")})

	rec := post(r, "/session/"+sessionID+"/stream", `{"text":"hi"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "event: error")
	assert.Contains(t, rec.Body.String(), "model offline")
	assert.NotContains(t, rec.Body.String(), "event: end")

	ctrl, _, err := chatSvc.Controller(context.Background(), sessionID)
	require.NoError(t, err)
	assert.False(t, ctrl.IsBusy())
	assert.Equal(t, 2, ctrl.Len())
}

func TestStreamRejectsWhileBusy(t *testing.T) {
	r, chatSvc, sessionID := setup(t, &fakeStreamer{chunks: []string{"x"}})
	ctrl, _, err := chatSvc.Controller(context.Background(), sessionID)
	require.NoError(t, err)
	_, err = ctrl.Start("pending")
	require.NoError(t, err)

	rec := post(r, "/session/"+sessionID+"/stream", `{"text":"again"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, 2, ctrl.Len())
}

func TestStreamRequestValidation(t *testing.T) {
	r, _, sessionID := setup(t, &fakeStreamer{})

	assert.Equal(t, http.StatusBadRequest, post(r, "/session/"+sessionID+"/stream", `{"text":"   "}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(r, "/session/"+sessionID+"/stream", `not json`).Code)
	assert.Equal(t, http.StatusNotFound, post(r, "/session/missing/stream", `{"text":"hi"}`).Code)
}

func TestStreamWithoutAI(t *testing.T) {
	r, _, sessionID := setup(t, nil)
	assert.Equal(t, http.StatusServiceUnavailable, post(r, "/session/"+sessionID+"/stream", `{"text":"hi"}`).Code)
}
