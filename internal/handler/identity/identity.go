// Package identity attaches the client's session identifier to each request,
// issuing it through a cookie when the client has none yet.
package identity

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/z-chat/backend/internal/service/session"
)

const cookieMaxAge = 365 * 24 * time.Hour

type ctxKey struct{}

// CookieStorage adapts request and response cookies to session.Storage.
type CookieStorage struct {
	w       http.ResponseWriter
	r       *http.Request
	secure  bool
	written map[string]string
}

// NewCookieStorage reads cookies from r and writes new ones to w.
func NewCookieStorage(w http.ResponseWriter, r *http.Request, secure bool) *CookieStorage {
	return &CookieStorage{w: w, r: r, secure: secure, written: make(map[string]string)}
}

func (s *CookieStorage) Get(key string) (string, bool) {
	if v, ok := s.written[key]; ok {
		return v, true
	}
	c, err := s.r.Cookie(key)
	if err != nil {
		return "", false
	}
	return c.Value, true
}

func (s *CookieStorage) Set(key, value string) error {
	http.SetCookie(s.w, &http.Cookie{
		Name:     key,
		Value:    value,
		Path:     "/",
		MaxAge:   int(cookieMaxAge.Seconds()),
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	s.written[key] = value
	return nil
}

// Middleware ensures every request carries a session identifier.
func Middleware(secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := session.EnsureIdentifier(NewCookieStorage(w, r, secure))
			if err != nil {
				log.Warn().Err(err).Str("component", "identity").Msg("could not issue session identifier")
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), id)))
		})
	}
}

// WithUser stores id in ctx.
func WithUser(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// UserFromContext returns the identifier stored by Middleware.
func UserFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok && id != ""
}
