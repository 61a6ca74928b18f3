package service

import (
	"context"
	"errors"
	"time"
)

var ErrInvalidSession = errors.New("identity: invalid session")

// Session is a signed-in user. Token is the signed JWT handed to clients.
type Session struct {
	Token     string
	ID        string
	UserID    string
	UserName  string
	AMR       []string
	ExpiresAt time.Time

	// Pending sessions have passed the password check and wait on
	// TwoFactorSignIn. They carry no principal.
	Pending bool

	Principal *Principal
}

type sessionKey struct{}

func ContextWithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFromContext returns the session stored by ContextWithSession, or
// nil. Pending sessions are never returned.
func SessionFromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionKey{}).(*Session)
	if s == nil || s.Pending {
		return nil
	}
	return s
}
