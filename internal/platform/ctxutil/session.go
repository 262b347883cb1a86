package ctxutil

import (
	"context"

	"github.com/rivergarden/training-portal/internal/domain"
)

type sessionKey struct{}

func WithSession(ctx context.Context, s *domain.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

func GetSession(ctx context.Context) *domain.Session {
	if ctx == nil {
		return nil
	}
	if s, ok := ctx.Value(sessionKey{}).(*domain.Session); ok {
		return s
	}
	return nil
}
