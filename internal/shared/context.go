package shared

import (
	"context"
	"errors"
	"strconv"
	"strings"
)

type sessionContextKey struct{}

// ErrNoSessionUser is returned when the request carries no signed-in user.
var ErrNoSessionUser = errors.New("session has no user")

func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}

// SessionUserID returns the numeric user bound to the request session.
func SessionUserID(ctx context.Context) (int64, error) {
	sess := SessionFromContext(ctx)
	if sess == nil {
		return 0, ErrNoSessionUser
	}
	raw := strings.TrimSpace(sess.User())
	if raw == "" {
		return 0, ErrNoSessionUser
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.Join(ErrNoSessionUser, err)
	}
	return id, nil
}
