package rbac

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/plantdesk/plantdesk/internal/access"
	"github.com/plantdesk/plantdesk/internal/platform/httpx"
	"github.com/plantdesk/plantdesk/internal/shared"
)

// Require guards a handler behind a single (module, feature, action) triple.
// On success the loaded principal and its scope are stored in the request
// context for the handler.
func (g Gate) Require(module, feature string, action access.Action) func(http.Handler) http.Handler {
	target := Target{Module: module, Feature: feature, Action: action}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := g.principal(w, r)
			if !ok {
				return
			}
			scope, err := g.Authorize(principal, target)
			if err != nil {
				httpx.RespondError(w, err)
				return
			}
			ctx := ContextWithPrincipal(r.Context(), principal)
			ctx = ContextWithScope(ctx, scope)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAny passes when at least one target is allowed. The first allowed
// target determines the scope.
func (g Gate) RequireAny(targets ...Target) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := g.principal(w, r)
			if !ok {
				return
			}
			var lastErr error = &access.DeniedError{Reason: access.ReasonActionDenied}
			for _, t := range targets {
				scope, err := g.Authorize(principal, t)
				if err != nil {
					lastErr = err
					continue
				}
				ctx := ContextWithPrincipal(r.Context(), principal)
				ctx = ContextWithScope(ctx, scope)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
			httpx.RespondError(w, lastErr)
		})
	}
}

// Authenticated loads the principal without checking any permission. Used for
// routes every signed-in user may reach, such as the navigation view.
func (g Gate) Authenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := g.principal(w, r)
		if !ok {
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), principal)))
	})
}

func (g Gate) principal(w http.ResponseWriter, r *http.Request) (access.Principal, bool) {
	userID, ok := g.currentUserID(r)
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return access.Principal{}, false
	}
	if g.Loader == nil {
		httpx.RespondError(w, errors.New("rbac: no principal loader"))
		return access.Principal{}, false
	}
	principal, err := g.Loader.Principal(r.Context(), userID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return access.Principal{}, false
		}
		if g.Logger != nil {
			g.Logger.Error("rbac load principal", slog.Int64("user_id", userID), slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return access.Principal{}, false
	}
	return principal, true
}

func (g Gate) currentUserID(r *http.Request) (int64, bool) {
	id, err := shared.SessionUserID(r.Context())
	if err != nil {
		if sess := shared.SessionFromContext(r.Context()); g.Logger != nil && sess != nil && sess.User() != "" {
			g.Logger.Error("rbac parse user id", slog.String("value", sess.User()))
		}
		return 0, false
	}
	return id, true
}
