package authz

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/brightpath-care/brightpath/internal/platform/httpx"
	"github.com/brightpath-care/brightpath/internal/shared"
)

// Middleware wires role authorization for HTTP handlers. Page guards
// redirect (login for unauthenticated, /unauthorized for denied); API
// guards answer with problem JSON. Both resolve the role set per request
// and hand the resolved user to downstream handlers via context.
type Middleware struct {
	Resolver *Resolver
	Logger   *slog.Logger
}

// RequireAny gates a page route on holding at least one of the roles.
func (m Middleware) RequireAny(roles ...Role) func(http.Handler) http.Handler {
	return m.guard(roles, Authorize, m.denyPage)
}

// RequireAll gates a page route on holding every one of the roles.
func (m Middleware) RequireAll(roles ...Role) func(http.Handler) http.Handler {
	return m.guard(roles, AuthorizeAll, m.denyPage)
}

// RequireAnyAPI gates a JSON route on holding at least one of the roles.
func (m Middleware) RequireAnyAPI(roles ...Role) func(http.Handler) http.Handler {
	return m.guard(roles, Authorize, m.denyAPI)
}

type denyFunc func(w http.ResponseWriter, r *http.Request, reason error)

var (
	errUnauthenticated = errors.New("authz: unauthenticated")
	errDenied          = errors.New("authz: denied")
)

func (m Middleware) guard(roles []Role, decide func(RoleSet, ...Role) bool, deny denyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := m.currentPrincipalID(r)
			if !ok {
				deny(w, r, errUnauthenticated)
				return
			}
			user, err := m.Resolver.Resolve(r.Context(), id)
			if err != nil {
				if errors.Is(err, ErrProfileNotFound) {
					deny(w, r, ErrProfileNotFound)
					return
				}
				if m.Logger != nil {
					m.Logger.Error("resolve roles", slog.Any("error", err))
				}
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			if !decide(user.Roles, roles...) {
				deny(w, r, errDenied)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), user)))
		})
	}
}

func (m Middleware) denyPage(w http.ResponseWriter, r *http.Request, reason error) {
	if errors.Is(reason, errUnauthenticated) {
		http.Redirect(w, r, "/auth/login?redirect="+url.QueryEscape(r.URL.Path), http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/unauthorized", http.StatusSeeOther)
}

func (m Middleware) denyAPI(w http.ResponseWriter, r *http.Request, reason error) {
	switch {
	case errors.Is(reason, errUnauthenticated):
		httpx.RespondError(w, httpx.ErrUnauthorized)
	case errors.Is(reason, ErrProfileNotFound):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "profile setup incomplete")
	default:
		httpx.RespondError(w, httpx.ErrForbidden)
	}
}

func (m Middleware) currentPrincipalID(r *http.Request) (uuid.UUID, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return uuid.Nil, false
	}
	raw := strings.TrimSpace(sess.User())
	if raw == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Error("parse session user id", slog.String("value", raw))
		}
		return uuid.Nil, false
	}
	return id, true
}
