// Package portal serves the public landing pages and the signed-in
// portal picker that routes each principal to the areas their roles
// allow.
package portal

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/brightpath-care/brightpath/internal/authz"
	"github.com/brightpath-care/brightpath/internal/platform/httpx"
	"github.com/brightpath-care/brightpath/internal/shared"
	"github.com/brightpath-care/brightpath/internal/view"
)

// Handler serves portal navigation pages.
type Handler struct {
	logger    *slog.Logger
	templates *view.Engine
	csrf      *shared.CSRFManager
	authz     authz.Middleware
}

// NewHandler constructs the portal handler.
func NewHandler(logger *slog.Logger, templates *view.Engine, csrf *shared.CSRFManager, mw authz.Middleware) *Handler {
	return &Handler{logger: logger, templates: templates, csrf: csrf, authz: mw}
}

// MountRoutes registers the portal routes on the root router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleRoot)
	r.Get("/welcome", h.showWelcome)
	r.Get("/unauthorized", h.showUnauthorized)
	r.With(h.authz.RequireAny()).Get("/portal", h.showPortal)
	r.With(h.authz.RequireAnyAPI()).Get("/api/me/roles", h.handleMyRoles)
}

func (h *Handler) handleRoot(w http.ResponseWriter, r *http.Request) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil && sess.User() != "" {
		http.Redirect(w, r, "/portal", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/welcome", http.StatusSeeOther)
}

func (h *Handler) showWelcome(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "pages/welcome.html", "Welcome", nil, nil)
}

func (h *Handler) showUnauthorized(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusForbidden)
	h.render(w, r, "pages/unauthorized.html", "Access Denied", nil, nil)
}

// portalLink is a destination offered on the portal picker.
type portalLink struct {
	Label string
	Href  string
	Blurb string
}

type portalPageData struct {
	Links []portalLink
}

func (h *Handler) showPortal(w http.ResponseWriter, r *http.Request) {
	user := authz.UserFromContext(r.Context())
	if user == nil {
		http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
		return
	}

	var links []portalLink
	if user.IsAdmin() {
		links = append(links, portalLink{Label: "Administration", Href: "/admin/users", Blurb: "Manage accounts, roles and intake submissions."})
	}
	if user.IsAdmin() || user.IsCounselor() {
		links = append(links, portalLink{Label: "Counselor Workspace", Href: "/counselor/dashboard", Blurb: "Your counselees, intake queue and profile."})
	}
	if user.IsCounselee() {
		links = append(links, portalLink{Label: "My Counseling", Href: "/counselee/home", Blurb: "Your counselor and session overview."})
	}

	h.render(w, r, "pages/portal.html", "Portal", user, portalPageData{Links: links})
}

type rolesResponse struct {
	UserID      string   `json:"user_id"`
	Email       string   `json:"email"`
	Roles       []string `json:"roles"`
	IsAdmin     bool     `json:"is_admin"`
	IsCounselor bool     `json:"is_counselor"`
	IsCounselee bool     `json:"is_counselee"`
}

func (h *Handler) handleMyRoles(w http.ResponseWriter, r *http.Request) {
	user := authz.UserFromContext(r.Context())
	if user == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}

	roles := user.Roles.Roles()
	names := make([]string, len(roles))
	for i, role := range roles {
		names[i] = string(role)
	}
	httpx.JSON(w, http.StatusOK, rolesResponse{
		UserID:      user.ID.String(),
		Email:       user.Email,
		Roles:       names,
		IsAdmin:     user.IsAdmin(),
		IsCounselor: user.IsCounselor(),
		IsCounselee: user.IsCounselee(),
	})
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, page, title string, user *authz.ResolvedUser, data any) {
	sess := shared.SessionFromContext(r.Context())
	var csrfToken string
	if h.csrf != nil {
		csrfToken, _ = h.csrf.EnsureToken(r.Context(), sess)
	}
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	err := h.templates.Render(w, page, view.TemplateData{
		Title:       title,
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		User:        user,
		Data:        data,
	})
	if err != nil {
		h.logger.Error("render page", slog.String("page", page), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
