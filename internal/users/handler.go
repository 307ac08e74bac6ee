package users

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/brightpath-care/brightpath/internal/authz"
	"github.com/brightpath-care/brightpath/internal/shared"
	"github.com/brightpath-care/brightpath/internal/view"
)

// Handler manages account administration endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	templates *view.Engine
	csrf      *shared.CSRFManager
	authz     authz.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager, mw authz.Middleware) *Handler {
	return &Handler{logger: logger, service: service, templates: templates, csrf: csrf, authz: mw}
}

// MountRoutes registers account administration routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAny(authz.RoleAdmin))
		r.Get("/users", h.listAccounts)
		r.Get("/users/new", h.showCreateForm)
		r.Post("/users", h.createAccount)
		r.Post("/users/{id}/roles", h.grantRole)
		r.Post("/users/{id}/roles/revoke", h.revokeRole)
		r.Post("/users/{id}/active", h.setActive)
		r.Post("/users/backfill", h.triggerBackfill)
	})
}

type formErrors map[string]string

func (h *Handler) listAccounts(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	filter := ListFilter{
		Search: r.URL.Query().Get("q"),
		Role:   r.URL.Query().Get("role"),
		Page:   page,
	}
	accounts, pagination, err := h.service.ListAccounts(r.Context(), filter)
	if err != nil {
		h.logger.Error("list accounts failed", slog.Any("error", err))
		h.render(w, r, "pages/users/list.html", map[string]any{
			"Errors":     formErrors{"general": shared.UserSafeMessage(err)},
			"Accounts":   []Account{},
			"Pagination": shared.Pagination{},
			"Filter":     filter,
			"AllRoles":   []authz.Role{authz.RoleAdmin, authz.RoleCounselor, authz.RoleCounselee},
		}, http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/users/list.html", map[string]any{
		"Accounts":   accounts,
		"Pagination": pagination,
		"Filter":     filter,
		"AllRoles":   []authz.Role{authz.RoleAdmin, authz.RoleCounselor, authz.RoleCounselee},
	}, http.StatusOK)
}

func (h *Handler) showCreateForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "pages/users/form.html", map[string]any{"Errors": formErrors{}}, http.StatusOK)
}

func (h *Handler) createAccount(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	input := NewAccount{
		Email:    r.PostFormValue("email"),
		FullName: r.PostFormValue("full_name"),
		Password: r.PostFormValue("password"),
	}
	for _, raw := range r.PostForm["roles"] {
		role, err := authz.ParseRole(raw)
		if err != nil {
			h.render(w, r, "pages/users/form.html", map[string]any{"Errors": formErrors{"roles": "Unknown role"}, "Form": input}, http.StatusBadRequest)
			return
		}
		input.Roles = append(input.Roles, role)
	}

	if _, err := h.service.CreateAccount(r.Context(), h.actorID(r), input); err != nil {
		h.logger.Error("create account failed", slog.Any("error", err))
		h.render(w, r, "pages/users/form.html", map[string]any{"Errors": formErrors{"general": shared.UserSafeMessage(err)}, "Form": input}, http.StatusBadRequest)
		return
	}
	h.redirectWithFlash(w, r, "/admin/users", "success", "Account created")
}

func (h *Handler) grantRole(w http.ResponseWriter, r *http.Request) {
	h.mutateRole(w, r, "granted", func(actorID, userID uuid.UUID, role authz.Role) error {
		return h.service.GrantRole(r.Context(), actorID, userID, role)
	})
}

func (h *Handler) revokeRole(w http.ResponseWriter, r *http.Request) {
	h.mutateRole(w, r, "revoked", func(actorID, userID uuid.UUID, role authz.Role) error {
		return h.service.RevokeRole(r.Context(), actorID, userID, role)
	})
}

func (h *Handler) mutateRole(w http.ResponseWriter, r *http.Request, verb string, op func(actorID, userID uuid.UUID, role authz.Role) error) {
	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	role, err := authz.ParseRole(r.PostFormValue("role"))
	if err != nil {
		h.redirectWithFlash(w, r, "/admin/users", "error", "Unknown role")
		return
	}
	if err := op(h.actorID(r), userID, role); err != nil {
		h.logger.Error("role change failed", slog.String("role", string(role)), slog.Any("error", err))
		h.redirectWithFlash(w, r, "/admin/users", "error", shared.UserSafeMessage(err))
		return
	}
	h.redirectWithFlash(w, r, "/admin/users", "success", "Role "+verb)
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	active := r.PostFormValue("active") == "true"
	if err := h.service.SetActive(r.Context(), h.actorID(r), userID, active); err != nil {
		h.logger.Error("set active failed", slog.Any("error", err))
		h.redirectWithFlash(w, r, "/admin/users", "error", shared.UserSafeMessage(err))
		return
	}
	message := "Account deactivated"
	if active {
		message = "Account activated"
	}
	h.redirectWithFlash(w, r, "/admin/users", "success", message)
}

func (h *Handler) triggerBackfill(w http.ResponseWriter, r *http.Request) {
	if err := h.service.TriggerRoleBackfill(r.Context(), h.actorID(r)); err != nil {
		h.logger.Error("trigger backfill failed", slog.Any("error", err))
		h.redirectWithFlash(w, r, "/admin/users", "error", "Could not schedule the role backfill")
		return
	}
	h.redirectWithFlash(w, r, "/admin/users", "success", "Role backfill scheduled")
}

func (h *Handler) actorID(r *http.Request) uuid.UUID {
	if user := authz.UserFromContext(r.Context()); user != nil {
		return user.ID
	}
	return uuid.Nil
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, template string, data map[string]any, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{
		Title:       "Accounts",
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		User:        authz.UserFromContext(r.Context()),
		Data:        data,
	}
	w.WriteHeader(status)
	if err := h.templates.Render(w, template, viewData); err != nil {
		h.logger.Error("render template", slog.Any("error", err))
	}
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, location, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}
