package counselors

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/brightpath-care/brightpath/internal/authz"
	"github.com/brightpath-care/brightpath/internal/shared"
	"github.com/brightpath-care/brightpath/internal/view"
)

// Handler manages counselor profile endpoints.
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

// MountAdminRoutes registers counselor administration routes.
func (h *Handler) MountAdminRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAny(authz.RoleAdmin))
		r.Get("/counselors", h.listProfiles)
		r.Get("/counselors/new", h.showCreateForm)
		r.Post("/counselors", h.createProfile)
	})
}

// MountPortalRoutes registers the counselor workspace routes.
func (h *Handler) MountPortalRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAny(authz.RoleAdmin, authz.RoleCounselor))
		r.Get("/dashboard", h.showDashboard)
		r.Get("/profile", h.showOwnProfile)
		r.Post("/profile", h.updateOwnProfile)
	})
}

type formErrors map[string]string

func (h *Handler) listProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.service.ListProfiles(r.Context())
	if err != nil {
		h.logger.Error("list counselors failed", slog.Any("error", err))
		h.render(w, r, "pages/counselors/list.html", map[string]any{
			"Errors":   formErrors{"general": shared.UserSafeMessage(err)},
			"Profiles": []ProfileSummary{},
		}, http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/counselors/list.html", map[string]any{"Profiles": profiles}, http.StatusOK)
}

func (h *Handler) showCreateForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "pages/counselors/form.html", map[string]any{"Errors": formErrors{}}, http.StatusOK)
}

func (h *Handler) createProfile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	userID, err := uuid.Parse(r.PostFormValue("user_id"))
	if err != nil {
		h.render(w, r, "pages/counselors/form.html", map[string]any{"Errors": formErrors{"user_id": "A valid account id is required"}}, http.StatusBadRequest)
		return
	}
	input := parseProfileForm(r)

	if _, err := h.service.CreateProfile(r.Context(), h.actorID(r), userID, input); err != nil {
		status := http.StatusBadRequest
		message := shared.UserSafeMessage(err)
		if errors.Is(err, shared.ErrDuplicate) {
			message = "This account already has a counselor profile."
		}
		h.logger.Error("create counselor profile failed", slog.Any("error", err))
		h.render(w, r, "pages/counselors/form.html", map[string]any{"Errors": formErrors{"general": message}}, status)
		return
	}
	h.redirectWithFlash(w, r, "/admin/counselors", "success", "Counselor profile created")
}

func (h *Handler) showDashboard(w http.ResponseWriter, r *http.Request) {
	user := authz.UserFromContext(r.Context())
	profile, err := h.service.GetProfile(r.Context(), user.ID)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		h.logger.Error("load counselor dashboard failed", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/counselors/dashboard.html", map[string]any{"Profile": profile}, http.StatusOK)
}

func (h *Handler) showOwnProfile(w http.ResponseWriter, r *http.Request) {
	user := authz.UserFromContext(r.Context())
	profile, err := h.service.GetProfile(r.Context(), user.ID)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		h.logger.Error("load counselor profile failed", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/counselors/profile.html", map[string]any{"Profile": profile, "Errors": formErrors{}}, http.StatusOK)
}

func (h *Handler) updateOwnProfile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	user := authz.UserFromContext(r.Context())
	input := parseProfileForm(r)

	if err := h.service.UpdateProfile(r.Context(), user.ID, user.ID, input); err != nil {
		h.logger.Error("update counselor profile failed", slog.Any("error", err))
		h.redirectWithFlash(w, r, "/counselor/profile", "error", shared.UserSafeMessage(err))
		return
	}
	h.redirectWithFlash(w, r, "/counselor/profile", "success", "Profile updated")
}

func parseProfileForm(r *http.Request) ProfileInput {
	maxCounselees, _ := strconv.Atoi(r.PostFormValue("max_counselees"))
	var specialties []string
	for _, raw := range strings.Split(r.PostFormValue("specialties"), ",") {
		if trimmed := strings.TrimSpace(raw); trimmed != "" {
			specialties = append(specialties, trimmed)
		}
	}
	return ProfileInput{
		Specialties:    specialties,
		Bio:            strings.TrimSpace(r.PostFormValue("bio")),
		MaxCounselees:  maxCounselees,
		IsAcceptingNew: r.PostFormValue("is_accepting_new") == "true",
	}
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
		Title:       "Counselors",
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
