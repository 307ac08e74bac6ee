package counselees

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/brightpath-care/brightpath/internal/authz"
	"github.com/brightpath-care/brightpath/internal/shared"
	"github.com/brightpath-care/brightpath/internal/view"
)

// Handler manages counselee endpoints across the three portals.
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

// MountAdminRoutes registers counselee administration routes.
func (h *Handler) MountAdminRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAny(authz.RoleAdmin))
		r.Get("/counselees", h.listAll)
		r.Post("/counselees/{id}/assign", h.assignCounselor)
		r.Post("/counselees/{id}/status", h.updateStatus)
	})
}

// MountCounselorRoutes registers the counselor's counselee routes.
func (h *Handler) MountCounselorRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAny(authz.RoleAdmin, authz.RoleCounselor))
		r.Get("/counselees", h.listOwn)
		r.Get("/counselees/generate", h.showGenerateForm)
		r.Post("/counselees/generate", h.generateAccount)
		r.Post("/counselees/{id}/status", h.updateStatus)
	})
}

// MountPortalRoutes registers the counselee's own portal routes.
func (h *Handler) MountPortalRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAny(authz.RoleCounselee))
		r.Get("/home", h.showHome)
	})
}

type formErrors map[string]string

func (h *Handler) listAll(w http.ResponseWriter, r *http.Request) {
	h.renderList(w, r, nil)
}

func (h *Handler) listOwn(w http.ResponseWriter, r *http.Request) {
	user := authz.UserFromContext(r.Context())
	id := user.ID
	h.renderList(w, r, &id)
}

func (h *Handler) renderList(w http.ResponseWriter, r *http.Request, counselorID *uuid.UUID) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	filter := ListFilter{CounselorID: counselorID, Page: page}
	if raw := r.URL.Query().Get("status"); raw != "" {
		if status, err := ParseAssignmentStatus(raw); err == nil {
			filter.Status = status
		}
	}

	summaries, pagination, err := h.service.ListCounselees(r.Context(), filter)
	if err != nil {
		h.logger.Error("list counselees failed", slog.Any("error", err))
		h.render(w, r, "pages/counselees/list.html", map[string]any{
			"Errors":     formErrors{"general": shared.UserSafeMessage(err)},
			"Counselees": []Summary{},
			"Pagination": shared.Pagination{},
			"Filter":     filter,
			"Statuses":   []AssignmentStatus{StatusPending, StatusActive, StatusCompleted, StatusArchived},
		}, http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/counselees/list.html", map[string]any{
		"Counselees": summaries,
		"Pagination": pagination,
		"Filter":     filter,
		"Statuses":   []AssignmentStatus{StatusPending, StatusActive, StatusCompleted, StatusArchived},
	}, http.StatusOK)
}

func (h *Handler) assignCounselor(w http.ResponseWriter, r *http.Request) {
	counseleeID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	counselorID, err := uuid.Parse(r.PostFormValue("counselor_id"))
	if err != nil {
		h.redirectWithFlash(w, r, "/admin/counselees", "error", "A counselor must be selected")
		return
	}

	err = h.service.AssignCounselor(r.Context(), h.actorID(r), counseleeID, counselorID)
	switch {
	case errors.Is(err, ErrCounselorNotAccepting):
		h.redirectWithFlash(w, r, "/admin/counselees", "error", "This counselor is not accepting new counselees")
	case errors.Is(err, ErrCounselorAtCapacity):
		h.redirectWithFlash(w, r, "/admin/counselees", "error", "This counselor has reached their capacity")
	case err != nil:
		h.logger.Error("assign counselor failed", slog.Any("error", err))
		h.redirectWithFlash(w, r, "/admin/counselees", "error", shared.UserSafeMessage(err))
	default:
		h.redirectWithFlash(w, r, "/admin/counselees", "success", "Counselor assigned")
	}
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	counseleeID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	status, err := ParseAssignmentStatus(r.PostFormValue("status"))
	if err != nil {
		h.redirectWithFlash(w, r, h.listPath(r), "error", "Unknown status")
		return
	}
	if err := h.service.UpdateStatus(r.Context(), h.actorID(r), counseleeID, status); err != nil {
		h.logger.Error("update status failed", slog.Any("error", err))
		h.redirectWithFlash(w, r, h.listPath(r), "error", shared.UserSafeMessage(err))
		return
	}
	h.redirectWithFlash(w, r, h.listPath(r), "success", "Status updated")
}

func (h *Handler) showGenerateForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "pages/counselees/generate.html", map[string]any{
		"Errors":       formErrors{},
		"SubmissionID": r.URL.Query().Get("submission_id"),
	}, http.StatusOK)
}

func (h *Handler) generateAccount(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	submissionID, err := uuid.Parse(r.PostFormValue("intake_submission_id"))
	if err != nil {
		h.render(w, r, "pages/counselees/generate.html", map[string]any{"Errors": formErrors{"intake_submission_id": "A valid submission id is required"}}, http.StatusBadRequest)
		return
	}
	input := GenerateAccountInput{
		IntakeSubmissionID: submissionID,
		Email:              r.PostFormValue("email"),
		FullName:           r.PostFormValue("full_name"),
	}

	account, err := h.service.GenerateAccount(r.Context(), h.actorID(r), input)
	if err != nil {
		message := shared.UserSafeMessage(err)
		switch {
		case errors.Is(err, ErrCounselorNotAccepting), errors.Is(err, ErrCounselorAtCapacity):
			message = "Your profile cannot take new counselees right now"
		case errors.Is(err, shared.ErrDuplicate):
			message = "An account with this email or submission already exists"
		}
		h.logger.Error("generate account failed", slog.Any("error", err))
		h.render(w, r, "pages/counselees/generate.html", map[string]any{"Errors": formErrors{"general": message}, "SubmissionID": submissionID.String()}, http.StatusBadRequest)
		return
	}

	// The generated password is displayed exactly once.
	h.render(w, r, "pages/counselees/generated.html", map[string]any{"Account": account}, http.StatusOK)
}

func (h *Handler) showHome(w http.ResponseWriter, r *http.Request) {
	user := authz.UserFromContext(r.Context())
	profile, err := h.service.GetOwnProfile(r.Context(), user.ID)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		h.logger.Error("load counselee home failed", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/counselees/home.html", map[string]any{"Profile": profile}, http.StatusOK)
}

func (h *Handler) listPath(r *http.Request) string {
	user := authz.UserFromContext(r.Context())
	if user != nil && user.IsAdmin() {
		return "/admin/counselees"
	}
	return "/counselor/counselees"
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
		Title:       "Counselees",
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
