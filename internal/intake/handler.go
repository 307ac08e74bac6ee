package intake

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/brightpath-care/brightpath/internal/authz"
	"github.com/brightpath-care/brightpath/internal/platform/httpx"
	"github.com/brightpath-care/brightpath/internal/shared"
	"github.com/brightpath-care/brightpath/internal/view"
)

// Handler manages the webhook receiver and the submission pages.
type Handler struct {
	logger        *slog.Logger
	service       *Service
	templates     *view.Engine
	csrf          *shared.CSRFManager
	authz         authz.Middleware
	webhookSecret string
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager, mw authz.Middleware, webhookSecret string) *Handler {
	return &Handler{logger: logger, service: service, templates: templates, csrf: csrf, authz: mw, webhookSecret: webhookSecret}
}

// MountWebhookRoutes registers the receiver endpoints. The secret can
// arrive as a trailing path segment, so both shapes are registered.
func (h *Handler) MountWebhookRoutes(r chi.Router) {
	r.Post("/intake", h.handleWebhook)
	r.Post("/intake/{secret}", h.handleWebhook)
}

// MountAdminRoutes registers submission pages for administrators.
func (h *Handler) MountAdminRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAny(authz.RoleAdmin))
		r.Get("/intake", h.listSubmissions)
		r.Get("/intake/{id}", h.showSubmission)
	})
}

// MountCounselorRoutes registers submission pages for counselors. The
// listing is restricted to unlinked submissions and their own
// counselees' submissions.
func (h *Handler) MountCounselorRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAny(authz.RoleAdmin, authz.RoleCounselor))
		r.Get("/intake", h.listSubmissions)
		r.Get("/intake/{id}", h.showSubmission)
	})
}

func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if err := VerifySecret(SecretFromRequest(r), h.webhookSecret); err != nil {
		h.logger.Warn("webhook rejected", slog.String("remote", r.RemoteAddr))
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid webhook secret")
		return
	}

	incoming, err := ParseRequest(r)
	if err != nil {
		h.logger.Warn("webhook parse failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "unparseable webhook payload")
		return
	}

	sub, duplicate, err := h.service.Ingest(r.Context(), *incoming)
	if err != nil {
		h.logger.Error("webhook ingest failed", slog.String("submission_id", incoming.SubmissionID), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	if duplicate {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "duplicate"})
		return
	}
	h.logger.Info("intake submission received",
		slog.String("submission_id", sub.SubmissionID),
		slog.String("form_id", sub.FormID))
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "received", "id": sub.ID.String()})
}

type formErrors map[string]string

func (h *Handler) listSubmissions(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	filter := ListFilter{
		OnlyUnlinked: r.URL.Query().Get("unlinked") == "true",
		Page:         page,
	}
	user := authz.UserFromContext(r.Context())
	if user != nil && !user.IsAdmin() {
		id := user.ID
		filter.CounselorID = &id
	}

	subs, pagination, err := h.service.ListSubmissions(r.Context(), filter)
	if err != nil {
		h.logger.Error("list submissions failed", slog.Any("error", err))
		h.render(w, r, "pages/intake/list.html", map[string]any{
			"Errors":      formErrors{"general": shared.UserSafeMessage(err)},
			"Submissions": []Submission{},
			"Pagination":  shared.Pagination{},
			"Filter":      filter,
		}, http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/intake/list.html", map[string]any{
		"Submissions": subs,
		"Pagination":  pagination,
		"Filter":      filter,
	}, http.StatusOK)
}

func (h *Handler) showSubmission(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	sub, err := h.service.GetSubmission(r.Context(), id)
	if err != nil {
		h.logger.Error("load submission failed", slog.Any("error", err))
		http.NotFound(w, r)
		return
	}
	h.render(w, r, "pages/intake/detail.html", map[string]any{"Submission": sub}, http.StatusOK)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, template string, data map[string]any, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{
		Title:       "Intake",
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
