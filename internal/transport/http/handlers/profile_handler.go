package handlers

import (
	"net/http"

	"github.com/vedran77/tandem/internal/domain"
	"github.com/vedran77/tandem/internal/logging"
	"github.com/vedran77/tandem/internal/service"
	"github.com/vedran77/tandem/internal/transport/http/middleware"
	"github.com/vedran77/tandem/pkg/validator"
)

type ProfileHandler struct {
	profiles      *service.ProfileService
	notifications *service.NotificationService
	dashboard     *service.DashboardService
	logger        logging.Logger
}

func NewProfileHandler(profiles *service.ProfileService, notifications *service.NotificationService, dashboard *service.DashboardService, logger logging.Logger) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, notifications: notifications, dashboard: dashboard, logger: logger}
}

func (h *ProfileHandler) Me(w http.ResponseWriter, r *http.Request) {
	account, err := h.profiles.Get(r.Context(), middleware.GetSession(r.Context()))
	if err != nil {
		writeServiceError(r.Context(), w, h.logger, "get profile", err)
		return
	}

	writeJSON(w, http.StatusOK, account)
}

func (h *ProfileHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var input domain.ProfileUpdate
	if !decodeJSON(w, r, &input) {
		return
	}

	if errs := validator.ValidateProfile(input.Username, input.Location); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	account, err := h.profiles.UpdateProfile(r.Context(), middleware.GetSession(r.Context()), input)
	if err != nil {
		writeServiceError(r.Context(), w, h.logger, "update profile", err)
		return
	}

	writeJSON(w, http.StatusOK, account)
}

func (h *ProfileHandler) Partner(w http.ResponseWriter, r *http.Request) {
	partner, err := h.profiles.GetPartner(r.Context(), middleware.GetSession(r.Context()))
	if err != nil {
		writeServiceError(r.Context(), w, h.logger, "get partner", err)
		return
	}

	writeJSON(w, http.StatusOK, partner)
}

func (h *ProfileHandler) Mailbox(w http.ResponseWriter, r *http.Request) {
	mb, err := h.notifications.Get(r.Context(), middleware.GetSession(r.Context()))
	if err != nil {
		writeServiceError(r.Context(), w, h.logger, "get notifications", err)
		return
	}

	writeJSON(w, http.StatusOK, mb)
}

func (h *ProfileHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	if err := h.notifications.MarkRead(r.Context(), middleware.GetSession(r.Context())); err != nil {
		writeServiceError(r.Context(), w, h.logger, "mark notification read", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *ProfileHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.dashboard.Overview(r.Context(), middleware.GetSession(r.Context()))
	if err != nil {
		writeServiceError(r.Context(), w, h.logger, "dashboard", err)
		return
	}

	writeJSON(w, http.StatusOK, d)
}
