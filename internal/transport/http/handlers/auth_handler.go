package handlers

import (
	"net/http"

	"github.com/vedran77/tandem/internal/logging"
	"github.com/vedran77/tandem/internal/service"
	"github.com/vedran77/tandem/internal/transport/http/middleware"
	"github.com/vedran77/tandem/pkg/validator"
)

type AuthHandler struct {
	authService *service.AuthService
	logger      logging.Logger
}

func NewAuthHandler(authService *service.AuthService, logger logging.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, logger: logger}
}

func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var input service.SignUpInput
	if !decodeJSON(w, r, &input) {
		return
	}

	if errs := validator.ValidateSignUp(input.Email, input.Password, input.InviteCode); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	resp, err := h.authService.SignUp(r.Context(), input)
	if err != nil {
		writeServiceError(r.Context(), w, h.logger, "sign up", err)
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var input service.SignInInput
	if !decodeJSON(w, r, &input) {
		return
	}

	if errs := validator.ValidateSignIn(input.Email, input.Password); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	resp, err := h.authService.SignIn(r.Context(), input)
	if err != nil {
		writeServiceError(r.Context(), w, h.logger, "sign in", err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *AuthHandler) SignInWithProvider(w http.ResponseWriter, r *http.Request) {
	var input service.ProviderInput
	if !decodeJSON(w, r, &input) {
		return
	}
	input.Provider = r.PathValue("provider")

	resp, err := h.authService.SignInWithProvider(r.Context(), input)
	if err != nil {
		writeServiceError(r.Context(), w, h.logger, "provider sign in", err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.authService.SignOut(r.Context(), middleware.GetSession(r.Context())); err != nil {
		writeServiceError(r.Context(), w, h.logger, "sign out", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
