package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vedran77/tandem/internal/logging"
	"github.com/vedran77/tandem/internal/service"
	"github.com/vedran77/tandem/pkg/validator"
)

const maxJSONBody = 1 << 20

type errorMapping struct {
	err     error
	status  int
	code    string
	message string
}

var serviceErrors = []errorMapping{
	{service.ErrInvalidInvite, http.StatusBadRequest, "INVALID_INVITE", "Invite code is invalid or already used"},
	{service.ErrSelfRequest, http.StatusBadRequest, "SELF_REQUEST", "Cannot send a request to yourself"},
	{service.ErrInvalidInput, http.StatusBadRequest, "INVALID_INPUT", "Invalid input"},
	{service.ErrNotFound, http.StatusNotFound, "NOT_FOUND", "Not found"},
	{service.ErrAlreadyPaired, http.StatusConflict, "ALREADY_PAIRED", "One of the accounts already has a partner"},
	{service.ErrRequestNotPending, http.StatusConflict, "NOT_PENDING", "Request is no longer pending"},
	{service.ErrNoPartner, http.StatusConflict, "NO_PARTNER", "Connect with a partner first"},
	{service.ErrEmailTaken, http.StatusConflict, "EMAIL_TAKEN", "Email is already registered"},
	{service.ErrNotRequestRecipient, http.StatusForbidden, "FORBIDDEN", "Only the recipient can respond to this request"},
	{service.ErrNotRequestSender, http.StatusForbidden, "FORBIDDEN", "Only the sender can cancel this request"},
	{service.ErrNotMember, http.StatusForbidden, "FORBIDDEN", "Not shared with you"},
	{service.ErrNotSender, http.StatusForbidden, "FORBIDDEN", "Only the sender can delete this message"},
	{service.ErrInvalidCreds, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password"},
	{service.ErrInvalidToken, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid identity token"},
	{service.ErrUnauthenticated, http.StatusUnauthorized, "UNAUTHORIZED", "Not signed in"},
	{service.ErrUploadFailure, http.StatusBadGateway, "UPLOAD_FAILED", "Upload failed, please try again"},
	{service.ErrStoreWrite, http.StatusServiceUnavailable, "STORE_WRITE_FAILED", "Could not save, please try again"},
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}

func writeValidationErrors(w http.ResponseWriter, errs validator.ValidationErrors) {
	writeJSON(w, http.StatusBadRequest, map[string]any{
		"error": map[string]any{
			"code":   "VALIDATION_ERROR",
			"fields": errs,
		},
	})
}

// writeServiceError maps a service error onto the error envelope. Anything
// that is not a known domain error is logged.
func writeServiceError(ctx context.Context, w http.ResponseWriter, logger logging.Logger, op string, err error) {
	for _, m := range serviceErrors {
		if errors.Is(err, m.err) {
			if m.status >= http.StatusInternalServerError {
				logger.Error(ctx, op+" failed", "error", err)
			}
			writeError(w, m.status, m.code, m.message)
			return
		}
	}
	logger.Error(ctx, op+" failed", "error", err)
	writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return false
	}
	return true
}
