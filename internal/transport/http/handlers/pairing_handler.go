package handlers

import (
	"net/http"

	"github.com/vedran77/tandem/internal/logging"
	"github.com/vedran77/tandem/internal/service"
	"github.com/vedran77/tandem/internal/transport/http/middleware"
)

type PairingHandler struct {
	pairing *service.PairingService
	logger  logging.Logger
}

func NewPairingHandler(pairing *service.PairingService, logger logging.Logger) *PairingHandler {
	return &PairingHandler{pairing: pairing, logger: logger}
}

func (h *PairingHandler) CreateInvite(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r.Context())

	code, err := h.pairing.CreateInvite(r.Context(), sess.AccountID)
	if err != nil {
		writeServiceError(r.Context(), w, h.logger, "create invite", err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"code": code})
}

func (h *PairingHandler) RedeemInvite(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r.Context())

	partnerID, err := h.pairing.RedeemInvite(r.Context(), r.PathValue("code"), sess.AccountID)
	if err != nil {
		writeServiceError(r.Context(), w, h.logger, "redeem invite", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"partnerId": partnerID})
}

func (h *PairingHandler) Search(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r.Context())

	accounts, err := h.pairing.SearchAccounts(r.Context(), sess, r.URL.Query().Get("q"))
	if err != nil {
		writeServiceError(r.Context(), w, h.logger, "search accounts", err)
		return
	}

	writeJSON(w, http.StatusOK, accounts)
}

func (h *PairingHandler) FindByEmail(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r.Context())

	email := r.URL.Query().Get("email")
	if email == "" {
		writeError(w, http.StatusBadRequest, "MISSING_EMAIL", "Email is required")
		return
	}

	account, err := h.pairing.FindByEmail(r.Context(), sess, email)
	if err != nil {
		writeServiceError(r.Context(), w, h.logger, "find account", err)
		return
	}

	writeJSON(w, http.StatusOK, account)
}

func (h *PairingHandler) SendRequest(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r.Context())

	var input struct {
		To string `json:"to"`
	}
	if !decodeJSON(w, r, &input) {
		return
	}
	if input.To == "" {
		writeError(w, http.StatusBadRequest, "MISSING_RECIPIENT", "Recipient is required")
		return
	}

	req, err := h.pairing.SendConnectionRequest(r.Context(), sess, input.To)
	if err != nil {
		writeServiceError(r.Context(), w, h.logger, "send connection request", err)
		return
	}

	writeJSON(w, http.StatusCreated, req)
}

func (h *PairingHandler) ListIncoming(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.pairing.ListIncoming(r.Context(), middleware.GetSession(r.Context()))
	if err != nil {
		writeServiceError(r.Context(), w, h.logger, "list incoming requests", err)
		return
	}

	writeJSON(w, http.StatusOK, reqs)
}

func (h *PairingHandler) ListOutgoing(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.pairing.ListOutgoing(r.Context(), middleware.GetSession(r.Context()))
	if err != nil {
		writeServiceError(r.Context(), w, h.logger, "list outgoing requests", err)
		return
	}

	writeJSON(w, http.StatusOK, reqs)
}

func (h *PairingHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, true)
}

func (h *PairingHandler) Decline(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, false)
}

func (h *PairingHandler) respond(w http.ResponseWriter, r *http.Request, accept bool) {
	sess := middleware.GetSession(r.Context())

	req, err := h.pairing.RespondToRequest(r.Context(), sess, r.PathValue("id"), accept)
	if err != nil {
		writeServiceError(r.Context(), w, h.logger, "respond to request", err)
		return
	}

	writeJSON(w, http.StatusOK, req)
}

func (h *PairingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r.Context())

	if err := h.pairing.CancelRequest(r.Context(), sess, r.PathValue("id")); err != nil {
		writeServiceError(r.Context(), w, h.logger, "cancel request", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *PairingHandler) RemovePartner(w http.ResponseWriter, r *http.Request) {
	if err := h.pairing.RemovePartner(r.Context(), middleware.GetSession(r.Context())); err != nil {
		writeServiceError(r.Context(), w, h.logger, "remove partner", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
