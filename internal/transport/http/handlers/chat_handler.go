package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/vedran77/tandem/internal/logging"
	"github.com/vedran77/tandem/internal/service"
	"github.com/vedran77/tandem/internal/transport/http/middleware"
	"github.com/vedran77/tandem/pkg/validator"
)

const (
	maxTextLength = 4000
	maxAudioBytes = 10 << 20
)

type ChatHandler struct {
	chat   *service.ChatService
	typing *service.TypingService
	logger logging.Logger
}

func NewChatHandler(chat *service.ChatService, typing *service.TypingService, logger logging.Logger) *ChatHandler {
	return &ChatHandler{chat: chat, typing: typing, logger: logger}
}

func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "INVALID_LIMIT", "Limit must be a positive number")
			return
		}
		limit = n
	}

	msgs, err := h.chat.History(r.Context(), middleware.GetSession(r.Context()), limit)
	if err != nil {
		writeServiceError(r.Context(), w, h.logger, "chat history", err)
		return
	}

	writeJSON(w, http.StatusOK, msgs)
}

func (h *ChatHandler) SendText(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Text string `json:"text"`
	}
	if !decodeJSON(w, r, &input) {
		return
	}

	if errs := validator.ValidateText("text", input.Text, maxTextLength); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	msg, err := h.chat.SendText(r.Context(), middleware.GetSession(r.Context()), input.Text)
	if err != nil {
		writeServiceError(r.Context(), w, h.logger, "send message", err)
		return
	}

	writeJSON(w, http.StatusCreated, msg)
}

// SendAudio takes the raw recording as the request body.
func (h *ChatHandler) SendAudio(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxAudioBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "TOO_LARGE", "Recording is too large")
			return
		}
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "Could not read recording")
		return
	}
	if len(body) == 0 {
		writeError(w, http.StatusBadRequest, "EMPTY_AUDIO", "Recording is empty")
		return
	}

	msg, err := h.chat.SendAudio(r.Context(), middleware.GetSession(r.Context()), body)
	if err != nil {
		writeServiceError(r.Context(), w, h.logger, "send voice message", err)
		return
	}

	writeJSON(w, http.StatusCreated, msg)
}

func (h *ChatHandler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	if err := h.chat.DeleteMessage(r.Context(), middleware.GetSession(r.Context()), r.PathValue("id")); err != nil {
		writeServiceError(r.Context(), w, h.logger, "delete message", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Typing reports a keystroke, or an explicit stop when typing is false.
func (h *ChatHandler) Typing(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Typing bool `json:"typing"`
	}
	if !decodeJSON(w, r, &input) {
		return
	}

	sess := middleware.GetSession(r.Context())
	var err error
	if input.Typing {
		err = h.typing.Keystroke(r.Context(), sess)
	} else {
		err = h.typing.Stop(r.Context(), sess)
	}
	if err != nil {
		writeServiceError(r.Context(), w, h.logger, "typing", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
