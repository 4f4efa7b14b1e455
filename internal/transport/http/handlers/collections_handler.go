package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/vedran77/tandem/internal/logging"
	"github.com/vedran77/tandem/internal/service"
	"github.com/vedran77/tandem/internal/transport/http/middleware"
	"github.com/vedran77/tandem/pkg/validator"
)

const (
	maxGoalLength   = 500
	maxNoteLength   = 2000
	maxPhotoBytes   = 8 << 20
	defaultUpcoming = 5
)

// CollectionsHandler serves the shared collections: goals, events, memories
// and notes.
type CollectionsHandler struct {
	goals    *service.GoalService
	events   *service.EventService
	memories *service.MemoryService
	notes    *service.NoteService
	logger   logging.Logger
}

func NewCollectionsHandler(goals *service.GoalService, events *service.EventService, memories *service.MemoryService, notes *service.NoteService, logger logging.Logger) *CollectionsHandler {
	return &CollectionsHandler{goals: goals, events: events, memories: memories, notes: notes, logger: logger}
}

func sharedParam(r *http.Request) bool {
	shared, _ := strconv.ParseBool(r.URL.Query().Get("shared"))
	return shared
}

func (h *CollectionsHandler) ListGoals(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r.Context())

	var err error
	var out any
	if sharedParam(r) {
		out, err = h.goals.ListShared(r.Context(), sess)
	} else {
		out, err = h.goals.ListPersonal(r.Context(), sess)
	}
	if err != nil {
		writeServiceError(r.Context(), w, h.logger, "list goals", err)
		return
	}

	writeJSON(w, http.StatusOK, out)
}

func (h *CollectionsHandler) AddGoal(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Text   string `json:"text"`
		Shared bool   `json:"shared"`
	}
	if !decodeJSON(w, r, &input) {
		return
	}

	if errs := validator.ValidateText("text", input.Text, maxGoalLength); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	goal, err := h.goals.Add(r.Context(), middleware.GetSession(r.Context()), input.Text, input.Shared)
	if err != nil {
		writeServiceError(r.Context(), w, h.logger, "add goal", err)
		return
	}

	writeJSON(w, http.StatusCreated, goal)
}

func (h *CollectionsHandler) SetGoalCompleted(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Shared    bool `json:"shared"`
		Completed bool `json:"completed"`
	}
	if !decodeJSON(w, r, &input) {
		return
	}

	err := h.goals.SetCompleted(r.Context(), middleware.GetSession(r.Context()), r.PathValue("id"), input.Shared, input.Completed)
	if err != nil {
		writeServiceError(r.Context(), w, h.logger, "complete goal", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *CollectionsHandler) DeleteGoal(w http.ResponseWriter, r *http.Request) {
	err := h.goals.Delete(r.Context(), middleware.GetSession(r.Context()), r.PathValue("id"), sharedParam(r))
	if err != nil {
		writeServiceError(r.Context(), w, h.logger, "delete goal", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *CollectionsHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.events.List(r.Context(), middleware.GetSession(r.Context()))
	if err != nil {
		writeServiceError(r.Context(), w, h.logger, "list events", err)
		return
	}

	writeJSON(w, http.StatusOK, events)
}

func (h *CollectionsHandler) UpcomingEvents(w http.ResponseWriter, r *http.Request) {
	limit := defaultUpcoming
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "INVALID_LIMIT", "Limit must be a positive number")
			return
		}
		limit = n
	}

	events, err := h.events.Upcoming(r.Context(), middleware.GetSession(r.Context()), time.Now(), limit)
	if err != nil {
		writeServiceError(r.Context(), w, h.logger, "upcoming events", err)
		return
	}

	writeJSON(w, http.StatusOK, events)
}

func (h *CollectionsHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var input service.EventInput
	if !decodeJSON(w, r, &input) {
		return
	}

	if errs := validator.ValidateEvent(input.Title, input.Start, input.End); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	event, err := h.events.Create(r.Context(), middleware.GetSession(r.Context()), input)
	if err != nil {
		writeServiceError(r.Context(), w, h.logger, "create event", err)
		return
	}

	writeJSON(w, http.StatusCreated, event)
}

func (h *CollectionsHandler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	var input service.EventInput
	if !decodeJSON(w, r, &input) {
		return
	}

	if errs := validator.ValidateEvent(input.Title, input.Start, input.End); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	event, err := h.events.Update(r.Context(), middleware.GetSession(r.Context()), r.PathValue("id"), input)
	if err != nil {
		writeServiceError(r.Context(), w, h.logger, "update event", err)
		return
	}

	writeJSON(w, http.StatusOK, event)
}

func (h *CollectionsHandler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := h.events.Delete(r.Context(), middleware.GetSession(r.Context()), r.PathValue("id")); err != nil {
		writeServiceError(r.Context(), w, h.logger, "delete event", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *CollectionsHandler) ListMemories(w http.ResponseWriter, r *http.Request) {
	memories, err := h.memories.List(r.Context(), middleware.GetSession(r.Context()))
	if err != nil {
		writeServiceError(r.Context(), w, h.logger, "list memories", err)
		return
	}

	writeJSON(w, http.StatusOK, memories)
}

// AddMemory takes a multipart form with a "photo" file and an optional
// "caption".
func (h *CollectionsHandler) AddMemory(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxPhotoBytes+maxJSONBody)
	if err := r.ParseMultipartForm(maxPhotoBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "TOO_LARGE", "Photo is too large")
			return
		}
		writeError(w, http.StatusBadRequest, "INVALID_FORM", "Expected a multipart form")
		return
	}

	file, _, err := r.FormFile("photo")
	if err != nil {
		writeError(w, http.StatusBadRequest, "MISSING_PHOTO", "Photo is required")
		return
	}
	defer file.Close()

	image, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_FORM", "Could not read photo")
		return
	}

	memory, err := h.memories.Add(r.Context(), middleware.GetSession(r.Context()), r.FormValue("caption"), image)
	if err != nil {
		writeServiceError(r.Context(), w, h.logger, "add memory", err)
		return
	}

	writeJSON(w, http.StatusCreated, memory)
}

func (h *CollectionsHandler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	favorite, err := h.memories.ToggleFavorite(r.Context(), middleware.GetSession(r.Context()), r.PathValue("id"))
	if err != nil {
		writeServiceError(r.Context(), w, h.logger, "toggle favorite", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"favorite": favorite})
}

func (h *CollectionsHandler) DeleteMemory(w http.ResponseWriter, r *http.Request) {
	if err := h.memories.Delete(r.Context(), middleware.GetSession(r.Context()), r.PathValue("id")); err != nil {
		writeServiceError(r.Context(), w, h.logger, "delete memory", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *CollectionsHandler) ListNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := h.notes.List(r.Context(), middleware.GetSession(r.Context()))
	if err != nil {
		writeServiceError(r.Context(), w, h.logger, "list notes", err)
		return
	}

	writeJSON(w, http.StatusOK, notes)
}

func (h *CollectionsHandler) AddNote(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Text string `json:"text"`
	}
	if !decodeJSON(w, r, &input) {
		return
	}

	if errs := validator.ValidateText("text", input.Text, maxNoteLength); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	note, err := h.notes.Add(r.Context(), middleware.GetSession(r.Context()), input.Text)
	if err != nil {
		writeServiceError(r.Context(), w, h.logger, "add note", err)
		return
	}

	writeJSON(w, http.StatusCreated, note)
}

func (h *CollectionsHandler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	if err := h.notes.Delete(r.Context(), middleware.GetSession(r.Context()), r.PathValue("id")); err != nil {
		writeServiceError(r.Context(), w, h.logger, "delete note", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
