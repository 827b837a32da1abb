// Package handler exposes the answer store over a JSON HTTP API: answer and
// question-snapshot persistence, attachments, quiz definitions and state,
// export download, remote submission, and backup restore.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/aburossi/textboxv2/internal/autosave"
	"github.com/aburossi/textboxv2/internal/backup"
	"github.com/aburossi/textboxv2/internal/export"
	appI18n "github.com/aburossi/textboxv2/internal/i18n"
	"github.com/aburossi/textboxv2/internal/model"
	"github.com/aburossi/textboxv2/internal/quiz"
	"github.com/aburossi/textboxv2/internal/store"
	"github.com/aburossi/textboxv2/internal/storekey"
	"github.com/aburossi/textboxv2/internal/submit"
)

// maxRestoreBytes bounds backup uploads; attachments are inline data URLs.
const maxRestoreBytes = 64 << 20

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store  *store.Store
	agg    *export.Aggregator
	submit *submit.Client
	saver  *autosave.Debouncer
	config model.ServerConfig
}

// New creates a new Handler.
func New(s *store.Store, agg *export.Aggregator, sub *submit.Client, saver *autosave.Debouncer, cfg model.ServerConfig) *Handler {
	return &Handler{store: s, agg: agg, submit: sub, saver: saver, config: cfg}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/units", h.handleListUnits)
		r.Route("/assignments/{assignmentID}/subs/{subID}", func(r chi.Router) {
			r.Get("/answer", h.handleGetAnswer)
			r.Put("/answer", h.handlePutAnswer)
			r.Get("/questions", h.handleGetQuestions)
			r.Put("/questions", h.handlePutQuestions)
			r.Get("/attachments", h.handleListAttachments)
			r.Post("/attachments", h.handleAddAttachment)
			r.Get("/quizstate", h.handleGetQuizState)
			r.Put("/quizstate", h.handlePutQuizState)
		})
		r.Delete("/attachments/{id}", h.handleRemoveAttachment)
		r.Get("/quizzes/{name}", h.handleQuizDefinition)
		r.Post("/quizzes/{name}/grade", h.handleQuizGrade)
		r.Get("/export", h.handleExportAll)
		r.Get("/export/{assignmentID}", h.handleExportAssignment)
		r.Post("/submit", h.handleSubmit)
		r.Post("/restore", h.handleRestore)
		r.Delete("/data", h.handleClearAll)
	})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, r *http.Request, status int, msgID string) {
	respondJSON(w, status, map[string]string{"error": appI18n.T(r.Context(), msgID)})
}

func unitFromRequest(r *http.Request) (storekey.Unit, error) {
	u := storekey.Unit{
		AssignmentID: chi.URLParam(r, "assignmentID"),
		SubID:        chi.URLParam(r, "subID"),
	}
	return u, storekey.Validate(u)
}

func (h *Handler) handleListUnits(w http.ResponseWriter, r *http.Request) {
	units, err := h.store.EnumerateUnits(r.URL.Query().Get("assignmentId"))
	if err != nil {
		slog.Error("enumerate units", "error", err)
		respondError(w, r, http.StatusInternalServerError, "StorageError")
		return
	}
	type unitJSON struct {
		AssignmentID string `json:"assignmentId"`
		SubID        string `json:"subId"`
	}
	out := make([]unitJSON, 0, len(units))
	for _, u := range units {
		out = append(out, unitJSON{AssignmentID: u.AssignmentID, SubID: u.SubID})
	}
	respondJSON(w, http.StatusOK, map[string]any{"units": out})
}

func (h *Handler) handleGetAnswer(w http.ResponseWriter, r *http.Request) {
	u, err := unitFromRequest(r)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "InvalidUnit")
		return
	}
	answer, present, err := h.store.LoadAnswer(u)
	if err != nil {
		slog.Error("load answer", "error", err)
		respondError(w, r, http.StatusInternalServerError, "StorageError")
		return
	}
	// A pending draft is newer than the last flush.
	if draft, ok := h.saver.PendingDrafts()[u]; ok {
		answer, present = draft, true
	}
	respondJSON(w, http.StatusOK, map[string]any{"answer": answer, "present": present})
}

func (h *Handler) handlePutAnswer(w http.ResponseWriter, r *http.Request) {
	u, err := unitFromRequest(r)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "InvalidUnit")
		return
	}
	var body struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, r, http.StatusBadRequest, "InvalidBody")
		return
	}
	// Empty and sentinel content never overwrites a real answer.
	if body.Content == "" || body.Content == store.EmptyEditorSentinel {
		respondJSON(w, http.StatusOK, map[string]bool{"saved": false})
		return
	}
	h.saver.Trigger(u, body.Content)
	respondJSON(w, http.StatusOK, map[string]bool{"saved": true})
}

func (h *Handler) handleGetQuestions(w http.ResponseWriter, r *http.Request) {
	u, err := unitFromRequest(r)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "InvalidUnit")
		return
	}
	questions, present, err := h.store.LoadQuestionSnapshot(u)
	if err != nil {
		slog.Error("load questions", "error", err)
		respondError(w, r, http.StatusInternalServerError, "StorageError")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"questions": questions,
		"order":     model.OrderedQuestionKeys(questions),
		"present":   present,
	})
}

func (h *Handler) handlePutQuestions(w http.ResponseWriter, r *http.Request) {
	u, err := unitFromRequest(r)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "InvalidUnit")
		return
	}
	var body struct {
		Questions map[string]string `json:"questions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, r, http.StatusBadRequest, "InvalidBody")
		return
	}
	saved, err := h.store.SaveQuestionSnapshot(u, body.Questions)
	if err != nil {
		slog.Error("save questions", "error", err)
		respondError(w, r, http.StatusInternalServerError, "StorageError")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"saved": saved})
}

func (h *Handler) handleListAttachments(w http.ResponseWriter, r *http.Request) {
	u, err := unitFromRequest(r)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "InvalidUnit")
		return
	}
	attachments, err := h.store.ListAttachmentsByUnit(u)
	if err != nil {
		slog.Error("list attachments", "error", err)
		respondError(w, r, http.StatusInternalServerError, "StorageError")
		return
	}
	if attachments == nil {
		attachments = []model.Attachment{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"attachments": attachments})
}

func (h *Handler) handleAddAttachment(w http.ResponseWriter, r *http.Request) {
	u, err := unitFromRequest(r)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "InvalidUnit")
		return
	}
	var att model.Attachment
	if err := json.NewDecoder(r.Body).Decode(&att); err != nil {
		respondError(w, r, http.StatusBadRequest, "InvalidBody")
		return
	}
	if att.FileName == "" || att.Data == "" {
		respondError(w, r, http.StatusBadRequest, "AttachmentInvalid")
		return
	}
	att.AssignmentID = u.AssignmentID
	att.SubID = u.SubID
	id, err := h.store.AddAttachment(att)
	if err != nil {
		slog.Error("add attachment", "error", err)
		respondError(w, r, http.StatusInternalServerError, "StorageError")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (h *Handler) handleRemoveAttachment(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "InvalidBody")
		return
	}
	if err := h.store.RemoveAttachment(id); err != nil {
		slog.Error("remove attachment", "error", err)
		respondError(w, r, http.StatusInternalServerError, "StorageError")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGetQuizState(w http.ResponseWriter, r *http.Request) {
	u, err := unitFromRequest(r)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "InvalidUnit")
		return
	}
	state, present, err := h.store.LoadQuizState(u)
	if err != nil {
		slog.Error("load quiz state", "error", err)
		respondError(w, r, http.StatusInternalServerError, "StorageError")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"state": state, "present": present})
}

func (h *Handler) handlePutQuizState(w http.ResponseWriter, r *http.Request) {
	u, err := unitFromRequest(r)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "InvalidUnit")
		return
	}
	var state model.QuizState
	if err := json.NewDecoder(r.Body).Decode(&state); err != nil {
		respondError(w, r, http.StatusBadRequest, "InvalidBody")
		return
	}
	saved, err := h.store.SaveQuizState(u, state)
	if err != nil {
		slog.Error("save quiz state", "error", err)
		respondError(w, r, http.StatusInternalServerError, "StorageError")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"saved": saved})
}

func (h *Handler) loadQuiz(r *http.Request) (*model.QuizDefinition, error) {
	name := filepath.Base(chi.URLParam(r, "name"))
	return quiz.Load(filepath.Join(h.config.QuizDir, name+".json"))
}

func (h *Handler) handleQuizDefinition(w http.ResponseWriter, r *http.Request) {
	def, err := h.loadQuiz(r)
	if err != nil {
		slog.Warn("load quiz", "error", err)
		respondError(w, r, http.StatusNotFound, "QuizNotFound")
		return
	}
	if r.URL.Query().Get("shuffle") == "true" {
		quiz.Shuffle(def.Questions)
	}
	respondJSON(w, http.StatusOK, def)
}

func (h *Handler) handleQuizGrade(w http.ResponseWriter, r *http.Request) {
	def, err := h.loadQuiz(r)
	if err != nil {
		slog.Warn("load quiz", "error", err)
		respondError(w, r, http.StatusNotFound, "QuizNotFound")
		return
	}
	var state model.QuizState
	if err := json.NewDecoder(r.Body).Decode(&state); err != nil {
		respondError(w, r, http.StatusBadRequest, "InvalidBody")
		return
	}
	respondJSON(w, http.StatusOK, quiz.Grade(def, state))
}

func (h *Handler) handleExportAll(w http.ResponseWriter, r *http.Request) {
	h.serveExport(w, r, "")
}

func (h *Handler) handleExportAssignment(w http.ResponseWriter, r *http.Request) {
	h.serveExport(w, r, chi.URLParam(r, "assignmentID"))
}

var unsafeFileChars = regexp.MustCompile(`[^a-zA-Z0-9_.-]`)

func (h *Handler) serveExport(w http.ResponseWriter, r *http.Request, assignmentID string) {
	env, err := h.gatherEnvelope(r.URL.Query().Get("identifier"), assignmentID)
	if err != nil {
		h.respondExportError(w, r, err)
		return
	}
	safeID := unsafeFileChars.ReplaceAllString(env.Identifier, "_")
	fileName := fmt.Sprintf("allgemeinbildung_export_%s_%s.json", safeID, env.CreatedAt.Format(time.DateOnly))
	w.Header().Set("Content-Disposition", `attachment; filename="`+fileName+`"`)
	respondJSON(w, http.StatusOK, env)
}

func (h *Handler) gatherEnvelope(identifier, assignmentID string) (*model.ExportEnvelope, error) {
	if assignmentID == "" {
		return h.agg.GatherAll(identifier)
	}
	return h.agg.GatherAssignment(identifier, assignmentID)
}

func (h *Handler) respondExportError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, export.ErrNoIdentifier):
		respondError(w, r, http.StatusBadRequest, "ExportIdentifierRequired")
	case errors.Is(err, export.ErrNoScope):
		respondError(w, r, http.StatusBadRequest, "ExportNoScope")
	case errors.Is(err, export.ErrNoData):
		respondError(w, r, http.StatusNotFound, "ExportNoData")
	default:
		slog.Error("gather export", "error", err)
		respondError(w, r, http.StatusInternalServerError, "StorageError")
	}
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Identifier   string `json:"identifier"`
		AssignmentID string `json:"assignmentId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, r, http.StatusBadRequest, "InvalidBody")
		return
	}
	env, err := h.gatherEnvelope(body.Identifier, body.AssignmentID)
	if err != nil {
		h.respondExportError(w, r, err)
		return
	}
	result, err := h.submit.Submit(r.Context(), env)
	if err != nil {
		if errors.Is(err, submit.ErrNotConfigured) {
			respondError(w, r, http.StatusBadRequest, "SubmitNotConfigured")
			return
		}
		slog.Error("submission failed", "error", err)
		respondJSON(w, http.StatusBadGateway, map[string]string{
			"error":  appI18n.T(r.Context(), "SubmitFailed"),
			"detail": err.Error(),
		})
		return
	}
	slog.Info("submission accepted", "identifier", env.Identifier, "file_name", result.FileName)
	respondJSON(w, http.StatusOK, result)
}

func (h *Handler) handleRestore(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(w, r)
	if err != nil {
		respondError(w, r, http.StatusRequestEntityTooLarge, "InvalidBody")
		return
	}
	ds, err := backup.Parse(data)
	if err != nil {
		slog.Warn("rejected backup file", "error", err)
		respondError(w, r, http.StatusBadRequest, "RestoreInvalid")
		return
	}
	// Pending drafts must not resurrect data the restore replaces.
	h.saver.Discard()
	if err := h.store.Restore(ds); err != nil {
		slog.Error("restore failed", "error", err)
		respondError(w, r, http.StatusInternalServerError, "RestoreFailed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": appI18n.T(r.Context(), "RestoreDone")})
}

func (h *Handler) handleClearAll(w http.ResponseWriter, r *http.Request) {
	h.saver.Discard()
	if err := h.store.ClearAll(); err != nil {
		slog.Error("clear all failed", "error", err)
		respondError(w, r, http.StatusInternalServerError, "StorageError")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": appI18n.T(r.Context(), "ClearDone")})
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRestoreBytes)
	defer r.Body.Close()
	return io.ReadAll(r.Body)
}
