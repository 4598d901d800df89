package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/permission-journal/internal/apperror"
	"github.com/sakif/permission-journal/internal/backup"
	"github.com/sakif/permission-journal/internal/service"
)

// maxBackupBody caps uploaded backup documents.
const maxBackupBody = 32 << 20

// BackupHandler exports, restores and resets the whole journal.
type BackupHandler struct {
	journal *service.Journal
	logger  *slog.Logger
	now     func() time.Time
}

// NewBackupHandler creates a BackupHandler.
func NewBackupHandler(journal *service.Journal, logger *slog.Logger) *BackupHandler {
	return &BackupHandler{journal: journal, logger: logger, now: time.Now}
}

// RestoreResponse reports how many records a restore imported.
type RestoreResponse struct {
	Permissions int `json:"permissions"`
	Categories  int `json:"categories"`
	Tags        int `json:"tags"`
}

// HandleExport downloads a version 1.0 backup document.
//
// HTTP: GET /api/backup
//
// The document is built completely before the first byte is written, so a
// read failure still gets a proper error status.
func (h *BackupHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	doc, err := backup.Export(r.Context(), h.journal, now)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	filename := fmt.Sprintf("journal-backup-%s.json", now.Format(dayLayout))
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if err := backup.Write(w, doc); err != nil {
		h.logger.Error("failed to write backup", slog.String("error", err.Error()))
		return
	}

	h.logger.Info("backup exported",
		slog.Int("permissions", len(doc.Permissions)),
		slog.Int("categories", len(doc.Categories)),
		slog.Int("tags", len(doc.Tags)),
	)
}

// HandleRestore imports a backup document, keeping its ids and timestamps.
// Records with matching ids are overwritten; everything else is left alone.
//
// HTTP: POST /api/backup
func (h *BackupHandler) HandleRestore(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBackupBody)
	doc, err := backup.Read(r.Body)
	if err != nil {
		if errors.Is(err, backup.ErrUnsupportedVersion) {
			writeError(w, h.logger, apperror.ValidationFailed("version", err.Error()))
			return
		}
		writeError(w, h.logger, apperror.ValidationFailed("body", err.Error()))
		return
	}

	records, err := doc.Records()
	if err != nil {
		writeError(w, h.logger, apperror.ValidationFailed("body", err.Error()))
		return
	}
	if err := h.journal.Import(r.Context(), records); err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, RestoreResponse{
		Permissions: len(doc.Permissions),
		Categories:  len(doc.Categories),
		Tags:        len(doc.Tags),
	})
}

// HandleReset deletes every permission, category and tag.
//
// HTTP: DELETE /api/journal
func (h *BackupHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	if err := h.journal.ResetAll(r.Context()); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
