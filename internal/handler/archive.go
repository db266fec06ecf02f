package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strconv"

	"github.com/dukerupert/kazna/internal/archive"
	"github.com/dukerupert/kazna/internal/model"
)

type ArchiveHandler struct {
	manager *archive.Manager
	logger  *slog.Logger
}

func NewArchiveHandler(m *archive.Manager, logger *slog.Logger) *ArchiveHandler {
	return &ArchiveHandler{manager: m, logger: logger}
}

// List handles GET /api/archives
func (h *ArchiveHandler) List(w http.ResponseWriter, r *http.Request) {
	records, err := h.manager.List(100)
	if err != nil {
		h.logger.Error("list archives", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list archives")
		return
	}
	if records == nil {
		records = []model.Archive{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"enabled":  h.manager.Enabled(),
		"archives": records,
	})
}

// Download handles GET /api/archives/{id}/download and streams the
// encrypted statement as stored.
func (h *ArchiveHandler) Download(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	body, record, err := h.manager.Download(r.Context(), id)
	switch {
	case errors.Is(err, archive.ErrDisabled):
		writeError(w, http.StatusServiceUnavailable, "archive storage is not configured")
		return
	case errors.Is(err, archive.ErrNotFound):
		writeError(w, http.StatusNotFound, "archive not found")
		return
	case err != nil:
		h.logger.Error("download archive", "archive_id", id, "error", err)
		writeError(w, http.StatusBadGateway, "failed to download archive")
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", path.Base(record.S3Key)))
	if record.SizeBytes > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(record.SizeBytes, 10))
	}
	if _, err := io.Copy(w, body); err != nil {
		h.logger.Warn("stream archive", "archive_id", id, "error", err)
	}
}
