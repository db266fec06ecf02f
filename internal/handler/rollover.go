package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/kazna/internal/rollover"
)

type RolloverHandler struct {
	controller *rollover.Controller
	logger     *slog.Logger
}

func NewRolloverHandler(c *rollover.Controller, logger *slog.Logger) *RolloverHandler {
	return &RolloverHandler{controller: c, logger: logger}
}

// Status handles GET /api/rollover
func (h *RolloverHandler) Status(w http.ResponseWriter, r *http.Request) {
	st, err := h.controller.Status(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, "load rollover status", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// Check handles POST /api/rollover/check
func (h *RolloverHandler) Check(w http.ResponseWriter, r *http.Request) {
	out, err := h.controller.Check(r.Context(), rollover.TriggerManual)
	if err != nil {
		writeServiceError(w, h.logger, "check rollover", err)
		return
	}
	writeJSON(w, http.StatusOK, outcomeResponse(out.Applied, out.Month, out.PreviousMonth, out.Cleared))
}

// Force handles POST /api/rollover/force with {confirm: true}.
func (h *RolloverHandler) Force(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Confirm bool `json:"confirm"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	out, err := h.controller.ForceReset(r.Context(), req.Confirm)
	if err != nil {
		writeServiceError(w, h.logger, "force rollover", err)
		return
	}
	writeJSON(w, http.StatusOK, outcomeResponse(out.Applied, out.Month, out.PreviousMonth, out.Cleared))
}

func outcomeResponse(applied bool, month, previous string, cleared int) map[string]any {
	return map[string]any{
		"applied":        applied,
		"month":          month,
		"previous_month": previous,
		"cleared":        cleared,
	}
}
