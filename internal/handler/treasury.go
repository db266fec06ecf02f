package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dukerupert/kazna/internal/auth"
	"github.com/dukerupert/kazna/internal/model"
	"github.com/dukerupert/kazna/internal/period"
	"github.com/dukerupert/kazna/internal/store"
	"github.com/dukerupert/kazna/internal/treasury"
	"github.com/shopspring/decimal"
)

const maxTransactionLimit = 500

type TreasuryHandler struct {
	service *treasury.Service
	logger  *slog.Logger
}

func NewTreasuryHandler(svc *treasury.Service, logger *slog.Logger) *TreasuryHandler {
	return &TreasuryHandler{service: svc, logger: logger}
}

// Dashboard handles GET /api/dashboard
func (h *TreasuryHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.service.Dashboard(r.Context(), auth.IsAdmin(r.Context()))
	if err != nil {
		writeServiceError(w, h.logger, "load dashboard", err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// ListFamilies handles GET /api/families
func (h *TreasuryHandler) ListFamilies(w http.ResponseWriter, r *http.Request) {
	families, err := h.service.Families(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, "list families", err)
		return
	}
	writeJSON(w, http.StatusOK, families)
}

// ListTransactions handles GET /api/transactions?type=&month=&limit=
func (h *TreasuryHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.TransactionFilter{
		Kind:  model.TransactionKind(q.Get("type")),
		Month: q.Get("month"),
	}
	if filter.Kind != "" && !filter.Kind.Valid() {
		writeError(w, http.StatusBadRequest, "type must be deposit, withdrawal or system")
		return
	}
	if filter.Month != "" {
		if _, err := period.Parse(filter.Month, time.UTC); err != nil {
			writeError(w, http.StatusBadRequest, "month must be YYYY-MM")
			return
		}
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxTransactionLimit {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		filter.Limit = n
	}

	txs, err := h.service.Transactions(r.Context(), auth.IsAdmin(r.Context()), filter)
	if err != nil {
		writeServiceError(w, h.logger, "list transactions", err)
		return
	}
	if txs == nil {
		txs = []model.Transaction{}
	}
	writeJSON(w, http.StatusOK, txs)
}

// CreateFamily handles POST /api/families
func (h *TreasuryHandler) CreateFamily(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	f, err := h.service.AddFamily(r.Context(), req.Name)
	if err != nil {
		writeServiceError(w, h.logger, "create family", err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

// DeleteFamily handles DELETE /api/families/{id}?confirm=true
func (h *TreasuryHandler) DeleteFamily(w http.ResponseWriter, r *http.Request) {
	confirm, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))

	removal, err := h.service.DeleteFamily(r.Context(), r.PathValue("id"), confirm)
	if err != nil {
		writeServiceError(w, h.logger, "delete family", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"family": removal.Family, "audit": removal.Audit})
}

// ResetFamily handles POST /api/families/{id}/reset
func (h *TreasuryHandler) ResetFamily(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Confirm bool `json:"confirm"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.service.ResetFamily(r.Context(), r.PathValue("id"), req.Confirm)
	if err != nil {
		writeServiceError(w, h.logger, "reset family", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"family": res.Family, "cleared": res.Cleared, "audit": res.Audit})
}

// CreateMember handles POST /api/families/{id}/members
func (h *TreasuryHandler) CreateMember(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	m, err := h.service.AddMember(r.Context(), r.PathValue("id"), req.Name)
	if err != nil {
		writeServiceError(w, h.logger, "create member", err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

// DeleteMember handles DELETE /api/families/{id}/members/{member_id}
func (h *TreasuryHandler) DeleteMember(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ConfirmName string `json:"confirm_name"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	removal, err := h.service.DeleteMember(r.Context(), r.PathValue("id"), r.PathValue("member_id"), req.ConfirmName)
	if err != nil {
		writeServiceError(w, h.logger, "delete member", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"member": removal.Member, "audit": removal.Audit})
}

// TogglePayment handles POST /api/families/{id}/members/{member_id}/payment
func (h *TreasuryHandler) TogglePayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ExpectedVersion int64 `json:"expected_version"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.service.TogglePayment(r.Context(), treasury.TogglePaymentInput{
		FamilyID:        r.PathValue("id"),
		MemberID:        r.PathValue("member_id"),
		ExpectedVersion: req.ExpectedVersion,
	})
	if err != nil {
		writeServiceError(w, h.logger, "toggle payment", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"member":    res.Member,
		"deposit":   res.Deposit,
		"retracted": res.Retracted,
	})
}

// CreateWithdrawal handles POST /api/withdrawals
func (h *TreasuryHandler) CreateWithdrawal(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount decimal.Decimal `json:"amount"`
		Reason string          `json:"reason"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	t, err := h.service.RecordWithdrawal(r.Context(), req.Amount, req.Reason)
	if err != nil {
		writeServiceError(w, h.logger, "record withdrawal", err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}
