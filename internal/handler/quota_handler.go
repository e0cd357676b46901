package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"nexodrive/internal/auth"
	"nexodrive/internal/domain"
	"nexodrive/internal/service"
)

type QuotaHandler struct {
	quotaService *service.QuotaService
}

func NewQuotaHandler(quotaService *service.QuotaService) *QuotaHandler {
	return &QuotaHandler{quotaService: quotaService}
}

// GetUsage возвращает сводку использования хранилища
func (h *QuotaHandler) GetUsage(w http.ResponseWriter, r *http.Request) {
	accountID, err := auth.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	summary, err := h.quotaService.GetUsageSummary(r.Context(), accountID)
	if err != nil {
		if errors.Is(err, service.ErrAccountNotFound) {
			http.Error(w, "Account not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summary)
}

// UpdateLimit меняет лимит хранилища аккаунта. Доступно только администратору.
// null в поле limit_mb означает безлимитный аккаунт.
func (h *QuotaHandler) UpdateLimit(w http.ResponseWriter, r *http.Request) {
	_, role, err := auth.VerifyTokenWithRole(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if role != domain.RoleAdmin {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	var req struct {
		AccountID uuid.UUID `json:"account_id"`
		LimitMb   *int64    `json:"limit_mb"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.LimitMb != nil && *req.LimitMb < 0 {
		http.Error(w, "Limit must not be negative", http.StatusBadRequest)
		return
	}

	if err := h.quotaService.UpdateQuotaLimit(r.Context(), req.AccountID, req.LimitMb); err != nil {
		if errors.Is(err, service.ErrAccountNotFound) {
			http.Error(w, "Account not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// Recalculate пересчитывает used_bytes аккаунта по живым версиям файлов
func (h *QuotaHandler) Recalculate(w http.ResponseWriter, r *http.Request) {
	accountID, err := auth.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if err := h.quotaService.RecalculateUsage(r.Context(), accountID); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}
