package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/GK-FY/bulk/internal/domain/model"
	settingssvc "github.com/GK-FY/bulk/internal/services/settings"
	"github.com/GK-FY/bulk/internal/transport/http/dto"
	httperrors "github.com/GK-FY/bulk/internal/transport/http/errors"
)

const defaultTransactionLimit = 50

type SettingsEditor interface {
	GetAll() map[string]string
	Set(ctx context.Context, key, value string) error
}

type AccountReader interface {
	All() []*model.Account
	Get(actorID string) (*model.Account, bool)
}

type TransactionReader interface {
	Stats(ctx context.Context) (model.TransactionStats, error)
	ListRecent(ctx context.Context, actorID string, limit int) ([]model.Transaction, error)
}

// AdminHandler serves the administrative console API.
type AdminHandler struct {
	settings     SettingsEditor
	accounts     AccountReader
	transactions TransactionReader
	logger       *zap.Logger
}

func NewAdminHandler(settings SettingsEditor, accounts AccountReader, transactions TransactionReader, logger *zap.Logger) *AdminHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminHandler{
		settings:     settings,
		accounts:     accounts,
		transactions: transactions,
		logger:       logger,
	}
}

func (h *AdminHandler) Settings(w http.ResponseWriter, _ *http.Request) {
	if h.settings == nil {
		writeInternal(w, "SETTINGS_UNAVAILABLE", "settings registry is unavailable")
		return
	}
	httperrors.Write(w, http.StatusOK, dto.AdminSettingsResponse{Settings: h.settings.GetAll()})
}

func (h *AdminHandler) UpdateSetting(w http.ResponseWriter, r *http.Request) {
	if h.settings == nil {
		writeInternal(w, "SETTINGS_UNAVAILABLE", "settings registry is unavailable")
		return
	}
	key := strings.TrimSpace(chi.URLParam(r, "key"))

	var req dto.AdminSettingUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid json body")
		return
	}

	if err := h.settings.Set(r.Context(), key, req.Value); err != nil {
		switch {
		case errors.Is(err, settingssvc.ErrUnknownKey):
			writeNotFound(w, "UNKNOWN_SETTING", err.Error())
		case errors.Is(err, settingssvc.ErrInvalidValue):
			writeBadRequest(w, "INVALID_SETTING", err.Error())
		default:
			h.logger.Error("admin setting write failed", zap.String("key", key), zap.Error(err))
			writeInternal(w, "INTERNAL_ERROR", "failed to save setting")
		}
		return
	}

	httperrors.Write(w, http.StatusOK, dto.AdminSettingUpdateResponse{
		Key:   key,
		Value: h.settings.GetAll()[key],
	})
}

func (h *AdminHandler) Accounts(w http.ResponseWriter, _ *http.Request) {
	if h.accounts == nil {
		writeInternal(w, "LEDGER_UNAVAILABLE", "ledger is unavailable")
		return
	}
	all := h.accounts.All()
	items := make([]dto.AdminAccountItem, 0, len(all))
	for _, a := range all {
		items = append(items, accountItem(a))
	}
	httperrors.Write(w, http.StatusOK, dto.AdminAccountsResponse{Total: len(items), Items: items})
}

func (h *AdminHandler) Account(w http.ResponseWriter, r *http.Request) {
	if h.accounts == nil {
		writeInternal(w, "LEDGER_UNAVAILABLE", "ledger is unavailable")
		return
	}
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		writeBadRequest(w, "VALIDATION_ERROR", "account id is required")
		return
	}
	account, ok := h.accounts.Get(id)
	if !ok {
		writeNotFound(w, "NOT_FOUND", "account not found")
		return
	}
	httperrors.Write(w, http.StatusOK, accountItem(account))
}

func (h *AdminHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	if h.transactions == nil {
		writeInternal(w, "TRANSACTIONS_UNAVAILABLE", "transactions are unavailable")
		return
	}

	limit := defaultTransactionLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 200 {
			writeBadRequest(w, "VALIDATION_ERROR", "limit must be between 1 and 200")
			return
		}
		limit = parsed
	}
	actorID := strings.TrimSpace(r.URL.Query().Get("actor_id"))

	stats, err := h.transactions.Stats(r.Context())
	if err != nil {
		h.logger.Error("transaction stats failed", zap.Error(err))
		writeInternal(w, "INTERNAL_ERROR", "failed to load transaction stats")
		return
	}
	txs, err := h.transactions.ListRecent(r.Context(), actorID, limit)
	if err != nil {
		h.logger.Error("list transactions failed", zap.Error(err))
		writeInternal(w, "INTERNAL_ERROR", "failed to load transactions")
		return
	}

	items := make([]dto.AdminTransactionItem, 0, len(txs))
	for _, tx := range txs {
		items = append(items, dto.AdminTransactionItem{
			Reference:       tx.Reference,
			CheckoutID:      tx.CheckoutID,
			ActorID:         tx.ActorID,
			Phone:           tx.Phone,
			Amount:          tx.Amount,
			Status:          string(tx.Status),
			TransactionCode: tx.TransactionCode,
			FailureReason:   tx.FailureReason,
			CreatedAt:       tx.CreatedAt,
			UpdatedAt:       tx.UpdatedAt,
		})
	}

	httperrors.Write(w, http.StatusOK, dto.AdminTransactionsResponse{
		Pending:         stats.Pending,
		Completed:       stats.Completed,
		Failed:          stats.Failed,
		CompletedAmount: stats.CompletedAmount,
		Items:           items,
	})
}

func accountItem(a *model.Account) dto.AdminAccountItem {
	return dto.AdminAccountItem{
		ID:                a.ID,
		Name:              a.Name,
		Balance:           a.Balance,
		MessageCount:      a.MessageCount,
		TotalCharges:      a.TotalCharges,
		TotalDeposits:     a.TotalDeposits,
		Recipients:        len(a.Recipients),
		Templates:         len(a.Templates),
		VIP:               a.VIP,
		Banned:            a.Banned,
		BanReason:         a.BanReason,
		ReferralCode:      a.ReferralCode,
		ReferredBy:        a.ReferredBy,
		Referrals:         len(a.Referrals),
		PendingReferrals:  len(a.PendingReferrals),
		ReferralBonusPaid: a.ReferralBonusPaid,
		RegisteredAt:      a.RegisteredAt,
	}
}
