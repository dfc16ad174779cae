package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/GK-FY/bulk/internal/domain/enums"
	"github.com/GK-FY/bulk/internal/domain/model"
	pgrepo "github.com/GK-FY/bulk/internal/repo/postgres"
	"github.com/GK-FY/bulk/internal/services/ledger"
	"github.com/GK-FY/bulk/internal/services/settings"
	"github.com/GK-FY/bulk/internal/transport/http/dto"
)

func TestAdminUpdateSettingRejectsInvertedBounds(t *testing.T) {
	reg := settings.NewRegistry(nil, nil)
	h := NewAdminHandler(reg, nil, nil, nil)

	req := httptest.NewRequest(http.MethodPut, "/settings/topupMinAmount", strings.NewReader(`{"value":"200000"}`))
	req = req.WithContext(withURLParam(req.Context(), "key", settings.KeyTopupMinAmount))
	rr := httptest.NewRecorder()
	h.UpdateSetting(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusBadRequest)
	}
	if got := reg.Current().TopupMinAmount; !got.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("min top-up must be unchanged, got %s", got)
	}
}

func TestAdminUpdateSettingUnknownKey(t *testing.T) {
	h := NewAdminHandler(settings.NewRegistry(nil, nil), nil, nil, nil)

	req := httptest.NewRequest(http.MethodPut, "/settings/nope", strings.NewReader(`{"value":"1"}`))
	req = req.WithContext(withURLParam(req.Context(), "key", "nope"))
	rr := httptest.NewRecorder()
	h.UpdateSetting(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusNotFound)
	}
}

func TestAdminUpdateSettingWritesValue(t *testing.T) {
	reg := settings.NewRegistry(nil, nil)
	h := NewAdminHandler(reg, nil, nil, nil)

	req := httptest.NewRequest(http.MethodPut, "/settings/costPerChar", strings.NewReader(`{"value":"2.5"}`))
	req = req.WithContext(withURLParam(req.Context(), "key", settings.KeyCostPerChar))
	rr := httptest.NewRecorder()
	h.UpdateSetting(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusOK)
	}
	if got := reg.Current().CostPerChar; !got.Equal(decimal.RequireFromString("2.5")) {
		t.Fatalf("cost per char not updated: %s", got)
	}
}

func TestAdminAccountNotFound(t *testing.T) {
	h := NewAdminHandler(nil, ledger.New(nil, nil), nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/accounts/missing", nil)
	req = req.WithContext(withURLParam(req.Context(), "id", "missing"))
	rr := httptest.NewRecorder()
	h.Account(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusNotFound)
	}
}

func TestAdminAccountsListsLedger(t *testing.T) {
	l := ledger.New(nil, nil)
	_, _ = l.Register(context.Background(), &model.Account{ID: "1", Name: "alice", Recipients: []string{"254700000001"}})
	h := NewAdminHandler(nil, l, nil, nil)

	rr := httptest.NewRecorder()
	h.Accounts(rr, httptest.NewRequest(http.MethodGet, "/accounts", nil))

	var resp dto.AdminAccountsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Total != 1 || resp.Items[0].Name != "alice" || resp.Items[0].Recipients != 1 {
		t.Fatalf("unexpected accounts: %+v", resp)
	}
}

func TestAdminTransactionsIncludesStats(t *testing.T) {
	repo := pgrepo.NewTransactionRepo(nil)
	now := time.Now().UTC()
	for i, id := range []string{"co-1", "co-2"} {
		if err := repo.Create(context.Background(), model.Transaction{
			Reference:  "DEP" + id,
			CheckoutID: id,
			ActorID:    "1",
			Amount:     decimal.NewFromInt(100),
			Status:     enums.TransactionStatusPending,
			CreatedAt:  now.Add(time.Duration(i) * time.Second),
		}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	if _, err := repo.Resolve(context.Background(), pgrepo.ResolveInput{
		CheckoutID: "co-1",
		Status:     enums.TransactionStatusCompleted,
		At:         now,
	}); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	h := NewAdminHandler(nil, nil, repo, nil)
	rr := httptest.NewRecorder()
	h.Transactions(rr, httptest.NewRequest(http.MethodGet, "/transactions?limit=1", nil))

	var resp dto.AdminTransactionsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Completed != 1 || resp.Pending != 1 || len(resp.Items) != 1 {
		t.Fatalf("unexpected transactions: %+v", resp)
	}
	if resp.Items[0].CheckoutID != "co-2" {
		t.Fatalf("newest first expected, got %s", resp.Items[0].CheckoutID)
	}
}

func TestAdminTransactionsRejectsBadLimit(t *testing.T) {
	h := NewAdminHandler(nil, nil, pgrepo.NewTransactionRepo(nil), nil)
	rr := httptest.NewRecorder()
	h.Transactions(rr, httptest.NewRequest(http.MethodGet, "/transactions?limit=abc", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusBadRequest)
	}
}

func withURLParam(ctx context.Context, key, value string) context.Context {
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add(key, value)
	return context.WithValue(ctx, chi.RouteCtxKey, routeCtx)
}
