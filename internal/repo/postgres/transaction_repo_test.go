package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/GK-FY/bulk/internal/domain/enums"
	"github.com/GK-FY/bulk/internal/domain/model"
)

func TestTransactionRepoWithoutPoolResolvesOnce(t *testing.T) {
	repo := NewTransactionRepo(nil)
	ctx := context.Background()

	err := repo.Create(ctx, model.Transaction{
		Reference:  "ref-1",
		CheckoutID: "ws_CO_1",
		ActorID:    "100",
		Phone:      "254712345678",
		Amount:     decimal.NewFromInt(10),
	})
	if err != nil {
		t.Fatalf("create transaction: %v", err)
	}

	resolved, err := repo.Resolve(ctx, ResolveInput{
		CheckoutID:      "ws_CO_1",
		Status:          enums.TransactionStatusCompleted,
		TransactionCode: "QWE123",
		At:              time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("resolve transaction: %v", err)
	}
	if resolved.Status != enums.TransactionStatusCompleted || resolved.TransactionCode != "QWE123" {
		t.Fatalf("unexpected resolved transaction: %+v", resolved)
	}

	_, err = repo.Resolve(ctx, ResolveInput{
		CheckoutID: "ws_CO_1",
		Status:     enums.TransactionStatusFailed,
	})
	if !errors.Is(err, ErrAlreadyResolved) {
		t.Fatalf("expected ErrAlreadyResolved, got %v", err)
	}

	stored, err := repo.FindByCheckoutID(ctx, "ws_CO_1")
	if err != nil {
		t.Fatalf("find transaction: %v", err)
	}
	if stored.Status != enums.TransactionStatusCompleted {
		t.Fatalf("status must not move backwards: %s", stored.Status)
	}
}

func TestTransactionRepoWithoutPoolRejectsDuplicatesAndUnknown(t *testing.T) {
	repo := NewTransactionRepo(nil)
	ctx := context.Background()

	tx := model.Transaction{Reference: "ref-1", CheckoutID: "ws_CO_1", ActorID: "100", Amount: decimal.NewFromInt(5)}
	if err := repo.Create(ctx, tx); err != nil {
		t.Fatalf("create transaction: %v", err)
	}
	if err := repo.Create(ctx, tx); !errors.Is(err, ErrTransactionExists) {
		t.Fatalf("expected ErrTransactionExists, got %v", err)
	}

	_, err := repo.Resolve(ctx, ResolveInput{CheckoutID: "missing", Status: enums.TransactionStatusFailed})
	if !errors.Is(err, ErrTransactionNotFound) {
		t.Fatalf("expected ErrTransactionNotFound, got %v", err)
	}
	_, err = repo.Resolve(ctx, ResolveInput{CheckoutID: "ws_CO_1", Status: enums.TransactionStatusPending})
	if !errors.Is(err, ErrInvalidResolveStatus) {
		t.Fatalf("expected ErrInvalidResolveStatus, got %v", err)
	}
}

func TestTransactionRepoWithoutPoolStatsAndRecent(t *testing.T) {
	repo := NewTransactionRepo(nil)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		if err := repo.Create(ctx, model.Transaction{
			Reference:  "ref-" + id,
			CheckoutID: id,
			ActorID:    "100",
			Amount:     decimal.NewFromInt(int64(10 * (i + 1))),
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		}); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}
	if _, err := repo.Resolve(ctx, ResolveInput{CheckoutID: "a", Status: enums.TransactionStatusCompleted}); err != nil {
		t.Fatalf("resolve a: %v", err)
	}
	if _, err := repo.Resolve(ctx, ResolveInput{CheckoutID: "b", Status: enums.TransactionStatusFailed, FailureReason: "timeout"}); err != nil {
		t.Fatalf("resolve b: %v", err)
	}

	stats, err := repo.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Pending != 1 || stats.Completed != 1 || stats.Failed != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if !stats.CompletedAmount.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("unexpected completed amount: %s", stats.CompletedAmount)
	}

	recent, err := repo.ListRecent(ctx, "", 2)
	if err != nil {
		t.Fatalf("list recent: %v", err)
	}
	if len(recent) != 2 || recent[0].CheckoutID != "c" {
		t.Fatalf("unexpected recent order: %+v", recent)
	}
}
