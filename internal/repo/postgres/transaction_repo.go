package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/GK-FY/bulk/internal/domain/enums"
	"github.com/GK-FY/bulk/internal/domain/model"
)

var (
	ErrTransactionNotFound  = errors.New("transaction not found")
	ErrTransactionExists    = errors.New("transaction already exists")
	ErrAlreadyResolved      = errors.New("transaction already resolved")
	ErrInvalidResolveStatus = errors.New("resolve status must be terminal")
)

// TransactionRepo stores payment transactions. Without a pool the records
// are kept in process memory with the same transition rules.
type TransactionRepo struct {
	pool *pgxpool.Pool

	mu  sync.Mutex
	mem map[string]model.Transaction
}

type ResolveInput struct {
	CheckoutID      string
	Status          enums.TransactionStatus
	TransactionCode string
	FailureReason   string
	At              time.Time
}

func NewTransactionRepo(pool *pgxpool.Pool) *TransactionRepo {
	return &TransactionRepo{
		pool: pool,
		mem:  make(map[string]model.Transaction),
	}
}

func (r *TransactionRepo) Create(ctx context.Context, tx model.Transaction) error {
	tx.CheckoutID = strings.TrimSpace(tx.CheckoutID)
	if tx.CheckoutID == "" || tx.Reference == "" || tx.ActorID == "" {
		return fmt.Errorf("invalid transaction payload")
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	tx.UpdatedAt = tx.CreatedAt
	tx.Status = enums.TransactionStatusPending

	if r.pool == nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		if _, ok := r.mem[tx.CheckoutID]; ok {
			return ErrTransactionExists
		}
		r.mem[tx.CheckoutID] = tx
		return nil
	}

	if _, err := r.pool.Exec(ctx, `
INSERT INTO transactions (
	reference,
	checkout_id,
	merchant_id,
	actor_id,
	phone,
	amount,
	status,
	created_at,
	updated_at
) VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8, $8)
`, tx.Reference, tx.CheckoutID, tx.MerchantID, tx.ActorID, tx.Phone, tx.Amount.String(), string(tx.Status), tx.CreatedAt.UTC()); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrTransactionExists
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// Resolve moves a pending transaction to a terminal status with a single
// conditional write. A transaction that already left pending is never touched.
func (r *TransactionRepo) Resolve(ctx context.Context, in ResolveInput) (model.Transaction, error) {
	if !in.Status.Terminal() {
		return model.Transaction{}, ErrInvalidResolveStatus
	}
	if in.At.IsZero() {
		in.At = time.Now().UTC()
	}
	if in.Status == enums.TransactionStatusCompleted {
		in.FailureReason = ""
	}

	if r.pool == nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		tx, ok := r.mem[in.CheckoutID]
		if !ok {
			return model.Transaction{}, ErrTransactionNotFound
		}
		if tx.Status != enums.TransactionStatusPending {
			return model.Transaction{}, ErrAlreadyResolved
		}
		tx.Status = in.Status
		tx.TransactionCode = in.TransactionCode
		tx.FailureReason = in.FailureReason
		tx.UpdatedAt = in.At.UTC()
		r.mem[in.CheckoutID] = tx
		return tx, nil
	}

	tx, err := scanTransaction(r.pool.QueryRow(ctx, `
UPDATE transactions
SET
	status = $2,
	transaction_code = $3,
	failure_reason = $4,
	updated_at = $5
WHERE checkout_id = $1
  AND status = 'pending'
RETURNING `+transactionColumns,
		in.CheckoutID, string(in.Status), in.TransactionCode, in.FailureReason, in.At.UTC()))
	if err == nil {
		return tx, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return model.Transaction{}, fmt.Errorf("resolve transaction: %w", err)
	}

	if _, err := r.FindByCheckoutID(ctx, in.CheckoutID); err != nil {
		return model.Transaction{}, err
	}
	return model.Transaction{}, ErrAlreadyResolved
}

func (r *TransactionRepo) FindByCheckoutID(ctx context.Context, checkoutID string) (model.Transaction, error) {
	if r.pool == nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		tx, ok := r.mem[checkoutID]
		if !ok {
			return model.Transaction{}, ErrTransactionNotFound
		}
		return tx, nil
	}

	tx, err := scanTransaction(r.pool.QueryRow(ctx, `
SELECT `+transactionColumns+`
FROM transactions
WHERE checkout_id = $1
`, checkoutID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Transaction{}, ErrTransactionNotFound
		}
		return model.Transaction{}, fmt.Errorf("find transaction: %w", err)
	}
	return tx, nil
}

// ListRecent returns the newest transactions first. An empty actorID lists
// every actor.
func (r *TransactionRepo) ListRecent(ctx context.Context, actorID string, limit int) ([]model.Transaction, error) {
	if limit <= 0 || limit > 200 {
		limit = 20
	}

	if r.pool == nil {
		r.mu.Lock()
		out := make([]model.Transaction, 0, len(r.mem))
		for _, tx := range r.mem {
			if actorID == "" || tx.ActorID == actorID {
				out = append(out, tx)
			}
		}
		r.mu.Unlock()
		sort.Slice(out, func(i, j int) bool {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		})
		if len(out) > limit {
			out = out[:limit]
		}
		return out, nil
	}

	rows, err := r.pool.Query(ctx, `
SELECT `+transactionColumns+`
FROM transactions
WHERE ($1 = '' OR actor_id = $1)
ORDER BY created_at DESC
LIMIT $2
`, actorID, limit)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	out := make([]model.Transaction, 0, limit)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

func (r *TransactionRepo) Stats(ctx context.Context) (model.TransactionStats, error) {
	var out model.TransactionStats

	if r.pool == nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		for _, tx := range r.mem {
			switch tx.Status {
			case enums.TransactionStatusPending:
				out.Pending++
			case enums.TransactionStatusCompleted:
				out.Completed++
				out.CompletedAmount = out.CompletedAmount.Add(tx.Amount)
			case enums.TransactionStatusFailed:
				out.Failed++
			}
		}
		return out, nil
	}

	var completedAmount string
	err := r.pool.QueryRow(ctx, `
SELECT
	COUNT(*) FILTER (WHERE status = 'pending'),
	COUNT(*) FILTER (WHERE status = 'completed'),
	COUNT(*) FILTER (WHERE status = 'failed'),
	COALESCE(SUM(amount) FILTER (WHERE status = 'completed'), 0)::text
FROM transactions
`).Scan(&out.Pending, &out.Completed, &out.Failed, &completedAmount)
	if err != nil {
		return model.TransactionStats{}, fmt.Errorf("query transaction stats: %w", err)
	}
	if out.CompletedAmount, err = decimal.NewFromString(completedAmount); err != nil {
		return model.TransactionStats{}, fmt.Errorf("decode completed amount: %w", err)
	}
	return out, nil
}

const transactionColumns = `
	reference,
	checkout_id,
	merchant_id,
	actor_id,
	phone,
	amount::text,
	status,
	transaction_code,
	failure_reason,
	created_at,
	updated_at`

func scanTransaction(row pgx.Row) (model.Transaction, error) {
	var (
		tx     model.Transaction
		amount string
		status string
	)
	if err := row.Scan(
		&tx.Reference,
		&tx.CheckoutID,
		&tx.MerchantID,
		&tx.ActorID,
		&tx.Phone,
		&amount,
		&status,
		&tx.TransactionCode,
		&tx.FailureReason,
		&tx.CreatedAt,
		&tx.UpdatedAt,
	); err != nil {
		return model.Transaction{}, err
	}

	parsed, err := decimal.NewFromString(amount)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("decode amount: %w", err)
	}
	tx.Amount = parsed
	tx.Status = enums.TransactionStatus(status)
	tx.CreatedAt = tx.CreatedAt.UTC()
	tx.UpdatedAt = tx.UpdatedAt.UTC()
	return tx, nil
}
