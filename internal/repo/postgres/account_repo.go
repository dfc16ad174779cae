package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/GK-FY/bulk/internal/domain/model"
)

// AccountRepo is the ledger store. Without a pool it keeps nothing and the
// ledger runs in memory only.
type AccountRepo struct {
	pool *pgxpool.Pool
}

func NewAccountRepo(pool *pgxpool.Pool) *AccountRepo {
	return &AccountRepo{pool: pool}
}

func (r *AccountRepo) LoadAll(ctx context.Context) (map[string]*model.Account, error) {
	out := make(map[string]*model.Account)
	if r.pool == nil {
		return out, nil
	}

	rows, err := r.pool.Query(ctx, `
SELECT
	actor_id,
	name,
	balance::text,
	message_count,
	total_charges::text,
	total_deposits::text,
	recipients,
	banned,
	ban_reason,
	registered_at,
	vip,
	referral_code,
	referrals,
	pending_referrals,
	templates,
	referred_by,
	referral_bonus_paid
FROM accounts
`)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out[account.ID] = account
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}

	return out, nil
}

// SaveAll replaces the stored ledger with accounts. Rows for actors missing
// from the map are removed.
func (r *AccountRepo) SaveAll(ctx context.Context, accounts map[string]*model.Account) error {
	if r.pool == nil {
		return nil
	}

	ids := make([]string, 0, len(accounts))
	batch := &pgx.Batch{}
	for id, account := range accounts {
		if account == nil {
			continue
		}
		ids = append(ids, id)

		lists, err := marshalAccountLists(account)
		if err != nil {
			return err
		}
		registeredAt := account.RegisteredAt
		if registeredAt.IsZero() {
			registeredAt = time.Now().UTC()
		}

		batch.Queue(`
INSERT INTO accounts (
	actor_id,
	name,
	balance,
	message_count,
	total_charges,
	total_deposits,
	recipients,
	banned,
	ban_reason,
	registered_at,
	vip,
	referral_code,
	referrals,
	pending_referrals,
	templates,
	referred_by,
	referral_bonus_paid,
	updated_at
) VALUES (
	$1, $2, $3::numeric, $4, $5::numeric, $6::numeric, $7::jsonb, $8, $9, $10,
	$11, $12, $13::jsonb, $14::jsonb, $15::jsonb, $16, $17, NOW()
)
ON CONFLICT (actor_id) DO UPDATE
SET
	name = EXCLUDED.name,
	balance = EXCLUDED.balance,
	message_count = EXCLUDED.message_count,
	total_charges = EXCLUDED.total_charges,
	total_deposits = EXCLUDED.total_deposits,
	recipients = EXCLUDED.recipients,
	banned = EXCLUDED.banned,
	ban_reason = EXCLUDED.ban_reason,
	vip = EXCLUDED.vip,
	referral_code = EXCLUDED.referral_code,
	referrals = EXCLUDED.referrals,
	pending_referrals = EXCLUDED.pending_referrals,
	templates = EXCLUDED.templates,
	referred_by = EXCLUDED.referred_by,
	referral_bonus_paid = EXCLUDED.referral_bonus_paid,
	updated_at = NOW()
`,
			id,
			account.Name,
			account.Balance.String(),
			account.MessageCount,
			account.TotalCharges.String(),
			account.TotalDeposits.String(),
			lists.recipients,
			account.Banned,
			account.BanReason,
			registeredAt.UTC(),
			account.VIP,
			account.ReferralCode,
			lists.referrals,
			lists.pendingReferrals,
			lists.templates,
			account.ReferredBy,
			account.ReferralBonusPaid,
		)
	}

	return WithTx(ctx, r.pool, func(txCtx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(txCtx, `DELETE FROM accounts WHERE NOT (actor_id = ANY($1))`, ids); err != nil {
			return fmt.Errorf("delete removed accounts: %w", err)
		}

		br := tx.SendBatch(txCtx, batch)
		for i := 0; i < batch.Len(); i++ {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				return fmt.Errorf("upsert account: %w", err)
			}
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("close account batch: %w", err)
		}
		return nil
	})
}

type accountLists struct {
	recipients       string
	referrals        string
	pendingReferrals string
	templates        string
}

func marshalAccountLists(account *model.Account) (accountLists, error) {
	var (
		out accountLists
		err error
	)
	if out.recipients, err = marshalStringList(account.Recipients); err != nil {
		return accountLists{}, fmt.Errorf("marshal recipients: %w", err)
	}
	if out.referrals, err = marshalStringList(account.Referrals); err != nil {
		return accountLists{}, fmt.Errorf("marshal referrals: %w", err)
	}
	if out.pendingReferrals, err = marshalStringList(account.PendingReferrals); err != nil {
		return accountLists{}, fmt.Errorf("marshal pending referrals: %w", err)
	}
	if out.templates, err = marshalStringList(account.Templates); err != nil {
		return accountLists{}, fmt.Errorf("marshal templates: %w", err)
	}
	return out, nil
}

func marshalStringList(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func decodeStringList(raw []byte) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func scanAccount(row pgx.Row) (*model.Account, error) {
	var (
		account          model.Account
		balance          string
		totalCharges     string
		totalDeposits    string
		recipients       []byte
		referrals        []byte
		pendingReferrals []byte
		templates        []byte
	)

	if err := row.Scan(
		&account.ID,
		&account.Name,
		&balance,
		&account.MessageCount,
		&totalCharges,
		&totalDeposits,
		&recipients,
		&account.Banned,
		&account.BanReason,
		&account.RegisteredAt,
		&account.VIP,
		&account.ReferralCode,
		&referrals,
		&pendingReferrals,
		&templates,
		&account.ReferredBy,
		&account.ReferralBonusPaid,
	); err != nil {
		return nil, fmt.Errorf("scan account: %w", err)
	}

	var err error
	if account.Balance, err = decimal.NewFromString(balance); err != nil {
		return nil, fmt.Errorf("decode balance: %w", err)
	}
	if account.TotalCharges, err = decimal.NewFromString(totalCharges); err != nil {
		return nil, fmt.Errorf("decode total charges: %w", err)
	}
	if account.TotalDeposits, err = decimal.NewFromString(totalDeposits); err != nil {
		return nil, fmt.Errorf("decode total deposits: %w", err)
	}
	if account.Recipients, err = decodeStringList(recipients); err != nil {
		return nil, fmt.Errorf("decode recipients: %w", err)
	}
	if account.Referrals, err = decodeStringList(referrals); err != nil {
		return nil, fmt.Errorf("decode referrals: %w", err)
	}
	if account.PendingReferrals, err = decodeStringList(pendingReferrals); err != nil {
		return nil, fmt.Errorf("decode pending referrals: %w", err)
	}
	if account.Templates, err = decodeStringList(templates); err != nil {
		return nil, fmt.Errorf("decode templates: %w", err)
	}
	account.RegisteredAt = account.RegisteredAt.UTC()

	return &account, nil
}
