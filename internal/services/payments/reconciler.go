package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/GK-FY/bulk/internal/domain/enums"
	"github.com/GK-FY/bulk/internal/domain/model"
	"github.com/GK-FY/bulk/internal/domain/rules"
	"github.com/GK-FY/bulk/internal/infra/metrics"
	pgrepo "github.com/GK-FY/bulk/internal/repo/postgres"
	"github.com/GK-FY/bulk/internal/services/ledger"
)

const (
	timeoutReason        = "timeout"
	accountMissingReason = "account_missing"
	creditFailedReason   = "credit_failed"
)

// Reconciler settles pending payments from two drivers: gateway callbacks
// and a bounded status poll. Both funnel into settle, where taking the
// pending entry decides which one credits the actor.
type Reconciler struct {
	gateway   Gateway
	pending   PendingStore
	txs       TransactionStore
	ledger    Ledger
	referrals ReferralPayer
	notifier  Notifier
	admins    AdminDirectory
	metrics   *metrics.Metrics
	logger    *zap.Logger

	interval time.Duration
	attempts int
	now      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type ReconcilerDependencies struct {
	Gateway   Gateway
	Pending   PendingStore
	Txs       TransactionStore
	Ledger    Ledger
	Referrals ReferralPayer
	Notifier  Notifier
	Admins    AdminDirectory
	Metrics   *metrics.Metrics
	Logger    *zap.Logger

	PollInterval time.Duration
	PollAttempts int
}

func NewReconciler(deps ReconcilerDependencies) *Reconciler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	interval := deps.PollInterval
	if interval <= 0 {
		interval = 3 * time.Second
	}
	attempts := deps.PollAttempts
	if attempts <= 0 {
		attempts = 40
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Reconciler{
		gateway:   deps.Gateway,
		pending:   deps.Pending,
		txs:       deps.Txs,
		ledger:    deps.Ledger,
		referrals: deps.Referrals,
		notifier:  deps.Notifier,
		admins:    deps.Admins,
		metrics:   deps.Metrics,
		logger:    logger,
		interval:  interval,
		attempts:  attempts,
		now:       time.Now,
		ctx:       ctx,
		cancel:    cancel,
	}
}

type Callback struct {
	CheckoutID      string
	Status          string
	TransactionCode string
	Reference       string
	Amount          string
	Phone           string
}

type Settlement struct {
	CheckoutID      string
	Path            enums.SettlementPath
	Status          enums.TransactionStatus
	TransactionCode string
	FailureReason   string
}

// Outcome describes what a settlement attempt did. Applied is false when
// another driver had already taken the pending entry.
type Outcome struct {
	Applied  bool
	ActorID  string
	Status   enums.TransactionStatus
	Amount   decimal.Decimal
	Balance  decimal.Decimal
	Referral bool
}

// HandleCallback settles a checkout from a gateway push. Non-terminal
// statuses are acknowledged without touching the pending entry.
func (r *Reconciler) HandleCallback(ctx context.Context, cb Callback) (Outcome, error) {
	checkoutID := strings.TrimSpace(cb.CheckoutID)
	if checkoutID == "" {
		return Outcome{}, fmt.Errorf("%w: checkout_request_id is required", ErrValidation)
	}

	status, terminal := enums.ParseGatewayStatus(cb.Status).Outcome()
	if !terminal {
		r.logger.Info("payment callback not terminal",
			zap.String("checkout_id", checkoutID),
			zap.String("status", cb.Status),
		)
		return Outcome{Status: enums.TransactionStatusPending}, nil
	}

	reason := ""
	if status == enums.TransactionStatusFailed {
		reason = string(enums.ParseGatewayStatus(cb.Status))
	}
	return r.Settle(ctx, Settlement{
		CheckoutID:      checkoutID,
		Path:            enums.SettlementPathPush,
		Status:          status,
		TransactionCode: strings.TrimSpace(cb.TransactionCode),
		FailureReason:   reason,
	})
}

// Track starts the status poll for entry. The poll stops as soon as the
// entry is gone, when its attempt budget runs out, or on Close.
func (r *Reconciler) Track(entry model.PendingEntry) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.poll(r.ctx, entry.CheckoutID)
	}()
}

// Wait blocks until every running poll has returned.
func (r *Reconciler) Wait() {
	r.wg.Wait()
}

func (r *Reconciler) Close() {
	r.cancel()
	r.wg.Wait()
}

func (r *Reconciler) poll(ctx context.Context, checkoutID string) {
	logger := r.logger.With(zap.String("checkout_id", checkoutID))

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for attempt := 1; attempt <= r.attempts; attempt++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		present, err := r.pending.Has(ctx, checkoutID)
		if err != nil {
			logger.Warn("check pending entry failed", zap.Error(err))
		} else if !present {
			return
		}

		r.metrics.PollAttempt()
		res, err := r.gateway.Status(ctx, checkoutID)
		if err != nil {
			logger.Debug("status query failed", zap.Int("attempt", attempt), zap.Error(err))
			continue
		}

		status, terminal := enums.ParseGatewayStatus(res.Status).Outcome()
		if !terminal {
			continue
		}

		reason := ""
		if status == enums.TransactionStatusFailed {
			reason = string(enums.ParseGatewayStatus(res.Status))
		}
		if _, err := r.Settle(ctx, Settlement{
			CheckoutID:      checkoutID,
			Path:            enums.SettlementPathPull,
			Status:          status,
			TransactionCode: res.TransactionCode,
			FailureReason:   reason,
		}); err != nil {
			logger.Error("settle from poll failed", zap.Error(err))
		}
		return
	}

	if ctx.Err() != nil {
		return
	}
	if _, err := r.Settle(ctx, Settlement{
		CheckoutID:    checkoutID,
		Path:          enums.SettlementPathTimeout,
		Status:        enums.TransactionStatusFailed,
		FailureReason: timeoutReason,
	}); err != nil {
		logger.Error("settle timeout failed", zap.Error(err))
	}
}

// Settle resolves one checkout. Only the caller that takes the pending entry
// credits the actor, records the outcome, pays any referral bonus and
// notifies; every other caller returns an Outcome with Applied false.
func (r *Reconciler) Settle(ctx context.Context, s Settlement) (Outcome, error) {
	if !s.Status.Terminal() {
		return Outcome{}, fmt.Errorf("%w: settlement status must be terminal", ErrValidation)
	}

	entry, ok, err := r.pending.Take(ctx, s.CheckoutID)
	if err != nil {
		return Outcome{}, fmt.Errorf("take pending entry: %w", err)
	}
	if !ok {
		r.logger.Debug("payment already settled",
			zap.String("checkout_id", s.CheckoutID),
			zap.String("path", string(s.Path)),
		)
		return Outcome{Status: s.Status}, nil
	}

	logger := r.logger.With(
		zap.String("checkout_id", s.CheckoutID),
		zap.String("actor_id", entry.ActorID),
		zap.String("path", string(s.Path)),
	)

	out := Outcome{
		Applied: true,
		ActorID: entry.ActorID,
		Status:  s.Status,
		Amount:  entry.Amount,
	}

	credited := decimal.Zero
	var account *model.Account
	if s.Status == enums.TransactionStatusCompleted {
		account, err = r.ledger.Update(ctx, entry.ActorID, func(a *model.Account) error {
			a.Balance = a.Balance.Add(entry.Amount)
			a.TotalDeposits = a.TotalDeposits.Add(entry.Amount)
			return nil
		})
		if err != nil {
			logger.Error("credit deposit failed", zap.String("amount", entry.Amount.String()), zap.Error(err))
			// A completed row must always match a credit.
			s.Status = enums.TransactionStatusFailed
			s.FailureReason = creditFailedReason
			if errors.Is(err, ledger.ErrAccountNotFound) {
				s.FailureReason = accountMissingReason
			}
			out.Status = s.Status
			account = nil
		} else {
			credited = entry.Amount
			out.Balance = account.Balance
		}
	}

	if _, err := r.txs.Resolve(ctx, pgrepo.ResolveInput{
		CheckoutID:      s.CheckoutID,
		Status:          s.Status,
		TransactionCode: s.TransactionCode,
		FailureReason:   s.FailureReason,
		At:              r.now().UTC(),
	}); err != nil {
		if errors.Is(err, pgrepo.ErrAlreadyResolved) {
			logger.Warn("transaction row already resolved", zap.Error(err))
		} else {
			logger.Error("record settlement failed", zap.Error(err))
		}
	}

	outcome := string(s.Status)
	switch {
	case s.Path == enums.SettlementPathTimeout:
		outcome = timeoutReason
	case s.FailureReason == accountMissingReason || s.FailureReason == creditFailedReason:
		outcome = s.FailureReason
	}
	r.metrics.Settlement(string(s.Path), outcome, credited)
	logger.Info("payment settled",
		zap.String("status", outcome),
		zap.String("amount", entry.Amount.String()),
		zap.String("transaction_code", s.TransactionCode),
	)

	r.notifySettlement(ctx, entry, s, account)

	if s.Status == enums.TransactionStatusCompleted && account != nil && r.referrals != nil {
		paid, err := r.referrals.Payout(ctx, entry.ActorID, entry.Amount)
		if err != nil {
			logger.Error("referral payout failed", zap.Error(err))
		} else if paid.Paid {
			out.Referral = true
			r.metrics.ReferralPayout()
			r.notify(ctx, paid.ReferrerID, fmt.Sprintf(
				"You earned %s because %s made their first deposit. Thank you for referring!",
				rules.FormatMoney(paid.Bonus), paid.ReferredName))
			r.notify(ctx, entry.ActorID, fmt.Sprintf(
				"Your deposit qualified %s for a referral bonus. Welcome aboard!", paid.ReferrerName))
		}
	}

	return out, nil
}

func (r *Reconciler) notifySettlement(ctx context.Context, entry model.PendingEntry, s Settlement, account *model.Account) {
	amount := rules.FormatMoney(entry.Amount)

	switch {
	case s.Status == enums.TransactionStatusCompleted && account != nil:
		text := fmt.Sprintf("Deposit of %s received.", amount)
		if s.TransactionCode != "" {
			text += " Transaction code: " + s.TransactionCode + "."
		}
		text += " New balance: " + rules.FormatMoney(account.Balance) + "."
		r.notify(ctx, entry.ActorID, text)
		r.notifyAdmins(ctx, fmt.Sprintf("Deposit received: %s from %s (%s) via %s. Ref %s, code %s.",
			amount, account.Name, entry.ActorID, s.Path, entry.Reference, orDash(s.TransactionCode)))
	case s.FailureReason == accountMissingReason || s.FailureReason == creditFailedReason:
		r.notifyAdmins(ctx, fmt.Sprintf("Deposit %s for account %s could not be credited (%s). Ref %s, code %s.",
			amount, entry.ActorID, s.FailureReason, entry.Reference, orDash(s.TransactionCode)))
	case s.Path == enums.SettlementPathTimeout:
		r.notify(ctx, entry.ActorID, fmt.Sprintf(
			"We could not confirm your deposit of %s. If you were charged, the funds will be reversed. Send 6 to try again.",
			amount))
		r.notifyAdmins(ctx, fmt.Sprintf("Deposit timed out: %s for %s. Ref %s.", amount, entry.ActorID, entry.Reference))
	default:
		r.notify(ctx, entry.ActorID, fmt.Sprintf(
			"Your deposit of %s was not completed. Send 6 to try again.", amount))
	}
}

func (r *Reconciler) notify(ctx context.Context, actorID, text string) {
	if r.notifier == nil || actorID == "" {
		return
	}
	r.notifier.Notify(ctx, actorID, text)
}

func (r *Reconciler) notifyAdmins(ctx context.Context, text string) {
	if r.admins == nil {
		return
	}
	for _, id := range r.admins.AdminIDs() {
		r.notify(ctx, id, text)
	}
}

func orDash(v string) string {
	if strings.TrimSpace(v) == "" {
		return "-"
	}
	return v
}
