package payments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/GK-FY/bulk/internal/domain/enums"
	"github.com/GK-FY/bulk/internal/domain/model"
	"github.com/GK-FY/bulk/internal/domain/rules"
	"github.com/GK-FY/bulk/internal/infra/metrics"
	"github.com/GK-FY/bulk/internal/repo/gatewayhttp"
)

// RateLimitError is returned when an actor starts payments too often.
type RateLimitError struct {
	RetryAfterSec int64
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("too many top-up attempts, retry after %ds", e.RetryAfterSec)
}

type Initiator struct {
	gateway  Gateway
	txs      TransactionStore
	pending  PendingStore
	tracker  Tracker
	limiter  TopUpLimiter
	settings SettingsSource
	metrics  *metrics.Metrics
	logger   *zap.Logger

	retries int
	backoff time.Duration
	wait    func(ctx context.Context, d time.Duration) error
	now     func() time.Time
}

type InitiatorDependencies struct {
	Gateway  Gateway
	Txs      TransactionStore
	Pending  PendingStore
	Tracker  Tracker
	Limiter  TopUpLimiter
	Settings SettingsSource
	Metrics  *metrics.Metrics
	Logger   *zap.Logger

	Retries int
	Backoff time.Duration
}

func NewInitiator(deps InitiatorDependencies) *Initiator {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	retries := deps.Retries
	if retries <= 0 {
		retries = 3
	}

	return &Initiator{
		gateway:  deps.Gateway,
		txs:      deps.Txs,
		pending:  deps.Pending,
		tracker:  deps.Tracker,
		limiter:  deps.Limiter,
		settings: deps.Settings,
		metrics:  deps.Metrics,
		logger:   logger,
		retries:  retries,
		backoff:  deps.Backoff,
		wait:     sleepContext,
		now:      time.Now,
	}
}

type InitiateInput struct {
	ActorID string
	Phone   string
	Amount  decimal.Decimal
}

type InitiateResult struct {
	Reference  string
	CheckoutID string
	Phone      string
	Amount     decimal.Decimal
}

// ValidateAmount checks a deposit amount against the configured bounds.
func (i *Initiator) ValidateAmount(amount decimal.Decimal) error {
	current := i.settings.Current()
	if amount.LessThan(current.TopupMinAmount) || amount.GreaterThan(current.TopupMaxAmount) {
		return fmt.Errorf("%w: allowed %s to %s", ErrAmountOutOfRange,
			current.TopupMinAmount.String(), current.TopupMaxAmount.String())
	}
	return nil
}

// Initiate requests a charge from the gateway, retrying transient failures,
// then registers the pending transaction and hands it to the tracker. Once
// the transaction is registered no further initiation is attempted.
func (i *Initiator) Initiate(ctx context.Context, in InitiateInput) (InitiateResult, error) {
	if strings.TrimSpace(in.ActorID) == "" {
		return InitiateResult{}, fmt.Errorf("%w: actor id is required", ErrValidation)
	}
	phone, ok := rules.NormalizePhone(in.Phone)
	if !ok {
		return InitiateResult{}, ErrInvalidPhone
	}
	if err := i.ValidateAmount(in.Amount); err != nil {
		return InitiateResult{}, err
	}

	if i.limiter != nil {
		retryAfter, allowed, err := i.limiter.AllowTopUp(ctx, in.ActorID)
		switch {
		case err != nil:
			i.logger.Warn("top-up limiter unavailable", zap.String("actor_id", in.ActorID), zap.Error(err))
		case !allowed:
			return InitiateResult{}, &RateLimitError{RetryAfterSec: retryAfter}
		}
	}

	reference := newReference()
	req := gatewayhttp.InitiateRequest{
		Phone:       phone,
		Amount:      in.Amount,
		Reference:   reference,
		Description: "Account top-up " + reference,
	}

	res, err := i.initiateWithRetry(ctx, req)
	if err != nil {
		return InitiateResult{}, err
	}

	now := i.now().UTC()
	tx := model.Transaction{
		Reference:  reference,
		CheckoutID: res.CheckoutID,
		MerchantID: res.MerchantID,
		ActorID:    in.ActorID,
		Phone:      phone,
		Amount:     in.Amount,
		Status:     enums.TransactionStatusPending,
		CreatedAt:  now,
	}
	if err := i.txs.Create(ctx, tx); err != nil {
		i.logger.Error("record pending transaction failed",
			zap.String("checkout_id", res.CheckoutID),
			zap.Error(err),
		)
	}

	entry := model.PendingEntry{
		CheckoutID: res.CheckoutID,
		Reference:  reference,
		ActorID:    in.ActorID,
		Amount:     in.Amount,
		CreatedAt:  now,
	}
	if err := i.pending.Put(ctx, entry); err != nil {
		return InitiateResult{}, fmt.Errorf("register pending payment: %w", err)
	}
	i.metrics.PaymentPending()

	i.logger.Info("payment initiated",
		zap.String("actor_id", in.ActorID),
		zap.String("checkout_id", res.CheckoutID),
		zap.String("reference", reference),
		zap.String("amount", in.Amount.String()),
	)

	if i.tracker != nil {
		i.tracker.Track(entry)
	}

	return InitiateResult{
		Reference:  reference,
		CheckoutID: res.CheckoutID,
		Phone:      phone,
		Amount:     in.Amount,
	}, nil
}

func (i *Initiator) initiateWithRetry(ctx context.Context, req gatewayhttp.InitiateRequest) (gatewayhttp.InitiateResult, error) {
	var lastErr error
	for attempt := 1; attempt <= i.retries; attempt++ {
		res, err := i.gateway.Initiate(ctx, req)
		if err == nil {
			i.metrics.GatewayInitiation("ok")
			return res, nil
		}
		lastErr = err

		if !gatewayhttp.IsRetryable(err) {
			i.metrics.GatewayInitiation("rejected")
			i.logger.Warn("gateway rejected initiation", zap.String("reference", req.Reference), zap.Error(err))
			return gatewayhttp.InitiateResult{}, fmt.Errorf("%w: %v", ErrGatewayRejected, err)
		}

		i.metrics.GatewayInitiation("retry")
		i.logger.Warn("gateway initiation failed",
			zap.String("reference", req.Reference),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if attempt < i.retries {
			if err := i.wait(ctx, i.backoff); err != nil {
				return gatewayhttp.InitiateResult{}, err
			}
		}
	}

	i.metrics.GatewayInitiation("unavailable")
	return gatewayhttp.InitiateResult{}, fmt.Errorf("%w: %v", ErrGatewayUnavailable, lastErr)
}

func newReference() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "DEP" + strings.ToUpper(raw[:12])
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
