package payments

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/GK-FY/bulk/internal/domain/model"
	"github.com/GK-FY/bulk/internal/repo/gatewayhttp"
	pgrepo "github.com/GK-FY/bulk/internal/repo/postgres"
	"github.com/GK-FY/bulk/internal/services/referral"
	"github.com/GK-FY/bulk/internal/services/settings"
)

var (
	ErrValidation         = errors.New("validation error")
	ErrInvalidPhone       = errors.New("invalid phone number")
	ErrAmountOutOfRange   = errors.New("amount out of range")
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrGatewayRejected    = errors.New("payment gateway rejected the request")
)

type Gateway interface {
	Initiate(ctx context.Context, req gatewayhttp.InitiateRequest) (gatewayhttp.InitiateResult, error)
	Status(ctx context.Context, checkoutID string) (gatewayhttp.StatusResult, error)
}

type TransactionStore interface {
	Create(ctx context.Context, tx model.Transaction) error
	Resolve(ctx context.Context, in pgrepo.ResolveInput) (model.Transaction, error)
}

type Ledger interface {
	Get(actorID string) (*model.Account, bool)
	Update(ctx context.Context, actorID string, fn func(*model.Account) error) (*model.Account, error)
}

type ReferralPayer interface {
	Payout(ctx context.Context, referredID string, amount decimal.Decimal) (referral.PayoutResult, error)
}

type SettingsSource interface {
	Current() settings.Settings
}

type TopUpLimiter interface {
	AllowTopUp(ctx context.Context, actorID string) (int64, bool, error)
}

// Notifier delivers a text to an actor. Delivery is best effort.
type Notifier interface {
	Notify(ctx context.Context, actorID, text string)
}

type AdminDirectory interface {
	AdminIDs() []string
}

// Tracker starts the status poll for a freshly registered checkout.
type Tracker interface {
	Track(entry model.PendingEntry)
}
