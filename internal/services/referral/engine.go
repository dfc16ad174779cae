package referral

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/GK-FY/bulk/internal/domain/model"
	"github.com/GK-FY/bulk/internal/services/ledger"
	"github.com/GK-FY/bulk/internal/services/settings"
)

var ErrSelfReferral = errors.New("self referral")

type Ledger interface {
	Get(actorID string) (*model.Account, bool)
	FindByReferralCode(code string) (*model.Account, bool)
	AssignReferralCode(ctx context.Context, actorID string) (string, error)
	Update(ctx context.Context, actorID string, fn func(*model.Account) error) (*model.Account, error)
	UpdateMany(ctx context.Context, actorIDs []string, fn func(map[string]*model.Account) error) error
}

type SettingsSource interface {
	Current() settings.Settings
}

type Engine struct {
	ledger   Ledger
	settings SettingsSource
	logger   *zap.Logger
}

type PayoutResult struct {
	Paid         bool
	ReferrerID   string
	ReferrerName string
	ReferredName string
	Bonus        decimal.Decimal
}

func NewEngine(l Ledger, s SettingsSource, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{ledger: l, settings: s, logger: logger}
}

// CodeFor returns the actor's referral code, generating and storing it on
// first access. Codes are unique across accounts.
func (e *Engine) CodeFor(ctx context.Context, actorID string) (string, error) {
	account, ok := e.ledger.Get(actorID)
	if !ok {
		return "", ledger.ErrAccountNotFound
	}
	if account.ReferralCode != "" {
		return account.ReferralCode, nil
	}

	code, err := e.ledger.AssignReferralCode(ctx, actorID)
	if err != nil {
		return "", fmt.Errorf("store referral code: %w", err)
	}
	return code, nil
}

// FindReferrer resolves a code to the referring actor, excluding the actor
// who is registering.
func (e *Engine) FindReferrer(code, newActorID string) (*model.Account, bool) {
	referrer, ok := e.ledger.FindByReferralCode(strings.TrimSpace(code))
	if !ok || referrer.ID == newActorID {
		return nil, false
	}
	return referrer, true
}

// ApplyReferral links a freshly registered actor to the owner of code. It
// returns the referrer id, or false when the code matches nobody.
func (e *Engine) ApplyReferral(ctx context.Context, newActorID, code string) (string, bool, error) {
	referrer, ok := e.FindReferrer(code, newActorID)
	if !ok {
		return "", false, nil
	}

	err := e.ledger.UpdateMany(ctx, []string{newActorID, referrer.ID}, func(accounts map[string]*model.Account) error {
		newcomer := accounts[newActorID]
		owner := accounts[referrer.ID]
		if newcomer.ReferredBy != "" {
			return nil
		}
		newcomer.ReferredBy = owner.ID
		if owner.ReferralCode == "" {
			owner.ReferralCode = strings.ToUpper(strings.TrimSpace(code))
		}
		if !slices.Contains(owner.Referrals, newcomer.ID) {
			owner.Referrals = append(owner.Referrals, newcomer.ID)
		}
		if !slices.Contains(owner.PendingReferrals, newcomer.ID) {
			owner.PendingReferrals = append(owner.PendingReferrals, newcomer.ID)
		}
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("apply referral: %w", err)
	}

	e.logger.Info("referral applied", zap.String("actor_id", newActorID), zap.String("referrer_id", referrer.ID))
	return referrer.ID, true, nil
}

// Payout credits the referrer of referredID once, when amount reaches the
// qualifying threshold. The paid flag is checked and set in the same ledger
// update as the credit.
func (e *Engine) Payout(ctx context.Context, referredID string, amount decimal.Decimal) (PayoutResult, error) {
	current := e.settings.Current()
	if amount.LessThan(current.ReferralMinDeposit) {
		return PayoutResult{}, nil
	}

	referred, ok := e.ledger.Get(referredID)
	if !ok || referred.ReferredBy == "" || referred.ReferralBonusPaid {
		return PayoutResult{}, nil
	}
	referrerID := referred.ReferredBy
	if _, ok := e.ledger.Get(referrerID); !ok {
		return PayoutResult{}, nil
	}

	var out PayoutResult
	err := e.ledger.UpdateMany(ctx, []string{referredID, referrerID}, func(accounts map[string]*model.Account) error {
		newcomer := accounts[referredID]
		owner := accounts[referrerID]
		if newcomer.ReferralBonusPaid || newcomer.ReferredBy != owner.ID {
			return nil
		}
		if newcomer.ID == owner.ID {
			return ErrSelfReferral
		}

		newcomer.ReferralBonusPaid = true
		owner.Balance = owner.Balance.Add(current.ReferralBonus)
		owner.RemovePendingReferral(newcomer.ID)

		out = PayoutResult{
			Paid:         true,
			ReferrerID:   owner.ID,
			ReferrerName: owner.Name,
			ReferredName: newcomer.Name,
			Bonus:        current.ReferralBonus,
		}
		return nil
	})
	if err != nil {
		return PayoutResult{}, fmt.Errorf("referral payout: %w", err)
	}

	if out.Paid {
		e.logger.Info("referral bonus paid",
			zap.String("referrer_id", out.ReferrerID),
			zap.String("referred_id", referredID),
			zap.String("bonus", out.Bonus.String()),
		)
	}
	return out, nil
}

type Summary struct {
	Code    string
	Total   int
	Pending int
	Paid    int
	Bonus   decimal.Decimal
}

func (e *Engine) Summary(ctx context.Context, actorID string) (Summary, error) {
	code, err := e.CodeFor(ctx, actorID)
	if err != nil {
		return Summary{}, err
	}
	account, _ := e.ledger.Get(actorID)
	return Summary{
		Code:    code,
		Total:   len(account.Referrals),
		Pending: len(account.PendingReferrals),
		Paid:    len(account.Referrals) - len(account.PendingReferrals),
		Bonus:   e.settings.Current().ReferralBonus,
	}, nil
}
