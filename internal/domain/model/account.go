package model

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

type Account struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	Balance           decimal.Decimal `json:"balance"`
	MessageCount      int             `json:"message_count"`
	TotalCharges      decimal.Decimal `json:"total_charges"`
	TotalDeposits     decimal.Decimal `json:"total_deposits"`
	Recipients        []string        `json:"recipients"`
	Banned            bool            `json:"banned"`
	BanReason         string          `json:"ban_reason,omitempty"`
	RegisteredAt      time.Time       `json:"registered_at"`
	VIP               bool            `json:"vip"`
	ReferralCode      string          `json:"referral_code,omitempty"`
	Referrals         []string        `json:"referrals"`
	PendingReferrals  []string        `json:"pending_referrals"`
	Templates         []string        `json:"templates"`
	ReferredBy        string          `json:"referred_by,omitempty"`
	ReferralBonusPaid bool            `json:"referral_bonus_paid"`
}

// Clone returns a deep copy so callers can hold it outside the ledger lock.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	out := *a
	out.Recipients = slices.Clone(a.Recipients)
	out.Referrals = slices.Clone(a.Referrals)
	out.PendingReferrals = slices.Clone(a.PendingReferrals)
	out.Templates = slices.Clone(a.Templates)
	return &out
}

func (a *Account) HasRecipient(phone string) bool {
	return slices.Contains(a.Recipients, phone)
}

// AddRecipients appends phones not already present and returns how many were added.
func (a *Account) AddRecipients(phones ...string) int {
	added := 0
	for _, phone := range phones {
		if phone == "" || a.HasRecipient(phone) {
			continue
		}
		a.Recipients = append(a.Recipients, phone)
		added++
	}
	return added
}

func (a *Account) RemoveRecipient(phone string) bool {
	idx := slices.Index(a.Recipients, phone)
	if idx < 0 {
		return false
	}
	a.Recipients = slices.Delete(a.Recipients, idx, idx+1)
	return true
}

func (a *Account) RemovePendingReferral(actorID string) bool {
	idx := slices.Index(a.PendingReferrals, actorID)
	if idx < 0 {
		return false
	}
	a.PendingReferrals = slices.Delete(a.PendingReferrals, idx, idx+1)
	return true
}
