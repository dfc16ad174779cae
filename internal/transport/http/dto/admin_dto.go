package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

type AdminSettingsResponse struct {
	Settings map[string]string `json:"settings"`
}

type AdminSettingUpdateRequest struct {
	Value string `json:"value"`
}

type AdminSettingUpdateResponse struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type AdminAccountItem struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	Balance           decimal.Decimal `json:"balance"`
	MessageCount      int             `json:"message_count"`
	TotalCharges      decimal.Decimal `json:"total_charges"`
	TotalDeposits     decimal.Decimal `json:"total_deposits"`
	Recipients        int             `json:"recipients"`
	Templates         int             `json:"templates"`
	VIP               bool            `json:"vip"`
	Banned            bool            `json:"banned"`
	BanReason         string          `json:"ban_reason,omitempty"`
	ReferralCode      string          `json:"referral_code,omitempty"`
	ReferredBy        string          `json:"referred_by,omitempty"`
	Referrals         int             `json:"referrals"`
	PendingReferrals  int             `json:"pending_referrals"`
	ReferralBonusPaid bool            `json:"referral_bonus_paid"`
	RegisteredAt      time.Time       `json:"registered_at"`
}

type AdminAccountsResponse struct {
	Total int                `json:"total"`
	Items []AdminAccountItem `json:"items"`
}

type AdminTransactionItem struct {
	Reference       string          `json:"reference"`
	CheckoutID      string          `json:"checkout_request_id"`
	ActorID         string          `json:"actor_id"`
	Phone           string          `json:"phone"`
	Amount          decimal.Decimal `json:"amount"`
	Status          string          `json:"status"`
	TransactionCode string          `json:"transaction_code,omitempty"`
	FailureReason   string          `json:"failure_reason,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

type AdminTransactionsResponse struct {
	Pending         int                    `json:"pending"`
	Completed       int                    `json:"completed"`
	Failed          int                    `json:"failed"`
	CompletedAmount decimal.Decimal        `json:"completed_amount"`
	Items           []AdminTransactionItem `json:"items"`
}

type AdminTokenRequest struct {
	Subject string `json:"subject"`
}

type AdminTokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
