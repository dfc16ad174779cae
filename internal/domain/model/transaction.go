package model

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/GK-FY/bulk/internal/domain/enums"
)

type Transaction struct {
	Reference       string                  `json:"reference"`
	CheckoutID      string                  `json:"checkout_request_id"`
	MerchantID      string                  `json:"merchant_request_id"`
	ActorID         string                  `json:"actor_id"`
	Phone           string                  `json:"phone"`
	Amount          decimal.Decimal         `json:"amount"`
	Status          enums.TransactionStatus `json:"status"`
	TransactionCode string                  `json:"transaction_code,omitempty"`
	FailureReason   string                  `json:"failure_reason,omitempty"`
	CreatedAt       time.Time               `json:"created_at"`
	UpdatedAt       time.Time               `json:"updated_at"`
}

// PendingEntry marks a checkout that has not been credited yet. Whoever
// removes it owns the crediting of that checkout.
type PendingEntry struct {
	CheckoutID string          `json:"checkout_request_id"`
	Reference  string          `json:"reference"`
	ActorID    string          `json:"actor_id"`
	Amount     decimal.Decimal `json:"amount"`
	CreatedAt  time.Time       `json:"created_at"`
}

type TransactionStats struct {
	Pending         int             `json:"pending"`
	Completed       int             `json:"completed"`
	Failed          int             `json:"failed"`
	CompletedAmount decimal.Decimal `json:"completed_amount"`
}
