package enums

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s TransactionStatus) Terminal() bool {
	return s == TransactionStatusCompleted || s == TransactionStatusFailed
}
