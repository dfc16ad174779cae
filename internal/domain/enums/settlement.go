package enums

import "strings"

// SettlementPath names the driver that resolved a pending payment.
type SettlementPath string

const (
	SettlementPathPush    SettlementPath = "push"
	SettlementPathPull    SettlementPath = "pull"
	SettlementPathTimeout SettlementPath = "timeout"
)

type GatewayStatus string

const (
	GatewayStatusPending   GatewayStatus = "pending"
	GatewayStatusCompleted GatewayStatus = "completed"
	GatewayStatusSuccess   GatewayStatus = "success"
	GatewayStatusFailed    GatewayStatus = "failed"
	GatewayStatusCancelled GatewayStatus = "cancelled"
)

// Outcome maps a gateway status onto a transaction status. ok is false for
// statuses that do not settle the payment yet.
func (s GatewayStatus) Outcome() (TransactionStatus, bool) {
	switch s {
	case GatewayStatusCompleted, GatewayStatusSuccess:
		return TransactionStatusCompleted, true
	case GatewayStatusFailed, GatewayStatusCancelled:
		return TransactionStatusFailed, true
	default:
		return TransactionStatusPending, false
	}
}

func ParseGatewayStatus(raw string) GatewayStatus {
	return GatewayStatus(strings.ToLower(strings.TrimSpace(raw)))
}
