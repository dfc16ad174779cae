package enums

import "testing"

func TestGatewayStatusOutcome(t *testing.T) {
	cases := []struct {
		status GatewayStatus
		want   TransactionStatus
		ok     bool
	}{
		{GatewayStatusCompleted, TransactionStatusCompleted, true},
		{GatewayStatusSuccess, TransactionStatusCompleted, true},
		{GatewayStatusFailed, TransactionStatusFailed, true},
		{GatewayStatusCancelled, TransactionStatusFailed, true},
		{GatewayStatusPending, TransactionStatusPending, false},
		{GatewayStatus("queued"), TransactionStatusPending, false},
	}

	for _, tc := range cases {
		got, ok := tc.status.Outcome()
		if got != tc.want || ok != tc.ok {
			t.Fatalf("%s: got (%s, %v) want (%s, %v)", tc.status, got, ok, tc.want, tc.ok)
		}
	}
}
