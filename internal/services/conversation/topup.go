package conversation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/GK-FY/bulk/internal/domain/rules"
	"github.com/GK-FY/bulk/internal/services/payments"
)

func (m *Machine) startTopup(t *turn) error {
	if err := m.enter(t, Session{Stage: StageTopupAmount}); err != nil {
		return err
	}
	t.replyf("Enter the amount to top up (%s to %s).\n\nSend 0 to cancel.",
		rules.FormatMoney(t.settings.TopupMinAmount), rules.FormatMoney(t.settings.TopupMaxAmount))
	return nil
}

// handleTopupAmount keeps the stage on malformed input but aborts the flow
// when the amount is outside the configured bounds.
func (m *Machine) handleTopupAmount(t *turn) error {
	amount, err := decimal.NewFromString(strings.ReplaceAll(t.text, ",", ""))
	if err != nil || !amount.IsPositive() {
		t.reply("Please enter the amount as a number, e.g. 500. Send 0 to cancel.")
		return nil
	}
	if err := m.payments.ValidateAmount(amount); err != nil {
		t.replyf("Top-up amount must be between %s and %s. Send 6 to start again.",
			rules.FormatMoney(t.settings.TopupMinAmount), rules.FormatMoney(t.settings.TopupMaxAmount))
		return m.clear(t)
	}

	if err := m.enter(t, Session{Stage: StageTopupPhone, Amount: amount.String()}); err != nil {
		return err
	}
	t.replyf("Enter the M-Pesa phone number to charge %s (e.g. 0712345678).", rules.FormatMoney(amount))
	return nil
}

func (m *Machine) handleTopupPhone(t *turn) error {
	phone, ok := rules.NormalizePhone(t.text)
	if !ok {
		t.reply("That phone number is not valid. Use a format like 0712345678, or send 0 to cancel.")
		return nil
	}
	amount, err := decimal.NewFromString(t.session.Amount)
	if err != nil {
		t.reply("Something went wrong with the amount. Send 6 to start again.")
		return m.clear(t)
	}

	res, err := m.payments.Initiate(t.ctx, payments.InitiateInput{
		ActorID: t.event.ActorID,
		Phone:   phone,
		Amount:  amount,
	})
	if err != nil {
		if cerr := m.clear(t); cerr != nil {
			return cerr
		}
		var rl *payments.RateLimitError
		switch {
		case errors.As(err, &rl):
			t.replyf("Too many top-up attempts. Please wait %d seconds and send 6 to try again.", rl.RetryAfterSec)
		case errors.Is(err, payments.ErrAmountOutOfRange):
			t.reply("The top-up limits have changed. Send 6 to start again.")
		case errors.Is(err, payments.ErrGatewayRejected):
			t.reply("The payment request was declined. Check the phone number and send 6 to try again.")
		default:
			m.logger.Warn("top-up initiation failed", zap.String("actor_id", t.event.ActorID), zap.Error(err))
			t.reply("Payment gateway unavailable. Please send 6 to try again in a few minutes.")
		}
		return nil
	}

	t.reply(fmt.Sprintf("A payment prompt for %s was sent to %s. Enter your M-Pesa PIN to complete it.\nReference: %s\nYour balance updates as soon as the payment is confirmed.",
		rules.FormatMoney(res.Amount), res.Phone, res.Reference))
	return m.clear(t)
}
