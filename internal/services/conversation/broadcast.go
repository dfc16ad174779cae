package conversation

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/GK-FY/bulk/internal/domain/model"
	"github.com/GK-FY/bulk/internal/domain/rules"
	"github.com/GK-FY/bulk/internal/services/settings"
)

var errInsufficientBalance = errors.New("insufficient balance")

func (m *Machine) startBroadcast(t *turn) error {
	if len(t.account.Recipients) == 0 {
		t.reply("You have no recipients yet. Send 1 to add some first.")
		return nil
	}
	if err := m.enter(t, Session{Stage: StageBroadcastMessage}); err != nil {
		return err
	}
	rate := t.settings.CostPerCharFor(t.account.VIP)
	t.replyf("Type the message to send to your %d recipient(s). Cost is %s per character.\n\nSend 0 to cancel.",
		len(t.account.Recipients), rate.String())
	return nil
}

func (m *Machine) handleBroadcastMessage(t *turn) error {
	if t.text == "" {
		t.reply("The message is empty. Type the text to send, or 0 to cancel.")
		return nil
	}
	return m.sendBroadcast(t, t.text)
}

// sendBroadcast debits the actor and fans text out to every recipient. A
// balance shortfall aborts the flow; the actor has to start again.
func (m *Machine) sendBroadcast(t *turn, text string) error {
	cost := rules.BroadcastCost(text, t.settings.CostPerCharFor(t.account.VIP))

	var recipients []string
	var balance decimal.Decimal
	updated, err := m.ledger.Update(t.ctx, t.event.ActorID, func(a *model.Account) error {
		if a.Balance.LessThan(cost) {
			balance = a.Balance
			return errInsufficientBalance
		}
		a.Balance = a.Balance.Sub(cost)
		a.MessageCount++
		a.TotalCharges = a.TotalCharges.Add(cost)
		recipients = append([]string(nil), a.Recipients...)
		return nil
	})
	if errors.Is(err, errInsufficientBalance) {
		t.reply(settings.Render(t.settings.InsufficientBalanceMessage, map[string]string{
			"cost":      rules.FormatMoney(cost),
			"balance":   rules.FormatMoney(balance),
			"shortfall": rules.FormatMoney(rules.Shortfall(balance, cost)),
		}))
		return m.finish(t)
	}
	if err != nil {
		return fmt.Errorf("debit broadcast: %w", err)
	}

	report := m.broadcaster.FanOut(t.ctx, updated.ID, updated.Name, text, recipients)

	msg := fmt.Sprintf("Broadcast sent to %d recipient(s).", report.Sent)
	if report.Failed > 0 {
		msg += fmt.Sprintf(" %d could not be queued.", report.Failed)
	}
	msg += fmt.Sprintf("\nCharged: %s\nBalance: %s", rules.FormatMoney(cost), rules.FormatMoney(updated.Balance))
	t.reply(msg)
	return m.finish(t)
}
