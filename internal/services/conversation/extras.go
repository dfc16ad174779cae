package conversation

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/GK-FY/bulk/internal/domain/model"
	"github.com/GK-FY/bulk/internal/domain/rules"
)

const (
	maxTemplates      = 10
	recentTxLimit     = 5
	accountDateLayout = "2006-01-02"
)

func (m *Machine) showBalance(t *turn) error {
	a := t.account
	t.replyf("Balance: %s\nMessages sent: %d\nTotal charges: %s\nRate: %s per character",
		rules.FormatMoney(a.Balance), a.MessageCount, rules.FormatMoney(a.TotalCharges),
		t.settings.CostPerCharFor(a.VIP).String())
	return nil
}

func (m *Machine) startTemplates(t *turn) error {
	if err := m.enter(t, Session{Stage: StageTemplates}); err != nil {
		return err
	}
	var b strings.Builder
	if len(t.account.Templates) == 0 {
		b.WriteString("You have no saved templates.")
	} else {
		b.WriteString("Your templates:\n")
		b.WriteString(numbered(t.account.Templates, maxTemplates))
	}
	b.WriteString("\n\n1. Add template\n2. Send a template\n3. Delete template\n\nSend 0 to cancel.")
	t.reply(b.String())
	return nil
}

func (m *Machine) handleTemplatesChoice(t *turn) error {
	switch t.text {
	case "1":
		if len(t.account.Templates) >= maxTemplates {
			t.replyf("You can keep at most %d templates. Delete one first.", maxTemplates)
			return m.finish(t)
		}
		if err := m.enter(t, Session{Stage: StageTemplateAdd}); err != nil {
			return err
		}
		t.reply("Type the template text.")
	case "2", "3":
		if len(t.account.Templates) == 0 {
			t.reply("You have no saved templates.")
			return m.finish(t)
		}
		next := StageTemplateUse
		if t.text == "3" {
			next = StageTemplateDelete
		}
		if err := m.enter(t, Session{Stage: next}); err != nil {
			return err
		}
		t.reply("Send the template number:\n" + numbered(t.account.Templates, maxTemplates))
	default:
		t.reply("Please send 1, 2 or 3, or 0 to cancel.")
	}
	return nil
}

func (m *Machine) handleTemplateAdd(t *turn) error {
	if t.text == "" {
		t.reply("The template is empty. Type the text, or 0 to cancel.")
		return nil
	}
	if _, err := m.ledger.Update(t.ctx, t.event.ActorID, func(a *model.Account) error {
		a.Templates = append(a.Templates, t.text)
		return nil
	}); err != nil {
		return fmt.Errorf("save template: %w", err)
	}
	t.reply("Template saved.")
	return m.finish(t)
}

func (m *Machine) handleTemplateUse(t *turn) error {
	idx, ok := parseIndex(t.text, len(t.account.Templates))
	if !ok {
		t.reply("Please send a template number from the list, or 0 to cancel.")
		return nil
	}
	if len(t.account.Recipients) == 0 {
		t.reply("You have no recipients yet. Send 1 to add some first.")
		return m.finish(t)
	}
	return m.sendBroadcast(t, t.account.Templates[idx])
}

func (m *Machine) handleTemplateDelete(t *turn) error {
	idx, ok := parseIndex(t.text, len(t.account.Templates))
	if !ok {
		t.reply("Please send a template number from the list, or 0 to cancel.")
		return nil
	}
	if _, err := m.ledger.Update(t.ctx, t.event.ActorID, func(a *model.Account) error {
		if idx < len(a.Templates) {
			a.Templates = append(a.Templates[:idx], a.Templates[idx+1:]...)
		}
		return nil
	}); err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	t.reply("Template deleted.")
	return m.finish(t)
}

func (m *Machine) showReferral(t *turn) error {
	summary, err := m.referrals.Summary(t.ctx, t.event.ActorID)
	if err != nil {
		return fmt.Errorf("referral summary: %w", err)
	}
	t.replyf("Your referral code: %s\n\nShare it with friends. When someone registers with it and deposits at least %s, you earn %s.\n\nReferred: %d\nBonuses earned: %d\nAwaiting first deposit: %d",
		summary.Code, rules.FormatMoney(t.settings.ReferralMinDeposit), rules.FormatMoney(summary.Bonus),
		summary.Total, summary.Paid, summary.Pending)
	return nil
}

func (m *Machine) showAnalytics(t *turn) error {
	a := t.account
	var b strings.Builder
	fmt.Fprintf(&b, "Analytics\nRecipients: %d\nMessages sent: %d\nTotal charges: %s\nTotal deposits: %s\nReferrals: %d\nMember since: %s",
		len(a.Recipients), a.MessageCount, rules.FormatMoney(a.TotalCharges), rules.FormatMoney(a.TotalDeposits),
		len(a.Referrals), a.RegisteredAt.Format(accountDateLayout))

	if m.transactions != nil {
		txs, err := m.transactions.ListRecent(t.ctx, a.ID, recentTxLimit)
		if err != nil {
			m.logger.Warn("list recent transactions failed", zap.String("actor_id", a.ID), zap.Error(err))
		} else if len(txs) > 0 {
			b.WriteString("\n\nRecent top-ups:")
			for _, tx := range txs {
				fmt.Fprintf(&b, "\n%s %s %s", tx.CreatedAt.Format(accountDateLayout), rules.FormatMoney(tx.Amount), tx.Status)
			}
		}
	}
	t.reply(b.String())
	return nil
}

func (m *Machine) showProfile(t *turn) error {
	a := t.account
	code, err := m.referrals.CodeFor(t.ctx, a.ID)
	if err != nil {
		return fmt.Errorf("referral code: %w", err)
	}
	status := "Standard"
	if a.VIP {
		status = "VIP"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Profile\nUsername: %s\nID: %s\nStatus: %s\nBalance: %s\nRegistered: %s\nReferral code: %s",
		a.Name, a.ID, status, rules.FormatMoney(a.Balance), a.RegisteredAt.Format(accountDateLayout), code)
	if a.ReferredBy != "" {
		if referrer, ok := m.ledger.Get(a.ReferredBy); ok {
			fmt.Fprintf(&b, "\nReferred by: %s", referrer.Name)
		}
	}
	t.reply(b.String())
	return nil
}

func (m *Machine) startDeleteAccount(t *turn) error {
	if err := m.enter(t, Session{Stage: StageDeleteConfirm}); err != nil {
		return err
	}
	t.replyf("Delete your account? Your balance of %s and all recipients will be lost.\n1. Yes, delete\n2. No, keep it",
		rules.FormatMoney(t.account.Balance))
	return nil
}

func (m *Machine) handleDeleteConfirm(t *turn) error {
	switch t.text {
	case "1":
		if err := m.ledger.Delete(t.ctx, t.event.ActorID); err != nil {
			return fmt.Errorf("delete account: %w", err)
		}
		if err := m.clear(t); err != nil {
			return err
		}
		m.logger.Info("account deleted", zap.String("actor_id", t.event.ActorID))
		t.reply("Your account has been deleted. Send hi to register again.")
		return nil
	case "2":
		t.reply("Your account was kept.")
		return m.finish(t)
	default:
		t.reply("Please send 1 to delete or 2 to keep your account.")
		return nil
	}
}
