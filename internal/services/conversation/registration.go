package conversation

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/GK-FY/bulk/internal/domain/model"
	"github.com/GK-FY/bulk/internal/domain/rules"
	"github.com/GK-FY/bulk/internal/services/ledger"
)

const usernamePrompt = "Please choose a username (at least 2 characters, not only digits)."

func (m *Machine) startRegistration(t *turn) error {
	if err := m.enter(t, Session{Stage: StageAwaitRegister}); err != nil {
		return err
	}
	t.reply(t.settings.WelcomeMessage + "\n" + usernamePrompt)
	return nil
}

func (m *Machine) handleUsername(t *turn) error {
	name := strings.TrimSpace(t.text)
	if err := rules.ValidateUsername(name); err != nil {
		switch {
		case errors.Is(err, rules.ErrUsernameNumeric):
			t.reply("A username cannot be only digits. " + usernamePrompt)
		default:
			t.reply("That username is too short. " + usernamePrompt)
		}
		return nil
	}
	if _, taken := m.ledger.FindByUsername(name); taken {
		t.replyf("The username %q is already taken. Please choose another one.", name)
		return nil
	}

	if !t.settings.ReferralsEnabled {
		return m.completeRegistration(t, name, "")
	}

	if err := m.enter(t, Session{Stage: StageAwaitReferral, PendingName: name}); err != nil {
		return err
	}
	t.replyf("Nice to meet you, %s! Do you have a referral code?\n1. Yes\n2. No", name)
	return nil
}

func (m *Machine) handleReferralChoice(t *turn) error {
	switch strings.ToLower(t.text) {
	case "1", "yes", "y":
		if err := m.enter(t, Session{Stage: StageEnterReferralCode, PendingName: t.session.PendingName}); err != nil {
			return err
		}
		t.reply("Enter the referral code, or send 2 to skip.")
		return nil
	case "2", "no", "n":
		return m.completeRegistration(t, t.session.PendingName, "")
	default:
		t.reply("Please send 1 if you have a referral code or 2 if you don't.")
		return nil
	}
}

func (m *Machine) handleReferralCode(t *turn) error {
	code := strings.TrimSpace(t.text)
	if code == "2" {
		return m.completeRegistration(t, t.session.PendingName, "")
	}
	if _, ok := m.referrals.FindReferrer(code, t.event.ActorID); !ok {
		t.reply("That referral code is not valid. Check it and try again, or send 2 to skip.")
		return nil
	}
	return m.completeRegistration(t, t.session.PendingName, code)
}

func (m *Machine) completeRegistration(t *turn, name, code string) error {
	account, err := m.ledger.Register(t.ctx, &model.Account{
		ID:   t.event.ActorID,
		Name: name,
	})
	switch {
	case errors.Is(err, ledger.ErrUsernameTaken):
		if err := m.enter(t, Session{Stage: StageAwaitRegister}); err != nil {
			return err
		}
		t.replyf("The username %q was just taken. Please choose another one.", name)
		return nil
	case errors.Is(err, ledger.ErrAccountExists):
		m.refresh(t)
		return m.finish(t)
	case err != nil:
		return fmt.Errorf("register account: %w", err)
	}
	t.account = account

	if code != "" {
		referrerID, ok, err := m.referrals.ApplyReferral(t.ctx, account.ID, code)
		if err != nil {
			m.logger.Error("apply referral failed", zap.String("actor_id", account.ID), zap.Error(err))
		} else if ok {
			t.send(referrerID, fmt.Sprintf(
				"%s joined using your referral code. You will earn %s once they deposit at least %s.",
				account.Name, rules.FormatMoney(t.settings.ReferralBonus), rules.FormatMoney(t.settings.ReferralMinDeposit)))
		}
	}

	m.logger.Info("actor registered", zap.String("actor_id", account.ID), zap.Bool("referred", code != ""))
	t.replyf("Registration complete. Welcome, %s!", account.Name)
	return m.finish(t)
}
