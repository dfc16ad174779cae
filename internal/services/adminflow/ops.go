package adminflow

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/GK-FY/bulk/internal/domain/model"
	"github.com/GK-FY/bulk/internal/domain/rules"
	"github.com/GK-FY/bulk/internal/services/access"
	"github.com/GK-FY/bulk/internal/services/settings"
)

const (
	userListLimit    = 50
	recentTxLimit    = 10
	detailDateLayout = "2006-01-02 15:04"
)

var errNegativeBalance = errors.New("balance would become negative")

type operation struct {
	label string
	start func(m *Machine, t *turn) error
	input func(m *Machine, t *turn) error
}

var operationOrder = []string{
	"1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "11", "12",
	"13", "14", "15", "16", "17", "18", "19", "20", "21", "22", "23",
}

func operationTable() map[string]operation {
	return map[string]operation{
		"1":  {label: "List users", start: (*Machine).listUsers},
		"2":  settingOperation("Set cost per character", settings.KeyCostPerChar),
		"3":  {label: "Add balance", start: askUser("3"), input: (*Machine).adjustBalanceInput},
		"4":  {label: "Deduct balance", start: askUser("4"), input: (*Machine).adjustBalanceInput},
		"5":  {label: "Ban user", start: askUser("5"), input: (*Machine).banInput},
		"6":  {label: "Unban user", start: askUser("6"), input: (*Machine).unbanInput},
		"7":  {label: "Broadcast to all users", start: (*Machine).askBroadcast, input: (*Machine).broadcastInput},
		"8":  {label: "Add admin", start: askAdmin("8"), input: (*Machine).addAdminInput},
		"9":  {label: "Remove admin", start: askAdmin("9"), input: (*Machine).removeAdminInput},
		"10": {label: "View settings", start: (*Machine).viewSettings},
		"11": {label: "Edit setting", start: (*Machine).askSettingKey, input: (*Machine).editSettingInput},
		"12": {label: "Toggle maintenance mode", start: (*Machine).toggleMaintenance},
		"13": toggleOperation("Toggle templates", settings.KeyTemplatesEnabled),
		"14": toggleOperation("Toggle referrals", settings.KeyReferralsEnabled),
		"15": toggleOperation("Toggle analytics", settings.KeyAnalyticsEnabled),
		"16": {label: "Grant VIP", start: askUser("16"), input: (*Machine).vipInput},
		"17": {label: "Revoke VIP", start: askUser("17"), input: (*Machine).vipInput},
		"18": {label: "List VIP users", start: (*Machine).listVIP},
		"19": settingOperation("Set referral bonus", settings.KeyReferralBonus),
		"20": settingOperation("Set minimum top-up", settings.KeyTopupMinAmount),
		"21": settingOperation("Set maximum top-up", settings.KeyTopupMaxAmount),
		"22": {label: "User details", start: askUser("22"), input: (*Machine).userDetailsInput},
		"23": {label: "Payment statistics", start: (*Machine).paymentStats},
	}
}

func askUser(op string) func(m *Machine, t *turn) error {
	return func(m *Machine, t *turn) error {
		if err := m.await(t, Session{Awaiting: op}); err != nil {
			return err
		}
		t.reply("Send the user id or username.")
		return nil
	}
}

func askAdmin(op string) func(m *Machine, t *turn) error {
	return func(m *Machine, t *turn) error {
		if err := m.await(t, Session{Awaiting: op}); err != nil {
			return err
		}
		t.replyf("Current admins: %s\nSend the actor id.", strings.Join(m.access.AdminIDs(), ", "))
		return nil
	}
}

// targetInput resolves the account named by the admin, re-prompting on a miss.
func (m *Machine) targetInput(t *turn) (*model.Account, bool) {
	account, ok := m.resolveAccount(t.text)
	if !ok {
		t.reply("No such user. Send another id or username, or 0 to cancel.")
		return nil, false
	}
	return account, true
}

func (m *Machine) listUsers(t *turn) error {
	accounts := m.ledger.All()
	if len(accounts) == 0 {
		t.reply("No registered users.")
		return nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Users (%d):", len(accounts))
	for i, a := range accounts {
		if i == userListLimit {
			fmt.Fprintf(&b, "\n...and %d more", len(accounts)-userListLimit)
			break
		}
		fmt.Fprintf(&b, "\n%d. %s (%s) %s", i+1, a.Name, a.ID, rules.FormatMoney(a.Balance))
		if a.VIP {
			b.WriteString(" [VIP]")
		}
		if a.Banned {
			b.WriteString(" [BANNED]")
		}
	}
	t.reply(b.String())
	return nil
}

func settingOperation(label, key string) operation {
	return operation{
		label: label,
		start: func(m *Machine, t *turn) error {
			if err := m.await(t, Session{Awaiting: opForKey(key), Key: key}); err != nil {
				return err
			}
			t.replyf("Current %s: %s\nSend the new value.", key, m.settings.GetAll()[key])
			return nil
		},
		input: (*Machine).settingValueInput,
	}
}

func opForKey(key string) string {
	switch key {
	case settings.KeyCostPerChar:
		return "2"
	case settings.KeyReferralBonus:
		return "19"
	case settings.KeyTopupMinAmount:
		return "20"
	case settings.KeyTopupMaxAmount:
		return "21"
	default:
		return "11"
	}
}

func (m *Machine) settingValueInput(t *turn) error {
	return m.applySetting(t, t.session.Key, t.text)
}

// applySetting writes one setting. A rejected value keeps the previous one.
func (m *Machine) applySetting(t *turn, key, value string) error {
	previous := m.settings.GetAll()[key]
	if err := m.settings.Set(t.ctx, key, value); err != nil {
		if errors.Is(err, settings.ErrInvalidValue) || errors.Is(err, settings.ErrUnknownKey) {
			t.replyf("Rejected: %v\n%s stays %s.", err, key, previous)
			return m.done(t)
		}
		m.logger.Error("setting write failed", zap.String("key", key), zap.Error(err))
		t.replyf("Could not save %s. It stays %s.", key, previous)
		return m.done(t)
	}
	m.logger.Info("setting changed by admin", zap.String("admin_id", t.actorID), zap.String("key", key))
	t.replyf("%s updated: %s", key, m.settings.GetAll()[key])
	return m.done(t)
}

func (m *Machine) adjustBalanceInput(t *turn) error {
	if t.session.Step == 0 {
		account, ok := m.targetInput(t)
		if !ok {
			return nil
		}
		next := t.session
		next.Step, next.Target = 1, account.ID
		if err := m.await(t, next); err != nil {
			return err
		}
		t.replyf("%s has %s. Send the amount.", account.Name, rules.FormatMoney(account.Balance))
		return nil
	}

	amount, err := decimal.NewFromString(t.text)
	if err != nil || !amount.IsPositive() {
		t.reply("Send a positive amount, or 0 to cancel.")
		return nil
	}
	deduct := t.session.Awaiting == "4"
	allowNegative := m.settings.Current().AllowNegativeBalance

	updated, err := m.ledger.Update(t.ctx, t.session.Target, func(a *model.Account) error {
		if !deduct {
			a.Balance = a.Balance.Add(amount)
			return nil
		}
		if !allowNegative && a.Balance.LessThan(amount) {
			return errNegativeBalance
		}
		a.Balance = a.Balance.Sub(amount)
		return nil
	})
	switch {
	case errors.Is(err, errNegativeBalance):
		t.reply("Rejected: the balance cannot go below zero.")
		return m.done(t)
	case err != nil:
		return fmt.Errorf("adjust balance: %w", err)
	}

	verb := "credited with"
	if deduct {
		verb = "debited by"
	}
	m.logger.Info("balance adjusted by admin",
		zap.String("admin_id", t.actorID),
		zap.String("actor_id", updated.ID),
		zap.Bool("deduct", deduct),
		zap.String("amount", amount.String()),
	)
	t.send(updated.ID, fmt.Sprintf("Your account was %s %s by an administrator. New balance: %s",
		verb, rules.FormatMoney(amount), rules.FormatMoney(updated.Balance)))
	t.replyf("%s new balance: %s", updated.Name, rules.FormatMoney(updated.Balance))
	return m.done(t)
}

func (m *Machine) banInput(t *turn) error {
	if t.session.Step == 0 {
		account, ok := m.targetInput(t)
		if !ok {
			return nil
		}
		if m.access.IsAdmin(account.ID) {
			t.reply("Admins cannot be banned.")
			return m.done(t)
		}
		if err := m.await(t, Session{Awaiting: "5", Step: 1, Target: account.ID}); err != nil {
			return err
		}
		t.replyf("Send the ban reason for %s, or - for none.", account.Name)
		return nil
	}

	reason := t.text
	if reason == "-" {
		reason = ""
	}
	updated, err := m.ledger.Update(t.ctx, t.session.Target, func(a *model.Account) error {
		a.Banned = true
		a.BanReason = reason
		return nil
	})
	if err != nil {
		return fmt.Errorf("ban account: %w", err)
	}
	m.logger.Info("actor banned", zap.String("admin_id", t.actorID), zap.String("actor_id", updated.ID))
	t.replyf("%s is banned.", updated.Name)
	return m.done(t)
}

func (m *Machine) unbanInput(t *turn) error {
	account, ok := m.targetInput(t)
	if !ok {
		return nil
	}
	updated, err := m.ledger.Update(t.ctx, account.ID, func(a *model.Account) error {
		a.Banned = false
		a.BanReason = ""
		return nil
	})
	if err != nil {
		return fmt.Errorf("unban account: %w", err)
	}
	t.send(updated.ID, "Your account has been reinstated. Send menu to continue.")
	t.replyf("%s is unbanned.", updated.Name)
	return m.done(t)
}

func (m *Machine) askBroadcast(t *turn) error {
	if err := m.await(t, Session{Awaiting: "7"}); err != nil {
		return err
	}
	t.reply("Type the message to send to every user.")
	return nil
}

func (m *Machine) broadcastInput(t *turn) error {
	if t.text == "" {
		t.reply("The message is empty. Type the text, or 0 to cancel.")
		return nil
	}
	sent := m.broadcastAll(t, t.text, false)
	m.logger.Info("admin broadcast", zap.String("admin_id", t.actorID), zap.Int("recipients", sent))
	t.replyf("Broadcast queued for %d user(s).", sent)
	return m.done(t)
}

func (m *Machine) addAdminInput(t *turn) error {
	target := t.text
	if account, ok := m.resolveAccount(target); ok {
		target = account.ID
	}
	added, err := m.access.Grant(t.ctx, target)
	if err != nil {
		t.replyf("Could not add admin: %v", err)
		return m.done(t)
	}
	if !added {
		t.replyf("%s is already an admin.", target)
		return m.done(t)
	}
	t.send(target, "You have been granted admin access. Send admin to open the console.")
	t.replyf("%s is now an admin.", target)
	return m.done(t)
}

func (m *Machine) removeAdminInput(t *turn) error {
	target := t.text
	if account, ok := m.resolveAccount(target); ok {
		target = account.ID
	}
	removed, err := m.access.Revoke(t.ctx, target)
	switch {
	case errors.Is(err, access.ErrOwnerRevoke):
		t.replyf("%s is a configured owner and cannot be removed.", target)
	case err != nil:
		t.replyf("Could not remove admin: %v", err)
	case !removed:
		t.replyf("%s is not an admin.", target)
	default:
		t.replyf("%s is no longer an admin.", target)
	}
	return m.done(t)
}

func (m *Machine) viewSettings(t *turn) error {
	all := m.settings.GetAll()
	var b strings.Builder
	b.WriteString("Settings:")
	for _, key := range settings.Keys() {
		fmt.Fprintf(&b, "\n%s = %s", key, all[key])
	}
	t.reply(b.String())
	return nil
}

func (m *Machine) askSettingKey(t *turn) error {
	if err := m.await(t, Session{Awaiting: "11"}); err != nil {
		return err
	}
	t.reply("Send the setting key:\n" + strings.Join(settings.Keys(), "\n"))
	return nil
}

func (m *Machine) editSettingInput(t *turn) error {
	if t.session.Step == 0 {
		if !slices.Contains(settings.Keys(), t.text) {
			t.reply("Unknown setting. Send one of the listed keys, or 0 to cancel.")
			return nil
		}
		if err := m.await(t, Session{Awaiting: "11", Step: 1, Key: t.text}); err != nil {
			return err
		}
		t.replyf("Current %s: %s\nSend the new value.", t.text, m.settings.GetAll()[t.text])
		return nil
	}
	return m.applySetting(t, t.session.Key, t.text)
}

// toggleMaintenance announces the end of maintenance to every actor.
func (m *Machine) toggleMaintenance(t *turn) error {
	on, err := m.settings.Toggle(t.ctx, settings.KeyMaintenanceMode)
	if err != nil {
		t.replyf("Could not toggle maintenance mode: %v", err)
		return nil
	}
	if on {
		t.reply("Maintenance mode is ON. Only admins can use the service.")
		return nil
	}
	sent := m.broadcastAll(t, "The service is available again. Send menu to continue.", true)
	t.replyf("Maintenance mode is OFF. %d user(s) notified.", sent)
	return nil
}

func toggleOperation(label, key string) operation {
	return operation{
		label: label,
		start: func(m *Machine, t *turn) error {
			on, err := m.settings.Toggle(t.ctx, key)
			if err != nil {
				t.replyf("Could not toggle %s: %v", key, err)
				return nil
			}
			state := "OFF"
			if on {
				state = "ON"
			}
			t.replyf("%s is %s.", key, state)
			return nil
		},
	}
}

func (m *Machine) vipInput(t *turn) error {
	account, ok := m.targetInput(t)
	if !ok {
		return nil
	}
	grant := t.session.Awaiting == "16"
	updated, err := m.ledger.Update(t.ctx, account.ID, func(a *model.Account) error {
		a.VIP = grant
		return nil
	})
	if err != nil {
		return fmt.Errorf("update vip: %w", err)
	}
	rate := m.settings.Current().CostPerCharFor(grant)
	if grant {
		t.send(updated.ID, fmt.Sprintf("You are now a VIP. Your rate is %s per character.", rate.String()))
		t.replyf("%s is now VIP.", updated.Name)
	} else {
		t.send(updated.ID, fmt.Sprintf("Your VIP status has ended. Your rate is %s per character.", rate.String()))
		t.replyf("%s is no longer VIP.", updated.Name)
	}
	return m.done(t)
}

func (m *Machine) listVIP(t *turn) error {
	var b strings.Builder
	count := 0
	for _, a := range m.ledger.All() {
		if !a.VIP {
			continue
		}
		count++
		fmt.Fprintf(&b, "\n%d. %s (%s)", count, a.Name, a.ID)
	}
	if count == 0 {
		t.reply("No VIP users.")
		return nil
	}
	t.replyf("VIP users (%d):%s", count, b.String())
	return nil
}

func (m *Machine) userDetailsInput(t *turn) error {
	a, ok := m.targetInput(t)
	if !ok {
		return nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "User %s (%s)\nBalance: %s\nMessages: %d\nCharges: %s\nDeposits: %s\nRecipients: %d\nTemplates: %d\nVIP: %t\nBanned: %t",
		a.Name, a.ID, rules.FormatMoney(a.Balance), a.MessageCount, rules.FormatMoney(a.TotalCharges),
		rules.FormatMoney(a.TotalDeposits), len(a.Recipients), len(a.Templates), a.VIP, a.Banned)
	if a.BanReason != "" {
		fmt.Fprintf(&b, " (%s)", a.BanReason)
	}
	fmt.Fprintf(&b, "\nRegistered: %s\nReferrals: %d (pending %d)",
		a.RegisteredAt.Format(detailDateLayout), len(a.Referrals), len(a.PendingReferrals))
	if a.ReferredBy != "" {
		fmt.Fprintf(&b, "\nReferred by: %s (bonus paid: %t)", a.ReferredBy, a.ReferralBonusPaid)
	}
	t.reply(b.String())
	return m.done(t)
}

func (m *Machine) paymentStats(t *turn) error {
	if m.transactions == nil {
		t.reply("Payment statistics are unavailable.")
		return nil
	}
	stats, err := m.transactions.Stats(t.ctx)
	if err != nil {
		m.logger.Error("transaction stats failed", zap.Error(err))
		t.reply("Payment statistics are unavailable right now.")
		return nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Payments\nPending: %d\nCompleted: %d (%s)\nFailed: %d",
		stats.Pending, stats.Completed, rules.FormatMoney(stats.CompletedAmount), stats.Failed)

	recent, err := m.transactions.ListRecent(t.ctx, "", recentTxLimit)
	if err != nil {
		m.logger.Warn("list recent transactions failed", zap.Error(err))
	}
	if len(recent) > 0 {
		b.WriteString("\n\nRecent:")
		for _, tx := range recent {
			fmt.Fprintf(&b, "\n%s %s %s %s %s", tx.CreatedAt.Format(detailDateLayout), tx.ActorID,
				rules.FormatMoney(tx.Amount), tx.Status, tx.Reference)
		}
	}
	t.reply(b.String())
	return nil
}
