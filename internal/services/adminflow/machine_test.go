package adminflow

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/GK-FY/bulk/internal/domain/model"
	pgrepo "github.com/GK-FY/bulk/internal/repo/postgres"
	"github.com/GK-FY/bulk/internal/services/access"
	"github.com/GK-FY/bulk/internal/services/ledger"
	"github.com/GK-FY/bulk/internal/services/session"
	"github.com/GK-FY/bulk/internal/services/settings"
)

type fixture struct {
	machine  *Machine
	ledger   *ledger.Ledger
	settings *settings.Registry
	access   *access.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	l := ledger.New(nil, nil)
	reg := settings.NewRegistry(nil, nil)
	acc := access.NewService([]string{"owner"}, reg)
	f := &fixture{ledger: l, settings: reg, access: acc}
	f.machine = New(Dependencies{
		Sessions:     session.NewMemory[Session](time.Hour),
		Ledger:       l,
		Settings:     reg,
		Access:       acc,
		Transactions: pgrepo.NewTransactionRepo(nil),
	})
	for _, a := range []*model.Account{
		{ID: "owner", Name: "root"},
		{ID: "u1", Name: "alice", Balance: decimal.NewFromInt(10)},
		{ID: "u2", Name: "bob"},
	} {
		if _, err := l.Register(context.Background(), a); err != nil {
			t.Fatalf("register %s: %v", a.ID, err)
		}
	}
	return f
}

func (f *fixture) send(t *testing.T, text string) []model.OutboundMessage {
	t.Helper()
	out, handled, err := f.machine.Handle(context.Background(), model.InboundEvent{ActorID: "owner", Text: text})
	if err != nil {
		t.Fatalf("handle %q: %v", text, err)
	}
	if !handled {
		t.Fatalf("%q must be handled by the console", text)
	}
	return out
}

func lastText(out []model.OutboundMessage) string {
	if len(out) == 0 {
		return ""
	}
	return out[len(out)-1].Text
}

func TestNonAdminIsNotHandled(t *testing.T) {
	f := newFixture(t)
	_, handled, err := f.machine.Handle(context.Background(), model.InboundEvent{ActorID: "u1", Text: "admin"})
	if err != nil || handled {
		t.Fatalf("non-admin must fall through, handled=%v err=%v", handled, err)
	}
}

func TestAdminOutsideConsoleFallsThrough(t *testing.T) {
	f := newFixture(t)
	_, handled, _ := f.machine.Handle(context.Background(), model.InboundEvent{ActorID: "owner", Text: "1"})
	if handled {
		t.Fatalf("digits outside the console belong to the user menu")
	}

	out := f.send(t, "admin")
	if !strings.HasPrefix(lastText(out), "Admin console") {
		t.Fatalf("expected console menu, got %q", lastText(out))
	}
	out = f.send(t, "1")
	if !strings.Contains(lastText(out), "alice") {
		t.Fatalf("expected user list, got %q", lastText(out))
	}

	f.send(t, "exit")
	_, handled, _ = f.machine.Handle(context.Background(), model.InboundEvent{ActorID: "owner", Text: "1"})
	if handled {
		t.Fatalf("exit must leave the console")
	}
}

func TestInvertedTopupBoundsRejected(t *testing.T) {
	f := newFixture(t)
	f.send(t, "admin")
	f.send(t, "21")
	f.send(t, "100")
	if got := f.settings.Current().TopupMaxAmount; !got.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("max should be 100, got %s", got)
	}

	f.send(t, "20")
	out := f.send(t, "200")
	joined := ""
	for _, msg := range out {
		joined += msg.Text
	}
	if !strings.Contains(joined, "Rejected") {
		t.Fatalf("expected rejection, got %q", joined)
	}
	s := f.settings.Current()
	if !s.TopupMinAmount.Equal(decimal.NewFromInt(10)) || !s.TopupMaxAmount.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("bounds must be unchanged, got min=%s max=%s", s.TopupMinAmount, s.TopupMaxAmount)
	}
}

func TestAddBalanceNotifiesUser(t *testing.T) {
	f := newFixture(t)
	f.send(t, "admin")
	f.send(t, "3")
	f.send(t, "alice")
	out := f.send(t, "15")

	account, _ := f.ledger.Get("u1")
	if !account.Balance.Equal(decimal.NewFromInt(25)) {
		t.Fatalf("expected balance 25, got %s", account.Balance)
	}
	notified := false
	for _, msg := range out {
		if msg.ActorID == "u1" && strings.Contains(msg.Text, "credited") {
			notified = true
		}
	}
	if !notified {
		t.Fatalf("user must be notified")
	}
}

func TestDeductRespectsNegativeBalancePolicy(t *testing.T) {
	f := newFixture(t)
	f.send(t, "admin")

	f.send(t, "4")
	f.send(t, "u1")
	f.send(t, "30")
	account, _ := f.ledger.Get("u1")
	if !account.Balance.Equal(decimal.NewFromInt(-20)) {
		t.Fatalf("negative balances are allowed by default, got %s", account.Balance)
	}

	if err := f.settings.Set(context.Background(), settings.KeyAllowNegativeBalance, "false"); err != nil {
		t.Fatalf("set policy: %v", err)
	}
	f.send(t, "3")
	f.send(t, "u1")
	f.send(t, "25")
	f.send(t, "4")
	f.send(t, "u1")
	out := f.send(t, "10")
	if !strings.Contains(out[0].Text, "below zero") {
		t.Fatalf("expected rejection, got %q", out[0].Text)
	}
	account, _ = f.ledger.Get("u1")
	if !account.Balance.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("balance must stay 5, got %s", account.Balance)
	}
}

func TestUnknownUserRepromptsAndCancelClears(t *testing.T) {
	f := newFixture(t)
	f.send(t, "admin")
	f.send(t, "22")
	out := f.send(t, "nobody")
	if !strings.Contains(lastText(out), "No such user") {
		t.Fatalf("expected re-prompt, got %q", lastText(out))
	}
	out = f.send(t, "0")
	if !strings.HasPrefix(lastText(out), "Admin console") {
		t.Fatalf("0 must redisplay the console menu, got %q", lastText(out))
	}
	out = f.send(t, "1")
	if !strings.Contains(lastText(out), "Users") {
		t.Fatalf("operation state must be cleared, got %q", lastText(out))
	}
}

func TestMaintenanceOffNotifiesEveryActor(t *testing.T) {
	f := newFixture(t)
	f.send(t, "admin")

	out := f.send(t, "12")
	if !f.settings.Current().MaintenanceMode || len(out) != 1 {
		t.Fatalf("maintenance must turn on silently, got %d messages", len(out))
	}

	out = f.send(t, "12")
	if f.settings.Current().MaintenanceMode {
		t.Fatalf("maintenance must be off")
	}
	recipients := map[string]bool{}
	for _, msg := range out {
		recipients[msg.ActorID] = true
	}
	for _, id := range []string{"owner", "u1", "u2"} {
		if !recipients[id] {
			t.Fatalf("%s was not notified", id)
		}
	}
}

func TestBanAndGrantAdmin(t *testing.T) {
	f := newFixture(t)
	f.send(t, "admin")

	f.send(t, "5")
	f.send(t, "bob")
	f.send(t, "spam")
	bob, _ := f.ledger.Get("u2")
	if !bob.Banned || bob.BanReason != "spam" {
		t.Fatalf("bob must be banned: %+v", bob)
	}

	f.send(t, "8")
	f.send(t, "alice")
	if !f.access.IsAdmin("u1") {
		t.Fatalf("alice must be an admin")
	}

	f.send(t, "9")
	out := f.send(t, "owner")
	if !strings.Contains(out[0].Text, "cannot be removed") {
		t.Fatalf("owner removal must be refused, got %q", out[0].Text)
	}
}

func TestEditSettingByKey(t *testing.T) {
	f := newFixture(t)
	f.send(t, "admin")
	f.send(t, "11")
	out := f.send(t, "bogus")
	if !strings.Contains(lastText(out), "Unknown setting") {
		t.Fatalf("expected unknown key prompt, got %q", lastText(out))
	}
	f.send(t, settings.KeyWelcomeMessage)
	f.send(t, "Karibu")
	if got := f.settings.Current().WelcomeMessage; got != "Karibu" {
		t.Fatalf("welcome message not updated: %q", got)
	}
}
