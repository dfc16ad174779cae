package referral

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/GK-FY/bulk/internal/domain/model"
	"github.com/GK-FY/bulk/internal/services/ledger"
	"github.com/GK-FY/bulk/internal/services/settings"
)

func newEngine(t *testing.T) (*Engine, *ledger.Ledger, *settings.Registry) {
	t.Helper()
	l := ledger.New(nil, nil)
	reg := settings.NewRegistry(nil, nil)
	return NewEngine(l, reg, nil), l, reg
}

func TestCodeForIsLazyAndStable(t *testing.T) {
	engine, l, _ := newEngine(t)
	ctx := context.Background()
	_, _ = l.Register(ctx, &model.Account{ID: "5512345678", Name: "bob"})

	code, err := engine.CodeFor(ctx, "5512345678")
	if err != nil {
		t.Fatalf("code for: %v", err)
	}
	again, _ := engine.CodeFor(ctx, "5512345678")
	if code != "REF345678" || again != code {
		t.Fatalf("unexpected codes: %s %s", code, again)
	}
	stored, _ := l.Get("5512345678")
	if stored.ReferralCode != code {
		t.Fatalf("code must be stored after first access")
	}
}

func TestSharedSuffixReferrersGetDistinctBonuses(t *testing.T) {
	engine, l, _ := newEngine(t)
	ctx := context.Background()
	_, _ = l.Register(ctx, &model.Account{ID: "1000123456", Name: "bob"})
	_, _ = l.Register(ctx, &model.Account{ID: "2000123456", Name: "carol"})
	_, _ = l.Register(ctx, &model.Account{ID: "300", Name: "dave"})

	_, _ = engine.CodeFor(ctx, "1000123456")
	carolCode, err := engine.CodeFor(ctx, "2000123456")
	if err != nil {
		t.Fatalf("code for carol: %v", err)
	}

	referrerID, ok, err := engine.ApplyReferral(ctx, "300", carolCode)
	if err != nil || !ok {
		t.Fatalf("apply referral: ok=%v err=%v", ok, err)
	}
	if referrerID != "2000123456" {
		t.Fatalf("carol's code must credit carol, got %s", referrerID)
	}
}

func TestReferralScenarioPaysOnce(t *testing.T) {
	engine, l, reg := newEngine(t)
	ctx := context.Background()
	if err := reg.Set(ctx, settings.KeyReferralBonus, "25"); err != nil {
		t.Fatalf("set bonus: %v", err)
	}

	_, _ = l.Register(ctx, &model.Account{ID: "200", Name: "bob"})
	_, _ = l.Register(ctx, &model.Account{ID: "100", Name: "alice"})

	code, _ := engine.CodeFor(ctx, "200")
	referrerID, ok, err := engine.ApplyReferral(ctx, "100", code)
	if err != nil || !ok || referrerID != "200" {
		t.Fatalf("apply referral: id=%s ok=%v err=%v", referrerID, ok, err)
	}
	bob, _ := l.Get("200")
	if len(bob.PendingReferrals) != 1 || bob.PendingReferrals[0] != "100" {
		t.Fatalf("alice must be pending under bob: %v", bob.PendingReferrals)
	}

	result, err := engine.Payout(ctx, "100", decimal.NewFromInt(10))
	if err != nil {
		t.Fatalf("payout: %v", err)
	}
	if !result.Paid || result.ReferrerID != "200" || !result.Bonus.Equal(decimal.NewFromInt(25)) {
		t.Fatalf("unexpected payout: %+v", result)
	}

	again, err := engine.Payout(ctx, "100", decimal.NewFromInt(10))
	if err != nil {
		t.Fatalf("second payout: %v", err)
	}
	if again.Paid {
		t.Fatalf("bonus must be paid at most once")
	}

	bob, _ = l.Get("200")
	if !bob.Balance.Equal(decimal.NewFromInt(25)) {
		t.Fatalf("unexpected referrer balance: %s", bob.Balance)
	}
	if len(bob.PendingReferrals) != 0 {
		t.Fatalf("alice must leave pending referrals: %v", bob.PendingReferrals)
	}
	alice, _ := l.Get("100")
	if !alice.ReferralBonusPaid {
		t.Fatalf("paid flag must be set")
	}
}

func TestPayoutIgnoresDepositsBelowThreshold(t *testing.T) {
	engine, l, _ := newEngine(t)
	ctx := context.Background()
	_, _ = l.Register(ctx, &model.Account{ID: "200", Name: "bob"})
	_, _ = l.Register(ctx, &model.Account{ID: "100", Name: "alice"})
	code, _ := engine.CodeFor(ctx, "200")
	_, _, _ = engine.ApplyReferral(ctx, "100", code)

	result, err := engine.Payout(ctx, "100", decimal.NewFromInt(4))
	if err != nil {
		t.Fatalf("payout: %v", err)
	}
	if result.Paid {
		t.Fatalf("deposit below threshold must not pay")
	}
	alice, _ := l.Get("100")
	if alice.ReferralBonusPaid {
		t.Fatalf("paid flag must stay unset")
	}
}

func TestApplyReferralRejectsUnknownAndOwnCode(t *testing.T) {
	engine, l, _ := newEngine(t)
	ctx := context.Background()
	_, _ = l.Register(ctx, &model.Account{ID: "100", Name: "alice"})

	if _, ok, _ := engine.ApplyReferral(ctx, "100", "REF999999"); ok {
		t.Fatalf("unknown code must not apply")
	}
	own, _ := engine.CodeFor(ctx, "100")
	if _, ok, _ := engine.ApplyReferral(ctx, "100", own); ok {
		t.Fatalf("own code must not apply")
	}
}

func TestPayoutWithoutReferrerDoesNothing(t *testing.T) {
	engine, l, _ := newEngine(t)
	ctx := context.Background()
	_, _ = l.Register(ctx, &model.Account{ID: "100", Name: "alice"})

	result, err := engine.Payout(ctx, "100", decimal.NewFromInt(100))
	if err != nil || result.Paid {
		t.Fatalf("unexpected payout: %+v err=%v", result, err)
	}
}
