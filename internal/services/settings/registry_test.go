package settings

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
)

type storeStub struct {
	values  map[string]string
	saveErr error
	loadErr error
	saves   int
}

func newStoreStub() *storeStub {
	return &storeStub{values: make(map[string]string)}
}

func (s *storeStub) LoadAll(context.Context) (map[string]string, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out, nil
}

func (s *storeStub) Save(_ context.Context, key, value string) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saves++
	s.values[key] = value
	return nil
}

func TestSetRejectsMinAboveMaxAndKeepsBoth(t *testing.T) {
	store := newStoreStub()
	registry := NewRegistry(store, nil)
	ctx := context.Background()

	if err := registry.Set(ctx, KeyTopupMaxAmount, "100"); err != nil {
		t.Fatalf("set max: %v", err)
	}
	if err := registry.Set(ctx, KeyTopupMinAmount, "200"); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("expected ErrInvalidValue, got %v", err)
	}

	current := registry.Current()
	if !current.TopupMinAmount.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("min must stay unchanged, got %s", current.TopupMinAmount)
	}
	if !current.TopupMaxAmount.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("max must stay unchanged, got %s", current.TopupMaxAmount)
	}
	if _, ok := store.values[KeyTopupMinAmount]; ok {
		t.Fatalf("rejected value must not be persisted")
	}
}

func TestSetRejectsMaxBelowMin(t *testing.T) {
	registry := NewRegistry(newStoreStub(), nil)

	if err := registry.Set(context.Background(), KeyTopupMaxAmount, "5"); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("expected ErrInvalidValue, got %v", err)
	}
	if got := registry.Get(KeyTopupMaxAmount, ""); got != "150000" {
		t.Fatalf("max must stay at default, got %s", got)
	}
}

func TestSetPersistsAndUpdatesCacheTogether(t *testing.T) {
	store := newStoreStub()
	registry := NewRegistry(store, nil)

	if err := registry.Set(context.Background(), KeyCostPerChar, "0.75"); err != nil {
		t.Fatalf("set cost: %v", err)
	}
	if store.values[KeyCostPerChar] != "0.75" {
		t.Fatalf("unexpected stored value: %q", store.values[KeyCostPerChar])
	}
	if !registry.Current().CostPerChar.Equal(decimal.RequireFromString("0.75")) {
		t.Fatalf("cache not updated")
	}
}

func TestSetKeepsCacheWhenStoreFails(t *testing.T) {
	store := newStoreStub()
	store.saveErr = errors.New("db down")
	registry := NewRegistry(store, nil)

	if err := registry.Set(context.Background(), KeyCostPerChar, "3"); err == nil {
		t.Fatalf("expected persistence error")
	}
	if !registry.Current().CostPerChar.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("cache must not diverge from store")
	}
}

func TestSetRejectsUnknownKeyAndBadValues(t *testing.T) {
	registry := NewRegistry(nil, nil)
	ctx := context.Background()

	if err := registry.Set(ctx, "colour", "blue"); !errors.Is(err, ErrUnknownKey) {
		t.Fatalf("expected ErrUnknownKey, got %v", err)
	}
	if err := registry.Set(ctx, KeyCostPerChar, "cheap"); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("expected ErrInvalidValue, got %v", err)
	}
	if err := registry.Set(ctx, KeyCostPerChar, "-1"); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("expected ErrInvalidValue for negative cost, got %v", err)
	}
	if err := registry.Set(ctx, KeyTemplatesEnabled, "maybe"); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("expected ErrInvalidValue for bad bool, got %v", err)
	}
}

func TestLoadSkipsInvalidStoredValues(t *testing.T) {
	store := newStoreStub()
	store.values[KeyCostPerChar] = "2"
	store.values[KeyTopupMinAmount] = "999999"
	store.values[KeyReferralsEnabled] = "false"
	store.values[KeyAdmins] = "7, 8,7"
	registry := NewRegistry(store, nil)

	if err := registry.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}

	current := registry.Current()
	if !current.CostPerChar.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("unexpected cost: %s", current.CostPerChar)
	}
	if !current.TopupMinAmount.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("invalid stored min must be skipped, got %s", current.TopupMinAmount)
	}
	if current.ReferralsEnabled {
		t.Fatalf("expected referrals disabled")
	}
	if len(current.Admins) != 2 || !current.IsAdmin("8") {
		t.Fatalf("unexpected admins: %v", current.Admins)
	}
}

func TestLoadRestoresBoundsSetBelowDefaults(t *testing.T) {
	store := newStoreStub()
	ctx := context.Background()

	admin := NewRegistry(store, nil)
	if err := admin.Set(ctx, KeyTopupMinAmount, "1"); err != nil {
		t.Fatalf("set min: %v", err)
	}
	if err := admin.Set(ctx, KeyTopupMaxAmount, "5"); err != nil {
		t.Fatalf("set max: %v", err)
	}

	restarted := NewRegistry(store, nil)
	if err := restarted.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}

	current := restarted.Current()
	if !current.TopupMinAmount.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("expected min 1 after reload, got %s", current.TopupMinAmount)
	}
	if !current.TopupMaxAmount.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("expected max 5 after reload, got %s", current.TopupMaxAmount)
	}
	for _, key := range []string{KeyTopupMinAmount, KeyTopupMaxAmount} {
		if got := restarted.Get(key, ""); got != store.values[key] {
			t.Fatalf("%s: cache %s differs from store %s", key, got, store.values[key])
		}
	}
}

func TestLoadKeepsDefaultsWhenStoreUnavailable(t *testing.T) {
	store := newStoreStub()
	store.loadErr = errors.New("db down")
	registry := NewRegistry(store, nil)

	if err := registry.Load(context.Background()); err == nil {
		t.Fatalf("expected load error")
	}
	if !registry.Current().CostPerChar.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("defaults must survive a store failure")
	}
}

func TestToggleFlipsBoolean(t *testing.T) {
	registry := NewRegistry(nil, nil)

	on, err := registry.Toggle(context.Background(), KeyMaintenanceMode)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if !on || !registry.Current().MaintenanceMode {
		t.Fatalf("maintenance must be on after first toggle")
	}
	if _, err := registry.Toggle(context.Background(), KeyCostPerChar); err == nil {
		t.Fatalf("non-boolean keys must not toggle")
	}
}

func TestConcurrentTogglesAllApply(t *testing.T) {
	store := newStoreStub()
	registry := NewRegistry(store, nil)

	const toggles = 20
	var wg sync.WaitGroup
	for i := 0; i < toggles; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := registry.Toggle(context.Background(), KeyAnalyticsEnabled); err != nil {
				t.Errorf("toggle: %v", err)
			}
		}()
	}
	wg.Wait()

	if store.saves != toggles {
		t.Fatalf("expected %d saves, got %d", toggles, store.saves)
	}
	if got := registry.Current().AnalyticsEnabled; got != Defaults().AnalyticsEnabled {
		t.Fatalf("an even number of toggles must restore the default, got %t", got)
	}
}

func TestGetFallsBackForUnknownKey(t *testing.T) {
	registry := NewRegistry(nil, nil)

	if got := registry.Get("missing", "fallback"); got != "fallback" {
		t.Fatalf("unexpected value: %s", got)
	}
	if got := registry.GetAll()[KeyReferralMinDeposit]; got != "5" {
		t.Fatalf("unexpected referral threshold: %s", got)
	}
}

func TestRenderReplacesPlaceholders(t *testing.T) {
	got := Render("cost {cost}, short {shortfall}", map[string]string{"cost": "10", "shortfall": "4"})
	if got != "cost 10, short 4" {
		t.Fatalf("unexpected render: %s", got)
	}
}
