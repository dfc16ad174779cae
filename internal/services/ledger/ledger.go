package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/GK-FY/bulk/internal/domain/model"
	"github.com/GK-FY/bulk/internal/domain/rules"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrAccountExists   = errors.New("account already exists")
	ErrUsernameTaken   = errors.New("username already taken")
)

type Store interface {
	LoadAll(ctx context.Context) (map[string]*model.Account, error)
	SaveAll(ctx context.Context, accounts map[string]*model.Account) error
}

// Ledger is the in-memory owner of every actor account. Each mutation is
// followed by a full snapshot save; a failed save is logged and the memory
// state stays authoritative.
type Ledger struct {
	mu       sync.Mutex
	accounts map[string]*model.Account

	saveMu sync.Mutex
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

func New(store Store, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		accounts: make(map[string]*model.Account),
		store:    store,
		logger:   logger,
		now:      time.Now,
	}
}

func (l *Ledger) Load(ctx context.Context) error {
	if l.store == nil {
		return nil
	}
	accounts, err := l.store.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.accounts = make(map[string]*model.Account, len(accounts))
	for id, account := range accounts {
		if account != nil {
			l.accounts[id] = account.Clone()
		}
	}
	return nil
}

func (l *Ledger) Get(actorID string) (*model.Account, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	account, ok := l.accounts[actorID]
	if !ok {
		return nil, false
	}
	return account.Clone(), true
}

func (l *Ledger) Exists(actorID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.accounts[actorID]
	return ok
}

func (l *Ledger) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.accounts)
}

// All returns copies ordered by registration time.
func (l *Ledger) All() []*model.Account {
	l.mu.Lock()
	out := make([]*model.Account, 0, len(l.accounts))
	for _, account := range l.accounts {
		out = append(out, account.Clone())
	}
	l.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].RegisteredAt.Equal(out[j].RegisteredAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].RegisteredAt.Before(out[j].RegisteredAt)
	})
	return out
}

func (l *Ledger) FindByUsername(name string) (*model.Account, bool) {
	name = strings.TrimSpace(name)
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, account := range l.accounts {
		if strings.EqualFold(account.Name, name) {
			return account.Clone(), true
		}
	}
	return nil, false
}

// FindByReferralCode matches case-insensitively. Stored codes win. Accounts
// that never had a code generated are matched by the code they would get,
// but only when exactly one such account derives it.
func (l *Ledger) FindByReferralCode(code string) (*model.Account, bool) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, false
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	var derived []*model.Account
	for _, account := range l.accounts {
		if account.ReferralCode != "" {
			if strings.EqualFold(account.ReferralCode, code) {
				return account.Clone(), true
			}
			continue
		}
		if strings.EqualFold(rules.ReferralCode(account.ID), code) {
			derived = append(derived, account)
		}
	}
	if len(derived) != 1 {
		if len(derived) > 1 {
			l.logger.Warn("ambiguous derived referral code", zap.String("code", code), zap.Int("matches", len(derived)))
		}
		return nil, false
	}
	return derived[0].Clone(), true
}

// AssignReferralCode stores the actor's referral code on first use. The
// identity suffix grows until no other account holds or derives the code.
func (l *Ledger) AssignReferralCode(ctx context.Context, actorID string) (string, error) {
	code, assigned, err := l.assignReferralCode(actorID)
	if err != nil {
		return "", err
	}
	if assigned {
		l.persist(ctx)
	}
	return code, nil
}

func (l *Ledger) assignReferralCode(actorID string) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	account, ok := l.accounts[actorID]
	if !ok {
		return "", false, fmt.Errorf("%w: %s", ErrAccountNotFound, actorID)
	}
	if account.ReferralCode != "" {
		return account.ReferralCode, false, nil
	}

	taken := make(map[string]struct{}, len(l.accounts))
	for id, other := range l.accounts {
		if id == actorID {
			continue
		}
		code := other.ReferralCode
		if code == "" {
			code = rules.ReferralCode(other.ID)
		}
		taken[strings.ToUpper(code)] = struct{}{}
	}

	updated := account.Clone()
	updated.ReferralCode = uniqueReferralCode(account.ID, taken)
	l.accounts[actorID] = updated
	return updated.ReferralCode, true, nil
}

func uniqueReferralCode(actorID string, taken map[string]struct{}) string {
	longest := ""
	for n := rules.ReferralSuffixLen; ; n++ {
		code := rules.ReferralCodeOfLength(actorID, n)
		if _, clash := taken[code]; !clash {
			return code
		}
		if code == longest {
			break
		}
		longest = code
	}
	for i := 2; ; i++ {
		code := longest + strconv.Itoa(i)
		if _, clash := taken[code]; !clash {
			return code
		}
	}
}

func (l *Ledger) Register(ctx context.Context, account *model.Account) (*model.Account, error) {
	if account == nil || strings.TrimSpace(account.ID) == "" {
		return nil, fmt.Errorf("account id is required")
	}

	out, err := l.insert(account)
	if err != nil {
		return nil, err
	}
	l.persist(ctx)
	return out, nil
}

func (l *Ledger) insert(account *model.Account) (*model.Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.accounts[account.ID]; ok {
		return nil, ErrAccountExists
	}
	name := strings.TrimSpace(account.Name)
	for _, existing := range l.accounts {
		if strings.EqualFold(existing.Name, name) {
			return nil, ErrUsernameTaken
		}
	}

	stored := account.Clone()
	stored.Name = name
	if stored.RegisteredAt.IsZero() {
		stored.RegisteredAt = l.now().UTC()
	}
	l.accounts[stored.ID] = stored
	return stored.Clone(), nil
}

// Update applies fn to a copy of the account and commits it only when fn
// returns nil.
func (l *Ledger) Update(ctx context.Context, actorID string, fn func(*model.Account) error) (*model.Account, error) {
	var out *model.Account
	err := l.UpdateMany(ctx, []string{actorID}, func(accounts map[string]*model.Account) error {
		if err := fn(accounts[actorID]); err != nil {
			return err
		}
		out = accounts[actorID].Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateMany applies fn to copies of several accounts and commits all of
// them together, or none when fn fails.
func (l *Ledger) UpdateMany(ctx context.Context, actorIDs []string, fn func(map[string]*model.Account) error) error {
	if err := l.apply(actorIDs, fn); err != nil {
		return err
	}
	l.persist(ctx)
	return nil
}

func (l *Ledger) apply(actorIDs []string, fn func(map[string]*model.Account) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	working := make(map[string]*model.Account, len(actorIDs))
	for _, id := range actorIDs {
		account, ok := l.accounts[id]
		if !ok {
			return fmt.Errorf("%w: %s", ErrAccountNotFound, id)
		}
		working[id] = account.Clone()
	}
	if err := fn(working); err != nil {
		return err
	}
	for id, account := range working {
		l.accounts[id] = account
	}
	return nil
}

func (l *Ledger) Credit(ctx context.Context, actorID string, amount decimal.Decimal) (*model.Account, error) {
	return l.Update(ctx, actorID, func(account *model.Account) error {
		account.Balance = account.Balance.Add(amount)
		return nil
	})
}

func (l *Ledger) Delete(ctx context.Context, actorID string) error {
	if err := l.remove(actorID); err != nil {
		return err
	}
	l.persist(ctx)
	return nil
}

func (l *Ledger) remove(actorID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.accounts[actorID]; !ok {
		return ErrAccountNotFound
	}
	delete(l.accounts, actorID)
	return nil
}

// persist saves a snapshot. Snapshots are taken inside saveMu so saves reach
// the store in mutation order.
func (l *Ledger) persist(ctx context.Context) {
	if l.store == nil {
		return
	}

	l.saveMu.Lock()
	defer l.saveMu.Unlock()

	l.mu.Lock()
	snapshot := make(map[string]*model.Account, len(l.accounts))
	for id, account := range l.accounts {
		snapshot[id] = account.Clone()
	}
	l.mu.Unlock()

	if err := l.store.SaveAll(ctx, snapshot); err != nil {
		l.logger.Error("save ledger failed, continuing in memory", zap.Error(err))
	}
}
