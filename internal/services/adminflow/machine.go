package adminflow

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/GK-FY/bulk/internal/domain/model"
	"github.com/GK-FY/bulk/internal/services/session"
	"github.com/GK-FY/bulk/internal/services/settings"
)

type Ledger interface {
	All() []*model.Account
	Get(actorID string) (*model.Account, bool)
	FindByUsername(name string) (*model.Account, bool)
	Update(ctx context.Context, actorID string, fn func(*model.Account) error) (*model.Account, error)
}

type SettingsRegistry interface {
	Current() settings.Settings
	GetAll() map[string]string
	Set(ctx context.Context, key, value string) error
	Toggle(ctx context.Context, key string) (bool, error)
}

type Access interface {
	IsAdmin(actorID string) bool
	IsOwner(actorID string) bool
	AdminIDs() []string
	Grant(ctx context.Context, actorID string) (bool, error)
	Revoke(ctx context.Context, actorID string) (bool, error)
}

type Transactions interface {
	Stats(ctx context.Context) (model.TransactionStats, error)
	ListRecent(ctx context.Context, actorID string, limit int) ([]model.Transaction, error)
}

// Session is an admin's console state. Awaiting names the operation whose
// input is expected next; Step counts inputs already taken by it.
type Session struct {
	Awaiting string `json:"awaiting,omitempty"`
	Step     int    `json:"step,omitempty"`
	Target   string `json:"target,omitempty"`
	Key      string `json:"key,omitempty"`
	Amount   string `json:"amount,omitempty"`
}

type Machine struct {
	sessions     session.Store[Session]
	ledger       Ledger
	settings     SettingsRegistry
	access       Access
	transactions Transactions
	logger       *zap.Logger

	ops map[string]operation
}

type Dependencies struct {
	Sessions     session.Store[Session]
	Ledger       Ledger
	Settings     SettingsRegistry
	Access       Access
	Transactions Transactions
	Logger       *zap.Logger
}

func New(deps Dependencies) *Machine {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Machine{
		sessions:     deps.Sessions,
		ledger:       deps.Ledger,
		settings:     deps.Settings,
		access:       deps.Access,
		transactions: deps.Transactions,
		logger:       logger,
		ops:          operationTable(),
	}
}

type turn struct {
	ctx     context.Context
	actorID string
	text    string
	session Session
	out     []model.OutboundMessage
}

func (t *turn) reply(text string) {
	t.send(t.actorID, text)
}

func (t *turn) replyf(format string, args ...any) {
	t.reply(fmt.Sprintf(format, args...))
}

func (t *turn) send(actorID, text string) {
	t.out = append(t.out, model.OutboundMessage{ActorID: actorID, Text: text})
}

// Handle runs one event through the admin console. handled is false when the
// actor is not an admin or is not inside the console, and the event belongs
// to the user conversation instead.
func (m *Machine) Handle(ctx context.Context, event model.InboundEvent) ([]model.OutboundMessage, bool, error) {
	if m.access == nil || !m.access.IsAdmin(event.ActorID) {
		return nil, false, nil
	}
	t := &turn{
		ctx:     ctx,
		actorID: event.ActorID,
		text:    strings.TrimSpace(event.Text),
	}
	lower := strings.ToLower(t.text)

	sess, inConsole, err := m.sessions.Get(ctx, event.ActorID)
	if err != nil {
		return nil, false, fmt.Errorf("load admin session: %w", err)
	}
	t.session = sess

	switch {
	case lower == "admin" || lower == "/admin":
		if err := m.reset(t); err != nil {
			return nil, true, err
		}
		t.reply(m.menu())
		return t.out, true, nil
	case !inConsole:
		return nil, false, nil
	case lower == "exit" || lower == "/exit":
		if err := m.sessions.Delete(ctx, event.ActorID); err != nil {
			return nil, true, fmt.Errorf("clear admin session: %w", err)
		}
		t.reply("Left the admin console. Send admin to return.")
		return t.out, true, nil
	case t.text == "0" || t.text == "00":
		if err := m.reset(t); err != nil {
			return nil, true, err
		}
		t.reply(m.menu())
		return t.out, true, nil
	}

	if t.session.Awaiting != "" {
		op, ok := m.ops[t.session.Awaiting]
		if !ok || op.input == nil {
			if err := m.reset(t); err != nil {
				return nil, true, err
			}
			t.reply(m.menu())
			return t.out, true, nil
		}
		err := op.input(m, t)
		return t.out, true, err
	}

	op, ok := m.ops[t.text]
	if !ok {
		t.reply("Unknown command.\n\n" + m.menu())
		return t.out, true, nil
	}
	err = op.start(m, t)
	return t.out, true, err
}

// await stores the next expected input for the current operation.
func (m *Machine) await(t *turn, next Session) error {
	if err := m.sessions.Set(t.ctx, t.actorID, next); err != nil {
		return fmt.Errorf("save admin session: %w", err)
	}
	t.session = next
	return nil
}

// reset ends the current operation and keeps the actor in the console.
func (m *Machine) reset(t *turn) error {
	return m.await(t, Session{})
}

// done ends the operation and appends the console menu.
func (m *Machine) done(t *turn) error {
	if err := m.reset(t); err != nil {
		return err
	}
	t.reply(m.menu())
	return nil
}

func (m *Machine) menu() string {
	var b strings.Builder
	b.WriteString("Admin console\n")
	for _, key := range operationOrder {
		fmt.Fprintf(&b, "%s. %s\n", key, m.ops[key].label)
	}
	b.WriteString("\nSend 0 to cancel an operation, exit to leave the console.")
	return b.String()
}

// resolveAccount accepts an actor id or a username.
func (m *Machine) resolveAccount(input string) (*model.Account, bool) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, false
	}
	if account, ok := m.ledger.Get(input); ok {
		return account, true
	}
	return m.ledger.FindByUsername(input)
}

func (m *Machine) broadcastAll(t *turn, text string, includeBanned bool) int {
	sent := 0
	for _, account := range m.ledger.All() {
		if account.Banned && !includeBanned {
			continue
		}
		t.send(account.ID, text)
		sent++
	}
	return sent
}
