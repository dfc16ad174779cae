package conversation

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/GK-FY/bulk/internal/domain/model"
	"github.com/GK-FY/bulk/internal/services/broadcast"
	"github.com/GK-FY/bulk/internal/services/contacts"
	"github.com/GK-FY/bulk/internal/services/payments"
	"github.com/GK-FY/bulk/internal/services/referral"
	"github.com/GK-FY/bulk/internal/services/session"
	"github.com/GK-FY/bulk/internal/services/settings"
)

type Ledger interface {
	Get(actorID string) (*model.Account, bool)
	FindByUsername(name string) (*model.Account, bool)
	Register(ctx context.Context, account *model.Account) (*model.Account, error)
	Update(ctx context.Context, actorID string, fn func(*model.Account) error) (*model.Account, error)
	Delete(ctx context.Context, actorID string) error
}

type Referrals interface {
	CodeFor(ctx context.Context, actorID string) (string, error)
	FindReferrer(code, newActorID string) (*model.Account, bool)
	ApplyReferral(ctx context.Context, newActorID, code string) (string, bool, error)
	Summary(ctx context.Context, actorID string) (referral.Summary, error)
}

type Payments interface {
	ValidateAmount(amount decimal.Decimal) error
	Initiate(ctx context.Context, in payments.InitiateInput) (payments.InitiateResult, error)
}

type ContactImporter interface {
	Import(ctx context.Context, actorID string, att *model.Attachment) (contacts.Result, error)
}

type Broadcaster interface {
	FanOut(ctx context.Context, senderID, senderName, text string, recipients []string) broadcast.Report
}

type Transactions interface {
	ListRecent(ctx context.Context, actorID string, limit int) ([]model.Transaction, error)
}

type SettingsSource interface {
	Current() settings.Settings
}

type AdminChecker interface {
	IsAdmin(actorID string) bool
}

// Machine is the end-user conversation. Handle is safe for concurrent use
// across actors; events of one actor must be delivered in order.
type Machine struct {
	sessions     session.Store[Session]
	ledger       Ledger
	referrals    Referrals
	payments     Payments
	contacts     ContactImporter
	broadcaster  Broadcaster
	transactions Transactions
	settings     SettingsSource
	admins       AdminChecker
	logger       *zap.Logger

	stages map[Stage]stageDef
	menu   map[string]menuItem
}

type Dependencies struct {
	Sessions     session.Store[Session]
	Ledger       Ledger
	Referrals    Referrals
	Payments     Payments
	Contacts     ContactImporter
	Broadcaster  Broadcaster
	Transactions Transactions
	Settings     SettingsSource
	Admins       AdminChecker
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
		referrals:    deps.Referrals,
		payments:     deps.Payments,
		contacts:     deps.Contacts,
		broadcaster:  deps.Broadcaster,
		transactions: deps.Transactions,
		settings:     deps.Settings,
		admins:       deps.Admins,
		logger:       logger,
		stages:       stageTable(),
		menu:         menuTable(),
	}
}

// turn carries one inbound event through the machine and collects replies.
type turn struct {
	ctx      context.Context
	event    model.InboundEvent
	text     string
	account  *model.Account
	session  Session
	active   bool
	settings settings.Settings
	out      []model.OutboundMessage
}

func (t *turn) reply(text string) {
	t.send(t.event.ActorID, text)
}

func (t *turn) replyf(format string, args ...any) {
	t.reply(fmt.Sprintf(format, args...))
}

func (t *turn) send(actorID, text string) {
	t.out = append(t.out, model.OutboundMessage{ActorID: actorID, Text: text})
}

func (t *turn) registered() bool {
	return t.account != nil
}

// Handle processes one inbound event and returns the messages to deliver.
func (m *Machine) Handle(ctx context.Context, event model.InboundEvent) ([]model.OutboundMessage, error) {
	t := &turn{
		ctx:      ctx,
		event:    event,
		text:     strings.TrimSpace(event.Text),
		settings: m.settings.Current(),
	}
	if account, ok := m.ledger.Get(event.ActorID); ok {
		t.account = account
	}

	if t.registered() && t.account.Banned {
		reason := t.account.BanReason
		if reason == "" {
			reason = "no reason given"
		}
		t.replyf("Your account has been suspended: %s", reason)
		return t.out, nil
	}
	if t.settings.MaintenanceMode && !m.isAdmin(event.ActorID) {
		t.reply(t.settings.MaintenanceMessage)
		return t.out, nil
	}

	sess, ok, err := m.sessions.Get(ctx, event.ActorID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	t.session, t.active = sess, ok

	if err := m.dispatch(t); err != nil {
		return t.out, err
	}
	return t.out, nil
}

func (m *Machine) dispatch(t *turn) error {
	lower := strings.ToLower(t.text)

	if isReset(lower) {
		if err := m.clear(t); err != nil {
			return err
		}
		if !t.registered() {
			return m.startRegistration(t)
		}
		t.reply(m.mainMenu(t))
		return nil
	}

	if !t.registered() {
		if t.text == "0" {
			if err := m.clear(t); err != nil {
				return err
			}
			return m.startRegistration(t)
		}
		def, ok := m.stages[t.session.Stage]
		if !t.active || !ok || !def.registration {
			return m.startRegistration(t)
		}
		return def.handle(m, t)
	}

	if t.text == "0" {
		if t.active {
			if err := m.clear(t); err != nil {
				return err
			}
			t.reply("Cancelled.")
		}
		t.reply(m.mainMenu(t))
		return nil
	}

	def, hasStage := m.stages[t.session.Stage]
	if t.active && hasStage && !def.registration && def.claimsDigits {
		return def.handle(m, t)
	}

	if item, ok := m.menu[t.text]; ok {
		if t.active {
			if err := m.clear(t); err != nil {
				return err
			}
		}
		if item.enabled != nil && !item.enabled(t.settings) {
			t.reply(m.mainMenu(t))
			return nil
		}
		return item.handle(m, t)
	}

	if t.active && hasStage && !def.registration {
		return def.handle(m, t)
	}

	if t.event.HasAttachment {
		t.reply("To import contacts from a file, send 1 first and choose upload.")
	}
	t.reply(m.mainMenu(t))
	return nil
}

func (m *Machine) enter(t *turn, next Session) error {
	if err := m.sessions.Set(t.ctx, t.event.ActorID, next); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	t.session, t.active = next, true
	return nil
}

func (m *Machine) clear(t *turn) error {
	if !t.active {
		return nil
	}
	if err := m.sessions.Delete(t.ctx, t.event.ActorID); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	t.session, t.active = Session{}, false
	return nil
}

// finish clears the session and appends the main menu.
func (m *Machine) finish(t *turn) error {
	if err := m.clear(t); err != nil {
		return err
	}
	m.refresh(t)
	t.reply(m.mainMenu(t))
	return nil
}

// refresh reloads the actor's account after a ledger mutation.
func (m *Machine) refresh(t *turn) {
	if account, ok := m.ledger.Get(t.event.ActorID); ok {
		t.account = account
	} else {
		t.account = nil
	}
}

func (m *Machine) isAdmin(actorID string) bool {
	return m.admins != nil && m.admins.IsAdmin(actorID)
}

var resetWords = map[string]struct{}{
	"00":     {},
	"menu":   {},
	"/menu":  {},
	"hi":     {},
	"hello":  {},
	"hey":    {},
	"start":  {},
	"/start": {},
}

func isReset(lower string) bool {
	_, ok := resetWords[lower]
	return ok
}

// parseIndex reads a 1-based list position.
func parseIndex(text string, size int) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || n < 1 || n > size {
		return 0, false
	}
	return n - 1, true
}
