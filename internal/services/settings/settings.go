package settings

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	KeyCostPerChar                = "costPerChar"
	KeyVIPCostPerChar             = "vipCostPerChar"
	KeyTopupMinAmount             = "topupMinAmount"
	KeyTopupMaxAmount             = "topupMaxAmount"
	KeyReferralBonus              = "referralBonus"
	KeyReferralMinDeposit         = "referralMinDeposit"
	KeyMaintenanceMode            = "maintenanceMode"
	KeyTemplatesEnabled           = "templatesEnabled"
	KeyReferralsEnabled           = "referralsEnabled"
	KeyAnalyticsEnabled           = "analyticsEnabled"
	KeyAllowNegativeBalance       = "allowNegativeBalance"
	KeyAdmins                     = "admins"
	KeyWelcomeMessage             = "welcomeMessage"
	KeyMaintenanceMessage         = "maintenanceMessage"
	KeyInsufficientBalanceMessage = "insufficientBalanceMessage"
)

var (
	ErrUnknownKey   = errors.New("unknown setting")
	ErrInvalidValue = errors.New("invalid setting value")
)

// Settings is the typed view of every recognised option.
type Settings struct {
	// CostPerChar is charged per character of a broadcast message.
	CostPerChar decimal.Decimal
	// VIPCostPerChar replaces CostPerChar for VIP actors.
	VIPCostPerChar decimal.Decimal
	// TopupMinAmount and TopupMaxAmount bound a single deposit; min < max.
	TopupMinAmount decimal.Decimal
	TopupMaxAmount decimal.Decimal
	// ReferralBonus is credited to a referrer once per referred actor.
	ReferralBonus decimal.Decimal
	// ReferralMinDeposit is the smallest completed deposit that pays the bonus.
	ReferralMinDeposit decimal.Decimal
	// MaintenanceMode blocks non-admin actors.
	MaintenanceMode  bool
	TemplatesEnabled bool
	ReferralsEnabled bool
	AnalyticsEnabled bool
	// AllowNegativeBalance lets an admin deduct below zero.
	AllowNegativeBalance bool
	// Admins extends the configured owner allow-list.
	Admins         []string
	WelcomeMessage string
	// MaintenanceMessage is shown to actors while MaintenanceMode is on.
	MaintenanceMessage string
	// InsufficientBalanceMessage accepts {cost}, {balance} and {shortfall}.
	InsufficientBalanceMessage string
}

func Defaults() Settings {
	return Settings{
		CostPerChar:                decimal.NewFromInt(1),
		VIPCostPerChar:             decimal.RequireFromString("0.5"),
		TopupMinAmount:             decimal.NewFromInt(10),
		TopupMaxAmount:             decimal.NewFromInt(150000),
		ReferralBonus:              decimal.NewFromInt(20),
		ReferralMinDeposit:         decimal.NewFromInt(5),
		MaintenanceMode:            false,
		TemplatesEnabled:           true,
		ReferralsEnabled:           true,
		AnalyticsEnabled:           true,
		AllowNegativeBalance:       true,
		WelcomeMessage:             "Welcome to Bulk Messenger.",
		MaintenanceMessage:         "The service is under maintenance. Please try again later.",
		InsufficientBalanceMessage: "Insufficient balance. Cost: {cost}, balance: {balance}, you need {shortfall} more. Send 6 to top up.",
	}
}

func (s Settings) Clone() Settings {
	s.Admins = slices.Clone(s.Admins)
	return s
}

func (s Settings) Validate() error {
	for name, v := range map[string]decimal.Decimal{
		KeyCostPerChar:        s.CostPerChar,
		KeyVIPCostPerChar:     s.VIPCostPerChar,
		KeyReferralBonus:      s.ReferralBonus,
		KeyReferralMinDeposit: s.ReferralMinDeposit,
	} {
		if v.IsNegative() {
			return fmt.Errorf("%w: %s must not be negative", ErrInvalidValue, name)
		}
	}
	if !s.TopupMinAmount.IsPositive() {
		return fmt.Errorf("%w: %s must be positive", ErrInvalidValue, KeyTopupMinAmount)
	}
	if !s.TopupMinAmount.LessThan(s.TopupMaxAmount) {
		return fmt.Errorf("%w: %s must stay below %s", ErrInvalidValue, KeyTopupMinAmount, KeyTopupMaxAmount)
	}
	return nil
}

// CostPerCharFor returns the rate that applies to an actor.
func (s Settings) CostPerCharFor(vip bool) decimal.Decimal {
	if vip {
		return s.VIPCostPerChar
	}
	return s.CostPerChar
}

func (s Settings) IsAdmin(actorID string) bool {
	return slices.Contains(s.Admins, actorID)
}

type field struct {
	parse  func(*Settings, string) error
	format func(Settings) string
}

var fields = map[string]field{
	KeyCostPerChar:        decimalField(func(s *Settings) *decimal.Decimal { return &s.CostPerChar }),
	KeyVIPCostPerChar:     decimalField(func(s *Settings) *decimal.Decimal { return &s.VIPCostPerChar }),
	KeyTopupMinAmount:     decimalField(func(s *Settings) *decimal.Decimal { return &s.TopupMinAmount }),
	KeyTopupMaxAmount:     decimalField(func(s *Settings) *decimal.Decimal { return &s.TopupMaxAmount }),
	KeyReferralBonus:      decimalField(func(s *Settings) *decimal.Decimal { return &s.ReferralBonus }),
	KeyReferralMinDeposit: decimalField(func(s *Settings) *decimal.Decimal { return &s.ReferralMinDeposit }),

	KeyMaintenanceMode:      boolField(func(s *Settings) *bool { return &s.MaintenanceMode }),
	KeyTemplatesEnabled:     boolField(func(s *Settings) *bool { return &s.TemplatesEnabled }),
	KeyReferralsEnabled:     boolField(func(s *Settings) *bool { return &s.ReferralsEnabled }),
	KeyAnalyticsEnabled:     boolField(func(s *Settings) *bool { return &s.AnalyticsEnabled }),
	KeyAllowNegativeBalance: boolField(func(s *Settings) *bool { return &s.AllowNegativeBalance }),

	KeyWelcomeMessage:             textField(func(s *Settings) *string { return &s.WelcomeMessage }),
	KeyMaintenanceMessage:         textField(func(s *Settings) *string { return &s.MaintenanceMessage }),
	KeyInsufficientBalanceMessage: textField(func(s *Settings) *string { return &s.InsufficientBalanceMessage }),

	KeyAdmins: {
		parse: func(s *Settings, raw string) error {
			s.Admins = splitList(raw)
			return nil
		},
		format: func(s Settings) string {
			return strings.Join(s.Admins, ",")
		},
	},
}

// Keys lists every recognised key in a stable order.
func Keys() []string {
	out := make([]string, 0, len(fields))
	for key := range fields {
		out = append(out, key)
	}
	slices.Sort(out)
	return out
}

func decimalField(ptr func(*Settings) *decimal.Decimal) field {
	return field{
		parse: func(s *Settings, raw string) error {
			v, err := decimal.NewFromString(strings.TrimSpace(raw))
			if err != nil {
				return fmt.Errorf("%w: %q is not a number", ErrInvalidValue, raw)
			}
			*ptr(s) = v
			return nil
		},
		format: func(s Settings) string {
			return ptr(&s).String()
		},
	}
}

func boolField(ptr func(*Settings) *bool) field {
	return field{
		parse: func(s *Settings, raw string) error {
			v, err := strconv.ParseBool(strings.TrimSpace(raw))
			if err != nil {
				return fmt.Errorf("%w: %q is not a boolean", ErrInvalidValue, raw)
			}
			*ptr(s) = v
			return nil
		},
		format: func(s Settings) string {
			return strconv.FormatBool(*ptr(&s))
		},
	}
}

func textField(ptr func(*Settings) *string) field {
	return field{
		parse: func(s *Settings, raw string) error {
			raw = strings.TrimSpace(raw)
			if raw == "" {
				return fmt.Errorf("%w: text must not be empty", ErrInvalidValue)
			}
			*ptr(s) = raw
			return nil
		},
		format: func(s Settings) string {
			return *ptr(&s)
		},
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" && !slices.Contains(out, part) {
			out = append(out, part)
		}
	}
	return out
}

// Render substitutes {name} placeholders in a message template.
func Render(template string, vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for name, value := range vars {
		pairs = append(pairs, "{"+name+"}", value)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}
