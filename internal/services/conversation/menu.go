package conversation

import (
	"strings"

	"github.com/GK-FY/bulk/internal/domain/rules"
	"github.com/GK-FY/bulk/internal/services/settings"
)

type menuItem struct {
	label   string
	enabled func(settings.Settings) bool
	handle  func(m *Machine, t *turn) error
}

var menuOrder = []string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "11"}

func menuTable() map[string]menuItem {
	return map[string]menuItem{
		"1": {label: "Add recipients", handle: (*Machine).startAddRecipients},
		"2": {label: "View recipients", handle: (*Machine).showRecipients},
		"3": {label: "Remove recipient", handle: (*Machine).startRemoveRecipient},
		"4": {label: "Send broadcast", handle: (*Machine).startBroadcast},
		"5": {label: "Check balance", handle: (*Machine).showBalance},
		"6": {label: "Top up", handle: (*Machine).startTopup},
		"7": {
			label:   "Message templates",
			enabled: func(s settings.Settings) bool { return s.TemplatesEnabled },
			handle:  (*Machine).startTemplates,
		},
		"8": {
			label:   "Refer & earn",
			enabled: func(s settings.Settings) bool { return s.ReferralsEnabled },
			handle:  (*Machine).showReferral,
		},
		"9": {
			label:   "Analytics",
			enabled: func(s settings.Settings) bool { return s.AnalyticsEnabled },
			handle:  (*Machine).showAnalytics,
		},
		"10": {label: "My profile", handle: (*Machine).showProfile},
		"11": {label: "Delete account", handle: (*Machine).startDeleteAccount},
	}
}

func (m *Machine) mainMenu(t *turn) string {
	var b strings.Builder
	b.WriteString("Main menu")
	if t.account != nil {
		b.WriteString(" | Balance: ")
		b.WriteString(rules.FormatMoney(t.account.Balance))
	}
	b.WriteString("\n")

	for _, key := range menuOrder {
		item := m.menu[key]
		if item.enabled != nil && !item.enabled(t.settings) {
			continue
		}
		b.WriteString(key)
		b.WriteString(". ")
		b.WriteString(item.label)
		b.WriteString("\n")
	}
	b.WriteString("\nSend 0 to cancel a step, 00 for this menu.")
	return b.String()
}
