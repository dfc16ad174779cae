package conversation

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/GK-FY/bulk/internal/domain/model"
	"github.com/GK-FY/bulk/internal/domain/rules"
	"github.com/GK-FY/bulk/internal/services/contacts"
)

const recipientListLimit = 50

func (m *Machine) startAddRecipients(t *turn) error {
	if err := m.enter(t, Session{Stage: StageAddRecipients}); err != nil {
		return err
	}
	t.reply("How would you like to add recipients?\n1. Type phone numbers\n2. Upload a contacts file (.txt or .csv)\n\nSend 0 to cancel.")
	return nil
}

func (m *Machine) handleAddRecipientsChoice(t *turn) error {
	switch t.text {
	case "1":
		if err := m.enter(t, Session{Stage: StageManualRecipients}); err != nil {
			return err
		}
		t.reply("Send the phone numbers separated by commas, spaces or new lines.")
	case "2":
		if err := m.enter(t, Session{Stage: StageUploadRecipients}); err != nil {
			return err
		}
		t.reply("Upload the contacts file now.")
	default:
		t.reply("Please send 1 to type numbers or 2 to upload a file. Send 0 to cancel.")
	}
	return nil
}

func (m *Machine) handleManualRecipients(t *turn) error {
	tokens := strings.FieldsFunc(t.text, func(r rune) bool {
		return r == ',' || r == ';' || r == '\n' || r == '\t' || r == ' '
	})

	var phones []string
	var invalid []string
	for _, token := range tokens {
		phone, ok := rules.NormalizePhone(token)
		if !ok {
			invalid = append(invalid, token)
			continue
		}
		phones = append(phones, phone)
	}
	if len(phones) == 0 {
		t.reply("No valid phone numbers found. Use a format like 0712345678 or 254712345678, or send 0 to cancel.")
		return nil
	}

	added, err := m.addRecipients(t, phones)
	if err != nil {
		return err
	}

	msg := fmt.Sprintf("Added %d recipient(s).", added)
	if dup := len(phones) - added; dup > 0 {
		msg += fmt.Sprintf(" %d already in your list.", dup)
	}
	if len(invalid) > 0 {
		msg += fmt.Sprintf(" Skipped %d invalid: %s.", len(invalid), strings.Join(invalid, ", "))
	}
	t.reply(msg)
	return m.finish(t)
}

func (m *Machine) handleUploadRecipients(t *turn) error {
	if !t.event.HasAttachment || t.event.Attachment == nil {
		t.reply("Please upload a .txt or .csv file with phone numbers, or send 0 to cancel.")
		return nil
	}

	res, err := m.contacts.Import(t.ctx, t.event.ActorID, t.event.Attachment)
	if err != nil {
		if errors.Is(err, contacts.ErrFileTooLarge) {
			t.reply("That file is too large. Please upload a smaller file, or send 0 to cancel.")
			return nil
		}
		m.logger.Warn("contact import failed", zap.String("actor_id", t.event.ActorID), zap.Error(err))
		t.reply("Could not read that file. Please try again, or send 0 to cancel.")
		return nil
	}
	if len(res.Phones) == 0 {
		t.reply("No valid phone numbers found in the file. Upload another file, or send 0 to cancel.")
		return nil
	}

	added, err := m.addRecipients(t, res.Phones)
	if err != nil {
		return err
	}
	msg := fmt.Sprintf("Imported %d new recipient(s) from the file.", added)
	if dup := len(res.Phones) - added; dup > 0 {
		msg += fmt.Sprintf(" %d already in your list.", dup)
	}
	if res.Invalid > 0 {
		msg += fmt.Sprintf(" %d entries were not valid numbers.", res.Invalid)
	}
	t.reply(msg)
	return m.finish(t)
}

func (m *Machine) addRecipients(t *turn, phones []string) (int, error) {
	added := 0
	_, err := m.ledger.Update(t.ctx, t.event.ActorID, func(a *model.Account) error {
		added = a.AddRecipients(phones...)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("add recipients: %w", err)
	}
	return added, nil
}

func (m *Machine) showRecipients(t *turn) error {
	recipients := t.account.Recipients
	if len(recipients) == 0 {
		t.reply("You have no recipients yet. Send 1 to add some.")
		return nil
	}
	t.reply(fmt.Sprintf("Your recipients (%d):\n", len(recipients)) + numbered(recipients, recipientListLimit))
	return nil
}

func (m *Machine) startRemoveRecipient(t *turn) error {
	recipients := t.account.Recipients
	if len(recipients) == 0 {
		t.reply("You have no recipients to remove. Send 1 to add some.")
		return nil
	}
	if err := m.enter(t, Session{Stage: StageRemoveRecipient}); err != nil {
		return err
	}
	t.reply("Send the number in the list or the phone number to remove:\n" + numbered(recipients, recipientListLimit) + "\n\nSend 0 to cancel.")
	return nil
}

func (m *Machine) handleRemoveRecipient(t *turn) error {
	target := ""
	if idx, ok := parseIndex(t.text, len(t.account.Recipients)); ok {
		target = t.account.Recipients[idx]
	} else if phone, ok := rules.NormalizePhone(t.text); ok && t.account.HasRecipient(phone) {
		target = phone
	}
	if target == "" {
		t.reply("That is not in your list. Send a list number or phone number, or 0 to cancel.")
		return nil
	}

	if _, err := m.ledger.Update(t.ctx, t.event.ActorID, func(a *model.Account) error {
		a.RemoveRecipient(target)
		return nil
	}); err != nil {
		return fmt.Errorf("remove recipient: %w", err)
	}
	t.replyf("Removed %s.", target)
	return m.finish(t)
}

func numbered(items []string, limit int) string {
	var b strings.Builder
	for i, item := range items {
		if i == limit {
			fmt.Fprintf(&b, "\n...and %d more", len(items)-limit)
			break
		}
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%d. %s", i+1, item)
	}
	return b.String()
}
