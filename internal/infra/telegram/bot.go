package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/GK-FY/bulk/internal/domain/model"
)

const maxMessageRunes = 4096

type Bot struct {
	api        *tgbotapi.BotAPI
	httpClient *http.Client
}

func NewBot(token string, httpClient *http.Client) (*Bot, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("telegram bot token is empty")
	}

	api, err := tgbotapi.NewBotAPI(strings.TrimSpace(token))
	if err != nil {
		return nil, fmt.Errorf("create telegram bot api: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}

	return &Bot{
		api:        api,
		httpClient: httpClient,
	}, nil
}

// Listen long-polls for updates and hands every private message to handler
// until ctx is cancelled.
func (b *Bot) Listen(ctx context.Context, handler func(context.Context, model.InboundEvent)) error {
	if b == nil || b.api == nil {
		return fmt.Errorf("telegram bot is not initialized")
	}
	if handler == nil {
		return fmt.Errorf("event handler is nil")
	}

	updateCfg := tgbotapi.NewUpdate(0)
	updateCfg.Timeout = 30
	updates := b.api.GetUpdatesChan(updateCfg)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if event, ok := toEvent(update); ok {
				handler(ctx, event)
			}
		}
	}
}

func toEvent(update tgbotapi.Update) (model.InboundEvent, bool) {
	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil || !msg.Chat.IsPrivate() {
		return model.InboundEvent{}, false
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		text = strings.TrimSpace(msg.Caption)
	}

	event := model.InboundEvent{
		EventID:     strconv.Itoa(update.UpdateID),
		ActorID:     strconv.FormatInt(msg.From.ID, 10),
		DisplayName: displayName(msg.From),
		Text:        text,
		ReceivedAt:  msg.Time(),
	}
	if msg.Document != nil {
		event.HasAttachment = true
		event.Attachment = &model.Attachment{
			FileID:   msg.Document.FileID,
			FileName: msg.Document.FileName,
		}
	}

	if event.Text == "" && !event.HasAttachment {
		return model.InboundEvent{}, false
	}
	return event, true
}

func displayName(u *tgbotapi.User) string {
	name := strings.TrimSpace(strings.TrimSpace(u.FirstName + " " + u.LastName))
	if name == "" {
		name = u.UserName
	}
	return name
}

// SendText delivers text to an actor, splitting it at the message size limit.
func (b *Bot) SendText(ctx context.Context, actorID string, text string) error {
	if b == nil || b.api == nil {
		return fmt.Errorf("telegram bot is not initialized")
	}
	chatID, err := strconv.ParseInt(strings.TrimSpace(actorID), 10, 64)
	if err != nil || chatID == 0 {
		return fmt.Errorf("invalid chat id %q", actorID)
	}

	for _, part := range splitMessage(text, maxMessageRunes) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := b.api.Send(tgbotapi.NewMessage(chatID, part)); err != nil {
			return fmt.Errorf("send telegram message: %w", err)
		}
	}
	return nil
}

// Download fetches an uploaded document. The caller closes the body.
func (b *Bot) Download(ctx context.Context, fileID string) (io.ReadCloser, string, error) {
	if b == nil || b.api == nil {
		return nil, "", fmt.Errorf("telegram bot is not initialized")
	}
	if strings.TrimSpace(fileID) == "" {
		return nil, "", fmt.Errorf("file id is required")
	}

	tgFile, err := b.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, "", fmt.Errorf("get telegram file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tgFile.Link(b.api.Token), nil)
	if err != nil {
		return nil, "", fmt.Errorf("create file request: %w", err)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download telegram file: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, "", fmt.Errorf("unexpected telegram file status: %d", resp.StatusCode)
	}

	name := path.Base(strings.TrimSpace(tgFile.FilePath))
	if name == "." || name == "/" || name == "" {
		name = "contacts.txt"
	}
	return resp.Body, name, nil
}

func splitMessage(text string, limit int) []string {
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var parts []string
	runes := []rune(text)
	for len(runes) > 0 {
		end := min(limit, len(runes))
		if end < len(runes) {
			if cut := lastNewline(runes[:end]); cut > 0 {
				end = cut + 1
			}
		}
		parts = append(parts, string(runes[:end]))
		runes = runes[end:]
	}
	return parts
}

func lastNewline(runes []rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == '\n' {
			return i
		}
	}
	return -1
}
