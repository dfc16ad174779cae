package contacts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/GK-FY/bulk/internal/domain/model"
	"github.com/GK-FY/bulk/internal/domain/rules"
)

const defaultMaxFileBytes = 2 << 20

var (
	ErrNoAttachment = errors.New("no file attached")
	ErrFileTooLarge = errors.New("contact file too large")
)

type FileSource interface {
	Download(ctx context.Context, fileID string) (io.ReadCloser, string, error)
}

type Archive interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
}

// Importer turns an uploaded contact file into normalized phone numbers.
// The raw file is archived when an Archive is configured.
type Importer struct {
	files    FileSource
	archive  Archive
	logger   *zap.Logger
	maxBytes int64
	now      func() time.Time
}

func NewImporter(files FileSource, archive Archive, logger *zap.Logger) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{
		files:    files,
		archive:  archive,
		logger:   logger,
		maxBytes: defaultMaxFileBytes,
		now:      time.Now,
	}
}

type Result struct {
	Phones     []string
	Invalid    int
	ArchiveKey string
}

func (i *Importer) Import(ctx context.Context, actorID string, att *model.Attachment) (Result, error) {
	if att == nil || strings.TrimSpace(att.FileID) == "" {
		return Result{}, ErrNoAttachment
	}
	if i.files == nil {
		return Result{}, fmt.Errorf("file source is not configured")
	}

	body, name, err := i.files.Download(ctx, att.FileID)
	if err != nil {
		return Result{}, fmt.Errorf("download contact file: %w", err)
	}
	defer body.Close()

	data, err := io.ReadAll(io.LimitReader(body, i.maxBytes+1))
	if err != nil {
		return Result{}, fmt.Errorf("read contact file: %w", err)
	}
	if int64(len(data)) > i.maxBytes {
		return Result{}, ErrFileTooLarge
	}

	phones, invalid := ExtractPhones(string(data))
	out := Result{Phones: phones, Invalid: invalid}

	if i.archive != nil && len(data) > 0 {
		if att.FileName != "" {
			name = att.FileName
		}
		key := fmt.Sprintf("contacts/%s/%s/%s-%s",
			actorID, i.now().UTC().Format("2006-01-02"), uuid.NewString(), path.Base(name))
		if err := i.archive.Put(ctx, key, data, "text/plain"); err != nil {
			i.logger.Warn("archive contact file failed", zap.String("actor_id", actorID), zap.Error(err))
		} else {
			out.ArchiveKey = key
		}
	}

	i.logger.Info("contact file imported",
		zap.String("actor_id", actorID),
		zap.Int("phones", len(phones)),
		zap.Int("invalid", invalid),
	)
	return out, nil
}

// ExtractPhones pulls phone-like tokens out of free text or CSV. Tokens with
// no digits are ignored; digit tokens that fail normalization are counted
// as invalid. The result keeps first-seen order without duplicates.
func ExtractPhones(text string) ([]string, int) {
	tokens := strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == ';' || r == '\t' || r == '\n' || r == '\r' || r == '|' || r == '"'
	})

	seen := make(map[string]struct{})
	var phones []string
	invalid := 0
	for _, token := range tokens {
		token = strings.TrimSpace(token)
		if !hasDigit(token) {
			continue
		}
		phone, ok := rules.NormalizePhone(token)
		if !ok {
			invalid++
			continue
		}
		if _, dup := seen[phone]; dup {
			continue
		}
		seen[phone] = struct{}{}
		phones = append(phones, phone)
	}
	return phones, invalid
}

func hasDigit(s string) bool {
	return strings.IndexFunc(s, unicode.IsDigit) >= 0
}
