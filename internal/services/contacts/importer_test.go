package contacts

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/GK-FY/bulk/internal/domain/model"
)

type filesStub struct {
	body string
}

func (f filesStub) Download(context.Context, string) (io.ReadCloser, string, error) {
	return io.NopCloser(strings.NewReader(f.body)), "file_1.csv", nil
}

type archiveStub struct {
	keys []string
	err  error
}

func (a *archiveStub) Put(_ context.Context, key string, _ []byte, _ string) error {
	if a.err != nil {
		return a.err
	}
	a.keys = append(a.keys, key)
	return nil
}

func TestExtractPhonesNormalizesAndDedups(t *testing.T) {
	phones, invalid := ExtractPhones("name,phone\nann,0712345678\nbob,+254 712 345 678\ncid,712000111\nbad,12\n")

	if len(phones) != 2 {
		t.Fatalf("expected 2 unique phones, got %v", phones)
	}
	if phones[0] != "254712345678" || phones[1] != "254712000111" {
		t.Fatalf("unexpected phones: %v", phones)
	}
	if invalid != 1 {
		t.Fatalf("expected 1 invalid token, got %d", invalid)
	}
}

func TestImportArchivesFile(t *testing.T) {
	archive := &archiveStub{}
	importer := NewImporter(filesStub{body: "0712345678"}, archive, nil)

	res, err := importer.Import(context.Background(), "u1", &model.Attachment{FileID: "f1", FileName: "list.csv"})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if len(res.Phones) != 1 || res.ArchiveKey == "" || len(archive.keys) != 1 {
		t.Fatalf("unexpected result: %+v keys=%v", res, archive.keys)
	}
	if !strings.HasPrefix(res.ArchiveKey, "contacts/u1/") || !strings.HasSuffix(res.ArchiveKey, "list.csv") {
		t.Fatalf("unexpected archive key: %s", res.ArchiveKey)
	}
}

func TestImportSurvivesArchiveFailure(t *testing.T) {
	importer := NewImporter(filesStub{body: "0712345678"}, &archiveStub{err: errors.New("s3 down")}, nil)

	res, err := importer.Import(context.Background(), "u1", &model.Attachment{FileID: "f1"})
	if err != nil {
		t.Fatalf("archive failure must not fail import: %v", err)
	}
	if len(res.Phones) != 1 || res.ArchiveKey != "" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestImportRejectsLargeFiles(t *testing.T) {
	importer := NewImporter(filesStub{body: strings.Repeat("1", 64)}, nil, nil)
	importer.maxBytes = 16

	if _, err := importer.Import(context.Background(), "u1", &model.Attachment{FileID: "f1"}); !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("expected ErrFileTooLarge, got %v", err)
	}
	if _, err := importer.Import(context.Background(), "u1", nil); !errors.Is(err, ErrNoAttachment) {
		t.Fatalf("expected ErrNoAttachment, got %v", err)
	}
}
