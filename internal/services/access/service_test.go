package access

import (
	"context"
	"errors"
	"testing"

	"github.com/GK-FY/bulk/internal/services/settings"
)

func TestGrantAndRevokeAdmin(t *testing.T) {
	reg := settings.NewRegistry(nil, nil)
	svc := NewService([]string{"owner", " ", "owner"}, reg)
	ctx := context.Background()

	if !svc.IsAdmin("owner") || svc.IsAdmin("u1") {
		t.Fatalf("unexpected initial admin state")
	}

	added, err := svc.Grant(ctx, "u1")
	if err != nil || !added {
		t.Fatalf("grant: added=%v err=%v", added, err)
	}
	if !svc.IsAdmin("u1") {
		t.Fatalf("u1 must be admin after grant")
	}
	if again, _ := svc.Grant(ctx, "u1"); again {
		t.Fatalf("second grant must be a no-op")
	}

	ids := svc.AdminIDs()
	if len(ids) != 2 || ids[0] != "owner" || ids[1] != "u1" {
		t.Fatalf("unexpected admin ids: %v", ids)
	}

	removed, err := svc.Revoke(ctx, "u1")
	if err != nil || !removed || svc.IsAdmin("u1") {
		t.Fatalf("revoke: removed=%v err=%v", removed, err)
	}
}

func TestOwnerCannotBeRevoked(t *testing.T) {
	svc := NewService([]string{"owner"}, settings.NewRegistry(nil, nil))

	if _, err := svc.Revoke(context.Background(), "owner"); !errors.Is(err, ErrOwnerRevoke) {
		t.Fatalf("expected ErrOwnerRevoke, got %v", err)
	}
}
