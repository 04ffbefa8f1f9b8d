package directory

import (
	"context"
	"testing"
)

func TestInsertLinkIsInsertOrGet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	first, err := store.InsertLink(ctx, "abc123")
	if err != nil {
		t.Fatal(err)
	}
	second, err := store.InsertLink(ctx, "abc123")
	if err != nil {
		t.Fatal(err)
	}

	if first.ID != second.ID {
		t.Errorf("duplicate insert returned a different row: %d vs %d", first.ID, second.ID)
	}

	other, err := store.InsertLink(ctx, "xyz789")
	if err != nil {
		t.Fatal(err)
	}
	if other.ID == first.ID {
		t.Error("distinct external ids must get distinct rows")
	}
}

func TestLinkAccountUpdatesCallerCopy(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	link, err := store.InsertLink(ctx, "abc123")
	if err != nil {
		t.Fatal(err)
	}
	if link.Linked() {
		t.Fatal("fresh link should be unlinked")
	}

	if err := store.LinkAccount(ctx, link, "acct-1", true); err != nil {
		t.Fatal(err)
	}
	if link.AccountID != "acct-1" || !link.AccountCreatedByUs {
		t.Errorf("caller copy not updated: %+v", link)
	}

	reloaded, err := store.FindLinkByExternalID(ctx, "abc123")
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.AccountID != "acct-1" || !reloaded.AccountCreatedByUs {
		t.Errorf("persisted row not updated: %+v", reloaded)
	}
}

func TestFindAccountByEmailIsCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	id, err := store.CreateAccount(ctx, NewAccount{
		Username: "jo",
		Email:    "Jo@Example.EDU",
		Role:     RoleViewer,
		Active:   true,
	})
	if err != nil {
		t.Fatal(err)
	}

	acct, err := store.FindAccountByEmail(ctx, "jo@example.edu")
	if err != nil {
		t.Fatal(err)
	}
	if acct == nil || acct.ID != id {
		t.Errorf("lookup failed: %+v", acct)
	}

	if acct, _ := store.FindAccountByEmail(ctx, ""); acct != nil {
		t.Error("empty email must never match")
	}
}

func TestPurgeCreatedAccounts(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	// One account created by the reconciler...
	created, _ := store.CreateAccount(ctx, NewAccount{Username: "keyuser1", Role: RoleViewer, Active: true})
	createdLink, _ := store.InsertLink(ctx, "created-id")
	_ = store.LinkAccount(ctx, createdLink, created, true)

	// ...and one pre-existing account that was linked by email.
	existing, _ := store.CreateAccount(ctx, NewAccount{Username: "jo", Email: "jo@example.edu", Role: RoleViewer, Active: true})
	existingLink, _ := store.InsertLink(ctx, "linked-id")
	_ = store.LinkAccount(ctx, existingLink, existing, false)

	removed, err := store.PurgeCreatedAccounts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}

	if acct, _ := store.FindAccountByID(ctx, created); acct != nil {
		t.Error("created account should be purged")
	}
	if acct, _ := store.FindAccountByID(ctx, existing); acct == nil {
		t.Error("linked pre-existing account must survive the purge")
	}
	if link, _ := store.FindLinkByExternalID(ctx, "created-id"); link != nil {
		t.Error("link of purged account should be removed")
	}
	if link, _ := store.FindLinkByExternalID(ctx, "linked-id"); link == nil {
		t.Error("link of surviving account should remain")
	}
}

func TestLinksBrowseOrder(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	a1, _ := store.CreateAccount(ctx, NewAccount{Username: "u1", Email: "zed@example.edu", Role: RoleViewer, Active: true})
	a2, _ := store.CreateAccount(ctx, NewAccount{Username: "u2", Email: "amy@example.edu", Role: RoleViewer, Active: true})

	l1, _ := store.InsertLink(ctx, "id-zed")
	_ = store.LinkAccount(ctx, l1, a1, true)
	l2, _ := store.InsertLink(ctx, "id-amy")
	_ = store.LinkAccount(ctx, l2, a2, false)
	_, _ = store.InsertLink(ctx, "id-unlinked")

	records, err := store.Links(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}

	// Sorted by email with the unlinked (empty email) row first.
	if records[0].ExternalID != "id-unlinked" {
		t.Errorf("first record = %q", records[0].ExternalID)
	}
	if records[1].Email != "amy@example.edu" || records[2].Email != "zed@example.edu" {
		t.Errorf("records out of order: %v", records)
	}
}
