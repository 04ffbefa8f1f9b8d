package auth

import (
	"context"
	"errors"
	"strings"
	"testing"

	"keygate/internal/directory"
	"keygate/internal/reconcile"
	"keygate/internal/token"
)

const testSecret = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa" // 32 bytes
const testMaxAge = 600

func newTestAuthenticator(policy reconcile.Policy) (*Authenticator, *directory.MemoryStore) {
	store := directory.NewMemoryStore()
	reconciler := reconcile.New(store, policy)
	return New(store, reconciler, policy), store
}

func validToken(t *testing.T, claims token.Claims) *token.Token {
	t.Helper()
	tok, err := token.Create(claims, testSecret, testMaxAge)
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func invalidToken(t *testing.T) *token.Token {
	t.Helper()
	tok, err := token.New("garbage", testSecret, testMaxAge)
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func TestAuthenticateSuccess(t *testing.T) {
	ctx := context.Background()
	a, store := newTestAuthenticator(reconcile.Policy{})

	res := a.Authenticate(ctx, validToken(t, token.Claims{ID: "abc123"}))
	if !res.OK() {
		t.Fatalf("result = %+v, want success", res)
	}
	if res.AccountID == "" {
		t.Fatal("success result must carry the account id")
	}

	acct, err := store.FindAccountByID(ctx, res.AccountID)
	if err != nil || acct == nil {
		t.Fatalf("account not found: %v", err)
	}
	if acct.Role != directory.RoleViewer || !acct.Active || acct.PasswordUsable() {
		t.Errorf("account = %+v, want active viewer without usable password", acct)
	}
	if store.AccountCount() != 1 {
		t.Errorf("account count = %d, want 1", store.AccountCount())
	}
}

func TestAuthenticateRepeatYieldsSameAccount(t *testing.T) {
	ctx := context.Background()
	a, store := newTestAuthenticator(reconcile.Policy{})

	first := a.Authenticate(ctx, validToken(t, token.Claims{ID: "abc123"}))
	second := a.Authenticate(ctx, validToken(t, token.Claims{ID: "abc123"}))

	if !first.OK() || !second.OK() {
		t.Fatalf("results: %+v, %+v", first, second)
	}
	if first.AccountID != second.AccountID {
		t.Errorf("account ids differ: %q vs %q", first.AccountID, second.AccountID)
	}
	if store.AccountCount() != 1 {
		t.Errorf("account count = %d, want 1", store.AccountCount())
	}
}

func TestAuthenticateInvalidCredential(t *testing.T) {
	a, _ := newTestAuthenticator(reconcile.Policy{})

	res := a.Authenticate(context.Background(), invalidToken(t))
	if res.Code != CodeCredentialInvalid {
		t.Fatalf("code = %q, want credential_invalid", res.Code)
	}
	if res.AccountID != "" {
		t.Error("failed credential must not carry an account id")
	}
	if len(res.Messages) < 2 {
		t.Fatalf("messages = %v, want the summary plus validation reasons", res.Messages)
	}
	if res.Messages[0] != "Login failed because login data was invalid." {
		t.Errorf("first message = %q", res.Messages[0])
	}
}

func TestAuthenticateSiteUsersOnly(t *testing.T) {
	ctx := context.Background()

	policy := reconcile.Policy{
		Restriction:       reconcile.RestrictionSiteUsersOnly,
		PrescreenedEmails: reconcile.ParseEmails("vip@example.edu"),
		PrescreenedRole:   directory.RoleContributor,
	}

	t.Run("unknown email denied", func(t *testing.T) {
		a, store := newTestAuthenticator(policy)
		res := a.Authenticate(ctx, validToken(t, token.Claims{ID: "abc123", Email: "stranger@example.edu"}))
		if res.Code != CodeAccessDenied {
			t.Fatalf("code = %q, want access_denied", res.Code)
		}
		if len(res.Messages) == 0 || !strings.Contains(res.Messages[0], "stranger@example.edu") {
			t.Errorf("denial message should name the email, got %v", res.Messages)
		}
		if store.AccountCount() != 0 {
			t.Error("denied login must not create an account")
		}
	})

	t.Run("missing email denied", func(t *testing.T) {
		a, _ := newTestAuthenticator(policy)
		res := a.Authenticate(ctx, validToken(t, token.Claims{ID: "abc123"}))
		if res.Code != CodeAccessDenied {
			t.Fatalf("code = %q, want access_denied", res.Code)
		}
	})

	t.Run("prescreened email passes", func(t *testing.T) {
		a, _ := newTestAuthenticator(policy)
		res := a.Authenticate(ctx, validToken(t, token.Claims{ID: "abc123", Email: "vip@example.edu"}))
		if !res.OK() {
			t.Fatalf("result = %+v, want success", res)
		}
	})

	t.Run("existing account email passes", func(t *testing.T) {
		a, store := newTestAuthenticator(policy)
		existing, err := store.CreateAccount(ctx, directory.NewAccount{
			Username: "jo",
			Email:    "jo@example.edu",
			Role:     directory.RoleViewer,
			Active:   true,
		})
		if err != nil {
			t.Fatal(err)
		}
		res := a.Authenticate(ctx, validToken(t, token.Claims{ID: "abc123", Email: "jo@example.edu"}))
		if !res.OK() {
			t.Fatalf("result = %+v, want success", res)
		}
		if res.AccountID != existing {
			t.Errorf("account = %q, want linked existing %q", res.AccountID, existing)
		}
	})
}

func TestAuthenticateOpenRestrictionSkipsPolicy(t *testing.T) {
	a, _ := newTestAuthenticator(reconcile.Policy{Restriction: reconcile.RestrictionOpen})
	res := a.Authenticate(context.Background(), validToken(t, token.Claims{ID: "abc123"}))
	if !res.OK() {
		t.Fatalf("result = %+v, want success", res)
	}
}

func TestAuthenticateCommunityOnlyPassesPolicy(t *testing.T) {
	// Community-only is enforced by the page gate; the authenticator
	// itself lets any valid token through.
	a, _ := newTestAuthenticator(reconcile.Policy{Restriction: reconcile.RestrictionCommunityOnly})
	res := a.Authenticate(context.Background(), validToken(t, token.Claims{ID: "abc123"}))
	if !res.OK() {
		t.Fatalf("result = %+v, want success", res)
	}
}

func TestAuthenticateInactiveAccount(t *testing.T) {
	ctx := context.Background()
	a, store := newTestAuthenticator(reconcile.Policy{})

	first := a.Authenticate(ctx, validToken(t, token.Claims{ID: "abc123"}))
	if !first.OK() {
		t.Fatal(first)
	}
	if err := store.SetAccountActive(ctx, first.AccountID, false); err != nil {
		t.Fatal(err)
	}

	res := a.Authenticate(ctx, validToken(t, token.Claims{ID: "abc123"}))
	if res.Code != CodeAccountInactive {
		t.Fatalf("code = %q, want account_inactive", res.Code)
	}
	// The account id is surfaced for audit even though auth failed.
	if res.AccountID != first.AccountID {
		t.Errorf("account id = %q, want %q", res.AccountID, first.AccountID)
	}
}

// brokenStore fails InsertLink, simulating a storage write failure
// mid-reconciliation.
type brokenStore struct {
	*directory.MemoryStore
}

func (b *brokenStore) InsertLink(ctx context.Context, externalID string) (*directory.IdentityLink, error) {
	return nil, errors.New("connection reset")
}

func TestAuthenticateReconciliationFailure(t *testing.T) {
	store := &brokenStore{directory.NewMemoryStore()}
	policy := reconcile.Policy{}
	a := New(store, reconcile.New(store, policy), policy)

	res := a.Authenticate(context.Background(), validToken(t, token.Claims{ID: "abc123"}))
	if res.Code != CodeReconciliationFailed {
		t.Fatalf("code = %q, want reconciliation_failed", res.Code)
	}
}

// vanishingStore reports every account as missing, simulating an
// account deleted between reconciliation and the final check.
type vanishingStore struct {
	*directory.MemoryStore
	vanish bool
}

func (v *vanishingStore) FindAccountByID(ctx context.Context, id string) (*directory.Account, error) {
	if v.vanish {
		return nil, nil
	}
	return v.MemoryStore.FindAccountByID(ctx, id)
}

func TestAuthenticateAccountLookupFailure(t *testing.T) {
	store := &vanishingStore{MemoryStore: directory.NewMemoryStore()}
	policy := reconcile.Policy{}
	a := New(store, reconcile.New(store, policy), policy)

	// First pass links normally, then the account "vanishes" for the
	// authenticator's final re-fetch.
	ctx := context.Background()
	if res := a.Authenticate(ctx, validToken(t, token.Claims{ID: "abc123"})); !res.OK() {
		t.Fatal(res)
	}
	store.vanish = true

	res := a.Authenticate(ctx, validToken(t, token.Claims{ID: "abc123"}))
	if res.Code != CodeAccountLookupFailed {
		t.Fatalf("code = %q, want account_lookup_failed", res.Code)
	}
}
