package reconcile

import (
	"context"
	"errors"
	"fmt"

	"keygate/internal/directory"
	"keygate/internal/logger"
)

var (
	ErrPasscodeDisabled = errors.New("reconcile: passcode feature is disabled")
	ErrPasscodeMismatch = errors.New("reconcile: submitted passcode does not match")
	ErrNoAccount        = errors.New("reconcile: no such account")
)

// Identity is a validated external identity, as asserted by a token.
// It contains facts only; the Reconciler decides what they mean.
type Identity struct {
	ID    string
	Name  string
	Email string
	Role  string
}

// Reconciler maps external identities onto local accounts: it looks up
// the existing link, absorbs a matching local account by email, or
// creates a fresh account. Every call goes to the store; nothing is
// cached.
type Reconciler struct {
	store  directory.Store
	policy Policy
	locks  *keyedMutex
}

func New(store directory.Store, policy Policy) *Reconciler {
	return &Reconciler{
		store:  store,
		policy: policy,
		locks:  newKeyedMutex(),
	}
}

// CreateOrLink resolves identity to a linked account, creating the
// link row and, when necessary, the account. Calls for the same
// external id are serialized so at most one account is ever created
// per identity.
func (r *Reconciler) CreateOrLink(ctx context.Context, identity Identity) (*directory.IdentityLink, error) {
	if identity.ID == "" {
		return nil, errors.New("reconcile: identity has no external id")
	}

	unlock := r.locks.lock(identity.ID)
	defer unlock()

	link, err := r.store.FindLinkByExternalID(ctx, identity.ID)
	if err != nil {
		return nil, fmt.Errorf("reconcile: link lookup: %w", err)
	}
	if link == nil {
		link, err = r.store.InsertLink(ctx, identity.ID)
		if err != nil {
			return nil, fmt.Errorf("reconcile: link insert: %w", err)
		}
	}

	// Already linked: done if the account still exists. A dangling
	// account id means the account was deleted out from under us, so
	// fall through and relink as if the row were fresh.
	if link.Linked() {
		acct, err := r.store.FindAccountByID(ctx, link.AccountID)
		if err != nil {
			return nil, fmt.Errorf("reconcile: account lookup: %w", err)
		}
		if acct != nil {
			return link, nil
		}
		logger.Warn("linked account missing, relinking", map[string]any{
			"external_id": identity.ID,
			"account_id":  link.AccountID,
		})
	}

	// A manually registered account with the same email absorbs the
	// first external login.
	if identity.Email != "" {
		acct, err := r.store.FindAccountByEmail(ctx, identity.Email)
		if err != nil {
			return nil, fmt.Errorf("reconcile: account email lookup: %w", err)
		}
		if acct != nil {
			if err := r.store.LinkAccount(ctx, link, acct.ID, false); err != nil {
				return nil, fmt.Errorf("reconcile: link existing account: %w", err)
			}
			if !acct.Active {
				if err := r.store.SetAccountActive(ctx, acct.ID, true); err != nil {
					return nil, fmt.Errorf("reconcile: reactivate account: %w", err)
				}
			}
			return link, nil
		}
	}

	accountID, err := r.createAccount(ctx, link, identity)
	if err != nil {
		return nil, err
	}
	if err := r.store.LinkAccount(ctx, link, accountID, true); err != nil {
		return nil, fmt.Errorf("reconcile: link created account: %w", err)
	}
	return link, nil
}

func (r *Reconciler) createAccount(ctx context.Context, link *directory.IdentityLink, identity Identity) (string, error) {
	// The link's own primary key makes the username collision-free.
	username := fmt.Sprintf("keyuser%d", link.ID)

	displayName := identity.Name
	if displayName == "" {
		displayName = username
	}

	accountID, err := r.store.CreateAccount(ctx, directory.NewAccount{
		Username:    username,
		DisplayName: displayName,
		Email:       identity.Email,
		Role:        r.roleFor(identity),
		Active:      true,
		// No password hash: token-created accounts must not be able to
		// log in with a local password.
		PasswordHash: "",
	})
	if err != nil {
		return "", fmt.Errorf("reconcile: create account: %w", err)
	}

	logger.Info("created account for external identity", map[string]any{
		"external_id": identity.ID,
		"account_id":  accountID,
		"username":    username,
	})
	return accountID, nil
}

// roleFor picks the role for a new account: the token's own role claim
// when the deployment trusts it and the claim is allowlisted,
// otherwise the server-side prescreen policy.
func (r *Reconciler) roleFor(identity Identity) string {
	if r.policy.TrustTokenRole && identity.Role != "" {
		if _, ok := tokenRoleAllowlist[identity.Role]; ok {
			return identity.Role
		}
	}
	return r.policy.RoleForEmail(identity.Email)
}

// Escalate applies a submitted passcode to an existing account,
// setting the configured target role on match. Plain string equality
// is fine here: the passcode is a shared low-sensitivity code, not a
// cryptographic secret. The super and admin roles are never reachable
// through a shared code.
func (r *Reconciler) Escalate(ctx context.Context, accountID, submitted string) error {
	if !r.policy.PasscodeEnabled || r.policy.Passcode == "" {
		return ErrPasscodeDisabled
	}
	if submitted != r.policy.Passcode {
		return ErrPasscodeMismatch
	}

	acct, err := r.store.FindAccountByID(ctx, accountID)
	if err != nil {
		return fmt.Errorf("reconcile: account lookup: %w", err)
	}
	if acct == nil {
		return ErrNoAccount
	}

	role := safeRole(r.policy.PasscodeRole, directory.RoleSuper, directory.RoleAdmin)
	if err := r.store.SetAccountRole(ctx, accountID, role); err != nil {
		return fmt.Errorf("reconcile: set role: %w", err)
	}

	logger.Info("passcode escalation applied", map[string]any{
		"account_id": accountID,
		"role":       role,
	})
	return nil
}
