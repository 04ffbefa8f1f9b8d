package auth

import (
	"context"
	"fmt"

	"keygate/internal/directory"
	"keygate/internal/logger"
	"keygate/internal/reconcile"
	"keygate/internal/token"
)

// Authenticator turns a parsed token into a pass/fail verdict: token
// validity, then access policy, then reconciliation, then a final
// account check. Every failing step short-circuits with a typed
// Result; this is the only place a verdict is produced.
type Authenticator struct {
	store      directory.Store
	reconciler *reconcile.Reconciler
	policy     reconcile.Policy
}

func New(store directory.Store, reconciler *reconcile.Reconciler, policy reconcile.Policy) *Authenticator {
	return &Authenticator{
		store:      store,
		reconciler: reconciler,
		policy:     policy,
	}
}

func (a *Authenticator) Authenticate(ctx context.Context, tok *token.Token) Result {
	if !tok.IsValid() {
		logger.Warn("auth failure: token is invalid", map[string]any{
			"errors": tok.ValidationErrors(),
		})
		msgs := append(
			[]string{"Login failed because login data was invalid."},
			tok.ValidationErrors()...,
		)
		return failure(CodeCredentialInvalid, msgs...)
	}

	if ok, res := a.checkRestriction(ctx, tok.Email()); !ok {
		return res
	}

	link, err := a.reconciler.CreateOrLink(ctx, reconcile.Identity{
		ID:    tok.ID(),
		Name:  tok.Name(),
		Email: tok.Email(),
		Role:  tok.Role(),
	})
	if err != nil {
		logger.Error("auth failure: reconciliation failed", map[string]any{
			"external_id": tok.ID(),
			"error":       err.Error(),
		})
		return failure(CodeReconciliationFailed,
			"Login failed because the external identity could not be associated with a local account.")
	}

	acct, err := a.store.FindAccountByID(ctx, link.AccountID)
	if err != nil || acct == nil {
		logger.Error("auth failure: linked account not found", map[string]any{
			"external_id": tok.ID(),
			"account_id":  link.AccountID,
		})
		return failure(CodeAccountLookupFailed,
			"Login failed because no local account could be found for the external identity.")
	}

	if !acct.Active {
		logger.Warn("auth failure: account is inactive", map[string]any{
			"account_id": acct.ID,
		})
		res := failure(CodeAccountInactive, "Login failed because account is inactive.")
		res.AccountID = acct.ID
		return res
	}

	return success(acct.ID)
}

// checkRestriction applies the coarse access policy. Only the
// site-users-only mode rejects here: community-only is enforced
// upstream by the page gate, which requires that a token exists at
// all.
func (a *Authenticator) checkRestriction(ctx context.Context, email string) (bool, Result) {
	if a.policy.Restriction != reconcile.RestrictionSiteUsersOnly {
		return true, Result{}
	}

	if a.policy.Prescreened(email) {
		return true, Result{}
	}

	acct, err := a.store.FindAccountByEmail(ctx, email)
	if err != nil {
		logger.Error("auth failure: account lookup failed", map[string]any{
			"error": err.Error(),
		})
		return false, failure(CodeReconciliationFailed,
			"Login failed because the account directory was unavailable.")
	}
	if acct == nil {
		logger.Warn("auth failure: email is not permitted", map[string]any{
			"email": email,
		})
		return false, failure(CodeAccessDenied, fmt.Sprintf(
			"Login failed because email address [%s] is not permitted to log in to this site.", email))
	}
	return true, Result{}
}
