package middleware

import (
	"context"
	"net/http"
	"time"

	"keygate/internal/directory"
	"keygate/internal/session"
)

// unexported, collision-proof context keys
type accountIDContextKeyType struct{}
type roleContextKeyType struct{}

var (
	accountIDKey = accountIDContextKeyType{}
	roleKey      = roleContextKeyType{}
)

// AccountIDFromContext extracts the authenticated account ID from context.
func AccountIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(accountIDKey).(string)
	return id, ok
}

// RoleFromContext extracts the authenticated account's role from context.
func RoleFromContext(ctx context.Context) (string, bool) {
	role, ok := ctx.Value(roleKey).(string)
	return role, ok
}

type AuthMiddleware struct {
	Sessions session.Store
	Accounts directory.Store
}

func NewAuthMiddleware(sessions session.Store, accounts directory.Store) *AuthMiddleware {
	return &AuthMiddleware{Sessions: sessions, Accounts: accounts}
}

// RequireAuth resolves the session cookie to a live account and
// attaches account id and role to the request context. The account is
// re-fetched on every request so that deactivation or a role change
// takes effect immediately, not at next login.
func (a *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 1. Read session cookie
		cookie, err := r.Cookie(session.CookieName)
		if err != nil || cookie.Value == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		sessionID := cookie.Value

		// 2. Load session
		sess, err := a.Sessions.Get(r.Context(), sessionID)
		if err != nil || sess == nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		// 3. Enforce session expiry
		if time.Now().After(sess.ExpiresAt) {
			_ = a.Sessions.Delete(r.Context(), sessionID)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		// 4. Resolve the account; a deleted or deactivated account
		// invalidates the session.
		acct, err := a.Accounts.FindAccountByID(r.Context(), sess.AccountID)
		if err != nil || acct == nil || !acct.Active {
			_ = a.Sessions.Delete(r.Context(), sessionID)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		// 5. Attach identity to context
		ctx := context.WithValue(r.Context(), accountIDKey, acct.ID)
		ctx = context.WithValue(ctx, roleKey, acct.Role)

		// 6. Continue request
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
