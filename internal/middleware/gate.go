package middleware

import (
	"net/http"
	"strings"
	"time"

	"keygate/internal/reconcile"
	"keygate/internal/session"

	"github.com/gin-gonic/gin"
)

// Paths reachable without a session even when the site is gated, so a
// visitor can still reach the login flow.
var gateWhitelist = []string{
	"/health",
	"/auth/login",
	"/auth/choose",
	"/auth/register",
	"/auth/password-login",
	"/auth/logout",
}

// CommunityGate requires a session for every non-whitelisted route
// when the restriction mode is anything but open. This is the
// page-level "require login to view content" rule; it deliberately
// checks only that a live session exists and leaves account state to
// RequireAuth on the protected groups.
func CommunityGate(restriction reconcile.Restriction, sessions session.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if restriction == reconcile.RestrictionOpen {
			c.Next()
			return
		}

		path := c.Request.URL.Path
		for _, allowed := range gateWhitelist {
			if path == allowed || strings.HasPrefix(path, allowed+"/") {
				c.Next()
				return
			}
		}

		cookie, err := c.Request.Cookie(session.CookieName)
		if err != nil || cookie.Value == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "login required",
			})
			return
		}

		sess, err := sessions.Get(c.Request.Context(), cookie.Value)
		if err != nil || sess == nil || time.Now().After(sess.ExpiresAt) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "login required",
			})
			return
		}

		c.Next()
	}
}
