package handler

import (
	"log"
	"net/http"
	"net/url"
	"time"

	"keygate/internal/auth"
	"keygate/internal/logger"
	"keygate/internal/session"
	"keygate/internal/token"

	"github.com/gin-gonic/gin"
)

const sessionTTL = 24 * time.Hour

type Handler struct {
	authenticator *auth.Authenticator
	sessionStore  session.Store

	tokenCookieName string
	tokenSecret     string
	tokenMaxAge     int
}

func NewHandler(
	authenticator *auth.Authenticator,
	sessionStore session.Store,
	tokenCookieName string,
	tokenSecret string,
	tokenMaxAge int,
) *Handler {
	return &Handler{
		authenticator:   authenticator,
		sessionStore:    sessionStore,
		tokenCookieName: tokenCookieName,
		tokenSecret:     tokenSecret,
		tokenMaxAge:     tokenMaxAge,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/auth/login", h.tokenLogin)
	r.GET("/auth/choose", h.choose)
	r.POST("/auth/logout", h.Logout)

	for _, route := range r.Routes() {
		log.Printf("[ROUTE] %s %s", route.Method, route.Path)
	}
}

// tokenLogin authenticates with the signed identity token delivered in
// the configured cookie. On success, a session is created and the
// session cookie is set.
func (h *Handler) tokenLogin(c *gin.Context) {
	cookie, err := c.Request.Cookie(h.tokenCookieName)
	if err != nil || cookie.Value == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"result": "Authentication Failed",
			"messages": []string{
				"Cookies must be enabled to authenticate. Please ensure that you have cookies enabled in your browser and then try logging in again. If the problem persists, please contact support.",
			},
		})
		return
	}

	tok, err := token.New(decodeCookieValue(cookie.Value), h.tokenSecret, h.tokenMaxAge)
	if err != nil {
		// Construction only fails on deployment misconfiguration.
		logger.Error("token construction failed", map[string]any{
			"error": err.Error(),
		})
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	res := h.authenticator.Authenticate(c.Request.Context(), tok)
	if !res.OK() {
		body := gin.H{
			"result":   "Authentication Failed",
			"code":     res.Code,
			"messages": res.Messages,
		}
		if res.AccountID != "" {
			body["account_id"] = res.AccountID
		}
		c.JSON(statusForCode(res.Code), body)
		return
	}

	if !h.startSession(c, res.AccountID) {
		return
	}

	log.Printf("[LOGIN_SUCCESS] account_id=%s ip=%s",
		res.AccountID,
		c.ClientIP(),
	)

	c.JSON(http.StatusOK, gin.H{
		"status":     "authenticated",
		"account_id": res.AccountID,
	})
}

// choose lists the available ways to log in, so a client can offer the
// token login next to the ordinary password login.
func (h *Handler) choose(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"token_login_url":    "/auth/login",
		"password_login_url": "/auth/password-login",
	})
}

func (h *Handler) Logout(c *gin.Context) {

	// 1. Read session cookie (same pattern as auth middleware)
	cookie, err := c.Request.Cookie(session.CookieName)
	if err == nil && cookie.Value != "" {
		// 2. Delete session from store (best-effort)
		_ = h.sessionStore.Delete(c.Request.Context(), cookie.Value)
		log.Printf(
			"[LOGOUT] session_id=%s ip=%s",
			cookie.Value,
			c.ClientIP(),
		)
	}

	// 3. Clear cookie (must pass options)
	session.ClearCookie(c.Writer, session.CookieOptions{
		Path:     "/",
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	// 4. Idempotent response
	c.Status(http.StatusNoContent)
}

// startSession creates and persists a session for accountID and sets
// the session cookie. Writes the error response itself on failure.
func (h *Handler) startSession(c *gin.Context, accountID string) bool {
	sessionID, err := session.GenerateID()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
		return false
	}

	expiresAt := time.Now().Add(sessionTTL)

	if err := h.sessionStore.Create(
		c.Request.Context(),
		session.Session{
			SessionID: sessionID,
			AccountID: accountID,
			ExpiresAt: expiresAt,
		},
	); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to persist session"})
		return false
	}

	session.SetCookie(c.Writer, sessionID, expiresAt, session.CookieOptions{
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
	return true
}

func statusForCode(code auth.Code) int {
	switch code {
	case auth.CodeCredentialInvalid:
		return http.StatusUnauthorized
	case auth.CodeAccessDenied, auth.CodeAccountInactive:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// decodeCookieValue undoes URL encoding applied by the token issuer
// when it set the cookie. A value that is not URL-encoded passes
// through unchanged.
func decodeCookieValue(value string) string {
	decoded, err := url.QueryUnescape(value)
	if err != nil {
		return value
	}
	return decoded
}
