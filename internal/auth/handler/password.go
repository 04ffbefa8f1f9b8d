package handler

import (
	"net/http"

	"keygate/internal/auth/credentials"

	"github.com/gin-gonic/gin"
)

// PasswordHandler serves the ordinary local registration and
// password-login path next to the token login.
type PasswordHandler struct {
	credentialService *credentials.Service
	sessions          *Handler
}

func NewPasswordHandler(credentialService *credentials.Service, sessions *Handler) *PasswordHandler {
	return &PasswordHandler{
		credentialService: credentialService,
		sessions:          sessions,
	}
}

func (h *PasswordHandler) RegisterRoutes(r *gin.Engine) {
	r.POST("/auth/register", h.Register)
	r.POST("/auth/password-login", h.Login)
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *PasswordHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	accountID, err := h.credentialService.Register(
		c.Request.Context(),
		req.Username,
		req.Email,
		req.Password,
	)

	if err != nil {
		switch err {
		case credentials.ErrAlreadyRegistered:
			c.JSON(http.StatusConflict, gin.H{"error": "account already exists"})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
		return
	}

	if !h.sessions.startSession(c, accountID) {
		return
	}

	c.JSON(http.StatusCreated, gin.H{"status": "registered"})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *PasswordHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	accountID, err := h.credentialService.Authenticate(
		c.Request.Context(),
		req.Email,
		req.Password,
	)

	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	if !h.sessions.startSession(c, accountID) {
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "logged_in"})
}
