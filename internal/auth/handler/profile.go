package handler

import (
	"net/http"

	"keygate/internal/middleware"
	"keygate/internal/reconcile"

	"github.com/gin-gonic/gin"
)

// ProfileHandler serves authenticated self-service actions.
type ProfileHandler struct {
	reconciler *reconcile.Reconciler
}

func NewProfileHandler(reconciler *reconcile.Reconciler) *ProfileHandler {
	return &ProfileHandler{reconciler: reconciler}
}

func (h *ProfileHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/profile/passcode", h.Passcode)
}

type passcodeRequest struct {
	Passcode string `json:"passcode"`
}

// Passcode applies a submitted passcode to the logged-in account,
// granting the configured role on match.
func (h *ProfileHandler) Passcode(c *gin.Context) {
	accountID, ok := middleware.AccountIDFromContext(c.Request.Context())
	if !ok {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	var req passcodeRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Passcode == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	switch err := h.reconciler.Escalate(c.Request.Context(), accountID, req.Passcode); err {
	case nil:
		c.JSON(http.StatusOK, gin.H{"status": "role updated"})
	case reconcile.ErrPasscodeDisabled:
		c.JSON(http.StatusNotFound, gin.H{"error": "passcode feature is not enabled"})
	case reconcile.ErrPasscodeMismatch:
		c.JSON(http.StatusForbidden, gin.H{"error": "incorrect passcode"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update role"})
	}
}
