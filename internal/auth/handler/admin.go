package handler

import (
	"net/http"

	"keygate/internal/directory"
	"keygate/internal/logger"

	"github.com/gin-gonic/gin"
)

// AdminHandler serves the identity-link management surface. All routes
// require the super role.
type AdminHandler struct {
	store directory.Store
}

func NewAdminHandler(store directory.Store) *AdminHandler {
	return &AdminHandler{store: store}
}

func (h *AdminHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/links", h.Browse)
	r.POST("/links/purge", h.Purge)
}

// Browse lists every identity link with its account email.
func (h *AdminHandler) Browse(c *gin.Context) {
	records, err := h.store.Links(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list links"})
		return
	}

	type row struct {
		LinkID             int64  `json:"link_id"`
		ExternalID         string `json:"external_id"`
		AccountID          string `json:"account_id,omitempty"`
		AccountCreatedByUs bool   `json:"account_created_by_us"`
		Email              string `json:"email,omitempty"`
		InsertedAt         string `json:"inserted_at"`
	}

	rows := make([]row, 0, len(records))
	for _, rec := range records {
		rows = append(rows, row{
			LinkID:             rec.LinkID,
			ExternalID:         rec.ExternalID,
			AccountID:          rec.AccountID,
			AccountCreatedByUs: rec.AccountCreatedByUs,
			Email:              rec.Email,
			InsertedAt:         rec.InsertedAt.Format("2006-01-02 15:04:05"),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"records":       rows,
		"total_results": len(rows),
	})
}

// Purge batch-deletes every account the reconciler created, along with
// its link. Accounts that were linked to a pre-existing registration
// are left alone.
func (h *AdminHandler) Purge(c *gin.Context) {
	deleted, err := h.store.PurgeCreatedAccounts(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to purge accounts"})
		return
	}

	logger.Info("purged reconciler-created accounts", map[string]any{
		"deleted": deleted,
	})

	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}
