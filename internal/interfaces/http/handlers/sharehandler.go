package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"plexward/internal/application/admin"
	"plexward/internal/shared/utils"
)

// ShareHandler resolves public share-link tokens into provider checkout
// URLs.
type ShareHandler struct {
	resolver *admin.ShareResolver
}

func NewShareHandler(resolver *admin.ShareResolver) *ShareHandler {
	return &ShareHandler{resolver: resolver}
}

// Resolve handles GET /api/share/:token. The provider query parameter picks
// the checkout flow; paypal is the default.
func (h *ShareHandler) Resolve(c *gin.Context) {
	provider := c.DefaultQuery("provider", "paypal")

	checkoutURL, err := h.resolver.Resolve(c.Request.Context(), c.Param("token"), provider)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", gin.H{
		"checkout_url": checkoutURL,
		"provider":     provider,
	})
}
