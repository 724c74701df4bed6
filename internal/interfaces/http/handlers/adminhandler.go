package handlers

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"plexward/internal/application/admin"
	"plexward/internal/domain/sharelink"
	"plexward/internal/infrastructure/auth"
	"plexward/internal/shared/logger"
	"plexward/internal/shared/utils"
)

// AdminHandler exposes the operator API.
type AdminHandler struct {
	service       *admin.Service
	jwtService    *auth.JWTService
	sessionSecret string
	logger        logger.Interface
}

func NewAdminHandler(service *admin.Service, jwtService *auth.JWTService, sessionSecret string, log logger.Interface) *AdminHandler {
	return &AdminHandler{
		service:       service,
		jwtService:    jwtService,
		sessionSecret: sessionSecret,
		logger:        log,
	}
}

// Login exchanges the session secret for a bearer token.
func (h *AdminHandler) Login(c *gin.Context) {
	var req struct {
		Secret string `json:"secret" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "secret is required")
		return
	}

	if h.sessionSecret == "" {
		utils.ErrorResponse(c, http.StatusServiceUnavailable, "admin API is not configured")
		return
	}
	if subtle.ConstantTimeCompare([]byte(req.Secret), []byte(h.sessionSecret)) != 1 {
		utils.ErrorResponse(c, http.StatusUnauthorized, "invalid secret")
		return
	}

	token, expiresAt, err := h.jwtService.Generate("admin")
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", gin.H{
		"token":      token,
		"expires_at": expiresAt.Format(time.RFC3339),
	})
}

// ListDonors returns every donor with invite and payment details.
func (h *AdminHandler) ListDonors(c *gin.Context) {
	details, err := h.service.ListDonors(c.Request.Context())
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	resp := make([]donorDetailResponse, 0, len(details))
	for i := range details {
		resp = append(resp, toDonorDetailResponse(&details[i]))
	}
	utils.SuccessResponse(c, http.StatusOK, "", resp)
}

// GetDonor returns one donor.
func (h *AdminHandler) GetDonor(c *gin.Context) {
	id, ok := h.donorID(c)
	if !ok {
		return
	}

	detail, err := h.service.GetDonor(c.Request.Context(), id)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", toDonorDetailResponse(detail))
}

// RefreshDonor re-pulls the provider subscription and reconciles.
func (h *AdminHandler) RefreshDonor(c *gin.Context) {
	id, ok := h.donorID(c)
	if !ok {
		return
	}

	d, err := h.service.RefreshDonor(c.Request.Context(), id)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "donor refreshed", toDonorResponse(d))
}

// ForceInvite re-runs invite provisioning. An invite that was created but
// whose email failed surfaces as an error while the invite row survives.
func (h *AdminHandler) ForceInvite(c *gin.Context) {
	id, ok := h.donorID(c)
	if !ok {
		return
	}

	if err := h.service.ForceInvite(c.Request.Context(), id); err != nil {
		utils.AppErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "invite ensured", nil)
}

// DeleteDonor removes a donor and its dependent rows.
func (h *AdminHandler) DeleteDonor(c *gin.Context) {
	id, ok := h.donorID(c)
	if !ok {
		return
	}

	if err := h.service.DeleteDonor(c.Request.Context(), id); err != nil {
		utils.AppErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "donor deleted", nil)
}

// VerifyIntegration checks connectivity for one integration.
func (h *AdminHandler) VerifyIntegration(c *gin.Context) {
	var req struct {
		Recipient string `json:"recipient" validate:"omitempty,email"`
	}
	_ = c.ShouldBindJSON(&req)
	if err := utils.ValidateStruct(&req); err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	name := c.Param("integration")
	if err := h.service.VerifyIntegration(c.Request.Context(), name, req.Recipient); err != nil {
		utils.AppErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, name+" verified", nil)
}

// GetSettings returns one settings category with secrets masked.
func (h *AdminHandler) GetSettings(c *gin.Context) {
	values, err := h.service.GetSettings(c.Request.Context(), c.Param("category"))
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", values)
}

// UpdateSettings applies one settings category and reloads dependents.
func (h *AdminHandler) UpdateSettings(c *gin.Context) {
	var values map[string]string
	if err := c.ShouldBindJSON(&values); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "invalid settings payload")
		return
	}

	if err := h.service.UpdateSettings(c.Request.Context(), c.Param("category"), values); err != nil {
		utils.AppErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "settings updated", nil)
}

// ListEvents returns recent audit rows, optionally filtered by kind.
func (h *AdminHandler) ListEvents(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	events, err := h.service.ListEvents(c.Request.Context(), c.Query("kind"), limit)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	resp := make([]eventResponse, 0, len(events))
	for _, ev := range events {
		resp = append(resp, eventResponse{
			ID:        ev.ID,
			Kind:      ev.Kind,
			Payload:   ev.Payload,
			CreatedAt: ev.CreatedAt.Format(time.RFC3339),
		})
	}
	utils.SuccessResponse(c, http.StatusOK, "", resp)
}

// SendAnnouncement mails a markdown announcement to all active donors.
func (h *AdminHandler) SendAnnouncement(c *gin.Context) {
	var req struct {
		Subject string `json:"subject" validate:"required,max=200"`
		Body    string `json:"body" validate:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "invalid announcement payload")
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	sent, failed, err := h.service.SendAnnouncement(c.Request.Context(), req.Subject, req.Body)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "announcement sent", gin.H{
		"sent":   sent,
		"failed": failed,
	})
}

// CreateShareLink mints a bootstrap share link.
func (h *AdminHandler) CreateShareLink(c *gin.Context) {
	var req struct {
		DonorID       *uint  `json:"donor_id"`
		ProspectEmail string `json:"prospect_email" validate:"omitempty,email"`
		Note          string `json:"note" validate:"max=500"`
		ExpiresAt     string `json:"expires_at"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "invalid share link payload")
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	var expiresAt *time.Time
	if req.ExpiresAt != "" {
		parsed, err := time.Parse(time.RFC3339, req.ExpiresAt)
		if err != nil {
			utils.ErrorResponse(c, http.StatusBadRequest, "expires_at must be RFC3339")
			return
		}
		expiresAt = &parsed
	}

	link, err := h.service.CreateShareLink(c.Request.Context(), req.DonorID, req.ProspectEmail, req.Note, expiresAt)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusCreated, "share link created", toShareLinkResponse(link))
}

// ListShareLinks returns all share links.
func (h *AdminHandler) ListShareLinks(c *gin.Context) {
	links, err := h.service.ListShareLinks(c.Request.Context())
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	resp := make([]shareLinkResponse, 0, len(links))
	for _, link := range links {
		resp = append(resp, toShareLinkResponse(link))
	}
	utils.SuccessResponse(c, http.StatusOK, "", resp)
}

// DeleteShareLink removes a share link.
func (h *AdminHandler) DeleteShareLink(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "invalid share link id")
		return
	}

	if err := h.service.DeleteShareLink(c.Request.Context(), uint(id)); err != nil {
		utils.AppErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "share link deleted", nil)
}

func (h *AdminHandler) donorID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "invalid donor id")
		return 0, false
	}
	return uint(id), true
}

type eventResponse struct {
	ID        uint           `json:"id"`
	Kind      string         `json:"kind"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedAt string         `json:"created_at"`
}

type shareLinkResponse struct {
	ID            uint   `json:"id"`
	Token         string `json:"token"`
	DonorID       *uint  `json:"donor_id,omitempty"`
	ProspectEmail string `json:"prospect_email,omitempty"`
	Note          string `json:"note,omitempty"`
	ExpiresAt     string `json:"expires_at,omitempty"`
	RedeemedAt    string `json:"redeemed_at,omitempty"`
	CreatedAt     string `json:"created_at"`
}

func toShareLinkResponse(link *sharelink.ShareLink) shareLinkResponse {
	resp := shareLinkResponse{
		ID:            link.ID(),
		Token:         link.Token(),
		DonorID:       link.DonorID(),
		ProspectEmail: link.ProspectEmail(),
		Note:          link.Note(),
		CreatedAt:     link.CreatedAt().Format(time.RFC3339),
	}
	if link.ExpiresAt() != nil {
		resp.ExpiresAt = link.ExpiresAt().Format(time.RFC3339)
	}
	if link.RedeemedAt() != nil {
		resp.RedeemedAt = link.RedeemedAt().Format(time.RFC3339)
	}
	return resp
}
