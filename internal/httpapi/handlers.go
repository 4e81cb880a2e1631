package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"callops-platform/internal/audit"
	"callops-platform/internal/auth"
	"callops-platform/internal/calls"
	"callops-platform/internal/campaign"
	"callops-platform/internal/credit"
	"callops-platform/internal/provider"
	"callops-platform/internal/rbac"
	"callops-platform/internal/reconcile"
	"callops-platform/internal/reporting"
	"callops-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

const headerTenantID = "X-Tenant-Id"

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

type Handlers struct {
	Auth      *auth.Manager
	Credits   *credit.Service
	Campaigns *campaign.Service
	Reconcile *reconcile.Service
	Reporting *reporting.Service
	Audit     *audit.Service

	// Single-call initiation path.
	Voice   provider.VoiceProvider
	Agents  campaign.AgentResolver
	Gate    campaign.CreditGate
	Reserve campaign.ReserveEstimator
	CallLog calls.Store
}

// --- Auth ---

type loginRequest struct {
	UserID   string `json:"user_id"`
	TenantID string `json:"tenant_id"`
	Role     string `json:"role"`
}

// Login issues a JWT token pair.
//
// NOTE: This is a skeleton-only endpoint. Real systems must validate credentials.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" || req.TenantID == "" || req.Role == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id, tenant_id, role required"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.UserID, req.TenantID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

// --- Webhooks ---

// VoiceCallback receives provider call-status callbacks. Unattributable
// payloads get a 4xx; everything else is acked 200 so the provider stops
// redelivering.
func (h Handlers) VoiceCallback(c *gin.Context) {
	var payload provider.WebhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	err := h.Reconcile.HandleCallback(c.Request.Context(), c.GetHeader(headerTenantID), payload)
	if err != nil {
		if errors.Is(err, reconcile.ErrUnidentifiedTenant) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "tenant could not be identified"})
			return
		}
		logger.FromGin(c).Error("callback handling failed", "error", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "callback handling failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// --- Campaigns ---

func (h Handlers) StartCampaign(c *gin.Context) {
	tenantID, err := auth.TenantID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "tenant_id required"})
		return
	}
	campaignID := c.Param("campaign_id")

	res, err := h.Campaigns.Start(c.Request.Context(), tenantID, campaignID)
	if err != nil {
		switch {
		case errors.Is(err, campaign.ErrNotFound):
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, campaign.ErrAlreadyRunning):
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "campaign already running"})
		case errors.Is(err, campaign.ErrInsufficientCredits):
			c.AbortWithStatusJSON(http.StatusPaymentRequired, gin.H{"error": "insufficient credits"})
		case errors.Is(err, campaign.ErrNoContacts):
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "contact list is empty"})
		default:
			logger.FromGin(c).Error("campaign start failed", "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "campaign start failed"})
		}
		return
	}

	h.auditCampaign(c, tenantID, campaignID, "start")
	c.JSON(http.StatusOK, res)
}

func (h Handlers) PauseCampaign(c *gin.Context) {
	tenantID, err := auth.TenantID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "tenant_id required"})
		return
	}
	campaignID := c.Param("campaign_id")

	if err := h.Campaigns.Pause(c.Request.Context(), tenantID, campaignID); err != nil {
		switch {
		case errors.Is(err, campaign.ErrNotFound):
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, campaign.ErrInvalidTransition):
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "campaign is not running"})
		default:
			logger.FromGin(c).Error("campaign pause failed", "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "campaign pause failed"})
		}
		return
	}

	h.auditCampaign(c, tenantID, campaignID, "pause")
	c.JSON(http.StatusOK, gin.H{"status": "paused"})
}

func (h Handlers) GetCampaign(c *gin.Context) {
	tenantID, err := auth.TenantID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "tenant_id required"})
		return
	}

	cmp, err := h.Campaigns.Get(c.Request.Context(), tenantID, c.Param("campaign_id"))
	if err != nil {
		if errors.Is(err, campaign.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		logger.FromGin(c).Error("campaign lookup failed", "error", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "campaign lookup failed"})
		return
	}
	c.JSON(http.StatusOK, cmp)
}

func (h Handlers) auditCampaign(c *gin.Context, tenantID, campaignID, action string) {
	if h.Audit == nil {
		return
	}
	userID, _ := auth.UserID(c.Request.Context())
	if err := h.Audit.LogCampaignAction(c.Request.Context(), tenantID, userID, c.ClientIP(), campaignID, action); err != nil {
		logger.FromGin(c).Warn("audit append failed", "error", err)
	}
}

// --- Calls ---

type simulateCallRequest struct {
	AgentID string `json:"agent_id"`
	Phone   string `json:"phone"`
}

// SimulateCall places a single test call outside any campaign. It walks the
// same gate and provider path as campaign dispatch, but tags the record as
// a test call.
func (h Handlers) SimulateCall(c *gin.Context) {
	tenantID, err := auth.TenantID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "tenant_id required"})
		return
	}

	var req simulateCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.AgentID == "" || req.Phone == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "agent_id and phone required"})
		return
	}

	reserve, err := h.Reserve.EstimatePerCallReserve(c.Request.Context(), tenantID)
	if err != nil {
		logger.FromGin(c).Error("reserve estimate failed", "error", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "reserve estimate failed"})
		return
	}
	funded, err := h.Gate.HasMinimumBalance(c.Request.Context(), tenantID, reserve)
	if err != nil {
		logger.FromGin(c).Error("balance check failed", "error", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "balance check failed"})
		return
	}
	if !funded {
		c.AbortWithStatusJSON(http.StatusPaymentRequired, gin.H{"error": "insufficient credits"})
		return
	}

	providerAgentID, err := h.Agents.ProviderAgentID(c.Request.Context(), tenantID, req.AgentID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "agent not found"})
		return
	}

	res, err := h.Voice.InitiateCall(c.Request.Context(), provider.CallRequest{
		TenantID:       tenantID,
		AgentID:        providerAgentID,
		RecipientPhone: req.Phone,
	})
	if err != nil {
		logger.FromGin(c).Warn("test call initiation failed", "error", err)
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "call initiation failed"})
		return
	}

	if _, err := h.CallLog.Upsert(c.Request.Context(), calls.UpsertParams{
		TenantID:       tenantID,
		Phone:          req.Phone,
		ExternalCallID: res.ExternalCallID,
		Status:         calls.CallStatusTestCall,
	}); err != nil {
		logger.FromGin(c).Error("record test call failed", "error", err)
	}

	c.JSON(http.StatusOK, gin.H{"external_call_id": res.ExternalCallID, "status": "initiated"})
}

// --- Credits ---

func (h Handlers) GetCreditBalance(c *gin.Context) {
	tenantID, err := auth.TenantID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "tenant_id required"})
		return
	}

	w, err := h.Credits.GetBalance(c.Request.Context(), tenantID)
	if err != nil {
		if errors.Is(err, credit.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "wallet not found"})
			return
		}
		logger.FromGin(c).Error("balance lookup failed", "error", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "balance lookup failed"})
		return
	}
	c.JSON(http.StatusOK, w)
}

func (h Handlers) ListCreditTransactions(c *gin.Context) {
	tenantID, err := auth.TenantID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "tenant_id required"})
		return
	}

	limit := 0
	if v := c.Query("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}
	txns, err := h.Credits.Transactions(c.Request.Context(), tenantID, limit)
	if err != nil {
		logger.FromGin(c).Error("transaction listing failed", "error", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "transaction listing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txns})
}

// --- Admin ---

type adminRechargeRequest struct {
	TenantID    string `json:"tenant_id"`
	AmountMinor int64  `json:"amount_minor"`
	Reason      string `json:"reason"`
}

// AdminRecharge performs an admin-only wallet credit.
// RBAC: owner or super_admin. Only super_admin may target another tenant.
func (h Handlers) AdminRecharge(c *gin.Context) {
	callerTenant, err := auth.TenantID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "tenant_id required"})
		return
	}
	userID, _ := auth.UserID(c.Request.Context())
	role, _ := auth.Role(c.Request.Context())

	var req adminRechargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	target := callerTenant
	if req.TenantID != "" && req.TenantID != callerTenant {
		if !rbac.IsSuperAdmin(role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "cross-tenant recharge requires super_admin"})
			return
		}
		target = req.TenantID
	}

	balance, err := h.Credits.Credit(c.Request.Context(), target, req.AmountMinor, req.Reason)
	if err != nil {
		if errors.Is(err, credit.ErrInvalidArgument) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "amount_minor must be positive"})
			return
		}
		logger.FromGin(c).Error("recharge failed", "error", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "recharge failed"})
		return
	}

	if h.Audit != nil {
		if err := h.Audit.LogAdminCredit(c.Request.Context(), target, userID, role, c.ClientIP(), req.AmountMinor, req.Reason); err != nil {
			logger.FromGin(c).Warn("audit append failed", "error", err)
		}
	}
	c.JSON(http.StatusOK, gin.H{"balance_minor": balance})
}

// --- Reports ---

func (h Handlers) CallsReport(c *gin.Context) {
	tenantID, err := auth.TenantID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "tenant_id required"})
		return
	}
	rng, err := parseRange(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	out, err := h.Reporting.CallsSummary(c.Request.Context(), reporting.CallsSummaryRequest{
		TenantID: tenantID,
		Range:    rng,
	})
	if err != nil {
		if errors.Is(err, reporting.ErrInvalidRequest) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid range"})
			return
		}
		logger.FromGin(c).Error("calls report failed", "error", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "calls report failed"})
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) SpendReport(c *gin.Context) {
	tenantID, err := auth.TenantID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "tenant_id required"})
		return
	}
	rng, err := parseRange(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	out, err := h.Reporting.SpendSummary(c.Request.Context(), reporting.SpendSummaryRequest{
		TenantID: tenantID,
		Range:    rng,
	})
	if err != nil {
		if errors.Is(err, reporting.ErrInvalidRequest) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid range"})
			return
		}
		logger.FromGin(c).Error("spend report failed", "error", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "spend report failed"})
		return
	}
	c.JSON(http.StatusOK, out)
}

func parseRange(c *gin.Context) (reporting.TimeRange, error) {
	from, err := time.Parse(time.RFC3339, c.Query("from"))
	if err != nil {
		return reporting.TimeRange{}, errors.New("from must be RFC3339")
	}
	to, err := time.Parse(time.RFC3339, c.Query("to"))
	if err != nil {
		return reporting.TimeRange{}, errors.New("to must be RFC3339")
	}
	return reporting.TimeRange{From: from, To: to}, nil
}

// Convenience middleware bundles.

func RequireTenantAndAnyRole(roles ...string) []gin.HandlerFunc {
	return []gin.HandlerFunc{rbac.RequireTenant(), rbac.RequireAnyRole(roles...)}
}
