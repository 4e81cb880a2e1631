package main

import (
	"database/sql"
	"time"

	"callops-platform/internal/httpapi"
	"callops-platform/internal/rbac"
	"callops-platform/pkg/utils"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, authMW gin.HandlerFunc, db *sql.DB) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		if err := utils.HealthCheck(c.Request.Context(), db, 2*time.Second); err != nil {
			c.JSON(503, gin.H{"status": "degraded"})
			return
		}
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Provider callbacks are unauthenticated; tenant attribution happens
	// inside the reconciler (header, then payload metadata).
	r.POST("/webhooks/voice/callback", h.VoiceCallback)

	// protected API group
	v1 := r.Group("/v1")

	// AUTH routes (token issuance) sit outside the access-token middleware.
	v1.POST("/auth/login", h.Login)

	v1.Use(authMW)
	{
		// CAMPAIGN routes
		campaigns := v1.Group("/campaigns")
		campaigns.Use(httpapi.RequireTenantAndAnyRole(rbac.RoleOwner, rbac.RoleAgent, rbac.RoleSuperAdmin)...)
		{
			campaigns.POST("/:campaign_id/start", h.StartCampaign)
			campaigns.POST("/:campaign_id/pause", h.PauseCampaign)
			campaigns.GET("/:campaign_id", h.GetCampaign)
		}

		// CALL routes
		calls := v1.Group("/calls")
		calls.Use(httpapi.RequireTenantAndAnyRole(rbac.RoleOwner, rbac.RoleAgent, rbac.RoleSuperAdmin)...)
		{
			calls.POST("/simulate", h.SimulateCall)
		}

		// CREDIT routes
		credits := v1.Group("/credits")
		credits.Use(httpapi.RequireTenantAndAnyRole(rbac.RoleOwner, rbac.RoleFinance, rbac.RoleSuperAdmin)...)
		{
			credits.GET("/balance", h.GetCreditBalance)
			credits.GET("/transactions", h.ListCreditTransactions)
		}

		// REPORT routes
		reports := v1.Group("/reports")
		reports.Use(httpapi.RequireTenantAndAnyRole(rbac.RoleOwner, rbac.RoleAnalyst, rbac.RoleFinance, rbac.RoleSuperAdmin)...)
		{
			reports.GET("/calls", h.CallsReport)
			reports.GET("/spend", h.SpendReport)
		}

		// ADMIN routes
		// Only owner/super_admin can access admin endpoints by default.
		// Hidden network_operator is intentionally NOT included.
		admin := v1.Group("/admin")
		admin.Use(httpapi.RequireTenantAndAnyRole(rbac.RoleOwner, rbac.RoleSuperAdmin)...)
		{
			admin.POST("/credits/recharge", h.AdminRecharge)
		}
	}
}
