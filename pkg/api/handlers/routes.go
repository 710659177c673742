package handlers

import (
	"github.com/labstack/echo/v4"
)

// Routes bundles the handlers mounted by Register
type Routes struct {
	Health    *HealthHandler
	Tracking  *TrackingHandler
	Leads     *LeadHandler
	Stats     *StatsHandler
	Campaigns *CampaignHandler
}

// Register mounts the public tracking endpoints and the /api group.
// Every /api route passes through the given middlewares, the API key gate
// among them.
func Register(e *echo.Echo, r Routes, apiMiddleware ...echo.MiddlewareFunc) {
	e.GET("/health", r.Health.Check)

	e.GET("/track/open/:sendId", r.Tracking.Open)
	e.GET("/track/click/:sendId", r.Tracking.Click)

	api := e.Group("/api", apiMiddleware...)

	api.GET("/leads", r.Leads.List)
	api.POST("/leads", r.Leads.Create)
	api.POST("/leads/bulk", r.Leads.BulkCreate)
	api.DELETE("/leads", r.Leads.Purge)
	api.GET("/leads/:id", r.Leads.Get)
	api.PUT("/leads/:id", r.Leads.Update)
	api.PATCH("/leads/:id", r.Leads.Patch)
	api.DELETE("/leads/:id", r.Leads.Delete)
	api.POST("/leads/:id/history", r.Leads.AddHistory)
	api.POST("/leads/:id/enrich", r.Leads.Enrich)
	api.GET("/phone/validate", r.Leads.ValidatePhone)

	api.GET("/stats", r.Stats.Get)
	api.POST("/stats/rebuild", r.Stats.Rebuild)

	api.GET("/accounts", r.Campaigns.ListAccounts)
	api.POST("/accounts", r.Campaigns.CreateAccount)
	api.GET("/accounts/:id", r.Campaigns.GetAccount)
	api.PUT("/accounts/:id", r.Campaigns.UpdateAccount)
	api.DELETE("/accounts/:id", r.Campaigns.DeleteAccount)
	api.POST("/accounts/:id/test", r.Campaigns.VerifyAccount)

	api.GET("/templates", r.Campaigns.ListTemplates)
	api.POST("/templates", r.Campaigns.CreateTemplate)
	api.GET("/templates/:id", r.Campaigns.GetTemplate)
	api.PUT("/templates/:id", r.Campaigns.UpdateTemplate)
	api.DELETE("/templates/:id", r.Campaigns.DeleteTemplate)
	api.POST("/templates/:id/preview", r.Campaigns.PreviewEmail)

	api.GET("/campaigns", r.Campaigns.ListCampaigns)
	api.POST("/campaigns", r.Campaigns.CreateCampaign)
	api.POST("/campaigns/process-queue", r.Campaigns.ProcessQueue)
	api.GET("/campaigns/:id", r.Campaigns.GetCampaign)
	api.PUT("/campaigns/:id", r.Campaigns.UpdateCampaign)
	api.DELETE("/campaigns/:id", r.Campaigns.DeleteCampaign)
	api.GET("/campaigns/:id/preview", r.Campaigns.Preview)
	api.POST("/campaigns/:id/start", r.Campaigns.Start)
	api.POST("/campaigns/:id/pause", r.Campaigns.Pause)
	api.POST("/campaigns/:id/resume", r.Campaigns.Resume)
	api.GET("/campaigns/:id/sends", r.Campaigns.ListSends)

	api.GET("/sends/:id", r.Campaigns.GetSend)
	api.GET("/sends/:id/events", r.Campaigns.ListEvents)
	api.POST("/sends/:id/status", r.Campaigns.UpdateSendStatus)
	api.POST("/sends/:id/events", r.Campaigns.RecordEvent)
}
