package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"crudadmin/internal/models"
	"crudadmin/internal/registry"
	"crudadmin/internal/services"
)

// DashboardHandler serves the admin landing page data
type DashboardHandler struct {
	registry    *registry.Registry
	sessions    services.SessionServicer
	trackEvents bool
}

// NewDashboardHandler creates a new DashboardHandler
func NewDashboardHandler(reg *registry.Registry, sessions services.SessionServicer, trackEvents bool) *DashboardHandler {
	return &DashboardHandler{registry: reg, sessions: sessions, trackEvents: trackEvents}
}

// ModelCount is a registered model with its row count
type ModelCount struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// Dashboard returns per-model counts and session totals
// @Summary     Dashboard
// @Tags        dashboard
// @Produce     json
// @Success     200 {object} map[string]interface{}
// @Router      / [get]
func (h *DashboardHandler) Dashboard(c *gin.Context) {
	p, err := currentPrincipal(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	ctx := c.Request.Context()

	counts := []ModelCount{}
	for _, v := range h.registry.Views() {
		n, err := v.Count(ctx)
		if err != nil {
			respondWithError(c, err)
			return
		}
		counts = append(counts, ModelCount{Name: v.Name(), Count: n})
	}

	total, active, err := h.sessions.CountSessions(ctx)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":         models.ProjectAdminUser(p.User),
		"models":       counts,
		"sessions":     gin.H{"total": total, "active": active},
		"track_events": h.trackEvents,
	})
}
