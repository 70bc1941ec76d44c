package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"Kendalinet-Layer/models"
	"Kendalinet-Layer/services"
)

// DashboardHandler serves the aggregate view of the active router.
type DashboardHandler struct {
	client *services.AggregateClient
	// base outlives single requests; auto-refresh loops run under it.
	base context.Context
}

func NewDashboardHandler(base context.Context, client *services.AggregateClient) *DashboardHandler {
	return &DashboardHandler{client: client, base: base}
}

type dashboardResponse struct {
	models.DashboardSnapshot
	AutoRefresh bool `json:"auto_refresh"`
}

// GetDashboard - GET /api/dashboard
func (h *DashboardHandler) GetDashboard(c *gin.Context) {
	ok(c, "", dashboardResponse{
		DashboardSnapshot: h.client.Snapshot(),
		AutoRefresh:       h.client.AutoRefreshEnabled(),
	})
}

// RefreshDashboard - POST /api/dashboard/refresh
func (h *DashboardHandler) RefreshDashboard(c *gin.Context) {
	snap, err := h.client.RefreshAll(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, "Data berhasil diperbarui", dashboardResponse{
		DashboardSnapshot: snap,
		AutoRefresh:       h.client.AutoRefreshEnabled(),
	})
}

type autoRefreshRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// SetAutoRefresh - PUT /api/dashboard/auto-refresh
func (h *DashboardHandler) SetAutoRefresh(c *gin.Context) {
	var req autoRefreshRequest
	if !bind(c, &req) {
		return
	}

	if *req.Enabled {
		h.client.StartAutoRefresh(h.base)
		ok(c, "Auto-refresh diaktifkan", gin.H{"enabled": true})
		return
	}
	h.client.StopAutoRefresh()
	ok(c, "Auto-refresh dinonaktifkan", gin.H{"enabled": false})
}

// GetBoardInfo - GET /api/board
func (h *DashboardHandler) GetBoardInfo(c *gin.Context) {
	board, err := h.client.BoardInfo(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, "", board)
}

// GetWanStatus - GET /api/wan
func (h *DashboardHandler) GetWanStatus(c *gin.Context) {
	wan, err := h.client.WanStatus(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, "", wan)
}

// SaveWifi - POST /api/wifi
func (h *DashboardHandler) SaveWifi(c *gin.Context) {
	var req models.WifiSaveRequest
	if !bind(c, &req) {
		return
	}

	res, err := h.client.SaveWifi(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	if !res.Success {
		c.AbortWithStatusJSON(http.StatusBadGateway, models.ApiResponse{
			Success: false,
			Error:   res.Error,
			Data:    res,
		})
		return
	}
	ok(c, "Konfigurasi WiFi berhasil disimpan", res)
}
