package handlers

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"Kendalinet-Layer/models"
	"Kendalinet-Layer/repository"
	"Kendalinet-Layer/services"
)

type RouterHandler struct {
	repo   *repository.RouterRepository
	known  *repository.KnownDeviceRepository
	poller *services.StatusPoller
	log    zerolog.Logger
}

func NewRouterHandler(repo *repository.RouterRepository, known *repository.KnownDeviceRepository, poller *services.StatusPoller, log zerolog.Logger) *RouterHandler {
	return &RouterHandler{repo: repo, known: known, poller: poller, log: log}
}

func redactAll(list []models.RouterProfile) []models.RouterProfile {
	out := make([]models.RouterProfile, len(list))
	for i, p := range list {
		out[i] = p.Redacted()
	}
	return out
}

// CreateRouter - POST /api/routers
func (h *RouterHandler) CreateRouter(c *gin.Context) {
	var req models.RouterCreateRequest
	if !bind(c, &req) {
		return
	}

	router, err := h.repo.Add(req)
	if err != nil {
		fail(c, err)
		return
	}

	h.log.Info().Str("router_id", router.ID).Str("ip", router.IPAddress).Msg("Router added")
	ok(c, "Router berhasil ditambahkan", router.Redacted())
}

// GetAllRouters - GET /api/routers
func (h *RouterHandler) GetAllRouters(c *gin.Context) {
	ok(c, "", redactAll(h.repo.GetAll()))
}

// GetRouterByID - GET /api/routers/:id
func (h *RouterHandler) GetRouterByID(c *gin.Context) {
	router, err := h.repo.GetByID(c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, "", router.Redacted())
}

// GetActiveRouter - GET /api/routers/active
func (h *RouterHandler) GetActiveRouter(c *gin.Context) {
	router, found := h.repo.GetActive()
	if !found {
		fail(c, services.ErrNoActiveRouter)
		return
	}
	ok(c, "", router.Redacted())
}

// UpdateRouter - PUT /api/routers/:id
func (h *RouterHandler) UpdateRouter(c *gin.Context) {
	var req models.RouterUpdateRequest
	if !bind(c, &req) {
		return
	}

	router, err := h.repo.Update(c.Param("id"), req)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, "Router berhasil diupdate", router.Redacted())
}

// SetActiveRouter - PATCH /api/routers/:id/active
func (h *RouterHandler) SetActiveRouter(c *gin.Context) {
	router, err := h.repo.SwitchActive(c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}

	h.log.Info().Str("router_id", router.ID).Msg("Active router switched")
	ok(c, "Router berhasil diaktifkan", router.Redacted())
}

// DeleteRouter - DELETE /api/routers/:id
func (h *RouterHandler) DeleteRouter(c *gin.Context) {
	id := c.Param("id")
	if err := h.repo.Delete(id); err != nil {
		fail(c, err)
		return
	}
	if h.known != nil {
		if err := h.known.Forget(id); err != nil {
			h.log.Warn().Err(err).Str("router_id", id).Msg("Failed to forget known devices")
		}
	}

	h.log.Info().Str("router_id", id).Msg("Router deleted")
	ok(c, "Router berhasil dihapus", nil)
}

type statusResponse struct {
	Statuses []models.RouterStatus `json:"statuses"`
	LastPoll *time.Time            `json:"last_poll,omitempty"`
}

func (h *RouterHandler) statusPayload() statusResponse {
	resp := statusResponse{Statuses: h.poller.Statuses()}
	if last := h.poller.LastPoll(); !last.IsZero() {
		resp.LastPoll = &last
	}
	return resp
}

// GetRouterStatuses - GET /api/routers/status
func (h *RouterHandler) GetRouterStatuses(c *gin.Context) {
	ok(c, "", h.statusPayload())
}

// CheckRouterStatuses - POST /api/routers/status/check
func (h *RouterHandler) CheckRouterStatuses(c *gin.Context) {
	// A client hanging up must not turn into offline verdicts.
	h.poller.PollOnce(context.WithoutCancel(c.Request.Context()))
	ok(c, "Status router berhasil diperbarui", h.statusPayload())
}

// BackupRouters - GET /api/routers/backup?include_passwords=true
func (h *RouterHandler) BackupRouters(c *gin.Context) {
	withPasswords, _ := strconv.ParseBool(c.Query("include_passwords"))
	backup := h.repo.Export(withPasswords)
	ok(c, fmt.Sprintf("%d konfigurasi router berhasil diekspor", len(backup.Routers)), backup)
}

// RestoreRouters - POST /api/routers/restore. Replaces the whole registry.
func (h *RouterHandler) RestoreRouters(c *gin.Context) {
	var req models.RouterBackup
	if !bind(c, &req) {
		return
	}

	previous := h.repo.GetAll()
	restored, err := h.repo.Restore(req.Routers)
	if err != nil {
		fail(c, err)
		return
	}
	if h.known != nil {
		for _, p := range previous {
			if err := h.known.Forget(p.ID); err != nil {
				h.log.Warn().Err(err).Str("router_id", p.ID).Msg("Failed to forget known devices")
			}
		}
	}

	ok(c, fmt.Sprintf("%d konfigurasi router berhasil dipulihkan", len(restored)), redactAll(restored))
}
