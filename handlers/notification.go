package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"Kendalinet-Layer/models"
	"Kendalinet-Layer/repository"
	"Kendalinet-Layer/validation"
)

type NotificationHandler struct {
	repo *repository.NotificationRepository
}

func NewNotificationHandler(repo *repository.NotificationRepository) *NotificationHandler {
	return &NotificationHandler{repo: repo}
}

func parseTimeParam(c *gin.Context, name string, fallback time.Time) (time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, validation.New(name, name+" must be an RFC 3339 timestamp")
	}
	return t, nil
}

// GetNotifications - GET /api/notifications?start=&end=
func (h *NotificationHandler) GetNotifications(c *gin.Context) {
	if c.Query("start") == "" && c.Query("end") == "" {
		ok(c, "", h.repo.GetAll())
		return
	}

	start, err := parseTimeParam(c, "start", time.Time{})
	if err != nil {
		fail(c, err)
		return
	}
	end, err := parseTimeParam(c, "end", time.Now())
	if err != nil {
		fail(c, err)
		return
	}
	if end.Before(start) {
		fail(c, validation.New("end", "end must not be before start"))
		return
	}
	ok(c, "", h.repo.Between(start, end))
}

// GetNotificationStats - GET /api/notifications/stats
func (h *NotificationHandler) GetNotificationStats(c *gin.Context) {
	ok(c, "", h.repo.Stats(time.Now()))
}

// UpdateNotificationAction - PATCH /api/notifications/:id
func (h *NotificationHandler) UpdateNotificationAction(c *gin.Context) {
	var req models.NotificationActionRequest
	if !bind(c, &req) {
		return
	}

	item, err := h.repo.UpdateAction(c.Param("id"), req.Action)
	if err != nil {
		fail(c, err)
		return
	}

	msg := "Perangkat diizinkan"
	if req.Action == models.ActionBlocked {
		msg = "Perangkat diblokir"
	}
	ok(c, msg, item)
}

// ClearNotifications - DELETE /api/notifications
func (h *NotificationHandler) ClearNotifications(c *gin.Context) {
	if err := h.repo.Clear(); err != nil {
		fail(c, err)
		return
	}
	ok(c, "Riwayat notifikasi dihapus", nil)
}
