package repository

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"Kendalinet-Layer/models"
	"Kendalinet-Layer/storage"
)

// MaxNotificationHistory caps the stored history; the oldest entries are evicted.
const MaxNotificationHistory = 100

var ErrNotificationNotFound = errors.New("notification not found")

// NotificationRepository keeps the newest-first history of new-device alerts.
type NotificationRepository struct {
	mu    sync.RWMutex
	store storage.Storage
	log   zerolog.Logger
	now   func() time.Time
	items []models.NotificationHistoryItem
}

func NewNotificationRepository(store storage.Storage, log zerolog.Logger) *NotificationRepository {
	r := &NotificationRepository{store: store, log: log, now: time.Now}
	loadJSON(store, storage.KeyNotificationHistory, log, &r.items)
	if len(r.items) > MaxNotificationHistory {
		r.items = r.items[:MaxNotificationHistory]
	}
	return r
}

// Add - Tambah notifikasi baru di posisi teratas dengan action pending.
func (r *NotificationRepository) Add(routerID, deviceName, deviceMAC, deviceIP string) (models.NotificationHistoryItem, error) {
	item := models.NotificationHistoryItem{
		ID:         uuid.NewString(),
		RouterID:   routerID,
		DeviceName: deviceName,
		DeviceMAC:  deviceMAC,
		DeviceIP:   deviceIP,
		Timestamp:  r.now().UTC(),
		Action:     models.ActionPending,
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.items) + 1
	if n > MaxNotificationHistory {
		n = MaxNotificationHistory
	}
	next := make([]models.NotificationHistoryItem, 0, n)
	next = append(next, item)
	next = append(next, r.items[:n-1]...)

	if err := saveJSON(r.store, storage.KeyNotificationHistory, next); err != nil {
		return models.NotificationHistoryItem{}, err
	}
	r.items = next
	return item, nil
}

func (r *NotificationRepository) GetAll() []models.NotificationHistoryItem {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.NotificationHistoryItem, len(r.items))
	copy(out, r.items)
	return out
}

// UpdateAction records the user's decision for one entry.
func (r *NotificationRepository) UpdateAction(id, action string) (models.NotificationHistoryItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := make([]models.NotificationHistoryItem, len(r.items))
	copy(next, r.items)

	for i := range next {
		if next[i].ID != id {
			continue
		}
		next[i].Action = action
		if err := saveJSON(r.store, storage.KeyNotificationHistory, next); err != nil {
			return models.NotificationHistoryItem{}, err
		}
		r.items = next
		return next[i], nil
	}
	return models.NotificationHistoryItem{}, ErrNotificationNotFound
}

func (r *NotificationRepository) Clear() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.store.Delete(storage.KeyNotificationHistory); err != nil {
		return err
	}
	r.items = nil
	return nil
}

// Between returns entries with start <= timestamp <= end.
func (r *NotificationRepository) Between(start, end time.Time) []models.NotificationHistoryItem {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.NotificationHistoryItem
	for _, it := range r.items {
		if !it.Timestamp.Before(start) && !it.Timestamp.After(end) {
			out = append(out, it)
		}
	}
	return out
}

// Stats counts entries since local midnight of now, the same midnight
// minus 7 days, and minus one month.
func (r *NotificationRepository) Stats(now time.Time) models.NotificationStats {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	week := today.AddDate(0, 0, -7)
	month := today.AddDate(0, -1, 0)

	r.mu.RLock()
	defer r.mu.RUnlock()

	s := models.NotificationStats{Total: len(r.items)}
	for _, it := range r.items {
		if !it.Timestamp.Before(today) {
			s.TodayCount++
		}
		if !it.Timestamp.Before(week) {
			s.WeekCount++
		}
		if !it.Timestamp.Before(month) {
			s.MonthCount++
		}
		switch it.Action {
		case models.ActionAllowed:
			s.AllowedCount++
		case models.ActionBlocked:
			s.BlockedCount++
		case models.ActionPending:
			s.PendingCount++
		}
	}
	return s
}
