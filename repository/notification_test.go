package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Kendalinet-Layer/models"
	"Kendalinet-Layer/storage"
)

func TestNotificationRepository_AddNewestFirst(t *testing.T) {
	repo := NewNotificationRepository(storage.NewMemoryStorage(), zerolog.Nop())

	first, err := repo.Add("r1", "Laptop", "AA:AA:AA:AA:AA:01", "192.168.2.10")
	require.NoError(t, err)
	second, err := repo.Add("r1", "Phone", "AA:AA:AA:AA:AA:02", "192.168.2.11")
	require.NoError(t, err)

	all := repo.GetAll()
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID)
	assert.Equal(t, first.ID, all[1].ID)
	assert.Equal(t, models.ActionPending, all[0].Action)
}

func TestNotificationRepository_EvictsOldestAtCap(t *testing.T) {
	store := storage.NewMemoryStorage()
	repo := NewNotificationRepository(store, zerolog.Nop())

	var oldest, secondOldest string
	for i := 0; i < MaxNotificationHistory; i++ {
		it, err := repo.Add("r1", fmt.Sprintf("dev-%d", i), fmt.Sprintf("mac-%d", i), "")
		require.NoError(t, err)
		if i == 0 {
			oldest = it.ID
		}
		if i == 1 {
			secondOldest = it.ID
		}
	}
	require.Len(t, repo.GetAll(), MaxNotificationHistory)

	newest, err := repo.Add("r1", "dev-new", "mac-new", "")
	require.NoError(t, err)

	all := repo.GetAll()
	assert.Len(t, all, MaxNotificationHistory)
	assert.Equal(t, newest.ID, all[0].ID)
	assert.Equal(t, secondOldest, all[len(all)-1].ID)
	for _, it := range all {
		assert.NotEqual(t, oldest, it.ID)
	}

	reloaded := NewNotificationRepository(store, zerolog.Nop())
	assert.Len(t, reloaded.GetAll(), MaxNotificationHistory)
}

func TestNotificationRepository_UpdateActionAndClear(t *testing.T) {
	repo := NewNotificationRepository(storage.NewMemoryStorage(), zerolog.Nop())
	it, err := repo.Add("r1", "Laptop", "mac", "ip")
	require.NoError(t, err)

	updated, err := repo.UpdateAction(it.ID, models.ActionBlocked)
	require.NoError(t, err)
	assert.Equal(t, models.ActionBlocked, updated.Action)
	assert.Equal(t, models.ActionBlocked, repo.GetAll()[0].Action)

	_, err = repo.UpdateAction("missing", models.ActionAllowed)
	assert.ErrorIs(t, err, ErrNotificationNotFound)

	require.NoError(t, repo.Clear())
	assert.Empty(t, repo.GetAll())
}

func TestNotificationRepository_StatsAndBetween(t *testing.T) {
	loc := time.UTC
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, loc)
	repo := NewNotificationRepository(storage.NewMemoryStorage(), zerolog.Nop())

	stamps := []time.Time{
		now.AddDate(0, 0, -20),  // month only
		now.AddDate(0, 0, -3),   // week
		now.Add(-1 * time.Hour), // today
	}
	var ids []string
	for _, ts := range stamps {
		ts := ts
		repo.now = func() time.Time { return ts }
		it, err := repo.Add("r1", "d", "m", "i")
		require.NoError(t, err)
		ids = append(ids, it.ID)
	}
	_, err := repo.UpdateAction(ids[0], models.ActionAllowed)
	require.NoError(t, err)
	_, err = repo.UpdateAction(ids[1], models.ActionBlocked)
	require.NoError(t, err)

	s := repo.Stats(now)
	assert.Equal(t, models.NotificationStats{
		Total:        3,
		TodayCount:   1,
		WeekCount:    2,
		MonthCount:   3,
		AllowedCount: 1,
		BlockedCount: 1,
		PendingCount: 1,
	}, s)

	got := repo.Between(now.AddDate(0, 0, -5), now)
	require.Len(t, got, 2)
}

func TestNotificationRepository_MalformedStorage(t *testing.T) {
	store := storage.NewMemoryStorage()
	require.NoError(t, store.Save(storage.KeyNotificationHistory, []byte("[[[")))

	repo := NewNotificationRepository(store, zerolog.Nop())
	assert.Empty(t, repo.GetAll())
}
