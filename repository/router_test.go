package repository

import (
	"errors"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Kendalinet-Layer/credentials"
	"Kendalinet-Layer/models"
	"Kendalinet-Layer/storage"
	"Kendalinet-Layer/validation"
)

type failingStorage struct {
	*storage.MemoryStorage
	failSave bool
}

func (f *failingStorage) Save(key string, data []byte) error {
	if f.failSave {
		return errors.New("disk full")
	}
	return f.MemoryStorage.Save(key, data)
}

func newRouterRepo(t *testing.T, store storage.Storage, opts RouterRepositoryOptions) *RouterRepository {
	t.Helper()
	repo, err := NewRouterRepository(store, zerolog.Nop(), opts)
	require.NoError(t, err)
	return repo
}

func req(name, ip string) models.RouterCreateRequest {
	return models.RouterCreateRequest{Name: name, IPAddress: ip, Username: "root"}
}

func activeCount(list []models.RouterProfile) int {
	n := 0
	for _, p := range list {
		if p.IsActive {
			n++
		}
	}
	return n
}

func TestRouterRepository_AddFirstIsActive(t *testing.T) {
	store := storage.NewMemoryStorage()
	repo := newRouterRepo(t, store, RouterRepositoryOptions{})

	p, err := repo.Add(models.RouterCreateRequest{Name: "R1", IPAddress: "192.168.2.1", Username: "root", Password: ""})
	require.NoError(t, err)

	all := repo.GetAll()
	require.Len(t, all, 1)
	assert.True(t, all[0].IsActive)
	assert.Equal(t, p.ID, all[0].ID)
	assert.Equal(t, models.StatusUnknown, all[0].Status)
	assert.NotEmpty(t, p.ID)

	second, err := repo.Add(req("R2", "192.168.3.1"))
	require.NoError(t, err)
	assert.False(t, second.IsActive)
	assert.NotEqual(t, p.ID, second.ID)
	assert.Equal(t, 1, activeCount(repo.GetAll()))

	data, err := store.Load(storage.KeyRouters)
	require.NoError(t, err)
	var persisted []models.RouterProfile
	require.NoError(t, json.Unmarshal(data, &persisted))
	assert.Len(t, persisted, 2)
}

func TestRouterRepository_SwitchActive(t *testing.T) {
	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	repo := newRouterRepo(t, storage.NewMemoryStorage(), RouterRepositoryOptions{Now: func() time.Time { return fixed }})

	first, err := repo.Add(req("R1", "192.168.2.1"))
	require.NoError(t, err)
	second, err := repo.Add(req("R2", "192.168.3.1"))
	require.NoError(t, err)

	switched, err := repo.SwitchActive(second.ID)
	require.NoError(t, err)
	assert.True(t, switched.IsActive)
	require.NotNil(t, switched.LastConnected)
	assert.Equal(t, fixed, *switched.LastConnected)

	got1, _ := repo.GetByID(first.ID)
	got2, _ := repo.GetByID(second.ID)
	assert.False(t, got1.IsActive)
	assert.Nil(t, got1.LastConnected)
	assert.True(t, got2.IsActive)

	active, ok := repo.GetActive()
	require.True(t, ok)
	assert.Equal(t, second.ID, active.ID)
}

func TestRouterRepository_SwitchActiveIdempotent(t *testing.T) {
	calls := 0
	repo := newRouterRepo(t, storage.NewMemoryStorage(), RouterRepositoryOptions{Now: func() time.Time {
		calls++
		return time.Unix(int64(1000*calls), 0)
	}})

	_, err := repo.Add(req("R1", "10.0.0.1"))
	require.NoError(t, err)
	second, err := repo.Add(req("R2", "10.0.0.2"))
	require.NoError(t, err)

	_, err = repo.SwitchActive(second.ID)
	require.NoError(t, err)
	once := repo.GetAll()

	_, err = repo.SwitchActive(second.ID)
	require.NoError(t, err)
	assert.Equal(t, once, repo.GetAll())
}

func TestRouterRepository_SwitchUnknownChangesNothing(t *testing.T) {
	store := storage.NewMemoryStorage()
	repo := newRouterRepo(t, store, RouterRepositoryOptions{})
	_, err := repo.Add(req("R1", "10.0.0.1"))
	require.NoError(t, err)
	before := repo.GetAll()
	raw, _ := store.Load(storage.KeyRouters)

	_, err = repo.SwitchActive("missing")
	assert.ErrorIs(t, err, ErrRouterNotFound)
	assert.Equal(t, before, repo.GetAll())

	after, _ := store.Load(storage.KeyRouters)
	assert.Equal(t, raw, after)
}

func TestRouterRepository_DeleteActiveTransfers(t *testing.T) {
	repo := newRouterRepo(t, storage.NewMemoryStorage(), RouterRepositoryOptions{})
	a, _ := repo.Add(req("A", "10.0.0.1"))
	b, _ := repo.Add(req("B", "10.0.0.2"))
	c, _ := repo.Add(req("C", "10.0.0.3"))

	_, err := repo.SwitchActive(c.ID)
	require.NoError(t, err)
	require.NoError(t, repo.Delete(c.ID))

	all := repo.GetAll()
	require.Len(t, all, 2)
	assert.Equal(t, a.ID, all[0].ID)
	assert.True(t, all[0].IsActive)
	assert.Equal(t, b.ID, all[1].ID)
	assert.False(t, all[1].IsActive)
}

func TestRouterRepository_DeleteInactiveKeepsActive(t *testing.T) {
	repo := newRouterRepo(t, storage.NewMemoryStorage(), RouterRepositoryOptions{})
	a, _ := repo.Add(req("A", "10.0.0.1"))
	b, _ := repo.Add(req("B", "10.0.0.2"))

	require.NoError(t, repo.Delete(b.ID))
	active, ok := repo.GetActive()
	require.True(t, ok)
	assert.Equal(t, a.ID, active.ID)
}

func TestRouterRepository_DeleteOnly(t *testing.T) {
	repo := newRouterRepo(t, storage.NewMemoryStorage(), RouterRepositoryOptions{})
	a, _ := repo.Add(req("A", "10.0.0.1"))

	require.NoError(t, repo.Delete(a.ID))
	assert.Empty(t, repo.GetAll())
	_, ok := repo.GetActive()
	assert.False(t, ok)

	assert.ErrorIs(t, repo.Delete(a.ID), ErrRouterNotFound)
}

func TestRouterRepository_ExactlyOneActive(t *testing.T) {
	repo := newRouterRepo(t, storage.NewMemoryStorage(), RouterRepositoryOptions{})

	var ids []string
	for i, ip := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3", "10.0.0.4"} {
		p, err := repo.Add(req(string(rune('A'+i)), ip))
		require.NoError(t, err)
		ids = append(ids, p.ID)
		assert.Equal(t, 1, activeCount(repo.GetAll()))
	}

	steps := []func(){
		func() { _, _ = repo.SwitchActive(ids[2]) },
		func() { _ = repo.Delete(ids[0]) },
		func() { _ = repo.Delete(ids[2]) },
		func() { _, _ = repo.SwitchActive(ids[3]) },
		func() { _, _ = repo.Update(ids[3], models.RouterUpdateRequest{}) },
		func() { _ = repo.Delete(ids[1]) },
	}
	for _, step := range steps {
		step()
		assert.Equal(t, 1, activeCount(repo.GetAll()))
	}

	require.NoError(t, repo.Delete(ids[3]))
	assert.Equal(t, 0, activeCount(repo.GetAll()))
}

func TestRouterRepository_Update(t *testing.T) {
	repo := newRouterRepo(t, storage.NewMemoryStorage(), RouterRepositoryOptions{})
	a, _ := repo.Add(req("A", "10.0.0.1"))

	name := "Kantor"
	pw := "secret"
	updated, err := repo.Update(a.ID, models.RouterUpdateRequest{Name: &name, Password: &pw})
	require.NoError(t, err)
	assert.Equal(t, "Kantor", updated.Name)
	assert.Equal(t, "10.0.0.1", updated.IPAddress)
	assert.Equal(t, "secret", updated.Password)
	assert.True(t, updated.IsActive)

	_, err = repo.Update("missing", models.RouterUpdateRequest{Name: &name})
	assert.ErrorIs(t, err, ErrRouterNotFound)
}

func TestRouterRepository_ApplyStatuses(t *testing.T) {
	repo := newRouterRepo(t, storage.NewMemoryStorage(), RouterRepositoryOptions{})
	a, _ := repo.Add(req("A", "10.0.0.1"))
	b, _ := repo.Add(req("B", "10.0.0.2"))

	err := repo.ApplyStatuses([]models.RouterStatus{
		{RouterID: a.ID, IsOnline: true},
		{RouterID: b.ID, IsOnline: false},
		{RouterID: "deleted-router", IsOnline: true},
	})
	require.NoError(t, err)

	got, _ := repo.GetByID(a.ID)
	assert.Equal(t, models.StatusOnline, got.Status)
	got, _ = repo.GetByID(b.ID)
	assert.Equal(t, models.StatusOffline, got.Status)
	assert.Len(t, repo.GetAll(), 2)
}

func TestRouterRepository_PersistFailureKeepsState(t *testing.T) {
	store := &failingStorage{MemoryStorage: storage.NewMemoryStorage()}
	repo := newRouterRepo(t, store, RouterRepositoryOptions{})
	a, err := repo.Add(req("A", "10.0.0.1"))
	require.NoError(t, err)

	store.failSave = true
	_, err = repo.Add(req("B", "10.0.0.2"))
	assert.Error(t, err)
	assert.Error(t, repo.Delete(a.ID))
	assert.Len(t, repo.GetAll(), 1)
}

func TestRouterRepository_ReloadAndSeed(t *testing.T) {
	store := storage.NewMemoryStorage()
	seed := req("Router Utama", "192.168.2.1")

	repo := newRouterRepo(t, store, RouterRepositoryOptions{Seed: &seed})
	all := repo.GetAll()
	require.Len(t, all, 1)
	assert.Equal(t, "Router Utama", all[0].Name)
	assert.True(t, all[0].IsActive)

	require.NoError(t, repo.Delete(all[0].ID))

	// An explicitly emptied registry is not re-seeded.
	reloaded := newRouterRepo(t, store, RouterRepositoryOptions{Seed: &seed})
	assert.Empty(t, reloaded.GetAll())
}

func TestRouterRepository_MalformedRegistry(t *testing.T) {
	store := storage.NewMemoryStorage()
	require.NoError(t, store.Save(storage.KeyRouters, []byte("{not json")))

	repo := newRouterRepo(t, store, RouterRepositoryOptions{})
	assert.Empty(t, repo.GetAll())

	_, err := repo.Add(req("A", "10.0.0.1"))
	require.NoError(t, err)
}

func TestRouterRepository_NormalizesStoredActiveFlags(t *testing.T) {
	store := storage.NewMemoryStorage()
	raw := `[{"id":"1","name":"A","ip_address":"10.0.0.1","username":"root","is_active":false},
	         {"id":"2","name":"B","ip_address":"10.0.0.2","username":"root","is_active":false}]`
	require.NoError(t, store.Save(storage.KeyRouters, []byte(raw)))

	repo := newRouterRepo(t, store, RouterRepositoryOptions{})
	active, ok := repo.GetActive()
	require.True(t, ok)
	assert.Equal(t, "1", active.ID)
	assert.Equal(t, 1, activeCount(repo.GetAll()))
	assert.Equal(t, models.StatusUnknown, active.Status)
}

func TestRouterRepository_SealsPasswords(t *testing.T) {
	store := storage.NewMemoryStorage()
	sealer, err := credentials.NewCipher("test-key")
	require.NoError(t, err)

	repo := newRouterRepo(t, store, RouterRepositoryOptions{Sealer: sealer})
	r := req("A", "10.0.0.1")
	r.Password = "admin123"
	p, err := repo.Add(r)
	require.NoError(t, err)
	assert.Equal(t, "admin123", p.Password)

	data, err := store.Load(storage.KeyRouters)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "admin123")
	assert.Contains(t, string(data), credentials.Prefix)

	reloaded := newRouterRepo(t, store, RouterRepositoryOptions{Sealer: sealer})
	got, err := reloaded.GetByID(p.ID)
	require.NoError(t, err)
	assert.Equal(t, "admin123", got.Password)
}

func TestRouterRepository_PrefixedPasswordSurvivesReload(t *testing.T) {
	cipher, err := credentials.NewCipher("test-key")
	require.NoError(t, err)

	for name, sealer := range map[string]credentials.Sealer{"cipher": cipher, "plaintext": credentials.Plaintext{}} {
		t.Run(name, func(t *testing.T) {
			store := storage.NewMemoryStorage()
			repo := newRouterRepo(t, store, RouterRepositoryOptions{Sealer: sealer})
			r := req("A", "10.0.0.1")
			r.Password = credentials.Prefix + "abc"
			p, err := repo.Add(r)
			require.NoError(t, err)

			reloaded := newRouterRepo(t, store, RouterRepositoryOptions{Sealer: sealer})
			got, err := reloaded.GetByID(p.ID)
			require.NoError(t, err)
			assert.Equal(t, credentials.Prefix+"abc", got.Password)
		})
	}
}

func TestRouterRepository_ExportMasksPasswords(t *testing.T) {
	repo := newRouterRepo(t, storage.NewMemoryStorage(), RouterRepositoryOptions{})
	_, err := repo.Add(models.RouterCreateRequest{Name: "R1", IPAddress: "192.168.2.1", Username: "root", Password: "s3cret"})
	require.NoError(t, err)
	_, err = repo.Add(req("R2", "192.168.3.1"))
	require.NoError(t, err)

	backup := repo.Export(false)
	assert.Equal(t, models.BackupVersion, backup.Version)
	assert.False(t, backup.ExportedAt.IsZero())
	require.Len(t, backup.Routers, 2)
	assert.Equal(t, models.MaskedPassword, backup.Routers[0].Password)
	assert.Empty(t, backup.Routers[1].Password)

	full := repo.Export(true)
	assert.Equal(t, "s3cret", full.Routers[0].Password)
}

func TestRouterRepository_Restore(t *testing.T) {
	store := storage.NewMemoryStorage()
	repo := newRouterRepo(t, store, RouterRepositoryOptions{})
	old, err := repo.Add(req("Old", "10.0.0.1"))
	require.NoError(t, err)

	restored, err := repo.Restore([]models.RouterProfile{
		{ID: "x1", Name: "Backup", IPAddress: "192.168.3.1", Username: "root", Password: models.MaskedPassword, IsActive: true, Status: models.StatusOnline},
		{ID: "x2", Name: "", IPAddress: "192.168.9.1", Username: "root"},
		{ID: "x3", Name: "Main", IPAddress: "192.168.2.1", Username: "admin", Password: "pw", IsActive: true, Status: models.StatusOffline},
		{ID: "x4", Name: "NoUser", IPAddress: "192.168.4.1"},
	})
	require.NoError(t, err)
	require.Len(t, restored, 2)

	all := repo.GetAll()
	require.Len(t, all, 2)
	assert.Equal(t, 1, activeCount(all))
	assert.True(t, all[0].IsActive)
	assert.Equal(t, "Backup", all[0].Name)
	assert.Empty(t, all[0].Password)
	assert.Equal(t, "pw", all[1].Password)
	for _, p := range all {
		assert.Equal(t, models.StatusUnknown, p.Status)
		assert.NotEqual(t, old.ID, p.ID)
		assert.NotContains(t, []string{"x1", "x3"}, p.ID)
	}

	_, err = repo.GetByID(old.ID)
	assert.ErrorIs(t, err, ErrRouterNotFound)

	reloaded := newRouterRepo(t, store, RouterRepositoryOptions{})
	assert.Equal(t, all, reloaded.GetAll())
}

func TestRouterRepository_RestoreRejectsEmptyBackup(t *testing.T) {
	repo := newRouterRepo(t, storage.NewMemoryStorage(), RouterRepositoryOptions{})
	existing, err := repo.Add(req("R1", "192.168.2.1"))
	require.NoError(t, err)

	_, err = repo.Restore([]models.RouterProfile{{Name: "NoAddress", Username: "root"}})
	var verrs *validation.Errors
	require.ErrorAs(t, err, &verrs)

	all := repo.GetAll()
	require.Len(t, all, 1)
	assert.Equal(t, existing.ID, all[0].ID)
}

func TestRouterRepository_RestoreSaveFailureKeepsRegistry(t *testing.T) {
	store := &failingStorage{MemoryStorage: storage.NewMemoryStorage()}
	repo := newRouterRepo(t, store, RouterRepositoryOptions{})
	existing, err := repo.Add(req("R1", "192.168.2.1"))
	require.NoError(t, err)

	store.failSave = true
	_, err = repo.Restore([]models.RouterProfile{{Name: "B", IPAddress: "192.168.3.1", Username: "root"}})
	require.Error(t, err)

	all := repo.GetAll()
	require.Len(t, all, 1)
	assert.Equal(t, existing.ID, all[0].ID)
}
