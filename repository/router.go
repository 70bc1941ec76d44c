package repository

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"Kendalinet-Layer/credentials"
	"Kendalinet-Layer/models"
	"Kendalinet-Layer/storage"
	"Kendalinet-Layer/validation"
)

var ErrRouterNotFound = errors.New("router not found")

type RouterRepositoryOptions struct {
	// Sealer encrypts passwords at rest. Nil stores them in plaintext.
	Sealer credentials.Sealer
	// Seed is registered when no registry has ever been saved.
	Seed *models.RouterCreateRequest
	Now  func() time.Time
}

// RouterRepository owns the ordered router list and the single-active invariant.
// Every mutation persists the whole list before it becomes visible.
type RouterRepository struct {
	mu      sync.RWMutex
	store   storage.Storage
	sealer  credentials.Sealer
	log     zerolog.Logger
	now     func() time.Time
	routers []models.RouterProfile
}

func NewRouterRepository(store storage.Storage, log zerolog.Logger, opts RouterRepositoryOptions) (*RouterRepository, error) {
	r := &RouterRepository{
		store:  store,
		sealer: opts.Sealer,
		log:    log,
		now:    opts.Now,
	}
	if r.sealer == nil {
		r.sealer = credentials.Plaintext{}
	}
	if r.now == nil {
		r.now = time.Now
	}

	seeded, err := r.load()
	if err != nil {
		return nil, err
	}
	if !seeded && opts.Seed != nil {
		if _, err := r.Add(*opts.Seed); err != nil {
			return nil, fmt.Errorf("seed default router: %w", err)
		}
		r.log.Info().Str("name", opts.Seed.Name).Str("ip", opts.Seed.IPAddress).Msg("Seeded default router")
	}
	return r, nil
}

// load reports whether the registry key existed.
func (r *RouterRepository) load() (bool, error) {
	data, err := r.store.Load(storage.KeyRouters)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		r.log.Warn().Err(err).Msg("Failed to read router registry, starting empty")
		return true, nil
	}

	var stored []models.RouterProfile
	if err := json.Unmarshal(data, &stored); err != nil {
		r.log.Warn().Err(err).Msg("Malformed router registry, starting empty")
		return true, nil
	}

	for i := range stored {
		pw, err := r.sealer.Open(stored[i].Password)
		if err != nil {
			r.log.Warn().Err(err).Str("router_id", stored[i].ID).Msg("Cannot decrypt router password")
			pw = ""
		}
		stored[i].Password = pw
		if stored[i].Status == "" {
			stored[i].Status = models.StatusUnknown
		}
	}
	normalizeActive(stored)
	r.routers = stored
	return true, nil
}

// normalizeActive leaves exactly one active profile in a non-empty list:
// the first flagged one, or the first profile if none is flagged.
func normalizeActive(list []models.RouterProfile) {
	found := false
	for i := range list {
		if list[i].IsActive && !found {
			found = true
			continue
		}
		list[i].IsActive = false
	}
	if !found && len(list) > 0 {
		list[0].IsActive = true
	}
}

func (r *RouterRepository) persist(list []models.RouterProfile) error {
	out := make([]models.RouterProfile, len(list))
	for i, p := range list {
		sealed, err := r.sealer.Seal(p.Password)
		if err != nil {
			return fmt.Errorf("seal password for %s: %w", p.ID, err)
		}
		p.Password = sealed
		out[i] = p
	}

	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("encode router registry: %w", err)
	}
	if err := r.store.Save(storage.KeyRouters, data); err != nil {
		return fmt.Errorf("save router registry: %w", err)
	}
	return nil
}

// commit persists next and, on success, makes it the current registry.
// Caller holds r.mu.
func (r *RouterRepository) commit(next []models.RouterProfile) error {
	if err := r.persist(next); err != nil {
		return err
	}
	r.routers = next
	return nil
}

func (r *RouterRepository) snapshot() []models.RouterProfile {
	out := make([]models.RouterProfile, len(r.routers))
	for i, p := range r.routers {
		out[i] = clone(p)
	}
	return out
}

func (r *RouterRepository) indexOf(id string) int {
	for i := range r.routers {
		if r.routers[i].ID == id {
			return i
		}
	}
	return -1
}

func clone(p models.RouterProfile) models.RouterProfile {
	if p.LastConnected != nil {
		t := *p.LastConnected
		p.LastConnected = &t
	}
	return p
}

// Add - Tambah router baru. The first router registered becomes active.
func (r *RouterRepository) Add(req models.RouterCreateRequest) (models.RouterProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	profile := models.RouterProfile{
		ID:        uuid.NewString(),
		Name:      req.Name,
		IPAddress: req.IPAddress,
		Username:  req.Username,
		Password:  req.Password,
		IsActive:  len(r.routers) == 0,
		Status:    models.StatusUnknown,
	}

	next := append(r.snapshot(), profile)
	if err := r.commit(next); err != nil {
		return models.RouterProfile{}, err
	}

	r.log.Info().Str("router_id", profile.ID).Str("name", profile.Name).Msg("Router added")
	return clone(profile), nil
}

// GetAll - Ambil semua router, in registry order.
func (r *RouterRepository) GetAll() []models.RouterProfile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot()
}

// GetByID - Ambil router by ID
func (r *RouterRepository) GetByID(id string) (models.RouterProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i := r.indexOf(id)
	if i < 0 {
		return models.RouterProfile{}, ErrRouterNotFound
	}
	return clone(r.routers[i]), nil
}

// GetActive returns the flagged router, else the first one. ok is false
// only when the registry is empty.
func (r *RouterRepository) GetActive() (models.RouterProfile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.routers) == 0 {
		return models.RouterProfile{}, false
	}
	for _, p := range r.routers {
		if p.IsActive {
			return clone(p), true
		}
	}
	return clone(r.routers[0]), true
}

// Update merges the non-nil fields of req. Activation and status are not
// reachable through Update.
func (r *RouterRepository) Update(id string, req models.RouterUpdateRequest) (models.RouterProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return models.RouterProfile{}, ErrRouterNotFound
	}

	next := r.snapshot()
	p := &next[i]
	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.IPAddress != nil {
		p.IPAddress = *req.IPAddress
	}
	if req.Username != nil {
		p.Username = *req.Username
	}
	if req.Password != nil {
		p.Password = *req.Password
	}

	if err := r.commit(next); err != nil {
		return models.RouterProfile{}, err
	}
	return clone(next[i]), nil
}

// Delete - Hapus router. Deleting the active router hands activation to the
// first remaining router.
func (r *RouterRepository) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return ErrRouterNotFound
	}

	wasActive := r.routers[i].IsActive
	current := r.snapshot()
	next := append(current[:i:i], current[i+1:]...)
	if wasActive && len(next) > 0 {
		next[0].IsActive = true
	}

	if err := r.commit(next); err != nil {
		return err
	}

	r.log.Info().Str("router_id", id).Bool("was_active", wasActive).Msg("Router deleted")
	return nil
}

// SwitchActive makes id the only active router and stamps its lastConnected.
// Switching to the router that is already active changes nothing.
func (r *RouterRepository) SwitchActive(id string) (models.RouterProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return models.RouterProfile{}, ErrRouterNotFound
	}
	if r.routers[i].IsActive {
		return clone(r.routers[i]), nil
	}

	now := r.now()
	next := r.snapshot()
	for j := range next {
		next[j].IsActive = j == i
	}
	next[i].LastConnected = &now

	if err := r.commit(next); err != nil {
		return models.RouterProfile{}, err
	}

	r.log.Info().Str("router_id", id).Str("name", next[i].Name).Msg("Active router switched")
	return clone(next[i]), nil
}

// ApplyStatuses writes a poll cycle's verdicts into the cached status field.
// Statuses for routers that no longer exist are ignored.
func (r *RouterRepository) ApplyStatuses(statuses []models.RouterStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	verdict := make(map[string]string, len(statuses))
	for _, s := range statuses {
		if s.IsOnline {
			verdict[s.RouterID] = models.StatusOnline
		} else {
			verdict[s.RouterID] = models.StatusOffline
		}
	}

	changed := false
	next := r.snapshot()
	for i := range next {
		if st, ok := verdict[next[i].ID]; ok && next[i].Status != st {
			next[i].Status = st
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return r.commit(next)
}

// Export - Backup seluruh registry. Passwords are replaced by
// models.MaskedPassword unless withPasswords is set.
func (r *RouterRepository) Export(withPasswords bool) models.RouterBackup {
	routers := r.GetAll()
	for i := range routers {
		if !withPasswords && routers[i].Password != "" {
			routers[i].Password = models.MaskedPassword
		}
	}
	return models.RouterBackup{
		Version:    models.BackupVersion,
		ExportedAt: r.now().UTC(),
		Routers:    routers,
	}
}

// Restore - Ganti seluruh registry dengan isi backup. Entries missing a name,
// address or username are dropped. Survivors get fresh ids and an unknown
// status, the first one becomes the only active router, and masked passwords
// are cleared.
func (r *RouterRepository) Restore(routers []models.RouterProfile) ([]models.RouterProfile, error) {
	next := make([]models.RouterProfile, 0, len(routers))
	for _, p := range routers {
		name := strings.TrimSpace(p.Name)
		ip := strings.TrimSpace(p.IPAddress)
		username := strings.TrimSpace(p.Username)
		if name == "" || ip == "" || username == "" {
			continue
		}
		password := p.Password
		if password == models.MaskedPassword {
			password = ""
		}
		next = append(next, models.RouterProfile{
			ID:        uuid.NewString(),
			Name:      name,
			IPAddress: ip,
			Username:  username,
			Password:  password,
			IsActive:  len(next) == 0,
			Status:    models.StatusUnknown,
		})
	}
	if len(next) == 0 {
		return nil, validation.New("routers", "no valid router found in backup")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	previous := len(r.routers)
	if err := r.commit(next); err != nil {
		return nil, err
	}

	r.log.Info().Int("restored", len(next)).Int("skipped", len(routers)-len(next)).Int("replaced", previous).Msg("Router registry restored")
	return r.snapshot(), nil
}
