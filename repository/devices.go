package repository

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"Kendalinet-Layer/models"
	"Kendalinet-Layer/storage"
)

const bytesPerMB = 1024 * 1024

var ErrUsageNotFound = errors.New("no usage recorded for device")

// UsageRepository keeps per-device traffic counters keyed by MAC.
type UsageRepository struct {
	mu    sync.RWMutex
	store storage.Storage
	log   zerolog.Logger
	usage map[string]models.DeviceUsage
}

func NewUsageRepository(store storage.Storage, log zerolog.Logger) *UsageRepository {
	r := &UsageRepository{store: store, log: log}
	loadJSON(store, storage.KeyDeviceUsage, log, &r.usage)
	if r.usage == nil {
		r.usage = make(map[string]models.DeviceUsage)
	}
	return r
}

// GetAll returns counters sorted by total traffic, largest first.
func (r *UsageRepository) GetAll() []models.DeviceUsage {
	r.mu.RLock()
	out := make([]models.DeviceUsage, 0, len(r.usage))
	for _, u := range r.usage {
		out = append(out, u)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		ti, tj := out[i].DownloadMB+out[i].UploadMB, out[j].DownloadMB+out[j].UploadMB
		if ti != tj {
			return ti > tj
		}
		return out[i].MAC < out[j].MAC
	})
	return out
}

// Get looks up one device's counters by its normalized MAC.
func (r *UsageRepository) Get(mac string) (models.DeviceUsage, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.usage[mac]
	return u, ok
}

// Record stores the byte counters reported by the router. tx is traffic the
// router sent to the device (its download), rx what it received.
// Devices without counters are skipped.
func (r *UsageRepository) Record(devices []models.Device, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := make(map[string]models.DeviceUsage, len(r.usage))
	for k, v := range r.usage {
		next[k] = v
	}

	changed := false
	for _, d := range devices {
		if d.MAC == "" || (d.RxBytes == 0 && d.TxBytes == 0) {
			continue
		}
		next[d.MAC] = models.DeviceUsage{
			MAC:         d.MAC,
			DownloadMB:  float64(d.TxBytes) / bytesPerMB,
			UploadMB:    float64(d.RxBytes) / bytesPerMB,
			LastUpdated: now.UTC(),
		}
		changed = true
	}
	if !changed {
		return nil
	}

	if err := saveJSON(r.store, storage.KeyDeviceUsage, next); err != nil {
		return err
	}
	r.usage = next
	return nil
}

// Reset clears every counter.
func (r *UsageRepository) Reset() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.store.Delete(storage.KeyDeviceUsage); err != nil {
		return err
	}
	r.usage = make(map[string]models.DeviceUsage)
	return nil
}

// KnownDeviceRepository remembers which MACs each router has already shown.
type KnownDeviceRepository struct {
	mu    sync.Mutex
	store storage.Storage
	known map[string][]string
}

func NewKnownDeviceRepository(store storage.Storage, log zerolog.Logger) *KnownDeviceRepository {
	r := &KnownDeviceRepository{store: store}
	loadJSON(store, storage.KeyKnownDevices, log, &r.known)
	if r.known == nil {
		r.known = make(map[string][]string)
	}
	return r
}

// Observe merges macs into the router's known set and returns the ones that
// were not known before. baseline is true when the router had no known set,
// in which case nothing is reported as new.
func (r *KnownDeviceRepository) Observe(routerID string, macs []string) (fresh []string, baseline bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, seen := r.known[routerID]
	set := make(map[string]struct{}, len(existing)+len(macs))
	for _, m := range existing {
		set[m] = struct{}{}
	}

	merged := append([]string(nil), existing...)
	for _, m := range macs {
		if _, ok := set[m]; ok {
			continue
		}
		set[m] = struct{}{}
		merged = append(merged, m)
		if seen {
			fresh = append(fresh, m)
		}
	}

	if seen && len(merged) == len(existing) {
		return nil, false, nil
	}

	next := make(map[string][]string, len(r.known)+1)
	for k, v := range r.known {
		next[k] = v
	}
	next[routerID] = merged

	if err := saveJSON(r.store, storage.KeyKnownDevices, next); err != nil {
		return nil, !seen, err
	}
	r.known = next
	return fresh, !seen, nil
}

// Forget drops the known set of a router, e.g. after it is deleted.
func (r *KnownDeviceRepository) Forget(routerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.known[routerID]; !ok {
		return nil
	}
	next := make(map[string][]string, len(r.known))
	for k, v := range r.known {
		if k != routerID {
			next[k] = v
		}
	}
	if err := saveJSON(r.store, storage.KeyKnownDevices, next); err != nil {
		return err
	}
	r.known = next
	return nil
}
