package repository

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"Kendalinet-Layer/storage"
)

// loadJSON decodes key into dst. Missing keys, read failures and malformed
// payloads all leave dst untouched; only the latter two are logged.
func loadJSON(store storage.Storage, key string, log zerolog.Logger, dst interface{}) {
	data, err := store.Load(key)
	if errors.Is(err, storage.ErrNotFound) {
		return
	}
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to read stored data")
		return
	}
	if err := json.Unmarshal(data, dst); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Malformed stored data, using defaults")
	}
}

func saveJSON(store storage.Storage, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := store.Save(key, data); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}
