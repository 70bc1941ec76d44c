package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog"

	"Kendalinet-Layer/storage"
)

const schema = `CREATE TABLE IF NOT EXISTS kv_store (
	k VARCHAR(128) NOT NULL PRIMARY KEY,
	v LONGBLOB NOT NULL,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
)`

// Database is a MySQL-backed storage.Storage.
type Database struct {
	DB      *sql.DB
	timeout time.Duration
}

var _ storage.Storage = (*Database)(nil)

func NewDatabase(dsn string, log zerolog.Logger) (*Database, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	d, err := newWithDB(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	log.Info().Msg("Database connection established")
	return d, nil
}

func newWithDB(db *sql.DB) (*Database, error) {
	d := &Database{DB: db, timeout: 5 * time.Second}

	ctx, cancel := d.ctx()
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("error creating kv_store: %w", err)
	}
	return d, nil
}

func (d *Database) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), d.timeout)
}

func (d *Database) Load(key string) ([]byte, error) {
	ctx, cancel := d.ctx()
	defer cancel()

	var v []byte
	err := d.DB.QueryRowContext(ctx, "SELECT v FROM kv_store WHERE k = ?", key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	return v, nil
}

func (d *Database) Save(key string, data []byte) error {
	ctx, cancel := d.ctx()
	defer cancel()

	_, err := d.DB.ExecContext(ctx,
		"INSERT INTO kv_store (k, v) VALUES (?, ?) ON DUPLICATE KEY UPDATE v = VALUES(v)",
		key, data)
	if err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

func (d *Database) Delete(key string) error {
	ctx, cancel := d.ctx()
	defer cancel()

	if _, err := d.DB.ExecContext(ctx, "DELETE FROM kv_store WHERE k = ?", key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (d *Database) Close() error {
	return d.DB.Close()
}
