package store

import (
	"context"
	"database/sql"
)

// GetConfigValue returns a persisted config value, or ok=false if unset.
// Bootstrap keys (database path, listen address) never live here — they
// must be known before the store can open — but everything else internal/config
// layers on top of defaults/yaml/env is persisted through this table so
// `chatvault init` only has to be answered once.
func (s *Store) GetConfigValue(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.ro.QueryRowContext(ctx, `SELECT value FROM config WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, wrapDBError("get config value", err)
	}
	return value, true, nil
}

// SetConfigValue upserts a persisted config value.
func (s *Store) SetConfigValue(ctx context.Context, key, value string) error {
	_, err := s.rw.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return wrapDBError("set config value", err)
}

// AllConfigValues returns every persisted config key/value pair.
func (s *Store) AllConfigValues(ctx context.Context) (map[string]string, error) {
	rows, err := s.ro.QueryContext(ctx, `SELECT key, value FROM config`)
	if err != nil {
		return nil, wrapDBError("list config values", err)
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, wrapDBError("scan config value", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}
