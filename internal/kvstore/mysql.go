package kvstore

import (
	"context"
	"database/sql"
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"storefront-cart-service/internal/sharding"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

// MySQL stores values in the kv_store table, spread over shards by key.
type MySQL struct {
	dbShards []*sql.DB
	router   *sharding.ShardRouter
}

func NewMySQL(dbShards []*sql.DB, router *sharding.ShardRouter) *MySQL {
	return &MySQL{dbShards, router}
}

func (m *MySQL) shard(key string) *sql.DB {
	return m.dbShards[m.router.GetShard(key)]
}

func (m *MySQL) Get(ctx context.Context, key string) (string, bool, error) {
	query := `SELECT v FROM kv_store WHERE k = ?`
	var value string
	err := m.shard(key).QueryRowContext(ctx, query, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		logger.Error().Err(err).Msgf("Error getting key %s from mysql", key)
		return "", false, errors.Wrapf(err, "mysql get %s", key)
	}
	return value, true, nil
}

func (m *MySQL) Set(ctx context.Context, key, value string) error {
	query := `INSERT INTO kv_store (k, v) VALUES (?, ?) ON DUPLICATE KEY UPDATE v = VALUES(v)`
	if _, err := m.shard(key).ExecContext(ctx, query, key, value); err != nil {
		logger.Error().Err(err).Msgf("Error setting key %s in mysql", key)
		return errors.Wrapf(err, "mysql set %s", key)
	}
	return nil
}

func (m *MySQL) Delete(ctx context.Context, key string) error {
	query := `DELETE FROM kv_store WHERE k = ?`
	if _, err := m.shard(key).ExecContext(ctx, query, key); err != nil {
		logger.Error().Err(err).Msgf("Error deleting key %s from mysql", key)
		return errors.Wrapf(err, "mysql delete %s", key)
	}
	return nil
}
