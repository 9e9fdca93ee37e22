package migrations

import (
	"database/sql"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

// retryDelay is a var so tests can shorten it.
var retryDelay = time.Second

const kvStoreTable = `
	CREATE TABLE IF NOT EXISTS kv_store (
		k VARCHAR(255) NOT NULL PRIMARY KEY,
		v MEDIUMTEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
	);
`

// AutoMigrateKVStore creates the kv_store table on every shard if it does not exist.
func AutoMigrateKVStore(retries int, dbs ...*sql.DB) error {
	for i, db := range dbs {
		_, err := db.Exec(kvStoreTable)
		for attempt := 0; err != nil && attempt < retries; attempt++ {
			logger.Warn().Err(err).Msgf("Retry %d: creating kv_store on shard %d", attempt+1, i)
			time.Sleep(retryDelay)
			_, err = db.Exec(kvStoreTable)
		}
		if err != nil {
			return errors.Wrapf(err, "could not create kv_store on shard %d", i)
		}
	}
	return nil
}
