package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "8084", cfg.Port)
		assert.Equal(t, 10*time.Second, cfg.APITimeout)
		assert.Equal(t, "PKR", cfg.Currency)
		assert.Equal(t, "100", cfg.CODFeeAmount().String())
		assert.Equal(t, "memory", cfg.StoreBackend)
		assert.Empty(t, cfg.KafkaBrokers)
		assert.Equal(t, 30*time.Minute, cfg.SessionIdle)
		assert.Equal(t, time.Minute, cfg.SessionSweep)
	})

	t.Run("environment", func(t *testing.T) {
		t.Setenv("STOREFRONT_STORE_BACKEND", "mysql")
		t.Setenv("STOREFRONT_MYSQL_DSNS", "u:p@tcp(db1:3306)/kv,u:p@tcp(db2:3306)/kv")
		t.Setenv("STOREFRONT_KAFKA_BROKERS", "k1:9092,k2:9092")
		t.Setenv("STOREFRONT_COD_FEE", "149.50")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Len(t, cfg.MySQLDSNs, 2)
		assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
		assert.Equal(t, "149.5", cfg.CODFeeAmount().String())
	})

	t.Run("invalid", func(t *testing.T) {
		t.Setenv("STOREFRONT_STORE_BACKEND", "mysql")
		_, err := Load()
		assert.Error(t, err)

		t.Setenv("STOREFRONT_STORE_BACKEND", "etcd")
		_, err = Load()
		assert.Error(t, err)

		t.Setenv("STOREFRONT_STORE_BACKEND", "memory")
		t.Setenv("STOREFRONT_COD_FEE", "-1")
		_, err = Load()
		assert.Error(t, err)
	})
}

func TestNewKafkaWriter(t *testing.T) {
	assert.Nil(t, NewKafkaWriter(nil, "cart-topic"))
	assert.Nil(t, NewKafkaReader(nil, "product-topic", "storefront-cart-service"))

	w := NewKafkaWriter([]string{"localhost:9092"}, "cart-topic")
	require.NotNil(t, w)
	assert.Equal(t, "cart-topic", w.Topic)
	assert.Equal(t, 10*time.Millisecond, w.BatchTimeout)
}
