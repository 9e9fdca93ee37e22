package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"
	"golang.org/x/time/rate"

	"storefront-cart-service/internal/api"
	"storefront-cart-service/internal/checkout"
	"storefront-cart-service/internal/config"
	"storefront-cart-service/internal/consumer"
	"storefront-cart-service/internal/entity"
	"storefront-cart-service/internal/events"
	"storefront-cart-service/internal/kvstore"
	"storefront-cart-service/internal/pricing"
	"storefront-cart-service/internal/session"
	"storefront-cart-service/internal/sharding"
	"storefront-cart-service/migrations"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

func main() {
	if err := newApp().Run(os.Args); err != nil {
		logger.Fatal().Err(err).Msg("storefront-cart-service failed")
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "storefront-cart-service",
		Usage: "cart, pricing and checkout backend for the storefront app",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP server",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "create the kv_store table on every MySQL shard",
				Action: migrate,
			},
			{
				Name:  "quote",
				Usage: "price a quantity of a product offline",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "price", Required: true, Usage: "base unit price"},
					&cli.IntFlag{Name: "qty", Value: 1, Usage: "quantity"},
					&cli.StringSliceFlag{Name: "tier", Usage: "discount tier as minQty:percent, repeatable"},
					&cli.StringFlag{Name: "currency", Value: pricing.DefaultCurrency},
				},
				Action: quote,
			},
		},
	}
}

func connectDB(dsn string) (*sql.DB, error) {
	var db *sql.DB
	var err error
	for i := 0; i < 10; i++ {
		db, err = sql.Open("mysql", dsn)
		if err == nil {
			err = db.Ping()
			if err == nil {
				return db, nil
			}
		}
		logger.Warn().Err(err).Msgf("Retry %d: failed to connect to DB", i+1)
		time.Sleep(3 * time.Second)
	}
	return nil, errors.Wrap(err, "failed to connect to DB after retries")
}

func connectShards(dsns []string) ([]*sql.DB, error) {
	dbs := make([]*sql.DB, 0, len(dsns))
	for i, dsn := range dsns {
		db, err := connectDB(dsn)
		if err != nil {
			return nil, errors.Wrapf(err, "shard %d", i)
		}
		logger.Info().Msgf("Connected to shard %d", i)
		dbs = append(dbs, db)
	}
	return dbs, nil
}

func newStore(cfg *config.Config) (kvstore.Store, error) {
	switch cfg.StoreBackend {
	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return kvstore.NewRedis(rdb, cfg.RedisTTL), nil
	case "mysql":
		dbs, err := connectShards(cfg.MySQLDSNs)
		if err != nil {
			return nil, err
		}
		if err := migrations.AutoMigrateKVStore(3, dbs...); err != nil {
			return nil, err
		}
		return kvstore.NewMySQL(dbs, sharding.NewShardRouter(len(dbs))), nil
	default:
		logger.Warn().Msg("Using the in-memory store, carts are lost on restart")
		return kvstore.NewMemory(), nil
	}
}

func serve(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	store, err := newStore(cfg)
	if err != nil {
		return err
	}

	var publisher events.Publisher = events.Nop{}
	if kafkaWriter := config.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic); kafkaWriter != nil {
		defer kafkaWriter.Close()
		publisher = events.NewKafkaPublisher(kafkaWriter)
	}

	sessions := session.NewManager(store, cfg.APIURL, cfg.APITimeout)
	defer sessions.Close()

	handler := api.NewCartHandler(sessions, checkout.NewService(cfg.CODFeeAmount(), publisher), publisher, cfg.Currency)

	e := echo.New()

	limiterConfig := middleware.RateLimiterConfig{
		Skipper: middleware.DefaultSkipper,
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(cfg.RateLimit),
				Burst:     cfg.RateBurst,
				ExpiresIn: 3 * time.Minute,
			}),
		IdentifierExtractor: func(context echo.Context) (string, error) {
			return context.RealIP(), nil
		},
		ErrorHandler: func(context echo.Context, err error) error {
			return context.JSON(429, map[string]string{"error": "rate limit exceeded"})
		},
		DenyHandler: func(context echo.Context, identifier string, err error) error {
			return context.JSON(429, map[string]string{"error": "rate limit exceeded"})
		},
	}

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.RateLimiterWithConfig(limiterConfig))

	api.Register(e, handler, []byte(cfg.JWTSecret))

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go sessions.RunEviction(ctx, cfg.SessionSweep, cfg.SessionIdle)

	if productReader := config.NewKafkaReader(cfg.KafkaBrokers, cfg.ProductTopic, cfg.GroupID); productReader != nil {
		defer productReader.Close()
		go func() {
			if err := consumer.NewConsumer(productReader, sessions).Run(ctx); err != nil {
				logger.Error().Err(err).Msg("Product consumer stopped")
			}
		}()
	}

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func migrate(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if len(cfg.MySQLDSNs) == 0 {
		return errors.New("STOREFRONT_MYSQL_DSNS is not set")
	}

	dbs, err := connectShards(cfg.MySQLDSNs)
	if err != nil {
		return err
	}
	defer func() {
		for _, db := range dbs {
			_ = db.Close()
		}
	}()

	if err := migrations.AutoMigrateKVStore(3, dbs...); err != nil {
		return err
	}
	logger.Info().Msgf("Migrated kv_store on %d shards", len(dbs))
	return nil
}

func quote(c *cli.Context) error {
	price, err := decimal.NewFromString(c.String("price"))
	if err != nil {
		return errors.Wrapf(err, "invalid price %q", c.String("price"))
	}

	product := entity.Product{ID: "quote", Price: price}
	for _, raw := range c.StringSlice("tier") {
		tier, err := pricing.ParseTier(raw)
		if err != nil {
			return err
		}
		product.DiscountTiers = append(product.DiscountTiers, tier)
	}
	if err := pricing.ValidateTiers(product.DiscountTiers); err != nil {
		return err
	}

	currency := c.String("currency")
	p := pricing.PriceFor(product, c.Int("qty"))

	w := c.App.Writer
	fmt.Fprintf(w, "unit price: %s\n", pricing.FormatAmount(currency, p.UnitPrice))
	if p.HasDiscount {
		fmt.Fprintf(w, "discount:   %s%% off %s\n", p.DiscountPercent, pricing.FormatAmount(currency, p.OriginalUnitPrice))
	}
	fmt.Fprintf(w, "total:      %s\n", pricing.FormatAmount(currency, p.TotalPrice))

	if ladder := pricing.Ladder(product); len(ladder) > 0 {
		steps := make([]string, 0, len(ladder))
		for _, step := range ladder {
			steps = append(steps, fmt.Sprintf("%d+ %s", step.MinQty, pricing.FormatAmount(currency, step.UnitPrice)))
		}
		fmt.Fprintf(w, "ladder:     %s\n", strings.Join(steps, ", "))
	}
	return nil
}
