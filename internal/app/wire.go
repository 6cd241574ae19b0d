// Package app wires the storefront's shared dependencies for the binaries
// under cmd/.
package app

import (
	"context"
	"fmt"
	"os"

	"github.com/ariefcatur/go-omise-storefront/internal/catalog"
	"github.com/ariefcatur/go-omise-storefront/internal/checkout"
	"github.com/ariefcatur/go-omise-storefront/internal/config"
	"github.com/ariefcatur/go-omise-storefront/internal/gateway"
	kafkax "github.com/ariefcatur/go-omise-storefront/internal/kafka"
	"github.com/ariefcatur/go-omise-storefront/internal/logging"
	"github.com/ariefcatur/go-omise-storefront/internal/metrics"
	"github.com/ariefcatur/go-omise-storefront/internal/orders"
	"github.com/ariefcatur/go-omise-storefront/internal/postgres"
	"github.com/ariefcatur/go-omise-storefront/internal/redisx"
	"github.com/ariefcatur/go-omise-storefront/internal/session"
	"github.com/redis/go-redis/v9"
)

// Deps is everything the storefront and the webhook worker share.
type Deps struct {
	Config   config.Config
	Log      *logging.Logger
	Metrics  *metrics.ServerMetrics
	Money    *catalog.Formatter
	Catalog  *catalog.Catalog
	Redis    *redis.Client
	Sessions *session.Store
	Checkout *checkout.Service

	// Outcomes is nil when Kafka is not configured.
	Outcomes *kafkax.Producer

	closers []func()
}

func NewGateway(cfg config.Config) *gateway.Client {
	return gateway.NewClient(gateway.Options{
		BaseURL:    cfg.OmiseAPIURL,
		SecretKey:  cfg.OmiseSecretKey,
		APIVersion: cfg.OmiseAPIVersion,
		Timeout:    cfg.GatewayTimeout,
	})
}

func NewCatalog(cfg config.Config) (*catalog.Catalog, *catalog.Formatter, error) {
	money, err := catalog.NewFormatter(cfg.StoreCurrency, cfg.StoreLocale)
	if err != nil {
		return nil, nil, err
	}
	return catalog.New(os.DirFS(cfg.AssetsDir), catalog.DefaultPrices), money, nil
}

// Build connects Redis, the optional journal database and the optional
// outcome producer, and assembles the checkout service. Call Close when done.
func Build(ctx context.Context, cfg config.Config) (*Deps, error) {
	d := &Deps{
		Config:  cfg,
		Log:     logging.New(cfg.ServiceName),
		Metrics: metrics.NewServerMetrics(cfg.ServiceName, nil),
	}

	var err error
	if d.Catalog, d.Money, err = NewCatalog(cfg); err != nil {
		return nil, err
	}

	d.Redis = redisx.New(cfg.RedisAddr)
	d.closers = append(d.closers, func() { _ = d.Redis.Close() })
	if err := d.Redis.Ping(ctx).Err(); err != nil {
		d.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	d.Sessions = session.NewStore(d.Redis, cfg.SessionTTL)

	d.Checkout = &checkout.Service{
		Gateway:     NewGateway(cfg),
		Prices:      d.Catalog,
		Tracker:     &orders.Tracker{Redis: d.Redis, Service: cfg.ServiceName},
		Sessions:    d.Sessions,
		Log:         d.Log,
		Metrics:     d.Metrics,
		Currency:    d.Money.Currency(),
		AppName:     checkout.DefaultAppName,
		AutoCapture: cfg.AutoCapture,
		ServiceName: cfg.ServiceName,
	}

	if cfg.PostgresDSN != "" {
		db, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.ServiceName)
		if err != nil {
			d.Close()
			return nil, err
		}
		d.closers = append(d.closers, db.Close)
		journal := &orders.Journal{DB: db}
		if err := journal.EnsureSchema(ctx); err != nil {
			d.Close()
			return nil, err
		}
		d.Checkout.Journal = journal
	}

	if cfg.KafkaEnabled() {
		d.Outcomes = d.Producer(ctx, orders.TopicChargeOutcome)
		d.Checkout.Events = d.Outcomes
	}
	return d, nil
}

// Producer starts a producer for topic that is flushed by Close.
func (d *Deps) Producer(ctx context.Context, topic string) *kafkax.Producer {
	p := kafkax.NewProducer(d.Config.KafkaBrokers, topic, 1024, d.Log)
	p.Start(ctx)
	d.closers = append(d.closers, func() {
		p.Close()
		p.WaitClosed()
	})
	return p
}

// Close releases resources in reverse order of acquisition.
func (d *Deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
	d.closers = nil
}
