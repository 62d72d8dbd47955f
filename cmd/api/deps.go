package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/realsarius/ecommerce-belediye-testcase-sub002/internal/app"
	"github.com/realsarius/ecommerce-belediye-testcase-sub002/internal/clock"
	"github.com/realsarius/ecommerce-belediye-testcase-sub002/internal/config"
	"github.com/realsarius/ecommerce-belediye-testcase-sub002/internal/domain"
	"github.com/realsarius/ecommerce-belediye-testcase-sub002/internal/gateway"
	"github.com/realsarius/ecommerce-belediye-testcase-sub002/internal/messaging/kafka"
	"github.com/realsarius/ecommerce-belediye-testcase-sub002/internal/metrics"
	"github.com/realsarius/ecommerce-belediye-testcase-sub002/internal/storage/postgres"
	"github.com/realsarius/ecommerce-belediye-testcase-sub002/internal/storage/redis"
	transporthttp "github.com/realsarius/ecommerce-belediye-testcase-sub002/internal/transport/http"
	"github.com/realsarius/ecommerce-belediye-testcase-sub002/migrations"
)

const refundConsumerName = "refund-processor"

type deps struct {
	pool    *pgxpool.Pool
	redis   *goredis.Client
	locker  *redis.Locker
	metrics *metrics.Metrics

	checkout   *app.CheckoutService
	orders     *app.OrderService
	settlement *app.SettlementService
	returns    *app.ReturnService
	refunds    *app.RefundService
	admin      *app.AdminService

	sweeper    *app.ExpirySweeper
	reconciler *app.RefundReconciler
	// relay and consumer are nil when no Kafka brokers are configured.
	relay     *app.OutboxRelay
	publisher *kafka.Publisher
	consumer  *kafka.Consumer
}

// connect opens the stores, applies migrations and builds every service.
func connect(ctx context.Context, cfg config.Config) (*deps, error) {
	pricing, err := cfg.Pricing()
	if err != nil {
		return nil, err
	}

	startupCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	pool, err := pgxpool.New(startupCtx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to db: %w", err)
	}
	if err := pool.Ping(startupCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	applied, err := migrations.Apply(startupCtx, pool)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	for _, name := range applied {
		log.Info().Str("migration", name).Msg("migration applied")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	locker := redis.NewLocker(rdb, redis.WithWait(cfg.LockWait))
	if err := locker.Ping(startupCtx); err != nil {
		log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable, checkout will fail until it recovers")
	}

	clk := clock.NewSystem()
	tx := postgres.NewTransactor(pool)
	orderRepo := postgres.NewOrderRepository(pool)
	inventoryRepo := postgres.NewInventoryRepository(pool)
	returnRepo := postgres.NewReturnRepository(pool)
	outboxRepo := postgres.NewOutboxRepository(pool)
	couponRepo := postgres.NewCouponRepository(pool)
	productRepo := postgres.NewProductRepository(pool)

	gw := gateway.NewClient(cfg.GatewayBaseURL, cfg.GatewayAPIKey, cfg.GatewaySecretKey, gateway.WithTimeout(cfg.GatewayTimeout))
	ledger := app.NewInventoryLedger(inventoryRepo, clk)
	refunds := app.NewRefundService(tx, orderRepo, returnRepo, outboxRepo, gw, clk, app.WithRefundClientIP(cfg.GatewayClientIP))

	d := &deps{
		pool:    pool,
		redis:   rdb,
		locker:  locker,
		metrics: metrics.New(),
		checkout: app.NewCheckoutService(tx, orderRepo, outboxRepo, productRepo, ledger, locker, clk,
			app.WithPricing(pricing),
			app.WithLockTTL(cfg.LockTTL),
			app.WithDiscounts(app.NewCouponDiscounts(couponRepo, clk)),
		),
		orders: app.NewOrderService(tx, orderRepo, outboxRepo, ledger, clk),
		settlement: app.NewSettlementService(tx, orderRepo, outboxRepo, gw, clk,
			app.WithWebhookSecret(cfg.GatewaySecretKey),
			app.WithUnsignedWebhooks(cfg.WebhookAllowUnsigned),
			app.WithClientIP(cfg.GatewayClientIP),
		),
		returns:    app.NewReturnService(tx, orderRepo, returnRepo, outboxRepo, clk),
		refunds:    refunds,
		admin:      app.NewAdminService(tx, inventoryRepo, ledger, clk),
		sweeper:    app.NewExpirySweeper(tx, orderRepo, outboxRepo, ledger, clk, app.WithExpiryWindow(cfg.OrderExpiry)),
		reconciler: app.NewRefundReconciler(refunds, returnRepo, clk, app.WithStaleAfter(cfg.RefundStaleAfter)),
	}

	brokers := cfg.Brokers()
	if len(brokers) == 0 {
		log.Warn().Msg("KAFKA_BROKERS not set, outbox relay and refund consumer disabled")
		return d, nil
	}

	d.publisher = kafka.NewPublisher(kafka.NewWriter(brokers, cfg.KafkaTopic))
	d.relay = app.NewOutboxRelay(tx, outboxRepo, d.publisher, clk,
		app.WithRelayBatchSize(cfg.OutboxBatchSize),
		app.WithRelayMaxRetries(cfg.OutboxMaxRetries),
	)
	d.consumer = kafka.NewConsumer(
		kafka.NewReader(brokers, cfg.KafkaTopic, cfg.KafkaGroupID),
		app.NewInboxProcessor(outboxRepo, clk),
		refundConsumerName,
	)
	d.consumer.Handle(domain.EventRefundRequested, refunds.HandleRefundRequested)
	return d, nil
}

func (d *deps) services() transporthttp.Services {
	return transporthttp.Services{
		Checkout:  d.checkout,
		Orders:    d.orders,
		Payments:  d.settlement,
		Confirm:   d.settlement,
		Returns:   d.returns,
		Reviews:   d.returns,
		Refunds:   d.refunds,
		Inventory: d.admin,
	}
}

func (d *deps) close() {
	if d.consumer != nil {
		if err := d.consumer.Close(); err != nil {
			log.Warn().Err(err).Msg("close kafka reader")
		}
	}
	if d.publisher != nil {
		if err := d.publisher.Close(); err != nil {
			log.Warn().Err(err).Msg("close kafka writer")
		}
	}
	if err := d.redis.Close(); err != nil {
		log.Warn().Err(err).Msg("close redis client")
	}
	d.pool.Close()
}
