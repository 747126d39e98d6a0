package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bookstore-be/internal/auth"
	"bookstore-be/internal/cart"
	"bookstore-be/internal/checkout"
	"bookstore-be/internal/config"
	"bookstore-be/internal/db"
	"bookstore-be/internal/inventory"
	"bookstore-be/internal/logger"
	"bookstore-be/internal/metrics"
	"bookstore-be/internal/middleware"
	"bookstore-be/internal/order"
	"bookstore-be/internal/outbox"
	"bookstore-be/internal/payment"
	"bookstore-be/internal/product"
	"bookstore-be/internal/reconcile"
	"bookstore-be/internal/redisx"
	"bookstore-be/internal/transport"
	"bookstore-be/internal/user"

	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

var (
	initDBFunc      = db.InitDB
	startServerFunc = func(srv *http.Server) error { return srv.ListenAndServe() }
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg := config.LoadConfig()
	logger.Init(cfg.AppEnv)
	defer logger.Sync()

	database := initDBFunc(cfg)
	defer database.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := newServer(cfg, database)
	defer a.close()
	a.start(ctx)

	srv := &http.Server{
		Addr:         ":" + cfg.AppPort,
		Handler:      a.handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.L().Info("server listening", zap.String("addr", srv.Addr))
		errCh <- startServerFunc(srv)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.L().Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type app struct {
	handler http.Handler
	limiter *middleware.RateLimiter
	relay   *outbox.Relay
	closers []func() error
}

// newServer wires repositories, services and the router. Redis and Kafka are
// optional: without them callback legs rely on row locks alone and events
// stay in the outbox table.
func newServer(cfg *config.Config, database *sql.DB) *app {
	a := &app{}
	log := logger.L()

	tx := db.NewTxRunner(database)
	carts := cart.NewReader(product.NewRepository())
	ledger := inventory.NewLedger()
	orders := order.NewRepository()
	payments := payment.NewRepository()
	events := outbox.NewStore()
	counters := metrics.NewCheckout()

	breaker := payment.NewBreakerGateway(payment.NewHostedGateway(cfg), payment.DefaultBreakerSettings())

	locker := redisx.NoopLocker()
	if cfg.RedisAddr != "" {
		rdb := redisx.New(cfg.RedisAddr)
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := redisx.Ping(pingCtx, rdb)
		cancel()
		if err != nil {
			log.Warn("redis unreachable, callback locks disabled", zap.Error(err))
			_ = rdb.Close()
		} else {
			locker = redisx.NewLocker(rdb, redisx.TTLLock, 5*time.Second)
			a.closers = append(a.closers, rdb.Close)
		}
	}

	if len(cfg.KafkaBrokers) > 0 {
		w := outbox.NewKafkaWriter(cfg.KafkaTopic, cfg.KafkaBrokers...)
		a.relay = outbox.NewRelay(events, database, w)
		a.closers = append(a.closers, w.Close)
	}

	rec := reconcile.NewService(reconcile.Deps{
		Tx:       tx,
		Pool:     database,
		Orders:   orders,
		Payments: payments,
		Ledger:   ledger,
		Carts:    carts,
		Outbox:   events,
		Gateway:  breaker,
		Locker:   locker,
		Metrics:  counters,
	})

	co := checkout.NewService(checkout.Deps{
		Tx:        tx,
		Pool:      database,
		Carts:     carts,
		Ledger:    ledger,
		Orders:    orders,
		Payments:  payments,
		Users:     user.NewRepository(),
		Outbox:    events,
		Gateway:   breaker,
		Finalizer: rec,
		Metrics:   counters,
		Timeout:   cfg.CheckoutTimeout,
		Currency:  cfg.Currency,
	})

	a.limiter = middleware.NewRateLimiter(cfg.InternalSecretKey)

	h := &transport.Handler{
		Checkout:         co,
		Reconcile:        rec,
		Gateway:          breaker,
		Metrics:          counters,
		DB:               database,
		BreakerState:     func() string { return breaker.State().String() },
		ClientSuccessURL: cfg.ClientSuccessURL,
		ClientRetryURL:   cfg.ClientRetryURL,
	}

	a.handler = transport.NewRouter(h, transport.RouterDeps{
		Verifier:   auth.NewVerifier(cfg.JWTSecret),
		Authorizer: auth.NewRoleAuthorizer(),
		Limiter:    a.limiter,
	})
	return a
}

// start launches the background loops; they stop with ctx.
func (a *app) start(ctx context.Context) {
	go a.limiter.Run(ctx)
	if a.relay != nil {
		go a.relay.Run(ctx)
	}
}

func (a *app) close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			logger.L().Warn("close failed", zap.Error(err))
		}
	}
}
