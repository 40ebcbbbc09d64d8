package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dumu-tech/restaurant-orders/internal/adapters/http"
	"github.com/dumu-tech/restaurant-orders/internal/adapters/mongodb"
	"github.com/dumu-tech/restaurant-orders/internal/adapters/postgres"
	redisAdapter "github.com/dumu-tech/restaurant-orders/internal/adapters/redis"
	"github.com/dumu-tech/restaurant-orders/internal/config"
	"github.com/dumu-tech/restaurant-orders/internal/core"
	"github.com/dumu-tech/restaurant-orders/internal/events"
	"github.com/dumu-tech/restaurant-orders/internal/logger"
	"github.com/dumu-tech/restaurant-orders/internal/service"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer log.Sync()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	// Money goes over the wire as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	// Connect to Redis
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	if cfg.RedisPassword != "" {
		redisOpts.Password = cfg.RedisPassword
	}

	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()

	if err := rdb.Ping(connectCtx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	log.Info("redis connection established")

	// Connect to PostgreSQL
	dbpool, err := pgxpool.New(connectCtx, cfg.DBURL)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer dbpool.Close()

	if err := dbpool.Ping(connectCtx); err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	log.Info("postgres connection established")

	postgresRepo, err := postgres.Open(dbpool)
	if err != nil {
		return err
	}

	// Connect to MongoDB
	mongoStore, err := mongodb.Connect(connectCtx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer closeCancel()
		if err := mongoStore.Close(closeCtx); err != nil {
			log.Warn("failed to disconnect MongoDB", zap.Error(err))
		}
	}()

	if err := mongoStore.Ping(connectCtx); err != nil {
		return fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	log.Info("mongodb connection established")

	auditLog := mongodb.NewAuditLog(mongoStore.Database())
	if err := auditLog.EnsureIndexes(connectCtx); err != nil {
		log.Warn("audit index not created", zap.Error(err))
	}

	imageStore, err := mongodb.NewImageStore(mongoStore.Database(), cfg.PublicBaseURL)
	if err != nil {
		return err
	}

	// Events: publish through Redis, fan out locally from the relay
	bus := events.NewBus()
	broadcaster := redisAdapter.NewBroadcaster(rdb, cfg.EventsChannel)
	relay := redisAdapter.NewRelay(rdb, cfg.EventsChannel, bus, logger.Component(log, "relay"))
	feed := events.NewOrderFeed(bus, postgresRepo.OrderRepository())

	policy := core.AnyTransition
	if cfg.StrictTransitions {
		policy = core.StrictTransitions
	}

	cartRepo := redisAdapter.NewCartRepository(rdb)

	menuService := service.NewMenuService(postgresRepo.DishRepository(), imageStore, broadcaster, log)
	cartService := service.NewCartService(cartRepo, postgresRepo.DishRepository(), cfg.CartTTL)
	orderService := service.NewOrderService(service.OrderServiceConfig{
		Orders:     postgresRepo.OrderRepository(),
		UnitOfWork: postgresRepo,
		Carts:      cartRepo,
		Audit:      auditLog,
		Aggregator: service.NewStatsAggregator(log),
		Policy:     policy,
		Publisher:  broadcaster,
		Location:   loc,
		Logger:     log,
	})
	statsService := service.NewStatsService(postgresRepo.StatsRepository(), loc)

	httpHandler := http.NewHandler(menuService, cartService, orderService, imageStore, log)
	streamsCtx, stopStreams := context.WithCancel(ctx)
	defer stopStreams()
	dashboardHandler := http.NewDashboardHandler(streamsCtx, menuService, orderService, statsService, feed, log)

	app := fiber.New(fiber.Config{
		AppName:      "Restaurant Orders API",
		ServerHeader: "Fiber",
		BodyLimit:    10 * 1024 * 1024,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())

	http.RegisterRoutes(app, httpHandler, dashboardHandler, cfg.CartTTL)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return relay.Run(gctx)
	})

	g.Go(func() error {
		addr := fmt.Sprintf(":%s", cfg.AppPort)
		log.Info("server starting", zap.String("addr", addr), zap.Bool("strict_transitions", cfg.StrictTransitions))
		if err := app.Listen(addr); err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		// open SSE streams would otherwise hold the shutdown until its deadline
		stopStreams()
		return app.ShutdownWithTimeout(10 * time.Second)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
