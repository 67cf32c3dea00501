package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"event-rewards-service/internal/app"
	"event-rewards-service/internal/config"
	"event-rewards-service/internal/infra/memory"
	infrapg "event-rewards-service/internal/infra/postgres"
	infraredis "event-rewards-service/internal/infra/redis"
	transport "event-rewards-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the rewards server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 24*time.Hour)
	catalogTTL := config.TTLDuration(cfg.Catalog.TTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	// Catalog: Postgres when configured, demo content otherwise.
	var loader memory.CatalogLoader
	if pool != nil {
		loader = infrapg.NewCatalogLoader(pool)
	} else {
		events, merch := sampleCatalog()
		loader = memory.NewStaticCatalogLoader(events, merch)
	}

	var events app.EventCatalog
	var merch app.MerchCatalog
	if redisClient != nil {
		catalog := infraredis.NewCatalog(redisClient, loader, catalogTTL)
		events, merch = catalog, catalog
	} else {
		catalog := memory.NewCatalog(loader, catalogTTL)
		events, merch = catalog, catalog
	}

	// Audit fan-out: process log, live websocket feed, and the Redis
	// stream when Redis is configured.
	feed := app.NewBroadcaster()
	sinks := app.MultiSink{app.LogSink{}, feed}
	if redisClient != nil {
		sinks = append(sinks, infraredis.NewStreamSink(redisClient, cfg.Audit.Stream, cfg.Audit.MaxLen))
	}

	var ledger app.Ledger
	var inventory app.Inventory
	if redisClient != nil {
		ledger = infraredis.NewLedger(redisClient, sinks)
		redisInventory := infraredis.NewInventory(redisClient)
		catalogItems, err := loader.LoadMerchList(ctx)
		if err != nil {
			return err
		}
		if err := redisInventory.Seed(ctx, catalogItems); err != nil {
			return err
		}
		inventory = redisInventory
	} else {
		ledger = memory.NewLedger(sinks)
		catalogItems, err := loader.LoadMerchList(ctx)
		if err != nil {
			return err
		}
		inventory = memory.NewInventory(catalogItems)
	}

	var records app.ParticipationRepository
	if redisClient != nil {
		records = infraredis.NewParticipationStore(redisClient, redisTTL)
	} else {
		records = memory.NewParticipationStore()
	}

	var orders app.OrderRepository
	if pool != nil {
		orders = infrapg.NewOrderStore(pool)
	} else {
		orders = memory.NewOrderStore()
	}

	participation := app.NewParticipationService(events, records, ledger)
	rewards := app.NewRewardsService(merch, inventory, ledger, orders)

	ready := func(ctx context.Context) error {
		if pool != nil {
			return pool.Ping(ctx)
		}
		return nil
	}
	handler := transport.NewHandler(participation, rewards, ledger, feed, ready)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      handler.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting rewards service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
