package cmd

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	pubnub "github.com/pubnub/go"
	"github.com/redis/go-redis/v9"

	"fila-zero/config"
	"fila-zero/handlers"
	_ "fila-zero/migrations"
	"fila-zero/monitoring"
	"fila-zero/notify"
	"fila-zero/security"
	"fila-zero/services"
	"fila-zero/store"
	"fila-zero/utils"
)

func Start() error {
	app := pocketbase.New()

	// Load configuration
	cfg := config.LoadConfig()

	// Initialize Redis only when something needs it
	var redisClient *redis.Client
	if cfg.StoreBackend == "redis" {
		redisClient = utils.NewRedisClient(cfg.RedisURL, cfg.RedisPassword, cfg.RedisDB)
		defer redisClient.Close()
	}

	// Notification hub
	hub := notify.NewHub(cfg.HubBufferSize)
	defer hub.Close()

	// Entry store selection
	var entryStore store.EntryStore
	switch cfg.StoreBackend {
	case "redis":
		entryStore = store.NewRedisStore(redisClient)
	case "pocketbase":
		entryStore = store.NewPocketBaseStore(app)
	default:
		entryStore = store.NewMemoryStore()
	}
	log.Printf("Using %s entry store", cfg.StoreBackend)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// PubNub realtime transport, attached as a hub sink
	if cfg.PubNubPublishKey != "" && cfg.PubNubSubscribeKey != "" {
		pnConfig := pubnub.NewConfig()
		pnConfig.PublishKey = cfg.PubNubPublishKey
		pnConfig.SubscribeKey = cfg.PubNubSubscribeKey
		pnConfig.SecretKey = cfg.PubNubSecretKey

		pn := pubnub.NewPubNub(pnConfig)

		publisher := notify.NewPubNubPublisher(pn, hub)
		go publisher.Run(ctx)
		log.Println("PubNub realtime transport enabled")
	} else {
		log.Println("PubNub keys not configured, realtime transport disabled")
	}

	// Initialize services
	monitor := monitoring.NewMonitor()
	queueService := services.NewQueueService(entryStore, hub, monitor)
	rateLimiter := security.NewRateLimiter(redisClient, cfg.JoinRateLimit, cfg.JoinRateWindow)

	// Initialize handlers
	queueHandler := handlers.NewQueueHandler(app, queueService, rateLimiter)

	// Enable migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: true,
	})

	// Setup graceful shutdown
	go handleShutdown(cancel)

	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		syncActiveEstablishments(app, redisClient)

		// Queue endpoints
		e.Router.POST("/api/queue", queueHandler.JoinQueue)
		e.Router.GET("/api/queue/{establishmentId}", queueHandler.GetQueue)
		e.Router.GET("/api/queue/{establishmentId}/all", queueHandler.GetAllEntries)
		e.Router.POST("/api/queue/{establishmentId}/call", queueHandler.CallNext)
		e.Router.POST("/api/queue/{establishmentId}/serve/{entryId}", queueHandler.ServeEntry)

		// Prometheus metrics
		if cfg.EnableMetrics {
			e.Router.GET("/metrics", func(e *core.RequestEvent) error {
				promhttp.Handler().ServeHTTP(e.Response, e.Request)
				return nil
			})
		}

		// Health check
		e.Router.GET("/api/health", func(e *core.RequestEvent) error {
			if redisClient != nil {
				if err := utils.RedisHealthCheck(redisClient); err != nil {
					return e.JSON(503, map[string]string{
						"status": "unhealthy",
						"error":  err.Error(),
					})
				}
			}
			return e.JSON(200, map[string]string{"status": "ok"})
		})

		log.Println("Server routes registered")

		return e.Next()
	})

	// Start server
	if err := app.Start(); err != nil {
		log.Fatal(err)
	}
	return nil
}

// syncActiveEstablishments mirrors the directory of active establishments
// into Redis so the realtime layer can validate channel joins cheaply. A
// missing collection (fresh database before automigrate) is not fatal.
func syncActiveEstablishments(app *pocketbase.PocketBase, redisClient *redis.Client) {
	ctx := context.Background()

	var records []dbx.NullStringMap
	if err := app.DB().NewQuery(
		"SELECT id FROM establishments WHERE status = 'active'",
	).All(&records); err != nil {
		log.Printf("Error fetching active establishments: %v", err)
		return
	}

	var ids []any
	for _, record := range records {
		if id := record["id"].String; id != "" {
			ids = append(ids, id)
		}
	}
	log.Printf("Found %d active establishments", len(ids))

	if redisClient == nil || len(ids) == 0 {
		return
	}

	redisClient.Del(ctx, "active_establishments")
	if err := redisClient.SAdd(ctx, "active_establishments", ids...).Err(); err != nil {
		slog.Error("Failed to sync active establishments to Redis", "error", err)
		return
	}
	log.Printf("Synced %d active establishments to Redis", len(ids))
}

// handleShutdown handles graceful shutdown
func handleShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	log.Println("Shutdown signal received, cleaning up...")
	cancel()
}
