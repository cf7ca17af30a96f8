package main

import (
	"context"
	"os"
	"strconv"
	"time"

	"govdata-backend/analytics"
	"govdata-backend/cache"
	"govdata-backend/controllers"
	"govdata-backend/database"
	"govdata-backend/gateway"
	"govdata-backend/logging"
	"govdata-backend/middlewares"
	"govdata-backend/routes"
	"govdata-backend/tracking"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"go.uber.org/zap"
)

// envInt reads an int env var with a default fallback.
func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func main() {
	log := logging.New()
	defer log.Sync()

	// ---- Database
	database.Connect()
	database.AutoMigrate()
	if err := database.Migrate(); err != nil {
		log.Fatal("schema migration failed", zap.Error(err))
	}

	// ---- Core components
	cacheStore := cache.NewStore(database.DB, log)
	tracker := tracking.NewTracker(database.DB, log)
	recorder := tracking.NewRecorder(database.DB, log, tracking.DefaultCounterConfig())
	aggregator := analytics.NewAggregator(database.DB, log)

	upstreamBase := os.Getenv("WATHQ_BASE_URL")
	if upstreamBase == "" {
		upstreamBase = "https://api.wathq.sa/v5"
	}
	upstream := gateway.NewHTTPUpstreamClient(upstreamBase)
	creds := gateway.NewDBCredentialResolver(database.DB)
	gw := gateway.New(database.DB, cacheStore, tracker, upstream, creds, log)

	controllers.Setup(gw, cacheStore, aggregator)

	// ---- Request summary rollup (off the live path)
	rollup := tracking.NewRollupWorker(database.DB, log, tracking.RollupConfig{
		PollInterval: time.Duration(envInt("ROLLUP_INTERVAL_SECONDS", 300)) * time.Second,
	})
	go rollup.RunForever(context.Background())

	// ---- Limits (configurable via env)
	// Fiber default BodyLimit is 4 * 1024 * 1024 bytes if unset (per docs).
	// We allow overriding with BODY_LIMIT_BYTES or BODY_LIMIT_MB.
	bodyLimitBytes := envInt("BODY_LIMIT_BYTES", 0)
	if bodyLimitBytes <= 0 {
		bodyLimitBytes = envInt("BODY_LIMIT_MB", 4) * 1024 * 1024
	}

	// ---- Fiber app with global error handler + body limit
	app := fiber.New(fiber.Config{
		ErrorHandler: middlewares.NewErrorHandler(log),
		BodyLimit:    bodyLimitBytes,
	})

	// ---- CORS
	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "*"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowCredentials: false, // using Bearer tokens, not cookies
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Idempotency-Key",
	}))

	// ---- Traffic accounting. Registered ahead of the limiter so a
	// rate-limited request still produces its counter row.
	app.Use(middlewares.RequestCounter(recorder))

	// ---- Global rate limiter (applies to all routes; tune via env)
	rlMax := envInt("RATE_LIMIT_MAX", 60)                                            // default 60 reqs
	rlWindow := time.Duration(envInt("RATE_LIMIT_WINDOW_SECONDS", 60)) * time.Second // default 60s window
	app.Use(limiter.New(limiter.Config{
		Max:        rlMax,
		Expiration: rlWindow,
		// Default KeyGenerator = client IP; default 429 handler is fine.
		// See: https://docs.gofiber.io/api/middleware/limiter
	}))

	// ---- Routes
	routes.Register(app)

	// ---- Start
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Info("API server starting", zap.String("port", port))
	if err := app.Listen(":" + port); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}
