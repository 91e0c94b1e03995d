package server

import (
	"backend-nearvibe/internal/adventure"
	"backend-nearvibe/internal/auth"
	"backend-nearvibe/internal/config"
	"backend-nearvibe/internal/itinerary"
	"backend-nearvibe/internal/journal"
	"backend-nearvibe/internal/metrics"
	"backend-nearvibe/internal/shared/apperr"
	"backend-nearvibe/internal/storage"
	"backend-nearvibe/internal/stream"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	App    *fiber.App
	Cfg    config.Config
	DB     *pgxpool.Pool
	Redis  *redis.Client
	Stream *stream.Hub
	Log    *zap.Logger

	Auth       *auth.Service
	Adventures *adventure.Service
}

// NewServer wires every feature onto a fiber app. store may be nil, in which
// case uploads answer 503.
func NewServer(cfg config.Config, db *pgxpool.Pool, redisClient *redis.Client, store storage.ObjectStore, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}

	app := fiber.New(fiber.Config{
		ErrorHandler:          apperr.Handler,
		DisableStartupMessage: cfg.Env == "test",
	})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(metrics.Middleware())

	s := &Server{
		App:    app,
		Cfg:    cfg,
		DB:     db,
		Redis:  redisClient,
		Stream: stream.NewHub(redisClient, log.Named("stream")),
		Log:    log,
	}

	registerRoutes(s, store)
	return s
}

func registerRoutes(s *Server, store storage.ObjectStore) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	s.App.Get("/metrics", metrics.Handler())

	jwtMiddleware := auth.JWTMiddleware(s.Cfg.JWTSecret)
	optionalJWT := auth.OptionalJWTMiddleware(s.Cfg.JWTSecret)

	cache := adventure.NewCache(s.Redis, s.Cfg.DiscoveryCacheTTL, s.Log.Named("cache"))
	s.Auth = auth.NewService(s.Cfg.JWTSecret, s.DB)
	s.Adventures = adventure.NewService(s.DB, cache, s.Stream, s.Log.Named("adventure"))

	uploads := storage.NewService(s.DB, store, storage.Options{
		Bucket:    s.Cfg.MinioBucket,
		PublicURL: s.Cfg.MinioPublicURL,
		URLTTL:    s.Cfg.UploadURLTTL,
	}, s.Log.Named("storage"))

	auth.RegisterRoutes(s.App.Group("/auth"), s.Auth, s.Log.Named("auth"))
	adventure.RegisterRoutes(s.App.Group("/adventures"), s.Adventures, jwtMiddleware, s.Log.Named("adventure"))
	itinerary.RegisterRoutes(s.App.Group("/itineraries"), itinerary.NewService(s.DB, s.Log.Named("itinerary")), jwtMiddleware, optionalJWT, s.Log.Named("itinerary"))
	journal.RegisterRoutes(s.App.Group("/logs"), journal.NewService(s.DB, s.Log.Named("journal")), jwtMiddleware, optionalJWT, s.Log.Named("journal"))
	storage.RegisterRoutes(s.App.Group("/storage"), uploads, jwtMiddleware, s.Log.Named("storage"))
	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream)
}
