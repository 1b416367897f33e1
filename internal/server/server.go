package server

import (
	"github.com/arpatil-dev/TrackORoute/internal/auth"
	"github.com/arpatil-dev/TrackORoute/internal/config"
	"github.com/arpatil-dev/TrackORoute/internal/match"
	"github.com/arpatil-dev/TrackORoute/internal/stream"
	"github.com/arpatil-dev/TrackORoute/internal/trip"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type Server struct {
	App    *fiber.App
	Cfg    config.Config
	DB     *pgxpool.Pool
	Redis  *redis.Client
	Stream *stream.Hub
}

func NewServer(cfg config.Config, db *pgxpool.Pool, redisClient *redis.Client) *Server {
	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())

	s := &Server{
		App:    app,
		Cfg:    cfg,
		DB:     db,
		Redis:  redisClient,
		Stream: stream.NewHub(redisClient),
	}

	registerRoutes(s)
	return s
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	jwtMiddleware := auth.JWTMiddleware(s.Cfg.JWTSecret)

	var matcher trip.Matcher
	if s.Cfg.MatchServiceURL != "" {
		matcher = match.New(s.Cfg.MatchServiceURL)
	}

	auth.RegisterRoutes(s.App.Group("/auth"), auth.NewService(s.Cfg.JWTSecret, s.DB))
	trip.RegisterRoutes(s.App.Group("/trips"), trip.NewService(s.DB, s.Stream), jwtMiddleware, matcher)
	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream)
}
