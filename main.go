package main

import (
	"log"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/swagger"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"junk-removal/tracking/config"
	_ "junk-removal/tracking/docs"
	"junk-removal/tracking/server"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	srv, err := server.NewServer(cfg)
	if err != nil {
		log.Fatal("Failed to initialize server:", err)
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		ErrorHandler: server.ErrorHandler,
	})

	// Middlewares
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New())
	app.Use(server.MetricsMiddleware())

	setupRoutes(app, srv)

	// Swagger
	app.Get("/swagger/*", swagger.HandlerDefault)

	// WebSocket live channel
	app.Use("/track", srv.ValidateToken)
	app.Get("/track", websocket.New(srv.HandleTrackingWebSocket))

	// Transition and location intake from the upstream authority
	go srv.ConsumeTransitions()
	go srv.ConsumeLocations()

	// Prometheus scrape endpoint on a side listener
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		log.Fatal(http.ListenAndServe(":"+cfg.Server.MetricsPort, mux))
	}()

	log.Printf("Tracking server starting on port %s", cfg.Server.Port)
	log.Fatal(app.Listen(":" + cfg.Server.Port))
}

func setupRoutes(app *fiber.App, srv *server.Server) {
	app.Get("/health", server.HealthCheck)

	v1 := app.Group("/api/v1")

	orders := v1.Group("/orders")
	orders.Get("/:id", srv.GetOrder)

	push := v1.Group("/push")
	push.Post("/subscriptions", srv.RegisterSubscription)
	push.Delete("/subscriptions/:deviceID", srv.RemoveSubscription)
}
