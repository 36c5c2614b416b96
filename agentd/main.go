package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"junk-removal/tracking/agent"
	"junk-removal/tracking/config"
)

// consoleSink is the default NotificationSink for headless runs. Native
// hosts plug their own implementation in.
type consoleSink struct{}

func (consoleSink) Notify(_ context.Context, n agent.Notification) error {
	log.Printf("notification %s: %s — %s", n.ID, n.Title, n.Body)
	return nil
}

func (consoleSink) Close(_ context.Context, id string) error {
	log.Printf("notification %s closed", id)
	return nil
}

// consoleWindows logs the navigation target instead of driving a window.
type consoleWindows struct{}

func (consoleWindows) FocusExisting(_ context.Context, _ string) bool { return false }

func (consoleWindows) Open(_ context.Context, path string) error {
	log.Printf("open window at %s", path)
	return nil
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	deviceID := os.Getenv("DEVICE_ID")
	if deviceID == "" {
		deviceID = uuid.NewString()
		log.Printf("DEVICE_ID not set, using %s", deviceID)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	cache := agent.NewStaticCache(agent.NewRedisCache(rdb), cfg.Agent.CacheVersion, cfg.Agent.Origin)
	a := agent.New(cache, consoleSink{}, consoleWindows{}, deviceID, cfg.RabbitMQ.URL, cfg.Agent.PushQueuePrefix)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		cancel()
	}()

	if err := a.Install(ctx); err != nil {
		// A cold cache degrades freshness, never availability.
		log.Printf("Install incomplete: %v", err)
	}

	log.Printf("Delivery agent running for device %s", deviceID)
	a.Run(ctx)
	a.Close()
}
