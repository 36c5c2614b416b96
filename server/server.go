// Package server wires the tracking pipeline: AMQP transition intake,
// lifecycle fold against the snapshot store, websocket fan-out, push
// subscription REST, and the Kafka audit trail.
package server

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Shopify/sarama"
	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"github.com/streadway/amqp"

	"junk-removal/tracking/config"
	"junk-removal/tracking/directory"
	"junk-removal/tracking/models"
	"junk-removal/tracking/registry"
	"junk-removal/tracking/store"
)

type Server struct {
	config    *config.Config
	rdb       *redis.Client
	rabbitmq  *amqp.Connection
	kafka     sarama.SyncProducer
	orders    store.OrderStore
	directory directory.Directory
	events    *registry.Registry
	locations *registry.Registry

	// Last accepted location per order; the monotonic guard against
	// samples reordered by the transport.
	sampleMu    sync.Mutex
	lastSamples map[string]*models.LocationSample
}

func NewServer(cfg *config.Config) (*Server, error) {
	s := &Server{
		config:      cfg,
		events:      registry.New(cfg.Server.SubscriberBuffer),
		locations:   registry.New(cfg.Server.SubscriberBuffer),
		lastSamples: make(map[string]*models.LocationSample),
	}
	if err := s.initConnections(); err != nil {
		return nil, err
	}
	s.orders = store.NewRedis(s.rdb)
	s.directory = directory.NewRedis(s.rdb)
	return s, nil
}

func (s *Server) initConnections() error {
	s.rdb = redis.NewClient(&redis.Options{
		Addr:     s.config.Redis.Addr,
		Password: s.config.Redis.Password,
		DB:       s.config.Redis.DB,
	})

	// RabbitMQ connection with retry
	var rabbitmqConn *amqp.Connection
	var err error
	for i := 0; i < 5; i++ {
		log.Printf("Attempting to connect to RabbitMQ (attempt %d/5)...", i+1)
		rabbitmqConn, err = amqp.Dial(s.config.RabbitMQ.URL)
		if err == nil {
			break
		}
		if i < 4 {
			log.Printf("Failed to connect to RabbitMQ: %v. Retrying in 5 seconds...", err)
			time.Sleep(5 * time.Second)
		}
	}
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ after 5 attempts: %v", err)
	}
	s.rabbitmq = rabbitmqConn

	kafkaConfig := sarama.NewConfig()
	kafkaConfig.Producer.Return.Successes = true
	producer, err := sarama.NewSyncProducer(s.config.Kafka.Brokers, kafkaConfig)
	if err != nil {
		return fmt.Errorf("failed to create Kafka producer: %v", err)
	}
	s.kafka = producer

	return nil
}

// logEvent appends one record to the Kafka audit trail.
func (s *Server) logEvent(event map[string]interface{}) error {
	event["timestamp"] = time.Now().Unix()
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	_, _, err = s.kafka.SendMessage(&sarama.ProducerMessage{
		Topic: s.config.Kafka.Topic,
		Value: sarama.StringEncoder(data),
	})
	return err
}

func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}

func HealthCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "ok",
		"time":   time.Now(),
	})
}
