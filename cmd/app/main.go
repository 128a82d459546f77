package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/viltskaa/prometei/api"
	"github.com/viltskaa/prometei/config"
	"github.com/viltskaa/prometei/internal/bootstrap"
	"github.com/viltskaa/prometei/internal/cache"
	"github.com/viltskaa/prometei/internal/kafka"
	"github.com/viltskaa/prometei/internal/provider"
	"github.com/viltskaa/prometei/internal/service/flights"
	"github.com/viltskaa/prometei/internal/service/payment"
	"github.com/viltskaa/prometei/internal/service/purchase"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := provider.NewClient(cfg.Provider)
	redisCache := cache.NewRedisCache(
		cfg.Redis,
		time.Duration(cfg.Purchase.FavorsCacheTTLSeconds)*time.Second,
		time.Duration(cfg.Purchase.TicketsCacheTTLSeconds)*time.Second,
	)
	producer := kafka.NewProducer(cfg.Kafka.Brokers)
	defer producer.Close()
	publisher := kafka.NewPurchasePublisher(producer, cfg.Kafka.PurchaseTopic)

	flightService := flights.NewFlightService(client, redisCache)

	paymentCfg := payment.Config{
		Countdown:    time.Duration(cfg.Payment.CountdownSeconds) * time.Second,
		PollInterval: time.Duration(cfg.Payment.PollIntervalSeconds) * time.Second,
	}
	newSession := func(id string) purchase.PaymentSession {
		return payment.NewSession(id, paymentCfg, client, publisher)
	}

	manager := purchase.NewManager(
		purchase.ManagerConfig{
			SessionTTL:    time.Duration(cfg.Purchase.SessionTTLMinutes) * time.Minute,
			SweepInterval: time.Duration(cfg.Purchase.SweepMinutes) * time.Minute,
		},
		flightService,
		client,
		newSession,
	)
	go manager.Run(ctx)

	if err := bootstrap.Run(ctx, cfg, flightService, api.ManagerAdapter{Manager: manager}); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
