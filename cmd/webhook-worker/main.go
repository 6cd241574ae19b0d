package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ariefcatur/go-omise-storefront/internal/app"
	"github.com/ariefcatur/go-omise-storefront/internal/config"
	kafkax "github.com/ariefcatur/go-omise-storefront/internal/kafka"
	"github.com/ariefcatur/go-omise-storefront/internal/orders"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if !cfg.KafkaEnabled() {
		log.Fatalf("KAFKA_BROKERS is required for the webhook worker")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deps, err := app.Build(ctx, cfg)
	if err != nil {
		log.Fatalf("startup: %v", err)
	}

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.WebhookGroup, orders.TopicWebhookReceived, cfg.WebhookWorkers, deps.Log)
	dead := kafkax.NewDeadLetterWriter(cfg.KafkaBrokers, orders.TopicWebhookDead)
	cons.DeadLetter = dead
	done := make(chan struct{})
	go func() {
		defer close(done)
		log.Printf("webhook consumer started: group=%s topic=%s workers=%d", cfg.WebhookGroup, orders.TopicWebhookReceived, cfg.WebhookWorkers)
		if err := cons.Start(ctx, deps.Checkout.HandleWebhookMessage); err != nil {
			log.Printf("consumer exit: %v", err)
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Println("shutting down consumer...")
	cancel()
	<-done
	if err := dead.Close(); err != nil {
		log.Printf("dead letter writer close: %v", err)
	}
	deps.Close()
}
