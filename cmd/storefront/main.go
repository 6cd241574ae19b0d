package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-omise-storefront/internal/app"
	"github.com/ariefcatur/go-omise-storefront/internal/config"
	"github.com/ariefcatur/go-omise-storefront/internal/httpx"
	"github.com/ariefcatur/go-omise-storefront/internal/orders"
	"github.com/ariefcatur/go-omise-storefront/internal/session"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deps, err := app.Build(ctx, cfg)
	if err != nil {
		log.Fatalf("startup: %v", err)
	}

	pages, err := httpx.NewPages(deps.Money)
	if err != nil {
		log.Fatalf("templates: %v", err)
	}
	sessions := &httpx.Sessions{
		Store:   deps.Sessions,
		Cookies: session.NewCookies(cfg.SessionSecret, cfg.PreferredURLScheme == "https", cfg.SessionTTL),
		Orders:  deps.Checkout,
		Log:     deps.Log,
	}

	router := httpx.NewRouter(deps.Metrics, cfg.RequestTimeout())
	(&httpx.StoreHandler{
		Catalog:  deps.Catalog,
		Sessions: sessions,
		Pages:    pages,
		Assets:   os.DirFS(cfg.AssetsDir),
		Static:   os.DirFS(cfg.StaticDir),
		Log:      deps.Log,
	}).Register(router)
	(&httpx.CheckoutHandler{
		Service:   deps.Checkout,
		Catalog:   deps.Catalog,
		Sessions:  sessions,
		Pages:     pages,
		PublicKey: cfg.OmisePublicKey,
		Currency:  deps.Money.Currency(),
		Scheme:    cfg.PreferredURLScheme,
		Log:       deps.Log,
	}).Register(router)
	wh := &httpx.WebhookHandler{
		Service:     deps.Checkout,
		Timeout:     cfg.GatewayTimeout,
		Log:         deps.Log,
		ServiceName: cfg.ServiceName,
	}
	if cfg.KafkaEnabled() {
		wh.Inbox = deps.Producer(ctx, orders.TopicWebhookReceived)
	}
	wh.Register(router)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("storefront listening at %s (kafka=%t journal=%t)", cfg.HTTPAddr, cfg.KafkaEnabled(), cfg.PostgresDSN != "")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	wh.Drain(shutdownCtx)
	deps.Close() // flushes producers before the connections close
	cancel()
}
