package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/auroramart/storefront/internal/cart"
	"github.com/auroramart/storefront/internal/checkout"
	"github.com/auroramart/storefront/internal/config"
	"github.com/auroramart/storefront/internal/currency"
	"github.com/auroramart/storefront/internal/database"
	"github.com/auroramart/storefront/internal/httpx"
	kafkax "github.com/auroramart/storefront/internal/kafka"
	"github.com/auroramart/storefront/internal/notify"
	"github.com/auroramart/storefront/internal/recommend"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		log.Fatalf("Connect to database: %v", err)
	}
	defer db.Close()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	defer rdb.Close()

	producer := kafkax.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.StatusTopic, 1024)
	producer.Start(ctx)

	carts := cart.NewStore(rdb, cfg.Redis.CartTTL)
	converter := currency.NewConverter(currency.DefaultRates())
	engine := checkout.NewEngine(db, carts, converter,
		&recommend.CoPurchase{DB: db},
		&notify.Kafka{Producer: producer},
		cfg.Pricing)

	router := httpx.NewRouter()
	handler := &httpx.Handler{
		DB:        db,
		Carts:     carts,
		Checkout:  engine,
		Converter: converter,
	}
	handler.Register(router)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Printf("Server starting on port %s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = server.Shutdown(shutdownCtx)

	cancel()
	producer.WaitClosed()
}
