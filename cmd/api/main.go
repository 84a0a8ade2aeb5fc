package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-storefront.git/internal/auth"
	"github.com/ariefcatur/go-storefront.git/internal/checkout"
	"github.com/ariefcatur/go-storefront.git/internal/config"
	"github.com/ariefcatur/go-storefront.git/internal/httpx"
	kafkax "github.com/ariefcatur/go-storefront.git/internal/kafka"
	"github.com/ariefcatur/go-storefront.git/internal/logging"
	"github.com/ariefcatur/go-storefront.git/internal/payfast"
	"github.com/ariefcatur/go-storefront.git/internal/payments"
	"github.com/ariefcatur/go-storefront.git/internal/paypal"
	"github.com/ariefcatur/go-storefront.git/internal/postgres"
	"github.com/ariefcatur/go-storefront.git/internal/redisx"
	"github.com/ariefcatur/go-storefront.git/internal/shop"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logging.New(cfg.ServiceName, cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Error("db connect", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	cache := &redisx.Cache{R: rdb}

	// Kafka producer (satu writer, topic per message)
	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024, log)
	prod.Start(ctx)

	repo := &shop.Repo{DB: db}
	issuer := auth.NewTokenIssuer(cfg.JWTSecret)

	checkoutSvc := &checkout.Service{
		Store:       repo,
		Producer:    prod,
		Cache:       cache,
		ServiceName: cfg.ServiceName,
		Log:         log,
	}
	paymentsSvc := &payments.Service{
		Store:  repo,
		Paypal: paypal.New(cfg.PaypalClientID, cfg.PaypalSecret, cfg.PaypalMode),
		Payfast: payfast.Config{
			MerchantID:  cfg.PayfastMerchantID,
			MerchantKey: cfg.PayfastMerchantKey,
			Passphrase:  cfg.PayfastPassphrase,
			Mode:        cfg.PayfastMode,
		},
		Cache:       cache,
		Producer:    prod,
		BaseURL:     cfg.BaseURL,
		Currency:    cfg.PaypalCurrency,
		ServiceName: cfg.ServiceName,
		Log:         log,
	}

	router := httpx.NewRouter()
	(&httpx.AuthHandler{Users: repo, Issuer: issuer, Log: log}).Register(router)
	(&httpx.ProductsHandler{Store: repo, Issuer: issuer, Log: log}).Register(router)
	(&httpx.OrdersHandler{Checkout: checkoutSvc, Store: repo, Issuer: issuer, Log: log}).Register(router)
	(&httpx.PaymentsHandler{Svc: paymentsSvc, Issuer: issuer, Log: log}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Info("HTTP listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("listen", "err", err)
			os.Exit(1)
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prod.Close()      // tutup inbox -> flush & close writer
	prod.WaitClosed() // drain
}
