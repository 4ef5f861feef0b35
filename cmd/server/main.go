package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"checkout-service/config"
	"checkout-service/internal/api"
	"checkout-service/internal/broker"
	"checkout-service/internal/checkout"
	"checkout-service/internal/models"
	"checkout-service/internal/payment"
	"checkout-service/internal/pricing"
	"checkout-service/internal/redisclient"
	"checkout-service/internal/store"
	"checkout-service/internal/storefront"
	"checkout-service/internal/util"
	"checkout-service/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting checkout service")

	tp, err := util.InitTracer("checkout-service", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicCheckout)
	defer producer.Close()
	log.Println("Kafka producer initialized")

	eventPublisher := broker.NewEventPublisher(producer)

	backend := storefront.NewClient(cfg.Storefront.BaseURL, cfg.Storefront.Timeout)
	pricer := pricing.NewEngine(cfg.Fees)

	// Payment adapters. Fallback chains: native gateway falls back to
	// web checkout, UPI falls back to the mock when no dispatch
	// capability is deployed.
	relay := payment.NewCallbackRelay()
	gateway := payment.NewRazorpayGateway(cfg.Gateway.KeyID, cfg.Gateway.KeySecret)

	mockAdapter := payment.NewMockAdapter(cfg.Mock.SuccessRate, cfg.Mock.Delay, nil)
	upiAdapter := payment.NewUpiAdapter(nil, cfg.Upi.PayeeVPA, cfg.Upi.PayeeName, mockAdapter)
	webAdapter := payment.NewGatewayWebAdapter(gateway, cfg.Gateway.Currency, cfg.Gateway.MerchantName, cfg.Gateway.CallbackURL, cfg.Gateway.PollInterval)
	nativeAdapter := payment.NewGatewayNativeAdapter(gateway, relay, cfg.Gateway.Currency, cfg.Gateway.MerchantName, webAdapter)

	adapters := map[models.MethodKind]payment.Adapter{
		models.MethodUpiApp:        upiAdapter,
		models.MethodUpiCustomID:   upiAdapter,
		models.MethodGatewayNative: nativeAdapter,
		models.MethodGatewayWeb:    webAdapter,
	}
	router := payment.NewRouter(adapters, redisClient, cfg.Payment.WatchdogTimeout)

	reconciler := checkout.NewReconciler(backend, pricer, router, db, redisClient, eventPublisher)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	checkoutConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicCheckout, cfg.Kafka.ConsumerGroup)
	reconcileWorker := worker.NewReconcileWorker(checkoutConsumer, db)
	go func() {
		if err := reconcileWorker.Start(workerCtx); err != nil {
			log.Printf("Reconcile worker error: %v", err)
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ginRouter := gin.Default()
	handler := api.NewHandler(reconciler, backend, pricer, relay, db, redisClient)
	handler.SetupRoutes(ginRouter)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: ginRouter,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	workerCancel()
	reconcileWorker.Stop()

	log.Println("Server exited")
}
