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

	"cloud.google.com/go/firestore"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"google.golang.org/api/option"

	fbapp "firebase.google.com/go/v4"

	"shopchat/internal/adapter/api"
	"shopchat/internal/adapter/api/handler"
	apimiddleware "shopchat/internal/adapter/api/middleware"
	"shopchat/internal/adapter/api/router"
	"shopchat/internal/adapter/repository"
	"shopchat/internal/infrastructure/firebase"
	"shopchat/internal/infrastructure/kafka"
	"shopchat/internal/infrastructure/ratelimit"
	"shopchat/internal/infrastructure/redisq"
	"shopchat/internal/infrastructure/websocket"
	"shopchat/internal/usecase"
	"shopchat/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var opt option.ClientOption

	// Service account from environment variable (production) or file path
	// (local development).
	serviceAccountJSON := os.Getenv("FIREBASE_SERVICE_ACCOUNT_JSON")
	if serviceAccountJSON != "" {
		log.Printf("Using Firebase service account from environment variable")
		opt = option.WithCredentialsJSON([]byte(serviceAccountJSON))
	} else {
		serviceAccountPath := os.Getenv("FIREBASE_SERVICE_ACCOUNT_PATH")
		if serviceAccountPath == "" {
			serviceAccountPath = "./service-account.json"
		}

		if _, err := os.Stat(serviceAccountPath); os.IsNotExist(err) {
			log.Fatalf("Service account file does not exist: %s", serviceAccountPath)
		}

		log.Printf("Using Firebase service account from file: %s", serviceAccountPath)
		opt = option.WithCredentialsFile(serviceAccountPath)
	}

	firebaseApp, err := fbapp.NewApp(ctx, &fbapp.Config{ProjectID: cfg.FirebaseProject}, opt)
	if err != nil {
		log.Fatalf("Failed to initialize Firebase: %v", err)
	}

	authClient, err := firebaseApp.Auth(ctx)
	if err != nil {
		log.Fatalf("Failed to initialize Firebase Auth: %v", err)
	}

	firestoreClient, err := firestore.NewClient(ctx, cfg.FirebaseProject, opt)
	if err != nil {
		log.Fatalf("Failed to create Firestore client: %v", err)
	}
	defer firestoreClient.Close()

	rdb, err := redisq.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisPoolSize)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer rdb.Close()

	var producer *kafka.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer, err = kafka.NewProducer(cfg.KafkaBrokers)
		if err != nil {
			log.Fatalf("Failed to connect to Kafka: %v", err)
		}
		defer producer.Close()
	} else {
		log.Printf("Kafka brokers not configured, audit events disabled")
	}

	messageRepo := repository.NewFirestoreMessageRepository(firestoreClient)
	conversationRepo := repository.NewFirestoreConversationRepository(firestoreClient)
	offlineRepo := repository.NewFirestoreOfflineMessageRepository(firestoreClient)

	firebaseAuthClient := firebase.NewFirebaseAuthClient(authClient)

	wsManager := websocket.NewManager()

	buffer := redisq.NewOfflineBuffer(rdb, time.Duration(cfg.OfflineTTLHours)*time.Hour)
	jobQueue := redisq.NewJobQueue(rdb)
	workerHealth := redisq.NewHealthMonitor(rdb, time.Duration(cfg.HeartbeatTTLSec)*time.Second)

	rateLimiter := ratelimit.NewRateLimiter()
	rateLimiter.StartCleanupRoutine()

	deliveryUseCase := usecase.NewDeliveryUseCase(
		messageRepo,
		conversationRepo,
		offlineRepo,
		wsManager,
		buffer,
		jobQueue,
		producer,
		rateLimiter,
		cfg.JobAttempts,
		cfg.JobBackoffMs,
	)
	offlinePushUseCase := usecase.NewOfflinePushUseCase(
		buffer,
		offlineRepo,
		wsManager,
		jobQueue,
		cfg.OfflineBatchSize,
		cfg.OfflineReloadSize,
		cfg.OfflineBatchDelay,
	)

	wsManager.SetHandler(deliveryUseCase)
	wsManager.Start(ctx)

	hostname, _ := os.Hostname()
	workerID := fmt.Sprintf("%s-%d", hostname, os.Getpid())
	worker := redisq.NewWorker(jobQueue, usecase.QueueOfflinePush, offlinePushUseCase.HandleJob, cfg.WorkerConcurrency, workerHealth, workerID)
	go worker.Run(ctx)

	offlinePushUseCase.StartSweep(ctx, time.Duration(cfg.SweepIntervalSec)*time.Second)

	handler.Setup(deliveryUseCase)
	handler.SetupHealthHandler(firebaseAuthClient, workerHealth)

	e := echo.New()

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	e.Validator = api.NewValidator()

	authMiddleware := apimiddleware.NewAuthMiddleware(firebaseAuthClient)
	wsHandler := handler.NewWebSocketHandler(wsManager, authMiddleware)

	router.Setup(e, authMiddleware)
	router.SetupWebSocketRouter(e, wsHandler)

	go func() {
		log.Printf("Starting server on port %s...", cfg.ServerPort)
		if err := e.Start(":" + cfg.ServerPort); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server stopped: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
}
