package main

import (
	"context"
	"log"

	api "loopchat-backend/cmd/api"
	"loopchat-backend/internal/account"
	accountDelivery "loopchat-backend/internal/account/delivery"
	authUsecase "loopchat-backend/internal/auth/usecase"
	chatDelivery "loopchat-backend/internal/chat/delivery"
	"loopchat-backend/internal/chat/domain"
	"loopchat-backend/internal/chat/repository"
	"loopchat-backend/internal/events"
	"loopchat-backend/internal/janitor"
	"loopchat-backend/internal/notification"
	"loopchat-backend/internal/resilience"
	"loopchat-backend/pkg/blob"
	"loopchat-backend/pkg/config"
	"loopchat-backend/pkg/database"
	"loopchat-backend/pkg/fcm"
	"loopchat-backend/pkg/realtime"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.NewPostgresConnection(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Auto-migrate database schemas
	if err := db.AutoMigrate(
		&domain.User{}, &domain.Session{}, &domain.SecurityEvent{},
		&domain.UserSettings{}, &domain.Contact{}, &domain.DeviceToken{},
		&domain.ChatRoom{}, &domain.RoomMember{}, &domain.Message{},
		&domain.Call{}, &domain.Story{}, &domain.StoryReply{},
		&domain.StoryReaction{}, &domain.Follower{}, &domain.BackupJob{},
		&domain.BackupItem{}, &domain.NotificationPreference{},
		&domain.Block{}, &domain.Report{}, &domain.Notification{},
		&domain.ProcessedEvent{},
	); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// Initialize repositories (dependency injection)
	userRepo := repository.NewUserRepository(db)
	tokenRepo := repository.NewTokenRepository(db)
	roomRepo := repository.NewRoomRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	callRepo := repository.NewCallRepository(db)
	storyRepo := repository.NewStoryRepository(db)
	backupRepo := repository.NewBackupRepository(db)
	prefRepo := repository.NewPreferenceRepository(db)
	blockRepo := repository.NewBlockRepository(db)
	reportRepo := repository.NewReportRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	eventRepo := repository.NewEventRepository(db)

	// Resilience layer: one breaker per dependency plus the rate limiter
	breakers := resilience.NewRegistry()
	dbBreaker := breakers.Get(resilience.BreakerDatabase)
	rtBreaker := breakers.Get(resilience.BreakerRealtime)
	pushBreaker := breakers.Get(resilience.BreakerPushGateway)
	limiter := resilience.NewDefaultRateLimiter()
	defer limiter.Stop()

	// Realtime presence store
	rtStore := realtime.NewStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err := rtStore.Ping(context.Background()); err != nil {
		log.Printf("[WARN] Realtime store unreachable at startup: %v", err)
	}

	// Media storage (optional)
	var blobStore *blob.Store
	if cfg.StorageBucket != "" {
		blobStore, err = blob.NewStore(context.Background(), cfg.StorageBucket, cfg.FirebaseCredentials)
		if err != nil {
			log.Printf("[WARN] Failed to initialize storage client (media cleanup disabled): %v", err)
		}
	}

	// Push gateway (optional: notification fan-out disabled without it)
	var fcmClient *fcm.Client
	if cfg.FirebaseCredentials != "" {
		fcmClient, err = fcm.NewClient(context.Background(), cfg.FirebaseCredentials)
		if err != nil {
			log.Printf("[WARN] Failed to initialize FCM client (push disabled): %v", err)
		}
	}

	// Notification pipeline
	resolver := notification.NewTokenResolver(tokenRepo, dbBreaker)
	var dispatcher *notification.Dispatcher
	if fcmClient != nil {
		deliveryEngine := notification.NewDeliveryEngine(fcmClient, resolver, pushBreaker)
		dispatcher = notification.NewDispatcher(prefRepo, resolver, deliveryEngine, dbBreaker)
	}

	// Cascade deletion engine. The blob store interface stays nil when no
	// bucket is configured; a typed nil would dodge the engine's nil check.
	var mediaStore account.MediaStore
	if blobStore != nil {
		mediaStore = blobStore
	}
	cascade := account.NewCascadeEngine(
		userRepo, tokenRepo, roomRepo, callRepo, storyRepo, backupRepo,
		blockRepo, reportRepo, notificationRepo, rtStore, mediaStore,
	)

	// Event pipeline (requires both a dispatcher and a project ID)
	if cfg.GoogleProjectID != "" && dispatcher != nil {
		executor := events.NewExecutor(dispatcher, roomRepo, cascade, dbBreaker)
		consumer, err := events.NewConsumer(
			cfg.GoogleProjectID, cfg.EventTopic, cfg.FirebaseCredentials,
			eventRepo, userRepo, roomRepo, storyRepo, executor, cfg.HandlerTimeout,
		)
		if err != nil {
			log.Printf("[ERROR] Failed to initialize event consumer: %v", err)
		} else {
			go consumer.Start(context.Background())
		}
	} else {
		log.Printf("[WARN] Event consumer disabled (project ID or push gateway missing)")
	}

	// Janitors
	var validator janitor.TokenValidator
	if fcmClient != nil {
		validator = fcmClient
	}
	var mediaDeleter janitor.MediaDeleter
	if blobStore != nil {
		mediaDeleter = blobStore
	}
	sweeper := janitor.NewSweeper(
		roomRepo, messageRepo, storyRepo, callRepo, tokenRepo, eventRepo,
		rtStore, validator, mediaDeleter,
	)
	scheduler := janitor.NewScheduler(cfg.HandlerTimeout, sweeper.Jobs()...)
	scheduler.Start()
	defer scheduler.Stop()

	// HTTP layer
	authUc := authUsecase.NewAuthUsecase(cfg)
	presenceHandler := chatDelivery.NewPresenceHandler(rtStore, rtBreaker)
	statusHandler := chatDelivery.NewStatusHandler(messageRepo, roomRepo, rtStore, dbBreaker, rtBreaker)
	tokenHandler := chatDelivery.NewTokenHandler(tokenRepo, dbBreaker)
	accountHandler := accountDelivery.NewAccountHandler(blockRepo, reportRepo, cascade, dbBreaker)

	handler := api.NewHandler(authUc, limiter, breakers, presenceHandler, statusHandler, tokenHandler, accountHandler)

	log.Printf("Server starting on port %s", cfg.Port)
	if err := handler.Start(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
