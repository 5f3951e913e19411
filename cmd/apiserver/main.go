package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	redisDriver "github.com/redis/go-redis/v9"

	"safelink/internal/activity"
	"safelink/internal/config"
	"safelink/internal/geo"
	"safelink/internal/handlers/apiserver"
	appKafka "safelink/internal/kafka"
	"safelink/internal/middleware"
	"safelink/internal/notify"
	"safelink/internal/presence"
	"safelink/internal/push"
	"safelink/internal/realtime"
	appRedis "safelink/internal/redis"
	"safelink/internal/services"
	"safelink/internal/storage"
)

func main() {
	// 1. Load configuration
	cfg, err := config.LoadConfig("")
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	log.Printf("%s %s starting", cfg.AppName, cfg.AppVersion)

	// 2. Database
	db, err := storage.InitDB(cfg.Database)
	if err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}
	if err := storage.AutoMigrateTables(db); err != nil {
		log.Fatalf("database migration failed: %v", err)
	}
	log.Println("database ready")

	// 3. Redis
	redisClient := redisDriver.NewClient(&redisDriver.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		log.Fatalf("failed to connect to Redis: %v", err)
	}
	log.Println("connected to Redis")

	tokenBlacklist := appRedis.NewRedisTokenBlacklist(redisClient)
	requestLimiter := appRedis.NewRedisRequestLimiter(redisClient)

	// 4. Repositories
	userRepo := storage.NewGormUserRepository(db)
	relRepo := storage.NewGormRelationshipRepository(db)
	alertRepo := storage.NewGormAlertRepository(db)
	subRepo := storage.NewGormSubscriptionRepository(db)
	activityRepo := storage.NewGormActivityRepository(db)

	// 5. Kafka producer (activity log transport)
	kfkProducer, err := appKafka.NewConfluentKafkaProducer(cfg.Kafka)
	if err != nil {
		log.Fatalf("failed to create Kafka producer: %v", err)
	}
	defer kfkProducer.Close()
	activityWriter := activity.NewKafkaWriter(kfkProducer, cfg.Kafka)

	// 6. Push sender; optional, live delivery still works without it
	var pushSender push.Sender
	if cfg.Push.Enabled {
		sender, err := push.NewFCMSender(context.Background(), cfg.Push.CredentialsFile)
		if err != nil {
			log.Printf("WARNING: push disabled, FCM initialization failed: %v", err)
		} else {
			pushSender = sender
			log.Println("FCM push sender ready")
		}
	}

	// 7. Presence registry and delivery gateway
	registry := presence.NewMemoryRegistry()
	gateway := notify.NewGateway(registry, subRepo, pushSender, cfg.Push.SendTimeout)

	// 8. Services
	authService := services.NewAuthService(userRepo, tokenBlacklist, cfg.Auth)
	userService := services.NewUserService(userRepo)
	friendService := services.NewFriendService(userRepo, relRepo, requestLimiter, gateway, activityWriter, cfg.Limits, cfg.Presence.OnlineThreshold)
	geocoder := geo.NewNominatimGeocoder(cfg.Geocode.BaseURL, cfg.Geocode.Timeout)
	sosService := services.NewSOSService(userRepo, alertRepo, friendService, geocoder, gateway, activityWriter, cfg.SOS)
	statusService := services.NewStatusService(userRepo, friendService, gateway, activityWriter)

	// 9. Handlers
	authHandler := apiserver.NewAuthHandler(authService)
	userHandler := apiserver.NewUserHandler(userService)
	friendHandler := apiserver.NewFriendHandler(friendService)
	sosHandler := apiserver.NewSOSHandler(sosService)
	statusHandler := apiserver.NewStatusHandler(statusService)
	subHandler := apiserver.NewSubscriptionHandler(subRepo)
	activityHandler := apiserver.NewActivityHandler(activityRepo)
	wsHandler := realtime.NewHandler(registry, userRepo, cfg.WebSocket)

	// 10. Routes
	r := mux.NewRouter()

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)

	authRouter := r.PathPrefix("/api/v1/auth").Subrouter()
	authRouter.HandleFunc("/register", authHandler.RegisterHandler).Methods(http.MethodPost)
	authRouter.HandleFunc("/login", authHandler.LoginHandler).Methods(http.MethodPost)

	authMW := middleware.AuthMiddleware(cfg.Auth.JWTSecretKey, tokenBlacklist)

	apiRouter := r.PathPrefix("/api/v1").Subrouter()
	apiRouter.Use(authMW)

	apiRouter.HandleFunc("/auth/logout", authHandler.LogoutHandler).Methods(http.MethodPost)

	apiRouter.HandleFunc("/users/me", userHandler.GetMeHandler).Methods(http.MethodGet)
	apiRouter.HandleFunc("/users/me", userHandler.UpdateMeHandler).Methods(http.MethodPut)
	apiRouter.HandleFunc("/users/me/location", userHandler.UpdateLocationHandler).Methods(http.MethodPut)
	apiRouter.HandleFunc("/users/search", userHandler.SearchUsersHandler).Methods(http.MethodGet)

	apiRouter.HandleFunc("/friends", friendHandler.ListFriendsHandler).Methods(http.MethodGet)
	apiRouter.HandleFunc("/friends/{userID:[0-9]+}", friendHandler.RemoveFriendHandler).Methods(http.MethodDelete)

	friendReqRouter := apiRouter.PathPrefix("/friend-requests").Subrouter()
	friendReqRouter.HandleFunc("", friendHandler.SendRequestHandler).Methods(http.MethodPost)
	friendReqRouter.HandleFunc("", friendHandler.ListRequestsHandler).Methods(http.MethodGet)
	friendReqRouter.HandleFunc("/{requestID:[0-9]+}", friendHandler.CancelRequestHandler).Methods(http.MethodDelete)
	friendReqRouter.HandleFunc("/{requestID:[0-9]+}/accept", friendHandler.RespondHandler(true)).Methods(http.MethodPost)
	friendReqRouter.HandleFunc("/{requestID:[0-9]+}/reject", friendHandler.RespondHandler(false)).Methods(http.MethodPost)

	apiRouter.HandleFunc("/blocks/{userID:[0-9]+}", friendHandler.BlockHandler).Methods(http.MethodPost)
	apiRouter.HandleFunc("/blocks/{userID:[0-9]+}", friendHandler.UnblockHandler).Methods(http.MethodDelete)

	sosRouter := apiRouter.PathPrefix("/sos").Subrouter()
	sosRouter.HandleFunc("", sosHandler.CreateAlertHandler).Methods(http.MethodPost)
	sosRouter.HandleFunc("/mine", sosHandler.ListMineHandler).Methods(http.MethodGet)
	sosRouter.HandleFunc("/received", sosHandler.ListReceivedHandler).Methods(http.MethodGet)
	sosRouter.HandleFunc("/{alertID:[0-9]+}/cancel", sosHandler.CancelAlertHandler).Methods(http.MethodPost)
	sosRouter.HandleFunc("/{alertID:[0-9]+}/resolve", sosHandler.ResolveAlertHandler).Methods(http.MethodPost)

	apiRouter.HandleFunc("/status/safe-home", statusHandler.SafeHomeHandler).Methods(http.MethodPost)
	apiRouter.HandleFunc("/status/message", statusHandler.QuickMessageHandler).Methods(http.MethodPost)

	apiRouter.HandleFunc("/push-subscriptions", subHandler.RegisterHandler).Methods(http.MethodPost)
	apiRouter.HandleFunc("/push-subscriptions", subHandler.UnregisterHandler).Methods(http.MethodDelete)

	apiRouter.HandleFunc("/activity", activityHandler.ListHandler).Methods(http.MethodGet)

	// Websocket endpoint, same auth middleware (token via query parameter)
	wsRouter := r.PathPrefix("/ws").Subrouter()
	wsRouter.Use(authMW)
	wsRouter.HandleFunc("", wsHandler.ServeWS).Methods(http.MethodGet)

	// 11. Kafka consumer: persists published activity entries as feed rows
	activityConsumer, err := appKafka.NewConfluentKafkaConsumer(cfg.Kafka)
	if err != nil {
		log.Fatalf("failed to create activity consumer: %v", err)
	}
	defer activityConsumer.Close()

	consumerCtx, cancelConsumers := context.WithCancel(context.Background())
	defer cancelConsumers()

	consumerHandler := activity.NewConsumerHandler(activityRepo)
	go func() {
		topics := []string{cfg.Kafka.ActivityTopic}
		err := activityConsumer.Consume(consumerCtx, topics, cfg.Kafka.ConsumerGroup, consumerHandler.Handle)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("activity consumer error: %v", err)
		}
		log.Println("activity consumer stopped")
	}()

	// 12. Stale-alert sweep
	go func() {
		ticker := time.NewTicker(cfg.SOS.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-consumerCtx.Done():
				return
			case <-ticker.C:
				sweepCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				if _, err := sosService.ExpireStale(sweepCtx); err != nil {
					log.Printf("stale alert sweep failed: %v", err)
				}
				cancel()
			}
		}
	}()

	// 13. HTTP server with CORS, graceful shutdown
	corsOptions := []handlers.CORSOption{
		handlers.AllowedOrigins(cfg.Server.CORS.AllowedOrigins),
		handlers.AllowedMethods(cfg.Server.CORS.AllowedMethods),
		handlers.AllowedHeaders(cfg.Server.CORS.AllowedHeaders),
		handlers.ExposedHeaders(cfg.Server.CORS.ExposedHeaders),
		handlers.MaxAge(cfg.Server.CORS.MaxAge),
	}
	if cfg.Server.CORS.AllowCredentials {
		corsOptions = append(corsOptions, handlers.AllowCredentials())
	}
	corsHandler := handlers.CORS(corsOptions...)(r)

	serverAddr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:           serverAddr,
		Handler:        corsHandler,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	go func() {
		log.Printf("server listening on %s", serverAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutdown signal received")

	cancelConsumers()

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(ctxShutdown); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
	log.Println("server stopped")
}
