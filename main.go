package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"support-chat/internal/auth"
	"support-chat/internal/config"
	"support-chat/internal/db"
	"support-chat/internal/handlers"
	"support-chat/internal/middleware"
	"support-chat/internal/observability"
	"support-chat/internal/rabbitmq"
	"support-chat/internal/repositories"
	"support-chat/internal/scheduler"
	"support-chat/internal/services"
	"support-chat/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.OTLPEndpoint, "support-chat", cfg.Environment)
	if err != nil {
		log.Fatalf("failed to set up tracing: %v", err)
	}
	defer shutdownTracing(context.Background())

	database, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}
	defer database.Close()

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	log.Printf("event publisher mode=%s", rabbitmq.PublisherMode(publisher))

	emitter := telemetry.NewEmitter(publisher, "support-chat", cfg.Environment)

	chatRepo := repositories.NewChatRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	eventRepo := repositories.NewEventRepo(database)
	operatorRepo := repositories.NewOperatorRepo(database)
	clientRepo := repositories.NewClientRepo(database)

	if err := seedOperator(ctx, cfg, operatorRepo); err != nil {
		log.Fatalf("failed to seed operator: %v", err)
	}

	assignment := services.NewAssignmentEngine(chatRepo, emitter)
	delivery := services.NewDeliveryService(chatRepo, messageRepo, eventRepo, clientRepo, cfg.MaxContentLength)
	poller := services.NewPoller(chatRepo, messageRepo, eventRepo, delivery, services.PollerConfig{
		Interval:         cfg.PollInterval,
		Timeout:          cfg.PollTimeout,
		ChatListInterval: cfg.ChatListPollInterval,
		ChatListTimeout:  cfg.ChatListPollTimeout,
	})
	sweeper := services.NewSweeper(messageRepo, delivery, emitter, cfg.DeliveryDeadline, cfg.MaxRetries, cfg.SweepBatchSize)

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)

	clientHandler := handlers.NewClientHandler(clientRepo, assignment, delivery, poller)
	operatorHandler := handlers.NewOperatorHandler(operatorRepo, chatRepo, tokens, assignment, delivery, poller)

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("support-chat"))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	clientSession := middleware.ClientSession(clientRepo)
	router.POST("/client/chats/start", clientHandler.StartChat)
	clientRoutes := router.Group("/client/chats/:chat_id", clientSession)
	clientRoutes.GET("/messages", clientHandler.GetMessages)
	clientRoutes.GET("/poll", clientHandler.PollMessages)
	clientRoutes.POST("/messages", clientHandler.SendMessage)
	clientRoutes.PUT("/messages/:message_id", clientHandler.EditMessage)
	clientRoutes.POST("/read", clientHandler.MarkRead)
	clientRoutes.POST("/typing", clientHandler.SendTyping)
	clientRoutes.POST("/name", clientHandler.UpdateName)

	operatorAuth := middleware.OperatorAuth(tokens)
	router.POST("/operator/login", operatorHandler.Login)
	router.GET("/operator/chats", operatorAuth, operatorHandler.ListChats)
	router.GET("/operator/chats/poll", operatorAuth, operatorHandler.PollChats)
	operatorRoutes := router.Group("/operator/chats/:chat_id", operatorAuth)
	operatorRoutes.GET("/messages", operatorHandler.GetMessages)
	operatorRoutes.GET("/poll", operatorHandler.PollMessages)
	operatorRoutes.POST("/messages", operatorHandler.SendMessage)
	operatorRoutes.PUT("/messages/:message_id", operatorHandler.EditMessage)
	operatorRoutes.POST("/read", operatorHandler.MarkRead)
	operatorRoutes.POST("/typing", operatorHandler.SendTyping)
	operatorRoutes.POST("/close", operatorHandler.CloseChat)

	jobs := scheduler.New()
	jobs.Every(cfg.AssignInterval, "assign_pending", assignment.AssignPending)
	jobs.Every(cfg.SweepInterval, "retry_sweep", sweeper.Sweep)
	go jobs.Run(ctx)

	server := &http.Server{Addr: ":" + cfg.Port, Handler: router}
	go func() {
		<-ctx.Done()
		_ = server.Shutdown(context.Background())
	}()

	log.Printf("listening on :%s", cfg.Port)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
}

// seedOperator creates the bootstrap operator when configured and missing.
func seedOperator(ctx context.Context, cfg config.Config, operators repositories.OperatorRepository) error {
	if cfg.SeedOperatorLogin == "" || cfg.SeedOperatorPassword == "" {
		return nil
	}

	_, err := operators.GetByLogin(ctx, cfg.SeedOperatorLogin)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repositories.ErrOperatorNotFound) {
		return err
	}

	hash, err := auth.HashPassword(cfg.SeedOperatorPassword)
	if err != nil {
		return err
	}

	operator, err := operators.Create(ctx, cfg.SeedOperatorName, cfg.SeedOperatorLogin, hash, cfg.SeedOperatorMaxChats)
	if err != nil {
		return err
	}
	log.Printf("seeded operator id=%d login=%s", operator.ID, operator.Login)
	return nil
}
