package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"school-service/internal/cache"
	"school-service/internal/config"
	"school-service/internal/db"
	grpcserver "school-service/internal/grpc"
	"school-service/internal/handlers"
	"school-service/internal/middleware"
	"school-service/internal/observability"
	"school-service/internal/rabbitmq"
	"school-service/internal/repositories"
	"school-service/internal/services"
	"school-service/internal/telemetry"
	"school-service/internal/ws"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdownTracing, err := observability.InitTracing(ctx, cfg.Service, cfg.Tracing.Endpoint)
	if err != nil {
		log.Fatalf("failed to init tracing: %v", err)
	}

	var (
		messageRepo repositories.MessageRepository
		resultRepo  repositories.ResultRepository
	)
	switch cfg.Store.Driver {
	case config.DriverMongo:
		client, database, err := db.ConnectMongo(ctx, cfg.Store)
		if err != nil {
			log.Fatalf("failed to connect to mongo: %v", err)
		}
		defer client.Disconnect(context.Background())
		messageRepo = repositories.NewMongoMessageRepo(database)
		resultRepo = repositories.NewMongoResultRepo(database)
	default:
		database, err := db.Connect(ctx, cfg.Store)
		if err != nil {
			log.Fatalf("failed to connect to db: %v", err)
		}
		defer database.Close()
		messageRepo = repositories.NewMessageRepo(database)
		resultRepo = repositories.NewResultRepo(database)
	}
	log.Printf("store driver=%s", cfg.Store.Driver)

	userConn, err := grpcserver.Dial(cfg.Directory.Addr)
	if err != nil {
		log.Fatalf("failed to connect to user grpc: %v", err)
	}
	defer userConn.Close()

	var directory services.UserDirectory = grpcserver.NewUserClient(userConn, cfg.Directory.DialTimeout)
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Printf("directory cache disabled: %v", err)
			_ = rdb.Close()
		} else {
			defer rdb.Close()
			directory = cache.NewCachedDirectory(directory, rdb, cfg.Redis.TTL)
			log.Printf("directory cache enabled addr=%s ttl=%s", cfg.Redis.Addr, cfg.Redis.TTL)
		}
	}

	publisher := rabbitmq.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange)
	log.Printf("event publisher mode=%s %s", rabbitmq.PublisherMode(publisher), rabbitmq.PublisherNoopReason(publisher))
	auditEmitter := telemetry.NewAuditEmitter(publisher, cfg.AMQP.AuditRoute, cfg.Service, cfg.Environment)

	hub := ws.NewHub(publisher)

	messageService := services.NewMessageService(messageRepo, directory, hub, publisher)
	resultService := services.NewResultService(resultRepo, hub, publisher)

	handlers.RegisterValidators()

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.Use(otelgin.Middleware(cfg.Service))
	router.Use(observability.RequestIDMiddleware())
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handlers.Routes{
		Messages:   handlers.NewMessageHandler(messageService),
		Results:    handlers.NewResultHandler(resultService, auditEmitter),
		Grading:    handlers.NewGradingHandler(),
		Auth:       middleware.AuthMiddleware(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer),
		WebSockets: ws.NewNotificationWebSocketHandler(hub, publisher).Handle,
	}.Register(router)
	handlers.RegisterDebugRoutes(router, auditEmitter, hub, cfg.DebugRoutes)

	grpcSrv := grpcserver.NewServer()
	grpcserver.RegisterGradingServer(grpcSrv, grpcserver.NewGradingServer())
	lis, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		log.Fatalf("failed to listen grpc: %v", err)
	}
	go func() {
		log.Printf("grpc listening addr=%s", cfg.GRPC.Addr)
		if err := grpcSrv.Serve(lis); err != nil {
			log.Printf("grpc server stopped: %v", err)
		}
	}()

	srv := &http.Server{Addr: ":" + cfg.HTTP.Port, Handler: router}
	go func() {
		log.Printf("http listening port=%s", cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	grpcSrv.GracefulStop()
	if err := publisher.Close(); err != nil {
		log.Printf("publisher close: %v", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Printf("tracing shutdown: %v", err)
	}
}
