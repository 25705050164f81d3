package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/vogiaan1904/voyage-sync/config"
	"github.com/vogiaan1904/voyage-sync/internal/cruisetime"
	grpcSvc "github.com/vogiaan1904/voyage-sync/internal/delivery/grpc"
	httpDelivery "github.com/vogiaan1904/voyage-sync/internal/delivery/http"
	"github.com/vogiaan1904/voyage-sync/internal/delivery/kafka/consumer"
	"github.com/vogiaan1904/voyage-sync/internal/delivery/kafka/producer"
	"github.com/vogiaan1904/voyage-sync/internal/infra/redis"
	"github.com/vogiaan1904/voyage-sync/internal/notification"
	"github.com/vogiaan1904/voyage-sync/internal/querycache"
	"github.com/vogiaan1904/voyage-sync/internal/repository/api"
	redisRepo "github.com/vogiaan1904/voyage-sync/internal/repository/redis"
	sqliteRepo "github.com/vogiaan1904/voyage-sync/internal/repository/sqlite"
	"github.com/vogiaan1904/voyage-sync/internal/service"
	"github.com/vogiaan1904/voyage-sync/internal/socket"
	pkgGrpc "github.com/vogiaan1904/voyage-sync/pkg/grpc"
	pkgKafka "github.com/vogiaan1904/voyage-sync/pkg/kafka"
	pkgLog "github.com/vogiaan1904/voyage-sync/pkg/logger"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	l := pkgLog.InitializeZapLogger(pkgLog.ZapConfig{
		Level:    cfg.Log.Level,
		Mode:     cfg.Log.Mode,
		Encoding: cfg.Log.Encoding,
		Name:     "voyage-sync",
	})

	voyage, err := cruisetime.NewVoyage(cfg.Cruise.StartDate, cfg.Cruise.Length, cfg.Cruise.PortTimeZoneID)
	if err != nil {
		l.Fatalf(ctx, "Invalid voyage: %v", err)
	}

	// Query cache store
	var (
		store querycache.Store
		peers service.PeerInvalidations
	)
	switch cfg.Cache.Driver {
	case config.CacheDriverRedis:
		redisCli, err := redis.Connect(ctx, cfg.Redis, l)
		if err != nil {
			l.Fatalf(ctx, "Failed to connect to Redis: %v", err)
		}
		defer redis.Disconnect(context.Background(), redisCli, l)

		cacheRepo := redisRepo.NewRedisCacheRepository(redisCli, cfg.Cache.KeyPrefix, 0, l)
		sub, err := cacheRepo.SubscribeInvalidations(ctx)
		if err != nil {
			l.Fatalf(ctx, "Failed to subscribe to cache invalidations: %v", err)
		}
		defer sub.Close()

		store = cacheRepo
		peers = sub
	case config.CacheDriverSQLite:
		store, err = sqliteRepo.NewCacheRepository(cfg.Cache.SQLitePath, l)
		if err != nil {
			l.Fatalf(ctx, "Failed to open SQLite cache: %v", err)
		}
	default:
		store = querycache.NewMemoryStore()
	}
	defer store.Close()

	cache := querycache.NewClient(store, querycache.Options{
		FreshFor: cfg.Cache.FreshFor,
		LoginState: func(context.Context) bool {
			return cfg.API.Token != ""
		},
	}, l)

	// Kafka
	var publisher notification.InvalidationPublisher
	var kafkaProd producer.Producer
	if cfg.Kafka.Enabled {
		syncProd, err := pkgKafka.NewProducer(pkgKafka.ProducerConfig{
			Brokers:      cfg.Kafka.Brokers,
			RetryMax:     cfg.Kafka.ProducerRetryMax,
			RequiredAcks: cfg.Kafka.ProducerRequiredAcks,
			ClientID:     "voyage-sync",
		})
		if err != nil {
			l.Fatalf(ctx, "Failed to initialize Kafka producer: %v", err)
		}
		kafkaProd = producer.NewProducer(syncProd, cfg.Kafka.InvalidationTopic, uuid.NewString(), l)
		defer kafkaProd.Close()
		publisher = kafkaProd
	}

	// Services
	repo := api.NewScheduleRepository(cfg.API, cache, l)
	srcs := service.NewScheduleSources(repo, cache, cfg.Schedule, cfg.API.PageLimit, l)
	scheduleSvc := service.NewScheduleService(srcs, cache, voyage, cfg.Schedule, l)
	defer scheduleSvc.Close()

	backoff := socket.Backoff{
		BaseDelay:  cfg.Socket.ReconnectBaseDelay,
		MaxDelay:   cfg.Socket.ReconnectMaxDelay,
		MaxRetries: cfg.Socket.ReconnectMaxRetries,
	}
	transport := socket.NewWSTransport(socket.WSConfig{
		Token:       cfg.API.Token,
		DialTimeout: cfg.API.Timeout,
		Reconnect:   backoff,
		MaxPending:  cfg.Socket.MessageBuffer,
	}, l)
	urls := socket.NewURLBuilder(cfg.Socket.BaseURL, cfg.Socket.NotificationPath, cfg.Socket.ConversationPath)
	mgr := socket.NewManager(transport, urls, socket.ManagerConfig{
		MessageBuffer: cfg.Socket.MessageBuffer,
		Reconcile:     backoff,
	}, l)
	defer mgr.Shutdown()

	router := notification.NewRouter(cache, publisher, l)
	syncSvc := service.NewSyncService(mgr, router, cache, peers, cfg.Socket, l)
	tracker := service.NewNowTracker(scheduleSvc, cfg.Schedule, l)

	if err := scheduleSvc.Refresh(ctx); err != nil {
		l.Warnf(ctx, "Initial schedule refresh failed: %v", err)
	}
	if err := syncSvc.Start(ctx); err != nil {
		l.Fatalf(ctx, "Failed to start sync service: %v", err)
	}
	if err := tracker.Start(ctx); err != nil {
		l.Fatalf(ctx, "Failed to start now tracker: %v", err)
	}

	// Notification consumer
	var cons *consumer.Consumer
	if cfg.Kafka.Enabled {
		consGr, err := pkgKafka.NewConsumer(pkgKafka.ConsumerConfig{
			Brokers:  cfg.Kafka.Brokers,
			GroupID:  cfg.Kafka.ConsumerGroupID,
			ClientID: "voyage-sync",
		})
		if err != nil {
			l.Fatalf(ctx, "Failed to initialize Kafka consumer: %v", err)
		}
		cons = consumer.NewConsumer(consGr, router, cfg.Kafka.NotificationTopic, l)
		if err := cons.Start(ctx); err != nil {
			l.Fatalf(ctx, "Failed to start Kafka consumer: %v", err)
		}
	}

	// gRPC server
	lnr, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRpcPort))
	if err != nil {
		l.Fatalf(ctx, "gRPC server failed to listen: %v", err)
	}

	gRpcSrv := grpc.NewServer()
	grpcSvc.RegisterScheduleServiceServer(gRpcSrv, grpcSvc.NewScheduleGrpcService(scheduleSvc, router, l))
	healthSrv := health.NewServer()
	healthSrv.SetServingStatus(pkgGrpc.ScheduleServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(gRpcSrv, healthSrv)

	go func() {
		l.Infof(ctx, "gRPC server is listening on port: %d", cfg.Server.GRpcPort)
		if err := gRpcSrv.Serve(lnr); err != nil {
			l.Fatalf(ctx, "Failed to serve gRPC: %v", err)
		}
	}()

	// HTTP server
	h := httpDelivery.NewHTTPHandler(scheduleSvc, syncSvc, tracker, l)
	httpSrv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      httpDelivery.NewRouter(h, cfg.Server.WriteTimeout),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		l.Infof(ctx, "HTTP server is listening on port: %d", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Fatalf(ctx, "Failed to serve HTTP: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	l.Info(ctx, "Server shutting down...")

	healthSrv.Shutdown()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		l.Warnf(shutdownCtx, "HTTP shutdown: %v", err)
	}

	if err := tracker.Stop(); err != nil {
		l.Warnf(shutdownCtx, "Now tracker stop: %v", err)
	}
	if err := syncSvc.Stop(); err != nil {
		l.Warnf(shutdownCtx, "Sync service stop: %v", err)
	}

	cancel()
	if cons != nil {
		if err := cons.Close(); err != nil {
			l.Warnf(shutdownCtx, "Kafka consumer close: %v", err)
		}
	}
	time.Sleep(500 * time.Millisecond)
	gRpcSrv.GracefulStop()

	l.Info(shutdownCtx, "Server exited")
}
