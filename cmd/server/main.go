package main

import (
	"context"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/JuliaRakitina/ai-email-sorter/internal/broadcast"
	"github.com/JuliaRakitina/ai-email-sorter/internal/config"
	"github.com/JuliaRakitina/ai-email-sorter/internal/gmail"
	"github.com/JuliaRakitina/ai-email-sorter/internal/handler"
	"github.com/JuliaRakitina/ai-email-sorter/internal/httpserver"
	"github.com/JuliaRakitina/ai-email-sorter/internal/mq"
	"github.com/JuliaRakitina/ai-email-sorter/internal/mqhandler"
	"github.com/JuliaRakitina/ai-email-sorter/internal/pubsub"
	redisclient "github.com/JuliaRakitina/ai-email-sorter/internal/redis"
	"github.com/JuliaRakitina/ai-email-sorter/internal/repository"
	"github.com/JuliaRakitina/ai-email-sorter/internal/service"
	"github.com/JuliaRakitina/ai-email-sorter/internal/util"
	"github.com/JuliaRakitina/ai-email-sorter/pkg/crypto"
	"github.com/JuliaRakitina/ai-email-sorter/pkg/logger"
)

func main() {
	cfg := config.Load()

	zlog := logger.NewLogger("api-server")
	defer zlog.Sync()

	pool, err := repository.NewPool(cfg.DB, zlog)
	if err != nil {
		zlog.Fatal("DB initialization failed", zap.Error(err))
	}
	defer pool.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := repository.InitSchema(ctx, pool); err != nil {
		zlog.Fatal("schema initialization failed", zap.Error(err))
	}
	cancel()

	box, err := crypto.NewBox(cfg.SecretKey)
	if err != nil {
		zlog.Fatal("crypto initialization failed", zap.Error(err))
	}

	rdb := redisclient.NewClient(cfg.Redis)
	defer rdb.Close()
	deduper := util.NewDeduper(rdb, time.Hour)

	producer, err := mq.NewProducer(cfg.MQ.URL)
	if err != nil {
		log.Fatalf("failed to init producer: %v", err)
	}
	defer producer.Close()

	// Repositories
	userRepo := repository.NewUserRepository(pool)
	accountRepo := repository.NewAccountRepository(pool)
	categoryRepo := repository.NewCategoryRepository(pool)
	messageRepo := repository.NewMessageRepository(pool)

	// Services
	provider := gmail.NewCredentialProvider(cfg.Google, box, accountRepo, zlog)
	accountSvc := service.NewAccountService(userRepo, accountRepo, categoryRepo, provider, cfg.PubSub, zlog)
	sorterSvc := service.NewSorterService(categoryRepo, messageRepo, accountRepo, provider, producer, zlog)

	events := broadcast.New(zlog)
	verifier := pubsub.NewVerifier(cfg.PubSub.Audience)

	// Relay consumer: worker-side events fan out to SSE clients here.
	broadcastConsumer, err := mq.NewConsumer(cfg.MQ.URL, mq.KeyBroadcast, zlog)
	if err != nil {
		log.Fatalf("failed to init broadcast consumer: %v", err)
	}
	defer broadcastConsumer.Close()
	broadcastConsumer.SetHandler(mqhandler.NewBroadcastHandler(events, zlog).HandleEvent)
	go func() {
		if err := broadcastConsumer.StartConsuming(); err != nil {
			zlog.Fatal("broadcast consumer failed", zap.Error(err))
		}
	}()

	// Handlers
	authHandler := handler.NewAuthHandler(accountSvc, provider.OAuthConfig(), cfg.JWT.Secret)
	accountHandler := handler.NewAccountHandler(accountSvc, producer)
	categoryHandler := handler.NewCategoryHandler(sorterSvc, accountSvc)
	messageHandler := handler.NewMessageHandler(sorterSvc, accountSvc)
	webhookHandler := handler.NewWebhookHandler(verifier, deduper, accountRepo, producer, zlog)
	eventsHandler := handler.NewEventsHandler(events)

	router := httpserver.NewRouter(
		authHandler,
		accountHandler,
		categoryHandler,
		messageHandler,
		webhookHandler,
		eventsHandler,
		cfg.JWT.Secret,
	)

	zlog.Info("starting API server", zap.String("port", cfg.Server.Port))
	if err := router.Run(cfg.Server.Port); err != nil {
		zlog.Fatal("server start failed", zap.Error(err))
	}
}
