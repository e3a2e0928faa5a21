package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/JuliaRakitina/ai-email-sorter/internal/ai"
	"github.com/JuliaRakitina/ai-email-sorter/internal/broadcast"
	"github.com/JuliaRakitina/ai-email-sorter/internal/config"
	"github.com/JuliaRakitina/ai-email-sorter/internal/gmail"
	"github.com/JuliaRakitina/ai-email-sorter/internal/mq"
	"github.com/JuliaRakitina/ai-email-sorter/internal/mqhandler"
	"github.com/JuliaRakitina/ai-email-sorter/internal/repository"
	"github.com/JuliaRakitina/ai-email-sorter/internal/service"
	"github.com/JuliaRakitina/ai-email-sorter/internal/unsubscribe"
	"github.com/JuliaRakitina/ai-email-sorter/pkg/crypto"
	"github.com/JuliaRakitina/ai-email-sorter/pkg/logger"
)

func main() {
	cfg := config.Load()

	zlog := logger.NewLogger("worker")
	defer zlog.Sync()

	zlog.Info("starting worker service")

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

	producer, err := mq.NewProducer(cfg.MQ.URL)
	if err != nil {
		zlog.Fatal("failed to init producer", zap.Error(err))
	}
	defer producer.Close()

	// Repositories
	accountRepo := repository.NewAccountRepository(pool)
	categoryRepo := repository.NewCategoryRepository(pool)
	messageRepo := repository.NewMessageRepository(pool)

	// Services
	provider := gmail.NewCredentialProvider(cfg.Google, box, accountRepo, zlog)
	aiClient := ai.NewClient(cfg.AI, zlog)
	events := broadcast.NewMQRelay(producer, mq.KeyBroadcast, zlog)

	syncSvc := service.NewSyncService(
		accountRepo, categoryRepo, messageRepo,
		provider, aiClient, events, cfg.Sync, zlog,
	)
	unsubSvc := service.NewUnsubscribeService(
		messageRepo, accountRepo, provider,
		unsubscribe.NewAttempter(zlog), events, zlog,
	)

	// Consumer for sync requests (manual and push-triggered).
	syncConsumer, err := mq.NewConsumer(cfg.MQ.URL, mq.KeySyncRequested, zlog)
	if err != nil {
		zlog.Fatal("failed to init sync consumer", zap.Error(err))
	}
	defer syncConsumer.Close()
	syncConsumer.SetHandler(mqhandler.NewSyncHandler(syncSvc, zlog).HandleSyncRequested)
	go func() {
		if err := syncConsumer.StartConsuming(); err != nil {
			zlog.Fatal("sync consumer failed", zap.Error(err))
		}
	}()

	// Consumer for unsubscribe requests.
	unsubConsumer, err := mq.NewConsumer(cfg.MQ.URL, mq.KeyUnsubscribeRequested, zlog)
	if err != nil {
		zlog.Fatal("failed to init unsubscribe consumer", zap.Error(err))
	}
	defer unsubConsumer.Close()
	unsubConsumer.SetHandler(mqhandler.NewUnsubscribeHandler(unsubSvc, zlog).HandleUnsubscribeRequested)
	go func() {
		if err := unsubConsumer.StartConsuming(); err != nil {
			zlog.Fatal("unsubscribe consumer failed", zap.Error(err))
		}
	}()

	zlog.Info("all consumers started, worker is ready")
	select {}
}
