// File: cmd/app/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"promind-bot/internal/application"
	"promind-bot/internal/config"
	"promind-bot/internal/domain/ports/adapter"
	"promind-bot/internal/domain/ports/repository"
	aiAdapters "promind-bot/internal/infra/adapters/ai"
	tele "promind-bot/internal/infra/adapters/telegram"
	videoAdapters "promind-bot/internal/infra/adapters/video"
	pg "promind-bot/internal/infra/db/postgres"
	"promind-bot/internal/infra/i18n"
	"promind-bot/internal/infra/logging"
	"promind-bot/internal/infra/metrics"
	"promind-bot/internal/infra/memstore"
	red "promind-bot/internal/infra/redis"
	"promind-bot/internal/infra/sched"
	"promind-bot/internal/infra/web"
	"promind-bot/internal/infra/worker"
	"promind-bot/internal/usecase"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("dev mode enabled: paid operations are free")
	}
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()
	if err := pg.Migrate(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("migrate")
	}

	// ---- Per-user state stores ----
	// Redis in production; in-process stores when dev mode runs without
	// a redis instance.
	var (
		rateLimiter  *red.RateLimiter
		pendingStore repository.PendingRequestStore
		locker       repository.UserLocker
	)
	if cfg.Runtime.Dev && cfg.Redis.URL == "" {
		logger.Warn().Msg("dev mode without redis: using in-process stores")
		pendingStore = memstore.NewPendingRequestStore()
		locker = memstore.NewUserLocker()
	} else {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		defer redisClient.Close()
		rateLimiter = red.NewRateLimiter(redisClient)
		pendingStore = red.NewPendingStore(redisClient)
		locker = red.NewUserLocker(redisClient)
	}

	// ---- Repositories ----
	userRepo := pg.NewPostgresUserRepo(pool)
	txm := pg.NewTxManager(pool)
	ledgerRepo := pg.NewPostgresLedgerRepo(pool, txm)
	txRepo := pg.NewPostgresTransactionRepo(pool)
	sessionRepo := pg.NewPostgresSessionRepo(pool)

	// ---- Provider adapters ----
	var assistant adapter.AssistantAdapter
	if cfg.Runtime.Dev && (cfg.Assistant.APIKey == "" || cfg.Assistant.APIKey == "noop") {
		assistant = aiAdapters.NewNoopAssistant()
	} else {
		assistant, err = aiAdapters.NewAssistantAdapter(cfg.Assistant, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("assistant adapter")
		}
	}

	var videoLite, videoPro adapter.VideoGenerator
	if cfg.Video.Kling.AccessKey != "" {
		kling, err := videoAdapters.NewKlingAdapter(cfg.Video.Kling, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("kling adapter")
		}
		videoLite = kling
	}
	if cfg.Video.Runway.APIKey != "" {
		runway, err := videoAdapters.NewRunwayAdapter(cfg.Video.Runway, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("runway adapter")
		}
		videoPro = runway
	}

	// ---- Use cases ----
	ledgerUC := usecase.NewLedgerUseCase(ledgerRepo, txRepo, logger)
	userUC := usecase.NewUserUseCase(userRepo, ledgerUC, logger)
	orch := usecase.NewOrchestrator(assistant, videoLite, videoPro, sessionRepo, locker, logger)
	chatUC := usecase.NewChatUseCase(orch, ledgerUC, assistant, cfg.Runtime.Dev, logger)
	imageUC := usecase.NewImageUseCase(orch, ledgerUC, cfg.Runtime.Dev, logger)
	videoUC := usecase.NewVideoUseCase(orch, ledgerUC, pendingStore, cfg.Runtime.Dev, logger)
	paymentUC := usecase.NewPaymentUseCase(ledgerUC, ledgerRepo, txRepo, logger)
	statsUC := usecase.NewStatsUseCase(userRepo, ledgerRepo, txRepo)

	// ---- Facade ----
	tr, err := i18n.NewTranslator(i18n.LocalesFS, "en")
	if err != nil {
		logger.Fatal().Err(err).Msg("i18n")
	}
	facade := application.NewBotFacade(userUC, ledgerUC, chatUC, imageUC, videoUC, paymentUC, statsUC, tr)

	// ---- Worker pool ----
	pool2 := worker.NewPool(cfg.Bot.Workers, logger)
	pool2.Start(ctx)
	defer pool2.Stop()

	// ---- Telegram ----
	// Without a bot token in dev mode the bot surface is the logging
	// noop; the ops API and scheduler still run.
	var notifier adapter.TelegramPort
	var bot *tele.RealBot
	if cfg.Runtime.Dev && cfg.Bot.Token == "" {
		logger.Warn().Msg("dev mode without bot token: telegram disabled")
		notifier = tele.NewNoopBot()
	} else {
		bot, err = tele.NewRealBot(&cfg.Bot, facade, rateLimiter, pool2, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("telegram")
		}
		notifier = bot
		if strings.ToLower(cfg.Bot.Mode) != "" && strings.ToLower(cfg.Bot.Mode) != "polling" {
			logger.Warn().Str("mode", cfg.Bot.Mode).Msg("bot mode not implemented; falling back to polling")
		}
		go func() {
			if err := bot.StartPolling(ctx); err != nil && ctx.Err() == nil {
				logger.Error().Err(err).Msg("telegram polling stopped")
			}
		}()
	}

	// ---- Ops server (health, metrics, admin API) ----
	ops := web.NewServer(statsUC, userUC, paymentUC, ledgerUC, notifier, tr, cfg.Admin.APIKey, cfg.Admin.Port, logger)
	go func() {
		if err := ops.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("ops server")
		}
	}()

	// ---- Expiry worker ----
	expiry := sched.NewExpiryWorker(cfg.Scheduler.ExpiryCheckEvery, ledgerUC, logger)
	go func() { _ = expiry.Run(ctx) }()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	if bot != nil {
		bot.StopPolling()
	}
	_ = ops.Shutdown(context.Background())
	cancel()
}
