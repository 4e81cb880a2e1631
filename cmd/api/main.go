package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"callops-platform/internal/audit"
	"callops-platform/internal/auth"
	"callops-platform/internal/calls"
	"callops-platform/internal/campaign"
	"callops-platform/internal/config"
	"callops-platform/internal/contacts"
	"callops-platform/internal/credit"
	"callops-platform/internal/dispatch"
	"callops-platform/internal/httpapi"
	"callops-platform/internal/pricing"
	"callops-platform/internal/provider"
	"callops-platform/internal/reconcile"
	"callops-platform/internal/reporting"
	"callops-platform/pkg/logger"
	"callops-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	// Repositories
	creditRepo := credit.NewSQLRepository(db)
	callStore := calls.NewSQLStore(db)
	contactRepo := contacts.NewSQLRepository(db)
	campaignRepo := campaign.NewSQLRepository(db)
	agentResolver := campaign.NewSQLAgentResolver(db)
	ratesRepo := pricing.NewSQLRateRepository(db)
	reportingRepo := reporting.NewSQLRepository(db)
	auditRepo := audit.NewSQLRepository(db)

	// Services
	creditSvc := credit.NewService(creditRepo)
	pricingSvc := pricing.NewService(ratesRepo, pricing.Defaults{
		RatePerMinuteMinor:  cfg.Pricing.DefaultRatePerMinuteMinor,
		ExpectedCallMinutes: cfg.Pricing.ExpectedCallMinutes,
	})
	auditSvc := audit.NewService(auditRepo)
	reportingSvc := reporting.NewService(reportingRepo)

	voice := provider.NewClient(provider.ClientConfig{
		BaseURL:           cfg.Provider.BaseURL,
		APIKey:            cfg.Provider.APIKey,
		RequestsPerSecond: cfg.Provider.RequestsPerSecond,
		Burst:             cfg.Provider.Burst,
	})

	// Task queue
	asynqClient := asynq.NewClientFromRedisClient(rdb)
	defer asynqClient.Close()
	scheduler := dispatch.NewScheduler(asynqClient)

	campaignSvc := campaign.NewService(campaignRepo, contactRepo, agentResolver, creditSvc, pricingSvc, scheduler, cfg.Dispatch.Spacing)

	caps := dispatch.NewRedisCaps(rdb, cfg.Dispatch.ConcurrencyLimit, cfg.Dispatch.ConcurrencyTTL)
	executor := dispatch.NewExecutor(contactRepo, campaignSvc, voice, callStore, caps, log)

	reconcileSvc := reconcile.NewService(callStore, creditSvc, contactRepo, reconcile.NopCalendar{}, log)

	// Asynq worker server shares the process with the API.
	asynqSrv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: cfg.RedisAddr()},
		asynq.Config{
			Concurrency: 10,
			Queues:      map[string]int{dispatch.QueueCalls: 10},
		},
	)
	mux := asynq.NewServeMux()
	executor.Register(mux)
	go func() {
		if err := asynqSrv.Run(mux); err != nil {
			log.Error("task worker failed", "err", err)
			stop()
		}
	}()

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.RequestLogger(log))

	h := httpapi.Handlers{
		Auth:      authManager,
		Credits:   creditSvc,
		Campaigns: campaignSvc,
		Reconcile: reconcileSvc,
		Reporting: reportingSvc,
		Audit:     auditSvc,
		Voice:     voice,
		Agents:    agentResolver,
		Gate:      creditSvc,
		Reserve:   pricingSvc,
		CallLog:   callStore,
	}
	registerRoutes(r, h, auth.RequireAccessToken(authManager), db)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	asynqSrv.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}
