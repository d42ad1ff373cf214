package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/adamspd/DesignQuizBot/auth"
	"github.com/adamspd/DesignQuizBot/bot"
	"github.com/adamspd/DesignQuizBot/catalog"
	"github.com/adamspd/DesignQuizBot/db"
	"github.com/adamspd/DesignQuizBot/handlers"
	"github.com/adamspd/DesignQuizBot/jobs"
	"github.com/adamspd/DesignQuizBot/models"
	"github.com/adamspd/DesignQuizBot/quiz"
	"github.com/adamspd/DesignQuizBot/telegram"
	"github.com/adamspd/DesignQuizBot/utils"
)

const (
	sessionTTL          = 24 * time.Hour
	subscriptionTTL     = 10 * time.Minute
	sessionSweepEvery   = 10 * time.Minute
	shutdownGracePeriod = 15 * time.Second
)

func main() {
	hashToken := flag.String("hash-token", "", "print the OPS_TOKEN_HASH value for this token and exit")
	flag.Parse()

	if *hashToken != "" {
		if err := printTokenHash(os.Stdout, *hashToken); err != nil {
			utils.LogError("Hashing token: %v", err)
			os.Exit(1)
		}
		return
	}

	cfg, err := utils.LoadConfig()
	if err != nil {
		utils.LogError("Invalid configuration: %v", err)
		os.Exit(1)
	}
	if err := utils.InitLogger(cfg.LogMode); err != nil {
		utils.LogError("Failed to initialize logger: %v", err)
		os.Exit(1)
	}
	defer utils.SyncLogger()

	utils.LogStartup("Design quiz bot starting...")
	utils.LogStartup("Time zone %s, daily quota %d, %d admin(s)", cfg.TimeZone, cfg.DailyQuota, len(cfg.AdminIDs))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		utils.LogError("Fatal: %v", err)
		utils.SyncLogger()
		os.Exit(1)
	}
	utils.LogShutdown("Shutdown complete")
}

// printTokenHash writes the bcrypt hash to put in OPS_TOKEN_HASH.
func printTokenHash(w io.Writer, token string) error {
	hash, err := utils.HashToken(token)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, hash)
	return err
}

func run(ctx context.Context, cfg *models.Config) error {
	// Initialize database
	database, err := db.InitDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		utils.LogShutdown("Closing database...")
		if err := database.Close(); err != nil {
			utils.LogError("Error closing database: %v", err)
		}
	}()

	engine := quiz.NewEngine(database, quiz.Options{
		DailyQuota: cfg.DailyQuota,
		Location:   cfg.Location,
		CacheTTL:   cfg.CacheTTL,
	})

	loader := catalog.NewLoader(cfg.QuestionsDir, quiz.Topics(), database, engine.InvalidateCatalog)
	if _, err := loader.Load(ctx); err != nil {
		// The bot still serves whatever pool is already stored.
		utils.LogError("Initial question load failed: %v", err)
	}

	roles := auth.NewRoleResolver(cfg.AdminIDs)
	sessions := auth.NewSessionStore(roles, sessionTTL)

	tg, err := telegram.New(cfg.BotToken, cfg.LogMode == "debug")
	if err != nil {
		return err
	}
	gate := auth.NewSubscriptionGate(cfg.ChannelID, tg, subscriptionTTL)
	if !gate.Enabled() {
		utils.LogWarn("CHANNEL_ID not set, subscription check disabled")
	}

	quizBot := bot.New(ctx, tg, engine, sessions, gate, nil, bot.Settings{
		ChannelURL:        cfg.ChannelURL,
		DailyQuota:        cfg.DailyQuota,
		NextQuestionDelay: cfg.NextQuestionDelay,
	})

	// Job queue when Redis is configured, in-process delivery otherwise.
	var (
		jobManager *jobs.JobManager
		enqueuer   jobs.DailyEnqueuer
	)
	if cfg.RedisURL != "" {
		jobManager, err = jobs.NewJobManager(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		jobManager.RegisterHandlers(quizBot)
		if err := jobManager.Start(); err != nil {
			return err
		}
		defer jobManager.Stop()
		quizBot.SetDispatcher(jobManager)
		enqueuer = jobManager
	} else {
		utils.LogStartup("REDIS_URL not set, running jobs in-process")
		quizBot.SetDispatcher(jobs.NewInlineDispatcher(quizBot, jobs.DefaultSendRate))
	}

	scheduler, err := jobs.NewScheduler(jobs.ScheduleConfig{
		Location:      cfg.Location,
		DailySpec:     cfg.DailyQuestionCron,
		HeartbeatSpec: cfg.AdminHeartbeatCron,
		RolloverSpec:  cfg.RolloverCron,
		SweepSpec:     cfg.CacheSweepCron,
		Admins:        roles.Admins(),
	}, engine, quizBot, enqueuer)
	if err != nil {
		return err
	}
	scheduler.AddSweeper(gate.Sweep)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	go sessions.Run(ctx, sessionSweepEvery)
	go engine.RunCacheSweeper(ctx, cfg.CacheTTL)

	var server *http.Server
	if cfg.HTTPAddr != "" {
		if cfg.OpsTokenHash == "" {
			utils.LogWarn("OPS_TOKEN_HASH not set, ops routes will reject every request")
		}
		server = &http.Server{
			Addr:         cfg.HTTPAddr,
			Handler:      handlers.NewRouter(engine, loader, cfg.OpsTokenHash),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		go func() {
			utils.LogStartup("Starting ops HTTP server on %s...", cfg.HTTPAddr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				utils.LogError("Ops HTTP server failed: %v", err)
			}
		}()
	}

	// Blocks until the signal context is cancelled.
	tg.Run(ctx, quizBot)

	utils.LogShutdown("Received shutdown signal, stopping...")
	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			utils.LogError("Ops HTTP server shutdown: %v", err)
		}
	}
	quizBot.Wait()
	return nil
}
