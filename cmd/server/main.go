package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/hibiken/asynq"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	config "github.com/maheshrc27/autopost/configs"
	"github.com/maheshrc27/autopost/internal/api/handlers"
	"github.com/maheshrc27/autopost/internal/api/middleware"
	"github.com/maheshrc27/autopost/internal/clock"
	job "github.com/maheshrc27/autopost/internal/jobs"
	"github.com/maheshrc27/autopost/internal/metrics"
	"github.com/maheshrc27/autopost/internal/platform"
	"github.com/maheshrc27/autopost/internal/queue"
	"github.com/maheshrc27/autopost/internal/repository"
	"github.com/maheshrc27/autopost/internal/scheduler"
	"github.com/maheshrc27/autopost/internal/service"
	"github.com/maheshrc27/autopost/internal/storage"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	slog.SetDefault(slog.New(initLogger(cfg)))

	dsn := cfg.Database.PostgresURI
	if cfg.Database.Driver == storage.DriverSQLite {
		dsn = cfg.Database.SQLitePath
	}
	db, err := storage.Open(cfg.Database.Driver, dsn)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	guard := storage.NewGuard(db, storage.GuardConfig{
		MaxRetries: cfg.Database.MaxRetries,
		RetryDelay: cfg.Database.RetryDelay,
		StaleAfter: cfg.Database.StaleAfter,
	})
	metrics.Register()

	redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI}
	client := asynq.NewClient(redisConn)
	defer client.Close()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisURI})
	defer rdb.Close()

	userRepo := repository.NewUserRepository(db)
	accountRepo := repository.NewAccountRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	connectionRepo := repository.NewConnectionRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	balanceRepo := repository.NewBalanceRepository(db)
	claimRepo := repository.NewClaimRepository(db)
	recordRepo := repository.NewPublishRecordRepository(db)

	opts := platform.Options{
		Timeout:          cfg.Platforms.RequestTimeout,
		RatePerSecond:    cfg.Platforms.RatePerSecond,
		TelegramAPIURL:   cfg.Platforms.TelegramAPIURL,
		TelegramBotToken: cfg.Platforms.TelegramBotToken,
		VKAPIURL:         cfg.Platforms.VKAPIURL,
		VKAPIVersion:     cfg.Platforms.VKAPIVersion,
		PinterestAPIURL:  cfg.Platforms.PinterestAPIURL,
		BloggerEndpoint:  cfg.Platforms.BloggerEndpoint,
	}
	telegram := platform.NewTelegram(opts)
	registry := platform.NewRegistry(
		telegram,
		platform.NewVK(opts),
		platform.NewPinterest(opts),
		platform.NewBlogger(opts),
		platform.NewWordPress(opts),
	)

	r2Service, err := service.NewR2Service(*cfg)
	if err != nil {
		log.Fatalf("Failed to configure object storage: %v", err)
	}
	var archive service.ImageArchive
	if r2Service != nil {
		archive = r2Service
	} else {
		slog.Warn("R2 is not configured, generated images will not be archived")
	}

	clk := clock.Real{}
	ledgerService := service.NewLedgerService(*cfg, guard, balanceRepo)
	contentService := service.NewContentService(*cfg)
	userService := service.NewUserService(guard, userRepo)
	authService := service.NewAuthService(*cfg, userService)
	accountService := service.NewAccountService(guard, accountRepo, categoryRepo, connectionRepo)
	scheduleService := service.NewScheduleService(guard, scheduleRepo)
	paymentService := service.NewPaymentService(*cfg, ledgerService)
	generationService := service.NewGenerationService(guard, categoryRepo, accountRepo, ledgerService, contentService, archive)
	notificationService := service.NewNotificationService(guard, notificationRepo, userRepo, recordRepo, ledgerService, telegram)
	publishService := service.NewPublishService(*cfg, guard, categoryRepo, accountRepo, connectionRepo, claimRepo, recordRepo,
		ledgerService, contentService, archive, registry, clk)

	// queue
	enqueuer := queue.NewEnqueuer(client, rdb)
	queueW := queue.NewQueue(notificationService)

	server := asynq.NewServer(redisConn, asynq.Config{
		Concurrency: 10,
	})
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskTypeNotify, queueW.HandleNotifyTask)

	slog.Info("Starting the Asynq server...")
	if err := server.Start(mux); err != nil {
		log.Fatalf("Could not start Asynq server: %v", err)
	}

	// cron jobs
	claimPurgeJob := job.NewClaimPurgeJob(guard, claimRepo, clk, cfg.Scheduler.ClaimRetention)

	c := cron.New()
	c.AddFunc("@every 01h00m00s", claimPurgeJob.PurgeClaims)
	c.Start()

	dispatcher := scheduler.NewDispatcher(scheduler.Config{
		GracePeriod:  cfg.Scheduler.GracePeriod,
		PollInterval: cfg.Scheduler.PollInterval,
		Cooldown:     cfg.Scheduler.Cooldown,
		ErrorBackoff: cfg.Scheduler.ErrorBackoff,
	}, clk,
		scheduler.NewPublishHandler(scheduleService, publishService, clk, cfg.Scheduler.JobDelay),
		scheduler.NewNotificationHandler(notificationService, enqueuer),
	)
	if err := dispatcher.Start(context.Background()); err != nil {
		log.Fatalf("Could not start scheduler: %v", err)
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Minute,
		WriteTimeout: 5 * time.Minute,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			slog.Error("request failed", "path", c.Path(), "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOriginsFunc: func(origin string) bool {
			return true
		},
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	health := handlers.NewHealthHandler(db, dispatcher)
	app.Get("/health", health.Health)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	auth := handlers.NewAuthHandler(*cfg, authService)
	app.Post("/auth/token", auth.IssueToken)

	payment := handlers.NewPaymentHandler(*cfg, paymentService)
	app.Post("/webhooks/payment", payment.PaymentWebhook)

	authMiddleware := middleware.NewAuthMiddleware(*cfg)

	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())

	user := handlers.NewUserHandler(userService, ledgerService)
	api.Get("/user/info", user.GetUserInfo)

	account := handlers.NewAccountHandler(accountService)
	api.Get("/accounts/:id", account.GetAccount)

	schedules := handlers.NewScheduleHandler(scheduleService, notificationService, accountService)
	api.Get("/schedules/:category/:platform/:instance", schedules.GetSchedule)
	api.Put("/schedules/:category/:platform/:instance", schedules.UpdateSchedule)
	api.Get("/notifications/:kind", schedules.GetNotification)
	api.Put("/notifications/:kind", schedules.UpdateNotification)

	tokens := handlers.NewTokenHandler(ledgerService, generationService)
	api.Get("/balance", tokens.Balance)
	api.Post("/generate", tokens.Generate)

	publish := handlers.NewPublishHandler(publishService, ledgerService)
	api.Post("/publish", publish.Publish)
	api.Get("/publications", publish.ListPublications)

	go func() {
		if err := app.Listen(cfg.HTTPAddr); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	slog.Info("Server is running", "addr", cfg.HTTPAddr)

	gracefulShutdown(cfg, app, dispatcher, c, server, db)
}

func initLogger(cfg *config.Config) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "2006-01-02 15:04:05.000",
	})
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}

func closeDB(db *sqlx.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(cfg *config.Config, app *fiber.App, dispatcher *scheduler.Dispatcher, c *cron.Cron, server *asynq.Server, db *sqlx.DB) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	slog.Info("Shutting down server...")

	if err := dispatcher.Stop(cfg.Scheduler.ShutdownTimeout); err != nil {
		slog.Error("Scheduler did not stop cleanly", "error", err)
	}

	if err := app.Shutdown(); err != nil {
		slog.Error("Failed to shut down server", "error", err)
	}

	c.Stop()
	server.Shutdown()

	closeDB(db)
	slog.Info("Server shutdown complete.")
}
