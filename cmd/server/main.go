package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/fightwatch/api/internal/client"
	"github.com/fightwatch/api/internal/config"
	"github.com/fightwatch/api/internal/handler"
	"github.com/fightwatch/api/internal/logging"
	"github.com/fightwatch/api/internal/middleware"
	"github.com/fightwatch/api/internal/service"
	"github.com/fightwatch/api/internal/store"
	"github.com/fightwatch/api/internal/worker"
	ws "github.com/fightwatch/api/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logging.Init(cfg.Server.LogLevel)
	log := logging.WithComponent("server")

	// Redis is optional. Without it the service runs fully in-process:
	// in-memory job store, goroutine dispatch, pass-through rate limiting.
	var redisClient *redis.Client
	var asynqClient *asynq.Client
	if cfg.Redis.Enabled() {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		asynqClient = asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer asynqClient.Close()
	} else {
		log.Info().Msg("redis not configured, running in-process")
	}

	validate := validator.New()

	hub := ws.NewHub()
	go hub.Run()

	reportClient := client.NewReportClient(&cfg.Gemini)
	if !reportClient.IsConfigured() {
		log.Info().Msg("gemini not configured, reports use the text fallback")
	}

	var jobStore store.Store
	if redisClient != nil {
		jobStore = store.NewRedisStore(redisClient)
	} else {
		jobStore = store.NewMemoryStore()
	}

	analysisService := service.NewAnalysisService(jobStore)
	analysisWorker := worker.NewAnalysisWorker(analysisService, cfg.Analysis, hub, reportClient)

	if asynqClient != nil {
		analysisService.SetDispatcher(worker.NewQueueDispatcher(asynqClient))
		go startWorkerServer(cfg, analysisWorker)
	} else {
		analysisService.SetDispatcher(worker.NewLocalDispatcher(analysisWorker))
	}

	analyzeHandler := handler.NewAnalyzeHandler(analysisService, reportClient, cfg.Analysis, validate)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    500 * 1024 * 1024, // 500MB uploads
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"timestamp": time.Now().Unix(),
		})
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"redis":  redisClient != nil,
				"gemini": reportClient.IsConfigured(),
			},
		})
	})

	api := app.Group("/api")

	analyze := api.Group("/analyze")
	analyze.Post("/upload", rateLimiter.UploadLimit(cfg.RateLimit.UploadPerHour), analyzeHandler.Upload)
	analyze.Get("/status/:jobId", analyzeHandler.Status)
	analyze.Get("/result/:jobId", analyzeHandler.Result)
	analyze.Get("/report/:jobId", analyzeHandler.Report)
	analyze.Post("/report/:jobId", rateLimiter.AnalyzeLimit(cfg.RateLimit.AnalyzePerHour), analyzeHandler.RegenerateReport)

	// Processed videos are served straight off disk.
	app.Static("/processed_videos", cfg.Analysis.OutputDir)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/jobs/:jobId", websocket.New(func(c *websocket.Conn) {
		jobID := c.Params("jobId")
		hub.HandleConnection(c, jobID)
	}))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Info().Msg("shutting down server")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Error().Err(err).Msg("server shutdown error")
		}
	}()

	addr := ":" + cfg.Server.Port
	log.Info().Str("addr", addr).Msg("server starting")
	if err := app.Listen(addr); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}

func startWorkerServer(cfg *config.Config, analysisWorker *worker.AnalysisWorker) {
	log := logging.WithComponent("asynq")

	asynqLogLevel := asynq.InfoLevel
	if strings.EqualFold(cfg.Server.LogLevel, "debug") {
		asynqLogLevel = asynq.DebugLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "warn") {
		asynqLogLevel = asynq.WarnLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "error") {
		asynqLogLevel = asynq.ErrorLevel
	}

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			// Analysis runs are CPU and IO heavy; two at a time is plenty.
			Concurrency: 2,
			Queues: map[string]int{
				"analysis": 10,
			},
			LogLevel: asynqLogLevel,
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(worker.TaskTypeAnalyze, analysisWorker.ProcessTask)

	if err := srv.Run(mux); err != nil {
		log.Error().Err(err).Msg("asynq worker error")
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "SERVICE_ERROR",
			"message": message,
		},
	})
}
