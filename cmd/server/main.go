package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/fadilmartias/interview-pipeline/internal/bootstrap"
	"github.com/fadilmartias/interview-pipeline/internal/config"
	"github.com/fadilmartias/interview-pipeline/internal/domain/fiber/handler"
	"github.com/fadilmartias/interview-pipeline/internal/logger"
	"github.com/fadilmartias/interview-pipeline/internal/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/healthcheck"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/pprof"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Could not load .env file")
	}

	appConfig := config.LoadAppConfig()
	logg, err := logger.New(appConfig.Env)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := bootstrap.ConnectDB(logg)
	if err != nil {
		logg.Fatal("database unavailable", "error", err)
	}
	locker, closeLocker, err := bootstrap.NewLocker(ctx, logg)
	if err != nil {
		logg.Fatal("locker unavailable", "error", err)
	}
	defer closeLocker()

	components, err := bootstrap.Build(ctx, db, locker, logg)
	if err != nil {
		logg.Fatal("wiring failed", "error", err)
	}

	app := fiber.New(fiber.Config{
		AppName: appConfig.Name,
		ErrorHandler: func(ctx *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}
			message := err.Error()
			if message == "" {
				message = "Internal Server Error"
			}
			return ctx.Status(code).JSON(fiber.Map{"success": false, "message": message})
		},
	})
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
	}))
	app.Use(recover.New(recover.Config{
		EnableStackTrace: !appConfig.IsProduction(),
	}))
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))
	app.Use(pprof.New(pprof.Config{
		Next: func(c *fiber.Ctx) bool {
			return appConfig.IsProduction()
		},
	}))
	app.Use(healthcheck.New())
	app.Use(helmet.New(helmet.Config{
		CrossOriginResourcePolicy: "cross-origin",
	}))
	app.Use(middleware.RateLimiter(120, 1*time.Minute))

	handler.NewInterviewHandler(components.Sessions, components.Reconciler, components.Evaluations, components.Retry, logg).RegisterRoutes(app)
	handler.NewPipelineHandler(components.Pipeline).RegisterRoutes(app)
	handler.NewMaintenanceHandler(components.Sweeper, components.Reconciler).RegisterRoutes(app)

	go components.Sweeper.Run(ctx)

	go func() {
		ticker := time.NewTicker(1 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				logg.Debug("runtime stats", "goroutines", runtime.NumGoroutine())
			}
		}
	}()

	go func() {
		<-ctx.Done()
		logg.Info("shutting down")
		if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
			logg.Error("shutdown failed", "error", err)
		}
	}()

	logg.Info("server running", "port", appConfig.Port, "env", appConfig.Env)
	if err := app.Listen(appConfig.Port); err != nil {
		logg.Fatal("listen failed", "error", err)
	}
}
