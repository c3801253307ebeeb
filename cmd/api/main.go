package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/application/usecase"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/metrics"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/postgres"
	infraredis "github.com/jhoicas/stock-ledger/internal/infrastructure/redis"
	httpRouter "github.com/jhoicas/stock-ledger/internal/interfaces/http"
	"github.com/jhoicas/stock-ledger/pkg/config"
	"github.com/jhoicas/stock-ledger/pkg/logger"
)

//go:generate go run github.com/swaggo/swag/cmd/swag init -g main.go -d ./,../../internal/interfaces/http,../../internal/application/dto -o ../../docs --outputTypes json

// @title        Stock Ledger API
// @version      1.0
// @description  Libro de movimientos de inventario con costo promedio ponderado.
// @BasePath     /
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:     cfg.App.Env,
		Level:   cfg.App.LogLevel,
		Service: cfg.App.Name,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Dur("lock_timeout", cfg.DB.LockTimeout).
		Msg("iniciando aplicación")

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	recorder := metrics.NewLedgerRecorder("ledger")
	opts := []inventory.Option{
		inventory.WithRecorder(recorder),
		inventory.WithLogger(log.Component("ledger")),
	}
	if cfg.Redis.Enabled() {
		rdb, err := infraredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a Redis")
		}
		defer func() { _ = rdb.Close() }()
		opts = append(opts, inventory.WithSubmissionGuard(
			infraredis.NewSubmissionLock(rdb, cfg.Redis.SubmissionLockTTL, log.Component("redis")),
		))
	} else {
		log.Warn().Msg("REDIS_ADDR vacío: sin guardia de envíos duplicados")
	}

	txRunner := postgres.NewTxRunner(pool, cfg.DB.LockTimeout)
	productRepo := postgres.NewProductRepository(pool)
	balanceRepo := postgres.NewBalanceRepository(pool)
	movementRepo := postgres.NewMovementRepository(pool)

	ledgerUC := inventory.NewStockLedgerUseCase(txRunner, productRepo, opts...)
	entryUC := inventory.NewStockEntryUseCase(ledgerUC)
	queryUC := inventory.NewLedgerQueryUseCase(balanceRepo, movementRepo)
	reconcileUC := inventory.NewReconcileUseCase(txRunner)
	productUC := usecase.NewProductUseCase(productRepo)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	if !httpRouter.MountDocs(app, cfg.HTTP.SwaggerFile) {
		log.Debug().Str("file", cfg.HTTP.SwaggerFile).Msg("sin spec de swagger, /docs deshabilitado")
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		if err := pool.Ping(c.UserContext()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "db_unavailable", "service": cfg.App.Name})
		}
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})
	app.Get("/metrics", adaptor.HTTPHandler(recorder.Handler()))

	httpRouter.Router(app, httpRouter.RouterDeps{
		Ledger:    ledgerUC,
		Entries:   entryUC,
		Queries:   queryUC,
		Reconcile: reconcileUC,
		Products:  productUC,
		Log:       log.Component("http"),
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}
