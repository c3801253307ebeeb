package main

import (
	"flag"

	"github.com/jhoicas/stock-ledger/internal/infrastructure/postgres"
	"github.com/jhoicas/stock-ledger/pkg/config"
	"github.com/jhoicas/stock-ledger/pkg/logger"
)

func main() {
	down := flag.Bool("down", false, "revertir todas las migraciones")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}
	log := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel, Service: "migrate"})

	run := postgres.Migrate
	if *down {
		run = postgres.MigrateDown
	}
	if err := run(cfg.DB.ConnectionString(), log.Zerolog()); err != nil {
		log.Fatal().Err(err).Msg("migraciones")
	}
}
