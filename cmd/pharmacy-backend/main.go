package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"

	"pharmacy-backend/internal/config"
	"pharmacy-backend/internal/env"
	"pharmacy-backend/internal/infrastructure/export"
	"pharmacy-backend/internal/infrastructure/notify"
	"pharmacy-backend/internal/infrastructure/repo"
	"pharmacy-backend/internal/server"
	"pharmacy-backend/internal/usecase"

	"github.com/rs/zerolog"
)

type store interface {
	usecase.OrderRepo
	usecase.ProductRepo
	usecase.ReturnRepo
	usecase.MovementRepo
}

func main() {
	env.Load(".env", ".env.local")
	envDefaults := config.EnvDefaults()

	envName := flag.String("env", envDefaults.Env, "")
	port := flag.Int("port", envDefaults.Port, "")
	databaseURL := flag.String("database-url", envDefaults.DatabaseURL, "")
	jwtSecret := flag.String("jwt-secret", envDefaults.JWTSecret, "")
	logJSON := flag.Bool("log-json", envDefaults.LogJSON, "")
	exportsDir := flag.String("exports", envDefaults.ExportsDir, "")
	notifyURL := flag.String("notify-url", envDefaults.NotifyURL, "")
	publicBase := flag.String("public-base-url", envDefaults.PublicBaseURL, "")

	flag.Parse()

	cfg := config.Config{
		Env:           *envName,
		Port:          *port,
		DatabaseURL:   *databaseURL,
		JWTSecret:     *jwtSecret,
		LogJSON:       *logJSON,
		ExportsDir:    *exportsDir,
		NotifyURL:     *notifyURL,
		PublicBaseURL: *publicBase,
	}

	log := newLogger(cfg)

	var db store
	if cfg.DatabaseURL != "" {
		pg, err := repo.NewPostgresRepo(cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("postgres init failed")
		}
		db = pg
	} else {
		log.Warn().Msg("no database configured, using in-memory store")
		db = repo.NewMemoryStore()
	}

	ledger := &usecase.LedgerService{Movements: db, Logger: log}
	stock := &usecase.StockService{Products: db, Ledger: ledger, Logger: log}
	orders := &usecase.OrderService{
		Orders: db,
		Stock:  stock,
		Notify: &notify.Client{BaseURL: cfg.NotifyURL},
		Logger: log,
	}
	returns := &usecase.ReturnService{Orders: db, Returns: db, Stock: stock, Logger: log}
	exports := export.NewFSWriter(cfg.ExportsDir, cfg.PublicBaseURL)

	srv := server.New(cfg, log, orders, returns, ledger, exports)
	addr := fmt.Sprintf(":%d", cfg.Port)
	log.Info().Str("env", cfg.Env).Str("addr", addr).Msg("pharmacy backend listening")
	if err := http.ListenAndServe(addr, srv.Handler()); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func newLogger(cfg config.Config) zerolog.Logger {
	if cfg.LogJSON {
		return zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
}
