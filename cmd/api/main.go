package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	server "house_price/internal/adapters/http_server"
	"house_price/internal/adapters/observability"
	"house_price/internal/adapters/predictapi"
	redisad "house_price/internal/adapters/redis"
	"house_price/internal/app"
	"house_price/internal/domain"
	"house_price/internal/pricing"
	"house_price/internal/shared"
	mysqlrepo "house_price/internal/storage/mysql"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	observability.Serve()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// predictor
	var (
		predictor domain.Predictor
		info      server.ModelInfo
		checks    []func(context.Context) error
	)
	switch cfg.Predictor {
	case "remote":
		cl, err := predictapi.New(cfg.PredictAPIURL, cfg.PredictAPIRPS, cfg.PredictTimeout,
			predictapi.WithAttempts(cfg.PredictAttempts))
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize prediction client")
		}
		predictor = cl
		checks = append(checks, func(ctx context.Context) error {
			_, err := cl.Health(ctx)
			return err
		})
		info = server.ModelInfo{ModelType: "remote", Source: domain.SourceRemote, Endpoint: cfg.PredictAPIURL}
	default:
		tables := pricing.DefaultTables()
		if cfg.PricingTablesPath != "" {
			t, err := pricing.LoadTables(cfg.PricingTablesPath)
			if err != nil {
				log.Fatal().Err(err).Msg("pricing tables")
			}
			tables = t
		}
		seed := cfg.JitterSeed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		predictor = pricing.NewEstimator(tables, pricing.NewRandJitter(seed))
		sum := tables.Summary()
		info = server.ModelInfo{ModelType: "formula", Source: domain.SourceLocal, Tables: &sum}
	}
	log.Info().Str("predictor", string(predictor.Source())).Msg("predictor ready")

	opts := []app.PredictionOption{app.WithWorkers(cfg.Workers)}
	// the local formula answers instantly; the delay stands in for model latency
	if predictor.Source() == domain.SourceLocal {
		opts = append(opts, app.WithDelay(cfg.SimulatedDelay))
	}

	// history (optional)
	if cfg.MySQLDSN != "" {
		db, err := mysqlrepo.Open(cfg.MySQLDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("open database failed")
		}
		defer db.Close()
		repo := mysqlrepo.New(db)
		if err := repo.Ping(ctx); err != nil {
			log.Fatal().Err(err).Msg("db.Ping failed")
		}
		log.Info().Msg("database connection ok")
		opts = append(opts, app.WithHistory(repo))
		checks = append(checks, repo.Ping)
	}

	// redis: prediction cache and form sessions (optional)
	var store *redisad.Cache
	if cfg.RedisAddr != "" {
		cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		defer cache.Close()
		if err := cache.Ping(ctx); err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unavailable; cache and sessions disabled")
		} else {
			store = cache
			if cfg.CacheTTL > 0 {
				opts = append(opts, app.WithCache(cache, cfg.CacheTTL))
			}
		}
	}

	preds := app.NewPredictionService(predictor, opts...)
	var sessions *app.SessionService
	if store != nil {
		sessions = app.NewSessionService(store, preds.Predict, cfg.SessionTTL, cfg.PredictTimeout)
	}

	// http
	srv := server.New(cfg.CORSOrigins...)
	reg := observability.InitRegistry()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{
		P:    preds,
		S:    sessions,
		Info: info,
		Ready: func(ctx context.Context) error {
			for _, check := range checks {
				if err := check(ctx); err != nil {
					return err
				}
			}
			return nil
		},
	})

	log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux(), ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("http shutdown failed")
		}
	}()

	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("http server failed")
	}
	log.Info().Msg("API stopped")
}
