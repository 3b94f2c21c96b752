package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"house_price/internal/adapters/observability"
	"house_price/internal/adapters/predictapi"
	"house_price/internal/app"
	"house_price/internal/display"
	"house_price/internal/domain"
	"house_price/internal/pricing"
	"house_price/internal/shared"
	mysqlrepo "house_price/internal/storage/mysql"
)

// estimate prices every row of a listings CSV and prints the result block
// for each one, in input order.
func main() {
	os.Exit(run())
}

// run returns the process exit code so deferred closes always happen.
func run() int {
	cfg := shared.Load()

	in := flag.String("in", "-", "CSV file with a header row (- for stdin)")
	workers := flag.Int("workers", cfg.Workers, "concurrent predictions")
	save := flag.Bool("save", false, "store predictions in MySQL (MYSQL_DSN)")
	flag.Parse()

	// 1) initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	ctx := context.Background()

	r := io.Reader(os.Stdin)
	if *in != "-" {
		f, err := os.Open(*in)
		if err != nil {
			log.Error().Err(err).Msg("open input")
			return 2
		}
		defer f.Close()
		r = f
	}
	rows, err := app.ReadCSV(r)
	if err != nil {
		log.Error().Err(err).Msg("read input")
		return 2
	}

	var predictor domain.Predictor
	if cfg.Predictor == "remote" {
		cl, err := predictapi.New(cfg.PredictAPIURL, cfg.PredictAPIRPS, cfg.PredictTimeout,
			predictapi.WithAttempts(cfg.PredictAttempts))
		if err != nil {
			log.Error().Err(err).Msg("failed to initialize prediction client")
			return 2
		}
		predictor = cl
	} else {
		tables := pricing.DefaultTables()
		if cfg.PricingTablesPath != "" {
			if tables, err = pricing.LoadTables(cfg.PricingTablesPath); err != nil {
				log.Error().Err(err).Msg("pricing tables")
				return 2
			}
		}
		seed := cfg.JitterSeed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		predictor = pricing.NewEstimator(tables, pricing.NewRandJitter(seed))
	}

	var opts []app.PredictionOption
	if *save {
		if cfg.MySQLDSN == "" {
			log.Error().Msg("-save needs MYSQL_DSN")
			return 2
		}
		db, err := mysqlrepo.Open(cfg.MySQLDSN)
		if err != nil {
			log.Error().Err(err).Msg("open database failed")
			return 2
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			log.Error().Err(err).Msg("db.Ping failed")
			return 2
		}
		log.Info().Msg("db ping ok")
		opts = append(opts, app.WithHistory(mysqlrepo.New(db)))
	}
	svc := app.NewPredictionService(predictor, opts...)

	log.Info().
		Int("rows", len(rows)).
		Int("workers", *workers).
		Str("predictor", string(predictor.Source())).
		Msg("estimate starting")

	results := make([]*domain.PredictionResult, len(rows))
	if *workers < 1 {
		*workers = 1
	}
	sem := semaphore.NewWeighted(int64(*workers))
	var wg sync.WaitGroup

	for i, row := range rows {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Error().Err(err).Msg("semaphore acquire failed")
			break
		}

		wg.Add(1)
		go func(i int, row map[string]string) {
			defer wg.Done()
			defer sem.Release(1)

			line := i + 2 // header is line 1
			input, err := app.MapRow(row)
			if err == nil {
				err = input.Validate()
			}
			if err != nil {
				log.Warn().Int("line", line).Err(err).Msg("row skipped")
				return
			}
			res, err := svc.Predict(ctx, input)
			if err != nil {
				log.Warn().Int("line", line).Err(err).Msg("prediction failed")
				return
			}
			results[i] = &res
		}(i, row)
	}
	wg.Wait()

	failed := 0
	for i, res := range results {
		if res == nil {
			failed++
			continue
		}
		fmt.Printf("# line %d\n", i+2)
		if err := display.Render(os.Stdout, display.NewView(*res)); err != nil {
			log.Error().Err(err).Msg("write output")
			return 2
		}
	}
	log.Info().Int("ok", len(rows)-failed).Int("failed", failed).Msg("estimate completed")
	if failed > 0 {
		return 1
	}
	return 0
}
