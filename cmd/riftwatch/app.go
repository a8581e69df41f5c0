package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/riftwatch/riftwatch/internal/config"
	"github.com/riftwatch/riftwatch/internal/history"
	"github.com/riftwatch/riftwatch/internal/quota"
	"github.com/riftwatch/riftwatch/internal/riot"
	"github.com/riftwatch/riftwatch/internal/staticdata"
	"github.com/riftwatch/riftwatch/internal/store"
)

// app bundles the shared wiring every subcommand needs: configuration, the
// match store, the quota ledger and the vendor client.
type app struct {
	cfg       *config.Config
	store     *store.Store
	ledger    quota.Ledger
	admission *quota.AdmissionLog
	client    *riot.Client
	dragon    *staticdata.DataDragon
	resolver  *staticdata.Resolver
	catalogs  *staticdata.Catalogs
	log       zerolog.Logger
}

// buildApp wires the process. ratelimitLogfile is optional; when set, every
// quota admission decision is appended there as CSV.
func buildApp(ctx context.Context, cmd *cobra.Command, logger zerolog.Logger, ratelimitLogfile string) (*app, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}

	var admission *quota.AdmissionLog
	if ratelimitLogfile != "" {
		if admission, err = quota.OpenAdmissionLog(ratelimitLogfile); err != nil {
			return nil, err
		}
	}
	ledger, err := openLedger(cfg, admission)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.PostgresDSN(), logger)
	if err != nil {
		return nil, err
	}
	if err := st.EnsureSchema(ctx); err != nil {
		return nil, err
	}

	methods := riot.MethodLimits(nil)
	if path, _ := cmd.Flags().GetString("method-limits"); path != "" {
		if methods, err = riot.LoadMethodLimits(path); err != nil {
			return nil, err
		}
	}
	client := riot.NewClient(riot.ClientConfig{
		APIKey:       cfg.APIKey,
		AppLimits:    cfg.AppRateLimits,
		MethodLimits: methods,
		Ledger:       ledger,
		Logger:       logger,
	})

	dragon := staticdata.NewDataDragon(nil, logger)

	if addr, _ := cmd.Flags().GetString("metrics-addr"); addr != "" {
		serveMetrics(addr, logger)
	}

	return &app{
		cfg:       cfg,
		store:     st,
		ledger:    ledger,
		admission: admission,
		client:    client,
		dragon:    dragon,
		resolver:  staticdata.NewResolver(st, dragon, logger),
		catalogs:  staticdata.NewCatalogs(st),
		log:       logger,
	}, nil
}

func (a *app) Close() {
	if err := a.ledger.Close(); err != nil {
		a.log.Warn().Err(err).Msg("ledger close failed")
	}
	if a.admission != nil {
		if err := a.admission.Close(); err != nil {
			a.log.Warn().Err(err).Msg("admission log close failed")
		}
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn().Err(err).Msg("store close failed")
	}
}

// region resolves a region row, creating it on first sight.
func (a *app) region(ctx context.Context, name string) (*store.Region, error) {
	return a.store.Regions.GetOrCreate(ctx, strings.ToUpper(name))
}

// source is the persisted-or-fetched match body source for history walks.
func (a *app) source(region store.Region) *history.StoreSource {
	return &history.StoreSource{
		Client:   a.client,
		Store:    a.store,
		Versions: a.resolver,
		Region:   region,
		Log:      a.log,
	}
}

func openLedger(cfg *config.Config, admission *quota.AdmissionLog) (quota.Ledger, error) {
	switch cfg.LedgerBackend {
	case "mysql":
		return quota.OpenMySQLLedger(cfg.MySQLDSN(), admission)
	case "postgres":
		return quota.OpenPostgresLedger(cfg.PostgresDSN(), admission)
	case "redis":
		return quota.NewRedisLedger(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}), admission), nil
	case "memory":
		return quota.NewMemoryLedger(admission), nil
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.LedgerBackend)
	}
}

func serveMetrics(addr string, logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		logger.Info().Str("addr", addr).Msg("serving metrics")
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error().Err(err).Msg("metrics server stopped")
		}
	}()
}
