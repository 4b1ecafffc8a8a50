// Command serpcmp compares the organic search results of several queries.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/FranksOps/serpcmp/internal/config"
	"github.com/FranksOps/serpcmp/internal/fingerprint"
	"github.com/FranksOps/serpcmp/internal/metrics"
	"github.com/FranksOps/serpcmp/internal/pipeline"
	"github.com/FranksOps/serpcmp/internal/serp"
	"github.com/FranksOps/serpcmp/pkg/ratelimit"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// app carries state shared by subcommands after configuration is loaded.
type app struct {
	v      *viper.Viper
	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	var configPath string

	root := &cobra.Command{
		Use:           "serpcmp",
		Short:         "Compare organic search results across keywords, languages, devices and countries",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			v, err := config.New(configPath)
			if err != nil {
				return err
			}
			if err := bindFlags(v, cmd); err != nil {
				return err
			}
			cfg, err := config.Decode(v)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			a.v, a.cfg = v, cfg
			a.logger = cfg.NewLogger()
			slog.SetDefault(a.logger)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ./serpcmp.yaml)")

	root.AddCommand(newCompareCmd(a), newServeCmd(a), newReportCmd(a))
	return root
}

// flagKeys maps command-line flags onto config keys.
var flagKeys = map[string]string{
	"num":      "result_count",
	"provider": "provider",
	"addr":     "server.addr",
}

func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	for name, key := range flagKeys {
		f := cmd.Flags().Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind --%s: %w", name, err)
		}
	}
	return nil
}

// runtime is a provider and its optional pieces, ready for a pipeline.
type runtime struct {
	pipeline *pipeline.Pipeline
	limiter  *ratelimit.Limiter
	metrics  *metrics.Server
	closers  []io.Closer
}

func (a *app) newRuntime() (*runtime, error) {
	cfg := a.cfg
	provider, limiter, err := serp.New(serp.Options{
		Name:              cfg.Provider,
		BaseURL:           cfg.BaseURL,
		Timeout:           cfg.Fetch.Timeout,
		RequestsPerSecond: cfg.Rate.RPS,
		Jitter:            cfg.Rate.Jitter,
		Fingerprint:       fingerprint.Profile(cfg.Fetch.Fingerprint),
		ProxiesFile:       cfg.Fetch.ProxiesFile,
		CacheTTL:          cfg.CacheTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("create provider: %w", err)
	}

	rt := &runtime{limiter: limiter}
	backend, err := openBackend(cfg.Storage)
	if err != nil {
		limiter.Stop()
		return nil, err
	}
	if backend != nil {
		rt.closers = append(rt.closers, backend)
	}

	rt.pipeline = &pipeline.Pipeline{
		Provider:    provider,
		Backend:     backend,
		Logger:      a.logger,
		Concurrency: cfg.Concurrency,
	}
	if cfg.Metrics.Port > 0 {
		rt.metrics = metrics.Start(cfg.Metrics.Port)
	}
	return rt, nil
}

func (rt *runtime) Close(ctx context.Context) {
	if rt.metrics != nil {
		_ = rt.metrics.Stop(ctx)
	}
	for _, c := range rt.closers {
		_ = c.Close()
	}
	rt.limiter.Stop()
}
