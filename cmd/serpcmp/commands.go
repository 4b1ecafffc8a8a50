package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/FranksOps/serpcmp/internal/api"
	"github.com/FranksOps/serpcmp/internal/config"
	"github.com/FranksOps/serpcmp/internal/pipeline"
	"github.com/FranksOps/serpcmp/internal/report"
	"github.com/FranksOps/serpcmp/internal/storage"
	"github.com/spf13/cobra"
)

func newCompareCmd(a *app) *cobra.Command {
	var (
		rawQueries []string
		format     string
		output     string
	)

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Run one comparison and print the report",
		Example: `  serpcmp compare --query "running shoes,fr,desktop,fr" --query "running shoes,en,mobile,us"
  serpcmp compare --query shoes --query boots --num 20 --format html --output report.html`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			queries := a.cfg.Queries
			if len(rawQueries) > 0 {
				queries = queries[:0:0]
				for _, s := range rawQueries {
					q, err := config.ParseQuery(s)
					if err != nil {
						return err
					}
					queries = append(queries, q)
				}
			}
			if err := config.ValidateQueries(queries); err != nil {
				return err
			}

			rt, err := a.newRuntime()
			if err != nil {
				return err
			}
			defer rt.Close(context.Background())

			run, err := rt.pipeline.Run(cmd.Context(), pipeline.RunConfig{
				Queries:     queries,
				ResultCount: a.cfg.ResultCount,
				Credential:  a.cfg.APIKey,
			})
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create output: %w", err)
				}
				defer f.Close()
				w = f
			}
			return report.Write(w, format, run)
		},
	}

	f := cmd.Flags()
	f.StringArrayVarP(&rawQueries, "query", "q", nil, "query as keyword[,hl[,device[,gl]]] (repeatable, up to 5)")
	f.IntP("num", "n", 10, "number of results to request per query")
	f.String("provider", "serpapi", "search provider: serpapi or google")
	f.StringVarP(&format, "format", "f", report.FormatText, "report format: text, json, html or csv")
	f.StringVarP(&output, "output", "o", "", "write the report to a file instead of stdout")
	return cmd
}

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve comparisons over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := a.newRuntime()
			if err != nil {
				return err
			}
			defer rt.Close(context.Background())

			s := &api.Server{
				Pipeline:    rt.pipeline,
				Backend:     rt.pipeline.Backend,
				Credential:  a.cfg.APIKey,
				ResultCount: a.cfg.ResultCount,
				Logger:      a.logger,
			}
			srv := &http.Server{
				Addr:              a.cfg.Server.Addr,
				Handler:           s.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				a.logger.Info("listening", "addr", srv.Addr, "provider", a.cfg.Provider)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-cmd.Context().Done():
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				a.logger.Info("shutting down")
				return srv.Shutdown(ctx)
			}
		},
	}
	cmd.Flags().String("addr", ":8080", "listen address")
	return cmd
}

func newReportCmd(a *app) *cobra.Command {
	var (
		keyword string
		since   time.Duration
		limit   int
		format  string
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize stored comparison snapshots",
		RunE: func(cmd *cobra.Command, _ []string) error {
			backend, err := openBackend(a.cfg.Storage)
			if err != nil {
				return err
			}
			if backend == nil {
				return errors.New("report needs a storage backend (set storage.backend and storage.dsn)")
			}
			defer backend.Close()

			filter := storage.Filter{Keyword: keyword, Limit: limit}
			if since > 0 {
				t := time.Now().Add(-since)
				filter.Since = &t
			}
			snaps, err := backend.Query(cmd.Context(), filter)
			if err != nil {
				return fmt.Errorf("query snapshots: %w", err)
			}

			summary := report.GenerateSummary(snaps)
			switch format {
			case report.FormatJSON:
				return report.WriteSummaryJSON(cmd.OutOrStdout(), summary)
			case report.FormatText, "":
				return report.WriteSummaryText(cmd.OutOrStdout(), summary)
			default:
				return fmt.Errorf("unknown summary format %q", format)
			}
		},
	}

	f := cmd.Flags()
	f.StringVar(&keyword, "keyword", "", "only runs whose first query used this keyword")
	f.DurationVar(&since, "since", 0, "only runs newer than this (e.g. 24h)")
	f.IntVar(&limit, "limit", 0, "maximum number of runs (0 = all)")
	f.StringVarP(&format, "format", "f", report.FormatText, "summary format: text or json")
	return cmd
}
