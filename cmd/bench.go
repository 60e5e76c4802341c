package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/patrikhermansson/hanndb/collection"
	"github.com/patrikhermansson/hanndb/example"
	"github.com/patrikhermansson/hanndb/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newBenchCmd() *cobra.Command {
	var (
		pf       paramFlags
		dataset  string
		train    int
		test     int
		dim      int
		k        int
		ef       int
		queries  int
		threads  int
		dataSeed int64
		listen   string
		save     string
		quiet    bool
	)
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure recall and latency on a dataset or synthetic vectors",
		Long: `Builds a collection from the train vectors of a dataset and runs its test
queries, reporting Recall@k against the exact ground truth.

A dataset directory holds train.csv, test.csv, neighbors.csv and optionally
distances.csv. Without --dataset a uniform random dataset is generated.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			params, err := pf.params(cmd)
			if err != nil {
				return err
			}

			var ds *example.Dataset
			if dataset != "" {
				ds, err = example.LoadDataset(dataset)
			} else {
				ds, err = example.GenerateDataset(ctx, "synthetic", train, test, dim, k, params.Distance, dataSeed)
			}
			if err != nil {
				return err
			}
			if save != "" {
				if err := example.WriteDataset(save, ds); err != nil {
					return err
				}
			}

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			m := metrics.New(reg, "hanndb")
			if listen != "" {
				stop := serveDebug(listen, reg)
				defer stop()
			}

			opts, err := pf.options(ds.Name)
			if err != nil {
				return err
			}
			var progress io.Writer
			if !quiet {
				progress = cmd.ErrOrStderr()
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Dataset: %s\n", ds.Name)
			start := time.Now()
			c, err := example.BuildCollection(ds, params, progress, append(opts, collection.WithMetrics(m))...)
			if err != nil {
				return err
			}
			stats := c.Stats()
			fmt.Fprintf(w, "Indexed %d vectors (%d dimensions) in %.2fs; distance: %s; top level: %d\n",
				stats.Count, stats.Dimension, time.Since(start).Seconds(), stats.Distance, stats.TopLevel)

			report, err := example.RunBenchmark(ctx, c, ds, example.BenchConfig{
				K:          k,
				Ef:         ef,
				NumQueries: queries,
				Threads:    threads,
				Progress:   progress,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(w, report.String())
			return nil
		},
	}
	pf.register(cmd)
	f := cmd.Flags()
	f.StringVar(&dataset, "dataset", "", "dataset directory, empty for synthetic data")
	f.IntVar(&train, "train", 10000, "synthetic train vectors")
	f.IntVar(&test, "test", 100, "synthetic test queries")
	f.IntVar(&dim, "dim", 32, "synthetic vector dimension")
	f.Int64Var(&dataSeed, "data-seed", 1, "synthetic data seed")
	f.IntVarP(&k, "k", "k", 10, "neighbors per query")
	f.IntVar(&ef, "ef", 0, "beam width, 0 for ef_search")
	f.IntVar(&queries, "queries", 0, "queries to run, 0 for all")
	f.IntVar(&threads, "threads", 0, "query workers, 0 for one per CPU")
	f.StringVar(&listen, "listen", "", "serve /metrics and /debug/pprof on this address while running")
	f.StringVar(&save, "save-dataset", "", "write the dataset as CSV files into this directory")
	f.BoolVarP(&quiet, "quiet", "q", false, "hide progress bars")
	return cmd
}

// serveDebug exposes reg on /metrics and the pprof handlers under /debug/pprof/.
// The returned function shuts the server down.
func serveDebug(addr string, reg *prometheus.Registry) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Info().Msgf("Serving metrics and pprof on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Debug server failed")
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
