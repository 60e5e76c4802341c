package example

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"slices"
	"time"

	"github.com/patrikhermansson/hanndb/collection"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"
)

// BenchConfig controls a query benchmark.
type BenchConfig struct {
	K          int       // neighbors per query
	Ef         int       // beam width, 0 for the collection default
	NumQueries int       // queries to run, <= 0 or too large means all
	Threads    int       // concurrent query workers, <= 0 means runtime.NumCPU()
	Progress   io.Writer // progress bar destination, nil disables the bar
}

// QueryResult holds the results for a single query.
type QueryResult struct {
	Index    int
	Recall   float64
	Duration time.Duration
}

// Report summarizes a benchmark run.
type Report struct {
	Queries    int
	K          int
	Ef         int
	Threads    int
	RecallMean float64
	RecallStd  float64
	LatencyP50 time.Duration
	LatencyP95 time.Duration
	LatencyP99 time.Duration
	Wall       time.Duration
	Results    []QueryResult
}

// QPS returns the query throughput over the wall-clock time.
func (r Report) QPS() float64 {
	if r.Wall <= 0 {
		return 0
	}
	return float64(r.Queries) / r.Wall.Seconds()
}

func (r Report) String() string {
	return fmt.Sprintf("queries=%d k=%d ef=%d threads=%d recall@%d=%.4f±%.4f p50=%v p95=%v p99=%v qps=%.0f",
		r.Queries, r.K, r.Ef, r.Threads, r.K, r.RecallMean, r.RecallStd,
		r.LatencyP50, r.LatencyP95, r.LatencyP99, r.QPS())
}

// RunBenchmark runs the test queries of ds against c concurrently and measures
// Recall@k against the dataset's ground truth.
func RunBenchmark(ctx context.Context, c *collection.Collection[int], ds *Dataset, cfg BenchConfig) (Report, error) {
	numQueries := cfg.NumQueries
	if numQueries <= 0 || numQueries > len(ds.Test) {
		numQueries = len(ds.Test)
	}
	threads := cfg.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}

	var bar *progressbar.ProgressBar
	if cfg.Progress != nil {
		bar = progressbar.NewOptions(numQueries,
			progressbar.OptionSetWriter(cfg.Progress),
			progressbar.OptionSetDescription(fmt.Sprintf("searching k=%d", cfg.K)),
			progressbar.OptionShowCount(),
			progressbar.OptionThrottle(100*time.Millisecond),
		)
	}

	results := make([]QueryResult, numQueries)
	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(threads)
	for idx := 0; idx < numQueries; idx++ {
		idx := idx
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			t := time.Now()
			res, err := c.SearchWithEf(ds.Test[idx], cfg.K, cfg.Ef)
			if err != nil {
				return fmt.Errorf("query %d: %w", idx, err)
			}
			results[idx] = QueryResult{
				Index:    idx,
				Recall:   RecallAtK(res, ds.Neighbors[idx], cfg.K),
				Duration: time.Since(t),
			}
			if bar != nil {
				_ = bar.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Report{}, err
	}
	if bar != nil {
		_ = bar.Finish()
	}

	report := Report{
		Queries: numQueries,
		K:       cfg.K,
		Ef:      cfg.Ef,
		Threads: threads,
		Wall:    time.Since(start),
		Results: results,
	}
	if numQueries == 0 {
		return report, nil
	}

	recalls := make([]float64, numQueries)
	latencies := make([]float64, numQueries)
	for i, r := range results {
		recalls[i] = r.Recall
		latencies[i] = float64(r.Duration)
	}
	report.RecallMean, report.RecallStd = stat.MeanStdDev(recalls, nil)
	slices.Sort(latencies)
	report.LatencyP50 = time.Duration(stat.Quantile(0.50, stat.Empirical, latencies, nil))
	report.LatencyP95 = time.Duration(stat.Quantile(0.95, stat.Empirical, latencies, nil))
	report.LatencyP99 = time.Duration(stat.Quantile(0.99, stat.Empirical, latencies, nil))
	return report, nil
}
