package example

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/patrikhermansson/hanndb/collection"
	"github.com/patrikhermansson/hanndb/hnsw"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
)

// BuildCollection inserts the training rows of ds, in order, into a new collection.
// A non-nil progress writer shows an insertion progress bar.
func BuildCollection(ds *Dataset, params hnsw.Params, progress io.Writer, opts ...collection.Option) (*collection.Collection[int], error) {
	c, err := collection.New[int](ds.Dimension(), params, opts...)
	if err != nil {
		return nil, err
	}
	var bar *progressbar.ProgressBar
	if progress != nil {
		bar = progressbar.NewOptions(len(ds.Train),
			progressbar.OptionSetWriter(progress),
			progressbar.OptionSetDescription("indexing"),
			progressbar.OptionShowCount(),
			progressbar.OptionThrottle(100*time.Millisecond),
		)
	}
	for id, vec := range ds.Train {
		if err := c.Insert(id, vec, nil); err != nil {
			return nil, fmt.Errorf("failed to insert row %d: %w", id, err)
		}
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	if bar != nil {
		_ = bar.Finish()
	}
	return c, nil
}

// RunDataset builds a collection from ds and runs the benchmark queries.
// It prints predicted results and ground truth for the first maxShown queries,
// then the summary report.
func RunDataset(ctx context.Context, w io.Writer, ds *Dataset, params hnsw.Params, cfg BenchConfig, maxShown, maxResults int) (Report, error) {
	fmt.Fprintf(w, "Dataset: %s\n", ds.Name)
	start := time.Now()

	c, err := BuildCollection(ds, params, cfg.Progress)
	if err != nil {
		return Report{}, err
	}
	stats := c.Stats()
	fmt.Fprintf(w, "Indexed %d vectors (%d dimensions) in %.2fs; distance: %s; top level: %d\n",
		stats.Count, stats.Dimension, time.Since(start).Seconds(), stats.Distance, stats.TopLevel)
	log.Info().Msgf("Built collection for %s with %d edges", ds.Name, stats.Edges)

	report, err := RunBenchmark(ctx, c, ds, cfg)
	if err != nil {
		return Report{}, err
	}

	for i := 0; i < min(maxShown, report.Queries); i++ {
		res, err := c.SearchWithEf(ds.Test[i], cfg.K, cfg.Ef)
		if err != nil {
			return Report{}, err
		}
		var dists []float64
		if i < len(ds.Distances) {
			dists = ds.Distances[i]
		}
		fmt.Fprintf(w, "Query #%d:\n", i+1)
		fmt.Fprintf(w, " -> Predicted:     %s\n", FormatResults(res, maxResults))
		fmt.Fprintf(w, " -> Ground-truth:  %s\n", FormatGroundTruth(ds.Neighbors[i], dists, maxResults))
		fmt.Fprintf(w, " -> Recall@%d:     %.2f, Response time: %v\n", cfg.K, report.Results[i].Recall, report.Results[i].Duration)
	}

	fmt.Fprintf(w, "%s\n", report)
	fmt.Fprintf(w, "Overall runtime: %v\n", time.Since(start))
	return report, nil
}
