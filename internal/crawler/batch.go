package crawler

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/webcrawl/internal/model"
)

// BatchResult is the outcome of one run in a batch.
type BatchResult struct {
	// Index is the position of the config in the input slice.
	Index  int
	Config Config
	Result *model.CrawlResult
	Err    error
}

// RunBatch runs several independent crawls with at most concurrency running
// at once. Each run has its own frontier and page counter. A failing run
// does not stop the others; its error is reported through callback.
//
// callback is invoked from the goroutine that finished the run and must be
// safe for concurrent use. RunBatch returns ctx.Err() if the batch was
// cancelled.
func (c *Crawler) RunBatch(ctx context.Context, configs []Config, concurrency int, callback func(BatchResult)) error {
	if concurrency <= 0 {
		concurrency = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, cfg := range configs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			result, err := c.Run(gctx, cfg)
			if err != nil {
				c.logger.Warn("crawl failed", "start_url", cfg.StartURL, "error", err)
			}
			if callback != nil {
				callback(BatchResult{Index: i, Config: cfg, Result: result, Err: err})
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
