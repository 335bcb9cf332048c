package promptforge

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// BatchProcessor runs independent requests through the engine concurrently,
// throttled so a batch cannot flood the gateway.
type BatchProcessor struct {
	Engine      *Engine
	rateLimiter *rate.Limiter
}

// NewBatchProcessor creates a batch processor with a conservative default
// rate of one request every three seconds.
func NewBatchProcessor(engine *Engine) *BatchProcessor {
	return &BatchProcessor{
		Engine:      engine,
		rateLimiter: rate.NewLimiter(rate.Every(3*time.Second), 1),
	}
}

// SetRateLimit replaces the default throttle.
func (b *BatchProcessor) SetRateLimit(r rate.Limit, burst int) {
	b.rateLimiter = rate.NewLimiter(r, burst)
}

// BatchResult is the outcome of one request in a batch.
type BatchResult struct {
	Index  int
	Result *Result
	Err    error
}

// Process runs every request, preserving input order in the results. Each
// request is independent; one failure does not stop the others.
func (b *BatchProcessor) Process(ctx context.Context, requests []*Request) []BatchResult {
	results := make([]BatchResult, len(requests))
	var wg sync.WaitGroup
	for i, req := range requests {
		wg.Add(1)
		go func(i int, req *Request) {
			defer wg.Done()

			if err := b.rateLimiter.Wait(ctx); err != nil {
				results[i] = BatchResult{Index: i, Err: err}
				return
			}
			result, err := b.Engine.Process(ctx, req)
			results[i] = BatchResult{Index: i, Result: result, Err: err}
		}(i, req)
	}
	wg.Wait()
	return results
}
