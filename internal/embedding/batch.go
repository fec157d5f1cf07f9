package embedding

import (
	"context"
	"sync/atomic"
)

// runBatchPool distributes len(batches) units of work across a bounded
// worker pool. Workers are indistinguishable and pull the next batch
// index from a shared atomic counter; each worker writes only to the
// output slots its own batch owns, so no locking is required on results.
func runBatchPool(
	ctx context.Context,
	batches [][]string,
	maxConcurrent int,
	process func(ctx context.Context, batch []string) ([][]float32, error),
	onBatchDone func(),
) ([][][]float32, error) {
	results := make([][][]float32, len(batches))
	errs := make([]error, len(batches))

	workers := maxConcurrent
	if workers > len(batches) {
		workers = len(batches)
	}
	if workers < 1 {
		workers = 1
	}

	var next int64 = -1
	done := make(chan struct{}, workers)

	for w := 0; w < workers; w++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for {
				i := int(atomic.AddInt64(&next, 1))
				if i >= len(batches) {
					return
				}
				select {
				case <-ctx.Done():
					errs[i] = ctx.Err()
					return
				default:
				}
				res, err := process(ctx, batches[i])
				results[i] = res
				errs[i] = err
				if onBatchDone != nil {
					onBatchDone()
				}
			}
		}()
	}

	for w := 0; w < workers; w++ {
		<-done
	}

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

// packBatches splits texts into contiguous sub-slices of at most size B.
func packBatches(texts []string, batchSize int) [][]string {
	if batchSize < 1 {
		batchSize = 1
	}
	var out [][]string
	for i := 0; i < len(texts); i += batchSize {
		end := i + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		out = append(out, texts[i:end])
	}
	return out
}
