package executor

import (
	"context"
	"sync"

	"github.com/tracekit/spanql/internal/store"
)

// BatchItem is the outcome of one script in a batch. Exactly one of
// Result and Err is set.
type BatchItem struct {
	Script string
	Result *Result
	Err    error
}

// ExecuteBatch runs several scripts concurrently against the same
// store, at most parallelism at a time (1 when parallelism is not
// positive). Results come back in input order and one failing script
// does not stop the others. Each script gets its own scope, so scripts
// never see each other's includes.
func (e *Executor) ExecuteBatch(ctx context.Context, h *store.Handle, scripts []string, parallelism int) []BatchItem {
	if parallelism <= 0 {
		parallelism = 1
	}

	items := make([]BatchItem, len(scripts))
	sem := make(chan struct{}, parallelism)
	var wg sync.WaitGroup

	for i, script := range scripts {
		wg.Add(1)
		go func(i int, script string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			res, err := e.Execute(ctx, h, script)
			items[i] = BatchItem{Script: script, Result: res, Err: err}
		}(i, script)
	}
	wg.Wait()

	return items
}
