package sim

import (
	"context"
	"fmt"
	"sync"
)

// Job is one independent run in a batch. Setup builds a fresh loop so no
// scheduler or plant is shared between goroutines.
type Job struct {
	Name  string
	Ticks int
	Setup func() (*Loop, error)
}

// RunBatch runs jobs concurrently and returns their results in job order.
func RunBatch(ctx context.Context, jobs []Job) ([]*Result, error) {
	results := make([]*Result, len(jobs))
	errs := make([]error, len(jobs))

	var wg sync.WaitGroup
	for i, job := range jobs {
		wg.Add(1)
		go func() {
			defer wg.Done()

			loop, err := job.Setup()
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", job.Name, err)
				return
			}
			results[i], err = loop.Run(ctx, job.Ticks)
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", job.Name, err)
			}
		}()
	}

	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return results, err
		}
	}
	return results, nil
}
