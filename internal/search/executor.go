package search

import (
	"context"
	"sync"
)

// DefaultConcurrency bounds the search fan-out worker pool.
const DefaultConcurrency = 3

// Searcher performs one external web search.
type Searcher interface {
	Search(ctx context.Context, query string) (string, error)
}

// Result is the outcome of one query. A failed query carries its error here
// rather than aborting sibling queries.
type Result struct {
	Query string
	Text  string
	Err   error
}

// RunAll fans the given queries out over a fixed worker pool and returns a
// mapping keyed by the literal query string once every query has completed.
// Duplicate queries collapse to a single call and a single slot. Each worker
// writes only its own pre-allocated slot, so no locking is needed on the
// result set.
func RunAll(ctx context.Context, s Searcher, queries []string, concurrency int) map[string]Result {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	unique := dedupe(queries)
	if len(unique) == 0 {
		return map[string]Result{}
	}

	results := make([]Result, len(unique))
	jobs := make(chan int)

	workers := concurrency
	if workers > len(unique) {
		workers = len(unique)
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				text, err := s.Search(ctx, unique[i])
				results[i] = Result{Query: unique[i], Text: text, Err: err}
			}
		}()
	}

	for i := range unique {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	out := make(map[string]Result, len(unique))
	for _, r := range results {
		out[r.Query] = r
	}
	return out
}

func dedupe(queries []string) []string {
	seen := make(map[string]struct{}, len(queries))
	var out []string
	for _, q := range queries {
		if q == "" {
			continue
		}
		if _, ok := seen[q]; ok {
			continue
		}
		seen[q] = struct{}{}
		out = append(out, q)
	}
	return out
}
