package sitegen

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
)

// ErrDuplicateOutputPath is reported when two items in a RenderEach
// call compute the same output path. The first item still renders; the
// later ones fail with this error so the collision surfaces instead of
// silently racing on the file.
var ErrDuplicateOutputPath = errors.New("duplicate output path")

// maxRenderWorkers caps the render pool; past this point the work is
// filesystem bound and extra workers stop paying off.
const maxRenderWorkers = 8

func renderWorkerCount(items int) int {
	workers := runtime.NumCPU()
	if workers > maxRenderWorkers {
		workers = maxRenderWorkers
	}
	if workers > items {
		workers = items
	}
	if workers < 1 {
		workers = 1
	}
	return workers
}

// RenderEach renders every item concurrently on a bounded worker pool,
// writing each result to the path computed by pathFn and creating
// parent directories as needed. All items are attempted even when some
// fail; failures are merged back into the collection's item order and
// returned as an *AggregateError, so the report is deterministic
// despite non-deterministic completion timing. A directory-creation
// failure counts as that item's failure, not as a fatal error.
func (c *Collection[T]) RenderEach(renderFn func(*T) ([]byte, error), pathFn func(*T) string) error {
	n := len(c.items)
	if n == 0 {
		return nil
	}

	outPaths := make([]string, n)
	// failures is indexed by item position; each worker writes only
	// the slots of the jobs it took, so no locking is needed.
	failures := make([]*PathError, n)

	seen := make(map[string]int, n)
	for i := range c.items {
		out := pathFn(&c.items[i].Value)
		outPaths[i] = out
		if first, dup := seen[out]; dup {
			failures[i] = &PathError{
				Path: c.items[i].Path,
				Err:  fmt.Errorf("%w: %s is also written by %s", ErrDuplicateOutputPath, out, c.items[first].Path),
			}
			continue
		}
		seen[out] = i
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < renderWorkerCount(n); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				item := &c.items[i]
				data, err := renderFn(&item.Value)
				if err != nil {
					failures[i] = &PathError{Path: item.Path, Err: err}
					continue
				}
				if err := Write(data, outPaths[i]); err != nil {
					failures[i] = &PathError{Path: item.Path, Err: err}
				}
			}
		}()
	}

	for i := range c.items {
		if failures[i] != nil {
			// Colliding output path, already failed.
			continue
		}
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	var errs []*PathError
	for _, f := range failures {
		if f != nil {
			errs = append(errs, f)
		}
	}
	return aggregate("render", errs)
}

// RenderAll renders the whole collection once, synchronously, to a
// single output file. When chained after RenderEach it observes the
// same, unmutated collection; rendering never modifies items.
func (c *Collection[T]) RenderAll(renderFn func(items []T) ([]byte, error), outPath string) error {
	data, err := renderFn(c.Items())
	if err != nil {
		return fmt.Errorf("render %s: %w", outPath, err)
	}
	return Write(data, outPath)
}
