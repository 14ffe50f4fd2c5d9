// Package batch submits many images, each through its own input stage and
// controller, under a concurrency bound and a request rate limit.
package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oukeidos/bstudio/internal/controller"
	"github.com/oukeidos/bstudio/internal/input"
	"github.com/oukeidos/bstudio/internal/logger"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

const (
	DefaultConcurrency = 4
	DefaultQPS         = 2.0
)

type Options struct {
	Concurrency   int
	QPS           float64
	Params        input.Parameters
	MaxImageBytes int64
	Timeout       time.Duration
	// Previews is shared by every stage. Nil means a private temp store
	// removed when Run returns.
	Previews input.PreviewStore
}

// Item is the settled outcome of one image. Err is set when the image
// could not be loaded; State is then the zero (idle) state.
type Item struct {
	Index int
	Path  string
	State controller.State
	Err   error
}

// OK reports whether the image produced a result.
func (it Item) OK() bool {
	return it.Err == nil && it.State.Phase == controller.PhaseSucceeded
}

type Runner struct {
	svc     controller.Service
	opts    Options
	sem     *semaphore.Weighted
	limiter *rate.Limiter
}

func New(svc controller.Service, opts Options) *Runner {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.QPS <= 0 {
		opts.QPS = DefaultQPS
	}
	burst := int(opts.QPS)
	if burst < 1 {
		burst = 1
	}
	return &Runner{
		svc:     svc,
		opts:    opts,
		sem:     semaphore.NewWeighted(int64(opts.Concurrency)),
		limiter: rate.NewLimiter(rate.Limit(opts.QPS), burst),
	}
}

// Run processes paths and returns one Item per path in input order.
// onItem, if set, is called as each item settles, never concurrently.
// Per-image failures are reported in the items; the returned error is
// only set when ctx ends the run early.
func (r *Runner) Run(ctx context.Context, paths []string, onItem func(Item)) ([]Item, error) {
	previews := r.opts.Previews
	if previews == nil {
		tmp := input.NewTempPreviewStore()
		defer func() {
			if err := tmp.Close(); err != nil {
				logger.Warn("Failed to remove preview directory", "error", err)
			}
		}()
		previews = tmp
	}

	items := make([]Item, len(paths))
	var emitMu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		i, path := i, path
		if err := r.sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer r.sem.Release(1)
			item, err := r.one(gctx, previews, i, path)
			items[i] = item
			if err != nil {
				return err
			}
			if onItem != nil {
				emitMu.Lock()
				onItem(item)
				emitMu.Unlock()
			}
			return nil
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	for i := range items {
		if items[i].Path == "" {
			items[i] = Item{Index: i, Path: paths[i], Err: ctx.Err()}
		}
	}
	return items, err
}

func (r *Runner) one(ctx context.Context, previews input.PreviewStore, index int, path string) (Item, error) {
	item := Item{Index: index, Path: path}
	stage := input.NewStage(previews,
		input.WithMaxImageBytes(r.opts.MaxImageBytes),
		input.WithParameters(r.opts.Params),
	)
	defer stage.Close()

	if err := stage.SelectImageFile(path); err != nil {
		logger.Warn("Skipping image", "path", path, "error", err)
		item.Err = err
		return item, nil
	}

	ctrl := controller.New(stage, r.svc, controller.Options{Timeout: r.opts.Timeout})
	if err := r.limiter.Wait(ctx); err != nil {
		item.Err = err
		return item, err
	}
	if _, ok := ctrl.Submit(ctx); !ok {
		item.Err = fmt.Errorf("submission not accepted for %s", path)
		return item, nil
	}
	st, err := ctrl.Await(ctx)
	item.State = st
	if err != nil {
		item.Err = err
		return item, err
	}
	logger.Debug("Batch item settled", "index", index, "path", path, "phase", st.Phase)
	return item, nil
}
