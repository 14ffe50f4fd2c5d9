package batch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/oukeidos/bstudio/internal/apperrors"
	"github.com/oukeidos/bstudio/internal/controller"
	"github.com/oukeidos/bstudio/internal/input"
	"github.com/oukeidos/bstudio/internal/service"
)

type serviceFunc func(ctx context.Context, req service.Request) (*service.Response, error)

func (f serviceFunc) Translate(ctx context.Context, req service.Request) (*service.Response, error) {
	return f(ctx, req)
}

func writeImages(t *testing.T, names ...string) []string {
	t.Helper()
	dir := t.TempDir()
	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = filepath.Join(dir, name)
		data := append([]byte("\x89PNG\r\n\x1a\n"), name...)
		if err := os.WriteFile(paths[i], data, 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return paths
}

func TestRun_PreservesInputOrder(t *testing.T) {
	paths := writeImages(t, "a.png", "b.png", "c.png", "d.png", "e.png")
	svc := serviceFunc(func(_ context.Context, req service.Request) (*service.Response, error) {
		// Earlier images answer later.
		delay := time.Duration('e'-req.Filename[0]) * 5 * time.Millisecond
		time.Sleep(delay)
		raw := strings.TrimSuffix(req.Filename, ".png")
		return &service.Response{Raw: &raw}, nil
	})
	r := New(svc, Options{Concurrency: 5, QPS: 100})

	var seen []string
	items, err := r.Run(context.Background(), paths, func(it Item) {
		seen = append(seen, filepath.Base(it.Path))
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(seen) != len(paths) {
		t.Fatalf("onItem called %d times, want %d", len(seen), len(paths))
	}
	for i, it := range items {
		if it.Index != i || it.Path != paths[i] {
			t.Fatalf("item %d = %+v", i, it)
		}
		if !it.OK() {
			t.Fatalf("item %d not ok: %v / %s", i, it.Err, it.State.Phase)
		}
		raw, _ := it.State.Result.Raw()
		if want := strings.TrimSuffix(filepath.Base(paths[i]), ".png"); raw != want {
			t.Fatalf("item %d raw = %q, want %q", i, raw, want)
		}
	}
}

func TestRun_BoundsConcurrency(t *testing.T) {
	paths := writeImages(t, "1.png", "2.png", "3.png", "4.png", "5.png", "6.png")
	var inflight, peak int32
	svc := serviceFunc(func(context.Context, service.Request) (*service.Response, error) {
		n := atomic.AddInt32(&inflight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&inflight, -1)
		return &service.Response{}, nil
	})
	r := New(svc, Options{Concurrency: 2, QPS: 1000})
	if _, err := r.Run(context.Background(), paths, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if peak > 2 {
		t.Fatalf("peak concurrency = %d, want <= 2", peak)
	}
}

func TestRun_ItemFailuresDoNotStopBatch(t *testing.T) {
	paths := writeImages(t, "good.png", "bad.png")
	paths = append(paths, filepath.Join(t.TempDir(), "missing.png"))
	svc := serviceFunc(func(_ context.Context, req service.Request) (*service.Response, error) {
		if req.Filename == "bad.png" {
			return nil, apperrors.InvalidResponse(errors.New("no fields"))
		}
		return &service.Response{}, nil
	})
	items, err := New(svc, Options{QPS: 100}).Run(context.Background(), paths, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !items[0].OK() {
		t.Errorf("good image failed: %+v", items[0])
	}
	if items[1].State.Phase != controller.PhaseFailed || items[1].State.FailureKind() != apperrors.KindInvalidResponse {
		t.Errorf("bad image state = %s %s", items[1].State.Phase, items[1].State.FailureKind())
	}
	if kind, _ := apperrors.KindOf(items[2].Err); kind != apperrors.KindNoImage {
		t.Errorf("missing image err = %v", items[2].Err)
	}
}

func TestRun_PassesParameters(t *testing.T) {
	paths := writeImages(t, "x.png")
	var mu sync.Mutex
	var got service.Request
	svc := serviceFunc(func(_ context.Context, req service.Request) (*service.Response, error) {
		mu.Lock()
		got = req
		mu.Unlock()
		return &service.Response{}, nil
	})
	opts := Options{Params: input.Parameters{Mode: input.ModeEmbossedPhoto, TargetLanguage: "hindi"}, QPS: 10}
	if _, err := New(svc, opts).Run(context.Background(), paths, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if got.Mode != "Real Photo (Embossed)" || got.TargetLanguage != "hindi" {
		t.Fatalf("request = %q / %q", got.Mode, got.TargetLanguage)
	}
}

func TestRun_ContextCancelled(t *testing.T) {
	paths := writeImages(t, "a.png", "b.png", "c.png")
	ctx, cancel := context.WithCancel(context.Background())
	svc := serviceFunc(func(ctx context.Context, _ service.Request) (*service.Response, error) {
		cancel()
		<-ctx.Done()
		return nil, ctx.Err()
	})
	items, err := New(svc, Options{Concurrency: 1, QPS: 100}).Run(ctx, paths, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if len(items) != len(paths) {
		t.Fatalf("items = %d, want %d", len(items), len(paths))
	}
	for _, it := range items[1:] {
		if it.OK() {
			t.Fatalf("item after cancel succeeded: %+v", it)
		}
	}
}
