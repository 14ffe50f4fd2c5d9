package main

import (
	"bytes"
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

// syncBuffer lets the controller's listener and the shell loop share one
// output buffer.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func runScript(t *testing.T, svc controller.Service, script string) string {
	t.Helper()
	stage := input.NewStage(input.NewTempPreviewStore())
	t.Cleanup(func() { _ = stage.Close() })
	ctrl := controller.New(stage, svc, controller.Options{})
	out := &syncBuffer{}
	sh := newShell(strings.NewReader(script), out, stage, ctrl)
	if err := sh.run(context.Background()); err != nil {
		t.Fatalf("shell: %v", err)
	}
	return out.String()
}

func TestShell_SubmitFlow(t *testing.T) {
	var mu sync.Mutex
	var requests []service.Request
	svc := serviceFunc(func(_ context.Context, req service.Request) (*service.Response, error) {
		mu.Lock()
		requests = append(requests, req)
		mu.Unlock()
		translated := "vanakkam"
		raw := "hello"
		return &service.Response{Raw: &raw, Translated: &translated}, nil
	})
	img := writeImage(t, "card.png")

	out := runScript(t, svc, strings.Join([]string{
		"submit",
		"open " + img,
		"mode embossed",
		"lang Tamil",
		"lang klingon",
		"params",
		"submit",
		"wait",
		"show",
		"copy",
		"quit",
		"submit",
	}, "\n"))

	for _, want := range []string{
		"No image selected",
		"Selected card.png (image/png",
		"Mode: Real Photo (Embossed)",
		"Target language: Tamil [tamil]",
		`Unsupported language "klingon"`,
		"Submitted #1",
		"Raw transcription:\n  hello",
		"vanakkam\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	mu.Lock()
	defer mu.Unlock()
	if len(requests) != 1 {
		t.Fatalf("service calls = %d, want 1 (quit must stop the script)", len(requests))
	}
	if requests[0].Mode != "Real Photo (Embossed)" || requests[0].TargetLanguage != "tamil" {
		t.Fatalf("request = %+v", requests[0])
	}
}

func TestShell_SingleFlightAndStaleResult(t *testing.T) {
	release := make(chan struct{})
	var mu sync.Mutex
	calls := 0
	svc := serviceFunc(func(_ context.Context, req service.Request) (*service.Response, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		if req.Filename == "first.png" {
			<-release
		}
		raw := req.Filename
		return &service.Response{Raw: &raw}, nil
	})
	first := writeImage(t, "first.png")
	second := writeImage(t, "second.png")

	stage := input.NewStage(input.NewTempPreviewStore())
	t.Cleanup(func() { _ = stage.Close() })
	ctrl := controller.New(stage, svc, controller.Options{})
	out := &syncBuffer{}

	script := strings.Join([]string{
		"open " + first,
		"submit",
		"submit",
		"open " + second,
		"status",
		"submit",
		"wait",
		"show",
	}, "\n")
	sh := newShell(strings.NewReader(script), out, stage, ctrl)
	if err := sh.run(context.Background()); err != nil {
		t.Fatalf("shell: %v", err)
	}
	close(release)

	got := out.String()
	if !strings.Contains(got, "Submission #1 is still in flight") {
		t.Errorf("second submit not rejected:\n%s", got)
	}
	if !strings.Contains(got, "\nidle\n") {
		t.Errorf("new image did not reset to idle:\n%s", got)
	}
	if !strings.Contains(got, "Raw transcription:\n  second.png") {
		t.Errorf("result of the second image not shown:\n%s", got)
	}

	// The first call returns only now; its result must be discarded.
	waitCalls := func() int { mu.Lock(); defer mu.Unlock(); return calls }
	if waitCalls() != 2 {
		t.Fatalf("service calls = %d, want 2", waitCalls())
	}
	st, _ := ctrl.Await(context.Background())
	if raw, _ := st.Result.Raw(); raw != "second.png" || st.Seq != 2 {
		t.Fatalf("state seq %d raw %q", st.Seq, raw)
	}
}

func TestShell_ClearDropsResultAndSave(t *testing.T) {
	svc := serviceFunc(func(context.Context, service.Request) (*service.Response, error) {
		img := "data:image/jpeg;base64,/9j/4A=="
		return &service.Response{Image: &img}, nil
	})
	img := writeImage(t, "card.png")
	dir := t.TempDir()
	target := filepath.Join(dir, "seg.jpg")

	out := runScript(t, svc, strings.Join([]string{
		"save",
		"open " + img,
		"submit",
		"wait",
		"copy",
		"save " + target,
		"save " + target,
		"clear",
		"status",
		"show",
		"copy",
		"bogus",
	}, "\n"))

	for _, want := range []string{
		"No result to save",
		"No translated text available",
		"Saved " + target,
		"Saved " + filepath.Join(dir, "seg_1.jpg"),
		"Image cleared",
		"Status: idle",
		`Unknown command "bogus"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("segmentation not written: %v", err)
	}
}

func TestShell_RetryHintOnTransportFailure(t *testing.T) {
	var calls int32
	svc := serviceFunc(func(context.Context, service.Request) (*service.Response, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return nil, apperrors.TransportUnreachable(errors.New("connection refused"))
		}
		raw := "ok"
		return &service.Response{Raw: &raw}, nil
	})
	img := writeImage(t, "page.png")

	stage := input.NewStage(input.NewTempPreviewStore())
	t.Cleanup(func() { _ = stage.Close() })
	ctrl := controller.New(stage, svc, controller.Options{})
	out := &syncBuffer{}
	script := strings.Join([]string{"open " + img, "submit", "wait", "submit", "wait", "status"}, "\n")
	if err := newShell(strings.NewReader(script), out, stage, ctrl).run(context.Background()); err != nil {
		t.Fatalf("shell: %v", err)
	}

	if !strings.Contains(out.String(), "succeeded #2") {
		t.Errorf("resubmission did not succeed:\n%s", out.String())
	}
	// Listener output may land after the script ends.
	deadline := time.Now().Add(2 * time.Second)
	for !strings.Contains(out.String(), "(submit to retry)") {
		if time.Now().After(deadline) {
			t.Fatalf("retry hint missing:\n%s", out.String())
		}
		time.Sleep(5 * time.Millisecond)
	}
}
