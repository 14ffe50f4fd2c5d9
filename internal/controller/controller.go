// Package controller owns the lifecycle of a submission: it reads an input
// snapshot, makes exactly one call to the transcription service, and turns
// the outcome into a State for presentation layers.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oukeidos/bstudio/internal/apperrors"
	"github.com/oukeidos/bstudio/internal/input"
	"github.com/oukeidos/bstudio/internal/logger"
	"github.com/oukeidos/bstudio/internal/result"
	"github.com/oukeidos/bstudio/internal/service"
)

// DefaultTimeout bounds a submission when Options.Timeout is zero.
const DefaultTimeout = 60 * time.Second

// Service is the external transcription collaborator.
type Service interface {
	Translate(ctx context.Context, req service.Request) (*service.Response, error)
}

// Snapshotter supplies the submission input by value.
type Snapshotter interface {
	Snapshot() (input.Snapshot, bool)
}

// ImageSignaler lets the controller learn about image replacement.
type ImageSignaler interface {
	OnImageChanged(fn func())
}

// ImageGenerations is implemented by inputs that number their images. A
// change signal for the generation the current state already belongs to
// is ignored.
type ImageGenerations interface {
	ImageGeneration() uint64
}

// Listener receives every published State in transition order. Delivery
// is serialised: a listener never runs concurrently with another delivery.
type Listener func(State)

type Options struct {
	Timeout time.Duration
	// CancelSuperseded cancels the context of an in-flight call once its
	// result can no longer be applied. Off by default: the service is
	// stateless and the late response is simply dropped.
	CancelSuperseded bool
	Logger           *slog.Logger
}

type Controller struct {
	input            Snapshotter
	svc              Service
	timeout          time.Duration
	cancelSuperseded bool
	log              *slog.Logger

	mu      sync.Mutex
	state   State
	seq     uint64
	gen     uint64
	settled chan struct{}
	cancel  context.CancelFunc
	nextSub int
	subs    []subscription

	pending    []State
	delivering bool
}

type subscription struct {
	id int
	fn Listener
}

// New wires a controller to its input. If in also implements
// ImageSignaler, image replacement resets the controller to idle.
func New(in Snapshotter, svc Service, opts Options) *Controller {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	log := opts.Logger
	if log == nil {
		log = logger.L()
	}
	c := &Controller{
		input:            in,
		svc:              svc,
		timeout:          timeout,
		cancelSuperseded: opts.CancelSuperseded,
		log:              log.With(logger.ComponentKey, "controller"),
		state:            State{Phase: PhaseIdle},
	}
	if sig, ok := in.(ImageSignaler); ok {
		sig.OnImageChanged(c.ImageChanged)
	}
	return c
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe registers l and returns a function that removes it.
func (c *Controller) Subscribe(l Listener) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs = append(c.subs, subscription{id: id, fn: l})
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, sub := range c.subs {
			if sub.id == id {
				c.subs = append(c.subs[:i:i], c.subs[i+1:]...)
				return
			}
		}
	}
}

// Submit starts a submission of the current input snapshot. It returns
// false without side effects while a submission is in flight or when no
// image is selected.
func (c *Controller) Submit(ctx context.Context) (uint64, bool) {
	c.mu.Lock()
	if c.state.Phase == PhaseSubmitting {
		seq := c.state.Seq
		c.mu.Unlock()
		c.log.Debug("Submit ignored; submission in flight", "seq", seq)
		return 0, false
	}
	snap, ok := c.input.Snapshot()
	if !ok {
		c.mu.Unlock()
		c.log.Debug("Submit ignored", "reason", apperrors.KindNoImage)
		return 0, false
	}

	c.seq++
	seq := c.seq
	c.gen = snap.Generation
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	c.cancel = cancel
	c.settled = make(chan struct{})
	c.setLocked(State{Phase: PhaseSubmitting, Seq: seq})

	req := service.Request{
		Image:          snap.Image,
		Filename:       snap.Name,
		ContentType:    snap.ContentType,
		Mode:           snap.Params.Mode.Wire(),
		TargetLanguage: snap.Params.TargetLanguage,
		RequestID:      newRequestID(),
	}
	c.log.Info("Submission started",
		"seq", seq,
		"request_id", req.RequestID,
		"mode", req.Mode,
		"target_lang", req.TargetLanguage,
		"bytes", len(req.Image),
	)
	go c.run(callCtx, cancel, seq, req)
	return seq, true
}

func (c *Controller) run(ctx context.Context, cancel context.CancelFunc, seq uint64, req service.Request) {
	defer cancel()
	resp, err := c.call(ctx, req)
	c.apply(seq, resp, err)
}

// call funnels every outcome of the outbound call, panics included, into a
// response or an error.
func (c *Controller) call(ctx context.Context, req service.Request) (resp *service.Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("Recovered panic", "scope", "controller.call", "panic", fmt.Sprint(r))
			resp = nil
			err = apperrors.TransportUnreachable(fmt.Errorf("panic during service call: %v", r))
		}
	}()
	return c.svc.Translate(ctx, req)
}

// apply performs the Submitting -> Succeeded/Failed transition for seq, or
// drops the outcome if seq has been superseded.
func (c *Controller) apply(seq uint64, resp *service.Response, callErr error) {
	next := c.outcome(seq, resp, callErr)

	c.mu.Lock()
	if c.state.Phase != PhaseSubmitting || c.state.Seq != seq {
		current := c.state
		c.mu.Unlock()
		err := apperrors.Superseded(fmt.Errorf("response for seq %d arrived in %s seq %d", seq, current.Phase, current.Seq))
		c.log.Debug("Dropping stale response", "seq", seq, "current_seq", current.Seq, "error", err)
		return
	}
	c.cancel = nil
	c.setLocked(next)

	if next.Phase == PhaseFailed {
		kind, _ := apperrors.KindOf(next.Err)
		c.log.Warn("Submission failed", "seq", seq, "kind", kind, "error", next.Err)
	} else {
		c.log.Info("Submission succeeded", "seq", seq)
	}
}

func (c *Controller) outcome(seq uint64, resp *service.Response, err error) State {
	if err == nil && resp == nil {
		err = apperrors.InvalidResponse(errors.New("service returned no response"))
	}
	if err == nil {
		var tr *result.Translation
		tr, err = c.fromResponse(seq, resp)
		if err == nil {
			return State{Phase: PhaseSucceeded, Seq: seq, Result: tr}
		}
	}
	switch {
	case apperrors.IsSubmissionFailure(err):
	case errors.Is(err, context.DeadlineExceeded):
		err = apperrors.Timeout(err)
	default:
		err = apperrors.TransportUnreachable(err)
	}
	return State{Phase: PhaseFailed, Seq: seq, Err: err}
}

// ImageChanged returns the controller to idle. Any result is discarded
// and an in-flight response will be dropped on arrival.
func (c *Controller) ImageChanged() {
	c.mu.Lock()
	if c.state.Phase == PhaseIdle {
		c.mu.Unlock()
		return
	}
	prev := c.state
	if g, ok := c.input.(ImageGenerations); ok && g.ImageGeneration() == c.gen {
		c.mu.Unlock()
		c.log.Debug("Image change already reflected", "phase", prev.Phase, "seq", prev.Seq)
		return
	}
	if prev.Phase == PhaseSubmitting && c.cancelSuperseded && c.cancel != nil {
		c.cancel()
	}
	c.cancel = nil
	c.setLocked(State{Phase: PhaseIdle, Seq: prev.Seq})
	c.log.Debug("Image changed; controller reset", "from", prev.Phase, "seq", prev.Seq)
}

// Await blocks until no submission is in flight and returns the state.
func (c *Controller) Await(ctx context.Context) (State, error) {
	for {
		c.mu.Lock()
		st := c.state
		ch := c.settled
		c.mu.Unlock()
		if st.Phase.Settled() {
			return st, nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return c.State(), ctx.Err()
		}
	}
}

// CopyTranslation returns the translated text of a succeeded submission.
// It never changes state.
func (c *Controller) CopyTranslation() (string, bool) {
	st := c.State()
	if st.Phase != PhaseSucceeded {
		return "", false
	}
	return st.Result.Translated()
}

// setLocked replaces the state and queues it for listeners. c.mu must be
// held; it is released before any listener runs. Whichever goroutine finds
// the queue idle drains it, so states reach listeners in the order they
// were set and a listener may call back into the controller.
func (c *Controller) setLocked(next State) {
	prev := c.state
	c.state = next
	if prev.Phase == PhaseSubmitting && next.Phase != PhaseSubmitting && c.settled != nil {
		close(c.settled)
		c.settled = nil
	}
	c.pending = append(c.pending, next)
	if c.delivering {
		c.mu.Unlock()
		return
	}
	c.delivering = true
	for len(c.pending) > 0 {
		batch := c.pending
		c.pending = nil
		subs := append([]subscription(nil), c.subs...)
		c.mu.Unlock()
		for _, st := range batch {
			for _, sub := range subs {
				sub.fn(st)
			}
		}
		c.mu.Lock()
	}
	c.delivering = false
	c.mu.Unlock()
}

// fromResponse builds the result. An undecodable segmentation image is
// dropped when any text came back with it.
func (c *Controller) fromResponse(seq uint64, resp *service.Response) (*result.Translation, error) {
	var img *result.Image
	if resp.Image != nil {
		mime, data, err := service.DecodeDataURL(*resp.Image)
		switch {
		case err == nil:
			img = &result.Image{ContentType: mime, Data: data}
		case resp.Raw == nil && resp.Refined == nil && resp.Translated == nil:
			return nil, err
		default:
			c.log.Warn("Dropping undecodable segmentation image", "seq", seq, "error", err)
		}
	}
	return result.New(img, resp.Raw, resp.Refined, resp.Translated), nil
}

func newRequestID() string {
	if u, err := uuid.NewV7(); err == nil {
		return u.String()
	}
	return uuid.NewString()
}
