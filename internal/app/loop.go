package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ayusman/jdemotion/internal/capture"
	"github.com/ayusman/jdemotion/internal/emotion"
	"github.com/ayusman/jdemotion/internal/store"
)

// ErrNoCamera is returned by the frame loops when the session has no camera
// or estimator.
var ErrNoCamera = errors.New("session has no camera")

// SampleResult is the single decision of a one-shot sampling window.
type SampleResult struct {
	Label    emotion.Label
	Decision emotion.Decision
	Frames   int
	Faces    int
	Eligible bool
	Sent     bool
	Commands []string
	Err      error
}

// Run processes frames in continuous mode until ctx is cancelled or a finite
// source ends. Cancellation is checked between frames only.
func (s *Session) Run(ctx context.Context) error {
	if err := s.openCamera(); err != nil {
		return err
	}

	s.updateStatus(func(st *Status) {
		st.Mode = store.ModeContinuous
		st.Running = true
	})
	defer s.updateStatus(func(st *Status) { st.Running = false })

	s.logger.Info("session: continuous mode started", "source", s.camera.Source())

	wasPaused := false
	for {
		if ctx.Err() != nil {
			return nil
		}

		if s.Paused() {
			if !wasPaused {
				s.window.Clear()
				s.streak.Reset()
				s.observeWindow()
				wasPaused = true
			}
			s.wait(ctx, s.cfg.ReadRetryDelay)
			continue
		}
		wasPaused = false

		probs, ok, err := s.readAndEstimate()
		if err != nil {
			if errors.Is(err, capture.ErrEndOfStream) {
				s.logger.Info("session: source ended")
				return nil
			}
			if errors.Is(err, capture.ErrCameraNotOpen) {
				return err
			}
			s.wait(ctx, s.cfg.ReadRetryDelay)
			continue
		}

		s.Step(probs, ok, s.now())
	}
}

// Sample collects frames for duration, decides once and dispatches the
// result under the sampling profile. progress, when non-nil, is called after
// every frame. A window without any face yields neutral.
func (s *Session) Sample(ctx context.Context, duration time.Duration, progress func(elapsed, total time.Duration)) (SampleResult, error) {
	if err := s.openCamera(); err != nil {
		return SampleResult{}, err
	}
	if duration <= 0 {
		duration = s.cfg.SamplingWindow
	}

	s.updateStatus(func(st *Status) { st.Sampling = true })
	defer s.updateStatus(func(st *Status) { st.Sampling = false })

	s.logger.Info("session: sampling", "window", duration)

	window := emotion.NewWindow(s.cfg.SmoothWindow)
	res := SampleResult{}
	start := s.now()

	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		probs, ok, err := s.readAndEstimate()
		if err != nil {
			if errors.Is(err, capture.ErrEndOfStream) || errors.Is(err, capture.ErrCameraNotOpen) {
				break
			}
			s.wait(ctx, s.cfg.ReadRetryDelay)
		} else {
			res.Frames++
			if ok {
				res.Faces++
				window.Push(probs)
			} else {
				window.Clear()
			}
		}

		elapsed := s.now().Sub(start)
		if progress != nil {
			progress(min(elapsed, duration), duration)
		}
		if elapsed >= duration {
			break
		}
	}

	res.Decision = emotion.Decision{Class: -1}
	res.Label = emotion.Neutral
	if avg, ok := window.Average(); ok {
		res.Decision = emotion.Decide(avg, s.cfg.Threshold, s.cfg.Margin)
		res.Label = s.normalizer.Normalize(res.Decision)
	}
	if s.metrics != nil {
		s.metrics.ObserveDecision(res.Decision.Confident)
	}

	s.logger.Info("session: sample decided",
		"label", res.Label,
		"frames", res.Frames,
		"faces", res.Faces,
		"top", res.Decision.Top,
		"second", res.Decision.Second,
	)

	now := s.now()
	res.Eligible = s.samplePolicy.ShouldSend(res.Label, now)
	if res.Eligible {
		res.Commands, res.Err = s.dispatch(store.ModeSample, s.sampleAnnouncer, s.samplePolicy, res.Label, res.Decision, NoteSample, now)
		res.Sent = res.Err == nil
	}

	return res, nil
}

// RunTriggered waits for triggers and runs one Sample per trigger until ctx
// is cancelled. Triggers arriving during a sample are coalesced.
func (s *Session) RunTriggered(ctx context.Context, triggers <-chan struct{}) error {
	if err := s.openCamera(); err != nil {
		return err
	}

	s.updateStatus(func(st *Status) {
		st.Mode = store.ModeSample
		st.Running = true
	})
	defer s.updateStatus(func(st *Status) { st.Running = false })

	s.logger.Info("session: waiting for sample triggers", "source", s.camera.Source())

	drain := s.cfg.DrainIdle
	for {
		var (
			fired bool
			open  = true
		)

		if drain {
			select {
			case <-ctx.Done():
				return nil
			case _, open = <-triggers:
				fired = true
			default:
				frame, err := s.camera.ReadFrame()
				if err != nil {
					if errors.Is(err, capture.ErrEndOfStream) {
						drain = false
					}
					s.wait(ctx, s.cfg.ReadRetryDelay)
					continue
				}
				frame.Close()
			}
		} else {
			select {
			case <-ctx.Done():
				return nil
			case _, open = <-triggers:
				fired = true
			}
		}

		if !fired {
			continue
		}
		if !open {
			return nil
		}
		if s.Paused() {
			s.logger.Info("session: trigger ignored while paused")
			continue
		}
		if _, err := s.Sample(ctx, s.cfg.SamplingWindow, s.sampleProgress); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if !coalesce(triggers) {
			return nil
		}
	}
}

// readAndEstimate reads one frame and estimates it. Estimator errors are
// logged and reported as a frame without a face.
func (s *Session) readAndEstimate() (emotion.Probabilities, bool, error) {
	started := time.Now()

	frame, err := s.camera.ReadFrame()
	if err != nil {
		if s.metrics != nil {
			s.metrics.ReadErrors.Add(1)
		}
		if !errors.Is(err, capture.ErrEndOfStream) {
			s.logger.Debug("session: frame read failed", "error", err)
		}
		return nil, false, err
	}
	defer frame.Close()

	probs, ok, err := s.estimator.Estimate(frame)
	if err != nil {
		s.logger.Warn("session: estimate failed", "error", err)
		if s.metrics != nil {
			s.metrics.EstimateErrors.Add(1)
		}
		probs, ok = nil, false
	}

	if s.metrics != nil {
		s.metrics.ObserveFrame(time.Since(started), ok)
	}
	return probs, ok, nil
}

func (s *Session) openCamera() error {
	if s.camera == nil || s.estimator == nil {
		return ErrNoCamera
	}
	if s.camera.IsOpen() {
		return nil
	}
	if err := s.camera.Open(); err != nil {
		return fmt.Errorf("open camera: %w", err)
	}
	return nil
}

// wait sleeps for d unless ctx is already done.
func (s *Session) wait(ctx context.Context, d time.Duration) {
	if ctx.Err() != nil {
		return
	}
	s.sleep(d)
}

// coalesce drops pending triggers. It returns false once triggers is closed.
func coalesce(triggers <-chan struct{}) bool {
	for {
		select {
		case _, open := <-triggers:
			if !open {
				return false
			}
		default:
			return true
		}
	}
}
