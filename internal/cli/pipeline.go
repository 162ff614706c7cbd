package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ayusman/jdemotion/internal/app"
	"github.com/ayusman/jdemotion/internal/arc"
	"github.com/ayusman/jdemotion/internal/capture"
	"github.com/ayusman/jdemotion/internal/classifier"
	"github.com/ayusman/jdemotion/internal/config"
	"github.com/ayusman/jdemotion/internal/detector"
	"github.com/ayusman/jdemotion/internal/emotion"
	"github.com/ayusman/jdemotion/internal/link"
	"github.com/ayusman/jdemotion/internal/metrics"
	"github.com/ayusman/jdemotion/internal/publish"
	"github.com/ayusman/jdemotion/internal/server"
	"github.com/ayusman/jdemotion/internal/store"
)

// pipelineOptions selects which parts of the pipeline a command needs.
type pipelineOptions struct {
	mode     string // store.ModeContinuous, ModeSample or ModeManual
	vision   bool   // camera, detector and classifier
	progress func(elapsed, total time.Duration)
}

// pipeline holds every component of one command invocation.
type pipeline struct {
	cfg       *config.Config
	session   *app.Session
	link      *link.Link
	estimator *app.FaceEstimator
	store     *store.Store
	sessionID string
	metrics   *metrics.Metrics
	publisher *publish.MQTTPublisher
	events    chan app.Event
	hub       *server.EventHub
	trigger   func() bool
	listeners []func(app.Event)
}

// sessionConfig converts the file configuration for app.New.
func sessionConfig(c *config.Config) (app.Config, error) {
	style, err := arc.ParseStyle(c.Dispatch.Style)
	if err != nil {
		return app.Config{}, err
	}
	sampleStyle := style
	if c.Sampling.Style != "" {
		if sampleStyle, err = arc.ParseStyle(c.Sampling.Style); err != nil {
			return app.Config{}, err
		}
	}

	sc := app.DefaultConfig()
	sc.SmoothWindow = c.Decision.SmoothWindow
	sc.Threshold = c.Decision.Threshold
	sc.Margin = c.Decision.Margin
	sc.Style = style
	sc.MinInterval = c.Dispatch.MinInterval
	sc.StableFrames = c.Dispatch.StableFrames
	sc.ReplyTimeout = c.Dispatch.ReplyTimeout
	sc.SamplingWindow = c.Sampling.Window
	sc.SamplingGated = c.Sampling.Gated
	sc.SamplingStyle = sampleStyle
	return sc, nil
}

// loadVision loads the classifier and builds the class-to-label normalizer.
// A class the table cannot map fails here, before any frame is read.
func loadVision(c *config.Config) (*classifier.LinearModel, *emotion.Normalizer, error) {
	table, err := c.LabelTable()
	if err != nil {
		return nil, nil, err
	}

	model, err := classifier.LoadModel(c.Model.Path, c.Model.ClassNames)
	if err != nil {
		return nil, nil, err
	}

	normalizer, err := emotion.NewNormalizer(table, model.Classes())
	if err != nil {
		return nil, nil, fmt.Errorf("label table: %w", err)
	}
	return model, normalizer, nil
}

func newPipeline(c *config.Config, opts pipelineOptions) (*pipeline, error) {
	sc, err := sessionConfig(c)
	if err != nil {
		return nil, err
	}

	p := &pipeline{
		cfg:     c,
		link:    link.New(c.LinkSettings()),
		metrics: metrics.New(),
		events:  make(chan app.Event, 64),
	}
	p.metrics.WatchLink(p.link.Stats)

	var (
		camera     capture.Camera
		normalizer *emotion.Normalizer
	)
	if opts.vision {
		model, norm, err := loadVision(c)
		if err != nil {
			return nil, err
		}
		normalizer = norm

		det, err := detector.NewMediaPipeDetector(c.DetectorSettings())
		if err != nil {
			return nil, err
		}
		p.estimator = app.NewFaceEstimator(det, model)
		camera = capture.NewCamera(c.Camera.Source)

		slog.Info("cli: model loaded", "path", c.Model.Path, "classes", model.Classes())
	}

	sessionOpts := []app.Option{
		app.WithMetrics(p.metrics),
		app.WithEvents(p.events),
	}
	if opts.progress != nil {
		sessionOpts = append(sessionOpts, app.WithSampleProgress(opts.progress))
	}

	if c.Store.Path != "" {
		st, err := store.New(c.Store.Path)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("failed to open audit log: %w", err)
		}
		p.store = st

		rec, err := st.Sessions().Start(opts.mode)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("failed to start session record: %w", err)
		}
		p.sessionID = rec.ID
		sessionOpts = append(sessionOpts, app.WithDispatchLog(st.Dispatches(), rec.ID))
	}

	if c.MQTT.Broker != "" {
		p.publisher = publish.NewMQTTPublisher(publish.Config{
			Broker:   c.MQTT.Broker,
			Topic:    c.MQTT.Topic,
			ClientID: c.MQTT.ClientID,
			QoS:      c.MQTT.QoS,
			Retain:   c.MQTT.Retain,
		})
		if err := p.publisher.Connect(); err != nil {
			// paho keeps retrying in the background
			slog.Warn("mqtt: initial connect failed", "broker", c.MQTT.Broker, "error", err)
		}
		sessionOpts = append(sessionOpts, app.WithPublisher(p.publisher))
	}

	p.session = app.New(sc, camera, p.estimator, normalizer, p.link, sessionOpts...)
	return p, nil
}

// connect blocks until the controller accepts a connection or ctx ends. On
// cancellation the link is closed and the dialing goroutine is waited for, so
// no connection outlives the pipeline.
func (p *pipeline) connect(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.link.Connect()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		p.link.Close()
		<-done
		return ctx.Err()
	}
}

// onEvent registers fn to receive every session event.
func (p *pipeline) onEvent(fn func(app.Event)) {
	p.listeners = append(p.listeners, fn)
}

// start launches the event fan-out and, when configured, the status server.
func (p *pipeline) start(ctx context.Context) {
	if p.cfg.Server.Addr != "" {
		p.hub = server.NewEventHub()
		p.onEvent(p.hub.Broadcast)

		srv := server.New(server.Config{
			Status:  p.session,
			Store:   p.store,
			Metrics: p.metrics.Handler(),
			Events:  p.hub,
			Trigger: p.trigger,
		})
		go func() {
			slog.Info("server: listening", "addr", p.cfg.Server.Addr)
			if err := srv.ListenAndServe(ctx, p.cfg.Server.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("server: stopped", "error", err)
			}
		}()
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-p.events:
				for _, fn := range p.listeners {
					fn(ev)
				}
			}
		}
	}()
}

// Close releases every component. It is safe on a partly built pipeline.
func (p *pipeline) Close() {
	if p.estimator != nil {
		if err := p.estimator.Close(); err != nil {
			slog.Debug("cli: detector shutdown", "error", err)
		}
	}
	if p.link != nil {
		p.link.Close()
	}
	if p.publisher != nil {
		p.publisher.Close()
	}
	if p.store != nil {
		if p.sessionID != "" {
			if err := p.store.Sessions().End(p.sessionID); err != nil {
				slog.Warn("store: failed to end session", "error", err)
			}
		}
		p.store.Close()
	}
}
