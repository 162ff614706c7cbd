package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/ayusman/jdemotion/internal/app"
	"github.com/ayusman/jdemotion/internal/store"
	"github.com/ayusman/jdemotion/internal/tray"
)

var (
	sampleSource string
	sampleWindow time.Duration
	sampleTray   bool
	sampleGated  bool
)

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Capture a short window per trigger and send one label",
	Long: `Waits for a trigger (Enter on stdin, the tray Sample item or POST /api/sample),
captures frames for the sampling window, decides once and sends the result.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		if flags.Changed("source") {
			cfg.Camera.Source = sampleSource
		}
		if flags.Changed("window") {
			cfg.Sampling.Window = sampleWindow
		}
		if flags.Changed("gated") {
			cfg.Sampling.Gated = sampleGated
		}

		bar := &sampleBar{out: os.Stderr}
		p, err := newPipeline(cfg, pipelineOptions{
			mode:     store.ModeSample,
			vision:   true,
			progress: bar.update,
		})
		if err != nil {
			return err
		}
		defer p.Close()

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		if err := p.connect(ctx); err != nil {
			return nil
		}

		triggers := make(chan struct{}, 1)
		p.trigger = func() bool {
			select {
			case triggers <- struct{}{}:
				return true
			default:
				return false
			}
		}
		if !sampleTray {
			p.start(ctx)
			go readTriggers(ctx, os.Stdin, p.trigger, cancel)
			fmt.Fprintln(os.Stderr, "Press Enter to sample, q to quit.")
			return p.session.RunTriggered(ctx, triggers)
		}

		t := tray.New()
		t.OnSample(func() { p.trigger() })
		t.OnPause(p.session.SetPaused)
		t.OnQuit(cancel)
		p.onEvent(func(ev app.Event) {
			if ev.Type == "dispatch" && ev.Sent {
				t.SetLastLabel(string(ev.Label))
			}
		})
		p.start(ctx)

		errCh := make(chan error, 1)
		go func() {
			errCh <- p.session.RunTriggered(ctx, triggers)
			t.Quit()
		}()

		// The tray owns the calling goroutine until it quits.
		t.Run()
		cancel()
		return <-errCh
	},
}

func init() {
	sampleCmd.Flags().StringVarP(&sampleSource, "source", "s", "", "Camera device index or stream URL")
	sampleCmd.Flags().DurationVarP(&sampleWindow, "window", "w", 3*time.Second, "Capture window per trigger")
	sampleCmd.Flags().BoolVar(&sampleTray, "tray", false, "Trigger from the system tray instead of stdin")
	sampleCmd.Flags().BoolVar(&sampleGated, "gated", false, "Apply the change and interval gate to sampled labels")
	rootCmd.AddCommand(sampleCmd)
}

// readTriggers fires trigger for every line read from r. A line of q, quit
// or exit, or the end of input, calls stop.
func readTriggers(ctx context.Context, r io.Reader, trigger func() bool, stop func()) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		if isQuit(scanner.Text()) {
			stop()
			return
		}
		if !trigger() {
			slog.Debug("cli: sample already pending")
		}
	}
	stop()
}

func isQuit(line string) bool {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "q", "quit", "exit":
		return true
	}
	return false
}

// sampleBar draws one progress bar per sampling window.
type sampleBar struct {
	out  io.Writer
	bar  *progressbar.ProgressBar
	last time.Duration
}

func (b *sampleBar) update(elapsed, total time.Duration) {
	if b.bar == nil || elapsed < b.last {
		b.bar = progressbar.NewOptions64(total.Milliseconds(),
			progressbar.OptionSetDescription("Sampling"),
			progressbar.OptionSetWriter(b.out),
			progressbar.OptionClearOnFinish(),
		)
	}
	b.last = elapsed
	b.bar.Set64(elapsed.Milliseconds())

	if elapsed >= total {
		b.bar.Finish()
		b.bar = nil
		b.last = 0
	}
}
