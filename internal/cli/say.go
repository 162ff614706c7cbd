package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ayusman/jdemotion/internal/app"
	"github.com/ayusman/jdemotion/internal/emotion"
	"github.com/ayusman/jdemotion/internal/store"
)

var sayCmd = &cobra.Command{
	Use:   "say",
	Short: "Type labels by hand and announce each change on the robot",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newPipeline(cfg, pipelineOptions{mode: store.ModeManual})
		if err != nil {
			return err
		}
		defer p.Close()

		ctx := cmd.Context()
		if err := p.connect(ctx); err != nil {
			return nil
		}
		p.start(ctx)

		return sayLoop(os.Stdin, os.Stdout, p.session, time.Now)
	},
}

func init() {
	rootCmd.AddCommand(sayCmd)
}

// sayLoop reads one label per line until q, quit, exit or end of input.
// Unknown labels are reported and skipped; a repeated label is not sent again.
func sayLoop(in io.Reader, out io.Writer, session *app.Session, now func() time.Time) error {
	fmt.Fprintf(out, "Labels: %s. Type q to quit.\n", labelList())

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if isQuit(line) {
			return nil
		}

		label, err := emotion.ParseLabel(line)
		if err != nil {
			fmt.Fprintf(out, "unknown label %q\n", line)
			continue
		}

		res := session.Manual(label, now())
		switch {
		case !res.Eligible:
			fmt.Fprintf(out, "%s unchanged, not sent\n", label)
		case res.Err != nil:
			fmt.Fprintf(out, "send failed: %v\n", res.Err)
		default:
			fmt.Fprintf(out, "sent %s\n", label)
		}
	}
}

func labelList() string {
	names := make([]string, len(emotion.Labels))
	for i, l := range emotion.Labels {
		names[i] = string(l)
	}
	return strings.Join(names, ", ")
}
