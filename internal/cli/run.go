package cli

import (
	"github.com/spf13/cobra"

	"github.com/ayusman/jdemotion/internal/store"
)

var runSource string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Continuously classify camera frames and send label changes to the robot",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("source") {
			cfg.Camera.Source = runSource
		}

		p, err := newPipeline(cfg, pipelineOptions{mode: store.ModeContinuous, vision: true})
		if err != nil {
			return err
		}
		defer p.Close()

		ctx := cmd.Context()
		if err := p.connect(ctx); err != nil {
			return nil
		}
		p.start(ctx)

		return p.session.Run(ctx)
	},
}

func init() {
	runCmd.Flags().StringVarP(&runSource, "source", "s", "", "Camera device index or stream URL")
	rootCmd.AddCommand(runCmd)
}
