package cli

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ayusman/jdemotion/internal/config"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Load the model and label table and print the class mapping",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCheck(os.Stdout, cfg)
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

// runCheck fails when the model is malformed or a model class has no label.
func runCheck(out io.Writer, c *config.Config) error {
	model, normalizer, err := loadVision(c)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Model:     %s (%d features)\n", c.Model.Path, model.Dim())
	fmt.Fprintf(out, "Decision:  window %d, threshold %.2f, margin %.2f\n",
		c.Decision.SmoothWindow, c.Decision.Threshold, c.Decision.Margin)
	fmt.Fprintf(out, "Robot:     %s (%s style)\n\n", c.Link.Address, c.Dispatch.Style)

	mapping := normalizer.Mapping()
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "INDEX\tCLASS\tLABEL")
	fmt.Fprintln(w, "-----\t-----\t-----")
	for i, class := range normalizer.Classes() {
		fmt.Fprintf(w, "%d\t%s\t%s\n", i, class, mapping[class])
	}
	return w.Flush()
}
