package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ayusman/jdemotion/internal/store"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent dispatches from the audit log",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Store.Path == "" {
			return errors.New("audit log disabled: set store.path or --db")
		}

		st, err := store.New(cfg.Store.Path)
		if err != nil {
			return fmt.Errorf("failed to open audit log: %w", err)
		}
		defer st.Close()

		return runHistory(os.Stdout, st, historyLimit)
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", store.DefaultListLimit, "Number of dispatches to show")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(out io.Writer, st *store.Store, limit int) error {
	dispatches, err := st.Dispatches().List(limit)
	if err != nil {
		return fmt.Errorf("failed to list dispatches: %w", err)
	}

	if len(dispatches) == 0 {
		fmt.Fprintln(out, "No dispatches recorded.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "TIME\tMODE\tLABEL\tTOP\tSECOND\tRESULT\tCOMMANDS")
	fmt.Fprintln(w, "----\t----\t-----\t---\t------\t------\t--------")
	for _, d := range dispatches {
		result := "ok"
		if !d.Success {
			result = "failed: " + d.Error
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%.2f\t%s\t%s\n",
			d.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			d.Mode, d.Label, d.Top, d.Second, result, strings.Join(d.Commands, " | "))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	counts, err := st.Dispatches().CountByLabel()
	if err != nil {
		return fmt.Errorf("failed to count dispatches: %w", err)
	}
	fmt.Fprintln(out)
	for _, c := range counts {
		fmt.Fprintf(out, "%-10s %d\n", c.Label, c.Count)
	}
	return nil
}
