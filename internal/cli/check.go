package cli

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/doridoridoriand/nodeboard/internal/log"
	"github.com/doridoridoriand/nodeboard/internal/probe"
	"github.com/doridoridoriand/nodeboard/internal/scheduler"
	"github.com/doridoridoriand/nodeboard/internal/state"
	"github.com/spf13/cobra"
)

func newCheckCommand(o *options) *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check every node once and print the results",
		Long: `Run a single check cycle against the nodes file and print one line per node.

Examples:
  nodeboard check
  nodeboard check --timeout 2s --strict`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, o, strict)
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "exit non-zero when any node is not healthy")
	return cmd
}

func runCheck(cmd *cobra.Command, o *options, strict bool) error {
	loader := o.loader()
	snap, err := loader.Snapshot()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if len(snap.Nodes) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "no nodes configured in %s\n", loader.ResolveNodesPath(snap.Settings))
		return nil
	}

	level := log.ParseLevel(snap.Settings.LogLevel)
	if level < log.LevelWarn {
		level = log.LevelWarn
	}
	logger := log.NewLogger(level, cmd.ErrOrStderr())

	store := state.NewStore()
	batcher := scheduler.NewBatcher(probe.NewTCPProber(), store, logger)
	monitor := scheduler.NewMonitor(loader, batcher, store, logger, scheduler.Options{})
	monitor.RunCycle(cmd.Context())

	data := monitor.HealthData()
	if len(data) == 0 {
		return errors.New("check cycle produced no results")
	}
	bad := writeHealthTable(cmd.OutOrStdout(), data)
	if strict && bad > 0 {
		return fmt.Errorf("%d of %d nodes not healthy", bad, len(data))
	}
	return nil
}

// writeHealthTable prints records sorted by name and returns how many are
// not healthy.
func writeHealthTable(out io.Writer, data map[string]state.HealthRecord) int {
	names := make([]string, 0, len(data))
	for name := range data {
		names = append(names, name)
	}
	sort.Strings(names)

	bad := 0
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tIP\tTYPE\tSTATUS\tRESPONSE\tRECOMMENDATION")
	for _, name := range names {
		record := data[name]
		if record.Status != state.StatusHealthy {
			bad++
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%dms\t%s\n",
			name, record.IP, record.Type, record.Status, record.ResponseTimeMs, record.Recommendation)
	}
	_ = tw.Flush()
	return bad
}
