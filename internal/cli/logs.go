package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/doridoridoriand/nodeboard/internal/log"
	"github.com/spf13/cobra"
)

const defaultTailLines = 50

func newLogsCommand(o *options) *cobra.Command {
	var (
		lines    int
		category string
		level    string
		grep     string
	)
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the tail of the application log",
		Long: `Print the last entries of the application log, optionally filtered by
category (NETWORK, ERROR, CONFIG, SYSTEM, PROCESS, UI), minimum level or a
case-insensitive substring.

Examples:
  nodeboard logs -n 100
  nodeboard logs --category network --level warn
  nodeboard logs --grep web01`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := o.loader().LoadSettings()
			if err != nil {
				return err
			}
			path := settings.LogPath()
			if path == "" {
				return fmt.Errorf("no log file configured in %s", o.loader().SettingsPath)
			}

			filter := log.Filter{
				Category: log.Category(strings.ToUpper(strings.TrimSpace(category))),
				Contains: grep,
			}
			if level != "" {
				filter.MinLevel = log.ParseLevel(level)
			}
			entries, err := log.Tail(path, lines, filter)
			if err != nil {
				return err
			}
			for _, entry := range entries {
				writeEntry(cmd.OutOrStdout(), entry)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", defaultTailLines, "number of entries to show (0 for all)")
	cmd.Flags().StringVar(&category, "category", "", "only show this category")
	cmd.Flags().StringVar(&level, "level", "", "minimum level: debug|info|warn|error")
	cmd.Flags().StringVar(&grep, "grep", "", "only show lines containing this text")
	return cmd
}

func writeEntry(out io.Writer, entry log.Entry) {
	if entry.Timestamp == "" && entry.Level == "" {
		fmt.Fprintln(out, entry.Raw)
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %-5s [%s] %s", entry.Timestamp, strings.ToUpper(entry.Level), entry.Category, entry.Message)
	keys := make([]string, 0, len(entry.Fields))
	for key := range entry.Fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(&b, " %s=%v", key, entry.Fields[key])
	}
	fmt.Fprintln(out, b.String())
}
