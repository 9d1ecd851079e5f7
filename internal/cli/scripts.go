package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/doridoridoriand/nodeboard/internal/log"
	"github.com/doridoridoriand/nodeboard/internal/procman"
	"github.com/spf13/cobra"
)

func newScriptsCommand(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scripts",
		Short: "List or run the configured maintenance scripts",
	}
	cmd.AddCommand(newScriptsListCommand(o), newScriptsRunCommand(o))
	return cmd
}

func newScriptsListCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List scripts from the settings file with their dashboard keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := o.loader().LoadSettings()
			if err != nil {
				return err
			}
			scripts := procman.NewManager(settings.Scripts, settings.LogDir, log.Nop()).Scripts()
			out := cmd.OutOrStdout()
			if len(scripts) == 0 {
				fmt.Fprintln(out, "no scripts configured")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "#\tNAME\tCOMMAND")
			for i, script := range scripts {
				command := strings.TrimSpace(script.Command + " " + strings.Join(script.Args, " "))
				fmt.Fprintf(tw, "%d\t%s\t%s\n", i+1, script.Name, command)
			}
			return tw.Flush()
		},
	}
}

func newScriptsRunCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "run <name>",
		Short: "Run one script in the foreground and wait for it to finish",
		Long: `Run a configured script, wait for it to exit and report the result.
Output goes to <log_dir>/<name>.log exactly as when started from the dashboard.

Examples:
  nodeboard scripts run backup`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := o.loader().LoadSettings()
			if err != nil {
				return err
			}
			logger := log.NewLogger(log.LevelWarn, cmd.ErrOrStderr())
			manager := procman.NewManager(settings.Scripts, settings.LogDir, logger)

			ctx := cmd.Context()
			if err := manager.Start(ctx, args[0]); err != nil {
				return err
			}
			status, err := manager.Wait(ctx, args[0])
			if err != nil {
				manager.StopAll(scriptStopGrace)
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (exit code %d) in %s, log: %s\n",
				status.Name, status.State, status.ExitCode,
				status.Uptime(status.ExitedAt).Round(time.Millisecond), status.LogPath)
			if status.State != procman.StateExited || status.ExitCode != 0 {
				return fmt.Errorf("script %s did not succeed", status.Name)
			}
			return nil
		},
	}
}
