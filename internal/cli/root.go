package cli

import (
	"fmt"
	"os"

	"github.com/doridoridoriand/nodeboard/internal/config"
	"github.com/spf13/cobra"
)

// options holds flags shared by every command.
type options struct {
	settingsPath   string
	nodesPath      string
	interval       OptionalDuration
	timeout        OptionalDuration
	maxConcurrency OptionalInt
	metricsListen  OptionalString
	logLevel       OptionalLogLevel
	noUI           OptionalBool
}

func (o *options) overrides() config.CLIOverrides {
	overrides := config.CLIOverrides{}

	if v, ok := o.interval.Value(); ok {
		value := v
		overrides.HealthCheckInterval = &value
	}
	if v, ok := o.timeout.Value(); ok {
		value := v
		overrides.NodeTimeout = &value
	}
	if v, ok := o.maxConcurrency.Value(); ok {
		value := v
		overrides.MaxConcurrentChecks = &value
	}
	if v, ok := o.metricsListen.Value(); ok {
		value := v
		overrides.MetricsListen = &value
	}
	if v, ok := o.logLevel.Value(); ok {
		value := v
		overrides.LogLevel = &value
	}
	if v, ok := o.noUI.Value(); ok {
		value := v
		overrides.UIDisable = &value
	}

	return overrides
}

func (o *options) loader() *config.Loader {
	return config.NewLoader(o.settingsPath, o.nodesPath, o.overrides())
}

// NewRootCommand builds the nodeboard command tree. Running it without a
// subcommand starts the dashboard.
func NewRootCommand() *cobra.Command {
	o := &options{}

	root := &cobra.Command{
		Use:   "nodeboard",
		Short: "Terminal dashboard for node reachability and maintenance scripts",
		Long: `nodeboard periodically checks TCP reachability of the nodes listed in the
nodes file (port 22 for ssh, 23 for telnet, both for anything else), shows
host CPU, memory and disk usage, and starts or stops the maintenance scripts
configured in the settings file.

Examples:
  nodeboard
  nodeboard --settings /etc/nodeboard/settings.json --no-ui
  nodeboard check --timeout 2s`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDashboard(cmd, o)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&o.settingsPath, "settings", "s", config.DefaultSettingsFile, "settings file")
	flags.StringVar(&o.nodesPath, "nodes", "", "nodes file (default: nodes_file from settings)")
	flags.VarP(&o.interval, "interval", "i", "health check interval (override settings)")
	flags.VarP(&o.timeout, "timeout", "t", "per-port connect timeout (override settings)")
	flags.Var(&o.maxConcurrency, "max-concurrency", "nodes checked at once (override settings)")
	flags.Var(&o.metricsListen, "metrics-listen", "metrics listen address (e.g. :9100)")
	flags.Var(&o.logLevel, "log-level", "log level: debug|info|warn|error")
	noUI := flags.VarPF(&o.noUI, "no-ui", "", "disable the dashboard (log only)")
	noUI.NoOptDefVal = "true"

	root.AddCommand(
		newRunCommand(o),
		newCheckCommand(o),
		newNodesCommand(o),
		newScriptsCommand(o),
		newLogsCommand(o),
		newVersionCommand(),
	)
	return root
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
