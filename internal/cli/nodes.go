package cli

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/doridoridoriand/nodeboard/internal/config"
	"github.com/spf13/cobra"
)

func newNodesCommand(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nodes",
		Short: "List, add or remove monitored nodes",
	}
	cmd.AddCommand(newNodesListCommand(o), newNodesAddCommand(o), newNodesRemoveCommand(o))
	return cmd
}

func (o *options) nodesFile() (string, error) {
	loader := o.loader()
	settings, err := loader.LoadSettings()
	if err != nil {
		return "", err
	}
	return loader.ResolveNodesPath(settings), nil
}

func newNodesListCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List nodes from the nodes file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := o.nodesFile()
			if err != nil {
				return err
			}
			nodes, err := config.LoadNodes(path)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(nodes) == 0 {
				fmt.Fprintf(out, "no nodes configured in %s\n", path)
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tIP\tTYPE")
			for _, node := range nodes {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", node.Name, node.IP, node.Type)
			}
			return tw.Flush()
		},
	}
}

func newNodesAddCommand(o *options) *cobra.Command {
	var nodeType string
	cmd := &cobra.Command{
		Use:   "add <name> <ip>",
		Short: "Add a node to the nodes file",
		Long: `Add a node to the nodes file. The type selects the probed ports:
ssh probes 22, telnet probes 23, anything else probes both.

Examples:
  nodeboard nodes add web01 10.0.0.11
  nodeboard nodes add sw01 10.0.0.2 --type telnet`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.TrimSpace(args[0])
			ip := strings.TrimSpace(args[1])
			if name == "" || ip == "" {
				return errors.New("name and ip must not be empty")
			}
			path, err := o.nodesFile()
			if err != nil {
				return err
			}
			node := config.Node{Name: name, IP: ip, Type: config.ParseNodeType(nodeType)}
			if err := config.AddNode(path, node); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %s (%s, %s) to %s\n", node.Name, node.IP, node.Type, path)
			return nil
		},
	}
	cmd.Flags().StringVar(&nodeType, "type", string(config.NodeTypeSSH), "node type: ssh|telnet|unknown")
	return cmd
}

func newNodesRemoveCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <name>",
		Aliases: []string{"rm"},
		Short:   "Remove a node from the nodes file",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := o.nodesFile()
			if err != nil {
				return err
			}
			if err := config.RemoveNode(path, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s from %s\n", args[0], path)
			return nil
		},
	}
}
