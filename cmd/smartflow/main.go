// smartflow: business-aware workflow orchestration MCP server.
//
// smartflow drives a business request through multi-role workflows
// (strategy, design, implementation, testing, operations), keeps a shared
// business context per project and gathers supporting knowledge from
// documentation, web search and project memory.
//
// Usage:
//
//	smartflow serve         # Start MCP server (stdio transport)
//	smartflow orchestrate   # Run one request and print the result
//	smartflow version       # Print the version
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/HendryAvila/smartflow/internal/config"
	"github.com/HendryAvila/smartflow/internal/logging"
	sfserver "github.com/HendryAvila/smartflow/internal/server"
)

// errRunFailed signals a finished command whose result was already
// printed but is unsuccessful; main maps it to exit code 1 silently.
var errRunFailed = errors.New("orchestration failed")

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errRunFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// rootOptions are the flags shared by every subcommand.
type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "smartflow",
		Short: "Business-aware workflow orchestration MCP server",
		Long: `smartflow runs business requests through multi-role workflows and keeps a
shared business context per project.

Add it to your AI tool's MCP config:

  {
    "mcpServers": {
      "smartflow": {
        "command": "smartflow",
        "args": ["serve"]
      }
    }
  }`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default ~/.config/smartflow/config.yaml)")

	root.AddCommand(newServeCmd(opts))
	root.AddCommand(newOrchestrateCmd(opts))
	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the smartflow version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "smartflow v%s\n", sfserver.Version)
		},
	}
}

// loadRuntime reads the configuration and builds the stderr logger.
// stdout belongs to the MCP stdio transport and to command output.
func loadRuntime(opts *rootOptions) (*config.Config, *logging.Logger, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, nil, err
	}
	logCfg, err := logging.ConfigFrom(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, fmt.Errorf("log config: %w", err)
	}
	logger, err := logging.NewLogger(logCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("creating logger: %w", err)
	}
	return cfg, logger, nil
}
