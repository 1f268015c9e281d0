package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	kmcp "github.com/keygate/keygate/internal/mcp"
)

func newMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server for AI agents",
		Long: `Start a Model Context Protocol (MCP) server that exposes key issuance,
validation and cleanup as tools for AI agents. Supports stdio (default) and
Streamable HTTP transports.

In stdio mode the server speaks JSON-RPC over stdin/stdout and logs to stderr.`,
		Example: `  keygate mcp                                # stdio mode
  keygate mcp --transport http --addr :8081  # Streamable HTTP`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMCP()
		},
	}

	cmd.Flags().String("transport", "stdio", "Transport mode: stdio or http")
	cmd.Flags().String("addr", ":8081", "Listen address (only used with --transport http)")
	viper.BindPFlag("mcp.transport", cmd.Flags().Lookup("transport"))
	viper.BindPFlag("mcp.addr", cmd.Flags().Lookup("addr"))

	return cmd
}

func runMCP() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log)

	eng, err := buildEngines(context.Background(), cfg, logger, nil)
	if err != nil {
		return err
	}
	defer eng.Close()

	eng.sweeper.Start()
	defer eng.sweeper.Shutdown()

	srv := kmcp.NewMCPServer(kmcp.Deps{
		Issuer:    eng.issuer,
		Validator: eng.validator,
		Sweeper:   eng.sweeper,
		Policy:    eng.policy,
	}, versionString(), logger)

	switch cfg.MCP.Transport {
	case "http":
		return srv.ServeHTTP(cfg.MCP.Addr)
	case "stdio":
		return srv.ServeStdio()
	default:
		return fmt.Errorf("unknown transport %q (use stdio or http)", cfg.MCP.Transport)
	}
}
