// Package cmd provides the CLI commands for the MCP gateway.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mcpbridge/gateway/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "mcp-gateway",
	Short: "mcp-gateway - an MCP protocol-bridging gateway",
	Long: `mcp-gateway aggregates one or more Model Context Protocol servers
behind a single synthesized OpenAPI surface and a raw MCP passthrough port,
with chat session orchestration across several LLM backends.

Configuration:
  Runtime settings (listener addresses, timeouts, providers) load from
  gateway.yaml in the current directory, $HOME/.mcp-gateway/, or
  /etc/mcp-gateway/, overridable with GATEWAY_-prefixed environment
  variables (e.g. GATEWAY_SERVER_HTTP_ADDR=:9090).

  Upstream MCP servers are configured separately, in the mcpServers JSON
  document named by server.config_path.

Commands:
  start       Start the gateway
  reset       Remove the state file and start fresh
  hash-key    Generate an argon2id hash for an admin bearer key
  version     Print version information`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./gateway.yaml)")
}

func initConfig() {
	config.LoadEnv()
	config.InitViper(cfgFile)
}
