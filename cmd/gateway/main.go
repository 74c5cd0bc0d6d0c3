// Command mcp-gateway runs the MCP protocol-bridging gateway.
package main

import "github.com/mcpbridge/gateway/cmd/gateway/cmd"

func main() {
	cmd.Execute()
}
