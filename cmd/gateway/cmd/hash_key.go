package cmd

import (
	"fmt"

	"github.com/alexedwards/argon2id"
	"github.com/spf13/cobra"
)

var hashKeyCmd = &cobra.Command{
	Use:   "hash-key [admin-key]",
	Short: "Generate an argon2id hash for an admin bearer key",
	Long: `Generate an argon2id hash of an admin bearer key, for MCPO_API_KEY-style
storage alongside the gateway's config.

Example:
  mcp-gateway hash-key "my-secret-admin-key"

Security note: the key will appear in shell history. Consider clearing
history after use, or pass it via an environment variable instead:
  mcp-gateway hash-key "$MCPO_API_KEY"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := argon2id.CreateHash(args[0], argon2id.DefaultParams)
		if err != nil {
			return fmt.Errorf("hash admin key: %w", err)
		}
		fmt.Println(hash)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(hashKeyCmd)
}
