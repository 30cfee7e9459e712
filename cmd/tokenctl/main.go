// tokenctl manages the Ed25519 keys and bearer tokens the landchat API trusts,
// and seeds user records for local development.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "tokenctl",
		Short:        "landchat key, token and user tooling",
		SilenceUsage: true,
	}

	cmd.AddCommand(
		newGenkeyCommand(),
		newSignCommand(),
		newSeedUserCommand(),
	)

	return cmd
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
