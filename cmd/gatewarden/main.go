package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/orris-inc/gatewarden/internal/interfaces/cli/checkconfig"
	"github.com/orris-inc/gatewarden/internal/interfaces/cli/reset"
	"github.com/orris-inc/gatewarden/internal/interfaces/cli/server"
	"github.com/orris-inc/gatewarden/internal/interfaces/cli/token"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "gatewarden",
		Short: "Gatewarden - distributed rate limiting gateway",
		Long:  `Gatewarden is an HTTP gateway that enforces sliding-window rate limits shared across instances through redis.`,
	}

	rootCmd.AddCommand(
		server.NewCommand(),
		checkconfig.NewCommand(),
		reset.NewCommand(),
		token.NewCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
