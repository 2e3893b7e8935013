// Package cli implements the keygate-admin command tree.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "keygate-admin",
	Short: "Admin CLI for the keygate auth service",
	Long: `keygate-admin performs administrative tasks against the keygate
backing stores directly: registering, rotating, revoking, and listing
api keys.`,
}

// Execute parses the command line and runs the selected command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
