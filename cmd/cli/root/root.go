package root

import (
	"github.com/spf13/cobra"
)

// Exported RootCmd
var RootCmd = &cobra.Command{
	Use:          "postfeed",
	Short:        "Postfeed CLI",
	Long:         "Command line client for the Postfeed blogging API.",
	SilenceUsage: true,
}

// GetRoot returns the RootCmd
func GetRoot() *cobra.Command {
	return RootCmd
}
