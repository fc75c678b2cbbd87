package cli

import (
	"github.com/spf13/cobra"

	"github.com/civisdocs/corpusync/internal/tracker"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Printf("corpusync version %s (sqlite: %s)\n", version, tracker.BuildMode)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
