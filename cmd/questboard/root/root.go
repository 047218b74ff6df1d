package root

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const Version = "0.1.0"

var configPath string

var rootCmd = &cobra.Command{
	Use:           "questboard",
	Short:         "Personal client for a gamified task tracker",
	Long:          "questboard keeps a local, derived view of a Habitica account: stats, tasks, tags, party and challenges.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate("{{.Name}} v{{.Version}}\n")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file (default ./questboard.yaml)")

	rootCmd.AddCommand(
		newStatusCmd(),
		newTasksCmd(),
		newRefreshCmd(),
		newDoCmd(),
		newServeCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error: "+err.Error())
		os.Exit(1)
	}
}
