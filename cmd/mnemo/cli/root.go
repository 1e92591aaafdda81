// Package cli implements the mnemo command line.
package cli

import (
	"github.com/spf13/cobra"
)

type options struct {
	home       string
	configPath string
	verbose    bool
	jsonOut    bool
}

// NewRootCmd builds the mnemo command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "mnemo",
		Short: "Long-term memory for chatbot personas",
		Long: `mnemo stores text memories as embeddings on disk and recalls them
by semantic similarity, optionally scoped to a user.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.home, "home", "", "Data directory (default $MNEMO_HOME or ~/.mnemo)")
	flags.StringVar(&opts.configPath, "config", "", "Config file (default <home>/config.yaml if present)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose logging")
	flags.BoolVar(&opts.jsonOut, "json", false, "JSON output and logs")

	root.AddCommand(
		newMemoryCmd(opts),
		newConfigCmd(opts),
		newToolsCmd(opts),
		newBrowseCmd(opts),
		newPluginCmd(opts),
	)
	return root
}
