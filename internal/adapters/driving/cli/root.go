// Package cli wires the cobra command surface over the indexing and
// retrieval services. Commands assemble their own service graph from
// the config file passed on the command line.
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragdex/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "ragdex",
	Short: "Multimodal document indexing and retrieval",
	Long: `ragdex ingests documents of mixed modalities (text, markdown, code,
JSON, images, audio) into a vector store and answers questions over
them with retrieval-augmented generation.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command. Errors have already been printed by
// cobra; the caller only needs the exit code.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
