// Package cli wires configuration, the ingest pipeline, the retrieval session
// and the answer composer into the schemeadvisor command tree.
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"schemeadvisor/internal/config"
	"schemeadvisor/internal/logger"
)

type app struct {
	cfg *config.AppConfig
	log logger.Logger
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// NewRootCmd builds the schemeadvisor command tree.
func NewRootCmd() *cobra.Command {
	var (
		configPath string
		verbose    bool
		a          app
	)
	root := &cobra.Command{
		Use:           "schemeadvisor",
		Short:         "Answer questions about government welfare schemes from a PDF corpus",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a.log = logger.New(cmd.ErrOrStderr(), verbose)
			var err error
			if configPath != "" {
				a.cfg, err = config.Load(configPath)
			} else {
				a.cfg, configPath, err = config.LoadDefault()
			}
			if err != nil {
				return err
			}
			a.log.Debug("config loaded", "path", configPath)
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.yaml")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newIndexCmd(&a))
	root.AddCommand(newSearchCmd(&a))
	root.AddCommand(newAskCmd(&a))
	root.AddCommand(newChatCmd(&a))
	return root
}
