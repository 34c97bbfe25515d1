package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fabfab/docqa/config"
	"github.com/fabfab/docqa/logging"
)

// app carries what every subcommand needs once the root command has loaded
// configuration.
type app struct {
	configFile string
	cfg        config.Config
	logger     *zap.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "docqa",
		Short: "Ask questions about uploaded PDF documents",
		Long: `docqa ingests PDF documents into a vector store and answers questions
about them with retrieval-augmented generation.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&a.configFile, "config", "", "path to a config file (yaml, toml, json or env)")

	root.AddCommand(
		newServeCmd(a),
		newIngestCmd(a),
		newAskCmd(a),
		newUploadCmd(a),
		newChatCmd(a),
		newDocumentsCmd(a),
		newResetCmd(a),
		newAdminTokenCmd(a),
	)
	return root
}

func (a *app) load() error {
	cfg, err := config.Load(a.configFile)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}
