// Package cli implements the codebrew command line.
package cli

import (
	"github.com/spf13/cobra"
)

type appInit func(configPath string) (*App, error)

func NewRootCmd() *cobra.Command {
	return newRootCmd(initApp)
}

func newRootCmd(initFn appInit) *cobra.Command {
	var configPath string
	var app *App

	root := &cobra.Command{
		Use:           "codebrew",
		Short:         "Single-change code optimization suggestions from an LLM",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a, err := initFn(configPath)
			if err != nil {
				return err
			}
			app = a
			cmd.SetContext(withApp(cmd.Context(), a))
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if app == nil {
				return nil
			}
			return app.Close()
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ./codebrew.yaml)")

	root.AddCommand(NewAnalyzeCmd())
	root.AddCommand(NewBatchCmd())
	root.AddCommand(NewScanCmd())
	root.AddCommand(NewPRCmd())
	root.AddCommand(NewNotifyCmd())
	root.AddCommand(NewStatsCmd())
	root.AddCommand(NewServeCmd())
	root.AddCommand(NewConfigCmd())

	return root
}
