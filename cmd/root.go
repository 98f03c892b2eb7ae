package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/luma/parley/cmd/gen"
)

var rootCmd = &cobra.Command{
	Use:   "parley",
	Short: "Parley chat service",
	Long: `Parley chat service

A small TCP chat backend: clients register accounts, authenticate and
look other users up to add them as contacts.
`,
}

func init() {
	rootCmd.AddCommand(StartCmd)
	rootCmd.AddCommand(gen.RootCmd)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
