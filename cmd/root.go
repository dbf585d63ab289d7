/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "darigo",
	Short: "Darigo real-estate listings backend",
	Long: `Darigo serves the real-estate listings API and its operator tooling:

	darigo server          start the HTTP API
	darigo migrate up      apply database migrations
	darigo admin create    provision an administrator
	darigo events tail     print domain events from the message broker
`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
