package main

import (
	"github.com/ogero/stremio-autoarabic/internal"
	"github.com/spf13/cobra"
)

const serviceName = "stremio-autoarabic"

func newRootCommand() *cobra.Command {
	var envFile string

	serveCmd := newServeCommand(&envFile)

	rootCmd := &cobra.Command{
		Use:           "addon",
		Short:         "Stremio addon serving English subtitles machine-translated to Arabic",
		Version:       internal.AddonVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serveCmd.RunE,
	}

	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Dotenv file loaded before reading the environment")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(newTranslateCommand(&envFile))

	return rootCmd
}
