package main

import (
	"github.com/spf13/cobra"

	"github.com/yungbote/roomviz-backend/internal/app"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "roomviz",
	Short:         "Interior design render backend",
	Version:       app.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file (environment overrides it)")
}
