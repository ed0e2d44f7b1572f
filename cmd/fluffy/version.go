package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version is overridden at build time with -ldflags.
var version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the fluffy version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("fluffy", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
