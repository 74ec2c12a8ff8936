package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the cliproxy version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("cliproxy " + version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
