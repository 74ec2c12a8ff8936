package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"cliproxy/pkg/proxy"
)

var backendsJSON bool

var backendsCmd = &cobra.Command{
	Use:   "backends",
	Short: "Show configured backends and their availability",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		selector := buildSelector(cfg)
		health := proxy.CheckBackends(selector)

		if backendsJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(health)
		}

		fmt.Printf("%-12s %-10s %-30s %s\n", "BACKEND", "STATUS", "MODEL", "PATH")
		for _, name := range selector.Names() {
			h := health[name]
			status := "missing"
			if h.Available {
				status = "ok"
			}
			fmt.Printf("%-12s %-10s %-30s %s\n", name, status, h.Model, h.Path)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(backendsCmd)
	backendsCmd.Flags().BoolVar(&backendsJSON, "json", false, "Output as JSON")
}
