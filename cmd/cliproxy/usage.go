package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"cliproxy/pkg/ledger"
)

var (
	usageDB      string
	usageLimit   int
	usageSummary bool
	usageJSON    bool
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Inspect the request ledger",
	Long: `Reads the SQLite request ledger written by a server running with a
ledger path configured. Shows recent requests, or per-backend totals
with --summary.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath := usageDB
		if dbPath == "" {
			dbPath = loadConfig().Ledger.Path
		}
		if dbPath == "" {
			return fmt.Errorf("no ledger configured; pass --db or set ledger.path in the config")
		}
		if _, err := os.Stat(dbPath); err != nil {
			return fmt.Errorf("ledger %s: %w", dbPath, err)
		}

		store, err := ledger.Open(dbPath)
		if err != nil {
			return fmt.Errorf("open ledger: %w", err)
		}
		defer store.Close()

		if usageSummary {
			return printSummary(store)
		}
		return printRecent(store)
	},
}

func init() {
	rootCmd.AddCommand(usageCmd)
	usageCmd.Flags().StringVar(&usageDB, "db", "", "Ledger database path (default: ledger.path from the config)")
	usageCmd.Flags().IntVar(&usageLimit, "limit", 20, "Number of recent requests to show")
	usageCmd.Flags().BoolVar(&usageSummary, "summary", false, "Show per-backend totals instead of recent requests")
	usageCmd.Flags().BoolVar(&usageJSON, "json", false, "Output as JSON")
}

func printSummary(store *ledger.Store) error {
	summaries, err := store.Summary()
	if err != nil {
		return err
	}

	if usageJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summaries)
	}

	if len(summaries) == 0 {
		fmt.Println("No recorded requests.")
		return nil
	}
	fmt.Printf("%-12s %8s %8s %12s %12s %10s\n", "BACKEND", "REQS", "ERRORS", "PROMPT_TOK", "COMPL_TOK", "AVG_MS")
	for _, s := range summaries {
		fmt.Printf("%-12s %8d %8d %12d %12d %10.1f\n",
			s.Backend, s.Requests, s.Errors, s.PromptTokens, s.CompletionTokens, s.AvgLatencyMs)
	}
	return nil
}

func printRecent(store *ledger.Store) error {
	entries, err := store.List(usageLimit)
	if err != nil {
		return err
	}

	if usageJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	if len(entries) == 0 {
		fmt.Println("No recorded requests.")
		return nil
	}
	fmt.Printf("%-20s %-10s %-28s %-6s %8s %8s %8s\n", "TIME", "BACKEND", "MODEL", "STATUS", "MS", "IN", "OUT")
	for _, e := range entries {
		fmt.Printf("%-20s %-10s %-28s %-6s %8d %8d %8d\n",
			e.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			e.Backend, e.Model, e.Status, e.LatencyMs, e.PromptTokens, e.CompletionTokens)
		if e.Error != "" {
			fmt.Printf("    error: %s\n", e.Error)
		}
	}
	return nil
}
