// Command cliproxy serves an OpenAI-compatible API in front of local CLI
// coding agents.
package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"cliproxy/pkg/config"
)

var version = "1.0.0"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "cliproxy",
	Short: "OpenAI-compatible API proxy for Codex and OpenCode CLIs",
	Long: `cliproxy exposes local CLI coding agents (Codex, OpenCode) behind the
OpenAI chat completions API. Clients speak the standard protocol; the proxy
launches the agent binary per request and maps its output back to chat
completions, with SSE streaming and prompt-based tool calling.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (default: ~/.config/cliproxy/config.yaml)")
}

// loadConfig resolves the effective configuration: defaults, then the YAML
// file, then environment overrides. A .env file in the working directory is
// honored either way.
func loadConfig() config.Config {
	if configPath != "" {
		_ = godotenv.Load()
		return config.LoadFrom(configPath)
	}
	return config.Load()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
