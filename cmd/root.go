package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
	logFormat  string
	ephemeral  bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/togpt/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: text or json (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&ephemeral, "ephemeral", false, "Keep chats in memory only")
}

var rootCmd = &cobra.Command{
	Use:   "togpt",
	Short: "Chat with Gemini and Grok from the terminal or a local web UI",
	Long: `togpt keeps your chats locally and talks to Gemini or Grok.

Examples:
  togpt chat                      # interactive chat in the terminal
  togpt serve                     # HTTP API + event feed for the web UI
  togpt chats list                # list saved chats
  togpt prefs set response-speed fast
  togpt search "go generics"      # Google Custom Search

  togpt config init               # write a config template`,
	CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
	SilenceUsage:      true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
