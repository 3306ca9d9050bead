package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/togpt/togpt/internal/preferences"
)

var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Show or change preferences",
	Long: `Show or change the preferences that shape responses.

Keys:
  font-size        small | medium | large
  response-speed   fast | balanced | thorough
  language         auto, tr, en, ...

Examples:
  togpt prefs show
  togpt prefs set response-speed thorough`,
	RunE: runPrefsShow,
}

var prefsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current preferences",
	Args:  cobra.NoArgs,
	RunE:  runPrefsShow,
}

var prefsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change one preference",
	Args:  cobra.ExactArgs(2),
	RunE:  runPrefsSet,
}

func init() {
	prefsCmd.AddCommand(prefsShowCmd)
	prefsCmd.AddCommand(prefsSetCmd)
	rootCmd.AddCommand(prefsCmd)
}

// parsePreference turns a CLI key/value pair into a partial update.
func parsePreference(key, value string) (preferences.Partial, error) {
	var p preferences.Partial
	switch key {
	case "font-size", "fontSize":
		p.FontSize = &value
	case "response-speed", "responseSpeed", "speed":
		p.ResponseSpeed = &value
	case "language", "lang":
		p.Language = &value
	default:
		return p, fmt.Errorf("unknown preference %q (valid: font-size, response-speed, language)", key)
	}
	return p, nil
}

func printPreferences(w io.Writer, p preferences.Preferences) {
	fmt.Fprintf(w, "font-size:       %s\n", p.FontSize)
	fmt.Fprintf(w, "response-speed:  %s\n", p.ResponseSpeed)
	fmt.Fprintf(w, "language:        %s\n", p.Language)
}

func runPrefsShow(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	printPreferences(cmd.OutOrStdout(), a.prefs.Preferences())
	return nil
}

func runPrefsSet(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	return setPreference(cmd.Context(), a.prefs, cmd.OutOrStdout(), args[0], args[1])
}

func setPreference(ctx context.Context, prefs *preferences.Store, w io.Writer, key, value string) error {
	p, err := parsePreference(key, value)
	if err != nil {
		return err
	}
	if err := prefs.Update(ctx, p); err != nil {
		return err
	}
	printPreferences(w, prefs.Preferences())
	return nil
}
