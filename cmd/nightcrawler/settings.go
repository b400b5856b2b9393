package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jonathan/nightcrawler/internal/settings"
)

var (
	settingsIncludeKey bool
	settingsProvider   string
	settingsModel      string
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show and edit stored settings",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print preferences and AI configuration",
	Args:  cobra.NoArgs,
	RunE: withStore(func(ctx context.Context, cmd *cobra.Command, store *settings.Store, _ []string) error {
		current, err := store.Get(ctx)
		if err != nil {
			return err
		}
		return printSettings(cmd.OutOrStdout(), current)
	}),
}

var settingsSetPrefCmd = &cobra.Command{
	Use:   "set-pref <key> <value>",
	Short: "Set one preference",
	Args:  cobra.ExactArgs(2),
	RunE: withStore(func(ctx context.Context, cmd *cobra.Command, store *settings.Store, args []string) error {
		if err := store.UpdatePreference(ctx, args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved %s.\n", args[0])
		return nil
	}),
}

var settingsSetKeyCmd = &cobra.Command{
	Use:   "set-key [api-key]",
	Short: "Store the API key, model and provider",
	Long:  "Store the API key. Without an argument the key is read from standard input.",
	Args:  cobra.MaximumNArgs(1),
	RunE: withStore(func(ctx context.Context, cmd *cobra.Command, store *settings.Store, args []string) error {
		key, err := readKey(cmd.InOrStdin(), args)
		if err != nil {
			return err
		}
		current, err := store.Get(ctx)
		if err != nil {
			return err
		}
		config := current.AIConfiguration
		config.APIKey = key
		if settingsProvider != "" {
			config.Provider = settingsProvider
		}
		if settingsModel != "" {
			config.Model = settingsModel
		}
		if err := store.UpdateAIConfiguration(ctx, config); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "AI configuration saved.")
		return nil
	}),
}

var settingsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restore the default settings",
	Args:  cobra.NoArgs,
	RunE: withStore(func(ctx context.Context, cmd *cobra.Command, store *settings.Store, _ []string) error {
		if _, err := store.Reset(ctx); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Settings reset to defaults.")
		return nil
	}),
}

var settingsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the settings document to standard output",
	Args:  cobra.NoArgs,
	RunE: withStore(func(ctx context.Context, cmd *cobra.Command, store *settings.Store, _ []string) error {
		data, err := store.Export(ctx, !settingsIncludeKey)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\n", data)
		return err
	}),
}

var settingsImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace the settings with a previously exported document",
	Args:  cobra.ExactArgs(1),
	RunE: withStore(func(ctx context.Context, cmd *cobra.Command, store *settings.Store, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		if _, err := store.Import(ctx, data); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Settings imported.")
		return nil
	}),
}

func init() {
	settingsExportCmd.Flags().BoolVar(&settingsIncludeKey, "include-key", false, "Include the API key in the export")
	settingsSetKeyCmd.Flags().StringVar(&settingsProvider, "provider", "", "Provider: openai or gemini")
	settingsSetKeyCmd.Flags().StringVar(&settingsModel, "model", "", "Model name")

	settingsCmd.AddCommand(settingsShowCmd, settingsSetPrefCmd, settingsSetKeyCmd,
		settingsResetCmd, settingsExportCmd, settingsImportCmd)
	rootCmd.AddCommand(settingsCmd)
}

// withStore opens the application for a settings subcommand.
func withStore(fn func(ctx context.Context, cmd *cobra.Command, store *settings.Store, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(cmd.Context(), cmd, a.store, args)
	}
}

func readKey(in io.Reader, args []string) (string, error) {
	if len(args) == 1 {
		return strings.TrimSpace(args[0]), nil
	}
	data, err := io.ReadAll(io.LimitReader(in, 4096))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func printSettings(w io.Writer, s *settings.Settings) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, entry := range s.PersonalPreferences.Ordered() {
		value := entry.Value
		if value == "" {
			value = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\n", entry.Key, value)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	key := settings.MaskAPIKey(s.AIConfiguration.APIKey)
	if key == "" {
		key = "not set"
	}
	fmt.Fprintf(w, "\nProvider: %s\nModel:    %s\nAPI key:  %s\n",
		s.AIConfiguration.Provider, s.AIConfiguration.Model, key)
	return nil
}
