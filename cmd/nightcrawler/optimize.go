package main

import (
	"context"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jonathan/nightcrawler/internal/observability"
	"github.com/jonathan/nightcrawler/internal/optimizer"
	"github.com/jonathan/nightcrawler/internal/settings"
)

var optimizeSave bool

var optimizeCmd = &cobra.Command{
	Use:   "optimize [key]",
	Short: "Rewrite preference text into a more professional form",
	Long: `Optimize one stored preference, or every filled-in preference when no key is
given. Results are printed for review; pass --save to store them.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runOptimize,
}

func init() {
	optimizeCmd.Flags().BoolVar(&optimizeSave, "save", false, "Store the optimized values")
	rootCmd.AddCommand(optimizeCmd)
}

func runOptimize(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	if len(args) == 1 {
		return optimizeOne(cmd.Context(), out, a.store, a.optimizer, args[0], optimizeSave)
	}
	return optimizeAll(cmd.Context(), out, a.store, a.optimizer, optimizeSave)
}

// preferenceStore is the part of the settings store the optimize command uses.
type preferenceStore interface {
	Preferences(ctx context.Context) (settings.Preferences, error)
	UpdatePreference(ctx context.Context, key, value string) error
	UpdatePersonalPreferences(ctx context.Context, prefs settings.Preferences) error
}

func optimizeOne(ctx context.Context, out io.Writer, store preferenceStore, opt *optimizer.Optimizer, key string, save bool) error {
	prefs, err := store.Preferences(ctx)
	if err != nil {
		return err
	}
	value, ok := prefs[key]
	if !ok {
		return errors.Errorf("no preference named %q", key)
	}

	proposal, result := opt.Propose(ctx, key, value)
	if proposal == nil {
		return errors.Errorf("optimization failed: %s", result.Error)
	}

	fmt.Fprintf(out, "%s\n  before: %s\n  after:  %s\n", proposal.Key, proposal.Original, proposal.Optimized)
	if !save {
		fmt.Fprintln(out, "Run again with --save to store this value.")
		return nil
	}
	if err := optimizer.Accept(ctx, store, *proposal); err != nil {
		return err
	}
	fmt.Fprintln(out, "Saved.")
	return nil
}

func optimizeAll(ctx context.Context, out io.Writer, store preferenceStore, opt *optimizer.Optimizer, save bool) error {
	prefs, err := store.Preferences(ctx)
	if err != nil {
		return err
	}
	entries := prefs.Ordered()
	if optimizer.CountEligible(entries) == 0 {
		fmt.Fprintln(out, "No filled-in preferences to optimize.")
		return nil
	}

	report := opt.OptimizeAllWithProgress(ctx, entries, func(entry optimizer.EntryResult, attempted, total int) {
		status := "ok"
		if !entry.Result.Success {
			status = "failed: " + entry.Result.Error
		}
		fmt.Fprintf(out, "[%d/%d] %s %s\n", attempted, total, entry.Key, status)
	})
	if verbose {
		observability.NewPrinter(out).PrintBatchReport(report)
	} else {
		fmt.Fprintln(out, report.Summary())
	}

	if !save || report.Optimized == 0 {
		return nil
	}
	if err := store.UpdatePersonalPreferences(ctx, settings.FromEntries(report.Entries)); err != nil {
		return err
	}
	fmt.Fprintln(out, "Saved.")
	return nil
}
