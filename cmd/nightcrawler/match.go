package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jonathan/nightcrawler/internal/fetch"
	"github.com/jonathan/nightcrawler/internal/matching"
	"github.com/jonathan/nightcrawler/internal/observability"
	"github.com/jonathan/nightcrawler/internal/page"
)

var (
	matchBrowser bool
	matchJSON    bool
)

var matchCmd = &cobra.Command{
	Use:   "match <url|file>",
	Short: "Analyze a job posting against your preferences",
	Long:  "Extract the job description and company from a LinkedIn job URL or a saved HTML page and print the fit verdict.",
	Args:  cobra.ExactArgs(1),
	RunE:  runMatch,
}

func init() {
	matchCmd.Flags().BoolVar(&matchBrowser, "browser", true, "Render in headless Chrome when the static page has no job text")
	matchCmd.Flags().BoolVar(&matchJSON, "json", false, "Print the result as JSON")
	rootCmd.AddCommand(matchCmd)
}

func runMatch(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	posting, err := a.postingLoader(matchBrowser)(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	result := matchPosting(cmd.Context(), a, posting)
	if verbose && !matchJSON {
		printer := observability.NewPrinter(cmd.OutOrStdout())
		printer.PrintPosting(posting)
		printer.PrintAnalysis(result)
		if !result.Success {
			return errors.Errorf("analysis failed: %s", result.Error)
		}
		return nil
	}
	return printMatch(cmd.OutOrStdout(), posting, result, matchJSON)
}

// matchPosting analyzes posting against the stored preferences.
func matchPosting(ctx context.Context, a *app, posting *fetch.Posting) matching.Result {
	preferences := page.MsgPreferenceError
	if prefs, err := a.store.Preferences(ctx); err != nil {
		a.logger.WithError(err).Warn("loading preferences failed")
	} else {
		preferences = matching.FormatPreferences(prefs)
	}
	return a.analyzer.Analyze(ctx, matching.Request{
		JobDescription:  posting.JobDescription,
		CompanyInfo:     posting.CompanyInfo,
		UserPreferences: preferences,
	})
}

func printMatch(w io.Writer, posting *fetch.Posting, result matching.Result, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			*fetch.Posting
			Result matching.Result `json:"result"`
		}{posting, result})
	}
	if posting.CompanyInfo != "" {
		fmt.Fprintf(w, "Company: %s\n", posting.CompanyInfo)
	}
	fmt.Fprintf(w, "%s\n", page.FormatResult(result))
	if !result.Success {
		return errors.Errorf("analysis failed: %s", result.Error)
	}
	return nil
}
