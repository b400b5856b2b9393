// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/jonathan/nightcrawler/internal/fetch"
	"github.com/jonathan/nightcrawler/internal/matching"
	"github.com/jonathan/nightcrawler/internal/optimizer"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// excerptLines is how many wrapped lines of a job description are shown
	excerptLines = 6
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	inner := boxWidth - 4
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %s │\n", pad(truncate(title, inner), inner))
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %s │\n", pad(truncate(line, inner), inner))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintPosting outputs where a posting came from and an excerpt of its text.
func (p *Printer) PrintPosting(posting *fetch.Posting) {
	if posting == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Source:   %s\n", posting.Source))
	sb.WriteString(fmt.Sprintf("Location: %s\n", posting.Location))
	if posting.CompanyInfo != "" {
		sb.WriteString(fmt.Sprintf("Company:  %s\n", posting.CompanyInfo))
	}
	sb.WriteString("\n")

	lines := wrap(posting.JobDescription, boxWidth-4)
	count := min(len(lines), excerptLines)
	for i := 0; i < count; i++ {
		sb.WriteString(lines[i] + "\n")
	}
	if len(lines) > excerptLines {
		sb.WriteString(fmt.Sprintf("... %d characters total\n", utf8.RuneCountInString(posting.JobDescription)))
	}

	p.printBox("JOB POSTING", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintAnalysis outputs the verdict, wrapped to the box width.
func (p *Printer) PrintAnalysis(result matching.Result) {
	if !result.Success {
		p.printBox("ANALYSIS FAILED", strings.Join(wrap(result.Error, boxWidth-4), "\n"))
		return
	}

	var lines []string
	for _, paragraph := range strings.Split(result.Analysis, "\n") {
		lines = append(lines, wrap(paragraph, boxWidth-4)...)
	}
	p.printBox("JOB MATCH ANALYSIS", strings.Join(lines, "\n"))
}

// PrintBatchReport outputs the per-key outcome of a batch optimization.
func (p *Printer) PrintBatchReport(report optimizer.BatchReport) {
	if report.Attempted == 0 {
		return
	}

	var sb strings.Builder
	for _, entry := range report.Results {
		mark := "✓"
		if !entry.Result.Success {
			mark = "✗"
		}
		sb.WriteString(fmt.Sprintf("%s %s\n", mark, entry.Key))
		if !entry.Result.Success && entry.Result.Error != "" {
			sb.WriteString(fmt.Sprintf("    %s\n", entry.Result.Error))
		}
	}
	sb.WriteString("\n" + report.Summary())

	p.printBox("PREFERENCE OPTIMIZATION", sb.String())
}

// wrap splits text into lines of at most width runes, breaking on spaces.
func wrap(text string, width int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{""}
	}

	var lines []string
	line := words[0]
	for _, word := range words[1:] {
		if utf8.RuneCountInString(line)+1+utf8.RuneCountInString(word) > width {
			lines = append(lines, line)
			line = word
			continue
		}
		line += " " + word
	}
	return append(lines, line)
}

func truncate(s string, width int) string {
	if utf8.RuneCountInString(s) <= width {
		return s
	}
	runes := []rune(s)
	return string(runes[:width-3]) + "..."
}

func pad(s string, width int) string {
	if n := utf8.RuneCountInString(s); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}
