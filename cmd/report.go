package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/Yates-Labs/beanstalk/internal/engine"
	"github.com/Yates-Labs/beanstalk/internal/tracker"
)

var exportFile string

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show a summary of stored stories",
	Long: `Show every stored story with its score, length, safety result and rating,
followed by aggregate statistics.

Examples:
  beanstalk report
  beanstalk report --export stories.json`,
	Args: cobra.NoArgs,
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().StringVar(&exportFile, "export", "", "Export stories and summary to JSON file: --export <filename>")
}

func runReport(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if exportFile != "" {
		return handleExport(cmd.Context(), store, exportFile)
	}
	return printReport(cmd.Context(), store)
}

func handleExport(ctx context.Context, store tracker.Store, filename string) error {
	records, err := store.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list stories: %w", err)
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer file.Close()

	if err := tracker.Export(records, string(tracker.FormatJSON), file); err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	fmt.Println(successStyle.Render(fmt.Sprintf("✓ Exported %d stories to %s", len(records), filename)))
	return nil
}

func printReport(ctx context.Context, store tracker.Store) error {
	if store == nil {
		return fmt.Errorf("story store is disabled")
	}
	records, err := store.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list stories: %w", err)
	}
	if len(records) == 0 {
		fmt.Println(mutedStyle.Render("No stories yet. Create one with: beanstalk create"))
		return nil
	}

	const (
		idWidth    = 6
		titleWidth = 36
		scoreWidth = 9
		wordWidth  = 9
		safeWidth  = 8
		likedWidth = 8
	)

	cellHeader := headerStyle.Padding(0, 1)
	headers := []string{
		cellHeader.Width(idWidth).Render("ID"),
		cellHeader.Width(titleWidth).Render("TITLE"),
		cellHeader.Width(scoreWidth).Render("SCORE"),
		cellHeader.Width(wordWidth).Render("WORDS"),
		cellHeader.Width(safeWidth).Render("SAFE"),
		cellHeader.Width(likedWidth).Render("LIKED"),
	}
	fmt.Println()
	fmt.Println(strings.Join(headers, borderStyle.Render("│")))

	separatorParts := []string{
		strings.Repeat("─", idWidth),
		strings.Repeat("─", titleWidth),
		strings.Repeat("─", scoreWidth),
		strings.Repeat("─", wordWidth),
		strings.Repeat("─", safeWidth),
		strings.Repeat("─", likedWidth),
	}
	fmt.Println(borderStyle.Render(strings.Join(separatorParts, "┼")))

	cell := func(color lipgloss.TerminalColor, width int, right bool) lipgloss.Style {
		s := lipgloss.NewStyle().Foreground(color).Padding(0, 1).Width(width)
		if right {
			s = s.Align(lipgloss.Right)
		}
		return s
	}

	for _, rec := range records {
		score := "-"
		safe := successStyle.Render("yes")
		if rec.Evaluation.SafetyPassed {
			score = fmt.Sprintf("%.1f", rec.Evaluation.OverallScore)
		} else {
			safe = errorStyle.Render("no")
		}

		cells := []string{
			cell(numberColor, idWidth, true).Render(fmt.Sprintf("%d", rec.ID)),
			cell(titleColor, titleWidth, false).Render(truncate(rec.Story.Title, titleWidth-2)),
			cell(numberColor, scoreWidth, true).Render(score),
			cell(numberColor, wordWidth, true).Render(fmt.Sprintf("%d", rec.Story.WordCount)),
			cell(textColor, safeWidth, false).Render(safe),
			cell(textColor, likedWidth, false).Render(likedLabel(rec.Liked)),
		}
		fmt.Println(strings.Join(cells, borderStyle.Render("│")))
	}

	summary := tracker.Summarize(records)
	fmt.Println()
	fmt.Println(questionStyle.Render(fmt.Sprintf(
		"Total: %d stories, average score %.1f, %d passed (%.0f%%), %d safety failures, %d liked, %d disliked",
		summary.Total, summary.AverageOverall, summary.Passed, summary.PassRate*100,
		summary.SafetyFailures, summary.Liked, summary.Disliked)))

	if len(summary.DimensionAverages) > 0 {
		parts := make([]string, 0, len(engine.Dimensions))
		for _, d := range engine.Dimensions {
			if avg, ok := summary.DimensionAverages[d]; ok {
				parts = append(parts, fmt.Sprintf("%s %.1f", d, avg))
			}
		}
		fmt.Println(mutedStyle.Render("Dimension averages: " + strings.Join(parts, ", ")))
	}
	return nil
}

func likedLabel(liked *bool) string {
	switch {
	case liked == nil:
		return "-"
	case *liked:
		return "yes"
	default:
		return "no"
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
