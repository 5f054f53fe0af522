package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/Yates-Labs/beanstalk/internal/orchestrator"
)

var (
	batchFile        string
	batchConcurrency int
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Create stories for many ideas at once",
	Long: `Create one story per line of an ideas file. Blank lines and lines
starting with # are skipped. Every run is stored like a story created with
the create command.

Examples:
  beanstalk batch --file ideas.txt
  beanstalk batch --file ideas.txt --concurrency 4`,
	Args: cobra.NoArgs,
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)
	batchCmd.Flags().StringVar(&batchFile, "file", "", "File with one story idea per line")
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 2, "Number of stories written at the same time")
	_ = batchCmd.MarkFlagRequired("file")
}

func runBatch(cmd *cobra.Command, args []string) error {
	ideas, err := readIdeas(batchFile)
	if err != nil {
		return err
	}
	if len(ideas) == 0 {
		fmt.Println(mutedStyle.Render("No ideas found in " + batchFile))
		return nil
	}

	ctx := cmd.Context()
	pipeline, err := newPipeline(ctx)
	if err != nil {
		return err
	}
	defer pipeline.Close()

	bar := progressbar.Default(int64(len(ideas)), "Writing stories")
	results, err := pipeline.Batch(ctx, ideas, batchConcurrency, func(int, *orchestrator.Result) {
		_ = bar.Add(1)
	})
	if err != nil {
		return fmt.Errorf("batch interrupted: %w", err)
	}

	fmt.Println()
	completed := 0
	for i, res := range results {
		idx := numberStyle.Render(fmt.Sprintf("%3d.", i+1))
		switch res.Outcome {
		case orchestrator.OutcomeCompleted:
			completed++
			fmt.Printf("%s %s %s\n", idx,
				titleStyle.Render(res.Story.Title),
				mutedStyle.Render(fmt.Sprintf("(id %d, score %.1f)", res.RecordID, res.Evaluation.OverallScore)))
		case orchestrator.OutcomeUnsafe:
			fmt.Printf("%s %s %s\n", idx, errorStyle.Render("unsafe:"), mutedStyle.Render(res.SafetyIssues))
		default:
			fmt.Printf("%s %s %s\n", idx, errorStyle.Render("rejected:"), mutedStyle.Render(ideas[i]))
		}
	}

	fmt.Println()
	fmt.Println(questionStyle.Render(fmt.Sprintf("Total: %d ideas, %d stories written", len(ideas), completed)))
	return nil
}

func readIdeas(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ideas file: %w", err)
	}
	defer file.Close()

	var ideas []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ideas = append(ideas, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ideas file: %w", err)
	}
	return ideas, nil
}
