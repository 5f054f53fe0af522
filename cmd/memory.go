package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Yates-Labs/beanstalk/internal/engine"
	"github.com/Yates-Labs/beanstalk/internal/orchestrator"
)

var memoryBackfill bool

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Show or backfill story memory",
	Long: `Show how many stories are remembered in story memory. With --backfill,
every stored story that passed the safety check and is not yet remembered is
added, for example after story memory was enabled.

Requires memory.enabled and a reachable Milvus server.

Examples:
  beanstalk memory
  beanstalk memory --backfill`,
	Args: cobra.NoArgs,
	RunE: runMemory,
}

func init() {
	rootCmd.AddCommand(memoryCmd)
	memoryCmd.Flags().BoolVar(&memoryBackfill, "backfill", false, "Remember stored stories that are missing from story memory")
}

func runMemory(cmd *cobra.Command, args []string) error {
	if !cfg.Memory.Enabled {
		return fmt.Errorf("story memory is disabled (set memory.enabled)")
	}
	ctx := cmd.Context()

	mem, err := orchestrator.OpenMemory(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer mem.Close()

	if memoryBackfill {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		records, err := store.List(ctx)
		if err != nil {
			return fmt.Errorf("failed to list stories: %w", err)
		}
		stories := make(map[int]engine.Story)
		for _, rec := range records {
			if rec.Evaluation.SafetyPassed {
				stories[rec.ID] = rec.StoryValue()
			}
		}
		if err := withSpinner("Remembering stories...", func() error {
			return mem.Backfill(ctx, stories)
		}); err != nil {
			return err
		}
	}

	count, err := mem.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to read story memory stats: %w", err)
	}
	fmt.Println(questionStyle.Render(fmt.Sprintf("Story memory holds %d stories", count)))
	return nil
}
