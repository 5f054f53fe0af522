package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Yates-Labs/beanstalk/internal/orchestrator"
	"github.com/Yates-Labs/beanstalk/internal/qa"
	"github.com/Yates-Labs/beanstalk/internal/tracker"
)

var askCmd = &cobra.Command{
	Use:   "ask [story-id] [question...]",
	Short: "Ask a question about a stored story",
	Long: `Answer a child's follow-up question about a stored story, the way a
parent would after reading it aloud.

Story ids are shown by the report command.

Examples:
  beanstalk ask 3 "Why was the dragon scared of the dark?"
  beanstalk ask 3 what happens next`,
	Args: cobra.MinimumNArgs(2),
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	question := strings.Join(args[1:], " ")

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	rec, err := loadSafeStory(ctx, store, args[0])
	if err != nil {
		return err
	}

	gateway, err := orchestrator.NewGatewayFromConfig(cfg, logger)
	if err != nil {
		return err
	}
	agent := qa.New(gateway, logger)

	var answer string
	_ = withSpinner("Thinking...", func() error {
		answer = agent.Answer(ctx, question, rec.StoryValue())
		return nil
	})

	fmt.Println()
	fmt.Println(headerStyle.Render(rec.Story.Title))
	fmt.Println(questionStyle.Render(question))
	fmt.Println()
	fmt.Println(wrapped(textStyle, answer))
	fmt.Println()
	return nil
}

// loadSafeStory resolves a story id argument to a stored record that passed
// the safety check.
func loadSafeStory(ctx context.Context, store tracker.Store, arg string) (tracker.Record, error) {
	id, err := strconv.Atoi(arg)
	if err != nil || id < 1 {
		return tracker.Record{}, fmt.Errorf("invalid story id %q", arg)
	}

	rec, err := store.Get(ctx, id)
	if err != nil {
		return tracker.Record{}, err
	}
	if !rec.Evaluation.SafetyPassed {
		return tracker.Record{}, fmt.Errorf("story %d failed the safety check", id)
	}
	return rec, nil
}
