package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/Yates-Labs/beanstalk/internal/engine"
	"github.com/Yates-Labs/beanstalk/internal/orchestrator"
	"github.com/Yates-Labs/beanstalk/internal/qa"
)

var createCmd = &cobra.Command{
	Use:   "create [idea...]",
	Short: "Create a bedtime story",
	Long: `Create a bedtime story from a short idea.

With an idea the story is written once and the command exits after the
follow-up questions. Without one an interactive menu opens where you can
create stories, view the report or exit.

Examples:
  beanstalk create a shy dragon who learns to share
  beanstalk create
  beanstalk create "a sleepy owl" --verbose`,
	RunE: runCreate,
}

func init() {
	rootCmd.AddCommand(createCmd)
}

func runCreate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	pipeline, err := newPipeline(ctx)
	if err != nil {
		return err
	}
	defer pipeline.Close()

	reader := bufio.NewReader(os.Stdin)
	if len(args) > 0 {
		return createStory(ctx, pipeline, reader, strings.Join(args, " "))
	}
	return interactiveMenu(ctx, pipeline, reader)
}

func interactiveMenu(ctx context.Context, pipeline *orchestrator.Pipeline, reader *bufio.Reader) error {
	fmt.Println()
	fmt.Println(headerStyle.Render("Welcome to Beanstalk, the bedtime story maker!"))

	for {
		fmt.Println()
		fmt.Println(titleStyle.Render("What would you like to do?"))
		fmt.Println(textStyle.Render("  1. Create a story"))
		fmt.Println(textStyle.Render("  2. View report"))
		fmt.Println(textStyle.Render("  3. Exit"))

		choice, err := prompt(reader, "Choose an option (1-3): ")
		if err != nil {
			return nil
		}

		switch strings.ToLower(choice) {
		case "1", "create":
			idea, err := prompt(reader, "What story would you like to hear tonight? ")
			if err != nil {
				return nil
			}
			if err := createStory(ctx, pipeline, reader, idea); err != nil {
				return err
			}
		case "2", "report":
			if err := printReport(ctx, pipeline.Store()); err != nil {
				fmt.Println(errorStyle.Render("Error:"), err)
			}
		case "3", "exit", "quit", "q":
			fmt.Println(mutedStyle.Render("Sweet dreams!"))
			return nil
		default:
			fmt.Println(errorStyle.Render("Please choose 1, 2 or 3."))
		}

		if ctx.Err() != nil {
			return nil
		}
	}
}

func createStory(ctx context.Context, pipeline *orchestrator.Pipeline, reader *bufio.Reader, idea string) error {
	var res *orchestrator.Result
	err := withSpinner("Writing your story...", func() error {
		var runErr error
		res, runErr = pipeline.Run(ctx, idea)
		return runErr
	})
	if err != nil {
		return err
	}

	switch res.Outcome {
	case orchestrator.OutcomeRejected:
		fmt.Println()
		fmt.Println(errorStyle.Render("I couldn't make a story from that."))
		fmt.Println(wrapped(questionStyle, res.RejectionHint))
		return nil
	case orchestrator.OutcomeUnsafe:
		fmt.Println()
		fmt.Println(errorStyle.Render("That story didn't pass our bedtime safety check."))
		fmt.Println(wrapped(mutedStyle, res.SafetyIssues))
		fmt.Println(textStyle.Render("Please try a different idea."))
		return nil
	}

	renderStory(res)
	askQuestions(ctx, pipeline, reader, res)
	askLiked(ctx, pipeline, reader, res)
	return nil
}

func renderStory(res *orchestrator.Result) {
	fmt.Println()
	fmt.Println(headerStyle.Render(res.Story.Title))
	fmt.Println()
	fmt.Println(wrapped(textStyle, res.Story.Body))
	fmt.Println()
	fmt.Println(titleStyle.Render("Moral: ") + textStyle.Render(res.Story.Moral))
	fmt.Println()

	eval := res.Evaluation
	status := errorStyle.Render("needs work")
	if eval.Passed {
		status = successStyle.Render("passed")
	}
	line := fmt.Sprintf("%s %s  %s  %s",
		mutedStyle.Render("Score:"),
		numberStyle.Render(fmt.Sprintf("%.1f/10", eval.OverallScore)),
		status,
		mutedStyle.Render(fmt.Sprintf("%d words, about %.1f minutes", eval.LengthCheck.WordCount, eval.LengthCheck.EstimatedReadTimeMinutes)))
	if res.Refined {
		line += mutedStyle.Render("  (refined)")
	}
	fmt.Println(line)
}

func askQuestions(ctx context.Context, pipeline *orchestrator.Pipeline, reader *bufio.Reader, res *orchestrator.Result) {
	session := pipeline.QA().NewSession(*res.Story)

	if len(res.Questions) > 0 {
		fmt.Println()
		fmt.Println(titleStyle.Render("Questions you might ask:"))
		for i, q := range res.Questions {
			fmt.Printf("  %s %s\n", numberStyle.Render(fmt.Sprintf("%d.", i+1)), questionStyle.Render(q))
		}
	}

	for session.Remaining() > 0 {
		fmt.Println()
		input, err := prompt(reader, fmt.Sprintf("Ask a question (number or your own, Enter to skip, %d left): ", session.Remaining()))
		if err != nil || input == "" {
			return
		}

		question := input
		if n, err := strconv.Atoi(input); err == nil && n >= 1 && n <= len(res.Questions) {
			question = res.Questions[n-1]
		}

		var exchange engine.QAExchange
		err = withSpinner("Thinking...", func() error {
			var askErr error
			exchange, askErr = session.Ask(ctx, question)
			return askErr
		})
		if err != nil {
			return
		}
		fmt.Println(questionStyle.Render(exchange.Question))
		fmt.Println(wrapped(textStyle, exchange.Answer))
	}

	fmt.Println(mutedStyle.Render(fmt.Sprintf("That's %d questions, time for sleep!", qa.MaxQuestions)))
}

func askLiked(ctx context.Context, pipeline *orchestrator.Pipeline, reader *bufio.Reader, res *orchestrator.Result) {
	store := pipeline.Store()
	if store == nil || res.RecordID == 0 {
		return
	}

	fmt.Println()
	answer, err := prompt(reader, "Did you enjoy this story? (y/n): ")
	if err != nil || answer == "" {
		return
	}

	liked := strings.HasPrefix(strings.ToLower(answer), "y")
	if _, err := store.SetLiked(ctx, res.RecordID, liked); err != nil {
		logger.WithError(err).Warn("Failed to save rating")
		return
	}
	if liked {
		fmt.Println(successStyle.Render("Wonderful! Sweet dreams."))
	} else {
		fmt.Println(mutedStyle.Render("Thanks, we'll do better next time."))
	}
}

// prompt prints label and reads one trimmed line. io.EOF ends input.
func prompt(reader *bufio.Reader, label string) (string, error) {
	fmt.Print(questionStyle.Render(label))
	line, err := reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		fmt.Println()
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// withSpinner shows an indeterminate spinner on stderr while fn runs.
func withSpinner(description string, fn func() error) error {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)

	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				_ = bar.Add(1)
			}
		}
	}()

	err := fn()
	close(done)
	<-stopped
	_ = bar.Finish()
	return err
}
