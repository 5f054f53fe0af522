package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Yates-Labs/beanstalk/internal/narrator"
)

var narrateOut string

var narrateCmd = &cobra.Command{
	Use:   "narrate [story-id]",
	Short: "Prepare a stored story for reading aloud",
	Long: `Prepare a stored story for narration. Each paragraph gets a tone, a
position in the story, pause markers and voice settings for a text-to-speech
engine.

Without --out the narration text is printed. With --out the full script,
including per-segment voice settings, is written as JSON.

Examples:
  beanstalk narrate 3
  beanstalk narrate 3 --out story3.json`,
	Args: cobra.ExactArgs(1),
	RunE: runNarrate,
}

func init() {
	rootCmd.AddCommand(narrateCmd)
	narrateCmd.Flags().StringVar(&narrateOut, "out", "", "Write the narration script to a JSON file: --out <filename>")
}

func runNarrate(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	rec, err := loadSafeStory(cmd.Context(), store, args[0])
	if err != nil {
		return err
	}
	script := narrator.Prepare(rec.StoryValue())

	if narrateOut == "" {
		fmt.Println()
		fmt.Println(headerStyle.Render(script.Title))
		fmt.Println()
		fmt.Println(wrapped(textStyle, script.Text))
		fmt.Println()
		return nil
	}

	file, err := os.Create(narrateOut)
	if err != nil {
		return fmt.Errorf("failed to create script file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(script); err != nil {
		return fmt.Errorf("failed to write script: %w", err)
	}

	fmt.Println(successStyle.Render(fmt.Sprintf("✓ Wrote narration script with %d segments to %s", len(script.Segments), narrateOut)))
	return nil
}
