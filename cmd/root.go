package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Yates-Labs/beanstalk/internal/config"
	"github.com/Yates-Labs/beanstalk/internal/orchestrator"
	"github.com/Yates-Labs/beanstalk/internal/tracker"
)

var (
	configPath string
	logLevel   string
	verbose    bool

	cfg    *config.Config
	logger = logrus.New()
)

var rootCmd = &cobra.Command{
	Use:   "beanstalk",
	Short: "Beanstalk - Bedtime story generator",
	Long: `Beanstalk turns a short idea into a bedtime story for 5-10 year olds.

Each request is classified, written from a planned outline, checked for
safety, scored against a quality rubric and refined once when it falls short.
Stories are stored locally so they can be reviewed, rated and narrated later.

Required environment variables:
  OPENAI_API_KEY     - OpenAI API key (without it placeholder replies are used)

Optional environment variables:
  BEANSTALK_MODEL       - Chat model override
  BEANSTALK_STORE_PATH  - Story store location
  MILVUS_ADDRESS        - Milvus server for story memory`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: beanstalk.toml, beanstalk.yaml or beanstalk.yml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: trace, debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output (same as --log-level debug)")
}

// Execute runs the root command. Interrupts cancel the command context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error:"), err)
		os.Exit(1)
	}
}

func setup(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}
	cfg = loaded

	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logger.SetOutput(os.Stderr)

	level := cfg.Log.Level
	if logLevel != "" {
		level = logLevel
	}
	if verbose {
		level = "debug"
	}
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	logger.SetLevel(parsed)

	if cfg.Source != "" {
		logger.Debugf("Loaded configuration from %s", cfg.Source)
	}
	return nil
}

func newPipeline(ctx context.Context) (*orchestrator.Pipeline, error) {
	return orchestrator.NewFromConfig(ctx, cfg, logger)
}

func openStore() (tracker.Store, error) {
	store, err := tracker.Open(cfg.Store.Driver, cfg.Store.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open story store: %w", err)
	}
	return store, nil
}
