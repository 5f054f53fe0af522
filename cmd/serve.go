package cmd

import (
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/Yates-Labs/beanstalk/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the story API over HTTP",
	Long: `Start the HTTP API. Stories created through the API are stored like
stories created from the command line. Prometheus metrics are served at
/metrics.

Examples:
  beanstalk serve
  beanstalk serve --addr :9090`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config, :8080)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	pipeline, err := newPipeline(ctx)
	if err != nil {
		return err
	}
	defer pipeline.Close()

	addr := serveAddr
	if addr == "" {
		addr = cfg.Server.Addr
	}
	if !verbose && logLevel != "debug" && logLevel != "trace" {
		gin.SetMode(gin.ReleaseMode)
	}

	return server.New(pipeline, logger).Run(ctx, addr)
}
