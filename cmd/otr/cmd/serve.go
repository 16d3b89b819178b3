package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceRoute/pkg/pipeline"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/server"
)

var (
	serveAddr    string
	serveCache   string
	serveRedis   string
	serveTimeout time.Duration
	serveTTL     time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP routing service",
	Long: `Run an HTTP service that routes boards posted to /route.

Routed results are cached in Redis (--redis) so that several instances
share them, or in a local directory (--cache).

Examples:
  otr serve --addr :8080 --redis redis://localhost:6379/0
  curl -s localhost:8080/stacks`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	f := serveCmd.Flags()
	f.StringVar(&serveAddr, "addr", ":8080", "listen address")
	f.StringVar(&serveCache, "cache", "", "cache routed results in this directory")
	f.StringVar(&serveRedis, "redis", "", "cache routed results in Redis (redis://host:port/db)")
	f.DurationVar(&serveTimeout, "timeout", 5*time.Minute, "limit on a single routing run (0 = none)")
	f.DurationVar(&serveTTL, "ttl", pipeline.DefaultTTL, "lifetime of cached results")
	serveCmd.MarkFlagsMutuallyExclusive("cache", "redis")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := loggerFromContext(ctx)

	c, err := openCache(ctx, serveCache, serveRedis)
	if err != nil {
		return err
	}
	defer c.Close()

	runner := pipeline.NewRunner(c, logger)
	runner.TTL = serveTTL
	return server.New(runner, logger, serveTimeout).ListenAndServe(ctx, serveAddr)
}
