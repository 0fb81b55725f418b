package cli

import (
	"github.com/spf13/cobra"

	"github.com/dshills/vecindex/internal/config"
	"github.com/dshills/vecindex/internal/embedder"
	"github.com/dshills/vecindex/internal/logging"
	"github.com/dshills/vecindex/internal/mcp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP server on stdio",
	Long: `Starts a Model Context Protocol server on stdin/stdout exposing the
vectorise, update, query and reload tools. Logs go to stderr and the log
file only.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(config.Options{GlobalPath: globalConfigPath, Flags: cmd.Flags()})
	if err != nil {
		return err
	}

	// stdout carries the protocol.
	logger, closer := logging.New(logging.Options{
		Verbose:  cfg.Verbose,
		NoStderr: cfg.NoStderr,
		File:     cfg.LogFile,
		Stderr:   cmd.ErrOrStderr(),
	})
	defer func() { _ = closer.Close() }()

	srv, err := mcp.NewServer(mcp.Options{
		GlobalConfig: globalConfigPath,
		Registry:     embedder.NewRegistry(logger),
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	logger.Info("MCP server ready, listening on stdio", "version", version)
	err = srv.Serve(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
	logger.Info("server stopped")
	return err
}
