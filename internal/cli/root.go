package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dshills/vecindex/internal/config"
	"github.com/dshills/vecindex/internal/embedder"
	"github.com/dshills/vecindex/internal/identity"
	"github.com/dshills/vecindex/internal/logging"
	"github.com/dshills/vecindex/internal/project"
	"github.com/dshills/vecindex/internal/report"
	"github.com/dshills/vecindex/internal/storage"
)

var (
	version   = "dev"
	buildTime = "unknown"

	globalConfigPath string
)

// SetVersion records build information shown by the version command.
func SetVersion(v, built string) {
	version = v
	buildTime = built
}

var rootCmd = &cobra.Command{
	Use:   "vecindex",
	Short: "Index source files for semantic retrieval",
	Long: `vecindex chunks and embeds the files of a project into a local vector
store so they can be retrieved by natural language or keyword queries.

Each project gets its own collection, keyed by user, host and project path.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String(config.KeyProjectRoot, "", "project root (default: nearest directory containing .vecindex or .git)")
	pf.String(config.KeyDBPath, "", "directory holding the vector database")
	pf.String(config.KeyEmbeddingFunction, "", "embedding function (local, openai, jina)")
	pf.String(config.KeyLogFile, "", "also write logs to this file")
	pf.Bool(config.KeyPipe, false, "print machine-readable JSON to stdout")
	pf.Bool(config.KeyNoStderr, false, "do not log to stderr")
	pf.BoolP(config.KeyVerbose, "v", false, "enable debug logging")
	pf.StringVar(&globalConfigPath, "global_config", "", "global config file (default: ~/.config/vecindex/config.json, \"-\" to skip)")
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %s\n", Describe(err))
		return 1
	}
	return 0
}

// session is the state shared by commands that touch a project.
type session struct {
	cfg      *config.Config
	logger   *slog.Logger
	logClose io.Closer
	owner    identity.Owner
	store    *storage.SQLiteStore
	project  *project.Project
	reporter *report.Reporter
}

// openSession loads configuration and logging. With withProject it also
// opens the store and builds the embedding function.
func openSession(cmd *cobra.Command, withProject bool) (*session, error) {
	cfg, err := config.Load(config.Options{
		GlobalPath: globalConfigPath,
		Flags:      cmd.Flags(),
	})
	if err != nil {
		return nil, err
	}

	logger, closer := logging.New(logging.Options{
		Verbose:  cfg.Verbose,
		NoStderr: cfg.NoStderr,
		Pipe:     cfg.Pipe,
		File:     cfg.LogFile,
		Stderr:   cmd.ErrOrStderr(),
	})
	s := &session{
		cfg:      cfg,
		logger:   logger,
		logClose: closer,
		reporter: report.New(cmd.OutOrStdout(), cfg.Pipe),
	}

	owner, err := identity.CurrentOwner()
	if err != nil {
		s.Close()
		return nil, err
	}
	s.owner = owner

	if !withProject {
		return s, nil
	}

	s.store, err = project.OpenStore(cfg)
	if err != nil {
		s.Close()
		return nil, err
	}
	emb, err := project.NewEmbedder(cfg, embedder.NewRegistry(logger))
	if err != nil {
		s.Close()
		return nil, err
	}
	s.project = project.New(cfg, s.store, emb, owner, logger)
	logger.Debug("session opened", "project", cfg.ProjectRoot, "db", cfg.DBFile(),
		"embedding_function", cfg.EmbeddingFunction)
	return s, nil
}

// openStore opens only the store, for commands that work across projects.
func (s *session) openStore() error {
	store, err := project.OpenStore(s.cfg)
	if err != nil {
		return err
	}
	s.store = store
	return nil
}

func (s *session) Close() {
	if s.project != nil {
		_ = s.project.Close()
	}
	if s.store != nil {
		_ = s.store.Close()
	}
	if s.logClose != nil {
		_ = s.logClose.Close()
	}
}
