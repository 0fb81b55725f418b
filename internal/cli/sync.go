package cli

import (
	"github.com/spf13/cobra"

	"github.com/dshills/vecindex/internal/config"
	"github.com/dshills/vecindex/internal/indexer"
)

var vectoriseCmd = &cobra.Command{
	Use:   "vectorise [paths...]",
	Short: "Index files into the project's collection",
	Long: `Chunks, embeds and stores the given files, creating the project's
collection if needed. Paths may be files, directories (with --recursive)
or glob patterns. With no paths the whole project is indexed.

Chunks of files that no longer exist are removed afterwards.`,
	Aliases: []string{"vectorize"},
	RunE:    runVectorise,
}

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Re-index every file already in the collection",
	Long: `Re-embeds every file that is stored in the project's collection and
still exists, and removes the chunks of files that were deleted. The
project must have been vectorised before.`,
	Args: cobra.NoArgs,
	RunE: runUpdate,
}

func init() {
	f := vectoriseCmd.Flags()
	f.BoolP(config.KeyRecursive, "r", false, "descend into directories and expand ** patterns")
	f.BoolP(config.KeyForce, "f", false, "index files even if .gitignore or exclude would skip them")
	f.IntP(config.KeyChunkSize, "c", 0, "chunk size in characters, -1 for whole files")
	f.Float64P(config.KeyOverlapRatio, "o", 0, "fraction of each chunk shared with the next, in [0, 1)")
	rootCmd.AddCommand(vectoriseCmd)

	uf := updateCmd.Flags()
	uf.IntP(config.KeyChunkSize, "c", 0, "chunk size in characters, -1 for whole files")
	uf.Float64P(config.KeyOverlapRatio, "o", 0, "fraction of each chunk shared with the next, in [0, 1)")
	rootCmd.AddCommand(updateCmd)
}

func runVectorise(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd, true)
	if err != nil {
		return err
	}
	defer s.Close()

	req := indexer.Request{Mode: indexer.ModeVectorise, Paths: args, Recursive: s.cfg.Recursive}
	if len(req.Paths) == 0 {
		req.Paths = []string{"."}
		req.Recursive = true
	}
	return runSyncer(cmd, s, req)
}

func runUpdate(cmd *cobra.Command, _ []string) error {
	s, err := openSession(cmd, true)
	if err != nil {
		return err
	}
	defer s.Close()

	return runSyncer(cmd, s, indexer.Request{Mode: indexer.ModeUpdate})
}

func runSyncer(cmd *cobra.Command, s *session, req indexer.Request) error {
	opts := []indexer.Option{indexer.WithReporter(s.reporter)}
	if !s.cfg.Pipe && !s.cfg.NoStderr {
		if p := newProgress(cmd.ErrOrStderr()); p != nil {
			opts = append(opts, indexer.WithProgress(p.update))
		}
	}

	syncer, err := s.project.Syncer(opts...)
	if err != nil {
		return err
	}
	_, err = syncer.Run(cmd.Context(), req)
	return err
}
