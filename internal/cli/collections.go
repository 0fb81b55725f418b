package cli

import (
	"encoding/json"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dshills/vecindex/internal/config"
	"github.com/dshills/vecindex/internal/identity"
	"github.com/dshills/vecindex/internal/report"
	"github.com/dshills/vecindex/internal/storage"
)

var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List your collections in the configured database",
	Args:  cobra.NoArgs,
	RunE:  runLs,
}

var dropCmd = &cobra.Command{
	Use:   "drop",
	Short: "Delete the project's collection",
	Args:  cobra.NoArgs,
	RunE:  runDrop,
}

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete empty collections and collections of removed projects",
	Args:  cobra.NoArgs,
	RunE:  runClean,
}

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a project config from the global one",
	Long: `Creates .vecindex/config.json in the project root, copied from the
global config file if there is one. The project root is --project_root or
the current directory.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite an existing project config")
	rootCmd.AddCommand(lsCmd, dropCmd, cleanCmd, initCmd)
}

func runLs(cmd *cobra.Command, _ []string) error {
	s, err := openSession(cmd, false)
	if err != nil {
		return err
	}
	defer s.Close()
	if err := s.openStore(); err != nil {
		return err
	}

	ctx := cmd.Context()
	owned, err := identity.Owned(ctx, s.store, s.owner)
	if err != nil {
		return err
	}

	infos := make([]report.CollectionInfo, 0, len(owned))
	for _, c := range owned {
		info, err := describeCollection(cmd, c)
		if err != nil {
			return err
		}
		infos = append(infos, info)
	}
	return s.reporter.Collections(infos)
}

func describeCollection(cmd *cobra.Command, c storage.Collection) (report.CollectionInfo, error) {
	metas, err := c.GetMetadata(cmd.Context())
	if err != nil {
		return report.CollectionInfo{}, err
	}
	paths := map[string]bool{}
	for _, m := range metas {
		paths[m.Path] = true
	}
	meta := c.Metadata()
	return report.CollectionInfo{
		Project:           meta.String(storage.MetaPath),
		ID:                c.Name(),
		Chunks:            len(metas),
		Files:             len(paths),
		EmbeddingFunction: meta.String(storage.MetaEmbeddingFunction),
	}, nil
}

func runDrop(cmd *cobra.Command, _ []string) error {
	s, err := openSession(cmd, true)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.project.Drop(cmd.Context()); err != nil {
		return err
	}
	s.logger.Info("collection dropped", "project", s.cfg.ProjectRoot)
	if s.cfg.Pipe {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]string{"dropped": s.cfg.ProjectRoot})
	}
	cmd.Printf("Dropped collection for %s\n", s.cfg.ProjectRoot)
	return nil
}

func runClean(cmd *cobra.Command, _ []string) error {
	s, err := openSession(cmd, false)
	if err != nil {
		return err
	}
	defer s.Close()
	if err := s.openStore(); err != nil {
		return err
	}

	removed, err := identity.Clean(cmd.Context(), s.store, s.owner, false)
	if err != nil {
		return err
	}
	if s.cfg.Pipe {
		if removed == nil {
			removed = []identity.Removed{}
		}
		return json.NewEncoder(cmd.OutOrStdout()).Encode(removed)
	}
	for _, r := range removed {
		cmd.Printf("Removed %s (%s): %s\n", r.Path, r.Collection, r.Reason)
	}
	if len(removed) == 0 {
		cmd.Println("Nothing to clean.")
	}
	return nil
}

func runInit(cmd *cobra.Command, _ []string) error {
	root, err := cmd.Flags().GetString(config.KeyProjectRoot)
	if err != nil {
		return err
	}
	if root == "" {
		root = "."
	}
	root, err = filepath.Abs(root)
	if err != nil {
		return err
	}

	target, err := config.Init(root, globalConfigPath, initForce)
	if err != nil {
		return err
	}
	cmd.Printf("Created %s\n", target)
	return nil
}
