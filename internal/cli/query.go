package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/dshills/vecindex/internal/config"
	"github.com/dshills/vecindex/internal/project"
	"github.com/dshills/vecindex/internal/report"
)

var (
	queryExclude []string
	queryInclude []string
)

var queryCmd = &cobra.Command{
	Use:   "query <terms...>",
	Short: "Find the files most relevant to a query",
	Long: `Embeds the query terms and returns the project files whose chunks are
closest to them, best match first. Each file appears at most once.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

func init() {
	f := queryCmd.Flags()
	f.IntP(config.KeyNResult, "n", 0, "number of files to return")
	f.Int(config.KeyQueryMultiplier, 0, "fetch n_result times this many chunks before grouping by file")
	f.StringSliceVar(&queryExclude, "exclude_path", nil, "files to leave out of the results")
	f.StringSliceVar(&queryInclude, "include", []string{"path"}, "fields to print: path, document")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	inc := report.Include{
		Path:     slices.Contains(queryInclude, "path"),
		Document: slices.Contains(queryInclude, "document"),
	}
	for _, field := range queryInclude {
		if field != "path" && field != "document" {
			return fmt.Errorf("unknown --include field %q", field)
		}
	}
	if !inc.Path && !inc.Document {
		inc.Path = true
	}

	s, err := openSession(cmd, true)
	if err != nil {
		return err
	}
	defer s.Close()

	results, err := s.project.Query(cmd.Context(), project.QueryOptions{
		Terms:        args,
		NResult:      s.cfg.NResult,
		Exclude:      queryExclude,
		WithDocument: inc.Document,
	})
	if err != nil {
		return err
	}
	return s.reporter.QueryResults(results, inc)
}
