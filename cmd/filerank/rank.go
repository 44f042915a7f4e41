package main

import (
	"fmt"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/filerank/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/filerank/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/filerank/internal/sink"
	"github.com/Adithya-Monish-Kumar-K/filerank/internal/source"
	"github.com/spf13/cobra"
)

var (
	rankDir      string
	rankQuery    string
	rankID       string
	rankK        int
	rankInclude  []string
	rankExclude  []string
	rankMaxBytes int64
)

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Rank the files of one checked-out tree against a query",
	Long: `Load every matching file below --dir, rank it against --query and print a
single JSON record.

Examples:
  filerank rank --dir ~/src/MONAI --query "DataLoader crashes on empty batch"
  filerank rank --dir . --query "retry budget" --k 10 --include '**/*.go' --exclude 'vendor/**'`,
	Args: cobra.NoArgs,
	RunE: runRank,
}

func init() {
	defaults := source.DefaultDirectoryOptions()
	rankCmd.Flags().StringVarP(&rankDir, "dir", "d", ".", "Root of the source tree")
	rankCmd.Flags().StringVarP(&rankQuery, "query", "q", "", "Query text (issue title and body)")
	rankCmd.Flags().StringVar(&rankID, "id", "local", "Instance id written to the record")
	rankCmd.Flags().IntVarP(&rankK, "k", "k", 0, "Number of files to return (default ranking.narrowK)")
	rankCmd.Flags().StringSliceVar(&rankInclude, "include", defaults.Include, "Doublestar globs of files to rank")
	rankCmd.Flags().StringSliceVar(&rankExclude, "exclude", nil, "Doublestar globs of files to skip")
	rankCmd.Flags().Int64Var(&rankMaxBytes, "max-file-bytes", defaults.MaxFileBytes, "Skip files larger than this (0 = no limit)")
	_ = rankCmd.MarkFlagRequired("query")
	rootCmd.AddCommand(rankCmd)
}

func runRank(cmd *cobra.Command, _ []string) error {
	if strings.TrimSpace(rankQuery) == "" {
		return fmt.Errorf("--query must not be blank")
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	opts := executorOptions(cfg)
	if rankK > 0 {
		opts.NarrowK = rankK
		if opts.WideK < rankK {
			opts.WideK = rankK
		}
	}

	// Flags win; otherwise the input section of the config file applies.
	dirOpts := source.DirectoryOptions{
		Include:      cfg.Input.Include,
		Exclude:      cfg.Input.Exclude,
		MaxFileBytes: cfg.Input.MaxFileBytes,
	}
	if cmd.Flags().Changed("include") || len(dirOpts.Include) == 0 {
		dirOpts.Include = rankInclude
	}
	if cmd.Flags().Changed("exclude") {
		dirOpts.Exclude = rankExclude
	}
	if cmd.Flags().Changed("max-file-bytes") {
		dirOpts.MaxFileBytes = rankMaxBytes
	}
	docs, err := source.LoadDirectory(rankDir, dirOpts)
	if err != nil {
		return err
	}

	rec, err := executor.New(opts).Execute(cmd.Context(), ingestion.QueryContext{
		InstanceID: rankID,
		Query:      rankQuery,
		Corpus:     docs,
		Source:     rankDir,
	})
	if err != nil {
		return err
	}
	out := sink.NewJSONLWriter(cmd.OutOrStdout())
	if err := out.Write(cmd.Context(), *rec); err != nil {
		return err
	}
	return out.Close()
}
