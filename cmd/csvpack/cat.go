package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hapislab/csvpack/internal/publish"
	"github.com/hapislab/csvpack/internal/stats"
	"github.com/hapislab/csvpack/internal/store/storeurl"
)

var catCmd = &cobra.Command{
	Use:   "cat KEY...",
	Short: "Print the decoded CSV text of records in object storage",
	Long: `Fetch and decode each record and write its CSV text to standard output.

Examples:
  csvpack cat --from s3://lab-archive/2021 session1/ch1.bin
  csvpack cat --from ./backup a.bin sub/c.bin`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCat,
}

var (
	catFrom      string
	catCacheSize int
)

func init() {
	catCmd.Flags().StringVar(&catFrom, "from", "", "store: s3://bucket/prefix, gs://bucket/prefix or a directory")
	catCmd.Flags().IntVar(&catCacheSize, "cache-size", 100, "number of records to cache in memory")
	catCmd.MarkFlagRequired("from")
	rootCmd.AddCommand(catCmd)
}

func runCat(cmd *cobra.Command, args []string) error {
	log, err := newLogger()
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer log.Sync()

	collector, flush := newCollector(log)

	ctx, cancel := signalContext(cmd.ErrOrStderr())
	defer cancel()

	st, err := storeurl.OpenCached(ctx, catFrom, catCacheSize, collector)
	if err != nil {
		return fmt.Errorf("opening %s: %w", catFrom, err)
	}
	defer st.Close()

	out := cmd.OutOrStdout()
	for _, key := range args {
		payload, err := publish.Fetch(ctx, st, key)
		if err != nil {
			return err
		}
		collector.IncCounter(stats.MetricObjectsFetched, 1)
		if _, err := out.Write(payload); err != nil {
			return err
		}
	}

	if verbose {
		s := st.Stats()
		log.Debug("cache", zap.Int64("hits", s.Hits), zap.Int64("misses", s.Misses))
	}
	return flush()
}
