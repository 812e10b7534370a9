package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hapislab/csvpack"
	"github.com/hapislab/csvpack/internal/progress"
	"github.com/hapislab/csvpack/internal/walker"
)

var statsCmd = &cobra.Command{
	Use:   "stats [path ...]",
	Short: "Show how many .csv and .bin files a tree holds",
	Long: `Display statistics about data directories including:
- Number of .csv files and their total size
- Number of .bin records and their total size
- Overall size ratio of records to sources`,
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

// extStats counts files with one extension.
type extStats struct {
	files int
	bytes int64
}

func runStats(cmd *cobra.Command, args []string) error {
	paths, err := targetPaths(cmd, args)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return csvpack.ErrNoTargets
	}

	ctx, cancel := signalContext(cmd.ErrOrStderr())
	defer cancel()

	counts := map[string]*extStats{csvpack.ExtCSV: {}, csvpack.ExtBin: {}}
	keep := func(path string) bool {
		_, ok := counts[filepath.Ext(path)]
		return ok
	}

	add := func(f string) {
		info, err := os.Stat(f)
		if err != nil {
			return
		}
		s := counts[filepath.Ext(f)]
		s.files++
		s.bytes += info.Size()
	}

	seen := make(map[string]bool, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", p, err)
		}
		if seen[abs] {
			continue
		}
		seen[abs] = true

		info, err := os.Stat(abs)
		if err != nil {
			return walker.Classify(abs, err)
		}
		if !info.IsDir() {
			if keep(abs) {
				add(abs)
			}
			continue
		}
		err = walker.Walk(ctx, abs, keep, func(_ string, files []string) error {
			for _, f := range files {
				add(f)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	csv, bin := counts[csvpack.ExtCSV], counts[csvpack.ExtBin]
	out := cmd.OutOrStdout()
	if csv.files == 0 && bin.files == 0 {
		fmt.Fprintln(out, "No .csv or .bin files found.")
		return nil
	}

	fmt.Fprintf(out, "CSV files:   %d (%s)\n", csv.files, progress.FormatBytes(csv.bytes))
	fmt.Fprintf(out, "BIN records: %d (%s)\n", bin.files, progress.FormatBytes(bin.bytes))
	if csv.bytes > 0 && bin.bytes > 0 {
		fmt.Fprintf(out, "Size ratio:  %.3f\n", float64(bin.bytes)/float64(csv.bytes))
	}
	return nil
}
