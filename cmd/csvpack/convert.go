package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hapislab/csvpack"
	"github.com/hapislab/csvpack/internal/progress"
)

var compressCmd = &cobra.Command{
	Use:   "compress [path ...]",
	Short: "Compress .csv files into .bin records",
	Long: `Compress every .csv file under each path into a .bin record next to it,
removing the source. Paths may be directories or single files; files with
another extension are left alone. With no arguments the path is read from
standard input.

Examples:
  csvpack compress ./session
  csvpack compress --codec zstd --keep-going ./a ./b`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConvert(cmd, args, csvpack.Compress)
	},
}

var decompressCmd = &cobra.Command{
	Use:   "decompress [path ...]",
	Short: "Restore .csv files from .bin records",
	Long: `Decompress every .bin record under each path back into a .csv file,
removing the record. The compression of each record is detected
automatically, and records written by the previous lab tooling are
accepted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConvert(cmd, args, csvpack.Decompress)
	},
}

var (
	codecName  string
	keepGoing  bool
	keepSource bool
	reportPath string
)

func init() {
	compressCmd.Flags().StringVar(&codecName, "codec", "gzip", "compression for new records: gzip, zstd, none")
	for _, cmd := range []*cobra.Command{compressCmd, decompressCmd} {
		cmd.Flags().BoolVar(&keepGoing, "keep-going", false, "process every file even after a failure")
		cmd.Flags().BoolVar(&keepSource, "keep-source", false, "keep input files after conversion")
		cmd.Flags().StringVar(&reportPath, "report", "", "write a JSON run report to this file")
		rootCmd.AddCommand(cmd)
	}
}

func runConvert(cmd *cobra.Command, args []string, dir csvpack.Direction) error {
	paths, err := targetPaths(cmd, args)
	if err != nil {
		return err
	}

	log, err := newLogger()
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer log.Sync()

	collector, flush := newCollector(log)

	opts := []csvpack.Option{
		csvpack.WithWorkers(workers),
		csvpack.WithKeepSource(keepSource),
		csvpack.WithStats(collector),
		csvpack.WithLogger(log),
	}
	if dir == csvpack.Compress {
		c, err := csvpack.CodecByName(codecName)
		if err != nil {
			return err
		}
		opts = append(opts, csvpack.WithCodec(c))
	}
	if keepGoing || dir == csvpack.Verify {
		opts = append(opts, csvpack.WithFailurePolicy(csvpack.KeepGoing))
	}

	var reporter *progress.Reporter
	if showProgress() {
		reporter = progress.NewReporter(cmd.ErrOrStderr(), progress.DefaultWidth)
		opts = append(opts, csvpack.WithProgress(reporter.Update))
	} else {
		opts = append(opts, csvpack.WithProgress(logProgress(log)))
	}

	runner, err := csvpack.New(opts...)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd.ErrOrStderr())
	defer cancel()

	report, runErr := runner.Run(ctx, dir, paths)
	if report != nil {
		finish(cmd, reporter, report)
		if reportPath != "" {
			if err := csvpack.WriteReport(reportPath, report); err != nil {
				return err
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}
	return runErr
}

// finish prints the closing line and every failure.
func finish(cmd *cobra.Command, reporter *progress.Reporter, report *csvpack.Report) {
	snap := progress.Snapshot{
		Total:     report.Total,
		Completed: report.Completed,
		Failed:    report.Failed,
		Elapsed:   report.Elapsed,
	}
	if reporter != nil {
		reporter.Finish(snap)
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), progress.Line(snap, progress.DefaultWidth))
	}

	out := cmd.OutOrStdout()
	for _, res := range report.Failures() {
		fmt.Fprintf(out, "  ERROR: %s\n", res.Error)
	}
	if report.Skipped > 0 {
		fmt.Fprintf(out, "  %d files not processed\n", report.Skipped)
	}
	if verbose && report.Completed > 0 {
		s := report.Summary()
		fmt.Fprintf(out, "  %s in, %s out, median ratio %.3f\n",
			progress.FormatBytes(s.BytesIn), progress.FormatBytes(s.BytesOut), s.MedianRatio)
	}
}

// logProgress logs roughly every tenth of the run when no terminal is
// attached.
func logProgress(log *zap.Logger) progress.Func {
	return func(s progress.Snapshot) {
		done := s.Completed + s.Failed
		step := s.Total / 10
		if step < 1 {
			step = 1
		}
		if done == 0 || (done%step != 0 && done != s.Total) {
			return
		}
		log.Info("progress",
			zap.Int64("done", done),
			zap.Int64("total", s.Total),
			zap.Int64("failed", s.Failed),
		)
	}
}
