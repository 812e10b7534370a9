package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"

	"github.com/hapislab/csvpack/internal/stats"
	"github.com/hapislab/csvpack/internal/stats/logger"
	promstats "github.com/hapislab/csvpack/internal/stats/prometheus"
)

// inputPrompt is shown when a command that needs paths is run without any.
const inputPrompt = "Input path of data file or directory including data files: "

var (
	// Global flags.
	verbose     bool
	workers     int
	noProgress  bool
	metricsFile string
)

var rootCmd = &cobra.Command{
	Use:   "csvpack",
	Short: "Compress measurement CSV trees into checksummed .bin records",
	Long: `csvpack converts every .csv file under a directory tree into a compact
.bin record and back. Subdirectories are processed before their parent,
and files within a directory are converted in parallel.

Examples:
  # Compress a measurement session
  csvpack compress ./2021-02-19_14-03-11

  # Restore it, recording a JSON report
  csvpack decompress --report run.json ./2021-02-19_14-03-11

  # Check every record without touching anything
  csvpack verify ./archive

  # Publish records to object storage
  csvpack push ./archive --to s3://lab-archive/2021`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().IntVarP(&workers, "workers", "w", runtime.NumCPU(), "number of files processed concurrently")
	rootCmd.PersistentFlags().BoolVar(&noProgress, "no-progress", false, "disable the progress bar")
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "", "write prometheus metrics to this textfile when done")
}

// newLogger returns a logger writing to stderr. Info lines are dropped
// while the progress bar owns the terminal.
func newLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	switch {
	case verbose:
		cfg = zap.NewDevelopmentConfig()
	case showProgress():
		cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	}
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg.Build()
}

// newCollector returns the stats collector for a command and a function
// that flushes it once the command is done.
func newCollector(log *zap.Logger) (stats.Collector, func() error) {
	if metricsFile == "" {
		c := logger.New(log.Named("stats"))
		return c, func() error {
			c.LogTotals("totals")
			return nil
		}
	}

	registry := prometheus.NewRegistry()
	c := promstats.New(registry)
	return c, func() error {
		if err := promstats.WriteTextfile(metricsFile, registry); err != nil {
			return fmt.Errorf("writing metrics: %w", err)
		}
		return nil
	}
}

// signalContext returns a context cancelled on interrupt or SIGTERM.
func signalContext(out io.Writer) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(out, "\nInterrupted, finishing in-flight files...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

// showProgress reports whether a progress bar should be drawn on stderr.
func showProgress() bool {
	return !noProgress && term.IsTerminal(int(os.Stderr.Fd()))
}

// targetPaths returns args, or prompts for a single path when args is empty.
// The prompted line is taken verbatim apart from its line ending.
func targetPaths(cmd *cobra.Command, args []string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}

	fmt.Fprint(cmd.OutOrStdout(), inputPrompt)
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("reading path: %w", err)
	}
	path := strings.TrimRight(line, "\r\n")
	if path == "" {
		return nil, nil
	}
	return []string{path}, nil
}
