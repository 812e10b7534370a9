package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hapislab/csvpack/internal/progress"
	"github.com/hapislab/csvpack/internal/publish"
	"github.com/hapislab/csvpack/internal/store/storeurl"
)

var pushCmd = &cobra.Command{
	Use:   "push DIR",
	Short: "Upload the .bin records of a directory to object storage",
	Long: `Verify and upload every .bin record under DIR, keyed by its path
relative to DIR, then write a manifest.json listing the upload.

Examples:
  csvpack push ./archive --to s3://lab-archive/2021
  csvpack push ./archive --to gs://lab-archive/2021 --rate 20
  csvpack push ./archive --to /mnt/backup/2021`,
	Args: cobra.ExactArgs(1),
	RunE: runPush,
}

var (
	pushTo   string
	pushRate float64
)

func init() {
	pushCmd.Flags().StringVar(&pushTo, "to", "", "destination: s3://bucket/prefix, gs://bucket/prefix or a directory")
	pushCmd.Flags().Float64Var(&pushRate, "rate", 0, "maximum uploads per second (0 = unlimited)")
	pushCmd.MarkFlagRequired("to")
	rootCmd.AddCommand(pushCmd)
}

func runPush(cmd *cobra.Command, args []string) error {
	log, err := newLogger()
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer log.Sync()

	collector, flush := newCollector(log)

	ctx, cancel := signalContext(cmd.ErrOrStderr())
	defer cancel()

	st, err := storeurl.Open(ctx, pushTo)
	if err != nil {
		return fmt.Errorf("opening %s: %w", pushTo, err)
	}
	defer st.Close()

	opts := []publish.Option{
		publish.WithWorkers(workers),
		publish.WithRate(pushRate),
		publish.WithStats(collector),
		publish.WithLogger(log),
	}
	var reporter *progress.Reporter
	if showProgress() {
		reporter = progress.NewReporter(cmd.ErrOrStderr(), progress.DefaultWidth)
		opts = append(opts, publish.WithProgress(reporter.Update))
	}

	m, err := publish.New(st, opts...).Push(ctx, args[0])
	if err != nil {
		return err
	}
	if reporter != nil {
		reporter.Finish(progress.Snapshot{
			Total:     int64(len(m.Objects)),
			Completed: int64(len(m.Objects)),
		})
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %d records (%s) to %s\n",
		len(m.Objects), progress.FormatBytes(m.TotalSize()), pushTo)
	return flush()
}
