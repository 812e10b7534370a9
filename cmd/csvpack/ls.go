package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hapislab/csvpack/internal/store/storeurl"
)

var lsCmd = &cobra.Command{
	Use:   "ls [prefix]",
	Short: "List the records in object storage",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLs,
}

var lsFrom string

func init() {
	lsCmd.Flags().StringVar(&lsFrom, "from", "", "store: s3://bucket/prefix, gs://bucket/prefix or a directory")
	lsCmd.MarkFlagRequired("from")
	rootCmd.AddCommand(lsCmd)
}

func runLs(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd.ErrOrStderr())
	defer cancel()

	st, err := storeurl.Open(ctx, lsFrom)
	if err != nil {
		return fmt.Errorf("opening %s: %w", lsFrom, err)
	}
	defer st.Close()

	var prefix string
	if len(args) == 1 {
		prefix = args[0]
	}
	keys, err := st.List(ctx, prefix)
	if err != nil {
		return err
	}
	for _, key := range keys {
		fmt.Fprintln(cmd.OutOrStdout(), key)
	}
	return nil
}
