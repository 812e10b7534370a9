// Package main provides the csvpack CLI tool for compressing trees of
// measurement CSV files into .bin records and restoring them.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
