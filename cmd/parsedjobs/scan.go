package main

import (
	"fmt"
	"strings"

	"geojobs/internal/models"

	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "List parsed jobs matching the filters, ordered by raw_id",
	Args:  cobra.NoArgs,
	RunE:  runScan,
}

var countCmd = &cobra.Command{
	Use:   "count",
	Short: "Count parsed jobs matching the filters",
	Args:  cobra.NoArgs,
	RunE:  runCount,
}

var (
	scanFilters  = newFilterFlags()
	countFilters = newFilterFlags()
)

func init() {
	scanFilters.register(scanCmd)
	countFilters.register(countCmd)

	rootCmd.AddCommand(scanCmd, countCmd)
}

// filterFlags exposes every ScanFilter term as a string flag; only flags the
// user set are applied.
type filterFlags struct {
	values map[string]*string
}

func newFilterFlags() *filterFlags {
	return &filterFlags{values: make(map[string]*string, len(models.FilterKeys))}
}

func flagName(key string) string {
	return strings.ReplaceAll(key, "_", "-")
}

func (f *filterFlags) register(cmd *cobra.Command) {
	for _, key := range models.FilterKeys {
		v := new(string)
		f.values[key] = v
		cmd.Flags().StringVar(v, flagName(key), "", "Filter on "+key)
	}
}

func (f *filterFlags) filter(cmd *cobra.Command) (models.ScanFilter, error) {
	var filter models.ScanFilter
	for _, key := range models.FilterKeys {
		if !cmd.Flags().Changed(flagName(key)) {
			continue
		}
		if err := filter.Set(key, *f.values[key]); err != nil {
			return filter, fmt.Errorf("--%s: %w", flagName(key), err)
		}
	}
	return filter, nil
}

func runScan(cmd *cobra.Command, _ []string) error {
	filter, err := scanFilters.filter(cmd)
	if err != nil {
		return err
	}

	sess, err := openStore()
	if err != nil {
		return err
	}
	defer sess.Close()

	jobs, err := sess.repo.Scan(cmd.Context(), filter)
	if err != nil {
		return err
	}

	return writeJSON(cmd.OutOrStdout(), jobs)
}

func runCount(cmd *cobra.Command, _ []string) error {
	filter, err := countFilters.filter(cmd)
	if err != nil {
		return err
	}

	sess, err := openStore()
	if err != nil {
		return err
	}
	defer sess.Close()

	n, err := sess.repo.Count(cmd.Context(), filter)
	if err != nil {
		return err
	}

	return writeJSON(cmd.OutOrStdout(), map[string]int64{"count": n})
}
