package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/willibrandon/dbprobe/internal/metrics"
	"github.com/willibrandon/dbprobe/internal/storage/sqlite"
)

// newHistoryCmd creates the history subcommand
func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var limit int
	var graph bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded probes",
		Long: `Show probes recorded with --record (or history.enabled), newest first.

Use --graph to plot the latency of successful probes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd, true)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if _, err := os.Stat(cfg.History.Path); errors.Is(err, fs.ErrNotExist) {
				fmt.Fprintf(out, "No probe history at %s\n", cfg.History.Path)
				return nil
			}

			store, err := sqlite.Open(cmd.Context(), cfg.History.Path)
			if err != nil {
				return &exitError{code: ExitConfigError, err: err}
			}
			defer store.Close()
			history := sqlite.NewHistoryStore(store)

			records, err := history.Recent(cmd.Context(), limit)
			if err != nil {
				return &exitError{code: ExitProbeError, err: fmt.Errorf("failed to read history: %w", err)}
			}

			if jsonOutput {
				enc := json.NewEncoder(out)
				for _, rec := range records {
					if err := enc.Encode(newProbeLine(rec)); err != nil {
						return err
					}
				}
				return nil
			}

			total, err := history.Count(cmd.Context())
			if err != nil {
				return &exitError{code: ExitProbeError, err: fmt.Errorf("failed to count history: %w", err)}
			}

			printHistory(out, records, total)
			if graph {
				printLatencyGraph(out, records)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of records to show")
	cmd.Flags().BoolVar(&graph, "graph", false, "plot latency of successful probes")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	return cmd
}

// printHistory prints records in human-readable format.
func printHistory(w io.Writer, records []sqlite.ProbeRecord, total int) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No probes recorded")
		return
	}

	for _, rec := range records {
		status := "ok"
		detail := rec.Value
		if !rec.OK {
			status = "FAIL"
			detail = rec.Error
		}
		fmt.Fprintf(w, "%-16s  %-8s  %-4s  %10s  %s  %s\n",
			humanize.Time(rec.StartedAt),
			rec.Driver,
			status,
			rec.Latency().Round(10*time.Microsecond),
			rec.Target,
			detail,
		)
	}
	fmt.Fprintf(w, "\nShowing %d of %s recorded probes\n", len(records), humanize.Comma(int64(total)))
}

// printLatencyGraph plots successful latencies oldest to newest.
func printLatencyGraph(w io.Writer, records []sqlite.ProbeRecord) {
	samples := make([]metrics.Sample, 0, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		rec := records[i]
		samples = append(samples, metrics.Sample{Timestamp: rec.StartedAt, Latency: rec.Latency(), OK: rec.OK})
	}

	data := metrics.SuccessMillis(samples)
	if len(data) == 0 {
		fmt.Fprintln(w, "\nNo successful probes to plot")
		return
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, asciigraph.Plot(data,
		asciigraph.Height(10),
		asciigraph.Precision(2),
		asciigraph.Caption("latency (ms)"),
	))
}
