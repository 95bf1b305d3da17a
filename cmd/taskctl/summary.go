package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cd3331/pm-document-intelligence-sub000/internal/domain"
	"github.com/cd3331/pm-document-intelligence-sub000/internal/monitor"
)

func newSummaryCmd(b *backends) *cobra.Command {
	var (
		model    string
		taskType string
		since    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show accuracy, latency and cost per model and task",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, closeFn, err := b.openStore(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			m := monitor.New(s, b.events, monitorConfig(b)).WithClock(b.now)
			filter := domain.SummaryFilter{ModelVersion: model, TaskType: domain.TaskType(taskType)}
			if since > 0 {
				now := b.now()
				filter.Window = domain.Window{Start: now.Add(-since), End: now.Add(time.Nanosecond)}
			}

			metrics, err := m.Summary(ctx, filter)
			if err != nil {
				return err
			}
			if len(metrics) == 0 {
				fmt.Fprintln(b.out, "No predictions recorded.")
				return nil
			}

			w := tabwriter.NewWriter(b.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "MODEL\tTASK\tACCURACY\tLABELED\tTOTAL\tAVG LATENCY MS\tAVG COST USD")
			for _, a := range metrics {
				fmt.Fprintf(w, "%s\t%s\t%.3f\t%d\t%d\t%.1f\t%.6f\n",
					a.ModelVersion, a.TaskType, a.Accuracy, a.Count, a.Total, a.AvgLatencyMS, a.AvgCostUSD)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&model, "model", "", "filter by model version")
	cmd.Flags().StringVar(&taskType, "task", "", "filter by task type")
	cmd.Flags().DurationVar(&since, "since", 0, "only include predictions this recent (e.g. 168h)")
	return cmd
}

func monitorConfig(b *backends) monitor.Config {
	return monitor.Config{
		MinSamples:     b.cfg.Monitor.MinSamples,
		DriftThreshold: b.cfg.Monitor.DriftThreshold,
		ReportTTL:      b.cfg.Monitor.ReportTTL,
	}
}
