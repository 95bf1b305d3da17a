package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cd3331/pm-document-intelligence-sub000/internal/domain"
	"github.com/cd3331/pm-document-intelligence-sub000/internal/monitor"
)

func newDriftCmd(b *backends) *cobra.Command {
	var (
		model     string
		taskType  string
		window    time.Duration
		threshold float64
	)

	cmd := &cobra.Command{
		Use:   "drift",
		Short: "Compare accuracy of the latest window against the one before it",
		RunE: func(cmd *cobra.Command, args []string) error {
			if model == "" {
				return errors.New("--model is required")
			}
			if window <= 0 {
				return errors.New("--window must be positive")
			}

			ctx := cmd.Context()
			s, closeFn, err := b.openStore(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			baseline, current := adjacentWindows(b.now(), window)
			report, err := monitor.New(s, b.events, monitorConfig(b)).WithClock(b.now).DetectDrift(ctx, domain.DriftQuery{
				ModelVersion: model,
				TaskType:     domain.TaskType(taskType),
				Baseline:     baseline,
				Current:      current,
				Threshold:    threshold,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(b.out, "status:    %s\n", report.Status)
			fmt.Fprintf(b.out, "baseline:  %.3f (%d labeled)\n", report.BaselineAccuracy, report.BaselineCount)
			fmt.Fprintf(b.out, "current:   %.3f (%d labeled)\n", report.CurrentAccuracy, report.CurrentCount)
			fmt.Fprintf(b.out, "drift:     %.3f (threshold %.3f)\n", report.AccuracyDrift, report.Threshold)
			if report.Insufficient != nil {
				fmt.Fprintf(b.out, "reason:    %s\n", report.Insufficient.Error())
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&model, "model", "", "model version to check")
	cmd.Flags().StringVar(&taskType, "task", "", "restrict to one task type")
	cmd.Flags().DurationVar(&window, "window", 7*24*time.Hour, "length of each comparison window")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "accuracy drop that counts as drift (default from config)")
	return cmd
}

// adjacentWindows returns [now-2w, now-w) and [now-w, now], sharing no instant.
func adjacentWindows(now time.Time, w time.Duration) (baseline, current domain.Window) {
	end := now.Add(time.Nanosecond)
	mid := end.Add(-w)
	return domain.Window{Start: mid.Add(-w), End: mid}, domain.Window{Start: mid, End: end}
}
