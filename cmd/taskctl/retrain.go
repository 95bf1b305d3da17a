package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cd3331/pm-document-intelligence-sub000/internal/feedback"
)

func newRetrainCmd(b *backends) *cobra.Command {
	var top int

	cmd := &cobra.Command{
		Use:   "retrain",
		Short: "Report whether recent feedback warrants retraining",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, closeFn, err := b.openStore(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			svc := feedback.NewService(s, s, b.events, feedback.Config{
				NegativeRateThreshold: b.cfg.Feedback.NegativeRateThreshold,
				MinEvents:             b.cfg.Feedback.MinEvents,
				Window:                b.cfg.Feedback.Window,
			}).WithClock(b.now)

			rec, err := svc.Recommendation(ctx)
			if err != nil {
				return err
			}

			fmt.Fprintf(b.out, "should retrain: %t\n", rec.ShouldRetrain)
			fmt.Fprintf(b.out, "events:         %d\n", rec.Events)
			fmt.Fprintf(b.out, "negative rate:  %.3f\n", rec.NegativeRate)
			for _, reason := range rec.Reasons {
				fmt.Fprintf(b.out, "  - %s\n", reason)
			}

			opps := rec.Opportunities
			if top > 0 && len(opps) > top {
				opps = opps[:top]
			}
			if len(opps) == 0 {
				return nil
			}

			fmt.Fprintln(b.out)
			w := tabwriter.NewWriter(b.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ISSUE\tTASK\tFREQUENCY\tNEGATIVES\tSCORE")
			for _, o := range opps {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%.2f\n", o.Issue, o.TaskType, o.Frequency, o.Negatives, o.Score)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&top, "top", 10, "number of improvement opportunities to list (0 for all)")
	return cmd
}
