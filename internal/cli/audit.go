package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/usherbot/usherbot/internal/config"
	"github.com/usherbot/usherbot/internal/timeline"
)

var (
	auditKind    string
	auditSubject string
	auditTrace   string
	auditSince   time.Duration
	auditLimit   int
	auditSummary bool
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show recorded mode changes, admissions and commands",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		timeSvc, err := timeline.NewTimelineService(cfg.Paths.AuditDB)
		if err != nil {
			return fmt.Errorf("audit db: %w", err)
		}
		defer timeSvc.Close()

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		if auditSummary {
			counts, err := timeSvc.CountByKind()
			if err != nil {
				return err
			}
			fmt.Fprintln(w, "KIND\tCOUNT")
			for _, c := range counts {
				fmt.Fprintf(w, "%s\t%d\n", c.Kind, c.Count)
			}
			return w.Flush()
		}

		filter := timeline.FilterArgs{
			Kind:    auditKind,
			Subject: auditSubject,
			TraceID: auditTrace,
			Limit:   auditLimit,
		}
		if auditSince > 0 {
			start := time.Now().Add(-auditSince)
			filter.StartDate = &start
		}
		events, err := timeSvc.GetEvents(filter)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, "TIME\tKIND\tSUBJECT\tTEXT")
		for _, e := range events {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Timestamp.Local().Format(time.DateTime), e.Kind, e.Subject, e.Text)
		}
		return w.Flush()
	},
}

func init() {
	auditCmd.Flags().StringVar(&auditKind, "kind", "", "Only show this kind (mode, admission, promotion, remote, lifecycle, command)")
	auditCmd.Flags().StringVar(&auditSubject, "subject", "", "Only show this subject")
	auditCmd.Flags().StringVar(&auditTrace, "trace", "", "Only show this trace id")
	auditCmd.Flags().DurationVar(&auditSince, "since", 0, "Only show events newer than this")
	auditCmd.Flags().IntVar(&auditLimit, "limit", 50, "Maximum number of events")
	auditCmd.Flags().BoolVar(&auditSummary, "summary", false, "Show counts per kind instead of events")
}
