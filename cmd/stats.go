package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/okiro/relais/internal/api"
	"github.com/okiro/relais/internal/domain/review"
)

var (
	statsAddr string
	statsJSON bool
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show queue, reviewer, and SLA statistics",
	Long: `Show a snapshot of a running daemon: queue depth, tasks and reviewers by
state, strike incidents, recorded applications, and the dispatch counters
accumulated since the daemon started.

Examples:
  # Human-readable summary
  relais stats

  # Raw JSON for scripting
  relais stats --json | jq '.queue_depth'`,
	RunE: runStats,
}

func runStats(_ *cobra.Command, _ []string) error {
	var stats api.StatsResponse
	if err := callAPI(http.MethodGet, clientBase(statsAddr)+"/stats", nil, &stats); err != nil {
		return err
	}

	if statsJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}

	printStats(os.Stdout, stats)
	return nil
}

// printStats renders the snapshot for humans. Map iteration order is not
// stable, so rows follow the domain's own ordering.
func printStats(w io.Writer, stats api.StatsResponse) {
	fmt.Fprintf(w, "Queue depth: %d\n", stats.QueueDepth)
	fmt.Fprintf(w, "Open sessions: %d\n", stats.OpenSessions)
	fmt.Fprintf(w, "Event subscribers: %d\n", stats.Subscribers)

	fmt.Fprintln(w, "\nTasks:")
	for _, s := range []review.Status{
		review.StatusQueued, review.StatusAssigned, review.StatusInProgress,
		review.StatusCompleted, review.StatusFailed, review.StatusTimeout,
	} {
		fmt.Fprintf(w, "  %-12s %d\n", s, stats.TasksByStatus[string(s)])
	}

	fmt.Fprintln(w, "\nReviewers:")
	for _, p := range []review.Presence{
		review.PresenceAvailable, review.PresenceBusy, review.PresenceOffline,
	} {
		fmt.Fprintf(w, "  %-12s %d\n", p, stats.ReviewersByPresence[string(p)])
	}
	fmt.Fprintf(w, "  %-12s %d\n", "suspended", stats.SuspendedReviewers)

	fmt.Fprintln(w, "\nIncidents:")
	for _, k := range []review.IncidentKind{
		review.IncidentWarning, review.IncidentViolation, review.IncidentSuspension,
	} {
		fmt.Fprintf(w, "  %-12s %d\n", k, stats.IncidentsByKind[string(k)])
	}

	fmt.Fprintf(w, "\nApplications: %d total, %d auto-submitted, %d in the last 7 days\n",
		stats.Applications, stats.AutoSubmitted, stats.RecentApplications)
	if stats.AvgCompletionSeconds > 0 {
		avg := time.Duration(stats.AvgCompletionSeconds * float64(time.Second)).Round(time.Second)
		fmt.Fprintf(w, "Average review time: %s\n", avg)
	}

	uptime := time.Duration(stats.Dispatch.UptimeSeconds * float64(time.Second)).Round(time.Second)
	fmt.Fprintf(w, "\nDispatch (uptime %s): %s pre-warnings=%d\n",
		uptime, stats.Dispatch.FormatSummary(), stats.Dispatch.DeadlineWarnings)
}

func init() {
	statsCmd.Flags().StringVar(&statsAddr, "addr", "", "Daemon address (overrides config)")
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "Print the raw JSON snapshot")
	rootCmd.AddCommand(statsCmd)
}
