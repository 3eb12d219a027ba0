package cmd

import (
	"encoding/json"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/okiro/relais/internal/api"
)

var (
	enqueueAddr        string
	enqueueCandidate   string
	enqueueJob         string
	enqueueScore       float64
	enqueueResumeURL   string
	enqueueKeywords    []string
	enqueueSuggestions []string
	enqueueNotes       string
)

var enqueueCmd = &cobra.Command{
	Use:   "enqueue",
	Short: "Queue a resume for human review",
	Long: `Queue a borderline resume on a running daemon so a reviewer picks it up.

Required inputs:
  --candidate: Candidate identifier, e.g., "cand-42"
  --job: Job posting identifier, e.g., "job-backend-7"

Optional scorer context travels with the task so the reviewer sees what the
ATS saw: the score, the stored resume, the keywords it missed, rewrite
suggestions, and free-form notes.

Output:
  JSON with the new task ID.

Examples:
  # Queue a review with scorer context
  relais enqueue --candidate cand-42 --job job-backend-7 -s 0.71 \
    -k kubernetes -k terraform --suggestion "Lead with the migration project"

  # Parse the task ID with jq
  relais enqueue --candidate cand-42 --job job-backend-7 -s 0.71 | jq -r '.task_id'`,
	RunE: runEnqueue,
}

func runEnqueue(cmd *cobra.Command, _ []string) error {
	// Validate required flags
	if enqueueCandidate == "" {
		return cmd.Help()
	}
	if enqueueJob == "" {
		return cmd.Help()
	}

	req := api.EnqueueTaskRequest{
		CandidateID:     enqueueCandidate,
		JobID:           enqueueJob,
		ATSScore:        enqueueScore,
		OldResumeURL:    enqueueResumeURL,
		MissingKeywords: enqueueKeywords,
		Suggestions:     enqueueSuggestions,
		Notes:           enqueueNotes,
	}

	var resp api.EnqueueTaskResponse
	if err := callAPI(http.MethodPost, clientBase(enqueueAddr)+"/tasks", req, &resp); err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

func init() {
	enqueueCmd.Flags().StringVar(&enqueueAddr, "addr", "", "Daemon address (overrides config)")
	enqueueCmd.Flags().StringVar(&enqueueCandidate, "candidate", "", "Candidate ID (required)")
	enqueueCmd.Flags().StringVar(&enqueueJob, "job", "", "Job posting ID (required)")
	enqueueCmd.Flags().Float64VarP(&enqueueScore, "score", "s", 0, "ATS score in [0, 1)")
	enqueueCmd.Flags().StringVar(&enqueueResumeURL, "resume", "", "URL of the scored resume")
	enqueueCmd.Flags().StringArrayVarP(&enqueueKeywords, "keyword", "k", nil, "Keyword the resume is missing (repeatable)")
	enqueueCmd.Flags().StringArrayVar(&enqueueSuggestions, "suggestion", nil, "Rewrite suggestion for the reviewer (repeatable)")
	enqueueCmd.Flags().StringVar(&enqueueNotes, "notes", "", "Free-form notes for the reviewer")
	rootCmd.AddCommand(enqueueCmd)
}
