package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var statusFlags struct {
	results bool
}

var statusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Show a job's current state",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusFlags.results, "results", false, "Print the job's full results document")
}

func runStatus(cmd *cobra.Command, args []string) error {
	var job jobRecord
	if err := getJSON("/jobs/"+args[0], &job); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Job:        %s\n", job.ID)
	fmt.Fprintf(out, "Engagement: %s\n", job.EngagementID)
	fmt.Fprintf(out, "Kind:       %s\n", job.Kind)
	fmt.Fprintf(out, "Status:     %s\n", job.Status)
	fmt.Fprintf(out, "Progress:   %d%%\n", job.Progress)
	if job.Attempts > 1 {
		fmt.Fprintf(out, "Attempts:   %d\n", job.Attempts)
	}
	if job.ConfidenceScore != nil {
		fmt.Fprintf(out, "Confidence: %.1f / 100\n", *job.ConfidenceScore)
	}
	if job.ErrorMessage != "" {
		fmt.Fprintf(out, "Error:      %s\n", job.ErrorMessage)
	}

	if statusFlags.results && len(job.Results) > 0 {
		pretty, err := json.MarshalIndent(json.RawMessage(job.Results), "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\n%s\n", pretty)
	}
	return nil
}
