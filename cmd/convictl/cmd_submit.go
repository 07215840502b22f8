package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var submitFlags struct {
	engagement string
	stress     bool
	thesis     string
	intensity  string
	maxResults int
	sources    []string
}

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a research or stress-test job for an engagement",
	RunE:  runSubmit,
}

func init() {
	f := submitCmd.Flags()
	f.StringVar(&submitFlags.engagement, "engagement", "", "Engagement ID (required)")
	f.BoolVar(&submitFlags.stress, "stress", false, "Run a stress test instead of a research workflow")
	f.StringVar(&submitFlags.thesis, "thesis", "", "Thesis statement (defaults to the engagement's summary)")
	f.StringVar(&submitFlags.intensity, "intensity", "", "Stress intensity: light, moderate or aggressive")
	f.IntVar(&submitFlags.maxResults, "max-results", 0, "Per-gather result cap")
	f.StringSliceVar(&submitFlags.sources, "sources", nil, "Source classes to gather from (web, corpus, market, findata)")

	_ = submitCmd.MarkFlagRequired("engagement")
}

func runSubmit(cmd *cobra.Command, _ []string) error {
	path := fmt.Sprintf("/engagements/%s/research", submitFlags.engagement)
	if submitFlags.stress {
		path = fmt.Sprintf("/engagements/%s/stress-tests", submitFlags.engagement)
	}

	body := map[string]any{}
	if submitFlags.thesis != "" {
		body["thesis"] = submitFlags.thesis
	}
	if submitFlags.intensity != "" {
		body["intensity"] = submitFlags.intensity
	}
	if submitFlags.maxResults > 0 {
		body["max_results"] = submitFlags.maxResults
	}
	if len(submitFlags.sources) > 0 {
		body["sources"] = submitFlags.sources
	}

	var job jobRecord
	if err := postJSON(path, body, &job); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Job:    %s\n", job.ID)
	fmt.Fprintf(out, "Kind:   %s\n", job.Kind)
	fmt.Fprintf(out, "Status: %s\n", job.Status)
	fmt.Fprintf(out, "\nWatch it with: convictl watch %s\n", job.ID)
	return nil
}
