package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch <job-id>",
	Short: "Stream a job's progress events until it finishes",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	// No client timeout: the stream stays open for the whole run.
	streamClient := &http.Client{}
	resp, err := streamClient.Get(apiURL("/jobs/" + args[0] + "/events"))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return decodeResponse(resp, nil)
	}

	out := cmd.OutOrStdout()
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		var evt struct {
			Type      string         `json:"type"`
			Timestamp time.Time      `json:"timestamp"`
			Data      map[string]any `json:"data"`
		}
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &evt); err != nil {
			continue
		}
		printEvent(out, evt.Type, evt.Timestamp, evt.Data)
		if evt.Type == "completed" || evt.Type == "error" {
			return nil
		}
	}
	return scanner.Err()
}

func printEvent(out io.Writer, eventType string, ts time.Time, data map[string]any) {
	stamp := ts.Local().Format("15:04:05")
	switch eventType {
	case "phase_start":
		fmt.Fprintf(out, "%s  ▶ %v\n", stamp, data["phase"])
	case "phase_complete":
		fmt.Fprintf(out, "%s  ✓ %v %s\n", stamp, data["phase"], countsSuffix(data))
	case "hypothesis_generated":
		fmt.Fprintf(out, "%s    hypothesis: %v\n", stamp, data["content"])
	case "evidence_found":
		fmt.Fprintf(out, "%s    evidence: %v (%v)\n", stamp, data["title"], data["sentiment"])
	case "contradiction_detected":
		fmt.Fprintf(out, "%s    contradiction [%v]: %v\n", stamp, data["severity"], data["description"])
	case "completed":
		fmt.Fprintf(out, "%s  job completed, confidence %v\n", stamp, data["confidence_score"])
	case "error":
		fmt.Fprintf(out, "%s  job failed: %v\n", stamp, data["message"])
	default:
		if progress, ok := data["progress"]; ok {
			fmt.Fprintf(out, "%s    progress %v%%\n", stamp, progress)
		}
	}
}

// countsSuffix renders a phase's reported counts, skipping the phase
// name itself.
func countsSuffix(data map[string]any) string {
	var parts []string
	for k, v := range data {
		if k == "phase" || k == "kind" {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	if len(parts) == 0 {
		return ""
	}
	return "(" + strings.Join(parts, " ") + ")"
}
