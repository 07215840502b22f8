package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var httpClient = &http.Client{Timeout: 30 * time.Second}

// apiURL joins the configured server base with an API path.
func apiURL(path string) string {
	return strings.TrimRight(rootFlags.server, "/") + "/api/v1" + path
}

// postJSON sends a JSON body and decodes the JSON response into out.
// Non-2xx responses come back as errors carrying the server's message.
func postJSON(path string, body any, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := httpClient.Post(apiURL(path), "application/json", bytes.NewReader(raw))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func getJSON(path string, out any) error {
	resp, err := httpClient.Get(apiURL(path))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out any) error {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error         string `json:"error"`
			ExistingJobID string `json:"existing_job_id,omitempty"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			if apiErr.ExistingJobID != "" {
				return fmt.Errorf("%s (existing job: %s)", apiErr.Error, apiErr.ExistingJobID)
			}
			return fmt.Errorf("%s", apiErr.Error)
		}
		return fmt.Errorf("server returned %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

// jobRecord mirrors the fields of the server's job responses the CLI
// prints.
type jobRecord struct {
	ID              string          `json:"id"`
	EngagementID    string          `json:"engagement_id"`
	Kind            string          `json:"kind"`
	Status          string          `json:"status"`
	Progress        int             `json:"progress"`
	ConfidenceScore *float32        `json:"confidence_score,omitempty"`
	ErrorMessage    string          `json:"error_message,omitempty"`
	Attempts        int             `json:"attempts"`
	Results         json.RawMessage `json:"results,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}
