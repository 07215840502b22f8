package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/convictionhq/conviction/internal/domain"
)

const (
	geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.0-flash:generateContent"
)

type GeminiClient struct {
	apiKey     string
	httpClient *http.Client
}

func NewGeminiClient(apiKey string) *GeminiClient {
	return &GeminiClient{
		apiKey:     apiKey,
		httpClient: &http.Client{},
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
	Role  string       `json:"role,omitempty"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

func (c *GeminiClient) complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{
			{
				Parts: []geminiPart{{Text: prompt}},
				Role:  "user",
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal gemini request: %w", err)
	}

	url := fmt.Sprintf("%s?key=%s", geminiBaseURL, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create gemini request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read gemini response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gemini API returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var result geminiResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("unmarshal gemini response: %w", err)
	}

	if result.Error != nil {
		return "", fmt.Errorf("gemini API error: %s", result.Error.Message)
	}

	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini API returned no content")
	}

	return strings.TrimSpace(result.Candidates[0].Content.Parts[0].Text), nil
}

func (c *GeminiClient) DecomposeThesis(ctx context.Context, company, sector, thesis string) (*domain.ThesisDecomposition, error) {
	result, err := c.complete(ctx, fmt.Sprintf(decomposePrompt, company, sector, thesis))
	if err != nil {
		return nil, fmt.Errorf("decompose thesis: %w", err)
	}

	// Strip markdown fences if present
	result = strings.TrimPrefix(result, "```json")
	result = strings.TrimPrefix(result, "```")
	result = strings.TrimSuffix(result, "```")
	result = strings.TrimSpace(result)

	var decomp domain.ThesisDecomposition
	if err := json.Unmarshal([]byte(result), &decomp); err != nil {
		return nil, fmt.Errorf("parse decomposition result: %w (raw: %s)", err, result)
	}

	if len(decomp.SubTheses) == 0 {
		return nil, fmt.Errorf("decomposition returned no sub-theses")
	}

	if decomp.RootStatement == "" {
		decomp.RootStatement = thesis
	}
	for i := range decomp.SubTheses {
		if decomp.SubTheses[i].Importance <= 0 {
			decomp.SubTheses[i].Importance = 0.5
		}
		if decomp.SubTheses[i].Testability <= 0 {
			decomp.SubTheses[i].Testability = 0.5
		}
	}

	return &decomp, nil
}

func (c *GeminiClient) ClassifySentiment(ctx context.Context, hypothesis, evidence string) (domain.Sentiment, error) {
	result, err := c.complete(ctx, fmt.Sprintf(sentimentPrompt, hypothesis, evidence))
	if err != nil {
		return domain.SentimentNeutral, nil
	}

	answer := strings.ToLower(strings.TrimSpace(result))
	if domain.ValidSentiment(answer) {
		return domain.Sentiment(answer), nil
	}
	return domain.SentimentNeutral, nil
}

func (c *GeminiClient) AnalyzeConflict(ctx context.Context, hypothesis, evidence string) (*domain.ConflictAnalysis, error) {
	result, err := c.complete(ctx, fmt.Sprintf(conflictPrompt, hypothesis, evidence))
	if err != nil {
		return nil, fmt.Errorf("analyze conflict: %w", err)
	}

	result = strings.TrimPrefix(result, "```json")
	result = strings.TrimPrefix(result, "```")
	result = strings.TrimSuffix(result, "```")
	result = strings.TrimSpace(result)

	var analysis domain.ConflictAnalysis
	if err := json.Unmarshal([]byte(result), &analysis); err != nil {
		return nil, fmt.Errorf("parse conflict result: %w (raw: %s)", err, result)
	}

	if !domain.ValidSeverity(string(analysis.Severity)) {
		analysis.Severity = domain.SeverityMedium
	}

	return &analysis, nil
}

func (c *GeminiClient) GenerateQueries(ctx context.Context, company, sector, topic string, n int) ([]string, error) {
	result, err := c.complete(ctx, fmt.Sprintf(queriesPrompt, company, sector, topic, n))
	if err != nil {
		return nil, fmt.Errorf("generate queries: %w", err)
	}

	// Strip markdown fences if present
	result = strings.TrimPrefix(result, "```json")
	result = strings.TrimPrefix(result, "```")
	result = strings.TrimSuffix(result, "```")
	result = strings.TrimSpace(result)

	var queries []string
	if err := json.Unmarshal([]byte(result), &queries); err != nil {
		return nil, fmt.Errorf("parse queries result: %w (raw: %s)", err, result)
	}

	out := queries[:0]
	for _, q := range queries {
		if q = strings.TrimSpace(q); q != "" {
			out = append(out, q)
		}
	}
	if len(out) > n {
		out = out[:n]
	}

	return out, nil
}

func (c *GeminiClient) SummarizeComparable(ctx context.Context, company, comparable, detail string) (string, error) {
	result, err := c.complete(ctx, fmt.Sprintf(comparablePrompt, company, comparable, detail))
	if err != nil {
		return "", fmt.Errorf("summarize comparable: %w", err)
	}

	return result, nil
}

func (c *GeminiClient) Synthesize(ctx context.Context, thesis string, findings []string, contradictions []string) (*domain.SynthesisResult, error) {
	var fb strings.Builder
	for i, f := range findings {
		fb.WriteString(fmt.Sprintf("%d. %s\n", i+1, f))
	}

	var cb strings.Builder
	if len(contradictions) == 0 {
		cb.WriteString("none\n")
	}
	for i, cn := range contradictions {
		cb.WriteString(fmt.Sprintf("%d. %s\n", i+1, cn))
	}

	result, err := c.complete(ctx, fmt.Sprintf(synthesisPrompt, thesis, fb.String(), cb.String()))
	if err != nil {
		return nil, fmt.Errorf("synthesize: %w", err)
	}

	// Strip markdown fences if present
	result = strings.TrimPrefix(result, "```json")
	result = strings.TrimPrefix(result, "```")
	result = strings.TrimSuffix(result, "```")
	result = strings.TrimSpace(result)

	var synthesis domain.SynthesisResult
	if err := json.Unmarshal([]byte(result), &synthesis); err != nil {
		return nil, fmt.Errorf("parse synthesis result: %w (raw: %s)", err, result)
	}

	if synthesis.Confidence < 0 {
		synthesis.Confidence = 0
	}
	if synthesis.Confidence > 1 {
		synthesis.Confidence = 1
	}

	return &synthesis, nil
}
