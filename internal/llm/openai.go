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
	openAIChatURL = "https://api.openai.com/v1/chat/completions"
	chatModel     = "gpt-4o-mini"
)

type OpenAIClient struct {
	apiKey     string
	httpClient *http.Client
}

func NewOpenAIClient(apiKey string) *OpenAIClient {
	return &OpenAIClient{
		apiKey:     apiKey,
		httpClient: &http.Client{},
	}
}

// chat types for OpenAI API
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *OpenAIClient) complete(ctx context.Context, messages []chatMessage, temp float32) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:       chatModel,
		Messages:    messages,
		Temperature: temp,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, openAIChatURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read chat response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chat API returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var result chatResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("unmarshal chat response: %w", err)
	}

	if result.Error != nil {
		return "", fmt.Errorf("chat API error: %s", result.Error.Message)
	}

	if len(result.Choices) == 0 {
		return "", fmt.Errorf("chat API returned no choices")
	}

	return strings.TrimSpace(result.Choices[0].Message.Content), nil
}

func (c *OpenAIClient) DecomposeThesis(ctx context.Context, company, sector, thesis string) (*domain.ThesisDecomposition, error) {
	messages := []chatMessage{
		{Role: "user", Content: fmt.Sprintf(decomposePrompt, company, sector, thesis)},
	}

	result, err := c.complete(ctx, messages, 0.3)
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

func (c *OpenAIClient) ClassifySentiment(ctx context.Context, hypothesis, evidence string) (domain.Sentiment, error) {
	messages := []chatMessage{
		{Role: "user", Content: fmt.Sprintf(sentimentPrompt, hypothesis, evidence)},
	}

	result, err := c.complete(ctx, messages, 0)
	if err != nil {
		return domain.SentimentNeutral, nil
	}

	answer := strings.ToLower(strings.TrimSpace(result))
	if domain.ValidSentiment(answer) {
		return domain.Sentiment(answer), nil
	}
	return domain.SentimentNeutral, nil
}

func (c *OpenAIClient) AnalyzeConflict(ctx context.Context, hypothesis, evidence string) (*domain.ConflictAnalysis, error) {
	messages := []chatMessage{
		{Role: "user", Content: fmt.Sprintf(conflictPrompt, hypothesis, evidence)},
	}

	result, err := c.complete(ctx, messages, 0.2)
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

func (c *OpenAIClient) GenerateQueries(ctx context.Context, company, sector, topic string, n int) ([]string, error) {
	messages := []chatMessage{
		{Role: "user", Content: fmt.Sprintf(queriesPrompt, company, sector, topic, n)},
	}

	result, err := c.complete(ctx, messages, 0.7)
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

func (c *OpenAIClient) SummarizeComparable(ctx context.Context, company, comparable, detail string) (string, error) {
	messages := []chatMessage{
		{Role: "user", Content: fmt.Sprintf(comparablePrompt, company, comparable, detail)},
	}

	result, err := c.complete(ctx, messages, 0.3)
	if err != nil {
		return "", fmt.Errorf("summarize comparable: %w", err)
	}

	return result, nil
}

func (c *OpenAIClient) Synthesize(ctx context.Context, thesis string, findings []string, contradictions []string) (*domain.SynthesisResult, error) {
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

	messages := []chatMessage{
		{Role: "user", Content: fmt.Sprintf(synthesisPrompt, thesis, fb.String(), cb.String())},
	}

	result, err := c.complete(ctx, messages, 0.3)
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
