package findata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/convictionhq/conviction/internal/domain"
)

const alphaVantageBaseURL = "https://www.alphavantage.co/query"

type AlphaVantageClient struct {
	apiKey     string
	httpClient *http.Client
}

func NewAlphaVantageClient(apiKey string) *AlphaVantageClient {
	return &AlphaVantageClient{
		apiKey:     apiKey,
		httpClient: &http.Client{},
	}
}

// Alpha Vantage returns every numeric field as a string, flags rate
// limiting in a "Note" field, and bad calls in "Error Message", all
// with HTTP 200. The envelope carries both so one check covers them.
type avEnvelope struct {
	Note         string `json:"Note"`
	Information  string `json:"Information"`
	ErrorMessage string `json:"Error Message"`
}

func (c *AlphaVantageClient) get(ctx context.Context, params url.Values, out any) error {
	params.Set("apikey", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, alphaVantageBaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create findata request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("findata request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read findata response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("findata API returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var envelope avEnvelope
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return fmt.Errorf("unmarshal findata response: %w", err)
	}
	if envelope.ErrorMessage != "" {
		return fmt.Errorf("findata API error: %s", envelope.ErrorMessage)
	}
	if envelope.Note != "" {
		return fmt.Errorf("findata API rate limited: %s", envelope.Note)
	}
	if envelope.Information != "" {
		return fmt.Errorf("findata API error: %s", envelope.Information)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshal findata response: %w", err)
	}
	return nil
}

type globalQuoteResponse struct {
	GlobalQuote struct {
		Symbol        string `json:"01. symbol"`
		Price         string `json:"05. price"`
		Volume        string `json:"06. volume"`
		LatestDay     string `json:"07. latest trading day"`
		ChangePercent string `json:"10. change percent"`
	} `json:"Global Quote"`
}

func (c *AlphaVantageClient) Quote(ctx context.Context, symbol string) (*domain.Quote, error) {
	params := url.Values{}
	params.Set("function", "GLOBAL_QUOTE")
	params.Set("symbol", symbol)

	var result globalQuoteResponse
	if err := c.get(ctx, params, &result); err != nil {
		return nil, fmt.Errorf("quote %s: %w", symbol, err)
	}

	q := result.GlobalQuote
	if q.Symbol == "" {
		return nil, fmt.Errorf("quote %s: no data returned", symbol)
	}

	quote := &domain.Quote{
		Symbol:        q.Symbol,
		Price:         avFloat(q.Price),
		ChangePercent: avPercent(q.ChangePercent),
		Volume:        avInt(q.Volume),
		AsOf:          time.Now(),
	}
	if day, err := time.Parse("2006-01-02", q.LatestDay); err == nil {
		quote.AsOf = day
	}

	return quote, nil
}

type overviewResponse struct {
	Symbol                    string `json:"Symbol"`
	Name                      string `json:"Name"`
	Sector                    string `json:"Sector"`
	Description               string `json:"Description"`
	MarketCapitalization      string `json:"MarketCapitalization"`
	PERatio                   string `json:"PERatio"`
	QuarterlyRevenueGrowthYOY string `json:"QuarterlyRevenueGrowthYOY"`
	ProfitMargin              string `json:"ProfitMargin"`
}

func (c *AlphaVantageClient) Fundamentals(ctx context.Context, symbol string) (*domain.Fundamentals, error) {
	params := url.Values{}
	params.Set("function", "OVERVIEW")
	params.Set("symbol", symbol)

	var result overviewResponse
	if err := c.get(ctx, params, &result); err != nil {
		return nil, fmt.Errorf("fundamentals %s: %w", symbol, err)
	}

	if result.Symbol == "" {
		return nil, fmt.Errorf("fundamentals %s: no data returned", symbol)
	}

	return &domain.Fundamentals{
		Symbol:        result.Symbol,
		Name:          result.Name,
		Sector:        result.Sector,
		MarketCap:     avFloat(result.MarketCapitalization),
		PERatio:       avFloat(result.PERatio),
		RevenueGrowth: avFloat(result.QuarterlyRevenueGrowthYOY),
		ProfitMargin:  avFloat(result.ProfitMargin),
		Description:   result.Description,
	}, nil
}

type newsSentimentResponse struct {
	Feed []struct {
		Title                 string  `json:"title"`
		URL                   string  `json:"url"`
		Summary               string  `json:"summary"`
		Source                string  `json:"source"`
		TimePublished         string  `json:"time_published"`
		OverallSentimentScore float64 `json:"overall_sentiment_score"`
	} `json:"feed"`
}

func (c *AlphaVantageClient) News(ctx context.Context, topic string, limit int) ([]domain.NewsItem, error) {
	params := url.Values{}
	params.Set("function", "NEWS_SENTIMENT")
	if looksLikeTicker(topic) {
		params.Set("tickers", topic)
	} else {
		params.Set("topics", topic)
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var result newsSentimentResponse
	if err := c.get(ctx, params, &result); err != nil {
		return nil, fmt.Errorf("news %s: %w", topic, err)
	}

	items := make([]domain.NewsItem, 0, len(result.Feed))
	for _, f := range result.Feed {
		item := domain.NewsItem{
			Title:          f.Title,
			URL:            f.URL,
			Summary:        f.Summary,
			Source:         f.Source,
			SentimentScore: f.OverallSentimentScore,
		}
		if ts, err := time.Parse("20060102T150405", f.TimePublished); err == nil {
			item.PublishedAt = ts
		}
		items = append(items, item)
		if limit > 0 && len(items) >= limit {
			break
		}
	}

	return items, nil
}

// looksLikeTicker distinguishes "NVDA" from "semiconductor supply".
func looksLikeTicker(s string) bool {
	if len(s) == 0 || len(s) > 6 || strings.ContainsAny(s, " \t") {
		return false
	}
	return strings.ToUpper(s) == s
}

// avFloat parses Alpha Vantage's stringly-typed numbers, treating
// "None" and malformed values as zero rather than failing the call.
func avFloat(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}

func avInt(s string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func avPercent(s string) float64 {
	return avFloat(strings.TrimSuffix(strings.TrimSpace(s), "%"))
}
