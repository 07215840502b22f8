package findata

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/convictionhq/conviction/internal/domain"
)

// MockClient is a configurable financial data client for testing. Set
// the response fields to control what each method returns; unset
// fields fall back to plausible canned data derived from the symbol.
type MockClient struct {
	QuoteResponse        *domain.Quote
	QuoteError           error
	FundamentalsResponse *domain.Fundamentals
	FundamentalsError    error
	NewsResponse         []domain.NewsItem
	NewsError            error

	// Call tracking for assertions
	QuoteCalls        []string
	FundamentalsCalls []string
	NewsCalls         []string
}

func NewMockClient() *MockClient {
	return &MockClient{}
}

func (c *MockClient) Quote(ctx context.Context, symbol string) (*domain.Quote, error) {
	c.QuoteCalls = append(c.QuoteCalls, symbol)
	if c.QuoteError != nil {
		return nil, c.QuoteError
	}
	if c.QuoteResponse != nil {
		return c.QuoteResponse, nil
	}
	return &domain.Quote{
		Symbol:        strings.ToUpper(symbol),
		Price:         142.50,
		ChangePercent: 1.8,
		Volume:        3_200_000,
		AsOf:          time.Now(),
	}, nil
}

func (c *MockClient) Fundamentals(ctx context.Context, symbol string) (*domain.Fundamentals, error) {
	c.FundamentalsCalls = append(c.FundamentalsCalls, symbol)
	if c.FundamentalsError != nil {
		return nil, c.FundamentalsError
	}
	if c.FundamentalsResponse != nil {
		return c.FundamentalsResponse, nil
	}
	return &domain.Fundamentals{
		Symbol:        strings.ToUpper(symbol),
		Name:          strings.ToUpper(symbol) + " Corp",
		Sector:        "Technology",
		MarketCap:     18_500_000_000,
		PERatio:       24.3,
		RevenueGrowth: 0.22,
		ProfitMargin:  0.14,
		Description:   fmt.Sprintf("%s Corp designs and sells infrastructure software.", strings.ToUpper(symbol)),
	}, nil
}

func (c *MockClient) News(ctx context.Context, topic string, limit int) ([]domain.NewsItem, error) {
	c.NewsCalls = append(c.NewsCalls, topic)
	if c.NewsError != nil {
		return nil, c.NewsError
	}
	if c.NewsResponse != nil {
		items := c.NewsResponse
		if limit > 0 && len(items) > limit {
			items = items[:limit]
		}
		return items, nil
	}

	items := []domain.NewsItem{
		{
			Title:          fmt.Sprintf("%s beats estimates on record subscription growth", topic),
			URL:            "https://news.example.com/" + strings.Join(strings.Fields(strings.ToLower(topic)), "-") + "-q3",
			Summary:        fmt.Sprintf("Quarterly results for %s came in ahead of consensus, driven by subscription expansion.", topic),
			Source:         "Benzinga",
			SentimentScore: 0.6,
			PublishedAt:    time.Now().AddDate(0, 0, -2),
		},
		{
			Title:          fmt.Sprintf("Analysts flag churn risk for %s as renewals slow", topic),
			URL:            "https://news.example.com/" + strings.Join(strings.Fields(strings.ToLower(topic)), "-") + "-churn",
			Summary:        fmt.Sprintf("Renewal rates for %s slipped quarter over quarter, a potential headwind for the growth story.", topic),
			Source:         "MarketWatch",
			SentimentScore: -0.4,
			PublishedAt:    time.Now().AddDate(0, 0, -9),
		},
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}
