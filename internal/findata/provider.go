package findata

import (
	"fmt"

	"github.com/convictionhq/conviction/internal/domain"
)

// Provider constants
const (
	ProviderAlphaVantage = "alphavantage"
	ProviderMock         = "mock"
)

// NewClient creates a financial data client based on the provider name.
// Returns an error if the provider is unknown or the API key is empty (except for mock).
func NewClient(provider, apiKey string) (domain.FinDataClient, error) {
	switch provider {
	case ProviderAlphaVantage:
		if apiKey == "" {
			return nil, fmt.Errorf("ALPHAVANTAGE_API_KEY is required for Alpha Vantage provider")
		}
		return NewAlphaVantageClient(apiKey), nil

	case ProviderMock:
		return NewMockClient(), nil

	default:
		return nil, fmt.Errorf("unknown findata provider: %s (valid options: alphavantage, mock)", provider)
	}
}
