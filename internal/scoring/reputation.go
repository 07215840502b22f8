package scoring

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// defaultReputation is the built-in host reputation table. Values are
// additive credibility adjustments keyed by lowercase hostname.
func defaultReputation() map[string]float32 {
	return map[string]float32{
		"sec.gov":            0.08,
		"edgar.sec.gov":      0.08,
		"ft.com":             0.06,
		"wsj.com":            0.06,
		"bloomberg.com":      0.06,
		"reuters.com":        0.06,
		"economist.com":      0.05,
		"spglobal.com":       0.05,
		"moodys.com":         0.05,
		"fitchratings.com":   0.05,
		"seekingalpha.com":   -0.05,
		"reddit.com":         -0.10,
		"twitter.com":        -0.08,
		"x.com":              -0.08,
		"stocktwits.com":     -0.10,
		"wallstreetbets.com": -0.12,
	}
}

// LoadReputation reads host reputation overrides from a YAML file of
// the form `host: adjustment`. A missing path returns an empty map so
// the built-in table applies unchanged.
func LoadReputation(path string) (map[string]float32, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read reputation file: %w", err)
	}

	overrides := make(map[string]float32)
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("parse reputation file: %w", err)
	}
	return overrides, nil
}
