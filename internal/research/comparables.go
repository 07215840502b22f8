package research

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/convictionhq/conviction/internal/domain"
	"go.uber.org/zap"
)

const (
	maxComparables      = 3
	comparableNoteLimit = 240
)

// Comparables looks for public companies whose trajectory resembles
// the target's and produces a short pattern note for each. The phase
// is advisory: a dry search degrades to an empty result, it never
// fails the run.
type Comparables struct {
	search  domain.SearchClient
	findata domain.FinDataClient
	llm     domain.LLMClient
	logger  *zap.Logger
}

func NewComparables(search domain.SearchClient, findata domain.FinDataClient, llm domain.LLMClient, logger *zap.Logger) *Comparables {
	return &Comparables{search: search, findata: findata, llm: llm, logger: logger}
}

func (c *Comparables) Kind() Kind { return KindComparablesFinder }

func (c *Comparables) Execute(ctx context.Context, in Input, rctx *Context) (*Result, error) {
	var company, sector string
	if rctx.Engagement != nil {
		company = rctx.Engagement.TargetCompanyName
		sector = rctx.Engagement.Sector
	}
	if company == "" || c.search == nil {
		return &Result{}, nil
	}

	query := company + " public comparables competitors"
	if sector != "" {
		query = fmt.Sprintf("%s comparable public companies in %s", company, sector)
	}
	results, err := c.search.Search(ctx, query, domain.SearchOpts{MaxResults: maxComparables * 2})
	if err != nil {
		c.logger.Warn("comparable search failed", zap.Error(err))
		return &Result{SearchQueries: []string{query}}, nil
	}

	seen := make(map[string]bool, len(results))
	var comps []ComparableSummary
	for _, r := range results {
		if len(comps) >= maxComparables {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := cleanTitle(r.Title)
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if seen[key] {
			continue
		}
		seen[key] = true

		comp := ComparableSummary{Name: name}
		if symbol := extractSymbol(r.Title + " " + r.Content); symbol != "" && c.findata != nil {
			f, err := c.findata.Fundamentals(ctx, symbol)
			if err != nil {
				c.logger.Warn("comparable fundamentals unavailable",
					zap.String("symbol", symbol), zap.Error(err))
			} else {
				comp.Symbol = f.Symbol
				if f.Name != "" {
					comp.Name = f.Name
				}
				comp.PERatio = f.PERatio
				comp.Growth = f.RevenueGrowth
			}
		}
		comp.Note = c.note(ctx, company, comp.Name, r.Content)
		comps = append(comps, comp)
		rctx.emit(domain.Event{
			Type: domain.EventStatusUpdate,
			Data: map[string]any{
				"kind":   "comparable_found",
				"name":   comp.Name,
				"symbol": comp.Symbol,
			},
		})
	}

	return &Result{Comparables: comps, SearchQueries: []string{query}}, nil
}

func (c *Comparables) note(ctx context.Context, company, comparable, detail string) string {
	if c.llm != nil {
		note, err := c.llm.SummarizeComparable(ctx, company, comparable, detail)
		if err == nil && strings.TrimSpace(note) != "" {
			return strings.TrimSpace(note)
		}
		if err != nil {
			c.logger.Warn("comparable summary failed", zap.Error(err))
		}
	}
	detail = strings.TrimSpace(detail)
	if len(detail) > comparableNoteLimit {
		cut := comparableNoteLimit
		for cut > 0 && !utf8.RuneStart(detail[cut]) {
			cut--
		}
		detail = detail[:cut] + "..."
	}
	return detail
}

// cleanTitle strips the site suffix a search result title usually
// carries after a separator.
func cleanTitle(title string) string {
	title = strings.TrimSpace(title)
	for _, sep := range []string{" | ", " - "} {
		if i := strings.Index(title, sep); i > 0 {
			title = title[:i]
		}
	}
	return strings.TrimSpace(title)
}

// extractSymbol pulls a ticker out of "NYSE: XYZ" style mentions.
func extractSymbol(text string) string {
	for _, prefix := range []string{"NASDAQ:", "NYSE:"} {
		idx := strings.Index(text, prefix)
		if idx < 0 {
			continue
		}
		rest := strings.TrimLeft(text[idx+len(prefix):], " ")
		if sym := leadingTicker(rest); sym != "" {
			return sym
		}
	}
	return ""
}

func leadingTicker(s string) string {
	end := 0
	for end < len(s) && end < 6 && s[end] >= 'A' && s[end] <= 'Z' {
		end++
	}
	if end < 1 || end > 5 {
		return ""
	}
	return s[:end]
}
