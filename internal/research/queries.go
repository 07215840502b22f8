package research

import (
	"context"
	"fmt"
	"strings"

	"github.com/convictionhq/conviction/internal/domain"
	"go.uber.org/zap"
)

// queryVariants asks the model for search queries around a topic and
// falls back to a deterministic set when the model is unavailable. The
// fallback covers the same angles a human analyst would open with: the
// topic itself, market size, competition, risk, and recent news.
func queryVariants(ctx context.Context, llm domain.LLMClient, logger *zap.Logger, company, sector, topic string, n int) []string {
	if n <= 0 {
		n = 5
	}
	if llm != nil {
		queries, err := llm.GenerateQueries(ctx, company, sector, topic, n)
		if err == nil && len(queries) > 0 {
			return queries
		}
		if err != nil && logger != nil {
			logger.Warn("query generation failed, using fallback variants", zap.Error(err))
		}
	}
	variants := fallbackQueryVariants(company, topic)
	if len(variants) > n {
		variants = variants[:n]
	}
	return variants
}

func fallbackQueryVariants(company, topic string) []string {
	subject := strings.TrimSpace(strings.Join([]string{company, topic}, " "))
	if subject == "" {
		return nil
	}
	return []string{
		subject,
		subject + " market size",
		subject + " competitors",
		subject + " risks",
		subject + " recent news",
	}
}

// adversarialQueryVariants builds counter-evidence searches for a
// claim. Breadth comes from the job intensity; the templates are
// ordered so a breadth of one still asks the bluntest question.
func adversarialQueryVariants(company, claim string, breadth int) []string {
	subject := strings.TrimSpace(strings.Join([]string{company, claim}, " "))
	if subject == "" {
		return nil
	}
	templates := []string{
		"%s problems",
		"evidence against %s",
		"%s lawsuit OR investigation OR decline",
		"%s bear case",
	}
	if breadth <= 0 {
		breadth = 1
	}
	if breadth > len(templates) {
		breadth = len(templates)
	}
	queries := make([]string, 0, breadth)
	for _, tmpl := range templates[:breadth] {
		queries = append(queries, fmt.Sprintf(tmpl, subject))
	}
	return queries
}
