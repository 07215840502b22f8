package research

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/convictionhq/conviction/internal/domain"
	"github.com/convictionhq/conviction/internal/scoring"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultMaxResults = 5

	// minClassifyLen gates sentiment classification. Content shorter
	// than this carries too little signal to judge and stays neutral.
	minClassifyLen = 80

	// defaultSourceTimeout bounds one source class's collection. A slow
	// provider loses its slot; it never stalls the gather.
	defaultSourceTimeout = 20 * time.Second

	// maxSourceFanOut caps concurrent source-class collections.
	maxSourceFanOut = 4

	// newsSentimentCutoff is the provider score magnitude beyond which
	// a pre-scored news feed's own reading is trusted without a model
	// round trip.
	newsSentimentCutoff = 0.25
)

// Gatherer collects evidence for a query across the enabled source
// classes, scores and classifies each item, links it to the target
// hypotheses, persists it, and folds the batch into hypothesis
// confidence. Source classes run concurrently and fail independently:
// one provider being down degrades the gather, it never fails it.
type Gatherer struct {
	search   domain.SearchClient
	findata  domain.FinDataClient
	llm      domain.LLMClient
	embedder domain.EmbeddingClient
	scorer   *scoring.Scorer
	updater  *Updater
	logger   *zap.Logger

	// SourceTimeout overrides the per-source-class deadline when set.
	SourceTimeout time.Duration
}

func NewGatherer(
	search domain.SearchClient,
	findata domain.FinDataClient,
	llm domain.LLMClient,
	embedder domain.EmbeddingClient,
	scorer *scoring.Scorer,
	updater *Updater,
	logger *zap.Logger,
) *Gatherer {
	return &Gatherer{
		search:   search,
		findata:  findata,
		llm:      llm,
		embedder: embedder,
		scorer:   scorer,
		updater:  updater,
		logger:   logger,
	}
}

func (g *Gatherer) Kind() Kind { return KindEvidenceGatherer }

// rawItem is an unscored candidate collected from one source class.
type rawItem struct {
	class       domain.SourceClass
	sourceType  domain.SourceType
	identity    string // dedupe key: URL, symbol+feed, or content hash
	content     string
	url         string
	title       string
	publishedAt *time.Time
	tags        []string

	// providerSentiment carries a pre-scored feed's own reading.
	providerSentiment *float64
	// persisted marks a corpus hit that is already stored; it is linked
	// and weighed but never re-persisted.
	persisted *domain.Evidence
}

func (g *Gatherer) Execute(ctx context.Context, in Input, rctx *Context) (*Result, error) {
	topic := strings.TrimSpace(in.Query)
	if topic == "" {
		topic = strings.TrimSpace(in.Thesis)
	}
	if topic == "" && len(in.Queries) == 0 {
		return nil, &ValidationError{Field: "query", Reason: "a query or thesis is required"}
	}

	maxResults := in.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	sources := in.Sources
	if len(sources) == 0 {
		sources = domain.AllSourceClasses()
	}

	var company, sector, ticker string
	if rctx.Engagement != nil {
		company = rctx.Engagement.TargetCompanyName
		sector = rctx.Engagement.Sector
		ticker = rctx.Engagement.TickerSymbol
	}

	targets, targetEmbeddings, err := g.loadTargets(ctx, rctx, in.HypothesisIDs)
	if err != nil {
		return nil, err
	}
	// Sentiment is judged against the hypothesis under test when there
	// is one, otherwise against the research topic itself.
	framing := topic
	if len(targets) > 0 {
		framing = targets[0].Content
	}

	queries := in.Queries
	if len(queries) == 0 {
		queries = queryVariants(ctx, g.llm, g.logger, company, sector, topic, 5)
	}

	raw, err := g.fanOut(ctx, sources, queries, topic, company, ticker, maxResults, rctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(raw))
	summary := make(map[string]int)
	batches := make(map[uuid.UUID][]WeightedSentiment, len(targets))
	var kept []domain.Evidence

	for _, item := range raw {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		key := item.identity
		if key == "" {
			key = domain.HashContent(item.content)
		}
		if seen[key] {
			summary["duplicates"]++
			continue
		}
		seen[key] = true

		credibility := g.credibilityFor(item)
		if credibility < in.MinCredibility {
			summary["skipped_low_credibility"]++
			continue
		}

		sentiment := g.classify(ctx, framing, item)
		embedding := g.embeddingFor(ctx, item)
		relevance := relevanceFor(targets, targetEmbeddings, embedding)

		stored, isNew, err := g.persist(ctx, rctx, item, credibility, sentiment, relevance, embedding)
		if err != nil {
			return nil, err
		}
		if !isNew && item.persisted == nil {
			summary["duplicates"]++
			kept = append(kept, *stored)
			continue
		}

		kept = append(kept, *stored)
		summary[string(item.class)]++
		for _, h := range targets {
			batches[h.ID] = append(batches[h.ID], WeightedSentiment{Sentiment: sentiment, Weight: credibility})
		}
		rctx.emit(domain.Event{
			Type: domain.EventEvidenceFound,
			Data: map[string]any{
				"evidence_id": stored.ID.String(),
				"title":       stored.Source.Title,
				"source_type": string(stored.Source.Type),
				"class":       string(item.class),
				"credibility": credibility,
				"sentiment":   string(sentiment),
			},
		})
	}

	for _, h := range targets {
		upd, changed, err := g.updater.Apply(ctx, h.ID, batches[h.ID])
		if err != nil {
			return nil, &PersistError{Op: "update confidence", Err: err}
		}
		if !changed {
			continue
		}
		rctx.emit(domain.Event{
			Type: domain.EventStatusUpdate,
			Data: map[string]any{
				"kind":                "hypothesis_updated",
				"hypothesis_id":       upd.HypothesisID.String(),
				"confidence":          upd.NewConfidence,
				"previous_confidence": upd.OldConfidence,
				"status":              string(upd.NewStatus),
				"previous_status":     string(upd.OldStatus),
			},
		})
	}

	return &Result{
		Evidence:      kept,
		SearchQueries: queries,
		SourceSummary: summary,
	}, nil
}

// loadTargets resolves the hypotheses a gather is testing, plus their
// stored embeddings for relevance linking. A hypothesis without an
// embedding still participates at the default relevance.
func (g *Gatherer) loadTargets(ctx context.Context, rctx *Context, ids []uuid.UUID) ([]domain.Hypothesis, map[uuid.UUID][]float32, error) {
	if len(ids) == 0 {
		return nil, nil, nil
	}
	targets, err := rctx.Hypotheses.ListByIDs(ctx, ids)
	if err != nil {
		return nil, nil, &PersistError{Op: "load hypotheses", Err: err}
	}
	embeddings := make(map[uuid.UUID][]float32, len(targets))
	for _, h := range targets {
		emb, err := rctx.Hypotheses.GetEmbedding(ctx, h.ID)
		if err != nil {
			g.logger.Warn("hypothesis embedding unavailable",
				zap.String("hypothesis_id", h.ID.String()), zap.Error(err))
			continue
		}
		if emb != nil {
			embeddings[h.ID] = emb
		}
	}
	return targets, embeddings, nil
}

// fanOut collects from every enabled source class concurrently. Each
// class gets its own deadline, and a failing class is logged and
// dropped rather than failing the gather.
func (g *Gatherer) fanOut(ctx context.Context, sources []domain.SourceClass, queries []string, topic, company, ticker string, maxResults int, rctx *Context) ([]rawItem, error) {
	var (
		mu  sync.Mutex
		raw []rawItem
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(maxSourceFanOut)
	for _, class := range sources {
		eg.Go(func() error {
			srcCtx, cancel := context.WithTimeout(egCtx, g.sourceTimeout())
			defer cancel()
			items, err := g.collect(srcCtx, class, queries, topic, company, ticker, maxResults, rctx)
			if err != nil {
				g.logger.Warn("source class skipped", zap.String("class", string(class)), zap.Error(err))
				return nil
			}
			mu.Lock()
			raw = append(raw, items...)
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return raw, nil
}

func (g *Gatherer) sourceTimeout() time.Duration {
	if g.SourceTimeout > 0 {
		return g.SourceTimeout
	}
	return defaultSourceTimeout
}

func (g *Gatherer) collect(ctx context.Context, class domain.SourceClass, queries []string, topic, company, ticker string, maxResults int, rctx *Context) ([]rawItem, error) {
	var (
		items []rawItem
		err   error
	)
	switch class {
	case domain.ClassWeb:
		items, err = g.collectWeb(ctx, queries, maxResults)
	case domain.ClassCorpus:
		items, err = g.collectCorpus(ctx, topic, maxResults, rctx)
	case domain.ClassMarket:
		items, err = g.collectMarket(ctx, company, ticker, maxResults)
	case domain.ClassFinData:
		items, err = g.collectFinData(ctx, company, ticker)
	default:
		err = fmt.Errorf("unknown source class %q", class)
	}
	if err != nil {
		return nil, &SourceError{Class: class, Err: err}
	}
	return items, nil
}

func (g *Gatherer) collectWeb(ctx context.Context, queries []string, maxResults int) ([]rawItem, error) {
	if g.search == nil {
		return nil, nil
	}
	var items []rawItem
	for _, q := range queries {
		if len(items) >= maxResults {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		results, err := g.search.Search(ctx, q, domain.SearchOpts{MaxResults: maxResults})
		if err != nil {
			if len(items) == 0 {
				return nil, err
			}
			g.logger.Warn("web query failed", zap.String("query", q), zap.Error(err))
			continue
		}
		for _, r := range results {
			if len(items) >= maxResults {
				break
			}
			items = append(items, rawItem{
				class:       domain.ClassWeb,
				sourceType:  classifySource(r.URL),
				identity:    r.URL,
				content:     r.Content,
				url:         r.URL,
				title:       r.Title,
				publishedAt: r.PublishedDate,
			})
		}
	}
	return items, nil
}

// collectCorpus reuses evidence already in the engagement's corpus.
// Hits are linked and weighed like fresh evidence but never written
// again.
func (g *Gatherer) collectCorpus(ctx context.Context, topic string, maxResults int, rctx *Context) ([]rawItem, error) {
	if g.embedder == nil || rctx.Content == nil || topic == "" {
		return nil, nil
	}
	vec, err := g.embedder.Embed(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	hits, err := rctx.Content.SearchSimilar(ctx, rctx.EngagementID, vec, maxResults)
	if err != nil {
		return nil, err
	}
	items := make([]rawItem, 0, len(hits))
	for i := range hits {
		ev := hits[i].Evidence
		items = append(items, rawItem{
			class:      domain.ClassCorpus,
			sourceType: ev.Source.Type,
			identity:   ev.ContentHash,
			content:    ev.Content,
			url:        ev.Source.URL,
			title:      ev.Source.Title,
			tags:       ev.Tags,
			persisted:  &ev,
		})
	}
	return items, nil
}

// collectMarket pulls the latest quote and pre-scored news headlines.
// News topics fall back to the company name when no ticker is set;
// quotes need a real symbol and are skipped without one.
func (g *Gatherer) collectMarket(ctx context.Context, company, ticker string, maxResults int) ([]rawItem, error) {
	if g.findata == nil {
		return nil, nil
	}
	topic := ticker
	if topic == "" {
		topic = company
	}
	if topic == "" {
		return nil, nil
	}

	var items []rawItem
	if ticker != "" {
		quote, err := g.findata.Quote(ctx, ticker)
		if err != nil {
			g.logger.Warn("quote unavailable", zap.String("symbol", ticker), zap.Error(err))
		} else {
			asOf := quote.AsOf
			items = append(items, rawItem{
				class:      domain.ClassMarket,
				sourceType: domain.SourceFinancialData,
				identity:   quote.Symbol + ":quote",
				content: fmt.Sprintf("%s last traded at %.2f (%+.2f%%) on volume %d.",
					quote.Symbol, quote.Price, quote.ChangePercent, quote.Volume),
				title:       quote.Symbol + " quote",
				publishedAt: &asOf,
				tags:        []string{"market"},
			})
		}
	}

	news, err := g.findata.News(ctx, topic, maxResults)
	if err != nil {
		if len(items) == 0 {
			return nil, err
		}
		g.logger.Warn("news feed unavailable", zap.String("topic", topic), zap.Error(err))
		return items, nil
	}
	for i := range news {
		n := news[i]
		content := n.Title
		if n.Summary != "" {
			content += ". " + n.Summary
		}
		publishedAt := n.PublishedAt
		score := n.SentimentScore
		tags := []string{"market"}
		if n.Source != "" {
			tags = append(tags, n.Source)
		}
		items = append(items, rawItem{
			class:             domain.ClassMarket,
			sourceType:        domain.SourceNews,
			identity:          n.URL,
			content:           content,
			url:               n.URL,
			title:             n.Title,
			publishedAt:       &publishedAt,
			tags:              tags,
			providerSentiment: &score,
		})
	}
	return items, nil
}

func (g *Gatherer) collectFinData(ctx context.Context, company, ticker string) ([]rawItem, error) {
	if g.findata == nil {
		return nil, nil
	}
	symbol := ticker
	if symbol == "" {
		symbol = company
	}
	if symbol == "" {
		return nil, nil
	}
	f, err := g.findata.Fundamentals(ctx, symbol)
	if err != nil {
		return nil, err
	}
	return []rawItem{{
		class:      domain.ClassFinData,
		sourceType: domain.SourceFinancialData,
		identity:   f.Symbol + ":fundamentals",
		content:    formatFundamentals(f),
		title:      f.Name + " fundamentals",
		tags:       []string{"fundamentals"},
	}}, nil
}

func (g *Gatherer) credibilityFor(item rawItem) float32 {
	if item.persisted != nil {
		return item.persisted.Source.CredibilityScore
	}
	return g.scorer.Score(scoring.SourceMeta{
		Type:        item.sourceType,
		URL:         item.url,
		Title:       item.title,
		PublishedAt: item.publishedAt,
	}, item.content)
}

func (g *Gatherer) classify(ctx context.Context, framing string, item rawItem) domain.Sentiment {
	if item.providerSentiment != nil {
		return newsSentiment(*item.providerSentiment)
	}
	if len(item.content) < minClassifyLen {
		return domain.SentimentNeutral
	}
	sentiment, err := g.llm.ClassifySentiment(ctx, framing, item.content)
	if err != nil {
		g.logger.Warn("sentiment classification failed", zap.Error(err))
		return domain.SentimentNeutral
	}
	if !domain.ValidSentiment(string(sentiment)) {
		return domain.SentimentNeutral
	}
	return sentiment
}

func (g *Gatherer) embeddingFor(ctx context.Context, item rawItem) []float32 {
	if item.persisted != nil {
		return item.persisted.Embedding
	}
	if g.embedder == nil {
		return nil
	}
	embedding, err := g.embedder.Embed(ctx, item.content)
	if err != nil {
		g.logger.Warn("evidence embedding failed", zap.Error(err))
		return nil
	}
	return embedding
}

// persist writes a fresh item to the content store and mirrors it into
// the relational copy. The content store is authoritative: its failure
// fails the gather, a mirror failure only logs. Corpus hits pass
// through untouched, and a content-hash conflict resolves to the
// already-stored row flagged as a duplicate.
func (g *Gatherer) persist(ctx context.Context, rctx *Context, item rawItem, credibility float32, sentiment domain.Sentiment, relevance domain.EvidenceRelevance, embedding []float32) (*domain.Evidence, bool, error) {
	if item.persisted != nil {
		return item.persisted, true, nil
	}

	ev := domain.Evidence{
		EngagementID: rctx.EngagementID,
		Content:      item.content,
		ContentHash:  domain.HashContent(item.content),
		Source: domain.EvidenceSource{
			Type:             item.sourceType,
			URL:              item.url,
			Title:            item.title,
			CredibilityScore: credibility,
			RetrievedAt:      time.Now().UTC(),
		},
		Sentiment: sentiment,
		Relevance: relevance,
		Tags:      item.tags,
		Embedding: embedding,
	}
	stored, created, err := rctx.Content.UpsertEvidence(ctx, &ev)
	if err != nil {
		return nil, false, &PersistError{Op: "store evidence", Err: err}
	}
	if !created {
		dup := *stored
		first := stored.ID
		dup.DuplicateOf = &first
		return &dup, false, nil
	}

	if rctx.Evidence != nil {
		if err := rctx.Evidence.Create(ctx, stored); err != nil {
			g.logger.Warn("evidence mirror write failed",
				zap.String("evidence_id", stored.ID.String()), zap.Error(err))
		}
	}
	return stored, true, nil
}

func relevanceFor(targets []domain.Hypothesis, embeddings map[uuid.UUID][]float32, evEmbedding []float32) domain.EvidenceRelevance {
	rel := domain.EvidenceRelevance{
		HypothesisIDs:   make([]uuid.UUID, 0, len(targets)),
		RelevanceScores: make([]float32, 0, len(targets)),
	}
	for _, h := range targets {
		score := float32(scoring.DefaultRelevance)
		if hEmb, ok := embeddings[h.ID]; ok && len(evEmbedding) > 0 {
			score = scoring.Relevance(evEmbedding, hEmb)
		}
		rel.HypothesisIDs = append(rel.HypothesisIDs, h.ID)
		rel.RelevanceScores = append(rel.RelevanceScores, score)
	}
	return rel
}

func formatFundamentals(f *domain.Fundamentals) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s) operates in %s.", f.Name, f.Symbol, f.Sector)
	if f.MarketCap > 0 {
		fmt.Fprintf(&b, " Market cap %.0f.", f.MarketCap)
	}
	if f.PERatio > 0 {
		fmt.Fprintf(&b, " P/E ratio %.1f.", f.PERatio)
	}
	if f.RevenueGrowth != 0 {
		fmt.Fprintf(&b, " Revenue growth %.1f%%.", f.RevenueGrowth*100)
	}
	if f.ProfitMargin != 0 {
		fmt.Fprintf(&b, " Profit margin %.1f%%.", f.ProfitMargin*100)
	}
	if f.Description != "" {
		b.WriteString(" " + f.Description)
	}
	return b.String()
}

func newsSentiment(score float64) domain.Sentiment {
	switch {
	case score >= newsSentimentCutoff:
		return domain.SentimentSupporting
	case score <= -newsSentimentCutoff:
		return domain.SentimentContradicting
	}
	return domain.SentimentNeutral
}

// classifySource maps a result URL to the closest source type. The
// table is deliberately small; unknown hosts stay generic web.
func classifySource(rawURL string) domain.SourceType {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return domain.SourceWeb
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	switch {
	case hostMatches(host, "sec.gov"):
		return domain.SourceRegulatoryFiling
	case hostMatches(host, "reuters.com", "bloomberg.com", "wsj.com", "ft.com", "cnbc.com", "marketwatch.com"):
		return domain.SourceNews
	case hostMatches(host, "seekingalpha.com", "morningstar.com", "zacks.com"):
		return domain.SourceAnalystReport
	case hostMatches(host, "reddit.com", "x.com", "twitter.com", "stocktwits.com"):
		return domain.SourceSocial
	}
	return domain.SourceWeb
}

func hostMatches(host string, domains ...string) bool {
	for _, d := range domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
