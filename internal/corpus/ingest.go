package corpus

import (
	"context"
	"fmt"
	"time"

	"github.com/convictionhq/conviction/internal/domain"
	"github.com/convictionhq/conviction/internal/scoring"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// IngestResult summarizes one document upload.
type IngestResult struct {
	Filename    string      `json:"filename"`
	Chunks      int         `json:"chunks"`
	Stored      int         `json:"stored"`
	Duplicates  int         `json:"duplicates"`
	EvidenceIDs []uuid.UUID `json:"evidence_ids"`
}

// Ingestor feeds uploaded documents into the engagement's evidence
// corpus. Each chunk is embedded, credibility-scored off its filename
// signals, and written under content-hash identity, so re-uploading
// the same document is a no-op that reports duplicates instead of
// inflating the corpus. The content store is authoritative; the
// relational mirror is written best-effort for API reads.
type Ingestor struct {
	parser   domain.DocumentParser
	embedder domain.EmbeddingClient
	scorer   *scoring.Scorer
	content  domain.ContentStore
	evidence domain.EvidenceStore
	logger   *zap.Logger
}

func NewIngestor(
	parser domain.DocumentParser,
	embedder domain.EmbeddingClient,
	scorer *scoring.Scorer,
	content domain.ContentStore,
	evidence domain.EvidenceStore,
	logger *zap.Logger,
) *Ingestor {
	return &Ingestor{
		parser:   parser,
		embedder: embedder,
		scorer:   scorer,
		content:  content,
		evidence: evidence,
		logger:   logger,
	}
}

// IngestDocument parses, embeds and stores one uploaded document as
// internal-document evidence.
func (i *Ingestor) IngestDocument(ctx context.Context, engagementID uuid.UUID, filename, mimeType string, data []byte) (*IngestResult, error) {
	chunks, err := i.parser.Parse(data, mimeType)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	result := &IngestResult{Filename: filename, Chunks: len(chunks)}
	for _, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		credibility := i.scorer.Score(scoring.SourceMeta{
			Type:     domain.SourceInternalDocument,
			Title:    filename,
			Filename: filename,
		}, chunk.Text)

		var embedding []float32
		if i.embedder != nil {
			embedding, err = i.embedder.Embed(ctx, chunk.Text)
			if err != nil {
				i.logger.Warn("chunk embedding failed",
					zap.String("filename", filename),
					zap.Int("chunk", chunk.Index),
					zap.Error(err))
				embedding = nil
			}
		}

		ev := domain.Evidence{
			EngagementID: engagementID,
			Content:      chunk.Text,
			ContentHash:  domain.HashContent(chunk.Text),
			Source: domain.EvidenceSource{
				Type:             domain.SourceInternalDocument,
				Title:            fmt.Sprintf("%s (part %d)", filename, chunk.Index+1),
				CredibilityScore: credibility,
				RetrievedAt:      time.Now().UTC(),
			},
			Sentiment: domain.SentimentNeutral,
			Tags:      []string{"document", filename},
			Embedding: embedding,
		}

		stored, created, err := i.content.UpsertEvidence(ctx, &ev)
		if err != nil {
			return nil, fmt.Errorf("store chunk %d: %w", chunk.Index, err)
		}
		if !created {
			result.Duplicates++
			result.EvidenceIDs = append(result.EvidenceIDs, stored.ID)
			continue
		}
		result.Stored++
		result.EvidenceIDs = append(result.EvidenceIDs, stored.ID)

		if i.evidence != nil {
			if err := i.evidence.Create(ctx, stored); err != nil {
				i.logger.Warn("evidence mirror write failed",
					zap.String("evidence_id", stored.ID.String()), zap.Error(err))
			}
		}
	}

	i.logger.Info("document ingested",
		zap.String("engagement_id", engagementID.String()),
		zap.String("filename", filename),
		zap.Int("chunks", result.Chunks),
		zap.Int("stored", result.Stored),
		zap.Int("duplicates", result.Duplicates))
	return result, nil
}

// SearchCorpus runs a similarity search over the engagement's stored
// evidence. This is the same lookup the gatherer's corpus source class
// uses.
func (i *Ingestor) SearchCorpus(ctx context.Context, engagementID uuid.UUID, query string, limit int) ([]domain.EvidenceWithScore, error) {
	if i.embedder == nil {
		return nil, fmt.Errorf("no embedding client configured")
	}
	vec, err := i.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if limit <= 0 {
		limit = 10
	}
	return i.content.SearchSimilar(ctx, engagementID, vec, limit)
}
