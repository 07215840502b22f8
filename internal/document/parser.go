package document

import (
	"encoding/csv"
	"fmt"
	"mime"
	"strings"

	"github.com/convictionhq/conviction/internal/domain"
)

const (
	// chunkSize caps chunk length in bytes. Embedding inputs and LLM
	// prompts both want evidence items well under a page.
	chunkSize = 2000

	csvRowsPerChunk = 50
)

// Parser turns uploaded diligence documents into evidence-sized chunks.
// It handles the text formats analysts actually upload; binary formats
// are rejected rather than half-parsed.
type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

func (p *Parser) Parse(data []byte, mimeType string) ([]domain.Chunk, error) {
	mt := mimeType
	if parsed, _, err := mime.ParseMediaType(mimeType); err == nil {
		mt = parsed
	}
	mt = strings.ToLower(strings.TrimSpace(mt))

	switch mt {
	case "", "text/plain", "text/markdown", "text/x-markdown":
		return chunkText(string(data)), nil
	case "text/csv":
		return chunkCSV(data)
	default:
		return nil, fmt.Errorf("unsupported content type: %s", mimeType)
	}
}

// chunkText packs paragraphs greedily up to chunkSize. A paragraph
// longer than chunkSize is split hard; everything else keeps its
// natural boundaries so chunks read as coherent passages.
func chunkText(text string) []domain.Chunk {
	var chunks []domain.Chunk
	var cur strings.Builder

	flush := func() {
		if cur.Len() == 0 {
			return
		}
		chunks = append(chunks, domain.Chunk{Text: cur.String(), Index: len(chunks)})
		cur.Reset()
	}

	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		for len(para) > chunkSize {
			flush()
			cut := chunkSize
			for cut > 0 && para[cut]&0xC0 == 0x80 {
				cut--
			}
			if cut == 0 {
				cut = chunkSize
			}
			cur.WriteString(para[:cut])
			flush()
			para = para[cut:]
		}

		if cur.Len() > 0 && cur.Len()+len(para)+2 > chunkSize {
			flush()
		}
		if cur.Len() > 0 {
			cur.WriteString("\n\n")
		}
		cur.WriteString(para)
	}
	flush()

	return chunks
}

// chunkCSV groups rows into chunks, repeating the header so each chunk
// stands alone as evidence.
func chunkCSV(data []byte) ([]domain.Chunk, error) {
	reader := csv.NewReader(strings.NewReader(string(data)))
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	header := strings.Join(records[0], ", ")
	rows := records[1:]

	var chunks []domain.Chunk
	for start := 0; start < len(rows); start += csvRowsPerChunk {
		end := start + csvRowsPerChunk
		if end > len(rows) {
			end = len(rows)
		}

		var sb strings.Builder
		sb.WriteString(header)
		for _, row := range rows[start:end] {
			sb.WriteString("\n")
			sb.WriteString(strings.Join(row, ", "))
		}
		chunks = append(chunks, domain.Chunk{Text: sb.String(), Index: len(chunks)})
	}

	if len(chunks) == 0 {
		chunks = append(chunks, domain.Chunk{Text: header, Index: 0})
	}
	return chunks, nil
}
