package document

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestParsePlainText(t *testing.T) {
	p := NewParser()

	chunks, err := p.Parse([]byte("First paragraph.\n\nSecond paragraph."), "text/plain")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if !strings.Contains(chunks[0].Text, "First paragraph.") || !strings.Contains(chunks[0].Text, "Second paragraph.") {
		t.Errorf("chunk missing paragraphs: %q", chunks[0].Text)
	}
}

func TestParseMimeParameters(t *testing.T) {
	p := NewParser()

	if _, err := p.Parse([]byte("hello"), "text/plain; charset=utf-8"); err != nil {
		t.Errorf("charset parameter should be tolerated: %v", err)
	}
	if _, err := p.Parse([]byte("# heading"), "text/markdown"); err != nil {
		t.Errorf("markdown should parse: %v", err)
	}
}

func TestParseUnsupportedType(t *testing.T) {
	p := NewParser()

	if _, err := p.Parse([]byte{0x25, 0x50, 0x44, 0x46}, "application/pdf"); err == nil {
		t.Error("expected error for unsupported content type")
	}
}

func TestChunkTextRespectsSize(t *testing.T) {
	paras := make([]string, 10)
	for i := range paras {
		paras[i] = strings.Repeat("margin expansion thesis evidence ", 20)
	}

	chunks := chunkText(strings.Join(paras, "\n\n"))
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for _, c := range chunks {
		if len(c.Text) > chunkSize {
			t.Errorf("chunk %d exceeds size: %d > %d", c.Index, len(c.Text), chunkSize)
		}
	}
	for i, c := range chunks {
		if c.Index != i {
			t.Errorf("chunk index %d out of order (got %d)", i, c.Index)
		}
	}
}

func TestChunkTextSplitsOversizedParagraph(t *testing.T) {
	big := strings.Repeat("x", chunkSize*2+100)

	chunks := chunkText(big)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}

	var total int
	for _, c := range chunks {
		total += len(c.Text)
	}
	if total != len(big) {
		t.Errorf("hard split lost content: %d != %d", total, len(big))
	}
}

func TestChunkTextKeepsRunesIntact(t *testing.T) {
	big := strings.Repeat("研究データの分析結果 ", 400)

	for _, c := range chunkText(big) {
		if !utf8.ValidString(c.Text) {
			t.Fatalf("chunk %d split a rune", c.Index)
		}
	}
}

func TestParseCSVRepeatsHeader(t *testing.T) {
	p := NewParser()

	var sb strings.Builder
	sb.WriteString("quarter,revenue,margin\n")
	for i := 0; i < csvRowsPerChunk+10; i++ {
		sb.WriteString("Q1,100,0.4\n")
	}

	chunks, err := p.Parse([]byte(sb.String()), "text/csv")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	for _, c := range chunks {
		if !strings.HasPrefix(c.Text, "quarter, revenue, margin") {
			t.Errorf("chunk %d missing header: %q", c.Index, c.Text[:40])
		}
	}
}

func TestParseEmptyInput(t *testing.T) {
	p := NewParser()

	chunks, err := p.Parse(nil, "text/plain")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("expected no chunks for empty input, got %d", len(chunks))
	}
}
