package telegram

import (
	"strings"
	"testing"
)

func TestChunkBody_ShortBodySingleChunk(t *testing.T) {
	body := "Короткая сводка."
	chunks := ChunkBody(body, MaxMessageRunes)
	if len(chunks) != 1 || chunks[0] != body {
		t.Fatalf("unexpected chunks: %#v", chunks)
	}
}

func TestChunkBody_SplitsOnParagraphBoundaries(t *testing.T) {
	paragraphs := make([]string, 0, 30)
	for i := 0; i < 30; i++ {
		paragraphs = append(paragraphs, strings.Repeat("н", 300))
	}
	body := strings.Join(paragraphs, "\n\n")

	chunks := ChunkBody(body, MaxMessageRunes)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if n := len([]rune(chunk)); n > MaxMessageRunes {
			t.Errorf("chunk %d is %d runes", i, n)
		}
		if strings.HasPrefix(chunk, "\n") || strings.HasSuffix(chunk, "\n") {
			t.Errorf("chunk %d has dangling newline: %q", i, chunk[:20])
		}
	}

	// Rejoining the chunks restores the original body.
	if got := strings.Join(chunks, "\n\n"); got != body {
		t.Errorf("chunks do not reassemble into the body")
	}
}

func TestChunkBody_HardSplitsOversizedParagraph(t *testing.T) {
	body := strings.Repeat("д", 9000)
	chunks := ChunkBody(body, MaxMessageRunes)

	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	total := 0
	for i, chunk := range chunks {
		n := len([]rune(chunk))
		if n > MaxMessageRunes {
			t.Errorf("chunk %d is %d runes", i, n)
		}
		total += n
	}
	if total != 9000 {
		t.Errorf("rune total %d, want 9000", total)
	}
}

func TestChunkBody_RuneBudgetNotByteBudget(t *testing.T) {
	// Cyrillic text is two bytes per rune; the limit must count runes.
	body := strings.Repeat("ы", 100)
	chunks := ChunkBody(body, 100)
	if len(chunks) != 1 {
		t.Fatalf("expected a single chunk, got %d", len(chunks))
	}
}
