// Package llm is the optional Gemini-backed digest writer. It is only an
// alternative body renderer: any failure falls back to the deterministic
// extractive builder, so nothing downstream depends on its output shape
// beyond the parsed title and body.
package llm

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/svodkanews/svodka/internal/digest"
	"github.com/svodkanews/svodka/internal/ratelimit"
	"github.com/svodkanews/svodka/internal/source"
)

const (
	maxPromptItems       = 80
	maxItemSummaryRunes  = 350
	maxDigestPromptItems = 15
)

type Writer struct {
	client *genai.Client
	model  string
	budget *ratelimit.Budget
}

func NewWriter(ctx context.Context, apiKey, model string, budget *ratelimit.Budget) (*Writer, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Writer{client: client, model: model, budget: budget}, nil
}

func (w *Writer) Close() {
	if w.client != nil {
		w.client.Close()
	}
}

// Generated is a parsed LLM digest.
type Generated struct {
	Title string
	Body  string
}

// WriteDigest asks the model for a digest over the accepted pool. The
// prompt pins an exact response format; anything unparseable is an error
// and the caller falls back to the extractive path.
func (w *Writer) WriteDigest(ctx context.Context, period digest.PeriodType, items []source.RawItem) (Generated, error) {
	if err := w.budget.Use(); err != nil {
		return Generated{}, err
	}

	limit := maxDigestPromptItems
	if period == digest.PeriodDaily {
		limit = 12
	}

	var b strings.Builder
	for i, item := range items {
		if i >= maxPromptItems {
			break
		}
		b.WriteString(fmt.Sprintf("- %s. %s (источник %d)\n", item.Title, truncate(item.Summary, maxItemSummaryRunes), item.SourceID))
	}

	prompt := fmt.Sprintf(`Ты редактор сухой аналитической сводки. Пиши только факты, без эмоций, пропаганды и кликбейта. Исключай локальные бытовые события и тактические детали конфликтов.

Сформируй %s сводку на русском языке. Верни строго формат:
ЗАГОЛОВОК: ...
ПУНКТЫ:
1) ...

Сделай от 5 до %d пунктов, каждый пункт 1-3 строки.
Новости:
%s`, periodRu(period), limit, b.String())

	model := w.client.GenerativeModel(w.model)
	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return Generated{}, fmt.Errorf("generate digest: %w", err)
	}

	content := extractText(resp)
	if content == "" {
		return Generated{}, fmt.Errorf("empty model response")
	}
	return parseGenerated(period, content)
}

func extractText(resp *genai.GenerateContentResponse) string {
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				b.WriteString(string(text))
			}
		}
	}
	return strings.TrimSpace(b.String())
}

func parseGenerated(period digest.PeriodType, content string) (Generated, error) {
	title := "Ежедневная сводка"
	if period == digest.PeriodWeekly {
		title = "Недельная сводка"
	}
	if idx := strings.Index(content, "ЗАГОЛОВОК:"); idx >= 0 {
		rest := content[idx+len("ЗАГОЛОВОК:"):]
		if line := strings.SplitN(rest, "\n", 2)[0]; strings.TrimSpace(line) != "" {
			title = strings.TrimSpace(line)
		}
	}

	body := content
	if idx := strings.LastIndex(content, "ПУНКТЫ:"); idx >= 0 {
		body = strings.TrimSpace(content[idx+len("ПУНКТЫ:"):])
	}
	if body == "" {
		return Generated{}, fmt.Errorf("model response has no digest items")
	}
	return Generated{Title: title, Body: body}, nil
}

func periodRu(period digest.PeriodType) string {
	if period == digest.PeriodWeekly {
		return "недельную"
	}
	return "ежедневную"
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
