package digest

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/svodkanews/svodka/internal/source"
)

func testOptions() Options {
	return Options{
		SimilarityThreshold: 0.82,
		PerTopicLimitDaily:  3,
		PerTopicLimitWeekly: 4,
	}
}

func item(title, summary string, publishedAt time.Time) source.RawItem {
	return source.RawItem{
		Title:       title,
		Summary:     summary,
		PublishedAt: publishedAt,
	}
}

var economyTitles = []string{
	"Инфляция ускорилась в апреле",
	"Бюджет пересмотрен из-за дефицита",
	"Экспорт вырос на десять процентов",
	"Налог на прибыль изменён",
	"Госдолг сокращается второй квартал",
	"Безработица обновила минимум",
}

func TestBuild_EmptyInputProducesPlaceholder(t *testing.T) {
	out := NewBuilder(testOptions()).Build(PeriodDaily, nil)

	if out.Title != "Сводка: значимых событий не выявлено" {
		t.Errorf("unexpected title: %q", out.Title)
	}
	if out.Body != "Новых материалов стратегического уровня за период не найдено." {
		t.Errorf("unexpected body: %q", out.Body)
	}
	if out.ItemsCount != 0 {
		t.Errorf("expected zero items, got %d", out.ItemsCount)
	}
	for key, value := range out.QualityMetrics {
		if value != 0 {
			t.Errorf("metric %s = %d, want 0", key, value)
		}
	}
}

func TestBuild_NearDuplicateKeepsNewestItem(t *testing.T) {
	base := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	older := item("Центробанк сохранил ключевую ставку", "Решение совета директоров.", base)
	newer := item("Центробанк сохранил ключевую ставку!", "Регулятор объяснил решение ростом цен.", base.Add(2*time.Hour))

	out := NewBuilder(testOptions()).Build(PeriodDaily, []source.RawItem{older, newer})

	if out.ItemsCount != 1 {
		t.Fatalf("expected 1 item after dedup, got %d", out.ItemsCount)
	}
	if out.QualityMetrics["duplicates_removed"] != 1 {
		t.Errorf("duplicates_removed = %d, want 1", out.QualityMetrics["duplicates_removed"])
	}
	if !strings.Contains(out.Body, newer.Summary) {
		t.Errorf("expected newest duplicate to survive, body: %q", out.Body)
	}
}

func TestBuild_TopicBreakdownSumsToItemsCount(t *testing.T) {
	base := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	items := []source.RawItem{
		item("Инфляция ускорилась в апреле", "Подробности в отчёте.", base),
		item("Правительство подписало соглашение о бюджете", "Документ опубликован.", base.Add(time.Minute)),
		item("Саммит по санкциям завершился переговорами", "Стороны согласовали план.", base.Add(2*time.Minute)),
	}

	out := NewBuilder(testOptions()).Build(PeriodDaily, items)

	total := 0
	for _, count := range out.TopicBreakdown {
		total += count
	}
	if total != out.ItemsCount {
		t.Errorf("topic breakdown sums to %d, items count %d", total, out.ItemsCount)
	}
}

func TestBuild_TopicCapWithFloorTopUp(t *testing.T) {
	base := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	items := make([]source.RawItem, 0, len(economyTitles))
	for i, title := range economyTitles {
		items = append(items, item(title, fmt.Sprintf("Сводка номер %d по экономике.", i+1), base.Add(time.Duration(i)*time.Minute)))
	}

	out := NewBuilder(testOptions()).Build(PeriodDaily, items)

	// The topic cap of 3 yields too few items, the floor of 5 tops up
	// past the cap; one item stays excluded.
	if out.ItemsCount != 5 {
		t.Fatalf("expected 5 selected, got %d", out.ItemsCount)
	}
	if out.QualityMetrics["removed_by_topic_limit"] != 1 {
		t.Errorf("removed_by_topic_limit = %d, want 1", out.QualityMetrics["removed_by_topic_limit"])
	}
	if out.QualityMetrics["duplicates_removed"] != 0 {
		t.Errorf("unexpected dedup: %d", out.QualityMetrics["duplicates_removed"])
	}
}

func TestBuild_PublishAllImportantIgnoresCaps(t *testing.T) {
	opts := testOptions()
	opts.PublishAllImportant = true

	base := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	items := make([]source.RawItem, 0, len(economyTitles))
	for i, title := range economyTitles {
		items = append(items, item(title, "Описание.", base.Add(time.Duration(i)*time.Minute)))
	}

	out := NewBuilder(opts).Build(PeriodDaily, items)
	if out.ItemsCount != len(items) {
		t.Errorf("expected all %d items, got %d", len(items), out.ItemsCount)
	}
	if out.QualityMetrics["removed_by_topic_limit"] != 0 {
		t.Errorf("removed_by_topic_limit = %d, want 0", out.QualityMetrics["removed_by_topic_limit"])
	}
}

func TestBuild_ThresholdBoundaryIsInclusive(t *testing.T) {
	base := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	a := "Центробанк повысил ключевую ставку"
	c := "Центробанк повысил ключевую ставку снова"
	ratio := Ratio(normalizeTitle(a), normalizeTitle(c))

	items := []source.RawItem{
		item(a, "Первый текст.", base),
		item(c, "Второй текст.", base.Add(time.Minute)),
	}

	// Exactly at the threshold: duplicates.
	atOpts := testOptions()
	atOpts.SimilarityThreshold = ratio
	if out := NewBuilder(atOpts).Build(PeriodDaily, items); out.ItemsCount != 1 {
		t.Errorf("at threshold: expected 1 item, got %d", out.ItemsCount)
	}

	// Just above the pair's ratio: distinct.
	aboveOpts := testOptions()
	aboveOpts.SimilarityThreshold = ratio + 1e-9
	if out := NewBuilder(aboveOpts).Build(PeriodDaily, items); out.ItemsCount != 2 {
		t.Errorf("above threshold: expected 2 items, got %d", out.ItemsCount)
	}
}

func TestBuild_ExampleScenario(t *testing.T) {
	base := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	opts := testOptions()
	opts.PerTopicLimitDaily = 2

	items := []source.RawItem{
		item("Центробанк повысил ключевую ставку", "Совет директоров объяснил решение.", base),
		item("Центробанк повысил ключевую ставку!", "Краткое сообщение.", base.Add(time.Minute)),
		item("Правительство подписало соглашение о бюджете", "Документ опубликован.", base.Add(2*time.Minute)),
		item("Саммит по санкциям завершился переговорами", "Стороны согласовали план.", base.Add(3*time.Minute)),
	}

	out := NewBuilder(opts).Build(PeriodDaily, items)

	if out.ItemsCount != 3 {
		t.Fatalf("expected 3 items, got %d", out.ItemsCount)
	}
	if out.QualityMetrics["duplicates_removed"] != 1 {
		t.Errorf("duplicates_removed = %d, want 1", out.QualityMetrics["duplicates_removed"])
	}
	total := 0
	for _, count := range out.TopicBreakdown {
		total += count
	}
	if total != 3 {
		t.Errorf("topic breakdown sums to %d, want 3", total)
	}
}

func TestBuild_PeriodTitles(t *testing.T) {
	base := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	items := []source.RawItem{item("Инфляция ускорилась в апреле", "Отчёт.", base)}

	daily := NewBuilder(testOptions()).Build(PeriodDaily, items)
	if daily.Title != "Итоги дня: политика и экономика" {
		t.Errorf("daily title: %q", daily.Title)
	}

	weekly := NewBuilder(testOptions()).Build(PeriodWeekly, items)
	if weekly.Title != "Итоги недели: ключевые изменения" {
		t.Errorf("weekly title: %q", weekly.Title)
	}
}

func TestBuild_LineFormatAndSnippetTruncation(t *testing.T) {
	base := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	long := strings.Repeat("о", 500)
	out := NewBuilder(testOptions()).Build(PeriodDaily, []source.RawItem{
		item("Инфляция ускорилась в апреле", long, base),
	})

	if !strings.HasPrefix(out.Body, "1) [Экономика] Инфляция ускорилась в апреле\n") {
		t.Fatalf("unexpected line format: %q", out.Body)
	}
	snippet := strings.SplitN(out.Body, "\n", 2)[1]
	if !strings.HasSuffix(snippet, "...") {
		t.Errorf("expected ellipsis, got tail %q", snippet[len(snippet)-12:])
	}
	if n := len([]rune(snippet)); n != 210 {
		t.Errorf("snippet length %d runes, want 210", n)
	}
}
