// Package digest turns a pool of accepted items into a bounded,
// topic-balanced, formatted digest. Build is a pure function of its
// inputs: identical pools produce byte-identical output.
package digest

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/svodkanews/svodka/internal/filter"
	"github.com/svodkanews/svodka/internal/source"
)

// PeriodType selects the digest cadence and its selection parameters.
type PeriodType string

const (
	PeriodDaily  PeriodType = "daily"
	PeriodWeekly PeriodType = "weekly"
)

// Options are the tunables of the selection stage.
type Options struct {
	SimilarityThreshold float64
	PerTopicLimitDaily  int
	PerTopicLimitWeekly int
	// PublishAllImportant disables the overall cap and the per-topic cap,
	// selecting every deduplicated item.
	PublishAllImportant bool
}

// Output is one built digest plus the funnel counters of its build.
type Output struct {
	Title          string
	Body           string
	ItemsCount     int
	TopicBreakdown map[string]int
	QualityMetrics map[string]int
}

type Builder struct {
	opts Options
}

func NewBuilder(opts Options) *Builder {
	return &Builder{opts: opts}
}

const (
	dailyCap      = 12
	weeklyCap     = 15
	dailyMinItems = 5
	weeklyMin     = 7

	snippetMaxRunes = 210
)

type scoredItem struct {
	item  source.RawItem
	score int
	topic filter.Topic
}

// Build deduplicates, ranks and selects the accepted pool for one period
// and renders the digest body.
func (b *Builder) Build(period PeriodType, items []source.RawItem) Output {
	if len(items) == 0 {
		return Output{
			Title:          "Сводка: значимых событий не выявлено",
			Body:           "Новых материалов стратегического уровня за период не найдено.",
			TopicBreakdown: map[string]int{},
			QualityMetrics: map[string]int{
				"accepted_before_dedup":  0,
				"deduplicated":           0,
				"selected":               0,
				"duplicates_removed":     0,
				"removed_by_topic_limit": 0,
			},
		}
	}

	scored := make([]scoredItem, 0, len(items))
	for _, item := range items {
		res := filter.Evaluate(item.Title, item.Summary)
		scored = append(scored, scoredItem{item: item, score: res.Score, topic: res.Topic})
	}

	deduped := b.deduplicate(scored)
	ranked := rank(deduped)
	selected, removedByTopicLimit := b.selectBalanced(period, ranked)

	title := "Итоги дня: политика и экономика"
	if period == PeriodWeekly {
		title = "Итоги недели: ключевые изменения"
	}

	topicBreakdown := map[string]int{}
	lines := make([]string, 0, len(selected))
	for idx, s := range selected {
		topicBreakdown[s.topic.String()]++
		lines = append(lines, fmt.Sprintf("%d) [%s] %s\n%s", idx+1, s.topic.Label(), s.item.Title, drySnippet(s.item.Summary)))
	}

	return Output{
		Title:          title,
		Body:           strings.Join(lines, "\n\n"),
		ItemsCount:     len(selected),
		TopicBreakdown: topicBreakdown,
		QualityMetrics: map[string]int{
			"accepted_before_dedup":  len(items),
			"deduplicated":           len(deduped),
			"selected":               len(selected),
			"duplicates_removed":     len(items) - len(deduped),
			"removed_by_topic_limit": removedByTopicLimit,
		},
	}
}

// deduplicate keeps the first representative of each near-duplicate
// title cluster. Candidates are visited newest-first, longer summary
// first, so the representative is the freshest, most detailed item.
func (b *Builder) deduplicate(items []scoredItem) []scoredItem {
	candidates := make([]scoredItem, len(items))
	copy(candidates, items)
	sort.SliceStable(candidates, func(i, j int) bool {
		a, c := candidates[i].item, candidates[j].item
		if !a.PublishedAt.Equal(c.PublishedAt) {
			return a.PublishedAt.After(c.PublishedAt)
		}
		return len(a.Summary) > len(c.Summary)
	})

	var reps []scoredItem
	var repTitles []string
	for _, candidate := range candidates {
		norm := normalizeTitle(candidate.item.Title)
		duplicate := false
		for _, existing := range repTitles {
			if Ratio(norm, existing) >= b.opts.SimilarityThreshold {
				duplicate = true
				break
			}
		}
		if !duplicate {
			reps = append(reps, candidate)
			repTitles = append(repTitles, norm)
		}
	}
	return reps
}

// rank orders by classifier score, then summary length, then recency.
func rank(items []scoredItem) []scoredItem {
	ranked := make([]scoredItem, len(items))
	copy(ranked, items)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, c := ranked[i], ranked[j]
		if a.score != c.score {
			return a.score > c.score
		}
		if len(a.item.Summary) != len(c.item.Summary) {
			return len(a.item.Summary) > len(c.item.Summary)
		}
		return a.item.PublishedAt.After(c.item.PublishedAt)
	})
	return ranked
}

// selectBalanced walks the ranked list honoring the per-topic cap and
// the overall cap, then tops up past the topic cap if the minimum floor
// was not reached. The topic cap is a soft preference; the floor is a
// hard backstop.
func (b *Builder) selectBalanced(period PeriodType, ranked []scoredItem) ([]scoredItem, int) {
	if b.opts.PublishAllImportant {
		return ranked, 0
	}

	overallCap := dailyCap
	minItems := dailyMinItems
	perTopicLimit := b.opts.PerTopicLimitDaily
	if period == PeriodWeekly {
		overallCap = weeklyCap
		minItems = weeklyMin
		perTopicLimit = b.opts.PerTopicLimitWeekly
	}

	topicCount := map[filter.Topic]int{}
	chosen := map[int]bool{}
	skippedByTopic := map[int]bool{}
	var selected []scoredItem

	for i, s := range ranked {
		if len(selected) >= overallCap {
			break
		}
		if topicCount[s.topic] >= perTopicLimit {
			skippedByTopic[i] = true
			continue
		}
		selected = append(selected, s)
		chosen[i] = true
		topicCount[s.topic]++
	}

	if len(selected) < minItems {
		for i, s := range ranked {
			if len(selected) >= minItems {
				break
			}
			if chosen[i] {
				continue
			}
			selected = append(selected, s)
			chosen[i] = true
		}
	}

	removedByTopicLimit := 0
	for i := range skippedByTopic {
		if !chosen[i] {
			removedByTopicLimit++
		}
	}
	return selected, removedByTopicLimit
}

var titleStopWords = map[string]bool{
	"и": true, "в": true, "на": true, "по": true, "с": true,
	"к": true, "о": true, "для": true, "что": true,
}

// normalizeTitle lowercases, strips punctuation and drops stop words
// before similarity comparison.
func normalizeTitle(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}

	var tokens []string
	for _, token := range strings.Fields(b.String()) {
		if titleStopWords[token] {
			continue
		}
		tokens = append(tokens, token)
	}
	return strings.Join(tokens, " ")
}

var spaceRe = regexp.MustCompile(`\s+`)

// drySnippet collapses a summary onto one line and bounds it to 210
// runes, marking truncation with an ellipsis.
func drySnippet(summary string) string {
	text := strings.TrimSpace(strings.ReplaceAll(summary, "\n", " "))
	text = spaceRe.ReplaceAllString(text, " ")

	runes := []rune(text)
	if len(runes) > snippetMaxRunes {
		text = string(runes[:snippetMaxRunes-3]) + "..."
	}
	return text
}
