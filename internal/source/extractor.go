package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/svodkanews/svodka/internal/logger"
)

const (
	maxFeedEntries = 80
	maxPageNodes   = 50
	maxAPIEntries  = 80

	maxTitleLen      = 1024
	maxSummaryLen    = 4000
	maxExternalIDLen = 500
)

// Extractor fetches one source and normalizes its payload into RawItems.
type Extractor struct {
	client *http.Client
	parser *gofeed.Parser
}

func NewExtractor(timeout time.Duration) *Extractor {
	client := &http.Client{Timeout: timeout}
	parser := gofeed.NewParser()
	parser.Client = client
	return &Extractor{client: client, parser: parser}
}

// Extract never returns an error to the caller: any failure is captured
// in the Result so one broken source cannot poison a collection pass.
func (e *Extractor) Extract(ctx context.Context, src Source) Result {
	var (
		items []RawItem
		err   error
	)

	switch src.Type {
	case TypeFeed:
		items, err = e.extractFeed(ctx, src)
	case TypePage:
		items, err = e.extractPage(ctx, src)
	case TypeAPI:
		items, err = e.extractAPI(ctx, src)
	default:
		err = fmt.Errorf("unknown source type %d", src.Type)
	}

	if err != nil {
		logger.Warn("source extraction failed", "source_id", src.ID, "name", src.Name, "err", err)
		return Result{Source: src, Err: err}
	}
	return Result{Source: src, Items: items}
}

func (e *Extractor) extractFeed(ctx context.Context, src Source) ([]RawItem, error) {
	feed, err := e.parser.ParseURLWithContext(src.URL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	now := time.Now().UTC()
	var out []RawItem
	for i, entry := range feed.Items {
		if i >= maxFeedEntries {
			break
		}

		// Identifier priority: id, link, title. No identifier, no item.
		extID := entry.GUID
		if extID == "" {
			extID = entry.Link
		}
		if extID == "" {
			extID = entry.Title
		}
		if extID == "" {
			continue
		}

		published := now
		if entry.PublishedParsed != nil {
			published = entry.PublishedParsed.UTC()
		} else if entry.UpdatedParsed != nil {
			published = entry.UpdatedParsed.UTC()
		} else if raw := firstNonEmpty(entry.Published, entry.Updated); raw != "" {
			published = parseWhen(raw, now)
		}

		link := entry.Link
		if link == "" {
			link = src.URL
		}

		out = append(out, RawItem{
			SourceID:    src.ID,
			Title:       truncateRunes(firstNonEmpty(entry.Title, "Без заголовка"), maxTitleLen),
			Summary:     truncateRunes(stripMarkup(entry.Description), maxSummaryLen),
			URL:         link,
			ExternalID:  truncateRunes(extID, maxExternalIDLen),
			PublishedAt: published,
			CollectedAt: now,
			Tags:        append([]string(nil), entry.Categories...),
		})
	}
	return out, nil
}

func (e *Extractor) extractPage(ctx context.Context, src Source) ([]RawItem, error) {
	body, err := e.get(ctx, src.URL)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	selector := metaOrDefault(src, "selector", "article")
	titleSelector := metaOrDefault(src, "title_selector", "h1, h2, h3")

	now := time.Now().UTC()
	var out []RawItem
	doc.Find(selector).EachWithBreak(func(i int, node *goquery.Selection) bool {
		if i >= maxPageNodes {
			return false
		}

		title := strings.TrimSpace(node.Find(titleSelector).First().Text())
		if title == "" {
			title = collapseWhitespace(node.Text())
		}
		title = truncateRunes(collapseWhitespace(title), maxTitleLen)
		if title == "" {
			return true
		}

		summary := truncateRunes(collapseWhitespace(node.Text()), maxSummaryLen)

		// Identity is derived from the first link inside the node (or from
		// the text when there is none), so sibling reordering between polls
		// does not mint new external ids.
		itemURL := src.URL
		var extID string
		if href, ok := node.Find("a[href]").First().Attr("href"); ok && strings.TrimSpace(href) != "" {
			resolved := resolveLink(src.URL, href)
			itemURL = resolved
			extID = linkExternalID(resolved)
		} else {
			extID = textExternalID(title, summary)
		}

		out = append(out, RawItem{
			SourceID:    src.ID,
			Title:       title,
			Summary:     summary,
			URL:         itemURL,
			ExternalID:  extID,
			PublishedAt: now,
			CollectedAt: now,
			Tags:        []string{},
		})
		return true
	})
	return out, nil
}

// flexString tolerates ids that arrive as either JSON strings or numbers.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// apiEntry covers the alternative key names seen across JSON endpoints.
type apiEntry struct {
	ID          flexString `json:"id"`
	GUID        string     `json:"guid"`
	Title       string     `json:"title"`
	Name        string     `json:"name"`
	Summary     string     `json:"summary"`
	Description string     `json:"description"`
	URL         string     `json:"url"`
	PublishedAt string     `json:"published_at"`
	Date        string     `json:"date"`
	Tags        []string   `json:"tags"`
}

func (e *Extractor) extractAPI(ctx context.Context, src Source) ([]RawItem, error) {
	body, err := e.get(ctx, src.URL)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}

	// Either a bare list or an object with an "items" list.
	var entries []apiEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		var wrapped struct {
			Items []apiEntry `json:"items"`
		}
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
		entries = wrapped.Items
	}

	now := time.Now().UTC()
	var out []RawItem
	for i, entry := range entries {
		if i >= maxAPIEntries {
			break
		}

		title := firstNonEmpty(entry.Title, entry.Name, "Без заголовка")
		summary := firstNonEmpty(entry.Summary, entry.Description)

		extID := firstNonEmpty(string(entry.ID), entry.GUID)
		if extID == "" {
			extID = fmt.Sprintf("%d-%d-%s", src.ID, i, truncateRunes(title, 32))
		}

		out = append(out, RawItem{
			SourceID:    src.ID,
			Title:       truncateRunes(title, maxTitleLen),
			Summary:     truncateRunes(summary, maxSummaryLen),
			URL:         firstNonEmpty(entry.URL, src.URL),
			ExternalID:  truncateRunes(extID, maxExternalIDLen),
			PublishedAt: parseWhen(firstNonEmpty(entry.PublishedAt, entry.Date), now),
			CollectedAt: now,
			Tags:        append([]string(nil), entry.Tags...),
		})
	}
	return out, nil
}

func (e *Extractor) get(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch: status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

func resolveLink(base, href string) string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return href
	}
	hrefURL, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return href
	}
	return baseURL.ResolveReference(hrefURL).String()
}

func metaOrDefault(src Source, key, fallback string) string {
	if v, ok := src.Meta[key]; ok && strings.TrimSpace(v) != "" {
		return v
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
