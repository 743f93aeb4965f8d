package source

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveBody(t *testing.T, contentType, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestExtract_Feed(t *testing.T) {
	rss := `<?xml version="1.0"?>
<rss version="2.0"><channel><title>wire</title>
<item>
  <title>Центробанк сохранил ставку</title>
  <link>https://example.com/rate</link>
  <guid>rate-2026-08</guid>
  <description>&lt;p&gt;Решение совета директоров.&lt;/p&gt;</description>
  <pubDate>Fri, 28 Aug 2026 10:00:00 +0000</pubDate>
  <category>economy</category>
</item>
<item>
  <link>https://example.com/no-title</link>
</item>
<item>
  <title></title>
</item>
</channel></rss>`
	server := serveBody(t, "application/rss+xml", rss)

	e := NewExtractor(5 * time.Second)
	result := e.Extract(context.Background(), Source{ID: 1, Name: "wire", Type: TypeFeed, URL: server.URL})
	require.NoError(t, result.Err)
	require.Len(t, result.Items, 2)

	first := result.Items[0]
	assert.Equal(t, "rate-2026-08", first.ExternalID)
	assert.Equal(t, "Центробанк сохранил ставку", first.Title)
	assert.Equal(t, "Решение совета директоров.", first.Summary)
	assert.Equal(t, "https://example.com/rate", first.URL)
	assert.Equal(t, time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC), first.PublishedAt)
	assert.Equal(t, []string{"economy"}, first.Tags)

	// No guid falls back to the link, no title gets the placeholder.
	second := result.Items[1]
	assert.Equal(t, "https://example.com/no-title", second.ExternalID)
	assert.Equal(t, "Без заголовка", second.Title)
}

const pageTemplate = `<html><body>
<article><h2>Первая новость</h2><p>Текст первой.</p><a href="/news/1">далее</a></article>
<article><h2>Вторая новость</h2><p>Текст второй.</p><a href="/news/2">далее</a></article>
<article><h2>Третья без ссылки</h2><p>Текст третьей.</p></article>
</body></html>`

func extIDsByTitle(items []RawItem) map[string]string {
	out := map[string]string{}
	for _, item := range items {
		out[item.Title] = item.ExternalID
	}
	return out
}

func TestExtract_PageIDsSurviveReordering(t *testing.T) {
	reordered := `<html><body>
<article><h2>Третья без ссылки</h2><p>Текст третьей.</p></article>
<article><h2>Вторая новость</h2><p>Текст второй.</p><a href="/news/2">далее</a></article>
<article><h2>Первая новость</h2><p>Текст первой.</p><a href="/news/1">далее</a></article>
</body></html>`

	// One host serving the page in its original order first, reordered on
	// the next poll.
	fetches := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fetches++
		if fetches == 1 {
			fmt.Fprint(w, pageTemplate)
			return
		}
		fmt.Fprint(w, reordered)
	}))
	t.Cleanup(server.Close)

	e := NewExtractor(5 * time.Second)
	src := Source{ID: 2, Name: "site", Type: TypePage, URL: server.URL}

	before := e.Extract(context.Background(), src)
	require.NoError(t, before.Err)
	require.Len(t, before.Items, 3)

	after := e.Extract(context.Background(), src)
	require.NoError(t, after.Err)
	require.Len(t, after.Items, 3)

	idsBefore := extIDsByTitle(before.Items)
	idsAfter := extIDsByTitle(after.Items)
	for title, id := range idsBefore {
		assert.Equal(t, id, idsAfter[title], "external id changed for %q", title)
	}
}

func TestExtract_PageResolvesRelativeLinks(t *testing.T) {
	server := serveBody(t, "text/html", pageTemplate)
	e := NewExtractor(5 * time.Second)
	result := e.Extract(context.Background(), Source{ID: 2, Type: TypePage, URL: server.URL})
	require.NoError(t, result.Err)
	require.Len(t, result.Items, 3)

	assert.Equal(t, server.URL+"/news/1", result.Items[0].URL)
	// The linkless node keeps the source URL and a text-derived id.
	assert.Equal(t, server.URL, result.Items[2].URL)
	assert.NotEmpty(t, result.Items[2].ExternalID)
}

func TestExtract_PageCustomSelectors(t *testing.T) {
	html := `<html><body>
<div class="card"><span class="head">Заголовок карточки</span><p>Описание.</p></div>
</body></html>`
	server := serveBody(t, "text/html", html)

	e := NewExtractor(5 * time.Second)
	result := e.Extract(context.Background(), Source{
		ID:   3,
		Type: TypePage,
		URL:  server.URL,
		Meta: map[string]string{"selector": "div.card", "title_selector": "span.head"},
	})
	require.NoError(t, result.Err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "Заголовок карточки", result.Items[0].Title)
}

func TestExtract_APIAlternativeKeys(t *testing.T) {
	payload := `{"items": [
		{"id": 101, "title": "Бюджет утверждён", "summary": "Подробности позже.", "url": "https://example.com/101", "published_at": "2026-08-28T10:00:00Z"},
		{"guid": "g-7", "name": "Санкции расширены", "description": "Новый пакет.", "date": "2026-08-27"},
		{"title": "Без идентификатора"}
	]}`
	server := serveBody(t, "application/json", payload)

	e := NewExtractor(5 * time.Second)
	result := e.Extract(context.Background(), Source{ID: 4, Type: TypeAPI, URL: server.URL})
	require.NoError(t, result.Err)
	require.Len(t, result.Items, 3)

	assert.Equal(t, "101", result.Items[0].ExternalID)
	assert.Equal(t, time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC), result.Items[0].PublishedAt)

	assert.Equal(t, "g-7", result.Items[1].ExternalID)
	assert.Equal(t, "Санкции расширены", result.Items[1].Title)
	assert.Equal(t, "Новый пакет.", result.Items[1].Summary)
	assert.Equal(t, time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC), result.Items[1].PublishedAt)

	// Missing id gets a synthesized one from source, position and title.
	assert.Equal(t, "4-2-Без идентификатора", result.Items[2].ExternalID)
}

func TestExtract_APIBareList(t *testing.T) {
	payload := `[{"id": "a-1", "title": "Новость"}]`
	server := serveBody(t, "application/json", payload)

	e := NewExtractor(5 * time.Second)
	result := e.Extract(context.Background(), Source{ID: 5, Type: TypeAPI, URL: server.URL})
	require.NoError(t, result.Err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "a-1", result.Items[0].ExternalID)
}

func TestExtract_FeedEntryCap(t *testing.T) {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0"?><rss version="2.0"><channel><title>big</title>`)
	for i := 0; i < maxFeedEntries+10; i++ {
		fmt.Fprintf(&sb, "<item><title>Новость %d</title><guid>id-%d</guid></item>", i, i)
	}
	sb.WriteString("</channel></rss>")
	server := serveBody(t, "application/rss+xml", sb.String())

	e := NewExtractor(5 * time.Second)
	result := e.Extract(context.Background(), Source{ID: 6, Type: TypeFeed, URL: server.URL})
	require.NoError(t, result.Err)
	assert.Len(t, result.Items, maxFeedEntries)
}

func TestExtract_FailureCapturedInResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	e := NewExtractor(5 * time.Second)
	result := e.Extract(context.Background(), Source{ID: 7, Type: TypePage, URL: server.URL})
	assert.Error(t, result.Err)
	assert.Empty(t, result.Items)
}
