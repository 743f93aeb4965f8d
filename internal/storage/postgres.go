// Package storage owns persistence: configured sources, staged raw
// items, rejection audit rows and published digests, all in PostgreSQL.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/svodkanews/svodka/internal/logger"
	"github.com/svodkanews/svodka/internal/source"
)

type Repository struct {
	db *sql.DB
}

func New(connectionString string) (*Repository, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	repo := &Repository{db: db}
	if err := repo.initSchema(); err != nil {
		return nil, fmt.Errorf("init schema: %w", err)
	}

	logger.Info("postgres storage connected")
	return repo, nil
}

func (r *Repository) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sources (
		id SERIAL PRIMARY KEY,
		name VARCHAR(255) UNIQUE NOT NULL,
		type VARCHAR(32) NOT NULL,
		url VARCHAR(1024) NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		meta JSONB NOT NULL DEFAULT '{}',
		created_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS raw_news (
		id SERIAL PRIMARY KEY,
		source_id INTEGER NOT NULL,
		title VARCHAR(1024) NOT NULL,
		summary TEXT NOT NULL,
		url VARCHAR(1024) NOT NULL,
		external_id VARCHAR(512) NOT NULL,
		published_at TIMESTAMP NOT NULL,
		collected_at TIMESTAMP NOT NULL DEFAULT NOW(),
		tags JSONB NOT NULL DEFAULT '[]',
		CONSTRAINT uix_source_external UNIQUE (source_id, external_id)
	);

	CREATE INDEX IF NOT EXISTS idx_raw_news_published_at ON raw_news(published_at);

	CREATE TABLE IF NOT EXISTS rejected_news (
		id SERIAL PRIMARY KEY,
		raw_news_id INTEGER NOT NULL,
		source_id INTEGER NOT NULL,
		reason VARCHAR(255) NOT NULL,
		rejected_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_rejected_news_rejected_at ON rejected_news(rejected_at);

	CREATE TABLE IF NOT EXISTS published_news (
		id SERIAL PRIMARY KEY,
		period_type VARCHAR(16) NOT NULL,
		period_start TIMESTAMP NOT NULL,
		period_end TIMESTAMP NOT NULL,
		title VARCHAR(255) NOT NULL,
		body TEXT NOT NULL,
		items_count INTEGER NOT NULL,
		source_breakdown JSONB NOT NULL DEFAULT '{}',
		topic_breakdown JSONB NOT NULL DEFAULT '{}',
		quality_metrics JSONB NOT NULL DEFAULT '{}',
		published_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_published_news_published_at ON published_news(published_at);
	`

	if _, err := r.db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// ListActiveSources returns sources eligible for collection.
func (r *Repository) ListActiveSources(ctx context.Context) ([]source.Source, error) {
	return r.listSources(ctx, `SELECT id, name, type, url, is_active, meta, created_at FROM sources WHERE is_active ORDER BY id`)
}

// ListSources returns every configured source, active or not.
func (r *Repository) ListSources(ctx context.Context) ([]source.Source, error) {
	return r.listSources(ctx, `SELECT id, name, type, url, is_active, meta, created_at FROM sources ORDER BY id`)
}

func (r *Repository) listSources(ctx context.Context, query string) ([]source.Source, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	defer rows.Close()

	var out []source.Source
	for rows.Next() {
		var (
			s       source.Source
			typeRaw string
			metaRaw []byte
		)
		if err := rows.Scan(&s.ID, &s.Name, &typeRaw, &s.URL, &s.Active, &metaRaw, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		typ, ok := source.ParseType(typeRaw)
		if !ok {
			logger.Warn("skipping source with unknown type", "id", s.ID, "type", typeRaw)
			continue
		}
		s.Type = typ
		if len(metaRaw) > 0 {
			if err := json.Unmarshal(metaRaw, &s.Meta); err != nil {
				return nil, fmt.Errorf("decode source meta: %w", err)
			}
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// CreateSource inserts a new source. A duplicate name is absorbed: the
// method returns (nil, nil) and no row is created.
func (r *Repository) CreateSource(ctx context.Context, typ source.Type, name, url string, meta map[string]string) (*source.Source, error) {
	if meta == nil {
		meta = map[string]string{}
	}
	metaRaw, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encode meta: %w", err)
	}

	var (
		id        int64
		createdAt time.Time
	)
	err = r.db.QueryRowContext(ctx, `
		INSERT INTO sources (name, type, url, meta)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO NOTHING
		RETURNING id, created_at
	`, name, typ.String(), url, metaRaw).Scan(&id, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("create source: %w", err)
	}

	return &source.Source{
		ID:        id,
		Name:      name,
		Type:      typ,
		URL:       url,
		Active:    true,
		Meta:      meta,
		CreatedAt: createdAt,
	}, nil
}

// RemoveSource hard-deletes a source. Collected items are kept.
func (r *Repository) RemoveSource(ctx context.Context, id int64) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM sources WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("remove source: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// InsertRawItems stages collected items. Colliding (source, external id)
// pairs are silently absorbed by the unique constraint; the return value
// is the number of rows actually inserted.
func (r *Repository) InsertRawItems(ctx context.Context, items []source.RawItem) (int, error) {
	inserted := 0
	for _, item := range items {
		tagsRaw, err := json.Marshal(item.Tags)
		if err != nil {
			return inserted, fmt.Errorf("encode tags: %w", err)
		}
		result, err := r.db.ExecContext(ctx, `
			INSERT INTO raw_news (source_id, title, summary, url, external_id, published_at, collected_at, tags)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (source_id, external_id) DO NOTHING
		`, item.SourceID, item.Title, item.Summary, item.URL, item.ExternalID, item.PublishedAt, item.CollectedAt, tagsRaw)
		if err != nil {
			return inserted, fmt.Errorf("insert raw item: %w", err)
		}
		if n, err := result.RowsAffected(); err == nil && n > 0 {
			inserted++
		}
	}
	return inserted, nil
}

// FetchItemsInPeriod materializes raw items published in [start, end).
func (r *Repository) FetchItemsInPeriod(ctx context.Context, start, end time.Time, limit int) ([]source.RawItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, source_id, title, summary, url, external_id, published_at, collected_at, tags
		FROM raw_news
		WHERE published_at >= $1 AND published_at < $2
		ORDER BY published_at DESC
		LIMIT $3
	`, start, end, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch period items: %w", err)
	}
	defer rows.Close()

	var out []source.RawItem
	for rows.Next() {
		var (
			item    source.RawItem
			tagsRaw []byte
		)
		if err := rows.Scan(&item.ID, &item.SourceID, &item.Title, &item.Summary, &item.URL,
			&item.ExternalID, &item.PublishedAt, &item.CollectedAt, &tagsRaw); err != nil {
			return nil, fmt.Errorf("scan raw item: %w", err)
		}
		if len(tagsRaw) > 0 {
			if err := json.Unmarshal(tagsRaw, &item.Tags); err != nil {
				return nil, fmt.Errorf("decode tags: %w", err)
			}
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// RecordRejection stores one classifier rejection for the stats funnel.
func (r *Repository) RecordRejection(ctx context.Context, rawNewsID, sourceID int64, reason string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO rejected_news (raw_news_id, source_id, reason)
		VALUES ($1, $2, $3)
	`, rawNewsID, sourceID, reason)
	if err != nil {
		return fmt.Errorf("record rejection: %w", err)
	}
	return nil
}

// PublishedDigest is the persisted outcome of one digest build.
type PublishedDigest struct {
	PeriodType      string
	PeriodStart     time.Time
	PeriodEnd       time.Time
	Title           string
	Body            string
	ItemsCount      int
	SourceBreakdown map[string]int
	TopicBreakdown  map[string]int
	QualityMetrics  map[string]interface{}
}

// RecordPublishedDigest persists one published digest record.
func (r *Repository) RecordPublishedDigest(ctx context.Context, d PublishedDigest) error {
	sourceRaw, err := json.Marshal(d.SourceBreakdown)
	if err != nil {
		return fmt.Errorf("encode source breakdown: %w", err)
	}
	topicRaw, err := json.Marshal(d.TopicBreakdown)
	if err != nil {
		return fmt.Errorf("encode topic breakdown: %w", err)
	}
	qualityRaw, err := json.Marshal(d.QualityMetrics)
	if err != nil {
		return fmt.Errorf("encode quality metrics: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO published_news (period_type, period_start, period_end, title, body, items_count, source_breakdown, topic_breakdown, quality_metrics)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, d.PeriodType, d.PeriodStart, d.PeriodEnd, d.Title, d.Body, d.ItemsCount, sourceRaw, topicRaw, qualityRaw)
	if err != nil {
		return fmt.Errorf("record published digest: %w", err)
	}
	return nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}
