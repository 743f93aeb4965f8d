package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// PeriodStats is the collection funnel for one reporting window.
type PeriodStats struct {
	PeriodStart      time.Time
	PeriodEnd        time.Time
	CollectedTotal   int
	CollectedBySrc   map[string]int
	RejectedTotal    int
	RejectedByReason map[string]int
	PublishedCount   int
	PublishedItems   int
	TopicTotals      map[string]int
}

// AcceptanceRate is accepted items over collected items, 0..1.
func (s PeriodStats) AcceptanceRate() float64 {
	if s.CollectedTotal == 0 {
		return 0
	}
	accepted := s.CollectedTotal - s.RejectedTotal
	if accepted < 0 {
		accepted = 0
	}
	return float64(accepted) / float64(s.CollectedTotal)
}

// ComputePeriodStats aggregates the funnel over [start, end).
func (r *Repository) ComputePeriodStats(ctx context.Context, start, end time.Time) (*PeriodStats, error) {
	stats := &PeriodStats{
		PeriodStart:      start,
		PeriodEnd:        end,
		CollectedBySrc:   map[string]int{},
		RejectedByReason: map[string]int{},
		TopicTotals:      map[string]int{},
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT COALESCE(s.name, 'source#' || rn.source_id), COUNT(*)
		FROM raw_news rn
		LEFT JOIN sources s ON s.id = rn.source_id
		WHERE rn.collected_at >= $1 AND rn.collected_at < $2
		GROUP BY 1
	`, start, end)
	if err != nil {
		return nil, fmt.Errorf("collected stats: %w", err)
	}
	for rows.Next() {
		var (
			name  string
			count int
		)
		if err := rows.Scan(&name, &count); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan collected stats: %w", err)
		}
		stats.CollectedBySrc[name] = count
		stats.CollectedTotal += count
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	rows, err = r.db.QueryContext(ctx, `
		SELECT reason, COUNT(*)
		FROM rejected_news
		WHERE rejected_at >= $1 AND rejected_at < $2
		GROUP BY reason
	`, start, end)
	if err != nil {
		return nil, fmt.Errorf("rejected stats: %w", err)
	}
	for rows.Next() {
		var (
			reason string
			count  int
		)
		if err := rows.Scan(&reason, &count); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan rejected stats: %w", err)
		}
		stats.RejectedByReason[reason] = count
		stats.RejectedTotal += count
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	rows, err = r.db.QueryContext(ctx, `
		SELECT items_count, topic_breakdown
		FROM published_news
		WHERE published_at >= $1 AND published_at < $2
	`, start, end)
	if err != nil {
		return nil, fmt.Errorf("published stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			itemsCount int
			topicRaw   []byte
		)
		if err := rows.Scan(&itemsCount, &topicRaw); err != nil {
			return nil, fmt.Errorf("scan published stats: %w", err)
		}
		stats.PublishedCount++
		stats.PublishedItems += itemsCount
		if len(topicRaw) > 0 {
			var topics map[string]int
			if err := json.Unmarshal(topicRaw, &topics); err != nil {
				return nil, fmt.Errorf("decode topic breakdown: %w", err)
			}
			for topic, count := range topics {
				stats.TopicTotals[topic] += count
			}
		}
	}
	return stats, rows.Err()
}

// DigestQuality is the quality snapshot of one published digest.
type DigestQuality struct {
	Metrics        map[string]interface{}
	TopicBreakdown map[string]int
	PublishedAt    time.Time
}

// LatestQuality returns the quality snapshot of the most recent
// published digest, or nil when nothing was published yet.
func (r *Repository) LatestQuality(ctx context.Context) (*DigestQuality, error) {
	var (
		qualityRaw  []byte
		topicRaw    []byte
		publishedAt time.Time
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT quality_metrics, topic_breakdown, published_at
		FROM published_news
		ORDER BY published_at DESC
		LIMIT 1
	`).Scan(&qualityRaw, &topicRaw, &publishedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest quality: %w", err)
	}

	out := &DigestQuality{PublishedAt: publishedAt}
	if len(qualityRaw) > 0 {
		if err := json.Unmarshal(qualityRaw, &out.Metrics); err != nil {
			return nil, fmt.Errorf("decode quality metrics: %w", err)
		}
	}
	if len(topicRaw) > 0 {
		if err := json.Unmarshal(topicRaw, &out.TopicBreakdown); err != nil {
			return nil, fmt.Errorf("decode topic breakdown: %w", err)
		}
	}
	return out, nil
}
