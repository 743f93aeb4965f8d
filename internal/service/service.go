// Package service orchestrates the pipeline: collect sources, classify
// and stage items, build period digests and deliver them to the channel.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/svodkanews/svodka/internal/config"
	"github.com/svodkanews/svodka/internal/digest"
	"github.com/svodkanews/svodka/internal/filter"
	"github.com/svodkanews/svodka/internal/llm"
	"github.com/svodkanews/svodka/internal/logger"
	"github.com/svodkanews/svodka/internal/metrics"
	"github.com/svodkanews/svodka/internal/source"
	"github.com/svodkanews/svodka/internal/storage"
	"github.com/svodkanews/svodka/internal/telegram"
)

type Service struct {
	cfg       *config.Config
	repo      *storage.Repository
	extractor *source.Extractor
	tg        *telegram.Client
	builder   *digest.Builder
	writer    *llm.Writer // nil when the LLM path is disabled
	log       *slog.Logger
}

func New(cfg *config.Config, repo *storage.Repository, tg *telegram.Client, writer *llm.Writer) *Service {
	return &Service{
		cfg:       cfg,
		repo:      repo,
		extractor: source.NewExtractor(cfg.FetchTimeout),
		tg:        tg,
		log:       logger.With("service"),
		builder: digest.NewBuilder(digest.Options{
			SimilarityThreshold: cfg.DedupSimilarityThreshold,
			PerTopicLimitDaily:  cfg.PerTopicLimitDaily,
			PerTopicLimitWeekly: cfg.PerTopicLimitWeekly,
			PublishAllImportant: cfg.PublishAllImportant,
		}),
		writer: writer,
	}
}

// PublishDaily builds and delivers the digest for today, local midnight
// up to now.
func (s *Service) PublishDaily(ctx context.Context) error {
	now := time.Now().In(s.cfg.Location())
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return s.publishPeriod(ctx, digest.PeriodDaily, start.UTC(), now.UTC(), s.cfg.MaxPeriodNewsDaily)
}

// PublishWeekly builds and delivers the digest for the trailing seven
// days, midnight six days ago up to now.
func (s *Service) PublishWeekly(ctx context.Context) error {
	now := time.Now().In(s.cfg.Location())
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	start := dayStart.AddDate(0, 0, -6)
	return s.publishPeriod(ctx, digest.PeriodWeekly, start.UTC(), now.UTC(), s.cfg.MaxPeriodNewsWeekly)
}

func (s *Service) publishPeriod(ctx context.Context, period digest.PeriodType, start, end time.Time, limit int) error {
	started := time.Now()

	items, err := s.repo.FetchItemsInPeriod(ctx, start, end, limit)
	if err != nil {
		metrics.Global.SetError(err.Error())
		return err
	}

	accepted := make([]source.RawItem, 0, len(items))
	rejectionReasons := map[string]int{}
	for _, item := range items {
		res := filter.Evaluate(item.Title, item.Summary)
		if res.Accepted {
			accepted = append(accepted, item)
			continue
		}
		rejectionReasons[res.Reason]++
		if err := s.repo.RecordRejection(ctx, item.ID, item.SourceID, res.Reason); err != nil {
			s.log.Error("failed to record rejection", "item_id", item.ID, "error", err)
		}
	}
	metrics.Global.AddItemsRejected(len(items) - len(accepted))

	output := s.builder.Build(period, accepted)
	if s.writer != nil && output.ItemsCount > 0 {
		if generated, err := s.writer.WriteDigest(ctx, period, accepted); err != nil {
			s.log.Warn("llm digest failed, using template", "error", err)
		} else {
			output.Title = generated.Title
			output.Body = generated.Body
		}
	}
	metrics.Global.AddDuplicatesFiltered(output.QualityMetrics["duplicates_removed"])

	report := s.tg.SendDigest(ctx, s.cfg.ChannelID, output.Title, output.Body)
	metrics.Global.AddMessagesSent(report.Sent)
	metrics.Global.AddFailedChunks(len(report.FailedChunks))
	if !report.Success() {
		s.log.Error("digest delivered partially",
			"period", string(period),
			"chunks", report.Chunks,
			"sent", report.Sent,
			"failed_chunks", report.FailedChunks)
	}
	if report.Sent == 0 && report.Chunks > 0 {
		metrics.Global.SetError(fmt.Sprintf("%s digest delivery failed entirely", period))
		return fmt.Errorf("%s digest: no chunk delivered", period)
	}

	quality := make(map[string]interface{}, len(output.QualityMetrics)+3)
	for key, value := range output.QualityMetrics {
		quality[key] = value
	}
	quality["fetched"] = len(items)
	quality["rejected"] = len(items) - len(accepted)
	quality["rejection_reasons"] = rejectionReasons

	record := storage.PublishedDigest{
		PeriodType:      string(period),
		PeriodStart:     start,
		PeriodEnd:       end,
		Title:           output.Title,
		Body:            output.Body,
		ItemsCount:      output.ItemsCount,
		SourceBreakdown: s.sourceBreakdown(ctx, accepted),
		TopicBreakdown:  output.TopicBreakdown,
		QualityMetrics:  quality,
	}
	if err := s.repo.RecordPublishedDigest(ctx, record); err != nil {
		s.log.Error("failed to persist published digest", "error", err)
	}

	metrics.Global.IncrementDigestsPublished()
	metrics.Global.RecordRunDuration(time.Since(started))
	metrics.Global.SetLastRun()

	s.log.Info("digest published",
		"period", string(period),
		"fetched", len(items),
		"accepted", len(accepted),
		"selected", output.ItemsCount,
		"chunks", report.Chunks,
		"duration", time.Since(started).Round(time.Millisecond))
	return nil
}

// sourceBreakdown counts accepted items per source name.
func (s *Service) sourceBreakdown(ctx context.Context, items []source.RawItem) map[string]int {
	names := map[int64]string{}
	if sources, err := s.repo.ListSources(ctx); err == nil {
		for _, src := range sources {
			names[src.ID] = src.Name
		}
	}

	breakdown := map[string]int{}
	for _, item := range items {
		name, ok := names[item.SourceID]
		if !ok {
			name = fmt.Sprintf("source#%d", item.SourceID)
		}
		breakdown[name]++
	}
	return breakdown
}
