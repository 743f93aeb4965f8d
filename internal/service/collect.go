package service

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/svodkanews/svodka/internal/metrics"
	"github.com/svodkanews/svodka/internal/source"
)

// SeedSources loads the bootstrap source list from the YAML file and
// registers each entry. Already-known names are skipped.
func (s *Service) SeedSources(ctx context.Context) error {
	entries, err := source.LoadSeed(s.cfg.SourcesConfigPath)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	created := 0
	for _, entry := range entries {
		typ, _ := source.ParseType(entry.Type)
		src, err := s.repo.CreateSource(ctx, typ, entry.Name, entry.URL, entry.Meta)
		if err != nil {
			return err
		}
		if src != nil {
			created++
		}
	}
	s.log.Info("source seed applied", "entries", len(entries), "created", created)
	return nil
}

// CollectAndStore pulls every active source concurrently and stages the
// extracted items. A failing source never aborts the run; its error is
// logged and counted.
func (s *Service) CollectAndStore(ctx context.Context) error {
	started := time.Now()

	sources, err := s.repo.ListActiveSources(ctx)
	if err != nil {
		metrics.Global.SetError(err.Error())
		return err
	}
	if len(sources) == 0 {
		s.log.Info("no active sources, skipping collection")
		return nil
	}

	results := make([]source.Result, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.CollectConcurrency)
	for i, src := range sources {
		g.Go(func() error {
			results[i] = s.extractor.Extract(gctx, src)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	collected := 0
	stored := 0
	failed := 0
	for _, result := range results {
		if result.Err != nil {
			failed++
			metrics.Global.IncrementSourceFailures()
			s.log.Error("source collection failed", "source", result.Source.Name, "error", result.Err)
			continue
		}
		collected += len(result.Items)
		inserted, err := s.repo.InsertRawItems(ctx, result.Items)
		if err != nil {
			metrics.Global.SetError(err.Error())
			return err
		}
		stored += inserted
	}

	metrics.Global.AddItemsCollected(collected)
	metrics.Global.AddItemsStored(stored)
	metrics.Global.RecordRunDuration(time.Since(started))
	metrics.Global.SetLastRun()

	s.log.Info("collection finished",
		"sources", len(sources),
		"failed", failed,
		"collected", collected,
		"stored", stored,
		"duration", time.Since(started).Round(time.Millisecond))
	return nil
}
