// Package app wires the process together: config, storage, delivery,
// the scheduler and the admin bot.
package app

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/svodkanews/svodka/internal/bot"
	"github.com/svodkanews/svodka/internal/config"
	"github.com/svodkanews/svodka/internal/llm"
	"github.com/svodkanews/svodka/internal/logger"
	"github.com/svodkanews/svodka/internal/ratelimit"
	"github.com/svodkanews/svodka/internal/scheduler"
	"github.com/svodkanews/svodka/internal/service"
	"github.com/svodkanews/svodka/internal/storage"
	"github.com/svodkanews/svodka/internal/telegram"
)

func Run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger.Init(cfg.Debug)
	logger.Info("starting svodka", "timezone", cfg.Timezone, "llm_enabled", cfg.LLMEnabled)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, err := storage.New(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer repo.Close()

	tg := telegram.NewClient(cfg.TelegramToken, cfg.RetryAttempts, cfg.RetryDelay)

	var writer *llm.Writer
	if cfg.LLMEnabled {
		writer, err = llm.NewWriter(ctx, cfg.GeminiAPIKey, cfg.LLMModel, ratelimit.NewBudget(cfg.MaxLLMRequests))
		if err != nil {
			return err
		}
		defer writer.Close()
	}

	svc := service.New(cfg, repo, tg, writer)
	if err := svc.SeedSources(ctx); err != nil {
		logger.Error("source seeding failed", "error", err)
	}

	adminBot := bot.New(cfg, tg, repo, svc)
	go adminBot.Run(ctx)

	scheduler.New(cfg, svc).Run(ctx)
	return nil
}
