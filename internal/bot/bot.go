// Package bot is the admin command surface: source management, funnel
// stats and manual digest triggers over Telegram long polling.
package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/svodkanews/svodka/internal/config"
	"github.com/svodkanews/svodka/internal/logger"
	"github.com/svodkanews/svodka/internal/service"
	"github.com/svodkanews/svodka/internal/source"
	"github.com/svodkanews/svodka/internal/storage"
	"github.com/svodkanews/svodka/internal/telegram"
)

const pollTimeout = 30 * time.Second

type Bot struct {
	cfg  *config.Config
	tg   *telegram.Client
	repo *storage.Repository
	svc  *service.Service
}

func New(cfg *config.Config, tg *telegram.Client, repo *storage.Repository, svc *service.Service) *Bot {
	return &Bot{cfg: cfg, tg: tg, repo: repo, svc: svc}
}

// Run polls for updates until the context is cancelled.
func (b *Bot) Run(ctx context.Context) {
	logger.Info("admin bot started", "admins", len(b.cfg.AdminUserIDs))

	var offset int64
	for {
		select {
		case <-ctx.Done():
			logger.Info("admin bot stopped")
			return
		default:
		}

		updates, err := b.tg.GetUpdates(ctx, offset, pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("poll updates failed", "error", err)
			time.Sleep(5 * time.Second)
			continue
		}

		for _, update := range updates {
			offset = update.UpdateID + 1
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update telegram.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil || !strings.HasPrefix(msg.Text, "/") {
		return
	}
	if !b.cfg.IsAdmin(msg.From.ID) {
		logger.Warn("command from non-admin ignored", "user_id", msg.From.ID)
		return
	}

	fields := strings.Fields(msg.Text)
	command := strings.ToLower(fields[0])
	if at := strings.Index(command, "@"); at > 0 {
		command = command[:at]
	}
	args := fields[1:]

	var reply string
	switch command {
	case "/start", "/help":
		reply = helpText
	case "/addsource":
		reply = b.addSource(ctx, args)
	case "/removesource":
		reply = b.removeSource(ctx, args)
	case "/sources":
		reply = b.listSources(ctx)
	case "/stat":
		reply = b.periodStats(ctx, "Статистика за сегодня", b.todayStart(), time.Now().UTC())
	case "/statweek":
		reply = b.periodStats(ctx, "Статистика за неделю", b.weekStart(), time.Now().UTC())
	case "/quality":
		reply = b.latestQuality(ctx)
	case "/digest":
		if err := b.svc.PublishDaily(ctx); err != nil {
			reply = "Ошибка публикации: " + err.Error()
		} else {
			reply = "Дайджест опубликован."
		}
	default:
		reply = "Неизвестная команда. /help"
	}

	chatID := strconv.FormatInt(msg.Chat.ID, 10)
	if err := b.tg.SendText(ctx, chatID, reply); err != nil {
		logger.Error("failed to reply", "command", command, "error", err)
	}
}

const helpText = `Команды:
/addsource <тип> <имя> <url> [json-meta] - добавить источник (rss, site, api)
/removesource <id> - удалить источник
/sources - список источников
/stat - статистика за сегодня
/statweek - статистика за неделю
/quality - метрики последнего дайджеста
/digest - опубликовать дневной дайджест сейчас`

func (b *Bot) addSource(ctx context.Context, args []string) string {
	if len(args) < 3 {
		return "Формат: /addsource <тип> <имя> <url> [json-meta]"
	}

	typ, ok := source.ParseType(args[0])
	if !ok {
		return "Неизвестный тип источника: " + args[0] + ". Допустимо: rss, site, api."
	}

	meta := map[string]string{}
	if len(args) > 3 {
		raw := strings.Join(args[3:], " ")
		if err := json.Unmarshal([]byte(raw), &meta); err != nil {
			return "Некорректный JSON в meta: " + err.Error()
		}
	}

	src, err := b.repo.CreateSource(ctx, typ, args[1], args[2], meta)
	if err != nil {
		return "Ошибка добавления источника: " + err.Error()
	}
	if src == nil {
		return "Источник с именем " + args[1] + " уже существует."
	}
	return fmt.Sprintf("Источник добавлен: #%d %s (%s)", src.ID, src.Name, src.Type)
}

func (b *Bot) removeSource(ctx context.Context, args []string) string {
	if len(args) != 1 {
		return "Формат: /removesource <id>"
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return "Некорректный id: " + args[0]
	}

	removed, err := b.repo.RemoveSource(ctx, id)
	if err != nil {
		return "Ошибка удаления источника: " + err.Error()
	}
	if !removed {
		return fmt.Sprintf("Источник #%d не найден.", id)
	}
	return fmt.Sprintf("Источник #%d удалён.", id)
}

func (b *Bot) listSources(ctx context.Context) string {
	sources, err := b.repo.ListSources(ctx)
	if err != nil {
		return "Ошибка: " + err.Error()
	}
	if len(sources) == 0 {
		return "Источники не настроены."
	}

	var sb strings.Builder
	sb.WriteString("Источники:\n")
	for _, src := range sources {
		state := "активен"
		if !src.Active {
			state = "выключен"
		}
		fmt.Fprintf(&sb, "#%d [%s] %s - %s (%s)\n", src.ID, src.Type, src.Name, src.URL, state)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (b *Bot) periodStats(ctx context.Context, title string, start, end time.Time) string {
	stats, err := b.repo.ComputePeriodStats(ctx, start, end)
	if err != nil {
		return "Ошибка: " + err.Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\n", title)
	fmt.Fprintf(&sb, "Собрано: %d\n", stats.CollectedTotal)
	fmt.Fprintf(&sb, "Отклонено: %d\n", stats.RejectedTotal)
	fmt.Fprintf(&sb, "Доля принятых: %.0f%%\n", stats.AcceptanceRate()*100)
	fmt.Fprintf(&sb, "Опубликовано дайджестов: %d (%d пунктов)\n", stats.PublishedCount, stats.PublishedItems)

	if len(stats.CollectedBySrc) > 0 {
		sb.WriteString("По источникам:\n")
		for _, name := range sortedKeys(stats.CollectedBySrc) {
			fmt.Fprintf(&sb, "  %s: %d\n", name, stats.CollectedBySrc[name])
		}
	}
	if len(stats.RejectedByReason) > 0 {
		sb.WriteString("Причины отклонения:\n")
		for _, reason := range sortedKeys(stats.RejectedByReason) {
			fmt.Fprintf(&sb, "  %s: %d\n", reason, stats.RejectedByReason[reason])
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (b *Bot) latestQuality(ctx context.Context) string {
	quality, err := b.repo.LatestQuality(ctx)
	if err != nil {
		return "Ошибка: " + err.Error()
	}
	if quality == nil {
		return "Дайджесты ещё не публиковались."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Метрики дайджеста от %s\n", quality.PublishedAt.Format("2006-01-02 15:04"))
	for _, key := range sortedAnyKeys(quality.Metrics) {
		fmt.Fprintf(&sb, "%s: %v\n", key, quality.Metrics[key])
	}
	if len(quality.TopicBreakdown) > 0 {
		sb.WriteString("По темам:\n")
		for _, topic := range sortedKeys(quality.TopicBreakdown) {
			fmt.Fprintf(&sb, "  %s: %d\n", topic, quality.TopicBreakdown[topic])
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (b *Bot) todayStart() time.Time {
	now := time.Now().In(b.cfg.Location())
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).UTC()
}

// weekStart is midnight of the current calendar week's Monday.
func (b *Bot) weekStart() time.Time {
	now := time.Now().In(b.cfg.Location())
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	back := (int(now.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -back).UTC()
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func sortedAnyKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
