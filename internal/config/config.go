// Package config loads all runtime settings from the environment once at
// startup; the resulting value is passed into constructors explicitly.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Telegram settings
	TelegramToken string
	ChannelID     string
	AdminUserIDs  []int64

	// Database settings
	DatabaseURL string

	// Schedule settings
	Timezone          string
	CollectInterval   time.Duration
	DailyPublishHour  int
	WeeklyPublishHour int

	// Collection settings
	FetchTimeout       time.Duration
	CollectConcurrency int
	SourcesConfigPath  string

	// Digest settings
	DedupSimilarityThreshold float64
	PerTopicLimitDaily       int
	PerTopicLimitWeekly      int
	MaxPeriodNewsDaily       int
	MaxPeriodNewsWeekly      int
	PublishAllImportant      bool

	// LLM settings
	LLMEnabled     bool
	GeminiAPIKey   string
	LLMModel       string
	MaxLLMRequests int // maximum LLM requests per day (0 = unlimited)

	// App settings
	Debug         bool
	RetryAttempts int
	RetryDelay    time.Duration
}

func Load() (*Config, error) {
	cfg := &Config{
		Timezone:                 "Asia/Vladivostok",
		CollectInterval:          30 * time.Minute,
		DailyPublishHour:         21,
		WeeklyPublishHour:        21,
		FetchTimeout:             20 * time.Second,
		CollectConcurrency:       4,
		SourcesConfigPath:        "configs/sources.yaml",
		DedupSimilarityThreshold: 0.82,
		PerTopicLimitDaily:       3,
		PerTopicLimitWeekly:      4,
		MaxPeriodNewsDaily:       400,
		MaxPeriodNewsWeekly:      1200,
		LLMModel:                 "gemini-1.5-flash",
		MaxLLMRequests:           5,
		RetryAttempts:            3,
		RetryDelay:               5 * time.Second,
	}

	cfg.TelegramToken = os.Getenv("BOT_TOKEN")
	cfg.ChannelID = os.Getenv("CHANNEL_ID")
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")

	if ids := os.Getenv("ADMIN_USER_IDS"); ids != "" {
		parsed, err := parseAdminIDs(ids)
		if err != nil {
			return nil, err
		}
		cfg.AdminUserIDs = parsed
	}

	if tz := os.Getenv("TIMEZONE"); tz != "" {
		cfg.Timezone = tz
	}
	if path := os.Getenv("SOURCES_CONFIG_PATH"); path != "" {
		cfg.SourcesConfigPath = path
	}

	if v := os.Getenv("COLLECT_INTERVAL_MINUTES"); v != "" {
		if minutes, err := strconv.Atoi(v); err == nil && minutes > 0 {
			cfg.CollectInterval = time.Duration(minutes) * time.Minute
		}
	}
	cfg.DailyPublishHour = getEnvIntOrDefault("DAILY_PUBLISH_HOUR", cfg.DailyPublishHour)
	cfg.WeeklyPublishHour = getEnvIntOrDefault("WEEKLY_PUBLISH_HOUR", cfg.WeeklyPublishHour)

	if v := os.Getenv("FETCH_TIMEOUT_SECONDS"); v != "" {
		if val, err := strconv.Atoi(v); err == nil && val > 0 {
			cfg.FetchTimeout = time.Duration(val) * time.Second
		}
	}
	cfg.CollectConcurrency = getEnvIntOrDefault("COLLECT_CONCURRENCY", cfg.CollectConcurrency)

	if v := os.Getenv("DEDUP_SIMILARITY_THRESHOLD"); v != "" {
		if val, err := strconv.ParseFloat(v, 64); err == nil && val > 0 && val <= 1 {
			cfg.DedupSimilarityThreshold = val
		}
	}
	cfg.PerTopicLimitDaily = getEnvIntOrDefault("PER_TOPIC_LIMIT_DAILY", cfg.PerTopicLimitDaily)
	cfg.PerTopicLimitWeekly = getEnvIntOrDefault("PER_TOPIC_LIMIT_WEEKLY", cfg.PerTopicLimitWeekly)
	cfg.MaxPeriodNewsDaily = getEnvIntOrDefault("MAX_PERIOD_NEWS_DAILY", cfg.MaxPeriodNewsDaily)
	cfg.MaxPeriodNewsWeekly = getEnvIntOrDefault("MAX_PERIOD_NEWS_WEEKLY", cfg.MaxPeriodNewsWeekly)

	if os.Getenv("PUBLISH_ALL_IMPORTANT") == "true" {
		cfg.PublishAllImportant = true
	}
	if os.Getenv("LLM_ENABLED") == "true" {
		cfg.LLMEnabled = true
	}
	if model := os.Getenv("LLM_MODEL"); model != "" {
		cfg.LLMModel = model
	}
	cfg.MaxLLMRequests = getEnvIntOrDefault("MAX_LLM_REQUESTS", cfg.MaxLLMRequests)

	if os.Getenv("DEBUG") == "true" {
		cfg.Debug = true
	}
	cfg.RetryAttempts = getEnvIntOrDefault("RETRY_ATTEMPTS", cfg.RetryAttempts)
	if v := os.Getenv("RETRY_DELAY_SECONDS"); v != "" {
		if val, err := strconv.Atoi(v); err == nil && val > 0 {
			cfg.RetryDelay = time.Duration(val) * time.Second
		}
	}

	return cfg, cfg.Validate()
}

func parseAdminIDs(raw string) ([]int64, error) {
	var out []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("ADMIN_USER_IDS: bad id %q: %w", part, err)
		}
		out = append(out, id)
	}
	return out, nil
}

// IsAdmin reports whether the given Telegram user may run admin commands.
func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.AdminUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// Location resolves the configured timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func (c *Config) Validate() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("BOT_TOKEN is required")
	}
	if c.ChannelID == "" {
		return fmt.Errorf("CHANNEL_ID is required")
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.LLMEnabled && c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required when LLM_ENABLED=true")
	}
	if c.DailyPublishHour < 0 || c.DailyPublishHour > 23 {
		return fmt.Errorf("DAILY_PUBLISH_HOUR must be within 0..23")
	}
	if c.WeeklyPublishHour < 0 || c.WeeklyPublishHour > 23 {
		return fmt.Errorf("WEEKLY_PUBLISH_HOUR must be within 0..23")
	}
	return nil
}
