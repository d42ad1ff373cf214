package utils

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/adamspd/DesignQuizBot/models"
	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

// Environment utilities
func GetEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func GetEnvInt(key string, defaultValue int) int {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if intVal, err := cast.ToIntE(value); err == nil {
			return intVal
		}
		LogError("Invalid integer in %s=%q, using default %d", key, value, defaultValue)
	}
	return defaultValue
}

func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if d, err := cast.ToDurationE(value); err == nil && d > 0 {
			return d
		}
		LogError("Invalid duration in %s=%q, using default %v", key, value, defaultValue)
	}
	return defaultValue
}

// ParseIDList parses a comma or space separated list of chat ids.
func ParseIDList(raw string) ([]int64, error) {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == ';'
	})

	ids := make([]int64, 0, len(fields))
	for _, f := range fields {
		id, err := cast.ToInt64E(strings.TrimSpace(f))
		if err != nil {
			return nil, fmt.Errorf("invalid id %q: %w", f, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// LoadConfig reads configuration from the environment. A .env file in the
// working directory is loaded first when present; real environment values win.
func LoadConfig() (*models.Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		LogError("Failed to read .env file: %v", err)
	}

	admins, err := ParseIDList(os.Getenv("ADMIN_ID") + "," + os.Getenv("ADMIN_IDS"))
	if err != nil {
		return nil, fmt.Errorf("ADMIN_IDS: %w", err)
	}

	cfg := &models.Config{
		BotToken:   GetEnvOrDefault("BOT_TOKEN", ""),
		ChannelID:  GetEnvOrDefault("CHANNEL_ID", ""),
		ChannelURL: GetEnvOrDefault("CHANNEL_URL", ""),
		AdminIDs:   admins,

		DBPath:       GetEnvOrDefault("DB_PATH", "./quizbot.db"),
		QuestionsDir: GetEnvOrDefault("QUESTIONS_DIR", "./questions"),
		RedisURL:     GetEnvOrDefault("REDIS_URL", ""),

		TimeZone:   GetEnvOrDefault("TIME_ZONE", "Europe/Moscow"),
		DailyQuota: GetEnvInt("DAILY_QUOTA", 5),
		CacheTTL:   GetEnvDuration("CACHE_TTL", 5*time.Minute),

		DailyQuestionCron:  GetEnvOrDefault("DAILY_QUESTION_CRON", "0 11 * * *"),
		AdminHeartbeatCron: GetEnvOrDefault("ADMIN_HEARTBEAT_CRON", "0 10 * * *"),
		RolloverCron:       GetEnvOrDefault("ROLLOVER_CRON", "0 0 * * *"),
		CacheSweepCron:     GetEnvOrDefault("CACHE_SWEEP_CRON", "0 * * * *"),

		HTTPAddr:     GetEnvOrDefault("HTTP_ADDR", ""),
		OpsTokenHash: GetEnvOrDefault("OPS_TOKEN_HASH", ""),

		NextQuestionDelay: GetEnvDuration("NEXT_QUESTION_DELAY", 10*time.Second),
		LogMode:           GetEnvOrDefault("LOG_MODE", "dev"),
	}

	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ValidateConfig checks required values and resolves the time zone.
func ValidateConfig(cfg *models.Config) error {
	if cfg.BotToken == "" {
		return fmt.Errorf("BOT_TOKEN is required")
	}
	if len(cfg.AdminIDs) == 0 {
		return fmt.Errorf("at least one admin id is required (ADMIN_ID or ADMIN_IDS)")
	}
	if cfg.DailyQuota <= 0 {
		return fmt.Errorf("DAILY_QUOTA must be positive, got %d", cfg.DailyQuota)
	}

	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		return fmt.Errorf("TIME_ZONE %q: %w", cfg.TimeZone, err)
	}
	cfg.Location = loc
	return nil
}
