package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"media-fetch-tg/internal/types"
)

const defaultDashboardURL = "https://api.base44.com"

//nolint:govet // disable field alignment for better reading
type Config struct {
	Verbose          bool
	TgBotToken       string
	TgBotEndpoint    string
	DashboardURL     string
	DashboardAppID   string
	DashboardAPIKey  string
	AdminIDs         []int64
	Workers          int
	ExtractTimeout   time.Duration
	DatabaseFilepath string
	MediaFolder      string
}

func Read() (*Config, error) {
	cfg := &Config{}
	cfg.Verbose = os.Getenv("VERBOSE") == "1"
	cfg.TgBotToken = os.Getenv("TG_BOT_TOKEN")
	if cfg.TgBotToken == "" {
		return nil, fmt.Errorf("TG_BOT_TOKEN env is required: %w", types.ErrInternal)
	}
	cfg.TgBotEndpoint = os.Getenv("TG_BOT_ENDPOINT")
	cfg.DashboardURL = os.Getenv("DASHBOARD_API_URL")
	if cfg.DashboardURL == "" {
		cfg.DashboardURL = defaultDashboardURL
	}
	cfg.DashboardAppID = os.Getenv("DASHBOARD_APP_ID")
	if cfg.DashboardAppID == "" {
		return nil, fmt.Errorf("DASHBOARD_APP_ID env is required: %w", types.ErrInternal)
	}
	cfg.DashboardAPIKey = os.Getenv("DASHBOARD_API_KEY")
	if cfg.DashboardAPIKey == "" {
		return nil, fmt.Errorf("DASHBOARD_API_KEY env is required: %w", types.ErrInternal)
	}
	for _, raw := range strings.Split(os.Getenv("ADMIN_IDS"), ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse ADMIN_IDS env: %w", types.ErrInternal)
		}
		cfg.AdminIDs = append(cfg.AdminIDs, id)
	}
	rawWorkers := os.Getenv("WORKERS")
	if rawWorkers == "" {
		rawWorkers = "3"
	}
	workers, err := strconv.Atoi(rawWorkers)
	if err != nil || workers < 1 {
		return nil, fmt.Errorf("failed to parse WORKERS env: %w", types.ErrInternal)
	}
	cfg.Workers = workers
	rawTimeout := os.Getenv("EXTRACT_TIMEOUT_MINUTES")
	if rawTimeout == "" {
		rawTimeout = "15"
	}
	minutes, err := strconv.Atoi(rawTimeout)
	if err != nil || minutes < 1 {
		return nil, fmt.Errorf("failed to parse EXTRACT_TIMEOUT_MINUTES env: %w", types.ErrInternal)
	}
	cfg.ExtractTimeout = time.Duration(minutes) * time.Minute
	cfg.DatabaseFilepath = os.Getenv("DATABASE_FILEPATH")
	if cfg.DatabaseFilepath == "" {
		cfg.DatabaseFilepath = "media_fetch_tg.db"
	}
	cfg.MediaFolder = os.Getenv("MEDIA_FOLDER")
	if cfg.MediaFolder == "" {
		cfg.MediaFolder = "media"
	}
	return cfg, nil
}
