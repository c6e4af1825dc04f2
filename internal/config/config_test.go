package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"media-fetch-tg/internal/config"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("TG_BOT_TOKEN", "token")
	t.Setenv("DASHBOARD_APP_ID", "app-id")
	t.Setenv("DASHBOARD_API_KEY", "api-key")
}

func TestReadDefaults(t *testing.T) {
	r := require.New(t)
	setRequired(t)

	cfg, err := config.Read()
	r.NoError(err)
	r.Equal("token", cfg.TgBotToken)
	r.Equal("https://api.base44.com", cfg.DashboardURL)
	r.Equal(3, cfg.Workers)
	r.Equal(15*time.Minute, cfg.ExtractTimeout)
	r.Equal("media_fetch_tg.db", cfg.DatabaseFilepath)
	r.Equal("media", cfg.MediaFolder)
	r.Empty(cfg.AdminIDs)
}

func TestReadRequired(t *testing.T) {
	r := require.New(t)
	setRequired(t)

	t.Setenv("TG_BOT_TOKEN", "")
	_, err := config.Read()
	r.Error(err)
	r.Contains(err.Error(), "TG_BOT_TOKEN")

	setRequired(t)
	t.Setenv("DASHBOARD_API_KEY", "")
	_, err = config.Read()
	r.Error(err)
	r.Contains(err.Error(), "DASHBOARD_API_KEY")
}

func TestReadAdminIDs(t *testing.T) {
	r := require.New(t)
	setRequired(t)

	t.Setenv("ADMIN_IDS", "1, 249191443")
	cfg, err := config.Read()
	r.NoError(err)
	r.Equal([]int64{1, 249191443}, cfg.AdminIDs)

	t.Setenv("ADMIN_IDS", "nope")
	_, err = config.Read()
	r.Error(err)
}

func TestReadBadWorkers(t *testing.T) {
	r := require.New(t)
	setRequired(t)

	t.Setenv("WORKERS", "zero")
	_, err := config.Read()
	r.Error(err)

	t.Setenv("WORKERS", "0")
	_, err = config.Read()
	r.Error(err)
}
