package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"media-fetch-tg/internal/config"
	"media-fetch-tg/internal/dashboard"
	"media-fetch-tg/internal/journal"
	"media-fetch-tg/internal/session"
)

func main() {
	log.Logger = log.
		Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		With().Caller().Logger().
		Level(zerolog.InfoLevel)

	cfg, err := config.Read()
	if err != nil {
		fmt.Println("failed to read config:", err)
		os.Exit(1)
	}

	if cfg.Verbose {
		log.Logger = log.Level(zerolog.TraceLevel)
	}

	// We don't need to keep files in media folder after restart because we can't use them.
	if err = os.RemoveAll(cfg.MediaFolder); err != nil {
		log.Fatal().Err(err).Msg("failed to delete media folder")
	}
	if err = os.Mkdir(cfg.MediaFolder, os.ModePerm); err != nil {
		log.Fatal().Err(err).Msg("failed to create folder")
	}

	db, err := journal.OpenDBAndMigrate(cfg.DatabaseFilepath, journal.ModeRWC)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database and do migrations")
	}
	jrnl := journal.New(db)
	// Attempts that were downloading when the process died cannot resume.
	if err = jrnl.FailStale(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("failed to fail stale attempts")
	}

	books := dashboard.New(cfg.DashboardURL, cfg.DashboardAppID, cfg.DashboardAPIKey)
	sessions := session.NewStore(0)

	doneC := make(chan struct{})
	startJob(&cleanJob{mediaFolder: cfg.MediaFolder}, time.Hour, doneC)
	startJob(&sweepJob{sessions: sessions}, time.Minute*10, doneC)

	bot, err := newBot(cfg, books, jrnl, sessions, doneC)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telegram bot")
	}

	interruptC := make(chan os.Signal, 1)
	defer close(interruptC)
	signal.Notify(interruptC, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM)
	<-interruptC
	log.Debug().Msg("handle SIGINT, SIGQUIT, SIGTERM")

	// Stop receiving updates.
	bot.stop()
	// Stop all downloads and other routines.
	close(doneC)
	// Close connection with database and other stuff.
	bot.close()
	if err := db.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close database connection")
	}
	log.Info().Msg("bot has been stopped")
}
