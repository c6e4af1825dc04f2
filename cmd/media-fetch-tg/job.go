package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"media-fetch-tg/internal/session"
)

type job interface {
	do() error
}

func startJob(job job, interval time.Duration, doneC chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		for {
			select {
			case <-ticker.C:
				if err := job.do(); err != nil {
					log.Error().Err(err).Msg("failed to do job")
				}
			case <-doneC:
				ticker.Stop()
				return
			}
		}
	}()
}

// cleanJob deletes stale files from the media folder. Workflows remove
// their own scratch dirs on every terminal transition; this is the second
// line of defense for files orphaned by a crash mid-run.
type cleanJob struct {
	mediaFolder string
}

func (w *cleanJob) do() error {
	if err := filepath.Walk(w.mediaFolder, checkFile); err != nil {
		return fmt.Errorf("failed to walk through media folder: %w", err)
	}
	return nil
}

func checkFile(path string, info fs.FileInfo, err error) error {
	if err != nil {
		return fmt.Errorf("failed to get file: %w", err)
	}
	if info.IsDir() {
		return nil
	}
	logger := log.With().
		Str("file_name", info.Name()).Str("last_modified_time", info.ModTime().String()).
		Logger()
	if time.Since(info.ModTime()) < time.Hour {
		logger.Debug().Msg("file is fresh")
		return nil
	}
	if err := os.RemoveAll(path); err != nil {
		logger.Error().Err(err).Msg("failed to remove file")
		return nil
	}
	logger.Debug().Msg("file successfully deleted")
	return nil
}

// sweepJob drops expired pending selections so abandoned keyboards don't
// pin session slots forever.
type sweepJob struct {
	sessions *session.Store
}

func (w *sweepJob) do() error {
	w.sessions.Sweep()
	return nil
}
