package workflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"media-fetch-tg/internal/dashboard"
	"media-fetch-tg/internal/extract"
	"media-fetch-tg/internal/journal"
	"media-fetch-tg/internal/policy"
	"media-fetch-tg/internal/quality"
	"media-fetch-tg/internal/session"
	"media-fetch-tg/internal/types"
)

const (
	// Error text caps: records keep more context than user messages.
	maxRecordErrLen = 500
	maxUserErrLen   = 100
)

// Gateway is the chat transport surface the workflow needs.
type Gateway interface {
	SendText(chatID int64, text string) (messageID int, err error)
	EditText(chatID int64, messageID int, text string) error
	SendAudio(chatID int64, path, title, caption string) error
	SendVideo(chatID int64, path, caption string) error
	AnswerCallback(callbackID string) error
}

// Bookkeeper is the remote dashboard surface the workflow needs. Calls
// may fail independently; the workflow proceeds best-effort and never
// lets a bookkeeping failure decide the user-facing outcome.
type Bookkeeper interface {
	GetUser(ctx context.Context, tgUserID int64) (*types.Profile, error)
	UpdateUserStats(ctx context.Context, tgUserID, totalDownloads, totalBytes int64) error
	CreateDownload(ctx context.Context, record *types.Record) (string, error)
	UpdateDownload(ctx context.Context, id string, patch *dashboard.DownloadPatch) error
	Setting(ctx context.Context, key string) string
}

// Attempts is the local journal surface, also best-effort.
type Attempts interface {
	EnsureUser(ctx context.Context, tgUserID int64) (int64, error)
	CreateAttempt(ctx context.Context, userID int64, record *types.Record) (int64, error)
	Finish(ctx context.Context, id int64, result journal.Result) error
}

// Outcome is the terminal state of one request.
type Outcome string

const (
	OutcomeCompleted        Outcome = "completed"
	OutcomeSessionExpired   Outcome = "session_expired"
	OutcomeInvalidSelection Outcome = "invalid_selection"
	OutcomeBanned           Outcome = "banned"
	OutcomeExtractionFailed Outcome = "extraction_failed"
	OutcomeSizeRejected     Outcome = "size_rejected"
	OutcomeDeliveryFailed   Outcome = "delivery_failed"
)

// Request is one quality-selection event.
//
//nolint:govet // disable field alignment for better reading
type Request struct {
	UserID     int64
	ChatID     int64
	MessageID  int
	CallbackID string
	// Raw callback data; the URL inside is truncated and never used.
	Token string
}

//nolint:govet // disable field alignment for better reading
type Options struct {
	Gateway     Gateway
	Extractor   extract.Extractor
	Books       Bookkeeper
	Attempts    Attempts
	Sessions    *session.Store
	MediaFolder string
}

// Workflow coordinates one download request end-to-end: selection decode,
// session recovery, ban and size checks, extraction, delivery and
// bookkeeping. Instances are stateless; one Run call per request.
type Workflow struct {
	opts *Options
}

func New(opts *Options) *Workflow { return &Workflow{opts: opts} }

//nolint:funlen // the state machine reads better in one piece
func (w *Workflow) Run(ctx context.Context, req Request) Outcome {
	logger := log.With().Int64("tg_user_id", req.UserID).Logger()

	if err := w.opts.Gateway.AnswerCallback(req.CallbackID); err != nil {
		logger.Error().Err(err).Msg("failed to answer callback")
	}

	sel, err := quality.DecodeToken(req.Token)
	if err != nil {
		// No trustworthy URL or selection to log against.
		logger.Error().Err(err).Str("token", req.Token).Msg("failed to decode selection")
		w.edit(req, "Session expired. Please send the link again.")
		return OutcomeInvalidSelection
	}

	// The token carries a truncated URL only; the authoritative URL lives
	// in the session slot.
	pending, ok := w.opts.Sessions.Take(req.UserID)
	if !ok {
		w.edit(req, "Session expired. Please send the link again.")
		return OutcomeSessionExpired
	}

	profile, err := w.opts.Books.GetUser(ctx, req.UserID)
	if err != nil {
		logger.Error().Err(err).Msg("failed to get user profile, assuming free tier")
	}
	var premium, banned bool
	var totalDownloads, totalBytes int64
	if profile != nil {
		premium, banned = profile.IsPremium, profile.IsBanned
		totalDownloads, totalBytes = profile.TotalDownloads, profile.TotalBytes
	}

	record := &types.Record{
		TelegramID: req.UserID,
		URL:        pending.URL,
		Platform:   pending.Platform,
		Quality:    sel.Preset,
		MediaType:  sel.MediaType(),
		Format:     sel.Format(),
		Status:     types.DownloadingStatus,
	}

	if banned {
		// Logged with the selection already known, no extraction runs.
		record.Status = types.FailedStatus
		record.ErrorMessage = types.ErrBanned.Error()
		w.createRecord(ctx, record)
		w.edit(req, "You are banned from using this bot.")
		return OutcomeBanned
	}

	remoteID, attemptID := w.createRecord(ctx, record)
	w.edit(req, "Starting download...")

	// The scratch dir is owned by this run alone and removed on every
	// terminal transition, delivery failure included.
	dir := filepath.Join(w.opts.MediaFolder, fmt.Sprintf("%d_%d", req.UserID, time.Now().UnixNano()))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return w.failExtraction(ctx, req, remoteID, attemptID, err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			logger.Error().Err(err).Str("dir", dir).Msg("failed to remove scratch dir")
		}
	}()

	w.edit(req, "Downloading...")
	media, err := w.opts.Extractor.Extract(ctx, pending.URL, sel, dir)
	if err != nil {
		logger.Error().Err(err).Str("url", pending.URL).Msg("extraction failed")
		return w.failExtraction(ctx, req, remoteID, attemptID, err)
	}

	verdict := policy.Evaluate(media.Size, policy.LimitFor(premium))
	if !verdict.Accepted {
		w.finishRecord(ctx, remoteID, attemptID, journal.Result{
			Status:       types.FailedStatus,
			ErrorMessage: verdict.Reason(),
		})
		text := fmt.Sprintf(
			"File is %.1fGB, exceeds your %.0fGB limit.", verdict.ActualGiB, verdict.LimitGiB)
		if !premium {
			text += "\n\nUpgrade to Premium for larger files!"
		}
		w.edit(req, text)
		return OutcomeSizeRejected
	}

	w.edit(req, "Uploading to Telegram...")
	if sel.Audio {
		err = w.opts.Gateway.SendAudio(req.ChatID, media.Path, media.Title, media.Title)
	} else {
		caption := fmt.Sprintf("%s\nQuality: %s", media.Title, sel.Preset)
		err = w.opts.Gateway.SendVideo(req.ChatID, media.Path, caption)
	}
	if err != nil {
		logger.Error().Err(err).Str("title", media.Title).Msg("delivery failed")
		w.finishRecord(ctx, remoteID, attemptID, journal.Result{
			Status:       types.FailedStatus,
			Title:        media.Title,
			ErrorMessage: "delivery failed: " + truncate(err.Error(), maxRecordErrLen),
		})
		w.edit(req, "Failed to upload the file, try again later.")
		return OutcomeDeliveryFailed
	}

	w.finishRecord(ctx, remoteID, attemptID, journal.Result{
		Status:   types.CompletedStatus,
		Title:    media.Title,
		FileSize: media.Size,
		Duration: int64(media.Duration.Seconds()),
	})
	// Absolute values computed from the profile loaded above, so a
	// retried upsert cannot double-count.
	if err := w.opts.Books.UpdateUserStats(
		ctx, req.UserID, totalDownloads+1, totalBytes+media.Size,
	); err != nil {
		logger.Error().Err(err).Msg("failed to update user stats")
	}
	w.edit(req, "Download complete!")
	logger.Info().Str("title", media.Title).Int64("size", media.Size).Msg("download completed")
	return OutcomeCompleted
}

func (w *Workflow) failExtraction(
	ctx context.Context, req Request, remoteID string, attemptID int64, err error,
) Outcome {

	w.finishRecord(ctx, remoteID, attemptID, journal.Result{
		Status:       types.FailedStatus,
		ErrorMessage: truncate(err.Error(), maxRecordErrLen),
	})
	text := w.opts.Books.Setting(ctx, dashboard.ErrorMessageKey)
	w.edit(req, text+"\n\nError: "+truncate(err.Error(), maxUserErrLen))
	return OutcomeExtractionFailed
}

// createRecord registers the attempt with the dashboard and the local
// journal. Either call may fail; a zero id skips the later update.
func (w *Workflow) createRecord(ctx context.Context, record *types.Record) (string, int64) {
	logger := log.With().Int64("tg_user_id", record.TelegramID).Logger()
	remoteID, err := w.opts.Books.CreateDownload(ctx, record)
	if err != nil {
		logger.Error().Err(err).Msg("failed to create dashboard record")
	}
	record.ID = remoteID
	userID, err := w.opts.Attempts.EnsureUser(ctx, record.TelegramID)
	if err != nil {
		logger.Error().Err(err).Msg("failed to ensure journal user")
		return remoteID, 0
	}
	attemptID, err := w.opts.Attempts.CreateAttempt(ctx, userID, record)
	if err != nil {
		logger.Error().Err(err).Msg("failed to create journal attempt")
		return remoteID, 0
	}
	return remoteID, attemptID
}

func (w *Workflow) finishRecord(
	ctx context.Context, remoteID string, attemptID int64, result journal.Result,
) {

	if remoteID != "" {
		if err := w.opts.Books.UpdateDownload(ctx, remoteID, &dashboard.DownloadPatch{
			Status:       result.Status,
			Title:        result.Title,
			FileSize:     result.FileSize,
			Duration:     result.Duration,
			ErrorMessage: result.ErrorMessage,
		}); err != nil {
			log.Error().Err(err).Str("remote_id", remoteID).Msg("failed to update dashboard record")
		}
	}
	if attemptID != 0 {
		if err := w.opts.Attempts.Finish(ctx, attemptID, result); err != nil {
			log.Error().Err(err).Int64("attempt_id", attemptID).Msg("failed to finish journal attempt")
		}
	}
}

func (w *Workflow) edit(req Request, text string) {
	if err := w.opts.Gateway.EditText(req.ChatID, req.MessageID, text); err != nil {
		log.Error().Err(err).Int64("chat_id", req.ChatID).Msg("failed to edit message")
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
