package journal

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"media-fetch-tg/internal/types"
)

const (
	driver = "sqlite3"

	ModeMemory = "memory"
	ModeRWC    = "rwc"
)

//go:embed migrations
var migrations embed.FS

func OpenDBAndMigrate(filePath, mode string) (*sqlx.DB, error) {
	dsn := fmt.Sprintf(
		"file:%s?cache=shared&mode=%s&_foreign_keys=1",
		filePath, mode,
	)
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	// Do database structure migration.
	drv, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create new driver: %w", err)
	}
	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to create migrations source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, driver, drv)
	if err != nil {
		return nil, fmt.Errorf("failed to create new migration manager: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return nil, fmt.Errorf("failed to do database structure migration: %w", err)
	}
	return sqlx.NewDb(db, driver), nil
}

// Attempt is the local mirror of one download attempt. The dashboard owns
// the authoritative record; the journal keeps the bot usable when the
// dashboard is unreachable and powers /pending and restart hygiene.
//
//nolint:govet // for better reading and keep as it in .sql files
type Attempt struct {
	ID     int64 `db:"id"`
	UserID int64 `db:"user_id"`
	// URL the user asked to download.
	URL       string               `db:"url"`
	Platform  types.Platform       `db:"platform"`
	Quality   string               `db:"quality"`
	MediaType types.MediaType      `db:"media_type"`
	Status    types.DownloadStatus `db:"status"`
	Title     string               `db:"title"`
	FileSize  int64                `db:"file_size"`
	// Duration in seconds.
	Duration     int64  `db:"duration"`
	ErrorMessage string `db:"error_message"`
	// Dashboard record id, empty when the remote create failed.
	RemoteID  string    `db:"remote_id"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
	// When the attempt reached a terminal status successfully.
	DoneAt *time.Time `db:"done_at"`
}

// Result is the terminal update for an attempt.
//
//nolint:govet // disable field alignment for better reading
type Result struct {
	Status       types.DownloadStatus
	Title        string
	FileSize     int64
	Duration     int64
	ErrorMessage string
}

type Journal struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Journal {
	return &Journal{db: db}
}

// EnsureUser returns the local user id for a telegram user, creating the
// row on first contact and bumping last_event_at otherwise.
func (j *Journal) EnsureUser(ctx context.Context, tgUserID int64) (int64, error) {
	var id int64
	err := j.db.GetContext(ctx, &id, "select id from users where tg_user_id = $1", tgUserID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to get: %w", err)
	}
	if errors.Is(err, sql.ErrNoRows) {
		if err := j.db.GetContext(
			ctx, &id, "insert into users (tg_user_id) values ($1) returning id", tgUserID,
		); err != nil {
			return 0, fmt.Errorf("failed to get: %w", err)
		}
		return id, nil
	}
	if _, err := j.db.ExecContext(
		ctx, "update users set last_event_at = current_timestamp where id = $1", id,
	); err != nil {
		return 0, fmt.Errorf("failed to exec: %w", err)
	}
	return id, nil
}

func (j *Journal) CreateAttempt(ctx context.Context, userID int64, record *types.Record) (int64, error) {
	var id int64
	if err := j.db.GetContext(ctx, &id, `
		insert into attempts (user_id, url, platform, quality, media_type, status, remote_id)
		values ($1, $2, $3, $4, $5, $6, $7) returning id
	`,
		userID, record.URL, record.Platform, record.Quality,
		record.MediaType, record.Status, record.ID,
	); err != nil {
		return 0, fmt.Errorf("failed to get: %w", err)
	}
	return id, nil
}

func (j *Journal) Finish(ctx context.Context, id int64, result Result) error {
	doneAt := sql.NullTime{}
	if result.Status == types.CompletedStatus {
		doneAt = sql.NullTime{
			Time:  time.Now().UTC(),
			Valid: true,
		}
	}
	if _, err := j.db.ExecContext(ctx, `
		update attempts
		set status = $1, title = $2, file_size = $3, duration = $4, error_message = $5,
			updated_at = current_timestamp, done_at = $6
		where id = $7
	`,
		result.Status, result.Title, result.FileSize, result.Duration,
		result.ErrorMessage, doneAt, id,
	); err != nil {
		return fmt.Errorf("failed to exec: %w", err)
	}
	return nil
}

func (j *Journal) InProgress(ctx context.Context, userID int64) ([]*Attempt, error) {
	attempts := make([]*Attempt, 0)
	if err := j.db.SelectContext(
		ctx, &attempts, "select * from attempts where user_id = $1 and status = 'downloading'", userID,
	); err != nil {
		return nil, fmt.Errorf("failed to select: %w", err)
	}
	return attempts, nil
}

// Totals sums the user's completed attempts, the /stats fallback when the
// dashboard is unreachable.
func (j *Journal) Totals(ctx context.Context, userID int64) (downloads, bytes int64, err error) {
	row := struct {
		Downloads int64 `db:"downloads"`
		Bytes     int64 `db:"bytes"`
	}{}
	if err := j.db.GetContext(ctx, &row, `
		select count(*) as downloads, coalesce(sum(file_size), 0) as bytes
		from attempts where user_id = $1 and status = 'completed'
	`, userID); err != nil {
		return 0, 0, fmt.Errorf("failed to get: %w", err)
	}
	return row.Downloads, row.Bytes, nil
}

// FailStale marks attempts that were still downloading as failed. Run on
// boot: an in-flight workflow does not survive a restart and its temp
// files are wiped with the media folder.
func (j *Journal) FailStale(ctx context.Context) error {
	if _, err := j.db.ExecContext(ctx, `
		update attempts
		set status = 'failed', error_message = 'interrupted by restart', updated_at = current_timestamp
		where status = 'downloading'
	`); err != nil {
		return fmt.Errorf("failed to exec: %w", err)
	}
	return nil
}
