package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"media-fetch-tg/internal/types"
)

// Settings the dashboard admin can override, with built-in fallbacks.
const (
	WelcomeMessageKey = "welcome_message"
	HelpMessageKey    = "help_message"
	PremiumMessageKey = "premium_message"
	ErrorMessageKey   = "error_message"
)

var settingDefaults = map[string]string{
	WelcomeMessageKey: "Welcome! Send me a link to download.",
	HelpMessageKey:    "Send a video/audio link to download.",
	PremiumMessageKey: "Contact admin for premium.",
	ErrorMessageKey:   "Download failed.",
}

type Settings map[string]string

// Client talks to the remote dashboard: user records, download records,
// admin settings and broadcasts. The dashboard owns storage; this side
// only reads and appends.
type Client struct {
	hc      *http.Client
	baseURL string
	appID   string
	apiKey  string
}

func New(baseURL, appID, apiKey string) *Client {
	return &Client{
		hc:      &http.Client{Timeout: 30 * time.Second},
		baseURL: baseURL,
		appID:   appID,
		apiKey:  apiKey,
	}
}

//nolint:govet // keep fields in wire order
type wireUser struct {
	ID             string `json:"id,omitempty"`
	TelegramID     string `json:"telegram_id"`
	Username       string `json:"username,omitempty"`
	FirstName      string `json:"first_name,omitempty"`
	LastName       string `json:"last_name,omitempty"`
	IsPremium      bool   `json:"is_premium,omitempty"`
	IsBanned       bool   `json:"is_banned,omitempty"`
	TotalDownloads int64  `json:"total_downloads,omitempty"`
	TotalBytes     int64  `json:"total_data_downloaded,omitempty"`
	LastActive     string `json:"last_active,omitempty"`
}

//nolint:govet // keep fields in wire order
type wireDownload struct {
	ID           string `json:"id,omitempty"`
	TelegramID   string `json:"telegram_user_id"`
	URL          string `json:"url"`
	Platform     string `json:"platform"`
	Quality      string `json:"quality"`
	Status       string `json:"status"`
	MediaType    string `json:"media_type"`
	Format       string `json:"format"`
	Title        string `json:"title,omitempty"`
	FileSize     int64  `json:"file_size,omitempty"`
	Duration     int64  `json:"duration,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// DownloadPatch is the terminal-state update for a download record.
type DownloadPatch struct {
	Status       types.DownloadStatus `json:"status"`
	Title        string               `json:"title,omitempty"`
	FileSize     int64                `json:"file_size,omitempty"`
	Duration     int64                `json:"duration,omitempty"`
	ErrorMessage string               `json:"error_message,omitempty"`
}

//nolint:govet // keep fields in wire order
type Broadcast struct {
	ID      string `json:"id"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// GetUser returns the dashboard profile for a telegram user,
// or nil when the user is unknown.
func (c *Client) GetUser(ctx context.Context, tgUserID int64) (*types.Profile, error) {
	user, err := c.getWireUser(ctx, tgUserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, nil
	}
	return &types.Profile{
		TelegramID:     tgUserID,
		Username:       user.Username,
		FirstName:      user.FirstName,
		LastName:       user.LastName,
		IsPremium:      user.IsPremium,
		IsBanned:       user.IsBanned,
		TotalDownloads: user.TotalDownloads,
		TotalBytes:     user.TotalBytes,
	}, nil
}

// TouchUser upserts the user's identity fields and last-active timestamp.
func (c *Client) TouchUser(ctx context.Context, tgUserID int64, username, firstName, lastName string) error {
	return c.upsertUser(ctx, tgUserID, &wireUser{
		TelegramID: strconv.FormatInt(tgUserID, 10),
		Username:   username,
		FirstName:  firstName,
		LastName:   lastName,
		LastActive: time.Now().UTC().Format(time.RFC3339),
	})
}

// UpdateUserStats upserts the user's counters with absolute values, so a
// retried call cannot double-count.
func (c *Client) UpdateUserStats(ctx context.Context, tgUserID, totalDownloads, totalBytes int64) error {
	return c.upsertUser(ctx, tgUserID, &wireUser{
		TelegramID:     strconv.FormatInt(tgUserID, 10),
		TotalDownloads: totalDownloads,
		TotalBytes:     totalBytes,
	})
}

// CreateDownload appends a download record and returns its dashboard id.
func (c *Client) CreateDownload(ctx context.Context, record *types.Record) (string, error) {
	body := &wireDownload{
		TelegramID:   strconv.FormatInt(record.TelegramID, 10),
		URL:          record.URL,
		Platform:     string(record.Platform),
		Quality:      record.Quality,
		Status:       string(record.Status),
		MediaType:    string(record.MediaType),
		Format:       record.Format,
		ErrorMessage: record.ErrorMessage,
	}
	created := &wireDownload{}
	if err := c.do(ctx, http.MethodPost, "/entities/Download", nil, body, created); err != nil {
		return "", fmt.Errorf("failed to create download record: %w", err)
	}
	return created.ID, nil
}

// UpdateDownload moves a download record to its terminal status.
func (c *Client) UpdateDownload(ctx context.Context, id string, patch *DownloadPatch) error {
	if err := c.do(ctx, http.MethodPatch, "/entities/Download/"+id, nil, patch, nil); err != nil {
		return fmt.Errorf("failed to update download record: %w", err)
	}
	return nil
}

// Settings reads all admin-authored settings from the dashboard.
func (c *Client) Settings(ctx context.Context) (Settings, error) {
	var rows []struct {
		Key   string `json:"setting_key"`
		Value string `json:"setting_value"`
	}
	if err := c.do(ctx, http.MethodGet, "/entities/BotSettings", nil, nil, &rows); err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	settings := make(Settings, len(rows))
	for _, row := range rows {
		settings[row.Key] = row.Value
	}
	return settings, nil
}

// Setting returns one setting, falling back to the built-in default when
// the dashboard is unreachable or the key is unset.
func (c *Client) Setting(ctx context.Context, key string) string {
	settings, err := c.Settings(ctx)
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("failed to get settings, using default")
		return settingDefaults[key]
	}
	if value, ok := settings[key]; ok && value != "" {
		return value
	}
	return settingDefaults[key]
}

// PendingBroadcasts lists draft broadcasts. Broadcast scheduling itself is
// managed from the dashboard.
func (c *Client) PendingBroadcasts(ctx context.Context) ([]Broadcast, error) {
	broadcasts := make([]Broadcast, 0)
	query := url.Values{"status": {"draft"}}
	if err := c.do(ctx, http.MethodGet, "/entities/Broadcast", query, nil, &broadcasts); err != nil {
		return nil, fmt.Errorf("failed to get broadcasts: %w", err)
	}
	return broadcasts, nil
}

func (c *Client) getWireUser(ctx context.Context, tgUserID int64) (*wireUser, error) {
	users := make([]wireUser, 0, 1)
	query := url.Values{"telegram_id": {strconv.FormatInt(tgUserID, 10)}}
	if err := c.do(ctx, http.MethodGet, "/entities/TelegramUser", query, nil, &users); err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if len(users) == 0 {
		return nil, nil
	}
	return &users[0], nil
}

func (c *Client) upsertUser(ctx context.Context, tgUserID int64, user *wireUser) error {
	existing, err := c.getWireUser(ctx, tgUserID)
	if err != nil {
		return err
	}
	if existing != nil {
		if err := c.do(ctx, http.MethodPatch, "/entities/TelegramUser/"+existing.ID, nil, user, nil); err != nil {
			return fmt.Errorf("failed to update user: %w", err)
		}
		return nil
	}
	if err := c.do(ctx, http.MethodPost, "/entities/TelegramUser", nil, user, nil); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	endpoint := c.baseURL + path
	if len(query) != 0 {
		endpoint += "?" + query.Encode()
	}
	var body io.Reader = http.NoBody
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("X-App-ID", c.appID)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	res, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("failed to do http request: %w", err)
	}
	defer func() {
		if err := res.Body.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close response body")
		}
	}()
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d from %s %s: %w", res.StatusCode, method, path, types.ErrInternal)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}
	return nil
}
