package types

import (
	"errors"
)

var (
	ErrInternal         = errors.New("internal error")
	ErrSessionExpired   = errors.New("session is expired")
	ErrInvalidSelection = errors.New("invalid quality selection")
	ErrBanned           = errors.New("user is banned")
	ErrSizeExceeded     = errors.New("size is exceeded")
)

type Platform string

const (
	PlatformYouTube    Platform = "youtube"
	PlatformInstagram  Platform = "instagram"
	PlatformTikTok     Platform = "tiktok"
	PlatformTwitter    Platform = "twitter"
	PlatformFacebook   Platform = "facebook"
	PlatformVimeo      Platform = "vimeo"
	PlatformSoundCloud Platform = "soundcloud"
	PlatformSpotify    Platform = "spotify"
	PlatformOther      Platform = "other"
)

type MediaType string

const (
	AudioMediaType MediaType = "audio"
	VideoMediaType MediaType = "video"
)

type DownloadStatus string

const (
	DownloadingStatus DownloadStatus = "downloading"
	CompletedStatus   DownloadStatus = "completed"
	FailedStatus      DownloadStatus = "failed"
)

//nolint:govet // disable field alignment for better reading
type Profile struct {
	// Telegram user id, the dashboard key.
	TelegramID int64
	Username   string
	FirstName  string
	LastName   string
	IsPremium  bool
	IsBanned   bool
	// Counters are mutated on successful completion only.
	TotalDownloads int64
	TotalBytes     int64
}

// Record is one download attempt as the dashboard tracks it.
//
//nolint:govet // disable field alignment for better reading
type Record struct {
	// Dashboard record id, empty until the create call succeeds.
	ID         string
	TelegramID int64
	URL        string
	Platform   Platform
	Quality    string
	MediaType  MediaType
	Format     string
	Status     DownloadStatus
	Title      string
	FileSize   int64
	// Duration in seconds.
	Duration     int64
	ErrorMessage string
}
