package extract

import (
	"context"
	"time"

	"media-fetch-tg/internal/quality"
)

// Media is what the extraction backend produced: a local file plus the
// metadata the workflow needs for policy and delivery.
type Media struct {
	Path     string
	Title    string
	Size     int64
	Duration time.Duration
}

// Extractor resolves a URL and a quality selection into a local media
// file inside dir, or fails. Errors are opaque to the caller.
type Extractor interface {
	Extract(ctx context.Context, url string, sel quality.Selection, dir string) (*Media, error)
}
