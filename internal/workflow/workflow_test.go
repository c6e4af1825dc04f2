package workflow_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"media-fetch-tg/internal/dashboard"
	"media-fetch-tg/internal/extract"
	"media-fetch-tg/internal/journal"
	"media-fetch-tg/internal/quality"
	"media-fetch-tg/internal/session"
	"media-fetch-tg/internal/types"
	"media-fetch-tg/internal/workflow"
)

const (
	tgUserID int64 = 249191443
	chatID   int64 = 249191443
	uri            = "https://youtube.com/watch?v=X"
)

type fakeGateway struct {
	edits        []string
	videoCaption string
	audioSends   int
	videoSends   int
	sendErr      error
}

func (g *fakeGateway) SendText(int64, string) (int, error) { return 0, nil }

func (g *fakeGateway) EditText(_ int64, _ int, text string) error {
	g.edits = append(g.edits, text)
	return nil
}

func (g *fakeGateway) SendAudio(_ int64, _, _, _ string) error {
	g.audioSends++
	return g.sendErr
}

func (g *fakeGateway) SendVideo(_ int64, _, caption string) error {
	g.videoSends++
	g.videoCaption = caption
	return g.sendErr
}

func (g *fakeGateway) AnswerCallback(string) error { return nil }

func (g *fakeGateway) lastEdit() string {
	if len(g.edits) == 0 {
		return ""
	}
	return g.edits[len(g.edits)-1]
}

type statsCall struct {
	downloads int64
	bytes     int64
}

type fakeBooks struct {
	profile *types.Profile
	created []*types.Record
	patches []*dashboard.DownloadPatch
	stats   []statsCall
}

func (b *fakeBooks) GetUser(context.Context, int64) (*types.Profile, error) {
	return b.profile, nil
}

func (b *fakeBooks) UpdateUserStats(_ context.Context, _, downloads, bytes int64) error {
	b.stats = append(b.stats, statsCall{downloads: downloads, bytes: bytes})
	return nil
}

func (b *fakeBooks) CreateDownload(_ context.Context, record *types.Record) (string, error) {
	copied := *record
	b.created = append(b.created, &copied)
	return "d1", nil
}

func (b *fakeBooks) UpdateDownload(_ context.Context, _ string, patch *dashboard.DownloadPatch) error {
	b.patches = append(b.patches, patch)
	return nil
}

func (b *fakeBooks) Setting(context.Context, string) string { return "Download failed." }

type fakeAttempts struct {
	created  []*types.Record
	finished []journal.Result
}

func (a *fakeAttempts) EnsureUser(context.Context, int64) (int64, error) { return 1, nil }

func (a *fakeAttempts) CreateAttempt(_ context.Context, _ int64, record *types.Record) (int64, error) {
	copied := *record
	a.created = append(a.created, &copied)
	return int64(len(a.created)), nil
}

func (a *fakeAttempts) Finish(_ context.Context, _ int64, result journal.Result) error {
	a.finished = append(a.finished, result)
	return nil
}

type fakeExtractor struct {
	title  string
	size   int64
	err    error
	dir    string
	called bool
}

func (e *fakeExtractor) Extract(
	_ context.Context, _ string, sel quality.Selection, dir string,
) (*extract.Media, error) {

	e.called = true
	e.dir = dir
	if e.err != nil {
		return nil, e.err
	}
	path := filepath.Join(dir, e.title+"."+sel.Format())
	if err := os.WriteFile(path, []byte("media"), 0o600); err != nil {
		return nil, err
	}
	return &extract.Media{
		Path:     path,
		Title:    e.title,
		Size:     e.size,
		Duration: 61 * time.Second,
	}, nil
}

//nolint:govet // test fixture
type fixture struct {
	wf        *workflow.Workflow
	gateway   *fakeGateway
	books     *fakeBooks
	attempts  *fakeAttempts
	extractor *fakeExtractor
	sessions  *session.Store
}

func newFixture(t *testing.T, profile *types.Profile, extractor *fakeExtractor) *fixture {
	t.Helper()
	f := &fixture{
		gateway:   &fakeGateway{},
		books:     &fakeBooks{profile: profile},
		attempts:  &fakeAttempts{},
		extractor: extractor,
		sessions:  session.NewStore(0),
	}
	f.wf = workflow.New(&workflow.Options{
		Gateway:     f.gateway,
		Extractor:   f.extractor,
		Books:       f.books,
		Attempts:    f.attempts,
		Sessions:    f.sessions,
		MediaFolder: t.TempDir(),
	})
	return f
}

func newRequest(preset string) workflow.Request {
	return workflow.Request{
		UserID:     tgUserID,
		ChatID:     chatID,
		MessageID:  554555,
		CallbackID: "cb1",
		Token:      quality.EncodeToken(preset, uri),
	}
}

func TestSessionExpired(t *testing.T) {
	r := require.New(t)

	f := newFixture(t, &types.Profile{TelegramID: tgUserID}, &fakeExtractor{})
	outcome := f.wf.Run(context.Background(), newRequest("720p"))

	r.Equal(workflow.OutcomeSessionExpired, outcome)
	r.False(f.extractor.called)
	r.Empty(f.books.created)
	r.Empty(f.attempts.created)
	r.Contains(f.gateway.lastEdit(), "Session expired")
}

func TestInvalidSelection(t *testing.T) {
	r := require.New(t)

	f := newFixture(t, &types.Profile{TelegramID: tgUserID}, &fakeExtractor{})
	f.sessions.Put(tgUserID, uri, types.PlatformYouTube)

	req := newRequest("720p")
	req.Token = "quality:999p:" + uri
	outcome := f.wf.Run(context.Background(), req)

	r.Equal(workflow.OutcomeInvalidSelection, outcome)
	r.False(f.extractor.called)
	r.Empty(f.books.created)
	// The slot survives a malformed click.
	_, ok := f.sessions.Take(tgUserID)
	r.True(ok)
}

func TestBannedUser(t *testing.T) {
	r := require.New(t)

	f := newFixture(t, &types.Profile{TelegramID: tgUserID, IsBanned: true}, &fakeExtractor{})
	f.sessions.Put(tgUserID, uri, types.PlatformYouTube)
	outcome := f.wf.Run(context.Background(), newRequest("720p"))

	r.Equal(workflow.OutcomeBanned, outcome)
	r.False(f.extractor.called)
	r.Len(f.books.created, 1)
	r.Equal(types.FailedStatus, f.books.created[0].Status)
	r.Contains(f.gateway.lastEdit(), "banned")
}

func TestCompleted(t *testing.T) {
	r := require.New(t)

	profile := &types.Profile{TelegramID: tgUserID, TotalDownloads: 7, TotalBytes: 1024}
	extractor := &fakeExtractor{title: "hello neighbor", size: 300 << 20}
	f := newFixture(t, profile, extractor)
	f.sessions.Put(tgUserID, uri, types.PlatformYouTube)

	outcome := f.wf.Run(context.Background(), newRequest("720p"))
	r.Equal(workflow.OutcomeCompleted, outcome)

	// Record created downloading, finished completed.
	r.Len(f.books.created, 1)
	created := f.books.created[0]
	r.Equal(types.DownloadingStatus, created.Status)
	r.Equal(uri, created.URL)
	r.Equal(types.PlatformYouTube, created.Platform)
	r.Equal("720p", created.Quality)
	r.Equal(types.VideoMediaType, created.MediaType)
	r.Equal("mp4", created.Format)
	r.Len(f.books.patches, 1)
	patch := f.books.patches[0]
	r.Equal(types.CompletedStatus, patch.Status)
	r.Equal("hello neighbor", patch.Title)
	r.Equal(int64(300<<20), patch.FileSize)
	r.Equal(int64(61), patch.Duration)

	// Delivered as video, caption carries the quality label.
	r.Equal(1, f.gateway.videoSends)
	r.Equal(0, f.gateway.audioSends)
	r.Contains(f.gateway.videoCaption, "hello neighbor")
	r.Contains(f.gateway.videoCaption, "720p")

	// Counters incremented exactly once with absolute values.
	r.Len(f.books.stats, 1)
	r.Equal(int64(8), f.books.stats[0].downloads)
	r.Equal(int64(1024+300<<20), f.books.stats[0].bytes)

	// Scratch dir removed after delivery.
	_, err := os.Stat(extractor.dir)
	r.True(os.IsNotExist(err))

	r.Contains(f.gateway.lastEdit(), "complete")
}

func TestAudioDelivery(t *testing.T) {
	r := require.New(t)

	extractor := &fakeExtractor{title: "some track", size: 5 << 20}
	f := newFixture(t, &types.Profile{TelegramID: tgUserID}, extractor)
	f.sessions.Put(tgUserID, "https://soundcloud.com/artist/track", types.PlatformSoundCloud)

	outcome := f.wf.Run(context.Background(), newRequest(quality.AudioPreset))
	r.Equal(workflow.OutcomeCompleted, outcome)
	r.Equal(1, f.gateway.audioSends)
	r.Equal(0, f.gateway.videoSends)
	r.Equal(types.AudioMediaType, f.books.created[0].MediaType)
	r.Equal("mp3", f.books.created[0].Format)
}

func TestSizeRejectedFreeTier(t *testing.T) {
	r := require.New(t)

	extractor := &fakeExtractor{title: "big one", size: 2 << 30}
	f := newFixture(t, &types.Profile{TelegramID: tgUserID}, extractor)
	f.sessions.Put(tgUserID, uri, types.PlatformYouTube)

	outcome := f.wf.Run(context.Background(), newRequest("720p"))
	r.Equal(workflow.OutcomeSizeRejected, outcome)

	// File removed, never sent.
	r.Equal(0, f.gateway.videoSends)
	_, err := os.Stat(extractor.dir)
	r.True(os.IsNotExist(err))

	r.Len(f.books.patches, 1)
	r.Equal(types.FailedStatus, f.books.patches[0].Status)
	r.Contains(f.books.patches[0].ErrorMessage, "1GB")

	// Upsell hint for free tier, no stat increment.
	r.Contains(f.gateway.lastEdit(), "2.0GB")
	r.Contains(f.gateway.lastEdit(), "Premium")
	r.Empty(f.books.stats)
}

func TestSizeAcceptedPremiumTier(t *testing.T) {
	r := require.New(t)

	extractor := &fakeExtractor{title: "big one", size: 2 << 30}
	f := newFixture(t, &types.Profile{TelegramID: tgUserID, IsPremium: true}, extractor)
	f.sessions.Put(tgUserID, uri, types.PlatformYouTube)

	outcome := f.wf.Run(context.Background(), newRequest("1080p"))
	r.Equal(workflow.OutcomeCompleted, outcome)
	r.Equal(1, f.gateway.videoSends)
}

func TestExtractionFailed(t *testing.T) {
	r := require.New(t)

	extractor := &fakeExtractor{err: errors.New(strings.Repeat("x", 600))}
	f := newFixture(t, &types.Profile{TelegramID: tgUserID}, extractor)
	f.sessions.Put(tgUserID, uri, types.PlatformYouTube)

	outcome := f.wf.Run(context.Background(), newRequest("best"))
	r.Equal(workflow.OutcomeExtractionFailed, outcome)

	r.Len(f.books.patches, 1)
	r.Equal(types.FailedStatus, f.books.patches[0].Status)
	r.Len(f.books.patches[0].ErrorMessage, 500)

	r.Contains(f.gateway.lastEdit(), "Download failed.")
	r.Equal(0, f.gateway.videoSends)
	r.Empty(f.books.stats)

	_, err := os.Stat(extractor.dir)
	r.True(os.IsNotExist(err))
}

func TestDeliveryFailed(t *testing.T) {
	r := require.New(t)

	extractor := &fakeExtractor{title: "hello neighbor", size: 10 << 20}
	f := newFixture(t, &types.Profile{TelegramID: tgUserID}, extractor)
	f.gateway.sendErr = errors.New("telegram: bad gateway")
	f.sessions.Put(tgUserID, uri, types.PlatformYouTube)

	outcome := f.wf.Run(context.Background(), newRequest("360p"))
	r.Equal(workflow.OutcomeDeliveryFailed, outcome)

	r.Len(f.books.patches, 1)
	r.Equal(types.FailedStatus, f.books.patches[0].Status)
	r.Contains(f.books.patches[0].ErrorMessage, "delivery failed")
	r.Empty(f.books.stats)

	// The file is deleted on this path too.
	_, err := os.Stat(extractor.dir)
	r.True(os.IsNotExist(err))
}
