package main

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"media-fetch-tg/internal/config"
	"media-fetch-tg/internal/dashboard"
	"media-fetch-tg/internal/extract"
	"media-fetch-tg/internal/journal"
	"media-fetch-tg/internal/platform"
	"media-fetch-tg/internal/quality"
	"media-fetch-tg/internal/session"
	"media-fetch-tg/internal/task"
	"media-fetch-tg/internal/workflow"
)

var urlRe = regexp.MustCompile(`https?://`)

//nolint:govet // disable field alignment for better reading
type bot struct {
	tg       *tgbotapi.BotAPI
	updatesC tgbotapi.UpdatesChannel

	books    *dashboard.Client
	journal  *journal.Journal
	sessions *session.Store
	wf       *workflow.Workflow

	taskC chan task.Task
	doneC chan struct{}

	adminIDs []int64
}

func newBot(
	cfg *config.Config,
	books *dashboard.Client, jrnl *journal.Journal, sessions *session.Store,
	doneC chan struct{},
) (*bot, error) {

	tg, err := tgbotapi.NewBotAPI(cfg.TgBotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize new telegram client: %w", err)
	}
	if cfg.TgBotEndpoint != "" {
		tg.SetAPIEndpoint(cfg.TgBotEndpoint)
	}

	wf := workflow.New(&workflow.Options{
		Gateway:     &tgGateway{tg: tg},
		Extractor:   &extract.YtDlp{Timeout: cfg.ExtractTimeout},
		Books:       books,
		Attempts:    jrnl,
		Sessions:    sessions,
		MediaFolder: cfg.MediaFolder,
	})

	// Channel to run one workflow per quality selection.
	taskC := make(chan task.Task)
	task.RunWorkers(taskC, cfg.Workers)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updatesC := tg.GetUpdatesChan(u)
	// Wait for updates and clear them if you don't want to handle a large backlog of old messages.
	time.Sleep(time.Second)
	updatesC.Clear()

	bot := &bot{
		tg:       tg,
		updatesC: updatesC,

		books:    books,
		journal:  jrnl,
		sessions: sessions,
		wf:       wf,

		taskC: taskC,
		doneC: doneC,

		adminIDs: cfg.AdminIDs,
	}
	go bot.handleMessages()

	return bot, nil
}

func (b *bot) stop() {
	b.tg.StopReceivingUpdates()
	b.updatesC.Clear()
}

func (b *bot) close() {
	close(b.taskC)
}

func (b *bot) handleMessages() {
	log.Info().Msg("bot has started and waiting for updates")
	for {
		select {
		case update := <-b.updatesC:
			switch {
			case update.Message != nil:
				b.handleMessage(update.Message)
			case update.CallbackQuery != nil:
				b.handleCallback(update.CallbackQuery)
			}
		case <-b.doneC:
			return
		}
	}
}

func (b *bot) handleMessage(message *tgbotapi.Message) {
	if message.IsCommand() {
		b.handleCommand(message)
		return
	}
	if urlRe.MatchString(message.Text) {
		b.handleURL(message)
		return
	}
	reply(b.tg, message, "Send me a link to download.")
}

func (b *bot) handleURL(message *tgbotapi.Message) {
	ctx := context.Background()
	url := strings.TrimSpace(message.Text)
	from := message.From
	logger := log.With().Int64("tg_user_id", from.ID).Logger()

	if err := b.books.TouchUser(ctx, from.ID, from.UserName, from.FirstName, from.LastName); err != nil {
		logger.Error().Err(err).Msg("failed to touch dashboard user")
	}
	if _, err := b.journal.EnsureUser(ctx, from.ID); err != nil {
		logger.Error().Err(err).Msg("failed to ensure journal user")
	}

	tag := platform.Detect(url)
	// Last submission wins: a previous pending URL from the same user is
	// overwritten and its keyboard becomes a dead end.
	b.sessions.Put(from.ID, url, tag)

	options := quality.Options(url)
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, 4)
	row := make([]tgbotapi.InlineKeyboardButton, 0, 3)
	for _, option := range options[:len(options)-1] {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(option.Label, option.Token))
		if len(row) == 3 {
			rows = append(rows, row)
			row = make([]tgbotapi.InlineKeyboardButton, 0, 3)
		}
	}
	if len(row) != 0 {
		rows = append(rows, row)
	}
	audio := options[len(options)-1]
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData(audio.Label, audio.Token)))

	msg := tgbotapi.NewMessage(message.Chat.ID,
		fmt.Sprintf("Detected: %s\n\nSelect quality:", strings.ToUpper(string(tag))))
	msg.ReplyToMessageID = message.MessageID
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	if _, err := b.tg.Send(msg); err != nil {
		logger.Error().Err(err).Msg("failed to send quality keyboard")
	}
}

func (b *bot) handleCommand(message *tgbotapi.Message) {
	ctx := context.Background()
	switch message.Command() {
	case "start":
		from := message.From
		if err := b.books.TouchUser(ctx, from.ID, from.UserName, from.FirstName, from.LastName); err != nil {
			log.Error().Err(err).Int64("tg_user_id", from.ID).Msg("failed to touch dashboard user")
		}
		reply(b.tg, message, b.books.Setting(ctx, dashboard.WelcomeMessageKey))
	case "help":
		reply(b.tg, message, b.books.Setting(ctx, dashboard.HelpMessageKey))
	case "premium":
		reply(b.tg, message, b.books.Setting(ctx, dashboard.PremiumMessageKey))
	case "stats":
		b.handleStats(message)
	case "pending":
		b.handlePending(message)
	case "broadcast":
		b.handleBroadcast(message)
	}
}

func (b *bot) handleStats(message *tgbotapi.Message) {
	ctx := context.Background()
	profile, err := b.books.GetUser(ctx, message.From.ID)
	if err != nil {
		log.Error().Err(err).Msg("failed to get profile, falling back to journal")
		userID, err := b.journal.EnsureUser(ctx, message.From.ID)
		if err != nil {
			reply500(b.tg, message)
			return
		}
		downloads, bytes, err := b.journal.Totals(ctx, userID)
		if err != nil {
			reply500(b.tg, message)
			return
		}
		reply(b.tg, message, statsText("Free", downloads, bytes))
		return
	}
	if profile == nil {
		reply(b.tg, message, "No stats yet. Start downloading!")
		return
	}
	tier := "Free"
	if profile.IsPremium {
		tier = "Premium"
	}
	reply(b.tg, message, statsText(tier, profile.TotalDownloads, profile.TotalBytes))
}

func statsText(tier string, downloads, bytes int64) string {
	return fmt.Sprintf(
		"Your Stats\n\nStatus: %s\nDownloads: %d\nData: %.2f GB",
		tier, downloads, float64(bytes)/(1<<30),
	)
}

func (b *bot) handlePending(message *tgbotapi.Message) {
	ctx := context.Background()
	userID, err := b.journal.EnsureUser(ctx, message.From.ID)
	if err != nil {
		reply500(b.tg, message)
		return
	}
	attempts, err := b.journal.InProgress(ctx, userID)
	if err != nil {
		log.Error().Err(err).Msg("failed to get attempts in progress")
		reply500(b.tg, message)
		return
	}
	if len(attempts) == 0 {
		reply(b.tg, message, "You don't have downloads in progress")
		return
	}
	text := "Downloads in progress"
	for _, attempt := range attempts {
		name := attempt.Title
		if name == "" {
			name = attempt.URL
		}
		text = fmt.Sprintf("%s\n%s", text, name)
	}
	reply(b.tg, message, text)
}

func (b *bot) handleBroadcast(message *tgbotapi.Message) {
	if !b.isAdmin(message.From.ID) {
		return
	}
	broadcasts, err := b.books.PendingBroadcasts(context.Background())
	if err != nil {
		log.Error().Err(err).Msg("failed to get pending broadcasts")
		reply500(b.tg, message)
		return
	}
	reply(b.tg, message, fmt.Sprintf(
		"Broadcasts are managed from the dashboard. Drafts pending: %d", len(broadcasts)))
}

func (b *bot) isAdmin(tgUserID int64) bool {
	for _, id := range b.adminIDs {
		if id == tgUserID {
			return true
		}
	}
	return false
}

func (b *bot) handleCallback(callback *tgbotapi.CallbackQuery) {
	if !quality.IsToken(callback.Data) {
		log.Error().Str("data", callback.Data).Msg("unknown callback topic")
		reply500(b.tg, callback.Message)
		return
	}
	req := workflow.Request{
		UserID:     callback.From.ID,
		ChatID:     callback.Message.Chat.ID,
		MessageID:  callback.Message.MessageID,
		CallbackID: callback.ID,
		Token:      callback.Data,
	}
	select {
	case b.taskC <- &workflowTask{wf: b.wf, req: req}:
	default:
		reply(b.tg, callback.Message, "All workers are busy, try again later")
	}
}

type workflowTask struct {
	wf  *workflow.Workflow
	req workflow.Request
}

func (t *workflowTask) Do() {
	outcome := t.wf.Run(context.Background(), t.req)
	log.Debug().
		Int64("tg_user_id", t.req.UserID).Str("outcome", string(outcome)).
		Msg("workflow finished")
}

func reply(tg *tgbotapi.BotAPI, message *tgbotapi.Message, text string) {
	msg := tgbotapi.NewMessage(message.Chat.ID, text)
	msg.ReplyToMessageID = message.MessageID
	if _, err := tg.Send(msg); err != nil {
		log.Error().Err(err).Msg("failed to send message")
	}
}

// reply500 sends internal server error to user.
func reply500(tg *tgbotapi.BotAPI, message *tgbotapi.Message) {
	reply(tg, message, "Something went wrong, try again later")
}
