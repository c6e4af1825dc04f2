package main

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// tgGateway adapts the telegram client to the workflow's chat surface.
type tgGateway struct {
	tg *tgbotapi.BotAPI
}

func (g *tgGateway) SendText(chatID int64, text string) (int, error) {
	sent, err := g.tg.Send(tgbotapi.NewMessage(chatID, text))
	if err != nil {
		return 0, fmt.Errorf("failed to send message: %w", err)
	}
	return sent.MessageID, nil
}

func (g *tgGateway) EditText(chatID int64, messageID int, text string) error {
	if _, err := g.tg.Send(tgbotapi.NewEditMessageText(chatID, messageID, text)); err != nil {
		return fmt.Errorf("failed to edit message: %w", err)
	}
	return nil
}

func (g *tgGateway) SendAudio(chatID int64, path, title, caption string) error {
	audio := tgbotapi.NewAudio(chatID, tgbotapi.FilePath(path))
	audio.Title = title
	audio.Caption = caption
	if _, err := g.tg.Send(audio); err != nil {
		return fmt.Errorf("failed to send audio: %w", err)
	}
	return nil
}

func (g *tgGateway) SendVideo(chatID int64, path, caption string) error {
	video := tgbotapi.NewVideo(chatID, tgbotapi.FilePath(path))
	video.Caption = caption
	if _, err := g.tg.Send(video); err != nil {
		return fmt.Errorf("failed to send video: %w", err)
	}
	return nil
}

func (g *tgGateway) AnswerCallback(callbackID string) error {
	if _, err := g.tg.Request(tgbotapi.NewCallback(callbackID, "")); err != nil {
		return fmt.Errorf("failed to answer callback: %w", err)
	}
	return nil
}
