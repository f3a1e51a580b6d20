package notify

import (
	"context"
	"errors"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"
)

type TelegramConfig struct {
	Token  string `json:"token" yaml:"token"`
	ChatID int64  `json:"chat_id" yaml:"chat_id"`
}

// TelegramPusher sends push messages through the Telegram Bot API. It is
// send-only: no poller is started and no updates are consumed.
type TelegramPusher struct {
	bot    *tele.Bot
	chatID int64
}

func NewTelegramPusher(cfg TelegramConfig) (*TelegramPusher, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat_id is empty")
	}
	b, err := tele.NewBot(tele.Settings{Token: cfg.Token})
	if err != nil {
		return nil, err
	}
	return &TelegramPusher{bot: b, chatID: cfg.ChatID}, nil
}

func (p *TelegramPusher) Push(ctx context.Context, text string) error {
	if p == nil || p.bot == nil {
		return errors.New("telegram pusher not configured")
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}

	// telebot's Send has no context parameter; bound it from the outside.
	type result struct{ err error }
	done := make(chan result, 1)
	go func() {
		_, err := p.bot.Send(tele.ChatID(p.chatID), text, &tele.SendOptions{
			DisableWebPagePreview: true,
		})
		done <- result{err: err}
	}()

	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case r := <-done:
		return r.err
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(30 * time.Second):
		return errors.New("telegram send timed out")
	}
}
