package dispatch

import (
	tele "gopkg.in/telebot.v4"
)

// Transport delivers rendered content to a chat. The production
// implementation wraps the Telegram bot API.
type Transport interface {
	SendMessage(chatID int64, text string, markdownV2 bool) error
	SendPoll(chatID int64, question string, options []string) error
}

// TelebotTransport sends through a live telebot instance.
type TelebotTransport struct {
	bot *tele.Bot
}

// NewTelebotTransport wraps bot.
func NewTelebotTransport(bot *tele.Bot) *TelebotTransport {
	return &TelebotTransport{bot: bot}
}

func (t *TelebotTransport) SendMessage(chatID int64, text string, markdownV2 bool) error {
	opts := &tele.SendOptions{}
	if markdownV2 {
		opts.ParseMode = tele.ModeMarkdownV2
	}
	_, err := t.bot.Send(tele.ChatID(chatID), text, opts)
	return err
}

func (t *TelebotTransport) SendPoll(chatID int64, question string, options []string) error {
	poll := &tele.Poll{
		Type:      tele.PollRegular,
		Question:  question,
		Anonymous: true,
	}
	poll.AddOptions(options...)
	_, err := t.bot.Send(tele.ChatID(chatID), poll)
	return err
}
