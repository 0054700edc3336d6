package integration

import (
	"context"
	"fmt"
	"log"
	"os/exec"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	NotificationTitle = "Maiwar WQ"
	NotificationBody  = "New measurements are available.\nUpdate the last modified and deploy."
)

// Notifier tells the maintainer that new measurements were written
type Notifier interface {
	Notify(ctx context.Context, title, body string) error
}

// DesktopNotifier runs a desktop notification command such as notify-send
type DesktopNotifier struct {
	command string
}

// NewDesktopNotifier creates a notifier for the given command, notify-send by default
func NewDesktopNotifier(command string) *DesktopNotifier {
	if command == "" {
		command = "notify-send"
	}
	return &DesktopNotifier{command: command}
}

// Notify runs `<command> <title> <body>`
func (n *DesktopNotifier) Notify(ctx context.Context, title, body string) error {
	out, err := exec.CommandContext(ctx, n.command, title, body).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s failed: %w (output: %s)", n.command, err, out)
	}
	return nil
}

// TelegramNotifier posts notifications to a Telegram chat
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegramNotifier authorizes the bot token against the Telegram API
func NewTelegramNotifier(botToken string, chatID int64) (*TelegramNotifier, error) {
	return NewTelegramNotifierWithEndpoint(botToken, tgbotapi.APIEndpoint, chatID)
}

// NewTelegramNotifierWithEndpoint is NewTelegramNotifier against a custom Bot API endpoint
func NewTelegramNotifierWithEndpoint(botToken, endpoint string, chatID int64) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(botToken, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	log.Printf("Authorized on Telegram account %s", bot.Self.UserName)
	return &TelegramNotifier{bot: bot, chatID: chatID}, nil
}

// Notify sends the title and body as one message
func (n *TelegramNotifier) Notify(_ context.Context, title, body string) error {
	msg := tgbotapi.NewMessage(n.chatID, title+"\n\n"+body)
	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send Telegram message: %w", err)
	}
	return nil
}
