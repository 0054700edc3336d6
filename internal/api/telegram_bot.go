// Package api provides handlers for external APIs and interfaces
package api

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/abelzeko/maiwar-wq/internal/entities"
	"github.com/abelzeko/maiwar-wq/internal/usecases"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// maxListedDates bounds the /dates reply to the most recent dates
const maxListedDates = 20

// TelegramBot answers chat queries about archived measurements
type TelegramBot struct {
	bot     *tgbotapi.BotAPI
	useCase *usecases.ArchiveUseCase
}

// NewTelegramBot creates a new Telegram bot handler
func NewTelegramBot(botToken string, useCase *usecases.ArchiveUseCase) (*TelegramBot, error) {
	return NewTelegramBotWithEndpoint(botToken, tgbotapi.APIEndpoint, useCase)
}

// NewTelegramBotWithEndpoint is NewTelegramBot against a custom Bot API endpoint
func NewTelegramBotWithEndpoint(botToken, endpoint string, useCase *usecases.ArchiveUseCase) (*TelegramBot, error) {
	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(botToken, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	return &TelegramBot{
		bot:     bot,
		useCase: useCase,
	}, nil
}

// Start listens for and handles Telegram messages until ctx is cancelled
func (t *TelegramBot) Start(ctx context.Context) {
	log.Printf("Authorized on Telegram account %s", t.bot.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := t.bot.GetUpdatesChan(u)
	log.Println("Bot is now listening for messages...")

	for {
		select {
		case <-ctx.Done():
			t.bot.StopReceivingUpdates()
			log.Println("Bot stopped")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil {
				continue
			}

			// Log incoming messages
			log.Printf("Received message from %s (ID: %d): %s",
				userName(update.Message), update.Message.Chat.ID, update.Message.Text)

			t.handleMessage(update.Message)
		}
	}
}

// handleMessage processes a Telegram message and sends the reply
func (t *TelegramBot) handleMessage(message *tgbotapi.Message) {
	msg := tgbotapi.NewMessage(message.Chat.ID, t.reply(message))

	log.Printf("Sending response to user %s", userName(message))
	if _, err := t.bot.Send(msg); err != nil {
		log.Printf("Error sending message: %v", err)
	}
}

// reply builds the response text for a message
func (t *TelegramBot) reply(message *tgbotapi.Message) string {
	if !message.IsCommand() {
		return "I don't understand. Use /help to see available commands."
	}

	switch message.Command() {
	case "start":
		return "Welcome to Maiwar WQ! Use /latest to see the most recent river measurements or /help for more information."

	case "help":
		return "Available commands:\n" +
			"/start - Start the bot\n" +
			"/latest - Show the most recent measurements\n" +
			"/dates - Show the most recent sampling dates\n" +
			"/date YYYY-MM-DD - Show the measurements of one date\n" +
			"/help - Show this help message"

	case "latest":
		return t.handleLatestCommand()

	case "dates":
		return t.handleDatesCommand()

	case "date":
		args := strings.TrimSpace(message.CommandArguments())
		log.Printf("Handling /date command with args '%s' for user %s", args, userName(message))
		return t.handleDateCommand(args)

	default:
		log.Printf("Received unknown command /%s from user %s", message.Command(), userName(message))
		return "Unknown command. Use /help to see available commands."
	}
}

func (t *TelegramBot) handleLatestCommand() string {
	date, readings, err := t.useCase.GetLatest()
	if err != nil {
		log.Printf("Error fetching latest readings: %v", err)
		return "Error fetching measurements. Please try again later."
	}
	if date == "" {
		return "No measurements have been collected yet."
	}
	lastUpdate, _ := t.useCase.GetLastCollectedTime()
	return usecases.FormatReadings(date, readings, lastUpdate)
}

func (t *TelegramBot) handleDatesCommand() string {
	dates, err := t.useCase.GetDates()
	if err != nil {
		log.Printf("Error fetching dates: %v", err)
		return "Error fetching measurements. Please try again later."
	}
	if len(dates) == 0 {
		return "No measurements have been collected yet."
	}
	if len(dates) > maxListedDates {
		dates = dates[len(dates)-maxListedDates:]
	}

	var text strings.Builder
	text.WriteString("Sampling dates:\n\n")
	for _, date := range dates {
		text.WriteString("• " + date + "\n")
	}
	text.WriteString("\nUse /date YYYY-MM-DD to get the measurements.")
	return text.String()
}

func (t *TelegramBot) handleDateCommand(args string) string {
	if args == "" {
		return "Please specify a date. Example: /date 2023-01-17"
	}
	if _, err := time.Parse(entities.DateKeyLayout, args); err != nil {
		return fmt.Sprintf("'%s' is not a date. Example: /date 2023-01-17", args)
	}

	readings, err := t.useCase.GetReadingsByDate(args)
	if err != nil {
		log.Printf("Error fetching readings: %v", err)
		return "Error fetching measurements. Please try again later."
	}
	if len(readings) == 0 {
		return fmt.Sprintf("No measurements found for %s. Use /dates to see the available dates.", args)
	}
	lastUpdate, _ := t.useCase.GetLastCollectedTime()
	return usecases.FormatReadings(args, readings, lastUpdate)
}

func userName(message *tgbotapi.Message) string {
	if message.From == nil {
		return "unknown"
	}
	return message.From.UserName
}
