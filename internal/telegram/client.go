// Package telegram delivers completed trading plans as Telegram messages.
// It formats a prediction into a MarkdownV2 message and sends it with bounded
// retry. Notifications are optional and delivery failures never affect the
// prediction flow.
package telegram

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/finlens/chartoracle/internal/models"
)

// Client sends trading plan notifications to a single chat.
type Client struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a Telegram client for the given bot token and chat.
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &Client{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}, nil
}

// NotifyPlan sends a formatted trading plan with linear backoff between
// attempts.
func (c *Client) NotifyPlan(instrument models.Instrument, prediction models.Prediction) error {
	msg := tgbotapi.NewMessage(c.chatID, formatPlan(instrument, prediction))
	msg.ParseMode = "MarkdownV2"

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		if _, err := c.bot.Send(msg); err == nil {
			return nil
		} else {
			lastErr = err
		}
		time.Sleep(c.retryDelayBase * time.Duration(i+1))
	}

	return fmt.Errorf("failed to send plan after %d retries: %w", c.maxRetries, lastErr)
}

// formatPlan renders a prediction as a MarkdownV2 message.
func formatPlan(instrument models.Instrument, prediction models.Prediction) string {
	var b strings.Builder

	emoji := "⏸"
	switch prediction.Signal {
	case models.SignalBuy:
		emoji = "📈"
	case models.SignalSell:
		emoji = "📉"
	}

	fmt.Fprintf(&b, "%s *%s* plan for %s\n\n",
		emoji, prediction.Signal, escapeMarkdownV2(fmt.Sprintf("%s (%s)", instrument.Name, instrument.ID)))

	if prediction.HasTargets() {
		fmt.Fprintf(&b, "Entry: %s\n", escapeMarkdownV2(formatPrice(*prediction.EntryPrice)))
		fmt.Fprintf(&b, "Take profit: %s\n", escapeMarkdownV2(formatPrice(*prediction.TakeProfit)))
		fmt.Fprintf(&b, "Stop loss: %s\n", escapeMarkdownV2(formatPrice(*prediction.StopLoss)))
		if rr, ok := prediction.RiskReward(); ok {
			fmt.Fprintf(&b, "Reward/risk: %s\n", escapeMarkdownV2(fmt.Sprintf("%.1f", rr)))
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "_%s_", escapeMarkdownV2(prediction.Reasoning))

	return b.String()
}

// formatPrice keeps forex-scale prices readable without printing large asset
// prices with needless decimals.
func formatPrice(v float64) string {
	if v < 10 {
		return fmt.Sprintf("%.5f", v)
	}
	return fmt.Sprintf("%.2f", v)
}

// escapeMarkdownV2 escapes the characters Telegram MarkdownV2 treats as
// markup: _ * [ ] ( ) ~ ` > # + - = | { } . !
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
