package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

var httpClient = &http.Client{Timeout: 10 * time.Second}

// Telegram 只推送需要人工介入的事件
type Telegram struct {
	bot    *tgbot.BotAPI
	chatID int64
}

func NewTelegram(token string, chatID int64) (*Telegram, error) {
	return NewTelegramWithEndpoint(token, tgbot.APIEndpoint, chatID)
}

// NewTelegramWithEndpoint endpoint 格式同 tgbot.APIEndpoint
func NewTelegramWithEndpoint(token, endpoint string, chatID int64) (*Telegram, error) {
	b, err := tgbot.NewBotAPIWithClient(token, endpoint, httpClient)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return &Telegram{bot: b, chatID: chatID}, nil
}

func (t *Telegram) Notify(ctx context.Context, ev Event) error {
	if !NeedsAttention(ev.Outcome) {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := t.bot.Send(tgbot.NewMessage(t.chatID, formatEvent(ev))); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

func formatEvent(ev Event) string {
	var b strings.Builder
	o := ev.Outcome
	fmt.Fprintf(&b, "⚠️ %s %s [%s]\n", ev.Symbol, strings.ToUpper(string(o.Status)), o.Reason)
	fmt.Fprintf(&b, "alert: %s\n", ev.Alert)
	if o.Message != "" {
		fmt.Fprintf(&b, "message: %s\n", o.Message)
	}
	if d := o.Details; d != nil {
		fmt.Fprintf(&b, "qty: %s filled: %s stop: %s\n", d.Quantity, d.FilledSize, d.StopPrice)
		if d.ProtectionFailed {
			b.WriteString("position is open WITHOUT a stop loss\n")
		}
	}
	fmt.Fprintf(&b, "request: %s", ev.RequestID)
	return b.String()
}
