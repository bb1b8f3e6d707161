package telegram

import (
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camuig/llm-arena/internal/config"
	"github.com/camuig/llm-arena/internal/logger"
	"github.com/camuig/llm-arena/internal/models"
)

type fakeBot struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	return tgbotapi.Message{}, f.err
}

func TestNotifyTrade(t *testing.T) {
	bot := &fakeBot{}
	n := &Notifier{bot: bot, chatID: 42, enabled: true, logger: logger.Discard()}

	n.NotifyTrade("mock-gpt5", models.Trade{Symbol: "AAPL", Action: models.ActionBuy, Quantity: 5, Price: 120},
		&models.ExitPlan{ProfitTarget: 150, StopLoss: 90})

	require.Len(t, bot.sent, 1)
	msg := bot.sent[0]
	assert.Equal(t, int64(42), msg.ChatID)
	assert.Equal(t, tgbotapi.ModeMarkdown, msg.ParseMode)
	assert.Contains(t, msg.Text, "*BUY* AAPL")
	assert.Contains(t, msg.Text, "Price: 120.00")
	assert.Contains(t, msg.Text, "TP: 150.00")
}

func TestNotifierSendErrorIsLogged(t *testing.T) {
	bot := &fakeBot{err: errors.New("forbidden")}
	n := &Notifier{bot: bot, chatID: 1, enabled: true, logger: logger.Discard()}
	assert.NotPanics(t, func() { n.NotifyError("cycle", errors.New("boom")) })
	assert.Len(t, bot.sent, 1)
}

func TestDisabledNotifier(t *testing.T) {
	n := NewNotifier(config.TelegramConfig{}, logger.Discard())
	assert.NotPanics(t, func() { n.NotifyStatus("engine started") })

	var nilNotifier *Notifier
	assert.NotPanics(t, func() { nilNotifier.NotifyStatus("x") })
}
