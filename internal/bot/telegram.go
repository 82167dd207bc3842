package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/susu3304/finbot/internal/commands"
)

type Telegram struct {
	api    *tgbotapi.BotAPI
	router Dispatcher
	log    *slog.Logger

	queue *userQueue
}

func NewTelegram(token string, router Dispatcher, logger *slog.Logger) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram client: %w", err)
	}
	return &Telegram{
		api:    api,
		router: router,
		log:    logger.With(slog.String("transport", "telegram")),
		queue:  newUserQueue(),
	}, nil
}

// Run long-polls for updates. Updates from one user are handled in the order
// they arrived; different users are handled concurrently.
func (t *Telegram) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := t.api.GetUpdatesChan(u)
	t.log.Info("telegram bot is running", slog.String("username", t.api.Self.UserName))

	for {
		select {
		case <-ctx.Done():
			t.api.StopReceivingUpdates()
			t.queue.Wait()
			return nil
		case update, ok := <-updates:
			if !ok {
				t.queue.Wait()
				return nil
			}
			ev, chatID, ok := eventFromUpdate(update)
			if !ok {
				continue
			}
			cq := update.CallbackQuery
			t.queue.Submit(ev.SenderID, func() {
				if cq != nil {
					t.answerCallback(cq.ID)
				}
				t.handleEvent(ctx, chatID, ev)
			})
		}
	}
}

func (t *Telegram) answerCallback(id string) {
	if _, err := t.api.Request(tgbotapi.NewCallback(id, "")); err != nil {
		t.log.Warn("failed to answer callback query", slog.String("error", err.Error()))
	}
}

func (t *Telegram) handleEvent(ctx context.Context, chatID int64, ev commands.Event) {
	for _, reply := range t.router.Dispatch(ctx, ev) {
		if _, err := t.api.Send(telegramMessage(chatID, reply)); err != nil {
			t.log.Error("failed to send message",
				slog.Int64("user_id", ev.SenderID),
				slog.String("error", err.Error()))
		}
	}
}

// eventFromUpdate extracts the sender and text of a message or inline button press.
func eventFromUpdate(update tgbotapi.Update) (commands.Event, int64, bool) {
	switch {
	case update.Message != nil && update.Message.From != nil:
		msg := update.Message
		return newEvent(msg.From, msg.Text), msg.Chat.ID, true

	case update.CallbackQuery != nil && update.CallbackQuery.Message != nil && update.CallbackQuery.From != nil:
		cq := update.CallbackQuery
		return newEvent(cq.From, cq.Data), cq.Message.Chat.ID, true
	}
	return commands.Event{}, 0, false
}

func newEvent(from *tgbotapi.User, text string) commands.Event {
	name := strings.TrimSpace(from.FirstName + " " + from.LastName)
	if name == "" {
		name = from.UserName
	}
	return commands.Event{
		SenderID:    from.ID,
		DisplayName: name,
		Handle:      from.UserName,
		Text:        text,
	}
}

func telegramMessage(chatID int64, reply commands.Reply) tgbotapi.MessageConfig {
	msg := tgbotapi.NewMessage(chatID, reply.Text)
	if reply.HTML {
		msg.ParseMode = tgbotapi.ModeHTML
	}

	switch {
	case len(reply.Inline) > 0:
		var buttons []tgbotapi.InlineKeyboardButton
		for _, b := range reply.Inline {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Label, b.Data))
		}
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(buttons...))

	case len(reply.Keyboard) > 0:
		var rows [][]tgbotapi.KeyboardButton
		for _, row := range reply.Keyboard {
			var buttons []tgbotapi.KeyboardButton
			for _, label := range row {
				buttons = append(buttons, tgbotapi.NewKeyboardButton(label))
			}
			rows = append(rows, tgbotapi.NewKeyboardButtonRow(buttons...))
		}
		markup := tgbotapi.NewReplyKeyboard(rows...)
		markup.OneTimeKeyboard = reply.OneTime
		msg.ReplyMarkup = markup

	case reply.RemoveKeyboard:
		msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(false)
	}

	return msg
}
