package bot

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/susu3304/finbot/internal/commands"
	"github.com/susu3304/finbot/internal/config"
)

func TestEventFromUpdate(t *testing.T) {
	from := &tgbotapi.User{ID: 42, FirstName: "Ada", LastName: "Lovelace", UserName: "ada"}

	ev, chatID, ok := eventFromUpdate(tgbotapi.Update{
		Message: &tgbotapi.Message{From: from, Chat: &tgbotapi.Chat{ID: 1001}, Text: "📊 My finances"},
	})
	require.True(t, ok)
	assert.Equal(t, int64(1001), chatID)
	assert.Equal(t, commands.Event{SenderID: 42, DisplayName: "Ada Lovelace", Handle: "ada", Text: "📊 My finances"}, ev)

	ev, chatID, ok = eventFromUpdate(tgbotapi.Update{
		CallbackQuery: &tgbotapi.CallbackQuery{
			ID:      "cb",
			From:    &tgbotapi.User{ID: 7, UserName: "nofirst"},
			Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 2002}},
			Data:    commands.AnotherTipAction,
		},
	})
	require.True(t, ok)
	assert.Equal(t, int64(2002), chatID)
	assert.Equal(t, "nofirst", ev.DisplayName)
	assert.Equal(t, commands.AnotherTipAction, ev.Text)

	_, _, ok = eventFromUpdate(tgbotapi.Update{})
	assert.False(t, ok)
}

func TestTelegramMessage(t *testing.T) {
	t.Run("reply keyboard", func(t *testing.T) {
		msg := telegramMessage(5, commands.Reply{
			Text:     "<b>hi</b>",
			HTML:     true,
			Keyboard: [][]string{{"a", "b"}, {"c"}},
			OneTime:  true,
		})
		assert.Equal(t, tgbotapi.ModeHTML, msg.ParseMode)

		markup, ok := msg.ReplyMarkup.(tgbotapi.ReplyKeyboardMarkup)
		require.True(t, ok)
		assert.True(t, markup.OneTimeKeyboard)
		assert.True(t, markup.ResizeKeyboard)
		require.Len(t, markup.Keyboard, 2)
		assert.Equal(t, "b", markup.Keyboard[0][1].Text)
	})

	t.Run("inline buttons", func(t *testing.T) {
		msg := telegramMessage(5, commands.Reply{
			Text:   "tip",
			Inline: []commands.InlineButton{{Label: commands.AnotherTipLabel, Data: commands.AnotherTipAction}},
		})
		assert.Empty(t, msg.ParseMode)

		markup, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
		require.True(t, ok)
		require.NotNil(t, markup.InlineKeyboard[0][0].CallbackData)
		assert.Equal(t, commands.AnotherTipAction, *markup.InlineKeyboard[0][0].CallbackData)
	})

	t.Run("remove keyboard", func(t *testing.T) {
		msg := telegramMessage(5, commands.Reply{Text: "Enter the amount:", RemoveKeyboard: true})
		markup, ok := msg.ReplyMarkup.(tgbotapi.ReplyKeyboardRemove)
		require.True(t, ok)
		assert.True(t, markup.RemoveKeyboard)
	})

	t.Run("plain", func(t *testing.T) {
		msg := telegramMessage(5, commands.Reply{Text: "x"})
		assert.Nil(t, msg.ReplyMarkup)
		assert.Equal(t, int64(5), msg.ChatID)
	})
}

func TestDiscordMessage(t *testing.T) {
	msg := discordMessage(commands.Reply{
		Text:     "<b>Total</b> &lt;3 <i>daily</i> <code>tok</code>",
		HTML:     true,
		Keyboard: [][]string{{"📊 My finances"}, {"💱 Exchange rates", "💡 Tips"}},
	})
	assert.Equal(t, "**Total** <3 *daily* `tok`", msg.Content)
	require.Len(t, msg.Components, 2)

	row, ok := msg.Components[1].(discordgo.ActionsRow)
	require.True(t, ok)
	require.Len(t, row.Components, 2)
	button, ok := row.Components[1].(discordgo.Button)
	require.True(t, ok)
	assert.Equal(t, "💡 Tips", button.Label)
	assert.Equal(t, "💡 Tips", button.CustomID)

	plain := discordMessage(commands.Reply{Text: "a <b> literal", RemoveKeyboard: true})
	assert.Equal(t, "a <b> literal", plain.Content)
	assert.Empty(t, plain.Components)
}

func TestDiscordEvent(t *testing.T) {
	ev, ok := discordEvent(&discordgo.User{ID: "123456789012345678", Username: "ada"}, "/start")
	require.True(t, ok)
	assert.Equal(t, int64(123456789012345678), ev.SenderID)
	assert.Equal(t, "/start", ev.Text)

	_, ok = discordEvent(&discordgo.User{ID: "not-a-number"}, "x")
	assert.False(t, ok)
	_, ok = discordEvent(nil, "x")
	assert.False(t, ok)
}

func TestStripMention(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"<@99> /balance", "/balance", true},
		{"<@!99>   150", "150", true},
		{"<@98> hi", "", false},
		{"hello", "", false},
	}
	for _, tt := range tests {
		got, ok := stripMention(tt.in, "99")
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestNew_UnsupportedTransport(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	_, err := New(&config.Config{Transport: "irc"}, nil, logger)
	assert.Error(t, err)
}

type recordedCall struct {
	method string
	flags  discordgo.MessageFlags
	text   string
}

type fakeResponder struct {
	calls []recordedCall
}

func (f *fakeResponder) InteractionRespond(_ *discordgo.Interaction, resp *discordgo.InteractionResponse, _ ...discordgo.RequestOption) error {
	call := recordedCall{method: "respond"}
	if resp.Type != discordgo.InteractionResponseDeferredChannelMessageWithSource {
		call.method = "respond-immediate"
	}
	if resp.Data != nil {
		call.flags = resp.Data.Flags
	}
	f.calls = append(f.calls, call)
	return nil
}

func (f *fakeResponder) InteractionResponseEdit(_ *discordgo.Interaction, edit *discordgo.WebhookEdit, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.calls = append(f.calls, recordedCall{method: "edit", text: *edit.Content})
	return &discordgo.Message{}, nil
}

func (f *fakeResponder) InteractionResponseDelete(_ *discordgo.Interaction, _ ...discordgo.RequestOption) error {
	f.calls = append(f.calls, recordedCall{method: "delete"})
	return nil
}

func (f *fakeResponder) FollowupMessageCreate(_ *discordgo.Interaction, _ bool, params *discordgo.WebhookParams, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.calls = append(f.calls, recordedCall{method: "followup", flags: params.Flags, text: params.Content})
	return &discordgo.Message{}, nil
}

func TestInteraction_DeferredThenEdited(t *testing.T) {
	r := &fakeResponder{}
	i := &discordgo.Interaction{ID: "1"}

	require.NoError(t, deferInteraction(r, i, false))
	require.NoError(t, completeInteraction(r, i, false, []commands.Reply{
		{Text: "✅ Saved"},
		{Text: "Main menu", Keyboard: [][]string{{"📊 My finances"}}},
	}))

	assert.Equal(t, []recordedCall{
		{method: "respond"},
		{method: "edit", text: "✅ Saved"},
		{method: "followup", text: "Main menu"},
	}, r.calls)
}

func TestInteraction_EphemeralToken(t *testing.T) {
	r := &fakeResponder{}
	i := &discordgo.Interaction{ID: "2"}

	require.NoError(t, deferInteraction(r, i, true))
	require.NoError(t, completeInteraction(r, i, true, []commands.Reply{{Text: "token"}, {Text: "more"}}))

	require.Len(t, r.calls, 3)
	assert.Equal(t, discordgo.MessageFlagsEphemeral, r.calls[0].flags)
	assert.Equal(t, discordgo.MessageFlagsEphemeral, r.calls[2].flags)
}

func TestInteraction_NoReplies(t *testing.T) {
	r := &fakeResponder{}
	require.NoError(t, completeInteraction(r, &discordgo.Interaction{}, false, nil))
	assert.Equal(t, []recordedCall{{method: "delete"}}, r.calls)
}

func TestUserQueue_PreservesOrderPerUser(t *testing.T) {
	q := newUserQueue()

	var (
		mu  sync.Mutex
		got = map[int64][]int{}
	)
	release := make(chan struct{})
	for n := 0; n < 50; n++ {
		for _, user := range []int64{1, 2} {
			n, user := n, user
			q.Submit(user, func() {
				if n == 0 {
					<-release
				}
				mu.Lock()
				got[user] = append(got[user], n)
				mu.Unlock()
			})
		}
	}
	close(release)
	q.Wait()

	for _, user := range []int64{1, 2} {
		require.Len(t, got[user], 50)
		for n, v := range got[user] {
			assert.Equal(t, n, v, "user %d", user)
		}
	}
}

func TestUserQueue_UsersRunConcurrently(t *testing.T) {
	q := newUserQueue()
	blocked := make(chan struct{})
	done := make(chan struct{})

	q.Submit(1, func() { <-blocked })
	q.Submit(2, func() { close(done) })

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("user 2 waited behind user 1")
	}
	close(blocked)
	q.Wait()
}
