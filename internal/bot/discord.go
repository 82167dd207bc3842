package bot

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/susu3304/finbot/internal/commands"
)

type Discord struct {
	session *discordgo.Session
	router  Dispatcher
	log     *slog.Logger
	queue   *userQueue

	ctx context.Context
}

// interactionResponder is the part of *discordgo.Session used to answer interactions.
type interactionResponder interface {
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	InteractionResponseEdit(interaction *discordgo.Interaction, newresp *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	InteractionResponseDelete(interaction *discordgo.Interaction, options ...discordgo.RequestOption) error
	FollowupMessageCreate(interaction *discordgo.Interaction, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

func NewDiscord(token string, router Dispatcher, logger *slog.Logger) (*Discord, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}

	d := &Discord{
		session: session,
		router:  router,
		log:     logger.With(slog.String("transport", "discord")),
		queue:   newUserQueue(),
		ctx:     context.Background(),
	}

	session.AddHandler(d.onReady)
	session.AddHandler(d.onGuildCreate)
	session.AddHandler(d.onMessageCreate)
	session.AddHandler(d.onInteractionCreate)

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	return d, nil
}

// Run opens the gateway connection and blocks until ctx is cancelled.
func (d *Discord) Run(ctx context.Context) error {
	d.ctx = ctx
	if err := d.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}
	d.log.Info("discord bot is running")

	<-ctx.Done()
	err := d.session.Close()
	d.queue.Wait()
	return err
}

func (d *Discord) onReady(s *discordgo.Session, event *discordgo.Ready) {
	d.log.Info("connected", slog.String("username", event.User.Username))

	for _, guild := range event.Guilds {
		if err := d.registerGuildCommands(guild.ID); err != nil {
			d.log.Error("failed to register commands", slog.String("guild_id", guild.ID), slog.String("error", err.Error()))
		}
	}
}

func (d *Discord) onGuildCreate(s *discordgo.Session, event *discordgo.GuildCreate) {
	d.log.Info("guild available, ensuring commands", slog.String("guild", event.Name), slog.String("guild_id", event.ID))
	if err := d.registerGuildCommands(event.ID); err != nil {
		d.log.Error("failed to register commands", slog.String("guild_id", event.ID), slog.String("error", err.Error()))
	}
}

func (d *Discord) registerGuildCommands(guildID string) error {
	// Replaces whatever was registered before.
	_, err := d.session.ApplicationCommandBulkOverwrite(d.session.State.User.ID, guildID, commands.GetCommands())
	if err != nil {
		return err
	}
	d.log.Debug("registered application commands", slog.String("guild_id", guildID))
	return nil
}

// onMessageCreate handles direct messages, and guild messages that mention the bot.
func (d *Discord) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}

	text := m.Content
	if m.GuildID != "" {
		var ok bool
		if text, ok = stripMention(text, s.State.User.ID); !ok {
			return
		}
	}

	ev, ok := discordEvent(m.Author, text)
	if !ok {
		return
	}

	d.queue.Submit(ev.SenderID, func() {
		for _, reply := range d.router.Dispatch(d.ctx, ev) {
			if _, err := s.ChannelMessageSendComplex(m.ChannelID, discordMessage(reply)); err != nil {
				d.log.Error("failed to send message", slog.Int64("user_id", ev.SenderID), slog.String("error", err.Error()))
			}
		}
	})
}

func (d *Discord) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	var (
		text      string
		ephemeral bool
	)
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		name := i.ApplicationCommandData().Name
		text = commands.SlashText(name)
		ephemeral = text == commands.TokenCommand
	case discordgo.InteractionMessageComponent:
		text = i.MessageComponentData().CustomID
	default:
		return
	}

	user := i.User
	if i.Member != nil && i.Member.User != nil {
		user = i.Member.User
	}
	ev, ok := discordEvent(user, text)
	if !ok {
		return
	}

	// Interactions not acknowledged within three seconds are dropped by Discord.
	if err := deferInteraction(s, i.Interaction, ephemeral); err != nil {
		d.log.Error("failed to acknowledge interaction", slog.Int64("user_id", ev.SenderID), slog.String("error", err.Error()))
		return
	}

	d.queue.Submit(ev.SenderID, func() {
		replies := d.router.Dispatch(d.ctx, ev)
		if err := completeInteraction(s, i.Interaction, ephemeral, replies); err != nil {
			d.log.Error("failed to respond to interaction", slog.Int64("user_id", ev.SenderID), slog.String("error", err.Error()))
		}
	})
}

func deferInteraction(r interactionResponder, i *discordgo.Interaction, ephemeral bool) error {
	resp := &discordgo.InteractionResponse{Type: discordgo.InteractionResponseDeferredChannelMessageWithSource}
	if ephemeral {
		resp.Data = &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral}
	}
	return r.InteractionRespond(i, resp)
}

// completeInteraction replaces the deferred response with the first reply and
// sends the rest as followups.
func completeInteraction(r interactionResponder, i *discordgo.Interaction, ephemeral bool, replies []commands.Reply) error {
	if len(replies) == 0 {
		return r.InteractionResponseDelete(i)
	}

	first := discordMessage(replies[0])
	edit := &discordgo.WebhookEdit{Content: &first.Content}
	if len(first.Components) > 0 {
		edit.Components = &first.Components
	}
	if _, err := r.InteractionResponseEdit(i, edit); err != nil {
		return err
	}

	for _, reply := range replies[1:] {
		msg := discordMessage(reply)
		params := &discordgo.WebhookParams{Content: msg.Content, Components: msg.Components}
		if ephemeral {
			params.Flags = discordgo.MessageFlagsEphemeral
		}
		if _, err := r.FollowupMessageCreate(i, true, params); err != nil {
			return fmt.Errorf("followup: %w", err)
		}
	}
	return nil
}

func discordEvent(u *discordgo.User, text string) (commands.Event, bool) {
	if u == nil {
		return commands.Event{}, false
	}
	id, err := strconv.ParseInt(u.ID, 10, 64)
	if err != nil {
		return commands.Event{}, false
	}
	return commands.Event{
		SenderID:    id,
		DisplayName: u.Username,
		Handle:      u.Username,
		Text:        text,
	}, true
}

// stripMention removes a leading mention of botID. It reports whether one was present.
func stripMention(content, botID string) (string, bool) {
	for _, prefix := range []string{"<@" + botID + ">", "<@!" + botID + ">"} {
		if strings.HasPrefix(content, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(content, prefix)), true
		}
	}
	return "", false
}

// Discord allows five buttons per row and five rows per message.
const maxButtons = 5

func discordMessage(reply commands.Reply) *discordgo.MessageSend {
	msg := &discordgo.MessageSend{Content: reply.Text}
	if reply.HTML {
		msg.Content = htmlToMarkdown(reply.Text)
	}

	var rows [][]commands.InlineButton
	switch {
	case len(reply.Inline) > 0:
		rows = append(rows, reply.Inline)
	case len(reply.Keyboard) > 0:
		for _, row := range reply.Keyboard {
			var buttons []commands.InlineButton
			for _, label := range row {
				buttons = append(buttons, commands.InlineButton{Label: label, Data: label})
			}
			rows = append(rows, buttons)
		}
	}

	for n, row := range rows {
		if n == maxButtons {
			break
		}
		var buttons []discordgo.MessageComponent
		for k, b := range row {
			if k == maxButtons {
				break
			}
			buttons = append(buttons, discordgo.Button{
				Label:    b.Label,
				Style:    discordgo.SecondaryButton,
				CustomID: b.Data,
			})
		}
		msg.Components = append(msg.Components, discordgo.ActionsRow{Components: buttons})
	}
	return msg
}

var markdownReplacer = strings.NewReplacer(
	"<b>", "**", "</b>", "**",
	"<i>", "*", "</i>", "*",
	"<code>", "`", "</code>", "`",
)

// htmlToMarkdown converts the small HTML subset used in replies.
func htmlToMarkdown(s string) string {
	return html.UnescapeString(markdownReplacer.Replace(s))
}
