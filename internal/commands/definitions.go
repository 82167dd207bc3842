package commands

import "github.com/bwmarrin/discordgo"

// GetCommands returns the slash commands registered in every guild.
// Each one is dispatched as the chat command of the same name.
func GetCommands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        "start",
			Description: "Show the main menu",
		},
		{
			Name:        "help",
			Description: "List the available commands",
		},
		{
			Name:        "add",
			Description: "Record an income or an expense",
		},
		{
			Name:        "balance",
			Description: "Show your balance and this month's report",
		},
		{
			Name:        "rates",
			Description: "Show current exchange rates",
		},
		{
			Name:        "tips",
			Description: "Get a saving tip",
		},
		{
			Name:        "skip",
			Description: "Record the transaction without a comment",
		},
		{
			Name:        "cancel",
			Description: "Abandon the transaction being entered",
		},
		{
			Name:         "token",
			Description:  "Get a web API access token",
			DMPermission: boolPtr(true),
		},
	}
}

// SlashText maps a slash command name to the text the router understands.
func SlashText(name string) string {
	return "/" + name
}

func boolPtr(b bool) *bool {
	return &b
}
