package commands

import (
	"fmt"
	"html"

	"github.com/susu3304/finbot/internal/conversation"
	"github.com/susu3304/finbot/internal/db"
	"github.com/susu3304/finbot/internal/report"
)

// Menu labels. Matching is exact and case-sensitive.
const (
	FinancesLabel = "📊 My finances"
	RatesLabel    = "💱 Exchange rates"
	TipsLabel     = "💡 Tips"
	AddLabel      = "➕ Add transaction"
)

const (
	StartCommand   = "/start"
	HelpCommand    = "/help"
	CancelCommand  = "/cancel"
	SkipCommand    = conversation.SkipCommand
	BalanceCommand = "/balance"
	ReportCommand  = "/report"
	RatesCommand   = "/rates"
	TipsCommand    = "/tips"
	AddCommand     = "/add"
	TokenCommand   = "/token"

	// AnotherTipAction is the callback payload of the inline button under a tip.
	AnotherTipAction = "another_tip"
	AnotherTipLabel  = "Another tip"
)

func mainKeyboard() [][]string {
	return [][]string{
		{FinancesLabel},
		{RatesLabel, TipsLabel},
		{AddLabel},
	}
}

func kindKeyboard() [][]string {
	return [][]string{{conversation.IncomeLabel, conversation.ExpenseLabel}}
}

func categoryKeyboard() [][]string {
	var rows [][]string
	for i := 0; i < len(conversation.Categories); i += 2 {
		end := i + 2
		if end > len(conversation.Categories) {
			end = len(conversation.Categories)
		}
		rows = append(rows, append([]string(nil), conversation.Categories[i:end]...))
	}
	return rows
}

const (
	greetingText = "💰 <b>Finance assistant</b>\n\n" +
		"I will help you manage your personal finances:\n" +
		"- 📊 Income and expense tracking\n" +
		"- 💡 Personal saving tips\n" +
		"- 📈 Analysis of your spending habits\n\n" +
		"Choose an action:"

	helpText = "<b>Available commands:</b>\n" +
		"/start - Get started\n" +
		"/balance - Current balance\n" +
		"/report - Monthly report\n" +
		"/add - Add a transaction\n" +
		"/rates - Exchange rates\n" +
		"/tips - A saving tip\n" +
		"/cancel - Abandon the transaction being entered\n" +
		"/token - Web API access token\n\n" +
		"<b>Main features:</b>\n" +
		"• Recording income and expenses\n" +
		"• Breakdown by category\n" +
		"• Budget optimisation tips"

	unknownText   = "I did not understand that. Choose an action from the menu or send /help."
	cancelledText = "Transaction entry cancelled."
	nothingToDrop = "There is nothing to cancel."

	askKindText     = "Choose the transaction type:"
	askCategoryText = "Choose a category or type your own:"
	askAmountText   = "Enter the amount:"
	askCommentText  = "Add a comment (or send /skip):"

	badKindText     = "Please choose the transaction type using the keyboard."
	badCategoryText = "Use the keyboard to choose a category."
	badAmountText   = "Please enter a valid amount (a number greater than 0)."
	nonPositiveText = "The amount must be greater than zero."

	registerFailedText = "⚠️ Registration failed. Please try again later."
	recordFailedText   = "⚠️ Could not add the transaction. Please try again."
	financesFailedText = "⚠️ Could not load your financial data."
	ratesFailedText    = "⚠️ Could not fetch current exchange rates. Please try again later."
	genericFailedText  = "⚠️ Something went wrong. Please try again later."

	apiDisabledText = "The web API is not enabled on this bot."
)

func confirmationText(d *conversation.Draft, symbol string) string {
	kind := "Income"
	if d.Kind == db.KindExpense {
		kind = "Expense"
	}
	return fmt.Sprintf("✅ %s in category <b>%s</b> of <b>%s</b> added!",
		kind, html.EscapeString(d.Category), report.Money(d.Amount, html.EscapeString(symbol)))
}

func tokenText(token string) string {
	return fmt.Sprintf("🔑 Your web API token:\n<code>%s</code>\n\nSend it as <code>Authorization: Bearer …</code>. Keep it private.",
		html.EscapeString(token))
}
