package commands

// Tips are shown one at a time, picked at random.
var Tips = []string{
	"🔹 <b>The 50/30/20 rule</b>\n50% on needs\n30% on wants\n20% on savings",
	"🔹 <b>Automatic savings</b>\nSet up an automatic transfer of 10% of your income to a savings account",
	"🔹 <b>Review subscriptions</b>\nCancel the streaming and other services you no longer use",
	"🔹 <b>Cashback</b>\nUse cashback cards for everyday spending",
	"🔹 <b>Planning</b>\nWrite a shopping list before going to the store",
	"🔹 <b>Utility bills</b>\nInstall water meters and energy-saving bulbs",
	"🔹 <b>The 24-hour rule</b>\nWait 24 hours before any large purchase",
}

func (r *Router) tip() Reply {
	return Reply{
		Text:   Tips[r.randIntn(len(Tips))],
		HTML:   true,
		Inline: []InlineButton{{Label: AnotherTipLabel, Data: AnotherTipAction}},
	}
}
