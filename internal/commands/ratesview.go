package commands

import (
	"fmt"
	"strings"

	"github.com/susu3304/finbot/internal/rates"
)

type currency struct {
	Code string
	Name string
}

// Major currencies listed against the base, in display order.
var majorCurrencies = []currency{
	{"USD", "🇺🇸 US dollar"},
	{"EUR", "🇪🇺 Euro"},
	{"CNY", "🇨🇳 Chinese yuan"},
	{"GBP", "🇬🇧 Pound sterling"},
}

var crossCurrencies = []string{"EUR", "GBP", "CNY"}

func currencyName(code string) string {
	for _, c := range majorCurrencies {
		if c.Code == code {
			return c.Name
		}
	}
	return code
}

// RenderRates formats the quotes for base, plus rouble cross rates when RUB is quoted.
func RenderRates(base string, quotes rates.Rates) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>💱 Current rates against %s:</b>\n\n", base)

	for _, c := range majorCurrencies {
		if rate, ok := quotes[c.Code]; ok {
			fmt.Fprintf(&b, "%s: <b>%s</b>\n", c.Name, rate.StringFixed(2))
		}
	}

	if rub, ok := quotes["RUB"]; ok {
		fmt.Fprintf(&b, "\n🇷🇺 Russian rouble: <b>%s</b>\n", rub.StringFixed(2))
		for _, code := range crossCurrencies {
			rate, ok := quotes[code]
			if !ok || rate.IsZero() {
				continue
			}
			fmt.Fprintf(&b, "%s in roubles: <b>%s</b>\n", currencyName(code), rub.Div(rate).StringFixed(2))
		}
	}

	b.WriteString("\n<i>Rates are updated daily.</i>")
	return b.String()
}
