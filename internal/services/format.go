package services

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	domain "github.com/dashmart/promotions/internal/domain"
	"github.com/dashmart/promotions/internal/platform/config"
)

var moneyPrinter = message.NewPrinter(language.AmericanEnglish)

// formatCents renders minor units as a dollar string, e.g. 1250 -> "$12.50".
// Amounts of a thousand dollars and above pick up grouping separators.
func formatCents(cents int64) string {
	return moneyPrinter.Sprintf("$%.2f", float64(cents)/100)
}

// renderTemplate substitutes {token} placeholders in a catalog template.
// Unknown tokens are left in place so missing substitutions show up in review
// rather than vanish.
func renderTemplate(template string, args map[string]string) string {
	if len(args) == 0 {
		return template
	}
	pairs := make([]string, 0, len(args)*2)
	for token, value := range args {
		pairs = append(pairs, "{"+token+"}", value)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

// renderPlaceholders applies the same substitution to every placeholder line
// of a catalog bar message.
func renderPlaceholders(msg config.BarMessage, args map[string]string) []domain.PlaceholderItem {
	out := make([]domain.PlaceholderItem, 0, len(msg.Placeholders))
	for _, line := range msg.Placeholders {
		out = append(out, domain.PlaceholderItem{Title: renderTemplate(line, args)})
	}
	return out
}
