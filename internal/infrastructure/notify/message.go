package notify

import (
	"fmt"
	"html"
	"strings"

	"github.com/nombiemugi/rastreador-de-precios/internal/domain"
	"github.com/shopspring/decimal"
)

// formatAmount shows at least two decimals and never drops significant ones (KWD 12.345).
func formatAmount(amount decimal.Decimal, currency string) string {
	places := int32(2)
	if exp := -amount.Exponent(); exp > places {
		places = exp
	}
	return amount.StringFixed(places) + " " + currency
}

// Subject is the e-mail subject line for an alert.
func Subject(alert domain.PriceDropAlert) string {
	return fmt.Sprintf("Price drop: %s is now %s", productName(alert.Product), formatAmount(alert.NewPrice, alert.Currency))
}

// HTMLBody renders the e-mail body.
func HTMLBody(alert domain.PriceDropAlert) string {
	name := html.EscapeString(productName(alert.Product))
	link := html.EscapeString(alert.Product.URL)

	var b strings.Builder
	b.WriteString("<div style=\"font-family:sans-serif;max-width:600px\">")
	b.WriteString("<h2>Price drop alert</h2>")
	if alert.Product.ImageURL != "" {
		fmt.Fprintf(&b, "<img src=\"%s\" alt=\"%s\" style=\"max-width:200px\">", html.EscapeString(alert.Product.ImageURL), name)
	}
	fmt.Fprintf(&b, "<h3>%s</h3>", name)
	fmt.Fprintf(&b, "<p><s>%s</s> <strong>%s</strong></p>",
		formatAmount(alert.OldPrice, alert.PreviousCurrency()), formatAmount(alert.NewPrice, alert.Currency))
	if alert.PreviousCurrency() == alert.Currency {
		fmt.Fprintf(&b, "<p>You save %s (%s%%)</p>",
			formatAmount(alert.Savings(), alert.Currency), alert.SavingsPercent().StringFixed(1))
	}
	fmt.Fprintf(&b, "<p><a href=\"%s\">View product</a></p>", link)
	b.WriteString("</div>")
	return b.String()
}

// TelegramHTML renders the alert for Telegram's HTML parse mode.
func TelegramHTML(alert domain.PriceDropAlert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📉 <b>%s</b>\n", html.EscapeString(productName(alert.Product)))
	fmt.Fprintf(&b, "<s>%s</s> → <b>%s</b>",
		formatAmount(alert.OldPrice, alert.PreviousCurrency()), formatAmount(alert.NewPrice, alert.Currency))
	if alert.PreviousCurrency() == alert.Currency {
		fmt.Fprintf(&b, " (-%s%%)", alert.SavingsPercent().StringFixed(1))
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "<a href=\"%s\">View product</a>", html.EscapeString(alert.Product.URL))
	return b.String()
}

func productName(p domain.TrackedProduct) string {
	if strings.TrimSpace(p.Name) != "" {
		return p.Name
	}
	return p.URL
}
