package notify

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"FxPipe/internal/domain/models"
)

func num(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

// FormatText renders the alert for chat and plain-text mail.
func FormatText(p models.AlertPayload) string {
	lines := []string{
		p.Title,
		"Symbol: " + p.Symbol,
		"Side: " + p.Side,
		"Entry: " + num(p.Entry),
		"SL: " + num(p.SL),
		"TP: " + num(p.TP1),
		"RR: " + num(p.RR),
		"Lots: " + num(p.Lots),
		"Expires: " + p.ExpiresAt,
	}
	if p.URL != "" {
		lines = append(lines, "Link: "+p.URL)
	}
	if lines[0] == "" {
		lines = lines[1:]
	}
	return strings.Join(lines, "\n")
}

// FormatHTML renders the alert for the email body.
func FormatHTML(p models.AlertPayload) string {
	var b strings.Builder
	b.WriteString(`<div style="font-family:Arial,sans-serif;line-height:1.4">`)
	fmt.Fprintf(&b, "<h2>%s</h2>", html.EscapeString(p.Title))
	row := func(label, value string) {
		fmt.Fprintf(&b, "<p><strong>%s:</strong> %s</p>", label, html.EscapeString(value))
	}
	row("Symbol", p.Symbol)
	row("Side", p.Side)
	row("Entry", num(p.Entry))
	row("Stop", num(p.SL))
	row("TP", num(p.TP1))
	row("RR", num(p.RR))
	row("Lots", num(p.Lots))
	row("Expires", p.ExpiresAt)
	if p.URL != "" {
		fmt.Fprintf(&b, `<p><a href="%s">Open dashboard</a></p>`, html.EscapeString(p.URL))
	}
	b.WriteString("</div>")
	return b.String()
}

// PushBody is the short notification line: "EURUSD BUY @ 1.1".
func PushBody(p models.AlertPayload) string {
	return fmt.Sprintf("%s %s @ %s", p.Symbol, p.Side, num(p.Entry))
}
