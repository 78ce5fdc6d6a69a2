// Package notify renders acceptance notices for the outbound sinks in its
// subpackages.
package notify

import (
	"strconv"
	"strings"

	"github.com/bnema/truck-load-watch/internal/domain"
)

const Greeting = "Hey 👋 I just accepted these loads for ya 😃"

type Field struct {
	Label string
	Value string
}

func Fields(load domain.AcceptedLoad) []Field {
	return []Field{
		{Label: "Origin Loc", Value: load.OriginLocation},
		{Label: "Origin Date", Value: load.OriginDateTime},
		{Label: "Dest Loc", Value: load.DestLocation},
		{Label: "Dest Date", Value: load.DestDateTime},
		{Label: "Consignee", Value: load.Consignee},
		{Label: "Weight", Value: strconv.Itoa(load.WeightLbs) + " lbs"},
		{Label: "Exc Ship Mode", Value: load.ShipMode},
	}
}

// Render writes the greeting and one block per load. value wraps each
// field value, for instance as inline code.
func Render(notice domain.AcceptanceNotice, value func(string) string) string {
	if value == nil {
		value = func(s string) string { return s }
	}

	var b strings.Builder
	b.WriteString(Greeting)
	b.WriteString("\n\n")
	for _, load := range notice.Loads {
		for _, field := range Fields(load) {
			b.WriteString(field.Label)
			b.WriteString(": ")
			b.WriteString(value(field.Value))
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

// Markdown renders values as inline code, which Slack and Discord both
// understand without escaping.
func Markdown(notice domain.AcceptanceNotice) string {
	return Render(notice, func(s string) string {
		return "`" + strings.ReplaceAll(s, "`", "'") + "`"
	})
}

func Plain(notice domain.AcceptanceNotice) string {
	return Render(notice, nil)
}
