package notifier

import (
	"fmt"
	"strings"
	"time"

	"calcnotify/pkg/tghtml"
)

// buildCaption renders the HTML caption attached to a report delivery:
// calculation name, title, body text, any per-figure render errors, and
// the uptime line.
func buildCaption(name, title, text string, renderErrs []string, uptime string) string {
	var b strings.Builder
	b.WriteString(string(tghtml.B(name)))
	b.WriteString("\n\n")
	b.WriteString(string(tghtml.B(title)))
	if strings.TrimSpace(text) != "" {
		b.WriteString("\n\n")
		b.WriteString(string(tghtml.Esc(text)))
	}
	if len(renderErrs) > 0 {
		b.WriteString("\n\n")
		b.WriteString(string(tghtml.B("Errors during report creation:")))
		for _, e := range renderErrs {
			b.WriteString("\n")
			b.WriteString(string(tghtml.Pre(e)))
		}
	}
	if uptime != "" {
		b.WriteString("\n\n")
		b.WriteString(string(tghtml.Esc(uptime)))
	}
	return b.String()
}

// formatUptime renders a duration as "N days N h N min N sec", omitting
// leading zero components.
func formatUptime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Seconds())
	days := total / 86400
	hours := (total % 86400) / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60

	var parts []string
	if days > 0 {
		unit := "day"
		if days > 1 {
			unit = "days"
		}
		parts = append(parts, fmt.Sprintf("%d %s", days, unit))
	}
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%d h", hours))
	}
	if minutes > 0 || hours > 0 {
		parts = append(parts, fmt.Sprintf("%d min", minutes))
	}
	if seconds > 0 || len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("%d sec", seconds))
	}
	return strings.Join(parts, " ")
}
