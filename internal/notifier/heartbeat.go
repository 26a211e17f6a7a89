package notifier

import (
	"context"
	"time"

	"calcnotify/pkg/logx"
	"calcnotify/pkg/tghtml"
)

// heartbeat sends a short "still running" message on the configured cron
// schedule. Heartbeats are operational chatter: their message ids are not
// recorded in the ledger and never participate in retention.
func (n *Notifier) heartbeat() {
	if n.msgr == nil {
		return
	}
	parts := []tghtml.H{
		tghtml.B(n.name),
		tghtml.Esc("heartbeat: still running"),
	}
	if up := n.uptimeLine(); up != "" {
		parts = append(parts, tghtml.Esc(up))
	}
	text := string(tghtml.JoinH("\n", parts...))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := n.msgr.SendText(ctx, text); err != nil {
		n.log.Warn("heartbeat send failed", logx.Err(err))
	}
}
