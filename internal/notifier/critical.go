package notifier

import (
	"context"
	"errors"
	"time"

	"calcnotify/internal/report"
	"calcnotify/pkg/logx"
	"calcnotify/pkg/tghtml"
)

// critical handles internal notifier faults, as opposed to caller errors
// routed through ReportError. It always logs, best-effort sends a remote
// alert on a channel separate from normal report flow, records the alert's
// message id so it survives retention, and in debug mode terminates the
// process so internal bugs are loud during development.
func (n *Notifier) critical(msg string, err error) {
	n.log.Error(msg, logx.Err(err))

	if n.msgr != nil {
		body := "System Error (notifier)\n\n" + msg
		if err != nil {
			body += "\n" + err.Error()
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		id, sendErr := n.msgr.SendText(ctx, string(tghtml.Pre(body)))
		cancel()
		if sendErr != nil {
			n.log.Warn("critical alert send failed", logx.Err(sendErr))
		} else if id != 0 {
			n.hist.RecordSystemError(id)
		}
	}

	if n.debug {
		n.log.Error("debug mode: terminating after critical notifier error")
		n.exit(1)
	}
}

func isAffinityError(err error) bool {
	var ae *report.AffinityError
	return errors.As(err, &ae)
}
