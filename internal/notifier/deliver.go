package notifier

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"calcnotify/internal/ledger"
	"calcnotify/pkg/logx"
	"calcnotify/pkg/tghtml"
)

func (n *Notifier) worker() {
	for job := range n.queue {
		n.deliver(job)
	}
}

// deliver uploads one bundle's artifacts, records the resulting message ids
// in the ledger and triggers eviction. A send failure aborts the remaining
// sends of this attempt but keeps whatever ids were already obtained, so
// eviction can still delete them later.
func (n *Notifier) deliver(j deliverJob) {
	defer func() {
		if r := recover(); r != nil {
			n.critical("panic in delivery worker", fmt.Errorf("%v\n%s", r, debug.Stack()))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), n.jobTimeout)
	defer cancel()

	b := j.bundle
	var (
		ids     []int
		sendErr error
	)

	if len(b.Images) > 0 {
		imgs := b.Images
		if len(imgs) > maxAlbumImages {
			// Accepted lossy truncation: the endpoint caps grouped messages.
			imgs = imgs[:maxAlbumImages]
		}
		got, err := n.msgr.SendMediaGroup(ctx, imgs, j.caption)
		ids = append(ids, got...)
		sendErr = err
	} else if strings.TrimSpace(j.caption) != "" {
		id, err := n.msgr.SendText(ctx, j.caption)
		if err == nil && id != 0 {
			ids = append(ids, id)
		}
		sendErr = err
	}

	if sendErr == nil && n.pdfAttached() && b.PDFPath != "" {
		if _, err := os.Stat(b.PDFPath); err == nil {
			caption := string(tghtml.B(n.name)) + ": PDF report"
			id, err := n.msgr.SendDocument(ctx, b.PDFPath, caption)
			if err != nil {
				sendErr = err
			} else if id != 0 {
				ids = append(ids, id)
			}
		}
	}

	if sendErr == nil {
		caption := string(tghtml.B(n.name)) + ": report file"
		for _, f := range b.Files {
			// The PDF may also appear among the copied files; don't deliver
			// the same physical file twice under two roles.
			if b.PDFPath != "" && samePath(f, b.PDFPath) {
				continue
			}
			if _, err := os.Stat(f); err != nil {
				continue
			}
			id, err := n.msgr.SendDocument(ctx, f, caption)
			if err != nil {
				sendErr = err
				break
			}
			if id != 0 {
				ids = append(ids, id)
			}
		}
	}

	if len(ids) > 0 {
		n.hist.Append(ledger.Record{
			Folder:     b.Folder,
			MessageIDs: ids,
			Timestamp:  time.Now().Unix(),
		})
		n.pruneRemote(ctx)
	}

	if sendErr != nil {
		n.critical("failed to deliver report", sendErr)
		return
	}
	n.log.Debug("report delivered",
		logx.String("folder", b.Folder),
		logx.Int("messages", len(ids)))
}

// pruneRemote evicts ledger records beyond keep_last and best-effort
// deletes their remote messages. Deletion failures are logged and ignored
// per-id; there is no retry.
func (n *Notifier) pruneRemote(ctx context.Context) []ledger.Record {
	evicted := n.hist.EvictExcess(n.keepLastN())
	if n.msgr == nil {
		return evicted
	}
	for _, rec := range evicted {
		for _, id := range rec.MessageIDs {
			if err := n.msgr.DeleteMessage(ctx, id); err != nil {
				n.log.Warn("failed to delete remote message",
					logx.Int("message_id", id),
					logx.String("folder", rec.Folder),
					logx.Err(err))
			}
		}
	}
	return evicted
}

// Prune runs retention enforcement synchronously (used by tooling).
func (n *Notifier) Prune(ctx context.Context) []ledger.Record {
	return n.pruneRemote(ctx)
}

func samePath(a, b string) bool {
	aa, err1 := filepath.Abs(a)
	bb, err2 := filepath.Abs(b)
	if err1 == nil && err2 == nil && aa == bb {
		return true
	}
	ai, err1 := os.Stat(a)
	bi, err2 := os.Stat(b)
	return err1 == nil && err2 == nil && os.SameFile(ai, bi)
}
