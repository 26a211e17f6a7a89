package notifier

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"calcnotify/internal/config"
	"calcnotify/internal/ledger"
	"calcnotify/internal/pdf"
	"calcnotify/internal/report"
	"calcnotify/internal/transport"
	"calcnotify/pkg/logx"
)

// maxAlbumImages is the remote endpoint's batch-size ceiling for one
// grouped message. It is a hard external constraint, not configurable.
const maxAlbumImages = 10

// stackTailRunes bounds the stack trace included in error reports.
const stackTailRunes = 2500

// ReportRequest carries one report's inputs.
type ReportRequest struct {
	Title string
	Text  string

	// Figures are rendered synchronously on the caller's goroutine; see
	// report.Figure for the execution-context contract.
	Figures []report.Figure

	// ImagePaths and Files are copied into the bundle folder best-effort;
	// missing sources are skipped.
	ImagePaths []string
	Files      []string

	// Send hands the bundle to the delivery workers after assembly.
	Send bool
}

type deliverJob struct {
	bundle  report.Bundle
	caption string
}

// Notifier owns one history directory, its ledger, and a pool of delivery
// workers. Create with New, release with Close.
type Notifier struct {
	name        string
	debug       bool
	historyDir  string
	pdfEnabled  bool
	trackUptime bool
	jobTimeout  time.Duration

	log  logx.Logger
	msgr transport.Messenger // nil when remote delivery is disabled
	hist *ledger.Ledger

	// Hot-reloadable knobs, guarded by cfgMu.
	cfgMu     sync.RWMutex
	keepLast  int
	attachPDF bool

	start time.Time

	queue     chan deliverJob
	group     *errgroup.Group
	cron      *cron.Cron
	closeOnce sync.Once

	// exit is the debug-mode crash hook; os.Exit outside tests.
	exit func(code int)

	// assemblePDF is pdf.Assemble outside tests.
	assemblePDF func(path, title, text string, images []string) error
}

// New builds a Notifier from cfg. msgr may be nil, in which case all
// reports stay local. The delivery worker pool starts immediately.
func New(cfg config.Config, msgr transport.Messenger, log logx.Logger) (*Notifier, error) {
	cfg.Normalize()
	if log.IsZero() {
		log = logx.Nop()
	}

	name := sanitizeName(cfg.Name)
	historyDir := filepath.Join(cfg.HistoryDir, name)
	if err := os.MkdirAll(historyDir, 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}

	ledgerPath := strings.TrimSpace(cfg.Ledger.Path)
	if ledgerPath == "" {
		ledgerPath = filepath.Join(historyDir, "ledger.json")
	}
	store, err := ledger.Open(ledger.Config{
		Driver:      cfg.Ledger.Driver,
		Path:        ledgerPath,
		BusyTimeout: cfg.LedgerBusyTimeout(),
	}, log)
	if err != nil {
		// History must never block reports; degrade to a memory-only ledger.
		log.Warn("ledger store unavailable; history is memory-only", logx.Err(err))
		store = nil
	}

	n := &Notifier{
		name:        cfg.Name,
		debug:       cfg.Debug,
		historyDir:  historyDir,
		pdfEnabled:  cfg.PDFEnabled(),
		trackUptime: cfg.UptimeTracked(),
		jobTimeout:  cfg.JobTimeout(),
		log:         log.With(logx.String("comp", "notifier"), logx.String("name", cfg.Name)),
		msgr:        msgr,
		hist:        ledger.Load(store, log),
		keepLast:    cfg.KeepLast,
		attachPDF:   cfg.PDF.Attach,
		start:       time.Now(),
		queue:       make(chan deliverJob, cfg.Delivery.QueueSize),
		group:       new(errgroup.Group),
		exit:        os.Exit,
		assemblePDF: pdf.Assemble,
	}

	for i := 0; i < cfg.Delivery.Workers; i++ {
		n.group.Go(func() error {
			n.worker()
			return nil
		})
	}

	if cfg.Heartbeat.Enabled && msgr != nil {
		c := cron.New()
		if _, err := c.AddFunc(cfg.Heartbeat.Schedule, n.heartbeat); err != nil {
			return nil, fmt.Errorf("heartbeat schedule: %w", err)
		}
		c.Start()
		n.cron = c
	}

	return n, nil
}

// Apply updates the hot-reloadable knobs from a committed config.
func (n *Notifier) Apply(cfg *config.Config) {
	if cfg == nil {
		return
	}
	keep := cfg.KeepLast
	if keep < 1 {
		keep = 1
	}
	n.cfgMu.Lock()
	n.keepLast = keep
	n.attachPDF = cfg.PDF.Attach
	n.cfgMu.Unlock()
}

// FollowConfig applies committed config updates until ctx is done or the
// channel closes. Pair it with config.Manager.Subscribe for hot reload of
// keep_last and pdf.attach in long-running calculations.
func (n *Notifier) FollowConfig(ctx context.Context, updates <-chan *config.Config) {
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-updates:
			if !ok {
				return
			}
			n.Apply(cfg)
		}
	}
}

func (n *Notifier) keepLastN() int {
	n.cfgMu.RLock()
	defer n.cfgMu.RUnlock()
	return n.keepLast
}

func (n *Notifier) pdfAttached() bool {
	n.cfgMu.RLock()
	defer n.cfgMu.RUnlock()
	return n.attachPDF
}

// History returns the ledger's current records, oldest first.
func (n *Notifier) History() []ledger.Record { return n.hist.Reports() }

// Report assembles a bundle synchronously and, when req.Send is set and a
// messenger is configured, queues it for background delivery. It returns
// the bundle folder; it never blocks on network I/O and never fails because
// of a single bad figure or source file.
func (n *Notifier) Report(req ReportRequest) (string, error) {
	folder, err := report.NewFolder(n.historyDir, time.Now())
	if err != nil {
		return "", err
	}

	title := req.Title
	if title == "" {
		title = "Report"
	}

	if err := report.WriteMeta(folder, title, req.Text, time.Now()); err != nil {
		n.critical("failed to write report metadata", err)
	}

	var (
		images     []string
		renderErrs []string
	)
	for i, fig := range req.Figures {
		path := filepath.Join(folder, fmt.Sprintf("figure_%d.png", i))
		switch err := fig.RenderPNG(path); {
		case err == nil:
			images = append(images, path)
		case isAffinityError(err):
			// User error: report it in the caption, keep going.
			renderErrs = append(renderErrs, err.Error())
		default:
			n.critical(fmt.Sprintf("failed to save figure %d", i), err)
		}
	}
	images = append(images, report.CopyInto(folder, req.ImagePaths)...)
	files := report.CopyInto(folder, req.Files)

	var pdfPath string
	if n.pdfEnabled {
		pdfPath = filepath.Join(folder, filepath.Base(folder)+".pdf")
		if err := n.assemblePDF(pdfPath, title, req.Text, images); err != nil {
			n.critical("PDF generation failed", err)
			_ = os.Remove(pdfPath)
			pdfPath = ""
		}
	}

	bundle := report.Bundle{
		Folder:  folder,
		Title:   title,
		Text:    req.Text,
		Images:  images,
		Files:   files,
		PDFPath: pdfPath,
	}
	caption := buildCaption(n.name, title, req.Text, renderErrs, n.uptimeLine())

	if req.Send && n.msgr != nil {
		select {
		case n.queue <- deliverJob{bundle: bundle, caption: caption}:
			n.log.Debug("delivery queued", logx.String("folder", folder), logx.Int("images", len(images)))
		default:
			// A dropped delivery must be loud: the report stays local and
			// nothing would retry it.
			n.critical("delivery queue full; report kept local only",
				fmt.Errorf("dropped delivery of %s", filepath.Base(folder)))
		}
	}
	return folder, nil
}

// ReportError reports a caller's error as first-class report content: the
// title names the error kind, the text carries the message, context and a
// bounded tail of the stack. It follows the identical Report path.
func (n *Notifier) ReportError(userErr error, opContext string, send bool) string {
	if userErr == nil {
		return ""
	}
	if opContext == "" {
		opContext = "unknown"
	}
	n.log.Error("calculation error reported", logx.String("context", opContext), logx.Err(userErr))

	stack := tailRunes(string(debug.Stack()), stackTailRunes)
	text := fmt.Sprintf("Context: %s\n\n%v\n\nStack (tail):\n%s", opContext, userErr, stack)

	folder, err := n.Report(ReportRequest{
		Title: fmt.Sprintf("Error: %T", userErr),
		Text:  text,
		Send:  send,
	})
	if err != nil {
		n.critical("failed to assemble error report", err)
		return ""
	}
	return folder
}

// Catch wraps a user operation so that a returned error (or panic) is
// forwarded to ReportError. With reraise=false the failure is swallowed
// after reporting; with reraise=true the error is returned (and a panic
// re-panics) once reported.
func (n *Notifier) Catch(opContext string, reraise bool) func(func() error) error {
	return func(fn func() error) (err error) {
		defer func() {
			if r := recover(); r != nil {
				n.ReportError(fmt.Errorf("panic: %v", r), opContext, true)
				if reraise {
					panic(r)
				}
				err = nil
			}
		}()
		if ferr := fn(); ferr != nil {
			n.ReportError(ferr, opContext, true)
			if reraise {
				return ferr
			}
		}
		return nil
	}
}

// Close stops the heartbeat, drains queued deliveries and waits for the
// workers to finish. Safe to call more than once.
func (n *Notifier) Close() error {
	n.closeOnce.Do(func() {
		if n.cron != nil {
			<-n.cron.Stop().Done()
		}
		close(n.queue)
	})
	if err := n.group.Wait(); err != nil {
		return err
	}
	return n.hist.Close()
}

func (n *Notifier) uptimeLine() string {
	if !n.trackUptime {
		return ""
	}
	return "Uptime: " + formatUptime(time.Since(n.start))
}

func sanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '_' || r == '-' || r == ' ':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	s := strings.TrimSpace(b.String())
	if s == "" {
		return "Calculation"
	}
	return s
}

// tailRunes keeps the last n runes of s.
func tailRunes(s string, n int) string {
	rs := []rune(s)
	if len(rs) <= n {
		return s
	}
	return string(rs[len(rs)-n:])
}
