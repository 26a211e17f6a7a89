package notifier

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"calcnotify/internal/config"
	"calcnotify/internal/report"
	"calcnotify/pkg/logx"
)

// fakeMessenger records every call and hands out sequential message ids.
type fakeMessenger struct {
	mu     sync.Mutex
	nextID int

	albums   [][]string
	captions []string
	texts    []string
	docs     []string
	deleted  []int

	failText bool
	failDocs bool
}

func (f *fakeMessenger) id() int {
	f.nextID++
	return f.nextID
}

func (f *fakeMessenger) SendMediaGroup(ctx context.Context, paths []string, caption string) ([]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.albums = append(f.albums, append([]string(nil), paths...))
	f.captions = append(f.captions, caption)
	ids := make([]int, 0, len(paths))
	for range paths {
		ids = append(ids, f.id())
	}
	return ids, nil
}

func (f *fakeMessenger) SendDocument(ctx context.Context, path, caption string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDocs {
		return 0, errors.New("document send refused")
	}
	f.docs = append(f.docs, path)
	return f.id(), nil
}

func (f *fakeMessenger) SendText(ctx context.Context, text string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failText && !strings.Contains(text, "System Error") {
		return 0, errors.New("text send refused")
	}
	f.texts = append(f.texts, text)
	return f.id(), nil
}

func (f *fakeMessenger) DeleteMessage(ctx context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

type messengerCalls struct {
	albums   [][]string
	captions []string
	texts    []string
	docs     []string
	deleted  []int
}

func (f *fakeMessenger) snapshot() messengerCalls {
	f.mu.Lock()
	defer f.mu.Unlock()
	return messengerCalls{
		albums:   f.albums,
		captions: f.captions,
		texts:    f.texts,
		docs:     f.docs,
		deleted:  f.deleted,
	}
}

func boolPtr(v bool) *bool { return &v }

func testConfig(dir string) config.Config {
	return config.Config{
		Name:        "Test Calc",
		HistoryDir:  dir,
		KeepLast:    3,
		TrackUptime: boolPtr(false),
		Delivery:    config.DeliveryConfig{Workers: 1, QueueSize: 32},
		PDF:         config.PDFConfig{Enabled: boolPtr(false)},
	}
}

func newTestNotifier(t *testing.T, cfg config.Config, msgr *fakeMessenger) *Notifier {
	t.Helper()
	var n *Notifier
	var err error
	if msgr != nil {
		n, err = New(cfg, msgr, logx.Nop())
	} else {
		n, err = New(cfg, nil, logx.Nop())
	}
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return n
}

func TestReportLocalOnlyCreatesDistinctFolders(t *testing.T) {
	n := newTestNotifier(t, testConfig(t.TempDir()), nil)
	defer n.Close()

	seen := map[string]bool{}
	for i := 0; i < 4; i++ {
		folder, err := n.Report(ReportRequest{
			Title: fmt.Sprintf("run %d", i),
			Text:  "body",
			Send:  false,
		})
		if err != nil {
			t.Fatalf("Report: %v", err)
		}
		if seen[folder] {
			t.Fatalf("duplicate folder %s", folder)
		}
		seen[folder] = true

		meta, err := report.ReadMeta(folder)
		if err != nil {
			t.Fatalf("meta.json unreadable in %s: %v", folder, err)
		}
		if meta.Title != fmt.Sprintf("run %d", i) || meta.Text != "body" {
			t.Fatalf("meta mismatch: %+v", meta)
		}
	}
}

func TestRetentionKeepsNewestAndDeletesOldOnce(t *testing.T) {
	msgr := &fakeMessenger{}
	n := newTestNotifier(t, testConfig(t.TempDir()), msgr)

	for i := 1; i <= 5; i++ {
		if _, err := n.Report(ReportRequest{Title: fmt.Sprintf("r%d", i), Text: "x", Send: true}); err != nil {
			t.Fatalf("Report %d: %v", i, err)
		}
	}
	if err := n.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	records := n.History()
	if len(records) != 3 {
		t.Fatalf("expected 3 retained records, got %d", len(records))
	}
	// Single worker, FIFO queue: deliveries 1..5 produce text ids 1..5.
	for i, wantID := range []int{3, 4, 5} {
		if len(records[i].MessageIDs) != 1 || records[i].MessageIDs[0] != wantID {
			t.Fatalf("retained[%d] = %v, want id %d", i, records[i].MessageIDs, wantID)
		}
	}

	got := msgr.snapshot()
	if len(got.deleted) != 2 || got.deleted[0] != 1 || got.deleted[1] != 2 {
		t.Fatalf("expected ids 1,2 deleted exactly once each, got %v", got.deleted)
	}
}

func TestTextOnlyBundleSendsSingleTextMessage(t *testing.T) {
	msgr := &fakeMessenger{}
	n := newTestNotifier(t, testConfig(t.TempDir()), msgr)

	if _, err := n.Report(ReportRequest{Title: "t", Text: "non-empty", Send: true}); err != nil {
		t.Fatalf("Report: %v", err)
	}
	if err := n.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got := msgr.snapshot()
	if len(got.texts) != 1 {
		t.Fatalf("expected exactly one text send, got %d", len(got.texts))
	}
	if len(got.albums) != 0 {
		t.Fatalf("expected no media group for an image-less bundle, got %d", len(got.albums))
	}
	if !strings.Contains(got.texts[0], "non-empty") {
		t.Fatalf("caption missing body text: %q", got.texts[0])
	}
}

func TestAlbumTruncatedToFirstTen(t *testing.T) {
	dir := t.TempDir()
	msgr := &fakeMessenger{}
	n := newTestNotifier(t, testConfig(dir), msgr)

	var figures []report.Figure
	for i := 0; i < 15; i++ {
		figures = append(figures, report.FigureFunc(func(path string) error {
			return os.WriteFile(path, []byte("png"), 0o644)
		}))
	}
	if _, err := n.Report(ReportRequest{Title: "many", Figures: figures, Send: true}); err != nil {
		t.Fatalf("Report: %v", err)
	}
	if err := n.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got := msgr.snapshot()
	if len(got.albums) != 1 {
		t.Fatalf("expected one media group, got %d", len(got.albums))
	}
	album := got.albums[0]
	if len(album) != 10 {
		t.Fatalf("expected first 10 images, got %d", len(album))
	}
	for i, p := range album {
		if filepath.Base(p) != fmt.Sprintf("figure_%d.png", i) {
			t.Fatalf("album[%d] = %s; input order not preserved", i, p)
		}
	}
}

func TestPDFAssemblyFailureDegradesGracefully(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.PDF.Enabled = boolPtr(true)
	msgr := &fakeMessenger{}
	n := newTestNotifier(t, cfg, msgr)
	n.assemblePDF = func(path, title, text string, images []string) error {
		return errors.New("layout engine exploded")
	}

	folder, err := n.Report(ReportRequest{Title: "t", Text: "x", Send: false})
	if err != nil {
		t.Fatalf("Report must survive PDF failure: %v", err)
	}
	if _, err := report.ReadMeta(folder); err != nil {
		t.Fatalf("meta.json missing after PDF failure: %v", err)
	}
	entries, err := os.ReadDir(folder)
	if err != nil {
		t.Fatalf("read folder: %v", err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".pdf" {
			t.Fatalf("half-written pdf left behind: %s", e.Name())
		}
	}
	if err := n.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// The failure went out on the critical channel and its alert id was
	// recorded as a system error.
	got := msgr.snapshot()
	if len(got.texts) != 1 || !strings.Contains(got.texts[0], "System Error") {
		t.Fatalf("expected one critical alert, got %v", got.texts)
	}
	if errs := n.hist.SystemErrors(); len(errs) != 1 {
		t.Fatalf("expected critical alert id recorded, got %v", errs)
	}
}

func TestAffinityErrorSurfacesInCaption(t *testing.T) {
	msgr := &fakeMessenger{}
	n := newTestNotifier(t, testConfig(t.TempDir()), msgr)

	figures := []report.Figure{
		report.FigureFunc(func(path string) error {
			return &report.AffinityError{Reason: "renderer bound to its owning goroutine"}
		}),
		report.FigureFunc(func(path string) error {
			return os.WriteFile(path, []byte("png"), 0o644)
		}),
	}
	if _, err := n.Report(ReportRequest{Title: "t", Figures: figures, Send: true}); err != nil {
		t.Fatalf("Report: %v", err)
	}
	if err := n.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got := msgr.snapshot()
	if len(got.albums) != 1 || len(got.albums[0]) != 1 {
		t.Fatalf("expected one album with the surviving figure, got %v", got.albums)
	}
	if len(got.captions) != 1 || !strings.Contains(got.captions[0], "owning goroutine") {
		t.Fatalf("render error missing from caption: %v", got.captions)
	}
	// Affinity violations are user errors, not critical alerts.
	if len(got.texts) != 0 {
		t.Fatalf("no critical alert expected, got %v", got.texts)
	}
}

func TestPartialDeliveryRecordsObtainedIDs(t *testing.T) {
	dir := t.TempDir()
	attachment := filepath.Join(dir, "results.csv")
	if err := os.WriteFile(attachment, []byte("a,b\n"), 0o644); err != nil {
		t.Fatalf("write attachment: %v", err)
	}

	msgr := &fakeMessenger{failDocs: true}
	n := newTestNotifier(t, testConfig(dir), msgr)

	if _, err := n.Report(ReportRequest{Title: "t", Text: "x", Files: []string{attachment}, Send: true}); err != nil {
		t.Fatalf("Report: %v", err)
	}
	if err := n.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	records := n.History()
	if len(records) != 1 {
		t.Fatalf("expected the text id recorded despite document failure, got %v", records)
	}
	if len(records[0].MessageIDs) != 1 {
		t.Fatalf("expected exactly the text message id, got %v", records[0].MessageIDs)
	}
	if errs := n.hist.SystemErrors(); len(errs) != 1 {
		t.Fatalf("expected one critical alert recorded, got %v", errs)
	}
}

func TestDeliveryFailureLeavesLedgerClean(t *testing.T) {
	msgr := &fakeMessenger{failText: true}
	n := newTestNotifier(t, testConfig(t.TempDir()), msgr)

	if _, err := n.Report(ReportRequest{Title: "t", Text: "x", Send: true}); err != nil {
		t.Fatalf("Report: %v", err)
	}
	if err := n.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if records := n.History(); len(records) != 0 {
		t.Fatalf("no ids obtained, ledger must stay empty; got %v", records)
	}
	if errs := n.hist.SystemErrors(); len(errs) != 1 {
		t.Fatalf("expected one critical alert recorded, got %v", errs)
	}
}

func TestDebugModeTerminatesOnCriticalError(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.Debug = true
	cfg.PDF.Enabled = boolPtr(true)
	msgr := &fakeMessenger{}
	n := newTestNotifier(t, cfg, msgr)

	exitCode := -1
	n.exit = func(code int) { exitCode = code }
	n.assemblePDF = func(string, string, string, []string) error {
		return errors.New("internal bug")
	}

	if _, err := n.Report(ReportRequest{Title: "t", Send: false}); err != nil {
		t.Fatalf("Report: %v", err)
	}
	if exitCode != 1 {
		t.Fatalf("debug mode must terminate after critical alert, exit=%d", exitCode)
	}
	_ = n.Close()
}

func TestReportErrorFollowsReportPath(t *testing.T) {
	msgr := &fakeMessenger{}
	n := newTestNotifier(t, testConfig(t.TempDir()), msgr)

	folder := n.ReportError(errors.New("singular matrix"), "solve step", true)
	if folder == "" {
		t.Fatalf("ReportError must return the bundle folder")
	}
	if err := n.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	meta, err := report.ReadMeta(folder)
	if err != nil {
		t.Fatalf("error report has no meta.json: %v", err)
	}
	if !strings.Contains(meta.Text, "singular matrix") || !strings.Contains(meta.Text, "solve step") {
		t.Fatalf("error detail missing from report text: %q", meta.Text)
	}

	got := msgr.snapshot()
	if len(got.texts) != 1 {
		t.Fatalf("expected one delivery for the error report, got %v", got.texts)
	}
}

func TestCatchReportsAndOptionallyReraises(t *testing.T) {
	msgr := &fakeMessenger{}
	n := newTestNotifier(t, testConfig(t.TempDir()), msgr)
	defer n.Close()

	boom := errors.New("boom")

	if err := n.Catch("step A", false)(func() error { return boom }); err != nil {
		t.Fatalf("swallowing wrapper returned %v", err)
	}
	if err := n.Catch("step B", true)(func() error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("reraising wrapper returned %v", err)
	}
	if err := n.Catch("step C", false)(func() error { return nil }); err != nil {
		t.Fatalf("clean run returned %v", err)
	}
}

// blockingMessenger stalls report deliveries until released, so tests can
// hold the worker busy and fill the queue deterministically. Critical alerts
// pass through unblocked.
type blockingMessenger struct {
	*fakeMessenger
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingMessenger) SendText(ctx context.Context, text string) (int, error) {
	if !strings.Contains(text, "System Error") {
		b.once.Do(func() { close(b.entered) })
		<-b.release
	}
	return b.fakeMessenger.SendText(ctx, text)
}

func TestQueueFullRaisesCriticalAndKeepsReportLocal(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.Delivery.QueueSize = 1
	bm := &blockingMessenger{
		fakeMessenger: &fakeMessenger{},
		entered:       make(chan struct{}),
		release:       make(chan struct{}),
	}
	n, err := New(cfg, bm, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := n.Report(ReportRequest{Title: "r1", Text: "x", Send: true}); err != nil {
		t.Fatalf("Report 1: %v", err)
	}
	<-bm.entered // worker is stalled inside the send; queue is empty again

	if _, err := n.Report(ReportRequest{Title: "r2", Text: "x", Send: true}); err != nil {
		t.Fatalf("Report 2: %v", err)
	}

	// Queue is full now; this one must be dropped loudly.
	folder, err := n.Report(ReportRequest{Title: "r3", Text: "x", Send: true})
	if err != nil {
		t.Fatalf("Report 3: %v", err)
	}
	if errs := n.hist.SystemErrors(); len(errs) != 1 {
		t.Fatalf("dropped delivery must raise a critical alert, got %v", errs)
	}
	if _, err := report.ReadMeta(folder); err != nil {
		t.Fatalf("dropped report must stay valid locally: %v", err)
	}

	close(bm.release)
	if err := n.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if records := n.History(); len(records) != 2 {
		t.Fatalf("expected the two queued reports delivered, got %d records", len(records))
	}
}

func TestFollowConfigAppliesUpdates(t *testing.T) {
	msgr := &fakeMessenger{}
	cfg := testConfig(t.TempDir())
	n := newTestNotifier(t, cfg, msgr)
	defer n.Close()

	updates := make(chan *config.Config)
	done := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		n.FollowConfig(ctx, updates)
		close(done)
	}()

	updated := cfg
	updated.KeepLast = 7
	updated.PDF.Attach = true
	updates <- &updated // synchronous handoff: Apply ran before the next send
	updates <- &updated

	if got := n.keepLastN(); got != 7 {
		t.Fatalf("keep_last not applied, got %d", got)
	}
	if !n.pdfAttached() {
		t.Fatalf("pdf.attach not applied")
	}

	cancel()
	<-done
}

func TestApplyUpdatesKeepLast(t *testing.T) {
	msgr := &fakeMessenger{}
	cfg := testConfig(t.TempDir())
	n := newTestNotifier(t, cfg, msgr)

	updated := cfg
	updated.KeepLast = 1
	n.Apply(&updated)

	for i := 1; i <= 3; i++ {
		if _, err := n.Report(ReportRequest{Title: "t", Text: "x", Send: true}); err != nil {
			t.Fatalf("Report: %v", err)
		}
	}
	if err := n.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if records := n.History(); len(records) != 1 {
		t.Fatalf("keep_last=1 must retain a single record, got %d", len(records))
	}
}
