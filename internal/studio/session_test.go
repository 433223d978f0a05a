package studio

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"headshot/internal/catalog"
	"headshot/internal/domain"
)

type fakeEditor struct {
	mu    sync.Mutex
	calls []EditRequest
	fn    func(req EditRequest) (domain.Image, error)
}

func (f *fakeEditor) EditImage(ctx context.Context, req EditRequest) (domain.Image, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	fn := f.fn
	f.mu.Unlock()
	if fn != nil {
		return fn(req)
	}
	return domain.Image{Data: []byte("img-" + req.StyleID + "-" + string(req.Tier)), MIMEType: "image/png"}, nil
}

func (f *fakeEditor) Calls() []EditRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]EditRequest(nil), f.calls...)
}

type fakeValidator struct {
	verdict Verdict
	err     error
	calls   int
}

func (f *fakeValidator) ValidatePerson(ctx context.Context, img domain.Image) (Verdict, error) {
	f.calls++
	return f.verdict, f.err
}

type fakeUnlocks struct {
	mu      sync.Mutex
	stored  map[string][]string
	saveErr error
}

func (f *fakeUnlocks) Load(ctx context.Context, owner string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.stored[owner]...), nil
}

func (f *fakeUnlocks) Save(ctx context.Context, owner string, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	if f.stored == nil {
		f.stored = make(map[string][]string)
	}
	f.stored[owner] = append([]string(nil), ids...)
	return nil
}

type fakeKeys struct {
	err   error
	calls int
}

func (f *fakeKeys) EnsureKey(ctx context.Context) error {
	f.calls++
	return f.err
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
}

func (n *recordingNotifier) Publish(sessionID string, ev Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

func (n *recordingNotifier) count(kind string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, ev := range n.events {
		if ev.Type == kind {
			c++
		}
	}
	return c
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 200, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func noSleep(ctx context.Context, d time.Duration) error {
	return ctx.Err()
}

func newTestSession(t *testing.T, deps Deps) *Session {
	t.Helper()
	if deps.Editor == nil {
		deps.Editor = &fakeEditor{}
	}
	if deps.Sleep == nil {
		deps.Sleep = noSleep
	}
	s, err := NewSession(context.Background(), "sess-1", deps)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	return s
}

func withSource(t *testing.T, s *Session) {
	t.Helper()
	if _, err := s.AcceptSource(context.Background(), pngBytes(t)); err != nil {
		t.Fatalf("AcceptSource: %v", err)
	}
}

func TestAcceptSourceClearsResultsAndKeepsUnlocks(t *testing.T) {
	editor := &fakeEditor{}
	s := newTestSession(t, Deps{Editor: editor})
	ctx := context.Background()
	withSource(t, s)

	if _, err := s.GenerateOne(ctx, "corporate", domain.TierPreview); err != nil {
		t.Fatalf("GenerateOne: %v", err)
	}
	if _, err := s.GenerateCustom(ctx, "navy suit"); err != nil {
		t.Fatalf("GenerateCustom: %v", err)
	}
	if err := s.CompletePurchase(ctx, "tech"); err != nil {
		t.Fatalf("CompletePurchase: %v", err)
	}

	img, err := s.AcceptSource(ctx, pngBytes(t))
	if err != nil {
		t.Fatalf("AcceptSource: %v", err)
	}
	if img.MIMEType != "image/png" {
		t.Fatalf("MIMEType = %q, want image/png", img.MIMEType)
	}

	snap := s.Snapshot()
	for _, v := range snap.Styles {
		if v.Status != domain.StatusIdle || v.HasImage {
			t.Fatalf("style %s not reset: %+v", v.ID, v)
		}
	}
	if snap.Custom.Status != domain.StatusIdle || snap.Custom.HasImage {
		t.Fatalf("custom slot not reset: %+v", snap.Custom)
	}
	if !s.Unlocked("tech") {
		t.Fatal("unlock lost after new source")
	}
}

func TestAcceptSourceRejectsOversizedFile(t *testing.T) {
	validator := &fakeValidator{verdict: Verdict{Valid: true}}
	s := newTestSession(t, Deps{Validator: validator})

	data := make([]byte, 6<<20)
	copy(data, pngBytes(t))
	_, err := s.AcceptSource(context.Background(), data)
	if !errors.Is(err, domain.ErrFileTooLarge) {
		t.Fatalf("err = %v, want ErrFileTooLarge", err)
	}
	if validator.calls != 0 {
		t.Fatalf("validator called %d times", validator.calls)
	}
	snap := s.Snapshot()
	if snap.HasSource {
		t.Fatal("oversized file was stored")
	}
	if snap.Banner != msgFileTooLarge {
		t.Fatalf("banner = %q", snap.Banner)
	}
}

func TestRejectOversizedSetsBanner(t *testing.T) {
	s := newTestSession(t, Deps{})
	withSource(t, s)

	err := s.RejectOversized(-1)
	if !errors.Is(err, domain.ErrFileTooLarge) {
		t.Fatalf("err = %v, want ErrFileTooLarge", err)
	}
	snap := s.Snapshot()
	if snap.Banner != msgFileTooLarge {
		t.Fatalf("banner = %q", snap.Banner)
	}
	if !snap.HasSource {
		t.Fatal("rejected upload dropped the current source")
	}
}

func TestAcceptSourceRejectsNonImage(t *testing.T) {
	s := newTestSession(t, Deps{})
	_, err := s.AcceptSource(context.Background(), []byte("just some text"))
	if !errors.Is(err, domain.ErrUnsupportedMedia) {
		t.Fatalf("err = %v, want ErrUnsupportedMedia", err)
	}
}

func TestAcceptSourceValidatorRejection(t *testing.T) {
	cases := []struct {
		name    string
		message string
		want    string
	}{
		{"explicit message", "That looks like a cat.", "That looks like a cat."},
		{"empty message", "", msgNotAPerson},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestSession(t, Deps{Validator: &fakeValidator{verdict: Verdict{Valid: false, Message: tc.message}}})
			_, err := s.AcceptSource(context.Background(), pngBytes(t))
			var rej *domain.RejectionError
			if !errors.As(err, &rej) {
				t.Fatalf("err = %v, want RejectionError", err)
			}
			if rej.Message != tc.want {
				t.Fatalf("message = %q, want %q", rej.Message, tc.want)
			}
			if !errors.Is(err, domain.ErrValidationRejected) {
				t.Fatal("RejectionError does not unwrap to ErrValidationRejected")
			}
			snap := s.Snapshot()
			if snap.HasSource || snap.Banner != tc.want {
				t.Fatalf("unexpected snapshot: %+v", snap)
			}
		})
	}
}

func TestAcceptSourceValidatorFailureFailsOpen(t *testing.T) {
	s := newTestSession(t, Deps{Validator: &fakeValidator{err: errors.New("timeout")}})
	if _, err := s.AcceptSource(context.Background(), pngBytes(t)); err != nil {
		t.Fatalf("AcceptSource: %v", err)
	}
	if !s.Snapshot().HasSource {
		t.Fatal("source not stored when validator failed")
	}
}

func TestGenerateRequiresSource(t *testing.T) {
	s := newTestSession(t, Deps{})
	if _, err := s.GenerateOne(context.Background(), "corporate", domain.TierPreview); !errors.Is(err, domain.ErrNoSource) {
		t.Fatalf("err = %v, want ErrNoSource", err)
	}
	if _, err := s.GenerateAll(context.Background()); !errors.Is(err, domain.ErrNoSource) {
		t.Fatalf("GenerateAll err = %v, want ErrNoSource", err)
	}
	if _, err := s.GenerateCustom(context.Background(), "hat"); !errors.Is(err, domain.ErrNoSource) {
		t.Fatalf("GenerateCustom err = %v, want ErrNoSource", err)
	}
}

func TestGenerateOneRejectsCustomAndUnknownStyles(t *testing.T) {
	s := newTestSession(t, Deps{})
	withSource(t, s)
	if _, err := s.GenerateOne(context.Background(), catalog.CustomID, domain.TierPreview); !errors.Is(err, domain.ErrCustomStyle) {
		t.Fatalf("err = %v, want ErrCustomStyle", err)
	}
	if _, err := s.GenerateOne(context.Background(), "nope", domain.TierPreview); !errors.Is(err, domain.ErrStyleNotFound) {
		t.Fatalf("err = %v, want ErrStyleNotFound", err)
	}
}

func TestRouteActionOnIdleGeneratesOnce(t *testing.T) {
	editor := &fakeEditor{}
	s := newTestSession(t, Deps{Editor: editor})
	withSource(t, s)

	out, err := s.RouteAction(context.Background(), "outdoor")
	if err != nil {
		t.Fatalf("RouteAction: %v", err)
	}
	if out.Action != domain.ActionGenerate {
		t.Fatalf("action = %q", out.Action)
	}
	calls := editor.Calls()
	if len(calls) != 1 || calls[0].StyleID != "outdoor" || calls[0].Tier != domain.TierPreview {
		t.Fatalf("unexpected calls: %+v", calls)
	}
	if out.Result.Status != domain.StatusSuccess || out.Result.Tier != domain.TierPreview {
		t.Fatalf("result = %+v", out.Result)
	}
}

func TestRouteActionWhileLoadingWaits(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	editor := &fakeEditor{fn: func(req EditRequest) (domain.Image, error) {
		close(started)
		<-release
		return domain.Image{Data: []byte("x"), MIMEType: "image/png"}, nil
	}}
	s := newTestSession(t, Deps{Editor: editor})
	withSource(t, s)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.GenerateOne(context.Background(), "tech", domain.TierPreview)
	}()
	<-started

	out, err := s.RouteAction(context.Background(), "tech")
	if err != nil {
		t.Fatalf("RouteAction: %v", err)
	}
	if out.Action != domain.ActionWait {
		t.Fatalf("action = %q, want wait", out.Action)
	}
	close(release)
	<-done
	if n := len(editor.Calls()); n != 1 {
		t.Fatalf("editor called %d times, want 1", n)
	}
}

func TestFailedRegenerationKeepsPreviousImage(t *testing.T) {
	fail := false
	editor := &fakeEditor{}
	editor.fn = func(req EditRequest) (domain.Image, error) {
		if fail {
			return domain.Image{}, errors.New("quota exceeded")
		}
		return domain.Image{Data: []byte("first"), MIMEType: "image/png"}, nil
	}
	s := newTestSession(t, Deps{Editor: editor, Mode: domain.UnlockUpgrade, Keys: &fakeKeys{}})
	withSource(t, s)
	ctx := context.Background()

	if _, err := s.GenerateOne(ctx, "studio", domain.TierPreview); err != nil {
		t.Fatalf("GenerateOne: %v", err)
	}
	fail = true
	out, err := s.RouteAction(ctx, "studio")
	if err != nil {
		t.Fatalf("RouteAction: %v", err)
	}
	if out.Action != domain.ActionUpgrade {
		t.Fatalf("action = %q, want upgrade", out.Action)
	}
	res := s.Result("studio")
	if res.Status != domain.StatusSuccess || res.Tier != domain.TierPreview || string(res.Image.Data) != "first" {
		t.Fatalf("previous image not retained: %+v", res)
	}
}

func TestFailedFirstGenerationIsError(t *testing.T) {
	editor := &fakeEditor{fn: func(req EditRequest) (domain.Image, error) {
		return domain.Image{}, nil
	}}
	s := newTestSession(t, Deps{Editor: editor})
	withSource(t, s)
	res, err := s.GenerateOne(context.Background(), "cafe", domain.TierPreview)
	if err != nil {
		t.Fatalf("GenerateOne: %v", err)
	}
	if res.Status != domain.StatusError || res.HasImage() {
		t.Fatalf("result = %+v, want error without image", res)
	}
	if Decide(res, false, domain.UnlockPaywall) != domain.ActionGenerate {
		t.Fatal("error state should route to generate")
	}
}

func TestGenerateAllSequential(t *testing.T) {
	editor := &fakeEditor{}
	var slept []time.Duration
	s := newTestSession(t, Deps{
		Editor:     editor,
		BatchDelay: DefaultBatchDelay,
		Sleep: func(ctx context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		},
	})
	withSource(t, s)
	ctx := context.Background()

	if _, err := s.GenerateOne(ctx, "tech", domain.TierPreview); err != nil {
		t.Fatalf("GenerateOne: %v", err)
	}

	ids, err := s.GenerateAll(ctx)
	if err != nil {
		t.Fatalf("GenerateAll: %v", err)
	}
	want := []string{"corporate", "outdoor", "studio", "cafe", "cyberpunk"}
	if len(ids) != len(want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
	calls := editor.Calls()[1:]
	for i, id := range want {
		if ids[i] != id || calls[i].StyleID != id {
			t.Fatalf("dispatch %d = %q / %q, want %q", i, ids[i], calls[i].StyleID, id)
		}
	}
	if len(slept) != len(want)-1 {
		t.Fatalf("slept %d times, want %d", len(slept), len(want)-1)
	}
	for _, d := range slept {
		if d != DefaultBatchDelay {
			t.Fatalf("delay = %v, want %v", d, DefaultBatchDelay)
		}
	}
	for _, v := range s.Snapshot().Styles {
		if v.Status != domain.StatusSuccess {
			t.Fatalf("style %s status %s", v.ID, v.Status)
		}
	}

	before := len(editor.Calls())
	ids, err = s.GenerateAll(ctx)
	if err != nil || len(ids) != 0 {
		t.Fatalf("second GenerateAll = %v, %v", ids, err)
	}
	if len(editor.Calls()) != before {
		t.Fatal("second GenerateAll issued remote calls")
	}
}

func TestGenerateAllParallel(t *testing.T) {
	editor := &fakeEditor{}
	s := newTestSession(t, Deps{Editor: editor, Policy: BatchParallel})
	withSource(t, s)

	ids, err := s.GenerateAll(context.Background())
	if err != nil {
		t.Fatalf("GenerateAll: %v", err)
	}
	if len(ids) != 6 || len(editor.Calls()) != 6 {
		t.Fatalf("ids = %v, calls = %d", ids, len(editor.Calls()))
	}
	if s.Busy() {
		t.Fatal("session still busy after batch")
	}
}

func TestPrepareAllMarksLoadingAndGuardsConcurrentBatch(t *testing.T) {
	s := newTestSession(t, Deps{})
	withSource(t, s)

	b, err := s.PrepareAll()
	if err != nil || b == nil {
		t.Fatalf("PrepareAll = %v, %v", b, err)
	}
	for _, v := range s.Snapshot().Styles {
		if v.Status != domain.StatusLoading {
			t.Fatalf("style %s status %s, want loading", v.ID, v.Status)
		}
	}
	if _, err := s.PrepareAll(); !errors.Is(err, domain.ErrBatchInProgress) {
		t.Fatalf("err = %v, want ErrBatchInProgress", err)
	}
	b.Run(context.Background())
	if s.Busy() {
		t.Fatal("batch flag not cleared")
	}
}

func TestNewSourceSupersedesRunningBatch(t *testing.T) {
	started := make(chan struct{})
	unblock := make(chan struct{})
	var first sync.Once
	editor := &fakeEditor{fn: func(req EditRequest) (domain.Image, error) {
		blocked := false
		first.Do(func() { blocked = true })
		if blocked {
			close(started)
			<-unblock
		}
		return domain.Image{Data: []byte("img-" + req.StyleID), MIMEType: "image/png"}, nil
	}}
	s := newTestSession(t, Deps{Editor: editor})
	withSource(t, s)

	old, err := s.PrepareAll()
	if err != nil || old == nil {
		t.Fatalf("PrepareAll = %v, %v", old, err)
	}
	done := make(chan struct{})
	go func() {
		old.Run(context.Background())
		close(done)
	}()
	<-started

	withSource(t, s)
	if s.Busy() || s.Snapshot().BatchRunning {
		t.Fatal("new source still reports the old batch as running")
	}
	next, err := s.PrepareAll()
	if err != nil {
		t.Fatalf("PrepareAll after new source: %v", err)
	}
	if got := len(next.StyleIDs()); got != 6 {
		t.Fatalf("selected %d styles, want 6", got)
	}

	close(unblock)
	<-done
	if !s.Busy() {
		t.Fatal("superseded batch cleared the running flag of the new batch")
	}
	if n := len(editor.Calls()); n != 1 {
		t.Fatalf("superseded batch kept dispatching: %d calls", n)
	}
	if st := s.Result("corporate").Status; st != domain.StatusLoading {
		t.Fatalf("corporate status %s, want loading until the new batch answers", st)
	}

	next.Run(context.Background())
	if s.Busy() {
		t.Fatal("batch flag not cleared")
	}
	for _, v := range s.Snapshot().Styles {
		if v.Status != domain.StatusSuccess {
			t.Fatalf("style %s status %s, want success", v.ID, v.Status)
		}
	}
}

func TestResetReleasesBatchGuard(t *testing.T) {
	s := newTestSession(t, Deps{})
	withSource(t, s)
	if _, err := s.PrepareAll(); err != nil {
		t.Fatalf("PrepareAll: %v", err)
	}
	s.Reset()
	if s.Busy() {
		t.Fatal("reset left the batch guard set")
	}
	withSource(t, s)
	if b, err := s.PrepareAll(); err != nil || b == nil {
		t.Fatalf("PrepareAll after reset = %v, %v", b, err)
	}
}

func TestGenerateAllParallelCancelledRestoresStyles(t *testing.T) {
	editor := &fakeEditor{}
	s := newTestSession(t, Deps{Editor: editor, Policy: BatchParallel})
	withSource(t, s)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.GenerateAll(ctx); err != nil {
		t.Fatalf("GenerateAll: %v", err)
	}
	if n := len(editor.Calls()); n != 0 {
		t.Fatalf("editor called %d times after cancel", n)
	}
	for _, v := range s.Snapshot().Styles {
		if v.Status != domain.StatusIdle {
			t.Fatalf("style %s status %s, want idle", v.ID, v.Status)
		}
	}
	if s.Busy() {
		t.Fatal("batch flag not cleared")
	}
}

func TestGenerateAllCancelledRestoresUndispatched(t *testing.T) {
	editor := &fakeEditor{}
	ctx, cancel := context.WithCancel(context.Background())
	s := newTestSession(t, Deps{
		Editor: editor,
		Sleep: func(c context.Context, d time.Duration) error {
			cancel()
			return c.Err()
		},
	})
	withSource(t, s)

	if _, err := s.GenerateAll(ctx); err != nil {
		t.Fatalf("GenerateAll: %v", err)
	}
	if n := len(editor.Calls()); n != 1 {
		t.Fatalf("editor called %d times, want 1", n)
	}
	for _, v := range s.Snapshot().Styles {
		want := domain.StatusIdle
		if v.ID == "corporate" {
			want = domain.StatusSuccess
		}
		if v.Status != want {
			t.Fatalf("style %s status %s, want %s", v.ID, v.Status, want)
		}
	}
}

func TestStaleResponseIsDiscarded(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	editor := &fakeEditor{fn: func(req EditRequest) (domain.Image, error) {
		once.Do(func() { close(started) })
		<-release
		return domain.Image{Data: []byte("old"), MIMEType: "image/png"}, nil
	}}
	s := newTestSession(t, Deps{Editor: editor})
	withSource(t, s)

	done := make(chan domain.GenerationResult)
	go func() {
		res, _ := s.GenerateOne(context.Background(), "corporate", domain.TierPreview)
		done <- res
	}()
	<-started

	// A new source supersedes the in-flight call.
	withSource(t, s)
	close(release)
	<-done

	if res := s.Result("corporate"); res.Status != domain.StatusIdle || res.HasImage() {
		t.Fatalf("stale response applied: %+v", res)
	}
}

func TestPaywallPurchaseUnlocksDownload(t *testing.T) {
	unlocks := &fakeUnlocks{}
	notifier := &recordingNotifier{}
	s := newTestSession(t, Deps{Unlocks: unlocks, Notifier: notifier})
	withSource(t, s)
	ctx := context.Background()

	if _, err := s.GenerateOne(ctx, "corporate", domain.TierPreview); err != nil {
		t.Fatalf("GenerateOne: %v", err)
	}
	out, err := s.RouteAction(ctx, "corporate")
	if err != nil {
		t.Fatalf("RouteAction: %v", err)
	}
	if out.Action != domain.ActionOpenPaywall || out.Paywall == nil || out.Paywall.Name == "" {
		t.Fatalf("outcome = %+v", out)
	}
	if _, err := s.Download("corporate"); !errors.Is(err, domain.ErrNotDownloadable) {
		t.Fatalf("Download before purchase err = %v", err)
	}

	if err := s.CompletePurchase(ctx, "corporate"); err != nil {
		t.Fatalf("CompletePurchase: %v", err)
	}
	if got := unlocks.stored["sess-1"]; len(got) != 1 || got[0] != "corporate" {
		t.Fatalf("stored unlocks = %v", got)
	}
	if notifier.count(EventCelebrate) != 1 {
		t.Fatalf("celebrate events = %d", notifier.count(EventCelebrate))
	}

	out, err = s.RouteAction(ctx, "corporate")
	if err != nil {
		t.Fatalf("RouteAction: %v", err)
	}
	if out.Action != domain.ActionDownload || out.Download == nil {
		t.Fatalf("outcome = %+v", out)
	}
	if out.Download.FileName != "pro-headshot-corporate.png" {
		t.Fatalf("file name = %q", out.Download.FileName)
	}
}

func TestCompletePurchaseKeepsUnlockWhenSaveFails(t *testing.T) {
	unlocks := &fakeUnlocks{saveErr: errors.New("db down")}
	s := newTestSession(t, Deps{Unlocks: unlocks})
	if err := s.CompletePurchase(context.Background(), "tech"); !errors.Is(err, domain.ErrUnlockNotPersisted) {
		t.Fatalf("err = %v, want ErrUnlockNotPersisted", err)
	}
	if !s.Unlocked("tech") {
		t.Fatal("in-memory unlock lost")
	}
}

func TestCompletePurchaseDisabledInUpgradeMode(t *testing.T) {
	s := newTestSession(t, Deps{Mode: domain.UnlockUpgrade})
	if err := s.CompletePurchase(context.Background(), "tech"); !errors.Is(err, domain.ErrPaywallDisabled) {
		t.Fatalf("err = %v, want ErrPaywallDisabled", err)
	}
}

func TestUnlocksReloadedOnOpen(t *testing.T) {
	unlocks := &fakeUnlocks{stored: map[string][]string{"sess-1": {"cafe"}}}
	s := newTestSession(t, Deps{Unlocks: unlocks})
	if !s.Unlocked("cafe") {
		t.Fatal("persisted unlock not loaded")
	}
}

func TestUpgradeFlow(t *testing.T) {
	editor := &fakeEditor{}
	keys := &fakeKeys{}
	s := newTestSession(t, Deps{Editor: editor, Keys: keys, Mode: domain.UnlockUpgrade})
	withSource(t, s)
	ctx := context.Background()

	if _, err := s.GenerateOne(ctx, "cyberpunk", domain.TierPreview); err != nil {
		t.Fatalf("GenerateOne: %v", err)
	}
	out, err := s.RouteAction(ctx, "cyberpunk")
	if err != nil {
		t.Fatalf("RouteAction: %v", err)
	}
	if out.Action != domain.ActionUpgrade || out.Result.Tier != domain.TierHigh {
		t.Fatalf("outcome = %+v", out)
	}
	if keys.calls != 1 {
		t.Fatalf("EnsureKey calls = %d", keys.calls)
	}
	calls := editor.Calls()
	if last := calls[len(calls)-1]; last.Tier != domain.TierHigh {
		t.Fatalf("last tier = %q, want high", last.Tier)
	}
	d, err := s.Download("cyberpunk")
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if d.FileName != "pro-headshot-cyberpunk-2k.png" {
		t.Fatalf("file name = %q", d.FileName)
	}
}

func TestUpgradeDeclinedLeavesStateUntouched(t *testing.T) {
	editor := &fakeEditor{}
	s := newTestSession(t, Deps{Editor: editor, Keys: &fakeKeys{err: errors.New("dismissed")}, Mode: domain.UnlockUpgrade})
	withSource(t, s)
	ctx := context.Background()

	if _, err := s.GenerateOne(ctx, "tech", domain.TierPreview); err != nil {
		t.Fatalf("GenerateOne: %v", err)
	}
	before := s.Result("tech")
	if _, err := s.RouteAction(ctx, "tech"); !errors.Is(err, domain.ErrKeySelectionDeclined) {
		t.Fatalf("err = %v, want ErrKeySelectionDeclined", err)
	}
	after := s.Result("tech")
	if after.Status != before.Status || after.Tier != before.Tier || after.Image != before.Image {
		t.Fatalf("state changed: %+v -> %+v", before, after)
	}
	if len(editor.Calls()) != 1 {
		t.Fatalf("editor called %d times", len(editor.Calls()))
	}
}

func TestGenerateCustom(t *testing.T) {
	fail := false
	editor := &fakeEditor{}
	editor.fn = func(req EditRequest) (domain.Image, error) {
		if fail {
			return domain.Image{}, errors.New("boom")
		}
		return domain.Image{Data: []byte("custom"), MIMEType: "image/png"}, nil
	}
	s := newTestSession(t, Deps{Editor: editor})
	withSource(t, s)
	ctx := context.Background()

	if _, err := s.GenerateCustom(ctx, "   "); !errors.Is(err, domain.ErrEmptyInstruction) {
		t.Fatalf("err = %v, want ErrEmptyInstruction", err)
	}
	if _, err := s.CustomDownload(); !errors.Is(err, domain.ErrNotDownloadable) {
		t.Fatalf("CustomDownload err = %v", err)
	}

	slot, err := s.GenerateCustom(ctx, " wearing a red scarf ")
	if err != nil {
		t.Fatalf("GenerateCustom: %v", err)
	}
	if slot.Status != domain.StatusSuccess || slot.Instruction != "wearing a red scarf" {
		t.Fatalf("slot = %+v", slot)
	}
	calls := editor.Calls()
	if got := calls[0].Instruction; got != BuildCustomInstruction("wearing a red scarf") {
		t.Fatalf("instruction = %q", got)
	}
	if calls[0].StyleID != catalog.CustomID || calls[0].Tier != domain.TierPreview {
		t.Fatalf("request = %+v", calls[0])
	}

	fail = true
	slot, err = s.GenerateCustom(ctx, "blue scarf")
	if err != nil {
		t.Fatalf("GenerateCustom: %v", err)
	}
	if slot.Status != domain.StatusError || !slot.HasImage() {
		t.Fatalf("slot after failure = %+v", slot)
	}
	d, err := s.CustomDownload()
	if err != nil {
		t.Fatalf("CustomDownload: %v", err)
	}
	if d.FileName != CustomFileName || string(d.Data) != "custom" {
		t.Fatalf("download = %+v", d)
	}

	for _, v := range s.Snapshot().Styles {
		if v.Status != domain.StatusIdle {
			t.Fatalf("custom flow touched style %s", v.ID)
		}
	}
}

func TestResetKeepsUnlocks(t *testing.T) {
	s := newTestSession(t, Deps{})
	withSource(t, s)
	if err := s.CompletePurchase(context.Background(), "studio"); err != nil {
		t.Fatalf("CompletePurchase: %v", err)
	}
	s.Reset()
	snap := s.Snapshot()
	if snap.HasSource {
		t.Fatal("source kept after reset")
	}
	if len(snap.Unlocked) != 1 || snap.Unlocked[0] != "studio" {
		t.Fatalf("unlocked = %v", snap.Unlocked)
	}
}

func TestGenerateAtTierGate(t *testing.T) {
	ctx := context.Background()

	paywall := newTestSession(t, Deps{})
	withSource(t, paywall)
	if _, err := paywall.GenerateAt(ctx, "tech", domain.TierHigh); !errors.Is(err, domain.ErrTierUnavailable) {
		t.Fatalf("paywall high err = %v, want ErrTierUnavailable", err)
	}
	if _, err := paywall.GenerateAt(ctx, "tech", "ultra"); !errors.Is(err, domain.ErrTierUnavailable) {
		t.Fatalf("unknown tier err = %v", err)
	}
	res, err := paywall.GenerateAt(ctx, "tech", "")
	if err != nil || res.Tier != domain.TierPreview {
		t.Fatalf("default tier = %+v, %v", res, err)
	}

	keys := &fakeKeys{}
	upgrade := newTestSession(t, Deps{Keys: keys, Mode: domain.UnlockUpgrade})
	withSource(t, upgrade)
	res, err = upgrade.GenerateAt(ctx, "tech", domain.TierHigh)
	if err != nil || res.Tier != domain.TierHigh || keys.calls != 1 {
		t.Fatalf("upgrade high = %+v, %v, key calls %d", res, err, keys.calls)
	}
}
