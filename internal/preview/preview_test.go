package preview

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/starford/heritage/internal/models"
	"github.com/starford/heritage/internal/narration"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeSource struct {
	mu      sync.Mutex
	calls   int
	story   *models.Story
	err     error
	release chan struct{}
}

func (f *fakeSource) LatestApproved(ctx context.Context) (*models.Story, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.story, f.err
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type synthFunc func(ctx context.Context, req narration.Request) (*narration.Result, error)

func (f synthFunc) Synthesize(ctx context.Context, req narration.Request) (*narration.Result, error) {
	return f(ctx, req)
}

type recorder struct {
	mu    sync.Mutex
	notes []Notification
}

func (r *recorder) Notify(n Notification) {
	r.mu.Lock()
	r.notes = append(r.notes, n)
	r.mu.Unlock()
}

func (r *recorder) all() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.notes...)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func guardian() *models.Story {
	return &models.Story{
		ID:    "s1",
		Title: "The Stone Guardian",
		Body:  "Long ago...",
		Monument: &models.Monument{
			Title:    "Hampi",
			Location: "Karnataka",
			Era:      "14th century",
		},
	}
}

func newTestActivation(t *testing.T, src ContentSource, synth narration.Synthesizer) (*Activation, *recorder) {
	t.Helper()
	rec := &recorder{}
	a := NewActivation(context.Background(), "test", Options{
		Source:      src,
		Synthesizer: synth,
		Notifiers:   func(string) Notifier { return rec },
		Logger:      quietLogger(),
	})
	t.Cleanup(a.Close)
	return a, rec
}

func wait(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for settlement")
	}
}

func noSynth(t *testing.T) narration.Synthesizer {
	return synthFunc(func(context.Context, narration.Request) (*narration.Result, error) {
		t.Error("synthesizer should not be called")
		return nil, nil
	})
}

func TestLoad_ZeroRecords(t *testing.T) {
	a, rec := newTestActivation(t, &fakeSource{}, noSynth(t))
	wait(t, a.Load())

	vm := a.Snapshot()
	if vm.Loading || vm.Record != nil {
		t.Errorf("view model = %+v, want {loading:false record:nil}", vm)
	}
	if n := len(rec.all()); n != 0 {
		t.Errorf("notifications = %d, want 0", n)
	}
}

func TestLoad_Failure(t *testing.T) {
	a, rec := newTestActivation(t, &fakeSource{err: errors.New("connection refused")}, noSynth(t))
	wait(t, a.Load())

	vm := a.Snapshot()
	if vm.Loading || vm.Record != nil {
		t.Errorf("view model = %+v", vm)
	}
	notes := rec.all()
	if len(notes) != 1 {
		t.Fatalf("notifications = %d, want 1", len(notes))
	}
	if notes[0].Severity != SeverityDestructive || notes[0].Description != "connection refused" || notes[0].Title != TitleLoadError {
		t.Errorf("notification = %+v", notes[0])
	}
}

func TestLoad_SuccessPopulatesRecord(t *testing.T) {
	a, rec := newTestActivation(t, &fakeSource{story: guardian()}, noSynth(t))
	wait(t, a.Load())

	vm := a.Snapshot()
	if vm.Loading || vm.Record == nil || vm.Record.Title != "The Stone Guardian" {
		t.Fatalf("view model = %+v", vm)
	}
	if !vm.CanNarrate() {
		t.Error("narration should be enabled once a story is loaded")
	}
	if len(rec.all()) != 0 {
		t.Error("success must not notify")
	}
}

func TestLoad_LoadingUntilSettled(t *testing.T) {
	src := &fakeSource{story: guardian(), release: make(chan struct{})}
	a, _ := newTestActivation(t, src, noSynth(t))
	done := a.Load()

	for i := 0; i < 3; i++ {
		vm := a.Snapshot()
		if !vm.Loading || vm.Record != nil {
			t.Fatalf("before settlement view model = %+v", vm)
		}
		if vm.CanNarrate() {
			t.Fatal("narration must be disabled while loading")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if _, ok := a.Narrate(narration.English); ok {
		t.Fatal("Narrate accepted while loading")
	}

	close(src.release)
	wait(t, done)
	if a.Snapshot().Loading {
		t.Error("loading should be false after settlement")
	}
}

func TestLoad_RunsOnce(t *testing.T) {
	src := &fakeSource{story: guardian()}
	a, _ := newTestActivation(t, src, noSynth(t))

	first := a.Load()
	second := a.Load()
	if first != second {
		t.Error("Load should return the same handle")
	}
	wait(t, first)
	wait(t, a.Load())
	if src.callCount() != 1 {
		t.Errorf("source calls = %d, want 1", src.callCount())
	}
}

func TestLoad_TimeoutIsFailure(t *testing.T) {
	src := &fakeSource{release: make(chan struct{})}
	rec := &recorder{}
	a := NewActivation(context.Background(), "t", Options{
		Source:      src,
		Synthesizer: noSynth(t),
		Notifiers:   func(string) Notifier { return rec },
		Logger:      quietLogger(),
		LoadTimeout: 20 * time.Millisecond,
	})
	defer a.Close()

	wait(t, a.Load())
	notes := rec.all()
	if len(notes) != 1 || notes[0].Severity != SeverityDestructive {
		t.Fatalf("notifications = %+v", notes)
	}
	if vm := a.Snapshot(); vm.Loading || vm.Record != nil {
		t.Errorf("view model = %+v", vm)
	}
}

func TestClose_DropsLateLoad(t *testing.T) {
	src := &fakeSource{err: errors.New("late"), release: make(chan struct{})}
	a, rec := newTestActivation(t, src, noSynth(t))
	done := a.Load()

	a.Close()
	close(src.release)
	wait(t, done)

	if len(rec.all()) != 0 {
		t.Error("closed activation must not notify")
	}
	if !a.Snapshot().Loading {
		t.Error("closed activation view model must not be written")
	}
	if _, ok := a.Narrate(narration.English); ok {
		t.Error("Narrate accepted after Close")
	}
}

func TestNarrate_DisabledWithoutRecord(t *testing.T) {
	a, _ := newTestActivation(t, &fakeSource{}, noSynth(t))
	wait(t, a.Load())
	if _, ok := a.Narrate(narration.English); ok {
		t.Error("Narrate accepted without a record")
	}
	if a.Snapshot().NarrationBusy {
		t.Error("rejected narration must not change state")
	}
}

func TestNarrate_Success(t *testing.T) {
	var got narration.Request
	synth := synthFunc(func(_ context.Context, req narration.Request) (*narration.Result, error) {
		got = req
		return &narration.Result{Text: "A long time ago in the ruins of Hampi..."}, nil
	})
	a, rec := newTestActivation(t, &fakeSource{story: guardian()}, synth)
	wait(t, a.Load())

	done, ok := a.Narrate(narration.English)
	if !ok {
		t.Fatal("Narrate rejected")
	}
	wait(t, done)

	if got.Text != "Long ago..." || got.Language != narration.English {
		t.Errorf("request = %+v", got)
	}
	notes := rec.all()
	if len(notes) != 1 {
		t.Fatalf("notifications = %d, want 1", len(notes))
	}
	want := `English narration: "A long time ago in the ruins of Hampi......"`
	if notes[0].Title != TitleNarrationDone || notes[0].Description != want || notes[0].Severity != SeverityNormal {
		t.Errorf("notification = %+v, want description %q", notes[0], want)
	}
	if a.Snapshot().NarrationBusy {
		t.Error("busy flag not reset")
	}
}

func TestNarrate_TruncatesTo100Runes(t *testing.T) {
	long := strings.Repeat("ಕ", 150)
	synth := synthFunc(func(context.Context, narration.Request) (*narration.Result, error) {
		return &narration.Result{Text: long}, nil
	})
	a, rec := newTestActivation(t, &fakeSource{story: guardian()}, synth)
	wait(t, a.Load())

	done, _ := a.Narrate(narration.Kannada)
	wait(t, done)

	notes := rec.all()
	want := `Kannada narration: "` + strings.Repeat("ಕ", 100) + `..."`
	if len(notes) != 1 || notes[0].Description != want {
		t.Errorf("notifications = %+v", notes)
	}
}

func TestNarrate_Failure(t *testing.T) {
	synth := synthFunc(func(context.Context, narration.Request) (*narration.Result, error) {
		return nil, errors.New("rate limited")
	})
	a, rec := newTestActivation(t, &fakeSource{story: guardian()}, synth)
	wait(t, a.Load())

	done, _ := a.Narrate(narration.English)
	wait(t, done)

	notes := rec.all()
	if len(notes) != 1 || notes[0].Description != "rate limited" || notes[0].Severity != SeverityDestructive {
		t.Errorf("notifications = %+v", notes)
	}
	if a.Snapshot().NarrationBusy {
		t.Error("busy flag not reset after failure")
	}
}

type emptyErr struct{}

func (emptyErr) Error() string { return "" }

func TestNarrate_FailureFallbackMessage(t *testing.T) {
	synth := synthFunc(func(context.Context, narration.Request) (*narration.Result, error) {
		return nil, emptyErr{}
	})
	a, rec := newTestActivation(t, &fakeSource{story: guardian()}, synth)
	wait(t, a.Load())

	done, _ := a.Narrate(narration.English)
	wait(t, done)

	notes := rec.all()
	if len(notes) != 1 || notes[0].Description != FallbackNarrationError {
		t.Errorf("notifications = %+v", notes)
	}
}

func TestNarrate_NoPayloadIsSilent(t *testing.T) {
	synth := synthFunc(func(context.Context, narration.Request) (*narration.Result, error) {
		return &narration.Result{}, nil
	})
	a, rec := newTestActivation(t, &fakeSource{story: guardian()}, synth)
	wait(t, a.Load())

	done, _ := a.Narrate(narration.English)
	wait(t, done)

	if len(rec.all()) != 0 {
		t.Errorf("expected no notification, got %+v", rec.all())
	}
	if a.Snapshot().NarrationBusy {
		t.Error("busy flag not reset")
	}
}

func TestNarrate_PanicReleasesBusy(t *testing.T) {
	synth := synthFunc(func(context.Context, narration.Request) (*narration.Result, error) {
		panic("boom")
	})
	a, rec := newTestActivation(t, &fakeSource{story: guardian()}, synth)
	wait(t, a.Load())

	done, _ := a.Narrate(narration.English)
	wait(t, done)

	if a.Snapshot().NarrationBusy {
		t.Error("busy flag not reset after panic")
	}
	if notes := rec.all(); len(notes) != 1 || notes[0].Severity != SeverityDestructive {
		t.Errorf("notifications = %+v", notes)
	}
}

func TestNarrate_MutualExclusion(t *testing.T) {
	release := make(chan struct{})
	var mu sync.Mutex
	calls := 0
	synth := synthFunc(func(ctx context.Context, _ narration.Request) (*narration.Result, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		<-release
		return &narration.Result{Text: "ok"}, nil
	})
	a, _ := newTestActivation(t, &fakeSource{story: guardian()}, synth)
	wait(t, a.Load())

	done, ok := a.Narrate(narration.English)
	if !ok {
		t.Fatal("first Narrate rejected")
	}
	if !a.Snapshot().NarrationBusy {
		t.Fatal("busy must be set synchronously")
	}
	if _, ok := a.Narrate(narration.Kannada); ok {
		t.Fatal("second Narrate accepted while busy")
	}
	if !a.Snapshot().NarrationBusy {
		t.Error("rejected call must not change state")
	}

	close(release)
	wait(t, done)

	mu.Lock()
	n := calls
	mu.Unlock()
	if n != 1 {
		t.Errorf("synthesizer calls = %d, want 1", n)
	}

	// Idle again: a new request is accepted.
	done, ok = a.Narrate(narration.Kannada)
	if !ok {
		t.Fatal("Narrate rejected after settlement")
	}
	wait(t, done)
}

func TestClose_DropsLateNarration(t *testing.T) {
	synth := synthFunc(func(ctx context.Context, _ narration.Request) (*narration.Result, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	a, rec := newTestActivation(t, &fakeSource{story: guardian()}, synth)
	wait(t, a.Load())

	done, ok := a.Narrate(narration.English)
	if !ok {
		t.Fatal("Narrate rejected")
	}
	a.Close()
	wait(t, done)

	if len(rec.all()) != 0 {
		t.Errorf("closed activation must not notify: %+v", rec.all())
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("abc", 100); got != "abc" {
		t.Errorf("truncate short = %q", got)
	}
	if got := truncate("abcdef", 3); got != "abc" {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("ಕನ್ನಡ", 2); got != "ಕನ" {
		t.Errorf("truncate runes = %q", got)
	}
}

type gateNotifier struct {
	entered chan struct{}
	release chan struct{}
	rec     recorder
}

func (g *gateNotifier) Notify(n Notification) {
	close(g.entered)
	<-g.release
	g.rec.Notify(n)
}

func TestClose_WaitsForNotificationInFlight(t *testing.T) {
	gate := &gateNotifier{entered: make(chan struct{}), release: make(chan struct{})}
	a := NewActivation(context.Background(), "test", Options{
		Source:    &fakeSource{err: errors.New("offline")},
		Notifiers: func(string) Notifier { return gate },
		Logger:    quietLogger(),
	})
	a.Load()
	wait(t, gate.entered)

	closed := make(chan struct{})
	go func() {
		a.Close()
		close(closed)
	}()

	select {
	case <-closed:
		t.Fatal("Close returned while a notification was being emitted")
	case <-time.After(50 * time.Millisecond):
	}

	close(gate.release)
	wait(t, closed)
	wait(t, a.Load())
	if n := len(gate.rec.all()); n != 1 {
		t.Errorf("notifications = %d, want 1", n)
	}
}

func TestNarrate_NoNotificationAfterClose(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	synth := synthFunc(func(context.Context, narration.Request) (*narration.Result, error) {
		close(started)
		<-release
		return &narration.Result{Text: "A long time ago"}, nil
	})
	a, rec := newTestActivation(t, &fakeSource{story: guardian()}, synth)
	wait(t, a.Load())

	done, ok := a.Narrate(narration.English)
	if !ok {
		t.Fatal("Narrate rejected")
	}
	wait(t, started)
	a.Close()
	close(release)
	wait(t, done)

	if notes := rec.all(); len(notes) != 0 {
		t.Errorf("closed activation notified: %+v", notes)
	}
}
