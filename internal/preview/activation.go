// Package preview implements the story preview flow: a per-activation view
// model populated once by the content loader, and a narration dispatcher
// gated on a loaded story.
package preview

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/starford/heritage/internal/models"
	"github.com/starford/heritage/internal/narration"
)

// Notification texts.
const (
	TitleLoadError         = "Error loading stories"
	TitleNarrationDone     = "Narration Generated"
	TitleNarrationError    = "Error"
	FallbackNarrationError = "Failed to generate audio"

	previewRunes = 100
)

// Navigation targets offered alongside a loaded story.
const (
	ARRoute           = "/ar?monument=hampi"
	MoreStoriesAnchor = "monuments"
)

// ContentSource returns the most recently created approved story joined with
// its monument, or nil when there is none.
type ContentSource interface {
	LatestApproved(ctx context.Context) (*models.Story, error)
}

// ViewModel is the state rendered for one activation.
type ViewModel struct {
	Loading       bool          `json:"loading"`
	Record        *models.Story `json:"record"`
	NarrationBusy bool          `json:"narration_busy"`
}

// CanNarrate reports whether the narration controls are enabled.
func (vm ViewModel) CanNarrate() bool {
	return !vm.Loading && vm.Record != nil && !vm.NarrationBusy
}

// Activation is one visit of the story preview. Its view model starts out
// loading, is filled at most once by Load, and is discarded on Close.
type Activation struct {
	id       string
	source   ContentSource
	synth    narration.Synthesizer
	notifier Notifier
	logger   *slog.Logger

	loadTimeout      time.Duration
	narrationTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	loadOnce sync.Once
	loaded   chan struct{}

	mu      sync.Mutex
	vm      ViewModel
	closed  bool
	touched time.Time
}

// NewActivation creates an activation whose requests live until parent is
// cancelled or Close is called.
func NewActivation(parent context.Context, id string, opts Options) *Activation {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(parent)
	return &Activation{
		id:               id,
		source:           opts.Source,
		synth:            opts.Synthesizer,
		notifier:         opts.notifierFor(id),
		logger:           opts.Logger.With(slog.String("activation", id)),
		loadTimeout:      opts.LoadTimeout,
		narrationTimeout: opts.NarrationTimeout,
		ctx:              ctx,
		cancel:           cancel,
		loaded:           make(chan struct{}),
		vm:               ViewModel{Loading: true},
		touched:          opts.now(),
	}
}

// ID returns the activation identifier.
func (a *Activation) ID() string { return a.id }

// Load starts the content query. Only the first call queries; every call
// returns the same channel, closed once the view model has settled.
func (a *Activation) Load() <-chan struct{} {
	a.loadOnce.Do(func() {
		go a.runLoad()
	})
	return a.loaded
}

func (a *Activation) runLoad() {
	defer close(a.loaded)

	ctx, cancel := context.WithTimeout(a.ctx, a.loadTimeout)
	defer cancel()

	story, err := a.source.LatestApproved(ctx)

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		a.logger.Debug("preview: load result dropped after close")
		return
	}
	a.vm.Loading = false

	if err != nil {
		a.logger.Warn("preview: load failed", slog.String("error", err.Error()))
		a.notifyLocked(Notification{
			Title:       TitleLoadError,
			Description: err.Error(),
			Severity:    SeverityDestructive,
		})
		return
	}
	a.vm.Record = story
	if story == nil {
		a.logger.Debug("preview: no approved story")
		return
	}
	a.logger.Debug("preview: loaded", slog.String("story", story.ID))
}

// notifyLocked emits n unless the activation is closed. Callers hold a.mu,
// so Close cannot complete while a notification is being emitted.
func (a *Activation) notifyLocked(n Notification) {
	if a.closed {
		return
	}
	a.notifier.Notify(n)
}

// Narrate requests narration of the loaded story in lang. It returns false,
// without changing state or sending anything, while the story is loading,
// when there is no story, while another narration is outstanding, or after
// Close. The returned channel is closed when the request has settled.
func (a *Activation) Narrate(lang narration.Language) (<-chan struct{}, bool) {
	a.mu.Lock()
	if a.closed || !a.vm.CanNarrate() {
		a.mu.Unlock()
		return nil, false
	}
	a.vm.NarrationBusy = true
	text := a.vm.Record.Body
	a.mu.Unlock()

	done := make(chan struct{})
	go a.runNarration(lang, text, done)
	return done, true
}

func (a *Activation) runNarration(lang narration.Language, text string, done chan struct{}) {
	defer close(done)

	res, err := a.synthesize(lang, text)

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		a.logger.Debug("preview: narration result dropped after close")
		return
	}
	a.vm.NarrationBusy = false

	if err != nil {
		msg := err.Error()
		if msg == "" {
			msg = FallbackNarrationError
		}
		a.logger.Warn("preview: narration failed", slog.String("language", string(lang)), slog.String("error", msg))
		a.notifyLocked(Notification{
			Title:       TitleNarrationError,
			Description: msg,
			Severity:    SeverityDestructive,
		})
		return
	}
	// A response without narration text is a quiet success.
	if res == nil || res.Text == "" {
		a.logger.Debug("preview: narration returned no text", slog.String("language", string(lang)))
		return
	}
	a.notifyLocked(Notification{
		Title:       TitleNarrationDone,
		Description: fmt.Sprintf("%s narration: \"%s...\"", lang.Label(), truncate(res.Text, previewRunes)),
		Severity:    SeverityNormal,
	})
}

// synthesize calls the synthesizer, turning a panic into a failure so the
// busy flag is always released.
func (a *Activation) synthesize(lang narration.Language, text string) (res *narration.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("narration panic: %v", r)
		}
	}()
	ctx, cancel := context.WithTimeout(a.ctx, a.narrationTimeout)
	defer cancel()
	return a.synth.Synthesize(ctx, narration.Request{Text: text, Language: lang})
}

// Snapshot returns a copy of the current view model.
func (a *Activation) Snapshot() ViewModel {
	a.mu.Lock()
	defer a.mu.Unlock()
	vm := a.vm
	if vm.Record != nil {
		rec := *vm.Record
		vm.Record = &rec
	}
	return vm
}

// Touch records activity for idle expiry.
func (a *Activation) Touch(now time.Time) {
	a.mu.Lock()
	a.touched = now
	a.mu.Unlock()
}

func (a *Activation) idleSince() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.touched
}

// Close tears the activation down. In-flight results arriving afterwards are
// dropped without touching the view model or notifying.
func (a *Activation) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	a.mu.Unlock()
	a.cancel()
}

// Closed reports whether Close has been called.
func (a *Activation) Closed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

// truncate returns the first n runes of s.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
