package preview

import (
	"log/slog"
	"time"

	"github.com/starford/heritage/internal/narration"
)

// Defaults applied to zero-valued Options fields.
const (
	DefaultLoadTimeout      = 10 * time.Second
	DefaultNarrationTimeout = 30 * time.Second
	DefaultIdleTTL          = 15 * time.Minute
	DefaultMaxActivations   = 1024
)

// Options configures activations and the registry that owns them.
type Options struct {
	Source      ContentSource
	Synthesizer narration.Synthesizer
	// Notifiers returns the sink for an activation. Nil discards notifications.
	Notifiers func(activationID string) Notifier
	Logger    *slog.Logger
	// OnClose is called after the registry drops an activation.
	OnClose func(activationID string)

	LoadTimeout      time.Duration
	NarrationTimeout time.Duration
	IdleTTL          time.Duration
	MaxActivations   int

	// Now overrides the clock in tests.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.LoadTimeout <= 0 {
		o.LoadTimeout = DefaultLoadTimeout
	}
	if o.NarrationTimeout <= 0 {
		o.NarrationTimeout = DefaultNarrationTimeout
	}
	if o.IdleTTL <= 0 {
		o.IdleTTL = DefaultIdleTTL
	}
	if o.MaxActivations <= 0 {
		o.MaxActivations = DefaultMaxActivations
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

func (o Options) notifierFor(id string) Notifier {
	if o.Notifiers == nil {
		return Discard
	}
	if n := o.Notifiers(id); n != nil {
		return n
	}
	return Discard
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}
