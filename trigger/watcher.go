package trigger

import (
	"context"
	"time"

	"github.com/atotto/clipboard"
	"github.com/richinex/vaultbridge/vault"
	"github.com/rs/zerolog"
)

// DefaultPollInterval is how often the clipboard is read.
const DefaultPollInterval = 500 * time.Millisecond

// Clipboard reads and writes clipboard text.
type Clipboard interface {
	ReadAll() (string, error)
	WriteAll(text string) error
}

// SystemClipboard is the OS clipboard.
type SystemClipboard struct{}

// ReadAll implements Clipboard.
func (SystemClipboard) ReadAll() (string, error) {
	return clipboard.ReadAll()
}

// WriteAll implements Clipboard.
func (SystemClipboard) WriteAll(text string) error {
	return clipboard.WriteAll(text)
}

// Available reports whether the OS clipboard can be used.
func (SystemClipboard) Available() bool {
	return !clipboard.Unsupported
}

// Handler receives recognized links.
type Handler func(ctx context.Context, link Link)

// Watcher polls the clipboard for record links.
type Watcher struct {
	clip     Clipboard
	vaults   *vault.Registry
	interval time.Duration
	handler  Handler
	logger   zerolog.Logger
}

// NewWatcher creates a watcher. A zero interval uses DefaultPollInterval.
func NewWatcher(clip Clipboard, vaults *vault.Registry, interval time.Duration, handler Handler, logger zerolog.Logger) *Watcher {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Watcher{
		clip:     clip,
		vaults:   vaults,
		interval: interval,
		handler:  handler,
		logger:   logger,
	}
}

// Run polls until ctx is cancelled. Recognized links are cleared from the
// clipboard before the handler runs; other text is left untouched.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	var last string
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		text, err := w.clip.ReadAll()
		if err != nil {
			w.logger.Debug().Err(err).Msg("failed to read clipboard")
			continue
		}
		if text == last {
			continue
		}
		last = text

		link, ok := ParseURI(text, w.vaults)
		if !ok {
			continue
		}
		if err := w.clip.WriteAll(""); err != nil {
			w.logger.Warn().Err(err).Msg("failed to clear clipboard")
		}
		last = ""
		w.logger.Info().Str("scheme", link.Scheme).Str("record", link.RecordID).Msg("record link received")
		w.handler(ctx, link)
	}
}
