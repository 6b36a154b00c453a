package clipboard

import (
	"sync"
	"time"
)

// settleDelay is how long a pasted keystroke gets to land in the target
// application before the snapshot is put back.
const settleDelay = 600 * time.Millisecond

// System is the pasteboard surface the Bridge drives; swapped for a
// fake in tests.
type System interface {
	Read() (string, error)
	Write(text string) error
}

type systemClipboard struct{}

func (systemClipboard) Read() (string, error)   { return Read() }
func (systemClipboard) Write(text string) error { return Copy(text) }

// Bridge delivers transcripts to the clipboard. Without auto-paste the
// transcript simply replaces the clipboard contents. With auto-paste it
// snapshots the prior contents, pastes, and restores them once the
// keystroke has settled.
type Bridge struct {
	system System
	paste  func() error
	settle time.Duration

	mu       sync.Mutex
	snapshot string
	saved    bool
}

// NewBridge wires the real pasteboard to the given keystroke sender.
func NewBridge(paste func() error) *Bridge {
	return &Bridge{system: systemClipboard{}, paste: paste, settle: settleDelay}
}

// Read exposes the current clipboard contents (creative mode's subject
// matter).
func (b *Bridge) Read() (string, error) {
	return b.system.Read()
}

// Snapshot saves the current clipboard contents for a later Restore.
func (b *Bridge) Snapshot() error {
	prior, err := b.system.Read()
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.snapshot = prior
	b.saved = true
	b.mu.Unlock()
	return nil
}

// Restore puts the snapshotted contents back. No-op without a prior
// Snapshot.
func (b *Bridge) Restore() error {
	b.mu.Lock()
	prior, saved := b.snapshot, b.saved
	b.saved = false
	b.mu.Unlock()
	if !saved {
		return nil
	}
	return b.system.Write(prior)
}

// Deliver places text on the clipboard. When autoPaste is set it also
// sends the paste keystroke and bounds the disturbance window by
// restoring the prior contents afterwards.
func (b *Bridge) Deliver(text string, autoPaste bool) error {
	if !autoPaste {
		return b.system.Write(text)
	}
	snapErr := b.Snapshot()
	if err := b.system.Write(text); err != nil {
		return err
	}
	if snapErr != nil {
		// No snapshot to restore over; the transcript keeps the
		// clipboard and the paste still goes out.
		return b.paste()
	}
	if err := b.paste(); err != nil {
		// The transcript stays on the clipboard so the user can paste
		// by hand; do not restore over it.
		b.mu.Lock()
		b.saved = false
		b.mu.Unlock()
		return err
	}
	time.Sleep(b.settle)
	return b.Restore()
}
