// Package record holds the audio captured during a session: the gated
// float-sample buffer used for incremental transcription, and the
// compressed file recorder used for the accurate final pass.
package record

import "sync"

// Buffer accumulates voice-gated PCM samples. Append runs on the audio
// callback thread, so the lock is held only for the copy; drains swap the
// whole slice out so no sample is ever delivered twice.
type Buffer struct {
	mu      sync.Mutex
	samples []float32
}

func NewBuffer() *Buffer {
	return &Buffer{}
}

func (b *Buffer) Append(samples []float32) {
	if len(samples) == 0 {
		return
	}
	b.mu.Lock()
	b.samples = append(b.samples, samples...)
	b.mu.Unlock()
}

func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.samples)
}

// DrainIncremental removes and returns everything accumulated since the
// previous drain. Used by the partial-transcription poll loop while the
// session is still recording.
func (b *Buffer) DrainIncremental() []float32 {
	b.mu.Lock()
	out := b.samples
	b.samples = nil
	b.mu.Unlock()
	return out
}

// DrainFinal removes and returns the remaining samples at end of session.
// Callers must stop the capture device first: CaptureDevice.Stop blocks
// until in-flight callbacks have been processed, which is what guarantees
// no trailing speech is still en route when this runs.
func (b *Buffer) DrainFinal() []float32 {
	return b.DrainIncremental()
}
