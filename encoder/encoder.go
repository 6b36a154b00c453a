// Package encoder compresses captured PCM audio into a FLAC stream for the
// final transcription pass.
package encoder

const (
	SampleRate    = 16000
	Channels      = 1
	BitsPerSample = 16
	BlockSize     = 4096
)
