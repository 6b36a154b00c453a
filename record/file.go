package record

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"jot/encoder"
)

// FileRecorder captures the full ungated PCM stream and compresses it to a
// FLAC scratch file for the final transcription pass. The gated sample
// buffer feeds the live incremental path; this file is what actually goes
// to the backend at end of session, since it preserves every frame.
type FileRecorder struct {
	mu        sync.Mutex
	enc       *encoder.Flac
	sampleBuf []int16
	path      string
	closed    bool
}

// NewFileRecorder prepares a recorder writing to a uuid-named file under
// dir (the OS temp dir when empty).
func NewFileRecorder(dir string) (*FileRecorder, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating recording directory: %w", err)
	}
	enc, err := encoder.NewFlac()
	if err != nil {
		return nil, err
	}
	return &FileRecorder{
		enc:  enc,
		path: filepath.Join(dir, uuid.NewString()+".flac"),
	}, nil
}

// Path returns the scratch file location. The file exists only after Close.
func (r *FileRecorder) Path() string { return r.path }

// Write consumes raw little-endian 16-bit PCM from the capture callback.
// Full blocks are encoded immediately; the remainder waits for more data.
func (r *FileRecorder) Write(pcm []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	for i := 0; i+1 < len(pcm); i += 2 {
		r.sampleBuf = append(r.sampleBuf, int16(binary.LittleEndian.Uint16(pcm[i:])))
	}
	for len(r.sampleBuf) >= encoder.BlockSize {
		if err := r.enc.EncodeBlock(r.sampleBuf[:encoder.BlockSize]); err != nil {
			return err
		}
		r.sampleBuf = r.sampleBuf[encoder.BlockSize:]
	}
	return nil
}

// Close flushes the partial block, finalizes the FLAC stream and writes the
// scratch file. Returns the encoded bytes as well so callers can upload
// without re-reading the file.
func (r *FileRecorder) Close() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return r.enc.Bytes(), nil
	}
	r.closed = true
	if len(r.sampleBuf) > 0 {
		if err := r.enc.EncodeBlock(r.sampleBuf); err != nil {
			return nil, err
		}
		r.sampleBuf = nil
	}
	if err := r.enc.Close(); err != nil {
		return nil, err
	}
	data := r.enc.Bytes()
	if err := os.WriteFile(r.path, data, 0600); err != nil {
		return nil, fmt.Errorf("writing recording: %w", err)
	}
	return data, nil
}

// TotalFrames reports the number of encoded frames so far.
func (r *FileRecorder) TotalFrames() uint64 {
	return r.enc.TotalFrames()
}

// Remove deletes the scratch audio artifact once history has been updated.
func (r *FileRecorder) Remove() {
	os.Remove(r.path)
}
