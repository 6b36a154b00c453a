package transcriber

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"jot/encoder"
	"jot/log"
)

const (
	localModelName = "ggml-medium-q5_0.bin"
	localModelURL  = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/" + localModelName
)

// bracketed matches whisper's non-speech annotations such as
// [BLANK_AUDIO] or [MUSIC].
var bracketed = regexp.MustCompile(`\[[^\]]*\]`)

// Local runs whisper.cpp's whisper-cli against the raw PCM samples. The
// model file is fetched once and cached under the user cache directory.
type Local struct {
	binary    string
	modelPath string
	modelURL  string

	initOnce    sync.Once
	initErr     error
	initialized bool
	mu          sync.Mutex
}

func NewLocal() *Local {
	return &Local{binary: "whisper-cli", modelURL: localModelURL}
}

func (l *Local) Name() string { return "local" }

// Initialize locates the whisper-cli binary and ensures the model file
// is on disk, downloading it on first use. Safe to call from multiple
// goroutines; only the first call does the work.
func (l *Local) Initialize(ctx context.Context) error {
	l.initOnce.Do(func() {
		l.initErr = l.setup(ctx)
		l.mu.Lock()
		l.initialized = l.initErr == nil
		l.mu.Unlock()
	})
	return l.initErr
}

func (l *Local) setup(ctx context.Context) error {
	bin, err := exec.LookPath(l.binary)
	if err != nil {
		return fmt.Errorf("whisper-cli not found in PATH: %w", err)
	}
	l.binary = bin

	if l.modelPath == "" {
		cache, err := os.UserCacheDir()
		if err != nil {
			return err
		}
		l.modelPath = filepath.Join(cache, "jot", localModelName)
	}
	if _, err := os.Stat(l.modelPath); err == nil {
		return nil
	}

	log.Info("downloading local model " + localModelName)
	if err := os.MkdirAll(filepath.Dir(l.modelPath), 0755); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.modelURL, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("model download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("model download: status %d", resp.StatusCode)
	}

	tmp := l.modelPath + ".partial"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, l.modelPath)
}

func (l *Local) ready() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.initialized
}

func (l *Local) Transcribe(ctx context.Context, req Request) (string, error) {
	if !l.ready() {
		return "", ErrModelNotInitialized
	}
	if len(req.Samples) == 0 {
		return "", ErrEmptyAudio
	}

	wav, err := os.CreateTemp("", "jot-*.wav")
	if err != nil {
		return "", err
	}
	defer os.Remove(wav.Name())
	if _, err := wav.Write(wavBytes(req.Samples, encoder.SampleRate)); err != nil {
		wav.Close()
		return "", err
	}
	if err := wav.Close(); err != nil {
		return "", err
	}

	args := []string{
		"-m", l.modelPath,
		"-f", wav.Name(),
		"--no-timestamps",
		"--beam-size", "5",
		"--entropy-thold", "2.4",
		"--temperature", "0",
	}
	if req.Language != "" {
		args = append(args, "-l", req.Language)
	}
	if req.Translate {
		args = append(args, "--translate")
	}
	if req.Prompt != "" {
		args = append(args, "--prompt", req.Prompt)
	}

	out, err := exec.CommandContext(ctx, l.binary, args...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return "", fmt.Errorf("local transcription: %w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("local transcription: %w", err)
	}
	return CleanTranscript(string(out)), nil
}

// CleanTranscript removes whisper's bracketed annotations and trims
// surrounding whitespace.
func CleanTranscript(s string) string {
	return strings.TrimSpace(bracketed.ReplaceAllString(s, ""))
}

// wavBytes renders float samples as a 16-bit mono PCM WAV blob for
// whisper-cli consumption.
func wavBytes(samples []float32, sampleRate int) []byte {
	dataLen := len(samples) * 2
	buf := make([]byte, 0, 44+dataLen)

	le := binary.LittleEndian
	u32 := func(v uint32) []byte { b := make([]byte, 4); le.PutUint32(b, v); return b }
	u16 := func(v uint16) []byte { b := make([]byte, 2); le.PutUint16(b, v); return b }

	buf = append(buf, "RIFF"...)
	buf = append(buf, u32(uint32(36+dataLen))...)
	buf = append(buf, "WAVE"...)
	buf = append(buf, "fmt "...)
	buf = append(buf, u32(16)...)
	buf = append(buf, u16(1)...) // PCM
	buf = append(buf, u16(1)...) // mono
	buf = append(buf, u32(uint32(sampleRate))...)
	buf = append(buf, u32(uint32(sampleRate*2))...)
	buf = append(buf, u16(2)...)
	buf = append(buf, u16(16)...)
	buf = append(buf, "data"...)
	buf = append(buf, u32(uint32(dataLen))...)

	for _, s := range samples {
		v := math.Max(-1, math.Min(1, float64(s)))
		buf = append(buf, u16(uint16(int16(v*32767)))...)
	}
	return buf
}
