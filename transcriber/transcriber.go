package transcriber

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// Errors the session layer is expected to branch on.
var (
	ErrCredentialMissing   = errors.New("api credential missing")
	ErrModelNotInitialized = errors.New("local model not initialized")
	ErrEmptyAudio          = errors.New("no audio captured")
)

// Request carries one finalized utterance to a backend. Cloud backends
// consume the encoded Audio bytes; the local backend consumes the raw
// Samples and ignores Audio.
type Request struct {
	Audio     []byte
	Filename  string
	Samples   []float32
	Language  string
	Translate bool
	Prompt    string
}

// Transcriber is the narrow capability both backends expose. Initialize
// is idempotent and safe to call concurrently; for the cloud backend it
// only warms the connection, for the local backend it loads the model.
type Transcriber interface {
	Name() string
	Initialize(ctx context.Context) error
	Transcribe(ctx context.Context, req Request) (string, error)
}

type NetworkMetrics struct {
	DNS         time.Duration
	ConnWait    time.Duration
	TCP         time.Duration
	TLS         time.Duration
	ReqHeaders  time.Duration
	ReqBody     time.Duration
	TTFB        time.Duration
	Download    time.Duration
	Total       time.Duration
	ConnReused  bool
	TLSProtocol string
}

func (m *NetworkMetrics) Sum() time.Duration {
	return m.ConnWait + m.DNS + m.TCP + m.TLS + m.ReqHeaders + m.ReqBody + m.TTFB + m.Download
}

func firstNonEmpty(h http.Header, keys ...string) string {
	for _, k := range keys {
		if v := h.Get(k); v != "" {
			return v
		}
	}
	return "?"
}
