package transcriber

import (
	"context"
	"fmt"
	"strings"
	"time"

	"jot/config"
	"jot/log"
)

// Message is one role-tagged entry in a chat completion request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completer is the chat-completion capability the transform modes need.
// The cloud backend provides it; without one the transform modes fail.
type Completer interface {
	Complete(ctx context.Context, messages []Message, temperature float64) (string, error)
}

// TranscriptionResult is what the session layer hands to history,
// clipboard and telemetry. Words and Duration describe the final text,
// after any transform.
type TranscriptionResult struct {
	Text     string
	Words    int
	Duration time.Duration
	Date     time.Time
}

// Options selects the backend and shapes the request for one utterance.
type Options struct {
	CloudEnabled bool
	Language     string
	Translate    bool
	SpeechHints  string
	Mode         config.Mode
	Creativity   float64

	// OnTransforming fires after transcription succeeds and before the
	// transform call, so callers can surface the phase change.
	OnTransforming func()
}

// Orchestrator routes an utterance to the right backend and applies the
// selected transform. ClipboardText feeds creative mode its subject
// matter; it is injected to keep this package off the pasteboard.
type Orchestrator struct {
	Cloud         Transcriber
	Local         Transcriber
	Completer     Completer
	ClipboardText func() (string, error)
}

// Backend returns the transcriber that Transcribe would use.
func (o *Orchestrator) Backend(opts Options) Transcriber {
	if opts.CloudEnabled && o.Cloud != nil {
		return o.Cloud
	}
	return o.Local
}

func (o *Orchestrator) Transcribe(ctx context.Context, req Request, opts Options) (TranscriptionResult, error) {
	backend := o.Backend(opts)
	if backend == nil {
		return TranscriptionResult{}, fmt.Errorf("no transcription backend configured")
	}
	if len(req.Audio) == 0 && len(req.Samples) == 0 {
		return TranscriptionResult{}, ErrEmptyAudio
	}

	req.Language = opts.Language
	req.Translate = opts.Translate
	req.Prompt = BuildPrompt(opts.Language, opts.SpeechHints)

	start := time.Now()
	if err := backend.Initialize(ctx); err != nil {
		return TranscriptionResult{}, err
	}
	text, err := backend.Transcribe(ctx, req)
	if err != nil {
		return TranscriptionResult{}, err
	}
	text = strings.TrimSpace(text)

	switch opts.Mode {
	case config.ModeInstruction:
		if opts.OnTransforming != nil {
			opts.OnTransforming()
		}
		text, err = o.instruct(ctx, text, opts.Creativity)
	case config.ModeCreative:
		if opts.OnTransforming != nil {
			opts.OnTransforming()
		}
		text, err = o.creative(ctx, text, opts.Creativity)
	}
	if err != nil {
		return TranscriptionResult{}, err
	}

	result := TranscriptionResult{
		Text:     text,
		Words:    len(strings.Fields(text)),
		Duration: time.Since(start),
		Date:     time.Now(),
	}
	log.TranscriptionText(result.Text)
	return result, nil
}

// instruct treats the transcript as an instruction and replaces it with
// the completion.
func (o *Orchestrator) instruct(ctx context.Context, transcript string, temperature float64) (string, error) {
	if o.Completer == nil {
		return "", fmt.Errorf("instruction mode requires the cloud backend")
	}
	return o.Completer.Complete(ctx, []Message{
		{Role: "system", Content: "Follow the user's instruction."},
		{Role: "user", Content: transcript},
	}, temperature)
}

// creative combines the transcript (the instruction) with the current
// clipboard contents (the subject matter).
func (o *Orchestrator) creative(ctx context.Context, transcript string, temperature float64) (string, error) {
	if o.Completer == nil {
		return "", fmt.Errorf("creative mode requires the cloud backend")
	}
	subject := ""
	if o.ClipboardText != nil {
		s, err := o.ClipboardText()
		if err == nil {
			subject = s
		}
	}
	return o.Completer.Complete(ctx, []Message{
		{Role: "system", Content: "Apply the user's instruction to the provided text. Respond with the result only."},
		{Role: "user", Content: "Instruction: " + transcript},
		{Role: "user", Content: "Text:\n" + subject},
	}, temperature)
}
