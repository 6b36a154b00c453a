package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"sync"

	"jot/log"
)

const (
	whisperModel    = "whisper-1"
	completionModel = "gpt-4o-mini"
)

// OpenAI is the cloud backend: Whisper for transcription/translation
// plus chat completions for the transform modes.
type OpenAI struct {
	apiKey  string
	baseURL string
	client  *TracedClient
	warm    sync.Once
}

func NewOpenAI(apiKey string) *OpenAI {
	return &OpenAI{
		apiKey:  apiKey,
		baseURL: "https://api.openai.com/v1",
		client:  NewTracedClient(),
	}
}

func (o *OpenAI) Name() string { return "cloud" }

// Initialize verifies the credential and pre-warms the TLS connection
// so the first transcription does not pay for the handshake.
func (o *OpenAI) Initialize(_ context.Context) error {
	if o.apiKey == "" {
		return ErrCredentialMissing
	}
	o.warm.Do(func() {
		go o.client.Warm(o.baseURL + "/models")
	})
	return nil
}

func (o *OpenAI) Transcribe(ctx context.Context, req Request) (string, error) {
	if o.apiKey == "" {
		return "", ErrCredentialMissing
	}
	if len(req.Audio) == 0 {
		return "", ErrEmptyAudio
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	filename := req.Filename
	if filename == "" {
		filename = "audio.flac"
	}
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(req.Audio); err != nil {
		return "", err
	}

	writer.WriteField("model", whisperModel)
	writer.WriteField("response_format", "json")
	if req.Prompt != "" {
		writer.WriteField("prompt", req.Prompt)
	}

	// The translations endpoint always emits English and rejects a
	// language field.
	endpoint := o.baseURL + "/audio/transcriptions"
	if req.Translate {
		endpoint = o.baseURL + "/audio/translations"
	} else if req.Language != "" {
		writer.WriteField("language", req.Language)
	}
	writer.Close()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("cloud transcription request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("cloud transcription error %d: %s", resp.StatusCode, string(resp.Body))
	}

	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return "", fmt.Errorf("cloud transcription response parse: %w", err)
	}

	if m := resp.Metrics; m != nil {
		log.TranscriptionMetrics(log.Metrics{
			CompressedSizeKB: float64(len(req.Audio)) / 1024.0,
			DNSTimeMs:        float64(m.DNS.Milliseconds()),
			TLSTimeMs:        float64(m.TLS.Milliseconds()),
			TTFBMs:           float64(m.TTFB.Milliseconds()),
			TotalTimeMs:      float64(m.Total.Milliseconds()),
		}, o.Name(), m.ConnReused, m.TLSProtocol)
	}
	remaining := firstNonEmpty(resp.Header, "x-ratelimit-remaining-requests")
	limit := firstNonEmpty(resp.Header, "x-ratelimit-limit-requests")
	log.Info(fmt.Sprintf("cloud rate limit %s/%s", remaining, limit))

	return parsed.Text, nil
}

// Complete runs a chat completion for the transform modes.
func (o *OpenAI) Complete(ctx context.Context, messages []Message, temperature float64) (string, error) {
	if o.apiKey == "" {
		return "", ErrCredentialMissing
	}

	payload := struct {
		Model       string    `json:"model"`
		Messages    []Message `json:"messages"`
		Temperature float64   `json:"temperature"`
	}{
		Model:       completionModel,
		Messages:    messages,
		Temperature: temperature,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("completion request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("completion error %d: %s", resp.StatusCode, string(resp.Body))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return "", fmt.Errorf("completion response parse: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("completion returned no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}
