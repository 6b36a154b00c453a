package transcriber

import (
	"context"
	"sync"
)

// Fake is a test double recording what it was asked to do.
type Fake struct {
	FakeName string
	Text     string
	Err      error
	InitErr  error

	mu        sync.Mutex
	initCalls int
	calls     int
	lastReq   Request
}

func NewFake(text string, err error) *Fake {
	return &Fake{FakeName: "fake", Text: text, Err: err}
}

func (f *Fake) Name() string {
	if f.FakeName == "" {
		return "fake"
	}
	return f.FakeName
}

func (f *Fake) Initialize(context.Context) error {
	f.mu.Lock()
	f.initCalls++
	f.mu.Unlock()
	return f.InitErr
}

func (f *Fake) Transcribe(_ context.Context, req Request) (string, error) {
	f.mu.Lock()
	f.calls++
	f.lastReq = req
	f.mu.Unlock()
	if f.Err != nil {
		return "", f.Err
	}
	return f.Text, nil
}

func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *Fake) InitCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.initCalls
}

func (f *Fake) LastRequest() Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastReq
}

// FakeCompleter satisfies Completer for transform-mode tests.
type FakeCompleter struct {
	Reply string
	Err   error

	mu       sync.Mutex
	messages [][]Message
	temps    []float64
}

func (f *FakeCompleter) Complete(_ context.Context, messages []Message, temperature float64) (string, error) {
	f.mu.Lock()
	f.messages = append(f.messages, messages)
	f.temps = append(f.temps, temperature)
	f.mu.Unlock()
	if f.Err != nil {
		return "", f.Err
	}
	return f.Reply, nil
}

func (f *FakeCompleter) LastMessages() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.messages) == 0 {
		return nil
	}
	return f.messages[len(f.messages)-1]
}
