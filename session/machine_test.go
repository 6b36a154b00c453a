package session

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"jot/audio"
	"jot/config"
	"jot/encoder"
	"jot/history"
	"jot/transcriber"
	"jot/vad"
)

type fakeCapture struct {
	mu      sync.Mutex
	cb      audio.DataCallback
	started bool
	stopped bool
}

func (c *fakeCapture) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started = true
	return nil
}

func (c *fakeCapture) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
}

func (c *fakeCapture) Close() {}

func (c *fakeCapture) SetCallback(cb audio.DataCallback) {
	c.mu.Lock()
	c.cb = cb
	c.mu.Unlock()
}

func (c *fakeCapture) ClearCallback() {
	c.mu.Lock()
	c.cb = nil
	c.mu.Unlock()
}

func (c *fakeCapture) DeviceName() string { return "fake" }

func (c *fakeCapture) Feed(data []byte) {
	c.mu.Lock()
	cb := c.cb
	c.mu.Unlock()
	if cb != nil {
		cb(data, uint32(len(data)/2))
	}
}

type fakeAudio struct {
	mu       sync.Mutex
	captures []*fakeCapture
}

func (f *fakeAudio) Devices() ([]audio.DeviceInfo, error) { return nil, nil }
func (f *fakeAudio) Close()                               {}

func (f *fakeAudio) NewCapture(*audio.DeviceInfo, audio.CaptureConfig) (audio.CaptureDevice, error) {
	c := &fakeCapture{}
	f.mu.Lock()
	f.captures = append(f.captures, c)
	f.mu.Unlock()
	return c, nil
}

func (f *fakeAudio) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.captures)
}

func (f *fakeAudio) last() *fakeCapture {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.captures) == 0 {
		return nil
	}
	return f.captures[len(f.captures)-1]
}

type fakeBridge struct {
	mu        sync.Mutex
	delivered []string
	autoPaste []bool
}

func (b *fakeBridge) Deliver(text string, autoPaste bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.delivered = append(b.delivered, text)
	b.autoPaste = append(b.autoPaste, autoPaste)
	return nil
}

func (b *fakeBridge) last() (string, bool, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.delivered) == 0 {
		return "", false, false
	}
	return b.delivered[len(b.delivered)-1], b.autoPaste[len(b.autoPaste)-1], true
}

// blockingTranscriber parks Transcribe until released.
type blockingTranscriber struct {
	release chan struct{}
}

func (b *blockingTranscriber) Name() string                     { return "blocking" }
func (b *blockingTranscriber) Initialize(context.Context) error { return nil }

func (b *blockingTranscriber) Transcribe(context.Context, transcriber.Request) (string, error) {
	<-b.release
	return "late text", nil
}

type counters struct {
	start, stop, errs atomic.Int32
}

func (c *counters) cues() Cues {
	return Cues{
		Start: func() { c.start.Add(1) },
		Stop:  func() { c.stop.Add(1) },
		Error: func() { c.errs.Add(1) },
	}
}

type testEnv struct {
	machine *Machine
	audio   *fakeAudio
	bridge  *fakeBridge
	cues    *counters
	cfg     config.Settings
	cfgMu   sync.Mutex
}

func (e *testEnv) settings() config.Settings {
	e.cfgMu.Lock()
	defer e.cfgMu.Unlock()
	return e.cfg
}

func (e *testEnv) setSettings(cfg config.Settings) {
	e.cfgMu.Lock()
	e.cfg = cfg
	e.cfgMu.Unlock()
}

func newTestEnv(t *testing.T, cloud transcriber.Transcriber) *testEnv {
	t.Helper()
	env := &testEnv{
		audio:  &fakeAudio{},
		bridge: &fakeBridge{},
		cues:   &counters{},
		cfg: config.Settings{
			Language:      "en",
			CloudEnable:   true,
			APIKey:        "sk-test",
			HoldThreshold: 700 * time.Millisecond,
		},
	}
	m := NewMachine()
	m.Audio = env.audio
	m.Gate = vad.New(encoder.SampleRate)
	m.Orchestrator = &transcriber.Orchestrator{Cloud: cloud, Local: transcriber.NewFake("local text", nil)}
	m.History = history.NewLog(25)
	m.Bridge = env.bridge
	m.Settings = env.settings
	m.Cues = env.cues.cues()
	m.ScratchDir = t.TempDir()
	env.machine = m
	m.Initialize(context.Background())
	return env
}

func waitState(t *testing.T, m *Machine, want State) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if m.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("state = %v, want %v", m.State(), want)
}

// tonePCM returns little-endian 16-bit samples of a 440Hz tone, which
// the gate classifies as voice.
func tonePCM(n int) []byte {
	pcm := make([]byte, n*2)
	for i := 0; i < n; i++ {
		v := int16(0.5 * math.Sin(2*math.Pi*440*float64(i)/float64(encoder.SampleRate)) * 32767)
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(v))
	}
	return pcm
}

func TestInitializeReachesStopped(t *testing.T) {
	env := newTestEnv(t, transcriber.NewFake("x", nil))
	if got := env.machine.State(); got != StateStopped {
		t.Errorf("state = %v, want stopped", got)
	}
}

func TestCredentialGateNeverStartsCapture(t *testing.T) {
	env := newTestEnv(t, transcriber.NewFake("x", nil))
	cfg := env.settings()
	cfg.APIKey = ""
	env.setSettings(cfg)

	env.machine.BeginRecording(config.ModeTranscription)

	if env.audio.count() != 0 {
		t.Error("capture must not start without a credential")
	}
	if got := env.machine.State(); got != StateStopped {
		t.Errorf("state = %v, want stopped", got)
	}
	items := env.machine.History.List()
	if len(items) != 1 || items[0].Kind != history.KindError {
		t.Fatalf("history = %+v, want one error item", items)
	}
	if env.cues.errs.Load() != 1 {
		t.Errorf("error cue fired %d times, want 1", env.cues.errs.Load())
	}
}

func TestToggleLifecycleDeliversTranscript(t *testing.T) {
	env := newTestEnv(t, transcriber.NewFake("hello world", nil))
	m := env.machine

	m.KeyDown(config.ModeTranscription)
	if got := m.State(); got != StateRecording {
		t.Fatalf("state = %v, want recording", got)
	}
	cap := env.audio.last()
	if cap == nil || !cap.started {
		t.Fatal("capture not started")
	}
	if env.cues.start.Load() != 1 {
		t.Errorf("start cue fired %d times", env.cues.start.Load())
	}

	cap.Feed(tonePCM(1000))

	m.KeyDown(config.ModeTranscription) // toggle off
	waitState(t, m, StateStopped)

	if !cap.stopped {
		t.Error("capture not stopped")
	}
	text, autoPaste, ok := env.bridge.last()
	if !ok || text != "hello world" {
		t.Fatalf("delivered = %q, ok=%v", text, ok)
	}
	if autoPaste {
		t.Error("auto-paste should be off by default")
	}
	items := m.History.List()
	if len(items) != 1 || items[0].Kind != history.KindTranscription || items[0].Body != "hello world" {
		t.Fatalf("history = %+v", items)
	}
	if env.cues.stop.Load() != 1 {
		t.Errorf("stop cue fired %d times", env.cues.stop.Load())
	}
}

func TestKeyUpBeforeHoldThresholdKeepsRecording(t *testing.T) {
	env := newTestEnv(t, transcriber.NewFake("x", nil))
	cfg := env.settings()
	cfg.HoldThreshold = time.Hour
	env.setSettings(cfg)
	m := env.machine

	m.KeyDown(config.ModeTranscription)
	m.KeyUp()

	if got := m.State(); got != StateRecording {
		t.Errorf("state = %v, want recording (quick tap keeps recording)", got)
	}
	m.CancelRecording()
}

func TestKeyUpAfterHoldStopsAndArmsAutoPaste(t *testing.T) {
	env := newTestEnv(t, transcriber.NewFake("held text", nil))
	cfg := env.settings()
	cfg.HoldThreshold = 10 * time.Millisecond
	env.setSettings(cfg)
	m := env.machine

	m.KeyDown(config.ModeTranscription)
	env.audio.last().Feed(tonePCM(1000))
	time.Sleep(30 * time.Millisecond)
	m.KeyUp()
	waitState(t, m, StateStopped)

	text, autoPaste, ok := env.bridge.last()
	if !ok || text != "held text" {
		t.Fatalf("delivered = %q, ok=%v", text, ok)
	}
	if !autoPaste {
		t.Error("hold-release must arm auto-paste")
	}
}

func TestCancelDiscardsWithoutHistory(t *testing.T) {
	env := newTestEnv(t, transcriber.NewFake("x", nil))
	m := env.machine

	m.KeyDown(config.ModeTranscription)
	env.audio.last().Feed(tonePCM(500))
	m.CancelRecording()

	if got := m.State(); got != StateStopped {
		t.Errorf("state = %v, want stopped", got)
	}
	if n := m.History.Len(); n != 0 {
		t.Errorf("history has %d items, cancel must not record", n)
	}
	if _, _, ok := env.bridge.last(); ok {
		t.Error("nothing should be delivered on cancel")
	}
	if !env.audio.last().stopped {
		t.Error("capture not stopped")
	}
}

func TestBeginWhileTranscribingIsNoop(t *testing.T) {
	blocker := &blockingTranscriber{release: make(chan struct{})}
	env := newTestEnv(t, blocker)
	m := env.machine

	m.KeyDown(config.ModeTranscription)
	env.audio.last().Feed(tonePCM(1000))
	m.CompleteRecording()
	waitState(t, m, StateTranscribing)

	before := env.audio.count()
	m.BeginRecording(config.ModeTranscription)
	m.KeyDown(config.ModeTranscription)
	if env.audio.count() != before {
		t.Error("no new capture may start while transcribing")
	}

	close(blocker.release)
	waitState(t, m, StateStopped)
}

func TestTranscriptionErrorFunnelsToHistory(t *testing.T) {
	env := newTestEnv(t, transcriber.NewFake("", errors.New("network down")))
	m := env.machine

	m.KeyDown(config.ModeTranscription)
	env.audio.last().Feed(tonePCM(1000))
	m.CompleteRecording()
	waitState(t, m, StateStopped)

	items := m.History.List()
	if len(items) != 1 || items[0].Kind != history.KindError {
		t.Fatalf("history = %+v, want one error item", items)
	}
	if env.cues.errs.Load() != 1 {
		t.Errorf("error cue fired %d times, want 1", env.cues.errs.Load())
	}
	if _, _, ok := env.bridge.last(); ok {
		t.Error("nothing should be delivered on error")
	}
}

func TestInstructionModePassesThroughTransforming(t *testing.T) {
	env := newTestEnv(t, transcriber.NewFake("make it shorter", nil))
	m := env.machine
	m.Orchestrator.Completer = &transcriber.FakeCompleter{Reply: "shorter"}

	var mu sync.Mutex
	var seen []State
	m.OnState = func(s State) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	}

	m.KeyDown(config.ModeInstruction)
	env.audio.last().Feed(tonePCM(1000))
	m.CompleteRecording()
	waitState(t, m, StateStopped)

	text, _, ok := env.bridge.last()
	if !ok || text != "shorter" {
		t.Fatalf("delivered = %q, want the transformed text", text)
	}
	mu.Lock()
	defer mu.Unlock()
	var sawTransforming bool
	for _, s := range seen {
		if s == StateTransforming {
			sawTransforming = true
		}
	}
	if !sawTransforming {
		t.Errorf("states %v never passed through transforming", seen)
	}
}

func TestInstructionModeFallsBackWhenCloudDisabled(t *testing.T) {
	env := newTestEnv(t, transcriber.NewFake("x", nil))
	cfg := env.settings()
	cfg.CloudEnable = false
	cfg.APIKey = ""
	env.setSettings(cfg)
	m := env.machine
	completer := &transcriber.FakeCompleter{Reply: "transformed by cloud"}
	m.Orchestrator.Completer = completer

	m.KeyDown(config.ModeInstruction)
	env.audio.last().Feed(tonePCM(1000))
	m.CompleteRecording()
	waitState(t, m, StateStopped)

	text, _, ok := env.bridge.last()
	if !ok || text != "local text" {
		t.Fatalf("delivered = %q, want the plain local transcript", text)
	}
	if completer.LastMessages() != nil {
		t.Error("completer must not run with the cloud backend disabled")
	}
	items := m.History.List()
	if len(items) != 1 || items[0].Kind != history.KindTranscription {
		t.Fatalf("history = %+v, want one transcription item", items)
	}
}

func TestCompleteFromStoppedIsNoop(t *testing.T) {
	env := newTestEnv(t, transcriber.NewFake("x", nil))
	m := env.machine

	m.CompleteRecording()
	m.CancelRecording()

	if got := m.State(); got != StateStopped {
		t.Errorf("state = %v, want stopped", got)
	}
	if n := m.History.Len(); n != 0 {
		t.Errorf("history has %d items, want none", n)
	}
	if _, _, ok := env.bridge.last(); ok {
		t.Error("nothing should be delivered")
	}
	if env.cues.start.Load()+env.cues.stop.Load()+env.cues.errs.Load() != 0 {
		t.Error("no cue may fire outside a session")
	}
}

func TestAutoPasteSettingHonored(t *testing.T) {
	env := newTestEnv(t, transcriber.NewFake("pasted", nil))
	cfg := env.settings()
	cfg.AutoPaste = true
	env.setSettings(cfg)
	m := env.machine

	m.KeyDown(config.ModeTranscription)
	env.audio.last().Feed(tonePCM(1000))
	m.CompleteRecording()
	waitState(t, m, StateStopped)

	_, autoPaste, ok := env.bridge.last()
	if !ok || !autoPaste {
		t.Error("auto-paste setting should arm delivery paste")
	}
}
