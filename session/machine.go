// Package session owns the recording lifecycle: it turns hotkey events
// into capture, voice-gated buffering, transcription and delivery, and
// is the single place errors become user-visible.
package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"jot/audio"
	"jot/config"
	"jot/encoder"
	"jot/history"
	"jot/log"
	"jot/record"
	"jot/transcriber"
	"jot/vad"
)

type State int32

const (
	StateInitializing State = iota
	StateStopped
	StateRecording
	StateTranscribing
	StateTransforming
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateStopped:
		return "stopped"
	case StateRecording:
		return "recording"
	case StateTranscribing:
		return "transcribing"
	case StateTransforming:
		return "transforming"
	default:
		return "unknown"
	}
}

// drainInterval is how often gated samples are pulled out of the live
// buffer while recording continues.
const drainInterval = 2 * time.Second

// Deliverer is the clipboard surface the machine needs; satisfied by
// clipboard.Bridge.
type Deliverer interface {
	Deliver(text string, autoPaste bool) error
}

// Cues are the audible signals; any of them may be nil.
type Cues struct {
	Start func()
	Stop  func()
	Error func()
}

func (c Cues) start() {
	if c.Start != nil {
		c.Start()
	}
}
func (c Cues) stop() {
	if c.Stop != nil {
		c.Stop()
	}
}
func (c Cues) error() {
	if c.Error != nil {
		c.Error()
	}
}

// Machine coordinates one recording session at a time. All transitions
// happen under mu; the transcription itself runs on its own goroutine
// with the machine parked in Transcribing/Transforming.
type Machine struct {
	Audio        audio.Context
	Device       *audio.DeviceInfo
	Gate         *vad.Gate
	Orchestrator *transcriber.Orchestrator
	History      *history.Log
	Bridge       Deliverer
	Settings     func() config.Settings
	Cues         Cues
	ScratchDir   string

	// Partial, when set, turns each incremental drain into a live
	// preview. Best effort: failures are dropped.
	Partial func(ctx context.Context, samples []float32) (string, error)

	OnState   func(State)
	OnPartial func(text string)
	OnLevel   func(level float64)
	OnResult  func(item history.Item)
	OnSilence func(warned bool)

	mu      sync.Mutex
	state   State
	current *recordingSession
}

type recordingSession struct {
	id        string
	mode      config.Mode
	cfg       config.Settings
	started   time.Time
	buffer    *record.Buffer
	recorder  *record.FileRecorder
	capture   audio.CaptureDevice
	autoPaste bool
	toggled   atomic.Bool

	sampleMu sync.Mutex
	samples  []float32

	stopDrain chan struct{}
	drainDone chan struct{}
}

// NewMachine starts in Initializing; call Initialize to reach Stopped.
func NewMachine() *Machine {
	return &Machine{state: StateInitializing}
}

// SetDevice changes the capture device used for the next session. A
// session already recording keeps its device.
func (m *Machine) SetDevice(dev *audio.DeviceInfo) {
	m.mu.Lock()
	m.Device = dev
	m.mu.Unlock()
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Machine) setStateLocked(s State) {
	if m.state == s {
		return
	}
	log.StateChange(m.state.String(), s.String())
	m.state = s
	if m.OnState != nil {
		m.OnState(s)
	}
}

// Initialize warms the local model when the cloud backend is disabled,
// then makes the machine ready. Reached Stopped even when warm-up
// fails; the failure resurfaces on first use.
func (m *Machine) Initialize(ctx context.Context) {
	cfg := m.Settings()
	if !cfg.CloudEnable && m.Orchestrator != nil && m.Orchestrator.Local != nil {
		if err := m.Orchestrator.Local.Initialize(ctx); err != nil {
			log.Errorf("local model warm-up: %v", err)
		}
	}
	m.mu.Lock()
	m.setStateLocked(StateStopped)
	m.mu.Unlock()
}

// KeyDown is toggle-on-key-down: it starts a session when stopped and
// completes the running one when recording. Pressing while a
// transcription is outstanding is a no-op, never queued.
func (m *Machine) KeyDown(mode config.Mode) {
	m.mu.Lock()
	switch m.state {
	case StateStopped:
		m.beginLocked(mode, time.Now())
		m.mu.Unlock()
	case StateRecording:
		m.completeLocked(false)
		m.mu.Unlock()
	default:
		m.mu.Unlock()
	}
}

// KeyUp stops the session only when the key was held past the hold
// threshold (press-and-hold usage). That path arms auto-paste so the
// transcript lands in the focused application.
func (m *Machine) KeyUp() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateRecording || m.current == nil {
		return
	}
	if time.Since(m.current.started) < m.current.cfg.HoldThreshold {
		// A tap: the key went up but recording runs on in toggle mode.
		m.current.toggled.Store(true)
		return
	}
	m.completeLocked(true)
}

// BeginRecording starts a session. Legal only from Stopped; otherwise a
// no-op.
func (m *Machine) BeginRecording(mode config.Mode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateStopped {
		return
	}
	m.beginLocked(mode, time.Now())
}

func (m *Machine) beginLocked(mode config.Mode, now time.Time) {
	cfg := m.Settings()

	// Credential gate: checked before any capture starts.
	if cfg.CloudEnable && cfg.APIKey == "" {
		m.failLocked(transcriber.ErrCredentialMissing)
		return
	}

	// The transform modes drive the cloud completion endpoint; with the
	// cloud backend off they fall back to plain transcription.
	if !cfg.CloudEnable && mode != config.ModeTranscription {
		log.Warnf("mode %s requires the cloud backend, recording as transcription", mode)
		mode = config.ModeTranscription
	}

	sess := &recordingSession{
		id:        uuid.NewString(),
		mode:      mode,
		cfg:       cfg,
		started:   now,
		buffer:    record.NewBuffer(),
		autoPaste: cfg.AutoPaste,
		stopDrain: make(chan struct{}),
		drainDone: make(chan struct{}),
	}

	recorder, err := record.NewFileRecorder(m.ScratchDir)
	if err != nil {
		m.failLocked(fmt.Errorf("scratch recorder: %w", err))
		return
	}
	sess.recorder = recorder

	capture, err := m.Audio.NewCapture(m.Device, audio.CaptureConfig{
		SampleRate: encoder.SampleRate,
		Channels:   encoder.Channels,
	})
	if err != nil {
		recorder.Remove()
		m.failLocked(fmt.Errorf("audio capture: %w", err))
		return
	}
	sess.capture = capture

	capture.SetCallback(func(data []byte, _ uint32) {
		// Runs on the audio thread; keep it short. The recorder gets
		// every frame, the buffer only what the gate lets through.
		if err := sess.recorder.Write(data); err != nil {
			log.Errorf("scratch write: %v", err)
		}
		samples := vad.Samples(data)
		if m.Gate.Voice(samples) {
			sess.buffer.Append(samples)
		}
		if m.OnLevel != nil {
			m.OnLevel(vad.Level(data))
		}
	})

	if err := capture.Start(); err != nil {
		capture.ClearCallback()
		capture.Close()
		recorder.Remove()
		m.failLocked(fmt.Errorf("audio capture start: %w", err))
		return
	}

	m.current = sess
	m.setStateLocked(StateRecording)
	m.Cues.start()
	go m.drainLoop(sess)
}

// drainLoop periodically pulls gated samples out of the live buffer,
// feeds the optional partial-transcription preview, and runs the
// silence monitor off the same cadence.
func (m *Machine) drainLoop(sess *recordingSession) {
	defer close(sess.drainDone)
	ticker := time.NewTicker(drainInterval)
	defer ticker.Stop()
	monitor := newSilenceMonitor(drainInterval, sess.toggled.Load)
	for {
		select {
		case <-sess.stopDrain:
			return
		case <-ticker.C:
		}
		chunk := sess.buffer.DrainIncremental()

		switch monitor.Tick(len(chunk) > 0) {
		case silenceWarn, silenceRepeat:
			m.Cues.error()
			if m.OnSilence != nil {
				m.OnSilence(true)
			}
		case silenceWarnClear:
			if m.OnSilence != nil {
				m.OnSilence(false)
			}
		case silenceAutoClose:
			// CompleteRecording closes stopDrain from another
			// goroutine; the next select iteration ends the loop.
			m.CompleteRecording()
			continue
		}

		if len(chunk) == 0 {
			continue
		}
		sess.sampleMu.Lock()
		sess.samples = append(sess.samples, chunk...)
		accumulated := sess.samples
		sess.sampleMu.Unlock()

		if m.Partial == nil || m.OnPartial == nil {
			continue
		}
		if text, err := m.Partial(context.Background(), accumulated); err == nil && text != "" {
			m.OnPartial(text)
		}
	}
}

// CompleteRecording stops capture and dispatches transcription. Legal
// only from Recording.
func (m *Machine) CompleteRecording() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateRecording {
		return
	}
	m.completeLocked(false)
}

func (m *Machine) completeLocked(heldRelease bool) {
	sess := m.current
	m.current = nil
	m.setStateLocked(StateTranscribing)
	m.Cues.stop()

	if heldRelease {
		sess.autoPaste = true
	}

	go func() {
		m.quiesce(sess)

		tail := sess.buffer.DrainFinal()
		sess.sampleMu.Lock()
		sess.samples = append(sess.samples, tail...)
		samples := sess.samples
		sess.sampleMu.Unlock()

		flacBytes, err := sess.recorder.Close()
		if err != nil {
			log.Errorf("finalizing scratch recording: %v", err)
		}

		m.transcribe(sess, samples, flacBytes)
	}()
}

// quiesce stops the capture device (the no-truncation barrier: after
// Stop returns, no callback is in flight) and the drain loop.
func (m *Machine) quiesce(sess *recordingSession) {
	sess.capture.Stop()
	sess.capture.ClearCallback()
	sess.capture.Close()
	close(sess.stopDrain)
	<-sess.drainDone
}

func (m *Machine) transcribe(sess *recordingSession, samples []float32, flacBytes []byte) {
	ctx := context.Background()
	result, err := m.Orchestrator.Transcribe(ctx, transcriber.Request{
		Audio:    flacBytes,
		Filename: sess.id + ".flac",
		Samples:  samples,
	}, transcriber.Options{
		CloudEnabled: sess.cfg.CloudEnable,
		Language:     sess.cfg.Language,
		Translate:    sess.cfg.Translate,
		SpeechHints:  sess.cfg.Prompt,
		Mode:         sess.mode,
		Creativity:   sess.cfg.Creativity,
		OnTransforming: func() {
			m.mu.Lock()
			m.setStateLocked(StateTransforming)
			m.mu.Unlock()
		},
	})
	sess.recorder.Remove()
	if err != nil {
		m.fail(err)
		return
	}

	if err := m.Bridge.Deliver(result.Text, sess.autoPaste); err != nil {
		log.Errorf("clipboard delivery: %v", err)
	}

	item := history.NewTranscription(result.Text, result.Duration)
	m.History.Enqueue(item)
	log.TelemetryEvent(m.Orchestrator.Backend(transcriber.Options{CloudEnabled: sess.cfg.CloudEnable}).Name(),
		string(sess.mode), result.Duration, result.Words)

	m.mu.Lock()
	m.setStateLocked(StateStopped)
	m.mu.Unlock()
	if m.OnResult != nil {
		m.OnResult(item)
	}
}

// CancelRecording discards the session: no transcription, no history
// entry. Legal only from Recording; once transcription is dispatched it
// runs to completion.
func (m *Machine) CancelRecording() {
	m.mu.Lock()
	if m.state != StateRecording {
		m.mu.Unlock()
		return
	}
	sess := m.current
	m.current = nil
	m.setStateLocked(StateStopped)
	m.mu.Unlock()

	m.quiesce(sess)
	sess.buffer.DrainFinal()
	if _, err := sess.recorder.Close(); err != nil {
		log.Errorf("closing cancelled recording: %v", err)
	}
	sess.recorder.Remove()
}

// fail is the single error path: history entry, error cue, Stopped.
func (m *Machine) fail(err error) {
	m.mu.Lock()
	m.failLocked(err)
	m.mu.Unlock()
}

func (m *Machine) failLocked(err error) {
	log.Errorf("session: %v", err)
	item := history.NewError(err)
	m.History.Enqueue(item)
	m.Cues.error()
	m.setStateLocked(StateStopped)
	if m.OnResult != nil {
		m.OnResult(item)
	}
}
