// Package tray is the menu-bar surface: record/stop, copy-last,
// device and backend selection, and a handful of settings toggles.
// Platform wiring lives in tray_darwin.go; elsewhere it is a no-op.
package tray

import (
	"fmt"
	"sync"
	"time"
)

// Backend is one transcription engine offered in the menu. Available
// is false when the engine cannot run (cloud without an API key).
type Backend struct {
	Name      string
	Label     string
	Available bool
	Active    bool
}

var (
	quitCh    = make(chan struct{})
	closeOnce sync.Once

	copyLastFn func()
	recordFn   func()
	stopFn     func()

	recording bool
	warning   bool

	deviceMu    sync.Mutex
	deviceNames []string
	deviceSel   string
	deviceCb    func(string)

	autoPasteOn bool
	autoPasteCb func(bool)

	soundsOn bool
	soundsCb func(bool)

	loginOn bool
	loginCb func(bool) error

	backendMu sync.Mutex
	backends  []Backend
	backendCb func(string)

	isBTFn func(string) bool

	langCode string // current language code ("" = auto-detect)
	langCb   func(string)
)

type Language struct {
	Code  string // ISO-639-1
	Label string
}

// Languages with a curated transcription prompt come first; the rest
// ride on Whisper's multilingual coverage.
var Languages = []Language{
	{"", "Auto-detect"},
	{"en", "English"},
	{"es", "Spanish"},
	{"de", "German"},
	{"ru", "Russian"},
	{"zh", "Chinese"},
	{"cs", "Czech"},
	{"da", "Danish"},
	{"nl", "Dutch"},
	{"fi", "Finnish"},
	{"fr", "French"},
	{"el", "Greek"},
	{"hi", "Hindi"},
	{"hu", "Hungarian"},
	{"id", "Indonesian"},
	{"it", "Italian"},
	{"ja", "Japanese"},
	{"ko", "Korean"},
	{"no", "Norwegian"},
	{"pl", "Polish"},
	{"pt", "Portuguese"},
	{"ro", "Romanian"},
	{"sv", "Swedish"},
	{"th", "Thai"},
	{"tr", "Turkish"},
	{"uk", "Ukrainian"},
	{"vi", "Vietnamese"},
}

func OnCopyLast(fn func())        { copyLastFn = fn }
func OnRecord(start, stop func()) { recordFn = start; stopFn = stop }
func SetAutoPaste(on bool)        { autoPasteOn = on }
func OnAutoPaste(fn func(bool))   { autoPasteCb = fn }
func SetSounds(on bool)           { soundsOn = on }
func OnSounds(fn func(bool))      { soundsCb = fn }
func SetLogin(on bool)            { loginOn = on }
func OnLogin(fn func(bool) error) { loginCb = fn }

func SetRecording(rec bool) {
	recording = rec
	warning = false
	updateRecordingIcon(rec)
	if rec {
		disableDevices()
		disableBackend()
	} else {
		enableDevices()
		enableBackend()
	}
}

func SetWarning(on bool) {
	if !recording {
		return
	}
	warning = on
	updateWarningIcon(on)
}

func SetError(msg string) {
	updateTooltip("jot – " + msg)
	go func() {
		time.Sleep(10 * time.Second)
		updateTooltip("jot – dictation")
	}()
}

func Quit() {
	closeOnce.Do(func() { close(quitCh) })
}

func SetDevices(names []string, selected string, onSwitch func(name string)) {
	deviceMu.Lock()
	deviceNames = names
	deviceSel = selected
	if onSwitch != nil {
		deviceCb = onSwitch
	}
	deviceMu.Unlock()
}

func SetBackends(b []Backend, onSwitch func(string)) {
	backendMu.Lock()
	backends = b
	backendCb = onSwitch
	backendMu.Unlock()
}

func SetLastRecording(dur time.Duration) {
	updateCopyLastTitle(fmt.Sprintf("Copy Last Transcription (%.1fs)", dur.Seconds()))
}

func SetUpdateAvailable(version string) {
	addUpdateMenuItem(version)
}

func SetLanguage(code string, onSwitch func(string)) {
	langCode = code
	langCb = onSwitch
}

func SetBTCheck(fn func(string) bool) {
	isBTFn = fn
}

func deviceDisplayName(name string) string {
	if isBTFn != nil && isBTFn(name) {
		return name + " [⚠ Lower audio quality]"
	}
	return name
}
