package hotkey

// Combo identifies one of the registered global shortcuts. Each combo
// selects the mode the resulting recording session runs in.
type Combo int

const (
	ComboTranscribe Combo = iota // Ctrl+Shift+Space
	ComboInstruct                // Ctrl+Shift+I
	ComboCreative                // Ctrl+Shift+C
)

func (c Combo) String() string {
	switch c {
	case ComboInstruct:
		return "instruct"
	case ComboCreative:
		return "creative"
	default:
		return "transcribe"
	}
}

type Hotkey interface {
	Register() error
	Unregister()
	Keydown() <-chan struct{}
	Keyup() <-chan struct{}
}
