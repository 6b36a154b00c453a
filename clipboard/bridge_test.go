package clipboard

import (
	"errors"
	"testing"
	"time"
)

type fakeSystem struct {
	contents string
	writes   []string
	readErr  error
}

func (f *fakeSystem) Read() (string, error) {
	if f.readErr != nil {
		return "", f.readErr
	}
	return f.contents, nil
}

func (f *fakeSystem) Write(text string) error {
	f.contents = text
	f.writes = append(f.writes, text)
	return nil
}

func newTestBridge(sys *fakeSystem, paste func() error) *Bridge {
	return &Bridge{system: sys, paste: paste, settle: time.Millisecond}
}

func TestDeliverWithoutAutoPaste(t *testing.T) {
	sys := &fakeSystem{contents: "prior"}
	pasted := false
	b := newTestBridge(sys, func() error { pasted = true; return nil })

	if err := b.Deliver("transcript", false); err != nil {
		t.Fatal(err)
	}
	if sys.contents != "transcript" {
		t.Errorf("clipboard = %q, want transcript", sys.contents)
	}
	if pasted {
		t.Error("paste keystroke should not be sent without auto-paste")
	}
}

func TestDeliverAutoPasteRestoresPrior(t *testing.T) {
	sys := &fakeSystem{contents: "prior"}
	pasted := false
	b := newTestBridge(sys, func() error { pasted = true; return nil })

	if err := b.Deliver("transcript", true); err != nil {
		t.Fatal(err)
	}
	if !pasted {
		t.Error("paste keystroke not sent")
	}
	if sys.contents != "prior" {
		t.Errorf("clipboard = %q, want prior contents restored", sys.contents)
	}
	// The transcript must have hit the clipboard before the keystroke.
	if len(sys.writes) != 2 || sys.writes[0] != "transcript" {
		t.Errorf("writes = %v", sys.writes)
	}
}

func TestDeliverPasteFailureKeepsTranscript(t *testing.T) {
	sys := &fakeSystem{contents: "prior"}
	b := newTestBridge(sys, func() error { return errors.New("no permission") })

	if err := b.Deliver("transcript", true); err == nil {
		t.Fatal("expected paste error")
	}
	if sys.contents != "transcript" {
		t.Errorf("clipboard = %q, transcript should remain for manual paste", sys.contents)
	}
	// A later Restore must not clobber it either.
	if err := b.Restore(); err != nil {
		t.Fatal(err)
	}
	if sys.contents != "transcript" {
		t.Errorf("Restore overwrote the transcript: %q", sys.contents)
	}
}

func TestSnapshotRestore(t *testing.T) {
	sys := &fakeSystem{contents: "original"}
	b := newTestBridge(sys, nil)

	if err := b.Snapshot(); err != nil {
		t.Fatal(err)
	}
	sys.Write("scratch")
	if err := b.Restore(); err != nil {
		t.Fatal(err)
	}
	if sys.contents != "original" {
		t.Errorf("clipboard = %q, want original", sys.contents)
	}
}

func TestRestoreWithoutSnapshotIsNoop(t *testing.T) {
	sys := &fakeSystem{contents: "untouched"}
	b := newTestBridge(sys, nil)

	if err := b.Restore(); err != nil {
		t.Fatal(err)
	}
	if len(sys.writes) != 0 {
		t.Errorf("unexpected writes: %v", sys.writes)
	}
}

func TestDeliverSnapshotFailureStillDelivers(t *testing.T) {
	sys := &fakeSystem{contents: "prior", readErr: errors.New("clipboard busy")}
	pasted := false
	b := newTestBridge(sys, func() error { pasted = true; return nil })

	if err := b.Deliver("transcript", true); err != nil {
		t.Fatal(err)
	}
	if !pasted {
		t.Error("paste keystroke not sent")
	}
	// Nothing was snapshotted, so the transcript keeps the clipboard.
	if sys.contents != "transcript" {
		t.Errorf("clipboard = %q, want transcript", sys.contents)
	}
	if err := b.Restore(); err != nil {
		t.Fatal(err)
	}
	if sys.contents != "transcript" {
		t.Errorf("Restore overwrote the transcript: %q", sys.contents)
	}
}
