package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"jot/audio"
	"jot/beep"
	"jot/clipboard"
	"jot/config"
	"jot/encoder"
	"jot/history"
	"jot/log"
	"jot/session"
	"jot/transcriber"
	"jot/vad"
)

// runTestMode drives the session machine headlessly: audio comes from a
// WAV file instead of a microphone and hotkey events come from stdin
// (KEYDOWN, KEYUP, CANCEL, WAIT, SLEEP <ms>, QUIT).
func runTestMode(wavPath string, orch *transcriber.Orchestrator, hist *history.Log, bridge *clipboard.Bridge) {
	beep.Disable()

	fakeCtx, err := audio.NewFakeContext(wavPath, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading WAV: %v\n", err)
		os.Exit(1)
	}

	machine := session.NewMachine()
	machine.Audio = fakeCtx
	machine.Gate = vad.New(encoder.SampleRate)
	machine.Orchestrator = orch
	machine.History = hist
	machine.Bridge = bridge
	machine.Settings = currentSettings
	machine.ScratchDir = os.TempDir()

	resultCh := make(chan history.Item, 8)
	machine.OnResult = func(item history.Item) {
		resultCh <- item
	}
	machine.OnState = func(s session.State) {
		fmt.Printf("STATE %s\n", s)
	}

	machine.Initialize(context.Background())

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		cmd := strings.TrimSpace(scanner.Text())
		switch cmd {
		case "KEYDOWN":
			machine.KeyDown(config.ModeTranscription)
		case "KEYUP":
			machine.KeyUp()
		case "CANCEL":
			machine.CancelRecording()
		case "WAIT":
			item := <-resultCh
			if item.Kind == history.KindError {
				fmt.Printf("ERROR %s\n", item.Body)
			} else {
				fmt.Printf("TEXT %s\n", item.Body)
			}
		case "QUIT":
			log.Close()
			os.Exit(0)
		default:
			if strings.HasPrefix(cmd, "SLEEP ") {
				if ms, err := strconv.Atoi(cmd[6:]); err == nil {
					time.Sleep(time.Duration(ms) * time.Millisecond)
				}
			}
		}
	}
	os.Exit(0)
}
