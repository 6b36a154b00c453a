//go:build !linux

package main

import (
	"runtime"

	"golang.design/x/hotkey/mainthread"
)

func init() {
	runtime.LockOSThread()
}

func main() {
	// The tray and hotkey registration both need the OS main thread on
	// macOS; run() executes inside the mainthread loop.
	mainthread.Init(run)
}
