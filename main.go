package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"path/filepath"
	"runtime/debug"
	"slices"
	"sync"
	"time"

	"github.com/joho/godotenv"

	"jot/audio"
	"jot/beep"
	"jot/clipboard"
	"jot/config"
	"jot/doctor"
	"jot/encoder"
	"jot/history"
	"jot/hotkey"
	"jot/log"
	"jot/login"
	"jot/paste"
	"jot/session"
	"jot/shutdown"
	"jot/store"
	"jot/transcriber"
	"jot/tray"
	"jot/update"
	"jot/vad"
)

var version = "dev"

var (
	settingsMu sync.Mutex
	settings   config.Settings

	settingsStore *store.Store
	obfuscator    *store.Obfuscator
)

func currentSettings() config.Settings {
	settingsMu.Lock()
	defer settingsMu.Unlock()
	return settings
}

// updateSettings mutates the live snapshot and persists it. Errors are
// logged, not surfaced; a failed save leaves the session state intact.
func updateSettings(fn func(*config.Settings)) {
	settingsMu.Lock()
	fn(&settings)
	cfg := settings
	settingsMu.Unlock()
	if settingsStore == nil {
		return
	}
	if err := config.Save(cfg, settingsStore, obfuscator); err != nil {
		log.Warnf("saving settings: %v", err)
	}
}

var shutdownOnce sync.Once

func gracefulShutdown() {
	shutdownOnce.Do(func() {
		log.Close()
		tray.Quit()
		tuiMu.Lock()
		p := tuiProgram
		tuiMu.Unlock()
		if p != nil {
			p.Quit()
		}
		os.Exit(0)
	})
}

func deviceLineText(dev *audio.DeviceInfo) string {
	name := "system default"
	suffix := ""
	if dev != nil {
		name = dev.Name
		if audio.IsBluetooth(dev.Name) {
			suffix = " (BT!)"
		}
	}
	return "mic: " + name + suffix
}

func modeLineText(cfg config.Settings) string {
	backend := "local"
	if cfg.CloudEnable {
		backend = "cloud"
	}
	lang := cfg.Language
	if lang == "" {
		lang = "auto"
	}
	extras := ""
	if cfg.Translate {
		extras += " | translate"
	}
	if cfg.AutoPaste {
		extras += " | auto-paste"
	}
	return fmt.Sprintf("[%s (%s)%s]", backend, lang, extras)
}

func runUpdateCommand() {
	if version == "dev" {
		fmt.Println("Dev build — cannot check for updates.")
		os.Exit(0)
	}
	fmt.Printf("jot %s — checking for updates...\n", version)
	rel, err := update.CheckLatest(version)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if rel == nil {
		fmt.Println("Already up to date.")
		os.Exit(0)
	}
	fmt.Printf("Update available: %s -> %s\n", version, rel.Version)
	fmt.Print("Continue? [y/N] ")
	var answer string
	fmt.Scanln(&answer)
	if answer != "y" && answer != "Y" {
		fmt.Println("Aborted.")
		os.Exit(0)
	}
	fmt.Printf("Downloading %s...\n", rel.Version)
	if err := update.Apply(rel); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Updated to %s\n", rel.Version)
	os.Exit(0)
}

func run() {
	if len(os.Args) > 1 && os.Args[1] == "update" {
		runUpdateCommand()
	}

	langFlag := flag.String("lang", "", "Language code for transcription (e.g., en, es, de, ru). Empty = configured value")
	autoPasteFlag := flag.Bool("autopaste", false, "Auto-paste to focused window after transcription")
	soundsFlag := flag.Bool("sounds", true, "Play audible start/stop/error cues")
	setupFlag := flag.Bool("setup", false, "Select microphone device (otherwise uses system default)")
	deviceFlag := flag.String("device", "", "Use named microphone device")
	holdFlag := flag.Duration("holdpress", 0, "Hold threshold before key release stops recording (e.g., 700ms)")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	doctorFlag := flag.Bool("doctor", false, "Run system diagnostics and exit")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	profileFlag := flag.String("profile", "", "Enable pprof profiling server (e.g., :6060 or localhost:6060)")
	crashFlag := flag.Bool("crash", false, "Trigger synthetic panic for testing crash logging")
	testFlag := flag.Bool("test", false, "Test mode (headless, stdin-driven)")
	tuiFlag := flag.Bool("tui", true, "Run with terminal UI")
	flag.Parse()

	// Resolve log directory early
	logPath, err := log.ResolveDir(*logPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)

	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}

	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err == nil {
		fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
		debug.SetCrashOutput(crashFile, debug.CrashOptions{})
	}

	if *profileFlag != "" {
		go func() {
			fmt.Fprintf(os.Stderr, "pprof server listening on http://%s/debug/pprof/\n", *profileFlag)
			if err := http.ListenAndServe(*profileFlag, nil); err != nil {
				fmt.Fprintf(os.Stderr, "pprof server error: %v\n", err)
			}
		}()
	}

	if *crashFlag {
		panic("TEST CRASH: synthetic panic to verify crash logging")
	}

	if *versionFlag {
		fmt.Printf("jot %s\n", version)
		os.Exit(0)
	}

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}

	// .env sits alongside the settings store in the precedence chain:
	// real environment > .env > store > defaults. godotenv never
	// overrides variables that are already set.
	godotenv.Load()

	storePath, err := store.DefaultPath()
	if err != nil {
		log.Warnf("settings path: %v", err)
	} else {
		settingsStore, err = store.Open(storePath)
		if err != nil {
			log.Warnf("settings store: %v", err)
		}
	}
	obfuscator = store.NewObfuscator()

	cfg, err := config.Load(settingsStore, obfuscator)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Explicit flags win over both environment and store.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "lang":
			cfg.Language = *langFlag
		case "autopaste":
			cfg.AutoPaste = *autoPasteFlag
		case "sounds":
			cfg.Sounds = *soundsFlag
		case "holdpress":
			cfg.HoldThreshold = *holdFlag
		}
	})

	settingsMu.Lock()
	settings = cfg
	settingsMu.Unlock()

	if *doctorFlag {
		os.Exit(doctor.Run(cfg))
	}

	if !cfg.Sounds {
		beep.Disable()
	}
	go beep.Init()

	if cfg.AutoPaste {
		if err := paste.Init(); err != nil {
			fmt.Printf("Warning: paste init failed: %v\n", err)
			fmt.Println("Fix with: sudo chmod 660 /dev/uinput && sudo chgrp input /dev/uinput")
		}
	}

	hist := history.NewLog(cfg.HistoryCapacity)
	if settingsStore != nil {
		hist.SetRepository(settingsStore, func(err error) {
			log.Warnf("persisting history: %v", err)
		})
	}

	cloud := transcriber.NewOpenAI(cfg.APIKey)
	local := transcriber.NewLocal()
	bridge := clipboard.NewBridge(paste.Send)
	orch := &transcriber.Orchestrator{
		Cloud:         cloud,
		Local:         local,
		Completer:     cloud,
		ClipboardText: bridge.Read,
	}

	if *testFlag {
		args := flag.Args()
		if len(args) == 0 {
			fmt.Fprintln(os.Stderr, "Usage: jot -test <wav-file>")
			os.Exit(1)
		}
		runTestMode(args[0], orch, hist, bridge)
		return
	}

	audioCtx, err := audio.NewContext()
	if err != nil {
		log.Errorf("audio context init error: %v", err)
		fmt.Printf("Error initializing audio context: %v\n", err)
		os.Exit(1)
	}
	defer audioCtx.Close()

	var selectedDevice *audio.DeviceInfo
	if *deviceFlag != "" {
		if devices, err := audioCtx.Devices(); err == nil {
			for i := range devices {
				if devices[i].Name == *deviceFlag {
					selectedDevice = &devices[i]
					break
				}
			}
		}
		if selectedDevice == nil {
			fmt.Printf("Warning: device %q not found, using system default\n", *deviceFlag)
		}
	} else if *setupFlag {
		selectedDevice, err = audio.SelectDevice(audioCtx)
		if err != nil {
			log.Warnf("device selection failed: %v", err)
			fmt.Printf("Warning: device selection failed: %v\n", err)
			fmt.Println("Falling back to default device")
			selectedDevice = nil
		}
	}

	machine := session.NewMachine()
	machine.Audio = audioCtx
	machine.Device = selectedDevice
	machine.Gate = vad.New(encoder.SampleRate)
	machine.Orchestrator = orch
	machine.History = hist
	machine.Bridge = bridge
	machine.Settings = currentSettings
	machine.ScratchDir = os.TempDir()
	machine.Cues = session.Cues{
		Start: func() { go beep.PlayStart() },
		Stop:  func() { go beep.PlayEnd() },
		Error: func() { go beep.PlayError() },
	}

	// Live preview rides on the local model: once it is warm the
	// incremental drains get a best-effort on-device transcription.
	// With the cloud backend active the model stays cold and the
	// preview quietly disables itself.
	machine.Partial = func(ctx context.Context, samples []float32) (string, error) {
		return local.Transcribe(ctx, transcriber.Request{
			Samples:  samples,
			Language: currentSettings().Language,
		})
	}
	machine.OnPartial = func(text string) {
		tuiSend(partialMsg(text))
	}

	// Fan machine events out to the TUI and the tray.
	machine.OnState = func(s session.State) {
		tuiSend(stateMsg(s))
		tray.SetRecording(s == session.StateRecording)
	}
	machine.OnLevel = func(level float64) {
		tuiSend(levelMsg(level))
	}
	machine.OnResult = func(item history.Item) {
		tuiSend(resultMsg(item))
		if item.Kind == history.KindTranscription {
			tray.SetLastRecording(item.Duration)
		} else {
			tray.SetError(item.Body)
		}
	}
	machine.OnSilence = func(warned bool) {
		tuiSend(silenceMsg(warned))
		tray.SetWarning(warned)
	}

	// Start TUI
	if *tuiFlag {
		tuiMu.Lock()
		tuiProgram = newTUIProgram(hist)
		tuiMu.Unlock()

		go func() {
			if _, err := tuiProgram.Run(); err != nil {
				log.Errorf("TUI error: %v", err)
				os.Exit(1)
			}
			gracefulShutdown()
		}()
	}

	tray.OnCopyLast(func() {
		for _, item := range hist.List() {
			if item.Kind == history.KindTranscription {
				if err := clipboard.Copy(item.Body); err != nil {
					log.Warnf("copy last: %v", err)
				}
				return
			}
		}
	})
	tray.OnRecord(
		func() { machine.BeginRecording(config.ModeTranscription) },
		func() { machine.CompleteRecording() },
	)

	// preferredDevice remembers the user's choice so we can auto-reconnect.
	// deviceMu covers both: the tray callback and the hotplug poll race on
	// them otherwise.
	var deviceMu sync.Mutex
	preferredDevice := ""
	if selectedDevice != nil {
		preferredDevice = selectedDevice.Name
	}
	applyDevice := func(dev *audio.DeviceInfo) {
		deviceMu.Lock()
		selectedDevice = dev
		deviceMu.Unlock()
		machine.SetDevice(dev)
		name := "system default"
		if dev != nil {
			name = dev.Name
		}
		log.Info("device_switch: " + name)
		tuiSend(deviceLineMsg(deviceLineText(dev)))
	}
	switchDeviceByName := func(name string) {
		devices, err := audioCtx.Devices()
		if err != nil {
			log.Warnf("device enumeration failed: %v", err)
			return
		}
		for i := range devices {
			if devices[i].Name == name {
				applyDevice(&devices[i])
				return
			}
		}
		log.Warnf("device not found: %s", name)
	}

	tray.SetBTCheck(audio.IsBluetooth)
	if devices, err := audioCtx.Devices(); err == nil && len(devices) > 0 {
		names := make([]string, len(devices))
		for i := range devices {
			names[i] = devices[i].Name
		}
		tray.SetDevices(names, preferredDevice, func(name string) {
			deviceMu.Lock()
			preferredDevice = name
			deviceMu.Unlock()
			switchDeviceByName(name)
		})
	}

	tray.SetAutoPaste(cfg.AutoPaste)
	tray.OnAutoPaste(func(on bool) {
		updateSettings(func(s *config.Settings) { s.AutoPaste = on })
		tuiSend(modeLineMsg(modeLineText(currentSettings())))
	})
	tray.SetSounds(cfg.Sounds)
	tray.OnSounds(func(on bool) {
		if on {
			beep.Enable()
		} else {
			beep.Disable()
		}
		updateSettings(func(s *config.Settings) { s.Sounds = on })
	})
	tray.SetLogin(login.Enabled())
	tray.OnLogin(func(on bool) error {
		if on {
			return login.Enable()
		}
		return login.Disable()
	})

	tray.SetBackends([]tray.Backend{
		{Name: "cloud", Label: "OpenAI (cloud)", Available: cfg.APIKey != "", Active: cfg.CloudEnable},
		{Name: "local", Label: "Whisper (on-device)", Available: true, Active: !cfg.CloudEnable},
	}, func(name string) {
		enable := name == "cloud"
		updateSettings(func(s *config.Settings) { s.CloudEnable = enable })
		if !enable {
			go func() {
				if err := local.Initialize(context.Background()); err != nil {
					log.Errorf("local model warm-up: %v", err)
				}
			}()
		}
		tuiSend(modeLineMsg(modeLineText(currentSettings())))
	})

	tray.SetLanguage(cfg.Language, func(code string) {
		updateSettings(func(s *config.Settings) { s.Language = code })
		tuiSend(modeLineMsg(modeLineText(currentSettings())))
	})

	trayQuit := tray.Init()

	// Poll for device changes (hotplug)
	go func() {
		var last []string
		ticker := time.NewTicker(3 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			devices, err := audioCtx.Devices()
			if err != nil {
				continue
			}
			names := make([]string, len(devices))
			for i := range devices {
				names[i] = devices[i].Name
			}
			if slices.Equal(last, names) {
				continue
			}
			last = names
			deviceMu.Lock()
			selName := ""
			if selectedDevice != nil {
				selName = selectedDevice.Name
			}
			pref := preferredDevice
			deviceMu.Unlock()
			if selName != "" && !slices.Contains(names, selName) {
				// Selected device disappeared — fall back to default
				log.Info("device_disconnected: " + selName)
				applyDevice(nil)
				selName = ""
			} else if selName == "" && pref != "" && slices.Contains(names, pref) {
				// Preferred device reappeared — auto-reconnect
				log.Info("device_reconnected: " + pref)
				switchDeviceByName(pref)
				selName = pref
			}
			tray.RefreshDevices(names, selName)
		}
	}()

	update.StartBackgroundCheck(version, log.Dir(), func(rel update.Release) {
		log.Info("update_available: " + rel.Version)
		tuiSend(updateAvailableMsg(rel.Version))
		tray.SetUpdateAvailable(rel.Version)
	})

	sigChan := make(chan os.Signal, 1)
	shutdown.Notify(sigChan)
	go func() {
		select {
		case <-sigChan:
		case <-trayQuit:
		}
		gracefulShutdown()
	}()

	combos := []struct {
		combo hotkey.Combo
		mode  config.Mode
	}{
		{hotkey.ComboTranscribe, config.ModeTranscription},
		{hotkey.ComboInstruct, config.ModeInstruction},
		{hotkey.ComboCreative, config.ModeCreative},
	}
	for _, c := range combos {
		hk := hotkey.New(c.combo)
		if err := hk.Register(); err != nil {
			log.Errorf("hotkey register error (%s): %v", c.combo, err)
			fmt.Printf("Error registering hotkey %s: %v\n", c.combo, err)
			if c.combo == hotkey.ComboTranscribe {
				os.Exit(1)
			}
			continue
		}
		defer hk.Unregister()
		go func(hk hotkey.Hotkey, mode config.Mode) {
			for {
				select {
				case <-hk.Keydown():
					machine.KeyDown(mode)
				case <-hk.Keyup():
					machine.KeyUp()
				}
			}
		}(hk, c.mode)
	}

	machine.Initialize(context.Background())

	tuiSend(modeLineMsg(modeLineText(cfg)))
	tuiSend(deviceLineMsg(deviceLineText(selectedDevice)))

	select {}
}
