package record

import (
	"encoding/binary"
	"os"
	"sync"
	"testing"

	"jot/encoder"
)

func TestBufferDrainReturnsAllAndEmpties(t *testing.T) {
	b := NewBuffer()
	b.Append([]float32{1, 2})
	b.Append([]float32{3})

	got := b.DrainIncremental()
	if len(got) != 3 || got[0] != 1 || got[2] != 3 {
		t.Errorf("drain = %v, want [1 2 3]", got)
	}
	if b.Len() != 0 {
		t.Errorf("len after drain = %d, want 0", b.Len())
	}
	if extra := b.DrainIncremental(); len(extra) != 0 {
		t.Errorf("second drain = %v, want empty", extra)
	}
}

func TestBufferNoSampleDeliveredTwice(t *testing.T) {
	b := NewBuffer()
	const writers = 4
	const perWriter = 2000

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				b.Append([]float32{1})
			}
		}()
	}

	var drained int
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			drained += len(b.DrainIncremental())
		}
	}()

	wg.Wait()
	<-done
	drained += len(b.DrainFinal())

	if drained != writers*perWriter {
		t.Errorf("total drained = %d, want %d", drained, writers*perWriter)
	}
}

func TestFileRecorderWritesFlacScratchFile(t *testing.T) {
	dir := t.TempDir()
	r, err := NewFileRecorder(dir)
	if err != nil {
		t.Fatalf("NewFileRecorder: %v", err)
	}

	// One full block plus a partial one.
	n := encoder.BlockSize + 100
	pcm := make([]byte, n*2)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(i%512))
	}
	if err := r.Write(pcm); err != nil {
		t.Fatalf("Write: %v", err)
	}

	data, err := r.Close()
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	if string(data[:4]) != "fLaC" {
		t.Error("encoded data is not FLAC")
	}
	if r.TotalFrames() != uint64(n) {
		t.Errorf("TotalFrames = %d, want %d", r.TotalFrames(), n)
	}

	onDisk, err := os.ReadFile(r.Path())
	if err != nil {
		t.Fatalf("reading scratch file: %v", err)
	}
	if len(onDisk) != len(data) {
		t.Errorf("file size = %d, want %d", len(onDisk), len(data))
	}

	r.Remove()
	if _, err := os.Stat(r.Path()); !os.IsNotExist(err) {
		t.Error("Remove did not delete the scratch file")
	}
}

func TestFileRecorderCloseIsIdempotent(t *testing.T) {
	r, err := NewFileRecorder(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileRecorder: %v", err)
	}
	first, err := r.Close()
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	second, err := r.Close()
	if err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if len(first) != len(second) {
		t.Error("second Close returned different data")
	}
	r.Remove()
}
