package audio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/fieldradio/iwab/pcm"
)

// writeTestWAV writes a tiny stereo S16LE WAV fixture matching spec.
func writeTestWAV(t *testing.T, path string, spec pcm.Spec, frames int) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating fixture: %v", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, int(spec.Rate), 16, int(spec.Channels), 1)
	data := make([]int, frames*int(spec.Channels))
	for i := range data {
		data[i] = i % 100
	}
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: int(spec.Channels), SampleRate: int(spec.Rate)},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("closing fixture encoder: %v", err)
	}
}

func TestFileSourceRendersAndLoops(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fixture.wav")
	writeTestWAV(t, path, pcm.Default, 20)

	src, err := OpenFileSource(path, pcm.Default)
	if err != nil {
		t.Fatalf("OpenFileSource: %v", err)
	}

	fs := pcm.Default.FrameSize()
	total := 20 * fs
	chunk, err := src.Render(total)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if len(chunk) != total {
		t.Fatalf("Render len = %d, want %d", len(chunk), total)
	}

	// Rendering past the fixture's length should loop back to the start
	// rather than erroring or starving.
	chunk2, err := src.Render(total)
	if err != nil {
		t.Fatalf("Render (looped): %v", err)
	}
	if len(chunk2) != total {
		t.Fatalf("looped Render len = %d, want %d", len(chunk2), total)
	}
}

func TestOpenFileSourceRejectsUnknownExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fixture.raw")
	if err := os.WriteFile(path, []byte{0, 1, 2, 3}, 0644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	if _, err := OpenFileSource(path, pcm.Default); err == nil {
		t.Fatal("OpenFileSource with unknown extension: want error, got nil")
	}
}
