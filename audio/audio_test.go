package audio

import (
	"bytes"
	"os"
	"testing"
	"time"

	"github.com/ausocean/utils/logging"

	"github.com/fieldradio/iwab/pcm"
)

func TestClaimChunk(t *testing.T) {
	fs := pcm.Default.FrameSize() // 4 bytes/frame at S16LE stereo

	pending := bytes.Repeat([]byte{1}, 10*fs+2) // a couple of unaligned trailing bytes
	chunk, rest := claimChunk(pending, 4*fs, fs)
	if len(chunk) != 4*fs {
		t.Fatalf("chunk len = %d, want %d", len(chunk), 4*fs)
	}
	if len(rest) != len(pending)-4*fs {
		t.Fatalf("rest len = %d, want %d", len(rest), len(pending)-4*fs)
	}

	// Claiming more than available returns everything aligned, leaving the
	// unaligned remainder.
	chunk, rest = claimChunk(rest, 100*fs, fs)
	if len(chunk) != 6*fs {
		t.Fatalf("chunk len = %d, want %d", len(chunk), 6*fs)
	}
	if len(rest) != 2 {
		t.Fatalf("rest len = %d, want 2 leftover unaligned bytes", len(rest))
	}

	// Nothing alignable yet.
	chunk, rest = claimChunk(rest, 100*fs, fs)
	if chunk != nil {
		t.Fatalf("chunk = %v, want nil when nothing is frame-aligned", chunk)
	}
	if len(rest) != 2 {
		t.Fatalf("rest should be untouched, got %d bytes", len(rest))
	}
}

func TestClaimChunkEmpty(t *testing.T) {
	chunk, rest := claimChunk(nil, 100, 4)
	if chunk != nil || rest != nil {
		t.Fatalf("claimChunk(nil) = %v, %v, want nil, nil", chunk, rest)
	}
}

// TestCaptureOpensOrSkips exercises NewCapture against whatever ALSA
// hardware the test environment provides; it skips rather than fails when
// none is available, matching device/alsa's own hardware-dependent tests.
func TestCaptureOpensOrSkips(t *testing.T) {
	l := logging.New(logging.Debug, os.Stderr, true)
	c, err := NewCapture("", pcm.Default, 50*time.Millisecond, l)
	if err != nil {
		t.Skip(err)
	}
	defer c.Close()

	chunk, err := c.Render(1400)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if len(chunk) == 0 || len(chunk)%pcm.Default.FrameSize() != 0 {
		t.Fatalf("Render returned %d bytes, want a positive multiple of frame size", len(chunk))
	}
}

type fakePuller struct {
	chunk []byte
	err   error
}

func (f *fakePuller) Pull(requestLen int) ([]byte, error) { return f.chunk, f.err }

// TestPlaybackOpensOrSkips exercises NewPlayback the same way.
func TestPlaybackOpensOrSkips(t *testing.T) {
	l := logging.New(logging.Debug, os.Stderr, true)
	src := &fakePuller{chunk: bytes.Repeat([]byte{2}, 1400)}
	p, err := NewPlayback("", pcm.Default, src, 20*time.Millisecond, l)
	if err != nil {
		t.Skip(err)
	}
	time.Sleep(60 * time.Millisecond)
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
