package wire

import (
	"bytes"
	"testing"

	"github.com/fieldradio/iwab/pcm"
)

func testConfig() Config {
	return Config{
		GroupMAC:   [6]byte{0x02, 0x00, 0x00, 0x00, 0x00, 0x01},
		MCSIndex:   3,
		SampleSpec: pcm.Default,
	}
}

// TestRoundTrip checks that payload bytes and (seq, timestamp, retry)
// match exactly across a loopback send/receive.
func TestRoundTrip(t *testing.T) {
	a, b := NewPipe(8)
	tx := NewCodec(a, testConfig())
	rx := NewCodec(b, testConfig())

	payloads := [][]byte{
		bytes.Repeat([]byte{0x11}, 1400),
		bytes.Repeat([]byte{0x22}, 1400),
		bytes.Repeat([]byte{0x33}, 1400),
	}
	timestamps := []uint64{0, 7936, 15872}

	for i, p := range payloads {
		if _, err := tx.Send(p, timestamps[i], false); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}

	buf := make([]byte, MaxFrame)
	for i, want := range payloads {
		hdr, off, n, err := rx.Read(buf)
		if err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		got := buf[off : off+n]
		if !bytes.Equal(got, want) {
			t.Fatalf("read %d: payload mismatch", i)
		}
		if hdr.Seq != uint32(i+1) {
			t.Errorf("read %d: seq = %d, want %d", i, hdr.Seq, i+1)
		}
		if hdr.Timestamp != timestamps[i] {
			t.Errorf("read %d: timestamp = %d, want %d", i, hdr.Timestamp, timestamps[i])
		}
		if hdr.Retry != 0 {
			t.Errorf("read %d: retry = %d, want 0", i, hdr.Retry)
		}
	}
}

// TestMonotonicSeq checks that Seq increments only on primary sends and
// that a retry reuses the primary's sequence number.
func TestMonotonicSeq(t *testing.T) {
	a, b := NewPipe(8)
	tx := NewCodec(a, testConfig())
	rx := NewCodec(b, testConfig())

	payload := bytes.Repeat([]byte{0x01}, 1400)

	if _, err := tx.Send(payload, 0, false); err != nil {
		t.Fatal(err)
	}
	if _, err := tx.Send(payload, 0, true); err != nil {
		t.Fatal(err)
	}
	if _, err := tx.Send(payload, 7936, false); err != nil {
		t.Fatal(err)
	}

	buf := make([]byte, MaxFrame)
	wantSeqs := []uint32{1, 1, 2}
	wantRetry := []uint8{0, 1, 0}
	for i := range wantSeqs {
		hdr, _, _, err := rx.Read(buf)
		if err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		if hdr.Seq != wantSeqs[i] {
			t.Errorf("read %d: seq = %d, want %d", i, hdr.Seq, wantSeqs[i])
		}
		if hdr.Retry != wantRetry[i] {
			t.Errorf("read %d: retry = %d, want %d", i, hdr.Retry, wantRetry[i])
		}
	}
}

func TestAddressFilterRejectsForeignFrames(t *testing.T) {
	a, b := NewPipe(8)
	cfgA := testConfig()
	cfgB := testConfig()
	cfgB.GroupMAC = [6]byte{0x02, 0xff, 0xff, 0xff, 0xff, 0xff}

	tx := NewCodec(a, cfgA)
	rx := NewCodec(b, cfgB)

	payload := bytes.Repeat([]byte{0x01}, 1400)
	if _, err := tx.Send(payload, 0, false); err != nil {
		t.Fatal(err)
	}

	buf := make([]byte, MaxFrame)
	_, _, _, err := rx.Read(buf)
	if err == nil {
		t.Fatal("expected rejection due to address filter mismatch")
	}
	var fe *FrameError
	if !asFrameError(err, &fe) {
		t.Fatalf("expected *FrameError, got %T: %v", err, err)
	}
}

func asFrameError(err error, target **FrameError) bool {
	fe, ok := err.(*FrameError)
	if !ok {
		return false
	}
	*target = fe
	return true
}

func TestRejectsRuntPayload(t *testing.T) {
	a, b := NewPipe(8)
	tx := NewCodec(a, testConfig())
	rx := NewCodec(b, testConfig())

	// A payload shorter than one frame-aligned sample (4 bytes for
	// S16LE stereo) must be rejected by Read.
	if _, err := tx.Send([]byte{0x01}, 0, false); err != nil {
		t.Fatal(err)
	}

	buf := make([]byte, MaxFrame)
	_, _, _, err := rx.Read(buf)
	if err == nil {
		t.Fatal("expected rejection of runt payload")
	}
}
