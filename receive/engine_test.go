package receive

import (
	"bytes"
	"testing"
	"time"

	"github.com/ausocean/utils/logging"

	"github.com/fieldradio/iwab/jitter"
	"github.com/fieldradio/iwab/pcm"
	"github.com/fieldradio/iwab/wire"
)

// fakeConsumer records the Cork/Resume/PublishStats calls an Engine makes.
type fakeConsumer struct {
	corks, resumes int
	lastStats      Stats
}

func (f *fakeConsumer) Cork()              { f.corks++ }
func (f *fakeConsumer) Resume()            { f.resumes++ }
func (f *fakeConsumer) PublishStats(s Stats) { f.lastStats = s }

func newTestEngine(t *testing.T) (*Engine, *wire.Codec, *jitter.Queue, *fakeConsumer) {
	t.Helper()
	a, b := wire.NewPipe(8)
	groupMAC := [6]byte{0x02, 0, 0, 0, 0, 1}
	tx := wire.NewCodec(a, wire.Config{GroupMAC: groupMAC, SampleSpec: pcm.Default})
	rxCodec := wire.NewCodec(b, wire.Config{GroupMAC: groupMAC, SampleSpec: pcm.Default})

	jq := jitter.New(jitter.Config{MaxBytes: 16 * 1400})
	consumer := &fakeConsumer{}
	e := NewEngine(rxCodec, jq, Config{SampleSpec: pcm.Default}, (*logging.TestLogger)(t), consumer)
	return e, tx, jq, consumer
}

func chunk(n int, b byte) []byte {
	c := make([]byte, n)
	for i := range c {
		c[i] = b
	}
	return c
}

// TestInOrder is scenario S1: three in-order primaries land in JQ
// untouched, in order.
func TestInOrder(t *testing.T) {
	e, tx, jq, _ := newTestEngine(t)

	p1, p2, p3 := chunk(1400, 1), chunk(1400, 2), chunk(1400, 3)
	if _, err := tx.Send(p1, 0, false); err != nil {
		t.Fatal(err)
	}
	if _, err := tx.Send(p2, 7936, false); err != nil {
		t.Fatal(err)
	}
	if _, err := tx.Send(p3, 15872, false); err != nil {
		t.Fatal(err)
	}

	buf := make([]byte, wire.MaxFrame)
	now := time.Now()
	if err := e.OnReadable(buf, now); err != nil {
		t.Fatal(err)
	}

	want := append(append(append([]byte{}, p1...), p2...), p3...)
	got, err := jq.Pop(jq.Len())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, want) {
		t.Fatal("jitter queue contents don't match P1||P2||P3")
	}
	if e.state.LastSeq != 3 {
		t.Fatalf("LastSeq = %d, want 3", e.state.LastSeq)
	}
}

// TestRetryDuplicate is scenario S2: a retry with the same seq is
// suppressed, JQ contains the payload exactly once.
func TestRetryDuplicate(t *testing.T) {
	e, tx, jq, _ := newTestEngine(t)

	p1 := chunk(1400, 1)
	if _, err := tx.Send(p1, 0, false); err != nil {
		t.Fatal(err)
	}
	if _, err := tx.Send(p1, 0, true); err != nil {
		t.Fatal(err)
	}

	buf := make([]byte, wire.MaxFrame)
	if err := e.OnReadable(buf, time.Now()); err != nil {
		t.Fatal(err)
	}

	if jq.Len() != 1400 {
		t.Fatalf("jq.Len() = %d, want 1400 (pushed once)", jq.Len())
	}
	if e.state.Duplicates != 1 {
		t.Fatalf("Duplicates = %d, want 1", e.state.Duplicates)
	}
}

// TestOneFrameGap is scenario S3: a one-frame gap is filled with a copy of
// the newer payload, covering exactly the missing duration.
func TestOneFrameGap(t *testing.T) {
	e, tx, jq, _ := newTestEngine(t)

	p1 := chunk(1400, 1)
	p3 := chunk(1400, 3)

	if _, err := tx.Send(p1, 0, false); err != nil {
		t.Fatal(err)
	}
	// Synthesize seq=3 by sending an extra primary (seq=2) and discarding
	// it isn't an option here since Codec.Send always increments seq by
	// exactly 1; send a throwaway seq=2 frame that this test ignores by
	// never calling OnReadable between sends, then the real seq=3 payload.
	if _, err := tx.Send(chunk(1400, 2), 7936, false); err != nil {
		t.Fatal(err)
	}
	if _, err := tx.Send(p3, 15872, false); err != nil {
		t.Fatal(err)
	}

	buf := make([]byte, wire.MaxFrame)
	// Drain the seq=1 frame first so state.LastPlaybackTS reflects it.
	hdr, off, n, err := e.codec.Read(buf)
	if err != nil {
		t.Fatal(err)
	}
	e.ingest(hdr, buf[off:off+n], time.Now())

	// Drain and drop the seq=2 throwaway frame directly from the wire
	// without going through ingest, so RX only ever sees seq 1 then 3.
	if _, _, _, err := e.codec.Read(buf); err != nil {
		t.Fatal(err)
	}

	hdr, off, n, err = e.codec.Read(buf)
	if err != nil {
		t.Fatal(err)
	}
	e.ingest(hdr, buf[off:off+n], time.Now())

	got, err := jq.Pop(jq.Len())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1400+1400 {
		t.Fatalf("jq contents len = %d, want 2800 (filler + P3)", len(got))
	}
	filler := got[:1400]
	if !bytes.Equal(filler, p3) {
		t.Fatal("filler doesn't match P3 truncated to fit")
	}
	if !bytes.Equal(got[1400:], p3) {
		t.Fatal("trailing payload doesn't match P3")
	}
	if e.state.Gaps != 1 {
		t.Fatalf("Gaps = %d, want 1", e.state.Gaps)
	}
}

// TestRestartRecovery is scenario S4: a regressed sequence resets state and
// drops the frame; the next frame is admitted without gap fill.
func TestRestartRecovery(t *testing.T) {
	e, tx, jq, _ := newTestEngine(t)

	// Manually drive state to simulate seq=5 already being the last seen,
	// since Codec.Send only ever increments by 1.
	e.state.LastSeq = 5
	e.state.LastPlaybackTS = 100000
	e.state.Fresh = false

	q := chunk(1400, 9)
	hdrBuf := make([]byte, wire.MaxFrame)

	// Frame with seq=2 (regressed) must reset and be dropped.
	if _, err := tx.Send(q, 20000, false); err != nil {
		t.Fatal(err)
	}
	// tx's own seq counter starts at 1, so force the header's seq to 2 by
	// sending twice before reading (primary seq 1, primary seq 2).
	if _, err := tx.Send(q, 30000, false); err != nil {
		t.Fatal(err)
	}

	// Drop the seq=1 frame unconsumed by reading past it.
	if _, _, _, err := e.codec.Read(hdrBuf); err != nil {
		t.Fatal(err)
	}
	hdr, off, n, err := e.codec.Read(hdrBuf)
	if err != nil {
		t.Fatal(err)
	}
	if hdr.Seq != 2 {
		t.Fatalf("test setup: hdr.Seq = %d, want 2", hdr.Seq)
	}
	e.ingest(hdr, hdrBuf[off:off+n], time.Now())

	if e.state.LastSeq != 0 {
		t.Fatalf("LastSeq = %d after regression, want 0 (reset)", e.state.LastSeq)
	}
	if jq.Len() != 0 {
		t.Fatalf("jq.Len() = %d, want 0 (regressed frame dropped)", jq.Len())
	}

	// The next frame (seq=3) is admitted without gap fill.
	r := chunk(1400, 10)
	if _, err := tx.Send(r, 30000, false); err != nil {
		t.Fatal(err)
	}
	hdr, off, n, err = e.codec.Read(hdrBuf)
	if err != nil {
		t.Fatal(err)
	}
	e.ingest(hdr, hdrBuf[off:off+n], time.Now())

	if jq.Len() != 1400 {
		t.Fatalf("jq.Len() = %d, want 1400 (no gap fill after restart)", jq.Len())
	}
}

// TestUnderrunCork is scenario S6: cumulative underrun past the threshold
// corks the consumer.
func TestUnderrunCork(t *testing.T) {
	e, _, _, consumer := newTestEngine(t)
	e.cfg.UnderrunCorkThreshold = 500 * time.Millisecond

	// Each call accounts for ~7936us of underrun (1400 bytes at the
	// default sample spec); 80 calls exceeds the 500ms threshold.
	for i := 0; i < 80; i++ {
		e.RecordPopResult(jitter.ErrUnderrun, 1400)
	}
	if consumer.corks == 0 {
		t.Fatal("expected at least one Cork() after sustained underrun")
	}
}
