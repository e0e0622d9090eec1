package sink

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/ausocean/utils/logging"

	"github.com/fieldradio/iwab/pcm"
	"github.com/fieldradio/iwab/receive"
	"github.com/fieldradio/iwab/transmit"
	"github.com/fieldradio/iwab/wire"
)

type fakeQueue struct {
	data     []byte
	rewound  int
	flushed  bool
	popErr   error
}

func (q *fakeQueue) Pop(requestLen int) ([]byte, error) {
	if q.popErr != nil {
		return nil, q.popErr
	}
	n := requestLen
	if n > len(q.data) {
		n = len(q.data)
	}
	out := q.data[:n]
	q.data = q.data[n:]
	return out, nil
}

func (q *fakeQueue) Rewind(n int) int {
	q.rewound += n
	return n
}

func (q *fakeQueue) FlushRead() {
	q.flushed = true
	q.data = nil
}

type fakeNotifier struct {
	lastErr   error
	lastBytes int
	calls     int
}

func (n *fakeNotifier) RecordPopResult(err error, requestedBytes int) {
	n.calls++
	n.lastErr = err
	n.lastBytes = requestedBytes
}

func TestSinkInputPullReportsToNotifier(t *testing.T) {
	q := &fakeQueue{data: []byte("hello world")}
	notifier := &fakeNotifier{}
	in := NewSinkInputAdapter(q, notifier)

	got, err := in.Pull(5)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello" {
		t.Fatalf("got %q, want %q", got, "hello")
	}
	if notifier.calls != 1 || notifier.lastBytes != 5 {
		t.Fatalf("notifier not invoked correctly: calls=%d bytes=%d", notifier.calls, notifier.lastBytes)
	}
}

func TestSinkInputCorkFlushesAndSuppressesPull(t *testing.T) {
	q := &fakeQueue{data: []byte("abcdef")}
	notifier := &fakeNotifier{}
	in := NewSinkInputAdapter(q, notifier)

	in.Cork()
	if !q.flushed {
		t.Fatal("Cork should flush the queue's read side")
	}
	got, err := in.Pull(3)
	if err != nil || got != nil {
		t.Fatalf("Pull while corked: got=%v err=%v, want nil,nil", got, err)
	}

	in.Resume()
	q.data = []byte("xyz")
	got, err = in.Pull(3)
	if err != nil || string(got) != "xyz" {
		t.Fatalf("Pull after resume = %q, %v", got, err)
	}
}

func TestConsumerAdapterPublishesStats(t *testing.T) {
	q := &fakeQueue{}
	notifier := &fakeNotifier{}
	in := NewSinkInputAdapter(q, notifier)

	var got receive.Stats
	consumer := NewConsumer(in, func(s receive.Stats) { got = s })
	want := receive.Stats{LostMsPerS: 1.5}
	consumer.PublishStats(want)
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	consumer.Cork()
	if !q.flushed {
		t.Fatal("consumer.Cork() should flush via the embedded SinkInputAdapter")
	}
}

// TestSinkInputPullPropagatesPopError checks that a hard pop error (as
// opposed to the benign underrun case) still reaches the caller, while the
// notifier is still told about it.
func TestSinkInputPullPropagatesPopError(t *testing.T) {
	q := &fakeQueue{popErr: errFakePop}
	notifier := &fakeNotifier{}
	in := NewSinkInputAdapter(q, notifier)

	got, err := in.Pull(10)
	if !errors.Is(err, errFakePop) {
		t.Fatalf("Pull error = %v, want %v", err, errFakePop)
	}
	if got != nil {
		t.Fatalf("Pull chunk = %v, want nil on error", got)
	}
	if notifier.calls != 1 || !errors.Is(notifier.lastErr, errFakePop) {
		t.Fatalf("notifier not told about pop error: calls=%d err=%v", notifier.calls, notifier.lastErr)
	}
}

var errFakePop = errors.New("fake pop error")

type fakeRenderer struct{ chunk []byte }

func (f *fakeRenderer) Render(maxBytes int) ([]byte, error) {
	if len(f.chunk) > maxBytes {
		return f.chunk[:maxBytes], nil
	}
	return f.chunk, nil
}

type fakeHost struct{ unloadReason error }

func (f *fakeHost) RequestUnload(reason error) { f.unloadReason = reason }

func TestSinkAdapterDelegatesToEngine(t *testing.T) {
	a, _ := wire.NewPipe(8)
	codec := wire.NewCodec(a, wire.Config{SampleSpec: pcm.Default})
	renderer := &fakeRenderer{chunk: bytes.Repeat([]byte{0x11}, 1400)}
	host := &fakeHost{}
	engine := transmit.NewEngine(codec, renderer, transmit.Config{SampleSpec: pcm.Default}, (*logging.TestLogger)(t), host)

	s := NewSinkAdapter(engine)
	if got := s.MaxRewind(); got != transmit.MaxRewind {
		t.Fatalf("MaxRewind() = %d, want %d", got, transmit.MaxRewind)
	}

	t0 := time.Unix(2000, 0)
	s.Open(t0)
	if _, ok, err := s.Tick(t0); err != nil || !ok {
		t.Fatalf("Tick(primary): ok=%v err=%v", ok, err)
	}
	if d := s.GetLatency(t0); d < 0 {
		t.Fatalf("GetLatency() = %v, want >= 0", d)
	}

	s.UpdateRequestedLatency(5000)
	s.Suspend()
	if _, ok, _ := s.Tick(t0.Add(time.Second)); ok {
		t.Fatal("Tick after Suspend should report ok=false")
	}
}
