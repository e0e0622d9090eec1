package sink

import (
	"github.com/fieldradio/iwab/receive"
)

// PopNotifier is implemented by the receive engine and notified after
// every jitter-queue pull, so it can track cumulative underrun.
type PopNotifier interface {
	RecordPopResult(err error, requestedBytes int)
}

// SinkInputAdapter exposes a jitter queue and its owning receive.Engine as
// a playback input: the host pulls bytes, and corking is driven by
// receive.Engine through the Consumer contract it was built with.
type SinkInputAdapter struct {
	jq       jqPuller
	notifier PopNotifier
	corked   bool
}

// NewSinkInputAdapter wraps jq for host playback, reporting pop results to
// notifier (normally the receive.Engine that owns jq).
func NewSinkInputAdapter(jq jqPuller, notifier PopNotifier) *SinkInputAdapter {
	return &SinkInputAdapter{jq: jq, notifier: notifier}
}

// Pull returns up to requestLen bytes for playback. If corked, it returns
// nil without touching the queue.
func (s *SinkInputAdapter) Pull(requestLen int) ([]byte, error) {
	if s.corked {
		return nil, nil
	}
	chunk, err := s.jq.Pop(requestLen)
	s.notifier.RecordPopResult(err, requestLen)
	return chunk, err
}

// Rewind forwards a host rewind request to the jitter queue, returning the
// number of bytes actually rewound.
func (s *SinkInputAdapter) Rewind(n int) int {
	return s.jq.Rewind(n)
}

// Cork suspends playback pulls. Implements receive.Consumer's Cork half.
func (s *SinkInputAdapter) Cork() {
	s.corked = true
	s.jq.FlushRead()
}

// Resume un-suspends playback. Implements receive.Consumer's Resume half.
func (s *SinkInputAdapter) Resume() {
	s.corked = false
}

var _ receive.Consumer = (*consumerAdapter)(nil)

// consumerAdapter adapts a SinkInputAdapter plus a stats sink into the
// full receive.Consumer contract, keeping stats publication decoupled from
// the pull/cork surface above.
type consumerAdapter struct {
	*SinkInputAdapter
	stats func(receive.Stats)
}

// NewConsumer returns a receive.Consumer backed by input, publishing stats
// windows to onStats.
func NewConsumer(input *SinkInputAdapter, onStats func(receive.Stats)) receive.Consumer {
	return &consumerAdapter{SinkInputAdapter: input, stats: onStats}
}

func (c *consumerAdapter) PublishStats(s receive.Stats) {
	if c.stats != nil {
		c.stats(s)
	}
}
