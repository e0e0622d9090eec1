/*
NAME
  capture.go

DESCRIPTION
  capture.go implements the transmit side's audio source: an ALSA capture
  device negotiated to the configured sample spec, continuously read by a
  background goroutine into a pending byte buffer that Render takes from
  on the transmit engine's cadence. Negotiation follows
  device/alsa/alsa.go's open() sequence (channels, then rate, then format,
  then period/buffer size), trimmed to the fixed wire format this link
  uses instead of ALSA's general-purpose resampling/codec pipeline.
*/

// Package audio provides ALSA capture and playback adapters wiring the
// local sound card to the transmit.Renderer and sink.SinkInputAdapter
// contracts.
package audio

import (
	"fmt"
	"sync"
	"time"

	yalsa "github.com/yobert/alsa"

	"github.com/ausocean/utils/logging"

	"github.com/fieldradio/iwab/pcm"
)

// commonRates mirrors alsa.go's negotiation table: rates a card is likely
// to support, tried in ascending order so the first that negotiates
// cleanly at the wire's sample rate is used.
var commonRates = [...]int{8000, 16000, 32000, 44100, 48000, 88200, 96000, 192000}

// Capture reads PCM from an ALSA input device and hands frame-aligned
// chunks to the transmit engine on demand. It implements
// transmit.Renderer.
type Capture struct {
	log  logging.Logger
	spec pcm.Spec

	mu      sync.Mutex
	dev     *yalsa.Device
	pending []byte // bytes read but not yet claimed by Render

	readPeriod time.Duration
	stop       chan struct{}
}

// NewCapture opens the named ALSA recording device (or the first available
// one if name is empty) negotiated to spec, and starts its background
// reader. readPeriod controls how often the device is polled; it should be
// well under the transmit engine's block duration.
func NewCapture(name string, spec pcm.Spec, readPeriod time.Duration, log logging.Logger) (*Capture, error) {
	dev, err := openDevice(name, true)
	if err != nil {
		return nil, fmt.Errorf("audio: opening capture device: %w", err)
	}
	if err := negotiate(dev, spec, log); err != nil {
		dev.Close()
		return nil, fmt.Errorf("audio: negotiating capture device: %w", err)
	}

	c := &Capture{
		log:        log,
		spec:       spec,
		dev:        dev,
		readPeriod: readPeriod,
		stop:       make(chan struct{}),
	}
	go c.run()
	return c, nil
}

// Render returns up to maxBytes of frame-aligned PCM captured since the
// last call, blocking briefly if nothing is buffered yet. It implements
// transmit.Renderer.
func (c *Capture) Render(maxBytes int) ([]byte, error) {
	fs := c.spec.FrameSize()
	maxBytes -= maxBytes % fs

	for i := 0; i < 10; i++ {
		c.mu.Lock()
		chunk, rest := claimChunk(c.pending, maxBytes, fs)
		c.pending = rest
		c.mu.Unlock()
		if chunk != nil {
			return chunk, nil
		}
		time.Sleep(c.readPeriod / 10)
	}
	// Nothing captured in time; render silence rather than stall the
	// transmit cadence.
	return make([]byte, maxBytes), nil
}

// claimChunk takes up to maxBytes off the front of pending, rounded down to
// a multiple of frameSize, and returns the claimed chunk and the remaining
// bytes. It returns a nil chunk if pending has nothing to give yet.
func claimChunk(pending []byte, maxBytes, frameSize int) (chunk, rest []byte) {
	n := len(pending)
	if n == 0 {
		return nil, pending
	}
	if n > maxBytes {
		n = maxBytes
	}
	n -= n % frameSize
	if n == 0 {
		return nil, pending
	}
	return pending[:n], pending[n:]
}

// Close stops the background reader and releases the ALSA device.
func (c *Capture) Close() error {
	close(c.stop)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dev.Close()
}

func (c *Capture) run() {
	buf := c.dev.NewBufferDuration(c.readPeriod)
	for {
		select {
		case <-c.stop:
			return
		default:
		}
		if err := c.dev.Read(buf.Data); err != nil {
			c.log.Warning("capture read failed, reopening", "error", err)
			if rerr := c.reopen(); rerr != nil {
				c.log.Error("capture reopen failed", "error", rerr)
				time.Sleep(c.readPeriod)
			}
			continue
		}
		c.mu.Lock()
		c.pending = append(c.pending, buf.Data...)
		c.mu.Unlock()
	}
}

func (c *Capture) reopen() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dev.Close()
	dev, err := openDevice("", true)
	if err != nil {
		return err
	}
	if err := negotiate(dev, c.spec, c.log); err != nil {
		dev.Close()
		return err
	}
	c.dev = dev
	return nil
}

// openDevice finds the first ALSA device matching name (or the first
// record/playback-capable device if name is empty) and opens it.
func openDevice(name string, record bool) (*yalsa.Device, error) {
	cards, err := yalsa.OpenCards()
	if err != nil {
		return nil, err
	}
	defer yalsa.CloseCards(cards)

	var found *yalsa.Device
	for _, card := range cards {
		devices, err := card.Devices()
		if err != nil {
			continue
		}
		for _, d := range devices {
			if d.Type != yalsa.PCM || d.Record != record {
				continue
			}
			if name == "" || d.Title == name {
				found = d
				break
			}
		}
		if found != nil {
			break
		}
	}
	if found == nil {
		return nil, fmt.Errorf("audio: no matching ALSA device found (record=%v, name=%q)", record, name)
	}
	if err := found.Open(); err != nil {
		return nil, err
	}
	return found, nil
}

// negotiate configures dev to match spec as closely as the hardware
// allows, following alsa.go's channels -> rate -> format -> period/buffer
// negotiation order.
func negotiate(dev *yalsa.Device, spec pcm.Spec, log logging.Logger) error {
	channels, err := dev.NegotiateChannels(int(spec.Channels))
	if err != nil {
		return fmt.Errorf("channels: %w", err)
	}

	var rate int
	for _, r := range commonRates {
		if r < int(spec.Rate) || r%int(spec.Rate) != 0 {
			continue
		}
		if rate, err = dev.NegotiateRate(r); err == nil {
			break
		}
	}
	if rate == 0 {
		rate, err = dev.NegotiateRate(int(spec.Rate))
		if err != nil {
			return fmt.Errorf("rate: %w", err)
		}
	}

	var format yalsa.FormatType
	switch spec.Format {
	case pcm.S16LE:
		format = yalsa.S16_LE
	default:
		return fmt.Errorf("unsupported format %v", spec.Format)
	}
	if _, err := dev.NegotiateFormat(format); err != nil {
		return fmt.Errorf("format: %w", err)
	}

	const wantPeriodSeconds = 0.05
	bytesPerSecond := rate * channels * spec.Format.BytesPerSample()
	periodSize, err := dev.NegotiatePeriodSize(int(float64(bytesPerSecond) * wantPeriodSeconds))
	if err != nil {
		return fmt.Errorf("period size: %w", err)
	}
	if _, err := dev.NegotiateBufferSize(periodSize * 4); err != nil {
		return fmt.Errorf("buffer size: %w", err)
	}

	log.Debug("alsa device negotiated", "channels", channels, "rate", rate, "periodSize", periodSize)
	return dev.Prepare()
}
