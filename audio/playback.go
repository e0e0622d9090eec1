/*
NAME
  playback.go

DESCRIPTION
  playback.go implements the receive side's audio sink: an ALSA playback
  device negotiated to the configured sample spec, fed on its own goroutine
  by pulling from a Puller (normally a sink.SinkInputAdapter) at a fixed
  cadence and writing whatever comes back, including nil chunks on
  underrun/cork which are written as silence to keep the device's buffer
  fed.
*/

package audio

import (
	"fmt"
	"time"

	yalsa "github.com/yobert/alsa"

	"github.com/ausocean/utils/logging"

	"github.com/fieldradio/iwab/pcm"
)

// Puller is the subset of sink.SinkInputAdapter playback needs, named here
// so tests can substitute a fake without importing the sink package.
type Puller interface {
	Pull(requestLen int) ([]byte, error)
}

// Playback writes PCM pulled from a Puller to an ALSA output device.
type Playback struct {
	log  logging.Logger
	spec pcm.Spec
	dev  *yalsa.Device
	src  Puller

	period time.Duration
	stop   chan struct{}
	done   chan struct{}
}

// NewPlayback opens the named ALSA playback device (or the first available
// one if name is empty) negotiated to spec, and starts pulling from src
// every period.
func NewPlayback(name string, spec pcm.Spec, src Puller, period time.Duration, log logging.Logger) (*Playback, error) {
	dev, err := openDevice(name, false)
	if err != nil {
		return nil, fmt.Errorf("audio: opening playback device: %w", err)
	}
	if err := negotiate(dev, spec, log); err != nil {
		dev.Close()
		return nil, fmt.Errorf("audio: negotiating playback device: %w", err)
	}

	p := &Playback{
		log:    log,
		spec:   spec,
		dev:    dev,
		src:    src,
		period: period,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go p.run()
	return p, nil
}

// Close stops pulling and releases the ALSA device, waiting for the
// background writer to exit first.
func (p *Playback) Close() error {
	close(p.stop)
	<-p.done
	return p.dev.Close()
}

func (p *Playback) run() {
	defer close(p.done)
	ticker := time.NewTicker(p.period)
	defer ticker.Stop()

	requestLen := p.spec.UsecToBytes(p.period.Microseconds())
	silence := make([]byte, requestLen)

	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
		}

		chunk, err := p.src.Pull(requestLen)
		if err != nil {
			p.log.Debug("playback pull error, writing silence", "error", err)
			chunk = nil
		}
		if len(chunk) == 0 {
			chunk = silence
		}
		if err := p.dev.Write(chunk); err != nil {
			p.log.Warning("playback write failed", "error", err)
		}
	}
}
