/*
NAME
  indicator.go

DESCRIPTION
  indicator.go drives an optional GPIO LED to give a field-visible signal
  of link health: solid while frames are flowing, blinking on an idle
  timeout or cork, off when the daemon isn't running. This has no
  counterpart in the wire/link design itself; it's a convenience the host
  daemons wire up the same way cmd/speaker wires its I2C amplifier, via
  github.com/kidoman/embd.
*/

// Package indicator drives an optional GPIO LED reflecting link state.
package indicator

import (
	"sync"
	"time"

	"github.com/kidoman/embd"

	"github.com/ausocean/utils/logging"
)

// State is the link health the LED reflects.
type State int

const (
	// StateOff means the daemon has not yet opened a link.
	StateOff State = iota
	// StateHealthy means frames are flowing normally.
	StateHealthy
	// StateDegraded means the link is corked (idle timeout or sustained
	// underrun) and the LED should blink.
	StateDegraded
)

const blinkPeriod = 500 * time.Millisecond

// LED drives a single GPIO pin to reflect a State set from another
// goroutine. A nil pin name disables it; Set and Close become no-ops so
// callers don't need to branch on whether hardware is present.
type LED struct {
	log logging.Logger
	pin embd.DigitalPin

	mu    sync.Mutex
	state State

	stop chan struct{}
	done chan struct{}
}

// New opens pinName as a GPIO output and starts the blink goroutine. If
// pinName is empty, New returns a disabled LED whose Set/Close are no-ops.
func New(pinName string, log logging.Logger) (*LED, error) {
	if pinName == "" {
		return &LED{log: log}, nil
	}

	if err := embd.InitGPIO(); err != nil {
		return nil, err
	}
	pin, err := embd.NewDigitalPin(pinName)
	if err != nil {
		return nil, err
	}
	if err := pin.SetDirection(embd.Out); err != nil {
		pin.Close()
		return nil, err
	}

	l := &LED{
		log:  log,
		pin:  pin,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go l.run()
	return l, nil
}

// Set updates the state the LED reflects. Safe to call from any goroutine.
func (l *LED) Set(s State) {
	l.mu.Lock()
	l.state = s
	l.mu.Unlock()
}

// Close stops the blink goroutine and releases the GPIO pin, if one was
// opened.
func (l *LED) Close() error {
	if l.pin == nil {
		return nil
	}
	close(l.stop)
	<-l.done
	return l.pin.Close()
}

func (l *LED) run() {
	defer close(l.done)
	ticker := time.NewTicker(blinkPeriod)
	defer ticker.Stop()

	on := false
	for {
		select {
		case <-l.stop:
			l.write(false)
			return
		case <-ticker.C:
			l.mu.Lock()
			state := l.state
			l.mu.Unlock()

			switch state {
			case StateOff:
				on = false
			case StateHealthy:
				on = true
			case StateDegraded:
				on = !on
			}
			l.write(on)
		}
	}
}

func (l *LED) write(on bool) {
	v := embd.Low
	if on {
		v = embd.High
	}
	if err := l.pin.Write(v); err != nil {
		l.log.Warning("indicator: GPIO write failed", "error", err)
	}
}
