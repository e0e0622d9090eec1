/*
NAME
  config.go

DESCRIPTION
  config.go defines the Config struct shared by the send and receive
  daemons: wireless interface selection, sample spec, module names, and the
  supplemented timing knobs (MCS index, idle timeout, latency update
  interval). A Config is built from flag/file values via Update and checked
  with Validate, following the same enum-of-consts plus flat struct pattern
  as revid's config package.
*/

// Package config holds the iwab daemons' configuration surface: wireless
// interface, sample spec, module names, and link timing knobs.
package config

import (
	"time"

	"github.com/ausocean/utils/logging"
	"github.com/pkg/errors"

	"github.com/fieldradio/iwab/pcm"
)

// Config provides the parameters relevant to one iwab daemon instance. Zero
// values are defaulted and logged by Validate; see Variables for the
// per-field defaulting/validation rules.
type Config struct {
	// Sink is the name of an existing audio sink iwab-send attaches to as
	// a producer.
	Sink string

	// Iface is the wireless monitor-mode interface to open.
	Iface string

	// SinkName is the name iwab-send advertises for the module it loads.
	SinkName string

	// SourceName is the name iwab-recv advertises for the module it loads.
	SourceName string

	// SampleSpec is the agreed wire audio format; sender and receiver must
	// use the same value.
	SampleSpec pcm.Spec

	// ChannelMap names the speaker position of each channel, e.g.
	// "front-left,front-right". Informational only; not carried on the
	// wire.
	ChannelMap string

	// GroupMAC is the destination multicast address both ends filter on.
	GroupMAC [6]byte

	// MCSIndex selects the PHY rate/coding the sender stamps into the
	// radiotap header.
	MCSIndex uint8

	// IdleTimeout is how long the receive engine waits without a frame
	// before corking its consumer.
	IdleTimeout time.Duration

	// UnderrunCorkThreshold is the cumulative underrun duration that
	// corks the receive consumer.
	UnderrunCorkThreshold time.Duration

	// LatencyUpdateInterval bounds how often the transmit engine
	// recomputes its block size from a host-requested latency.
	LatencyUpdateInterval time.Duration

	// Logger receives all daemon log output. Must be set before Validate
	// is called.
	Logger logging.Logger

	// LogLevel is the logging verbosity; see logging.Debug..logging.Fatal.
	LogLevel int8

	// Suppress holds the logger's stderr-suppression state.
	Suppress bool
}

// Validate checks Config fields, defaulting and logging any that are unset
// or out of range. Logger must be set first; every other field is
// recoverable and never causes an error.
func (c *Config) Validate() error {
	if c.Logger == nil {
		return errors.New("config: Logger must be set before Validate")
	}
	for _, v := range Variables {
		if v.Validate != nil {
			v.Validate(c)
		}
	}
	if err := c.SampleSpec.Validate(); err != nil {
		return errors.Wrap(err, "config: invalid sample spec")
	}
	return nil
}

// Update takes a map of configuration variable names to string values,
// parses each according to its declared type, and sets the matching
// Config field.
func (c *Config) Update(vars map[string]string) {
	for _, v := range Variables {
		if s, ok := vars[v.Name]; ok && v.Update != nil {
			v.Update(c, s)
		}
	}
}

// LogInvalidField logs that a field was unset or invalid and has been
// defaulted to def.
func (c *Config) LogInvalidField(name string, def interface{}) {
	c.Logger.Info(name+" bad or unset, defaulting", name, def)
}
