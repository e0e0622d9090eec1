/*
NAME
  variables.go

DESCRIPTION
  variables.go lists the recognised configuration variable names, their
  defaults, and the Update/Validate function pair that parses and checks
  each one. Modelled on revid/config/variables.go's table-of-structs
  pattern.
*/

package config

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/ausocean/utils/logging"

	"github.com/fieldradio/iwab/pcm"
)

var errInvalidMAC = errors.New("config: group_mac must be 6 colon-separated hex octets")

// defaultSampleSpec is the wire default sample spec, used to fill in any
// field (rate, channels) left unset by the rate/channels variables below.
var defaultSampleSpec = pcm.Default

// Config map keys: the option names recognised on the CLI or in a config
// file.
const (
	KeySink                  = "sink"
	KeyIface                 = "iface"
	KeySinkName              = "sink_name"
	KeySourceName            = "source_name"
	KeyFormat                = "format"
	KeyRate                  = "rate"
	KeyChannels              = "channels"
	KeyChannelMap            = "channel_map"
	KeyGroupMAC              = "group_mac"
	KeyMCSIndex              = "mcs_index"
	KeyIdleTimeout           = "idle_timeout"
	KeyUnderrunCorkThreshold = "underrun_cork_threshold"
	KeyLatencyUpdateInterval = "latency_update_interval"
	KeyLogging               = "logging"
	KeySuppress              = "suppress"
)

// Defaults for the fields above.
const (
	defaultIface                 = "mon0"
	defaultSinkName              = "iwabsink"
	defaultMCSIndex              = 3
	defaultIdleTimeout           = 20 * time.Second
	defaultUnderrunCorkThreshold = 500 * time.Millisecond
	defaultLatencyUpdateInterval = 5 * time.Second
	defaultVerbosity             = logging.Error
)

// Variables describes the recognised configuration variables: their name,
// a human-readable type, a function that parses a string value into the
// Config, and a function that validates/defaults the resulting field.
var Variables = []struct {
	Name     string
	Type     string
	Update   func(*Config, string)
	Validate func(*Config)
}{
	{
		Name:   KeySink,
		Type:   "string",
		Update: func(c *Config, v string) { c.Sink = v },
	},
	{
		Name:   KeyIface,
		Type:   "string",
		Update: func(c *Config, v string) { c.Iface = v },
		Validate: func(c *Config) {
			if c.Iface == "" {
				c.LogInvalidField(KeyIface, defaultIface)
				c.Iface = defaultIface
			}
		},
	},
	{
		Name:   KeySinkName,
		Type:   "string",
		Update: func(c *Config, v string) { c.SinkName = v },
		Validate: func(c *Config) {
			if c.SinkName == "" {
				c.LogInvalidField(KeySinkName, defaultSinkName)
				c.SinkName = defaultSinkName
			}
		},
	},
	{
		Name:   KeySourceName,
		Type:   "string",
		Update: func(c *Config, v string) { c.SourceName = v },
	},
	{
		Name: KeyFormat,
		Type: "enum:s16le",
		Update: func(c *Config, v string) {
			switch strings.ToLower(v) {
			case "s16le":
				c.SampleSpec.Format = pcm.S16LE
			default:
				c.Logger.Warning("invalid format param", "value", v)
			}
		},
	},
	{
		Name: KeyRate,
		Type: "uint",
		Update: func(c *Config, v string) {
			c.SampleSpec.Rate = uint32(parseUint(KeyRate, v, c))
		},
		Validate: func(c *Config) {
			if c.SampleSpec.Rate == 0 {
				c.LogInvalidField(KeyRate, defaultSampleSpec.Rate)
				c.SampleSpec.Rate = defaultSampleSpec.Rate
			}
		},
	},
	{
		Name: KeyChannels,
		Type: "uint",
		Update: func(c *Config, v string) {
			c.SampleSpec.Channels = uint8(parseUint(KeyChannels, v, c))
		},
		Validate: func(c *Config) {
			if c.SampleSpec.Channels == 0 {
				c.LogInvalidField(KeyChannels, defaultSampleSpec.Channels)
				c.SampleSpec.Channels = defaultSampleSpec.Channels
			}
			if c.SampleSpec.Format == 0 {
				c.SampleSpec.Format = defaultSampleSpec.Format
			}
		},
	},
	{
		Name:   KeyChannelMap,
		Type:   "string",
		Update: func(c *Config, v string) { c.ChannelMap = v },
	},
	{
		Name: KeyGroupMAC,
		Type: "string",
		Update: func(c *Config, v string) {
			mac, err := parseMAC(v)
			if err != nil {
				c.Logger.Warning("invalid group_mac param", "value", v, "error", err)
				return
			}
			c.GroupMAC = mac
		},
	},
	{
		Name:   KeyMCSIndex,
		Type:   "uint",
		Update: func(c *Config, v string) { c.MCSIndex = uint8(parseUint(KeyMCSIndex, v, c)) },
		Validate: func(c *Config) {
			if c.MCSIndex == 0 || c.MCSIndex > 7 {
				c.LogInvalidField(KeyMCSIndex, uint8(defaultMCSIndex))
				c.MCSIndex = defaultMCSIndex
			}
		},
	},
	{
		Name: KeyIdleTimeout,
		Type: "uint",
		Update: func(c *Config, v string) {
			c.IdleTimeout = time.Duration(parseUint(KeyIdleTimeout, v, c)) * time.Second
		},
		Validate: func(c *Config) {
			if c.IdleTimeout <= 0 {
				c.LogInvalidField(KeyIdleTimeout, defaultIdleTimeout)
				c.IdleTimeout = defaultIdleTimeout
			}
		},
	},
	{
		Name: KeyUnderrunCorkThreshold,
		Type: "uint",
		Update: func(c *Config, v string) {
			c.UnderrunCorkThreshold = time.Duration(parseUint(KeyUnderrunCorkThreshold, v, c)) * time.Millisecond
		},
		Validate: func(c *Config) {
			if c.UnderrunCorkThreshold <= 0 {
				c.LogInvalidField(KeyUnderrunCorkThreshold, defaultUnderrunCorkThreshold)
				c.UnderrunCorkThreshold = defaultUnderrunCorkThreshold
			}
		},
	},
	{
		Name: KeyLatencyUpdateInterval,
		Type: "uint",
		Update: func(c *Config, v string) {
			c.LatencyUpdateInterval = time.Duration(parseUint(KeyLatencyUpdateInterval, v, c)) * time.Second
		},
		Validate: func(c *Config) {
			if c.LatencyUpdateInterval <= 0 {
				c.LogInvalidField(KeyLatencyUpdateInterval, defaultLatencyUpdateInterval)
				c.LatencyUpdateInterval = defaultLatencyUpdateInterval
			}
		},
	},
	{
		Name: KeyLogging,
		Type: "enum:Debug,Info,Warning,Error,Fatal",
		Update: func(c *Config, v string) {
			switch v {
			case "Debug":
				c.LogLevel = logging.Debug
			case "Info":
				c.LogLevel = logging.Info
			case "Warning":
				c.LogLevel = logging.Warning
			case "Error":
				c.LogLevel = logging.Error
			case "Fatal":
				c.LogLevel = logging.Fatal
			default:
				c.Logger.Warning("invalid logging param", "value", v)
			}
		},
		Validate: func(c *Config) {
			switch c.LogLevel {
			case logging.Debug, logging.Info, logging.Warning, logging.Error, logging.Fatal:
			default:
				c.LogInvalidField("LogLevel", defaultVerbosity)
				c.LogLevel = defaultVerbosity
			}
		},
	},
	{
		Name:   KeySuppress,
		Type:   "bool",
		Update: func(c *Config, v string) { c.Suppress = parseBool(KeySuppress, v, c) },
	},
}

func parseUint(n, v string, c *Config) uint {
	u, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		c.Logger.Warning("expected unsigned int param", "name", n, "value", v)
	}
	return uint(u)
}

func parseBool(n, v string, c *Config) bool {
	switch strings.ToLower(v) {
	case "true":
		return true
	case "false":
		return false
	default:
		c.Logger.Warning("expected bool param", "name", n, "value", v)
		return false
	}
}

func parseMAC(v string) ([6]byte, error) {
	var mac [6]byte
	parts := strings.Split(v, ":")
	if len(parts) != 6 {
		return mac, errInvalidMAC
	}
	for i, p := range parts {
		b, err := strconv.ParseUint(p, 16, 8)
		if err != nil {
			return mac, errInvalidMAC
		}
		mac[i] = byte(b)
	}
	return mac, nil
}
