/*
DESCRIPTION
  config_test.go tests the Config struct's Validate and Update methods.
*/

package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/fieldradio/iwab/pcm"
)

type dumbLogger struct{}

func (dl *dumbLogger) Log(l int8, m string, a ...interface{})  {}
func (dl *dumbLogger) SetLevel(l int8)                         {}
func (dl *dumbLogger) Debug(msg string, args ...interface{})   {}
func (dl *dumbLogger) Info(msg string, args ...interface{})    {}
func (dl *dumbLogger) Warning(msg string, args ...interface{}) {}
func (dl *dumbLogger) Error(msg string, args ...interface{})   {}
func (dl *dumbLogger) Fatal(msg string, args ...interface{})   {}

func TestValidateDefaults(t *testing.T) {
	dl := &dumbLogger{}
	got := Config{Logger: dl}
	if err := got.Validate(); err != nil {
		t.Fatalf("did not expect error: %v", err)
	}

	want := Config{
		Logger:                dl,
		Iface:                 defaultIface,
		SinkName:              defaultSinkName,
		SampleSpec:            pcm.Default,
		MCSIndex:              defaultMCSIndex,
		IdleTimeout:           defaultIdleTimeout,
		UnderrunCorkThreshold: defaultUnderrunCorkThreshold,
		LatencyUpdateInterval: defaultLatencyUpdateInterval,
		LogLevel:              defaultVerbosity,
	}

	if !cmp.Equal(got, want) {
		t.Errorf("configs not equal\nwant: %+v\ngot: %+v", want, got)
	}
}

func TestValidateMissingLogger(t *testing.T) {
	var c Config
	if err := c.Validate(); err == nil {
		t.Fatal("expected error when Logger is nil")
	}
}

func TestUpdate(t *testing.T) {
	dl := &dumbLogger{}
	c := Config{Logger: dl}
	c.Update(map[string]string{
		KeyIface:                 "wlan1mon",
		KeySinkName:              "customsink",
		KeyRate:                  "48000",
		KeyChannels:              "1",
		KeyFormat:                "s16le",
		KeyGroupMAC:              "02:00:00:00:00:02",
		KeyMCSIndex:              "5",
		KeyIdleTimeout:           "30",
		KeyUnderrunCorkThreshold: "750",
		KeyLatencyUpdateInterval: "10",
		KeyLogging:               "Debug",
		KeySuppress:              "true",
	})

	if err := c.Validate(); err != nil {
		t.Fatalf("did not expect error: %v", err)
	}

	want := Config{
		Logger:                dl,
		Iface:                 "wlan1mon",
		SinkName:              "customsink",
		SampleSpec:            pcm.Spec{Format: pcm.S16LE, Rate: 48000, Channels: 1},
		GroupMAC:              [6]byte{0x02, 0, 0, 0, 0, 2},
		MCSIndex:              5,
		IdleTimeout:           30 * time.Second,
		UnderrunCorkThreshold: 750 * time.Millisecond,
		LatencyUpdateInterval: 10 * time.Second,
		Suppress:              true,
	}

	// LogLevel's exact constant value depends on the logging package; just
	// check it was set to something other than the zero-value default.
	if c.LogLevel == defaultVerbosity {
		t.Errorf("LogLevel not updated from default")
	}
	want.LogLevel = c.LogLevel

	if !cmp.Equal(c, want) {
		t.Errorf("configs not equal\nwant: %+v\ngot: %+v", want, c)
	}
}
