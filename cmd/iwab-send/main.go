/*
NAME
  iwab-send - broadcasts locally captured audio over a raw 802.11 link.

DESCRIPTION
  iwab-send opens a monitor-mode wireless interface, captures PCM from an
  ALSA recording device, and paces it onto the link via the transmit
  engine, retrying each primary frame exactly once. Configuration comes
  from flags and an optional hot-reloaded config file; link health is
  reported on an optional GPIO LED.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/
package main

import (
	"flag"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/daemon"
	"github.com/ausocean/utils/logging"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"

	"github.com/fieldradio/iwab/audio"
	"github.com/fieldradio/iwab/config"
	"github.com/fieldradio/iwab/indicator"
	"github.com/fieldradio/iwab/sink"
	"github.com/fieldradio/iwab/transmit"
	"github.com/fieldradio/iwab/wire"
)

const (
	logPath      = "/var/log/iwab/iwab-send.log"
	logMaxSize   = 50 // MB
	logMaxBackup = 5
	logMaxAge    = 28 // days
)

func main() {
	iface := flag.String("iface", "", "wireless monitor-mode interface (default mon0)")
	sourceDevice := flag.String("source", "", "ALSA recording device name (default: first available)")
	configFile := flag.String("config", "", "path to a hot-reloaded config file")
	ledPin := flag.String("led", "", "GPIO pin name for a link-health indicator")
	logVerbosity := flag.Int("verbosity", int(logging.Info), "log verbosity (0=Debug..4=Fatal)")
	flag.Parse()

	fileLog := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    logMaxSize,
		MaxBackups: logMaxBackup,
		MaxAge:     logMaxAge,
	}
	log := logging.New(int8(*logVerbosity), io.MultiWriter(fileLog, os.Stderr), false)

	cfg := config.Config{Logger: log, Iface: *iface}
	if *configFile != "" {
		vars, err := config.ParseFile(*configFile)
		if err != nil {
			log.Fatal("could not read config file", "path", *configFile, "error", err)
		}
		cfg.Update(vars)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", "error", err)
	}

	led, err := indicator.New(*ledPin, log)
	if err != nil {
		log.Fatal("could not open indicator LED", "error", err)
	}
	defer led.Close()

	codec, err := wire.Open(cfg.Iface, wire.Config{
		GroupMAC:   cfg.GroupMAC,
		MCSIndex:   cfg.MCSIndex,
		SampleSpec: cfg.SampleSpec,
	})
	if err != nil {
		log.Fatal("could not open wireless interface", "iface", cfg.Iface, "error", err)
	}
	defer codec.Close()

	const capturePeriod = 20 * time.Millisecond
	cap, err := audio.NewCapture(*sourceDevice, cfg.SampleSpec, capturePeriod, log)
	if err != nil {
		log.Fatal("could not open capture device", "error", err)
	}
	defer cap.Close()

	host := &unloadHost{log: log}

	engine := transmit.NewEngine(codec, cap, transmit.Config{
		SampleSpec:            cfg.SampleSpec,
		LatencyUpdateInterval: cfg.LatencyUpdateInterval,
	}, log, host)

	// sinkAdapter exposes the engine as the pull-mode render source a host
	// audio framework would attach to; iwab-send is its own host, driving
	// Tick on a wall-clock timer the way a real mixer's callback would.
	sinkAdapter := sink.NewSinkAdapter(engine)
	sinkAdapter.Open(time.Now())
	led.Set(indicator.StateHealthy)

	if *configFile != "" {
		stop := make(chan struct{})
		defer close(stop)
		go config.WatchFile(*configFile, func(vars map[string]string) {
			cfg.Update(vars)
			sinkAdapter.UpdateRequestedLatency(cfg.LatencyUpdateInterval.Microseconds())
		}, stop)
	}

	if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		log.Debug("sd_notify failed (not running under systemd?)", "error", err)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	timer := time.NewTimer(0)
	defer timer.Stop()
loop:
	for {
		select {
		case <-sig:
			log.Info("shutting down on signal")
			break loop
		case now := <-timer.C:
			next, ok, err := sinkAdapter.Tick(now)
			if err != nil {
				break loop
			}
			if !ok {
				timer.Reset(cfg.LatencyUpdateInterval)
				continue
			}
			d := next.Sub(time.Now())
			if d < 0 {
				d = 0
			}
			timer.Reset(d)
		}
	}

	led.Set(indicator.StateOff)
	log.Info("iwab-send stopped")
}

// unloadHost implements transmit.Host, logging an unrecoverable send
// failure; the run loop itself shuts down on Tick's returned error,
// mirroring the original sink's unload-the-module behaviour.
type unloadHost struct {
	log logging.Logger
}

func (h *unloadHost) RequestUnload(reason error) {
	h.log.Error("transmit engine requested unload", "error", reason)
}
