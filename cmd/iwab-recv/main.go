/*
NAME
  iwab-recv - receives a raw 802.11 audio link and plays it out locally.

DESCRIPTION
  iwab-recv opens a monitor-mode wireless interface, reassembles the
  incoming frame stream through a jitter queue, and drains it to an ALSA
  playback device on the local sound card's own cadence. Configuration
  comes from flags and an optional hot-reloaded config file; link health
  is reported on an optional GPIO LED.

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
	"github.com/fieldradio/iwab/jitter"
	"github.com/fieldradio/iwab/receive"
	"github.com/fieldradio/iwab/sink"
	"github.com/fieldradio/iwab/wire"
)

const (
	logPath      = "/var/log/iwab/iwab-recv.log"
	logMaxSize   = 50 // MB
	logMaxBackup = 5
	logMaxAge    = 28 // days
)

func main() {
	iface := flag.String("iface", "", "wireless monitor-mode interface (default mon0)")
	sinkDevice := flag.String("sink", "", "ALSA playback device name (default: first available)")
	configFile := flag.String("config", "", "path to a hot-reloaded config file")
	ledPin := flag.String("led", "", "GPIO pin name for a link-health indicator")
	logVerbosity := flag.Int("verbosity", int(logging.Info), "log verbosity (0=Debug..4=Fatal)")
	statsLogPath := flag.String("stats-log", "", "path to append receive stats samples for iwab-statsplot")
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

	const targetLatency = 200 * time.Millisecond
	const prebufLatency = 60 * time.Millisecond
	const minPullLatency = 20 * time.Millisecond
	silence := make([]byte, cfg.SampleSpec.UsecToBytes(minPullLatency.Microseconds()))

	jq := jitter.New(jitter.Config{
		MaxBytes:    cfg.SampleSpec.UsecToBytes(2 * targetLatency.Microseconds()),
		TargetBytes: cfg.SampleSpec.UsecToBytes(targetLatency.Microseconds()),
		PrebufBytes: cfg.SampleSpec.UsecToBytes(prebufLatency.Microseconds()),
		MinReqBytes: cfg.SampleSpec.UsecToBytes(minPullLatency.Microseconds()),
		Silence:     silence,
	})

	// SinkInputAdapter reports pop results to the receive.Engine that owns
	// jq, but the engine can only be built once the consumer wrapping this
	// adapter exists; popNotifier forwards to it once assigned below.
	var engine *receive.Engine
	popNotifier := notifierFunc(func(err error, requestedBytes int) {
		engine.RecordPopResult(err, requestedBytes)
		if err != nil {
			led.Set(indicator.StateDegraded)
		} else {
			led.Set(indicator.StateHealthy)
		}
	})

	var statsLog *receive.StatsLog
	if *statsLogPath != "" {
		statsLog, err = receive.OpenStatsLog(*statsLogPath)
		if err != nil {
			log.Fatal("could not open stats log", "path", *statsLogPath, "error", err)
		}
		defer statsLog.Close()
	}

	sinkInput := sink.NewSinkInputAdapter(jq, popNotifier)
	consumer := sink.NewConsumer(sinkInput, func(s receive.Stats) {
		log.Debug("receive stats", "lostMsPerS", s.LostMsPerS, "underrunMsPerS", s.UnderrunMsPerS, "overrunMsPerS", s.OverrunMsPerS, "avgQueueFillChunks", s.AvgQueueFillChunks)
		if statsLog != nil {
			if err := statsLog.Write(receive.StatsSample{Time: time.Now(), Stats: s}); err != nil {
				log.Warning("stats log write failed", "error", err)
			}
		}
	})

	engine = receive.NewEngine(codec, jq, receive.Config{
		SampleSpec:            cfg.SampleSpec,
		IdleTimeout:           cfg.IdleTimeout,
		UnderrunCorkThreshold: cfg.UnderrunCorkThreshold,
	}, log, consumer)

	playback, err := audio.NewPlayback(*sinkDevice, cfg.SampleSpec, sinkInput, minPullLatency, log)
	if err != nil {
		log.Fatal("could not open playback device", "error", err)
	}
	defer playback.Close()

	led.Set(indicator.StateHealthy)

	if *configFile != "" {
		stop := make(chan struct{})
		defer close(stop)
		go config.WatchFile(*configFile, func(vars map[string]string) {
			cfg.Update(vars)
		}, stop)
	}

	if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		log.Debug("sd_notify failed (not running under systemd?)", "error", err)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	buf := make([]byte, wire.MaxFrame)
	ticker := time.NewTicker(minPullLatency)
	defer ticker.Stop()
	for {
		select {
		case <-sig:
			log.Info("shutting down on signal")
			led.Set(indicator.StateOff)
			return
		case now := <-ticker.C:
			// OnReadable owns draining the socket itself: it reads until
			// ErrAgain, classifying and enqueueing every frame it gets and
			// absorbing malformed ones. Only a hard transport error (the
			// interface going away) is fatal, same as SendFailure on the
			// transmit side.
			if err := engine.OnReadable(buf, now); err != nil {
				log.Error("link read failed, shutting down", "error", err)
				led.Set(indicator.StateOff)
				return
			}
			engine.Tick(now)
		}
	}
}

// notifierFunc adapts a plain function to sink.PopNotifier.
type notifierFunc func(err error, requestedBytes int)

func (f notifierFunc) RecordPopResult(err error, requestedBytes int) { f(err, requestedBytes) }
