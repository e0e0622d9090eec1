/*
NAME
  iwab-statsplot - renders a receive stats log as a PNG time series.

DESCRIPTION
  iwab-statsplot reads the newline-delimited JSON stats samples an
  iwab-recv instance writes with -stats-log and plots loss, underrun,
  overrun and queue fill against elapsed time, for after-the-fact link
  quality review.

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
	"fmt"
	"log"
	"os"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/fieldradio/iwab/receive"
)

func main() {
	in := flag.String("in", "", "stats log path written by iwab-recv -stats-log")
	out := flag.String("out", "stats.png", "output PNG path")
	width := flag.Float64("width", 10, "plot width in inches")
	height := flag.Float64("height", 6, "plot height in inches")
	flag.Parse()

	if *in == "" {
		fmt.Fprintln(os.Stderr, "iwab-statsplot: -in is required")
		os.Exit(2)
	}

	samples, err := receive.ReadStatsLog(*in)
	if err != nil {
		log.Fatalf("reading stats log: %v", err)
	}
	if len(samples) == 0 {
		log.Fatalf("stats log %s has no samples", *in)
	}

	p, err := plot.New()
	if err != nil {
		log.Fatalf("creating plot: %v", err)
	}
	p.Title.Text = "iwab link quality"
	p.X.Label.Text = "elapsed seconds"
	p.Y.Label.Text = "ms per second"

	t0 := samples[0].Time
	lost := make(plotter.XYs, len(samples))
	underrun := make(plotter.XYs, len(samples))
	overrun := make(plotter.XYs, len(samples))
	fill := make(plotter.XYs, len(samples))
	for i, s := range samples {
		x := s.Time.Sub(t0).Seconds()
		lost[i] = plotter.XY{X: x, Y: s.Stats.LostMsPerS}
		underrun[i] = plotter.XY{X: x, Y: s.Stats.UnderrunMsPerS}
		overrun[i] = plotter.XY{X: x, Y: s.Stats.OverrunMsPerS}
		fill[i] = plotter.XY{X: x, Y: s.Stats.AvgQueueFillChunks}
	}

	if err := plotutil.AddLines(p,
		"lost ms/s", lost,
		"underrun ms/s", underrun,
		"overrun ms/s", overrun,
		"avg queue fill (chunks)", fill,
	); err != nil {
		log.Fatalf("building plot: %v", err)
	}

	if err := p.Save(vg.Length(*width)*vg.Inch, vg.Length(*height)*vg.Inch, *out); err != nil {
		log.Fatalf("saving plot: %v", err)
	}
	fmt.Printf("wrote %s (%d samples)\n", *out, len(samples))
}
