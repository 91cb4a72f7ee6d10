// framebench drives a double or triple buffer with one producer and one
// consumer at frame rates and checks that every frame the consumer sees is
// whole.
//
// Usage:
//
//	framebench [flags]
//
// Flags override values from the optional JSONC config file:
//
//	-n, --slots              Slot count, 2 or 3 (default 3)
//	-f, --frames             Frames to produce (default 600)
//	    --payload            Words per frame payload (default 1024)
//	    --produce-interval   Pause between writes (default 16ms)
//	    --consume-interval   Pause between reads (default 20ms)
//	    --jitter             Random extra pause, up to this much (default 2ms)
//	    --read-timeout       Bounded wait of a read (default 100ms)
//	-c, --config             JSONC config file
//	-o, --report             Write a JSON report to this path
//	-v, --verbose            Debug logging to stderr
//
// Exit status is 1 when a torn or out-of-order frame was observed.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/aradilov/multibuffer"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	def := DefaultConfig()
	fs := flag.NewFlagSet("framebench", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.SortFlags = false

	var (
		cli        Config
		configPath string
		produce    time.Duration
		consume    time.Duration
		jitter     time.Duration
		timeout    time.Duration
	)

	fs.IntVarP(&cli.Slots, "slots", "n", def.Slots, "slot count, 2 or 3")
	fs.IntVarP(&cli.Frames, "frames", "f", def.Frames, "frames to produce")
	fs.IntVar(&cli.Payload, "payload", def.Payload, "words per frame payload")
	fs.DurationVar(&produce, "produce-interval", time.Duration(def.ProduceInterval), "pause between writes")
	fs.DurationVar(&consume, "consume-interval", time.Duration(def.ConsumeInterval), "pause between reads")
	fs.DurationVar(&jitter, "jitter", time.Duration(def.Jitter), "random extra pause, up to this much")
	fs.DurationVar(&timeout, "read-timeout", time.Duration(def.ReadTimeout), "bounded wait of a read")
	fs.StringVarP(&configPath, "config", "c", "", "JSONC config file")
	fs.StringVarP(&cli.Report, "report", "o", "", "write a JSON report to this path")
	fs.BoolVarP(&cli.Verbose, "verbose", "v", false, "debug logging to stderr")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	cfg, err := LoadConfig(configPath, func(c *Config) {
		if fs.Changed("slots") {
			c.Slots = cli.Slots
		}
		if fs.Changed("frames") {
			c.Frames = cli.Frames
		}
		if fs.Changed("payload") {
			c.Payload = cli.Payload
		}
		if fs.Changed("produce-interval") {
			c.ProduceInterval = Duration(produce)
		}
		if fs.Changed("consume-interval") {
			c.ConsumeInterval = Duration(consume)
		}
		if fs.Changed("jitter") {
			c.Jitter = Duration(jitter)
		}
		if fs.Changed("read-timeout") {
			c.ReadTimeout = Duration(timeout)
		}
		if fs.Changed("report") {
			c.Report = cli.Report
		}
		if fs.Changed("verbose") {
			c.Verbose = cli.Verbose
		}
	})
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 2
	}

	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	if cfg.Verbose {
		multibuffer.SetLogger(log)
		defer multibuffer.SetLogger(nil)
	}

	res := Run(ctx, cfg, log)
	printSummary(stdout, res)

	if cfg.Report != "" {
		if err := writeReport(cfg.Report, res); err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return 1
		}
	}

	if res.Torn > 0 || res.Backwards > 0 {
		return 1
	}
	return 0
}
