package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/gentam/acorn"
)

// modeCommand runs one of the entry modes and idles until a signal arrives.
// The idle mode initializes the host but never opens the I2C bus.
func modeCommand(cfg *acorn.Config, name string, args []string) {
	mode, err := acorn.ParseMode(name)
	if err != nil {
		fatalUsage("%v", err)
	}

	fs := flag.NewFlagSet(name, flag.ExitOnError)
	var noIdle bool
	if mode == acorn.ModeProgram {
		fs.BoolVar(&noIdle, "x", false, "exit instead of idling")
	}
	fs.Parse(args)

	var seq *acorn.Sequence
	release := func() {}
	if mode == acorn.ModeIdle {
		if err := acorn.InitPlatform(); err != nil {
			fatalf("%v", err)
		}
		seq = acorn.NewSequence(nil, os.Stdout)
	} else {
		d := openDevice(cfg)
		defer d.Close()
		release = func() { d.Close() }
		seq = d.Sequence

		if noIdle {
			if _, err := seq.Program(); err != nil {
				release()
				fatalf("%v", err)
			}
			return
		}
	}

	ctx, stop := signalContext()
	defer stop()
	if err := seq.Start(ctx, mode); err != nil {
		stop()
		release()
		fatalf("%v", err)
	}
	slog.Debug("stopped", "mode", mode)
}
