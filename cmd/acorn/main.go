package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gentam/acorn"
)

var (
	configFile = flag.String("c", "", "YAML config file (default: board defaults)")
	busName    = flag.String("bus", "", `I2C bus name, or "ftdi" (overrides config)`)
	verbose    = flag.Bool("v", false, "log every bus transaction")
)

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}

func fatalUsage(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(2)
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage:
	acorn [-c config.yml] [-bus name] [-v] <command> [arguments]

Commands:
	prog	 route SPI to the flash, print its ID, restore and idle
	idle	 initialize and idle
	read	 read flash ID, status register or memory
	status	 print PROGRAMN and DONE levels
`)
	os.Exit(2)
}

func main() {
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() == 0 {
		usage()
	}

	cfg := loadConfig()
	setupLogging(cfg)

	switch cmd := flag.Arg(0); cmd {
	case acorn.ModeProgram.String(), acorn.ModeIdle.String():
		modeCommand(cfg, cmd, flag.Args()[1:])
	case "read":
		readCommand(cfg, flag.Args()[1:])
	case "status":
		statusCommand(cfg, flag.Args()[1:])
	case "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %q\n", cmd)
		usage()
	}
}

func loadConfig() *acorn.Config {
	cfg := acorn.DefaultConfig()
	if *configFile != "" {
		var err error
		if cfg, err = acorn.LoadConfig(*configFile); err != nil {
			fatalUsage("%v", err)
		}
	}
	if *busName != "" {
		cfg.Bus = *busName
	}
	if *verbose {
		cfg.Logging.Level = "DEBUG"
	}
	return cfg
}

func setupLogging(cfg *acorn.Config) {
	var level slog.Level
	switch strings.ToUpper(cfg.Logging.Level) {
	case "DEBUG":
		level = slog.LevelDebug
	case "WARN":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.ToLower(cfg.Logging.Format) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// signalContext is done on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func openDevice(cfg *acorn.Config) *acorn.Device {
	d, err := acorn.NewDevice(cfg, os.Stdout)
	if err != nil {
		fatalf("%v", err)
	}
	slog.Debug("device opened", "bridge", d.Bridge.String())
	return d
}
