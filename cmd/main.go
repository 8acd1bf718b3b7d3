package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/alexflint/go-arg"
	"github.com/charmbracelet/log"

	"github.com/getlantern/external-ip/common"
	"github.com/getlantern/external-ip/source"
)

// LogLevel is a wrapper around charmbracelet/log.Level to allow
// parsing log levels directly from command-line arguments using go-arg.
type LogLevel struct {
	log.Level
}

// UnmarshalText implements the encoding.TextUnmarshaler interface for LogLevel.
func (ll *LogLevel) UnmarshalText(b []byte) error {
	l, err := log.ParseLevel(string(b))
	if err != nil {
		return err
	}
	ll.Level = l
	return nil
}

// args holds the command-line arguments parsed by go-arg.
var args struct {
	LogLevel    LogLevel      `arg:"-l,--log-level" help:"set log level" default:"info"`
	DataDir     string        `arg:"-d" help:"data directory" default:"./data"`
	Timeout     time.Duration `arg:"--timeout" help:"per-endpoint request timeout (default 2s)"`
	Concurrency int           `arg:"--concurrency" help:"maximum requests in flight (default 10)"`
	Proxy       string        `arg:"--proxy" help:"query endpoints through this http, https or socks5 proxy"`
	Endpoints   string        `arg:"--endpoints" help:"JSON file replacing the built-in endpoint list"`

	Get   *GetCmd   `arg:"subcommand:get" help:"print the external IPv4 and IPv6 address"`
	Watch *WatchCmd `arg:"subcommand:watch" help:"log whenever the external address changes"`
	Init  *InitCmd  `arg:"subcommand:init" help:"generate the server configuration"`
	Serve *ServeCmd `arg:"subcommand:serve" help:"serve the external address over an authenticated API"`
}

func main() {
	var err error
	p := arg.MustParse(&args)
	log.SetLevel(args.LogLevel.Level)
	switch {
	case args.Get != nil:
		err = args.Get.Run()
	case args.Watch != nil:
		err = args.Watch.Run()
	case args.Init != nil:
		ensureDataDirectoryExists()
		err = args.Init.Run()
	case args.Serve != nil:
		ensureDataDirectoryExists()
		err = args.Serve.Run()
	default:
		p.WriteHelp(os.Stderr)
	}
	if err != nil {
		if errors.Is(err, arg.ErrHelp) {
			_ = p.WriteHelpForSubcommand(os.Stderr, p.SubcommandNames()...)
		} else {
			_, _ = fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

// lookupSources resolves the registry and source options from the global flags.
func lookupSources() (*source.Registry, source.Options, error) {
	return common.LoadSources(args.Endpoints, source.Options{
		Timeout:     args.Timeout,
		Concurrency: args.Concurrency,
		Proxy:       args.Proxy,
	})
}

// ensureDataDirectoryExists creates args.DataDir when missing.
func ensureDataDirectoryExists() {
	fi, err := os.Stat(args.DataDir)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Fatalf("Unable to access data folder %v", err)
		}
		log.Debug("data directory does not exist, creating", "path", args.DataDir)
		if err = os.MkdirAll(args.DataDir, 0755); err != nil {
			log.Fatalf("Unable to create data folder %v", err)
		}
		return
	}
	if !fi.IsDir() {
		log.Fatal("data directory is not a directory")
	}
}
