package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/luki/hwsensors/internal/backend"
	"github.com/luki/hwsensors/internal/config"
	"github.com/luki/hwsensors/internal/hwmon"
	"github.com/luki/hwsensors/internal/indicator"
	"github.com/luki/hwsensors/internal/logging"
	"github.com/luki/hwsensors/internal/monitor"
	"github.com/luki/hwsensors/internal/sensor"
	"github.com/luki/hwsensors/internal/store"
	"github.com/luki/hwsensors/internal/viewer"
)

const usage = `Usage: hwsensors [command] [flags]

Commands:
  monitor   live sensor dashboard (default)
  list      print every sensor once
  watch     print readings every interval
  history   browse recorded readings

Flags:
`

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// options holds the command line.
type options struct {
	command   string
	config    string
	sysfsRoot string
	interval  time.Duration
	format    string
	noRecord  bool
	logLevel  string
	logFile   string
}

func parseArgs(args []string) (options, *pflag.FlagSet, error) {
	opts := options{command: "monitor"}
	if len(args) > 0 && len(args[0]) > 0 && args[0][0] != '-' {
		opts.command, args = args[0], args[1:]
	}

	fs := pflag.NewFlagSet("hwsensors "+opts.command, pflag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		fs.PrintDefaults()
	}
	fs.StringVarP(&opts.config, "config", "c", config.DefaultPath(), "configuration file")
	fs.StringVar(&opts.sysfsRoot, "sysfs-root", "", "prefix of /sys/class/hwmon")
	fs.DurationVarP(&opts.interval, "interval", "i", 0, "poll interval")
	fs.StringVarP(&opts.format, "format", "f", "text", "list output: text, json or yaml")
	fs.BoolVar(&opts.noRecord, "no-record", false, "do not record readings to disk")
	fs.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error")
	fs.StringVar(&opts.logFile, "log-file", "", "write logs to this file")
	if err := fs.Parse(args); err != nil {
		return opts, fs, err
	}
	return opts, fs, nil
}

// loadConfig reads the configuration file and applies the flags that
// were set on top of it.
func loadConfig(opts options, fs *pflag.FlagSet) (config.Config, error) {
	cfg, err := config.Load(opts.config)
	if err != nil {
		return cfg, err
	}
	if fs.Changed("sysfs-root") {
		cfg.SysfsRoot = opts.sysfsRoot
	}
	if fs.Changed("interval") {
		cfg.PollInterval = opts.interval
	}
	if opts.noRecord {
		cfg.Record = false
	}
	if fs.Changed("log-level") {
		cfg.Log.Level = opts.logLevel
	}
	if fs.Changed("log-file") {
		cfg.Log.File = config.ExpandHome(opts.logFile)
	}
	return cfg, cfg.Validate()
}

func run(args []string, out io.Writer) error {
	opts, fs, err := parseArgs(args)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	cfg, err := loadConfig(opts, fs)
	if err != nil {
		return err
	}

	switch opts.command {
	case "history":
		return viewer.Run(cfg.DataDir)
	case "monitor":
		// The TUI owns the terminal.
		if cfg.Log.File == "" {
			cfg.Log.File = filepath.Join(cfg.DataDir, "hwsensors.log")
		}
	case "list", "watch":
	default:
		fs.Usage()
		return errors.Errorf("unknown command %q", opts.command)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	b := backend.NewSysfs(
		backend.WithRoot(cfg.SysfsRoot),
		backend.WithOverrides(cfg.Overrides()),
	)
	a := newApp(b, cfg.Source, logger)
	defer a.close()

	switch opts.command {
	case "list":
		if err := a.start(); err != nil {
			return err
		}
		return writeReadings(out, a.ind.Readings(), opts.format)
	case "watch":
		if err := a.start(); err != nil {
			return err
		}
		return a.watch(out, cfg.PollInterval)
	default:
		// Monitor still starts without a backend and reports why.
		startErr := a.start()
		if startErr != nil {
			logger.Warnw("starting without sensors", "error", startErr)
		}
		mopts := monitor.Options{
			StartErr:     startErr,
			Indicator:    a.ind,
			Plugin:       a.plugin,
			PollInterval: cfg.PollInterval,
			HistorySize:  cfg.HistorySize,
			Logger:       logger.Named("monitor"),
		}
		if cfg.Record {
			ds, err := store.New(cfg.DataDir)
			if err != nil {
				return err
			}
			mopts.Store = ds
		}
		return monitor.Run(mopts)
	}
}

// app wires a backend session to an indicator.
type app struct {
	logger  *zap.SugaredLogger
	session *hwmon.Session
	plugin  *hwmon.Plugin
	ind     *indicator.Indicator
}

func newApp(b backend.Backend, source string, logger *zap.SugaredLogger) *app {
	session := hwmon.NewSession(b, logger.Named("hwmon"))
	return &app{
		logger:  logger,
		session: session,
		plugin:  hwmon.NewPlugin(session, source, logger.Named("hwmon")),
		ind:     indicator.New(logger.Named("indicator")),
	}
}

// start initializes the backend and publishes its sensors.
func (a *app) start() error {
	if err := a.session.Initialize(); err != nil {
		return errors.Wrap(err, "sensor backend")
	}
	n := a.ind.Activate(a.plugin)
	a.logger.Infow("sensors activated", "sensors", n)
	return nil
}

func (a *app) close() {
	a.ind.Deactivate(a.plugin)
	a.session.Shutdown()
}

// watch prints every sensor each interval until interrupted.
func (a *app) watch(out io.Writer, interval time.Duration) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.watchWith(ctx, clock.New(), out, interval)
}

func (a *app) watchWith(ctx context.Context, clk clock.Clock, out io.Writer, interval time.Duration) error {
	err := a.ind.Poll(ctx, clk, interval, func(readings []sensor.Reading) {
		fmt.Fprintf(out, "── %s\n", clk.Now().Format("15:04:05"))
		for _, r := range readings {
			fmt.Fprintln(out, formatLine(r))
		}
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
