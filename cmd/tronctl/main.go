// Package main implements tronctl, a command-line client for the
// message hub: it sends commands to actors, monitors keyword traffic,
// and describes keyword dictionaries.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/Subaru-PFS/tron-actorcore-sub000/config"
)

// Build information constants
const (
	Version = "0.1.0"
	appName = "tronctl"
)

// CLIConfig holds the parsed command line flags.
type CLIConfig struct {
	ConfigPath  string
	HubAddr     string
	Name        string
	Cmdr        string
	DictDir     string
	LogLevel    string
	LogFormat   string
	Timeout     time.Duration
	ShowVersion bool
}

func parseFlags() *CLIConfig {
	cfg := &CLIConfig{}

	flag.StringVar(&cfg.ConfigPath, "config", "", "Path to JSON configuration file")
	flag.StringVar(&cfg.HubAddr, "hub", "", "Hub address (host:port), overrides config")
	flag.StringVar(&cfg.Name, "name", "", "Commander name on outgoing lines, overrides config")
	flag.StringVar(&cfg.Cmdr, "cmdr", "", "Commander ID for reply matching, overrides config")
	flag.StringVar(&cfg.DictDir, "keys", "", "Directory of keyword dictionary files, overrides config")
	flag.StringVar(&cfg.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.StringVar(&cfg.LogFormat, "log-format", "", "Log format (text, json)")
	flag.DurationVar(&cfg.Timeout, "timeout", 30*time.Second, "Time limit for the send command (0 = unlimited)")
	flag.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")

	flag.Usage = printUsage
	flag.Parse()
	return cfg
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: %s [flags] <command> [args]

Commands:
  send <actor> <command string>   send one command and print its replies
  monitor <actor> [keyword ...]   print keyword updates as they arrive
  describe <actor>                print the actor's keyword dictionary

Flags:
`, appName)
	flag.PrintDefaults()
}

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cliCfg := parseFlags()
	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		return fmt.Errorf("no command given")
	}

	cfg, err := loadConfig(cliCfg)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	switch args[0] {
	case "send":
		return runSend(cfg, logger, cliCfg.Timeout, args[1:])
	case "monitor":
		return runMonitor(cfg, logger, args[1:])
	case "describe":
		return runDescribe(cfg, logger, args[1:])
	default:
		printUsage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

// loadConfig layers CLI flags over the config file (or the defaults).
func loadConfig(cliCfg *CLIConfig) (*config.Config, error) {
	var cfg *config.Config
	if cliCfg.ConfigPath != "" {
		loaded, err := config.LoadFile(cliCfg.ConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = config.DefaultConfig()
	}

	if cliCfg.HubAddr != "" {
		cfg.Hub.Addr = cliCfg.HubAddr
	}
	if cliCfg.Name != "" {
		cfg.Name = cliCfg.Name
	}
	if cliCfg.Cmdr != "" {
		cfg.Dispatcher.Cmdr = cliCfg.Cmdr
	}
	if cliCfg.DictDir != "" {
		cfg.Dictionaries.Dirs = []string{cliCfg.DictDir}
	}
	if cliCfg.LogLevel != "" {
		cfg.Log.Level = cliCfg.LogLevel
	}
	if cliCfg.LogFormat != "" {
		cfg.Log.Format = cliCfg.LogFormat
	}
	return cfg, cfg.Validate()
}
