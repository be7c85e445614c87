package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Subaru-PFS/tron-actorcore-sub000/config"
	"github.com/Subaru-PFS/tron-actorcore-sub000/dispatch"
	"github.com/Subaru-PFS/tron-actorcore-sub000/hub"
	"github.com/Subaru-PFS/tron-actorcore-sub000/keys"
	"github.com/Subaru-PFS/tron-actorcore-sub000/keyvar"
	"github.com/Subaru-PFS/tron-actorcore-sub000/message"
	"github.com/Subaru-PFS/tron-actorcore-sub000/metric"
)

// buildConnection constructs the hub transport the config selects.
func buildConnection(cfg *config.Config, logger *slog.Logger) (hub.Connection, error) {
	switch cfg.Hub.Transport {
	case config.TransportTCP:
		return hub.NewTCPConnection(cfg.Hub.Addr,
			hub.WithLogger(logger),
			hub.WithDialTimeout(cfg.Hub.DialTimeout.Std()),
		), nil
	case config.TransportNATS:
		return hub.NewNATSConnection(cfg.Hub.Addr, cfg.Hub.NATSPrefix,
			cfg.Hub.IdentityOrDefault(cfg.Name), logger), nil
	case config.TransportWebSocket:
		return hub.NewWSConnection(cfg.Hub.Addr, logger), nil
	default:
		return nil, fmt.Errorf("unknown hub transport %q", cfg.Hub.Transport)
	}
}

// buildDispatcher wires the connection, dispatcher, and optional
// metrics endpoint, and starts everything.
func buildDispatcher(ctx context.Context, cfg *config.Config, logger *slog.Logger,
	opts ...dispatch.Option) (*dispatch.Dispatcher, error) {

	conn, err := buildConnection(cfg, logger)
	if err != nil {
		return nil, err
	}

	opts = append([]dispatch.Option{
		dispatch.WithLogger(logger),
		dispatch.WithCmdr(cfg.Dispatcher.Cmdr),
		dispatch.WithIncludeName(cfg.Dispatcher.IncludeName),
		dispatch.WithRefreshInterval(cfg.Dispatcher.RefreshInterval.Std()),
		dispatch.WithTimeoutInterval(cfg.Dispatcher.TimeoutInterval.Std()),
		dispatch.WithRefreshTimeLimit(cfg.Dispatcher.RefreshTimeLimit.Std()),
	}, opts...)

	if cfg.Metrics.Enabled {
		registry := metric.NewRegistry()
		opts = append(opts, dispatch.WithMetrics(registry))
		server := metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, registry)
		go func() {
			if err := server.Start(); err != nil {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		go func() {
			<-ctx.Done()
			_ = server.Stop()
		}()
	}

	d, err := dispatch.NewDispatcher(cfg.Name, conn, opts...)
	if err != nil {
		return nil, err
	}
	if err := d.Start(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// runSend sends one command and prints every reply until it finishes.
func runSend(cfg *config.Config, logger *slog.Logger, timeout time.Duration, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("send needs an actor and a command string")
	}
	actor, cmdStr := args[0], strings.Join(args[1:], " ")

	ctx, cancel := signalContext()
	defer cancel()

	d, err := buildDispatcher(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = d.Stop() }()

	cmdVar := keyvar.NewCmdVar(actor, cmdStr,
		keyvar.WithTimeLimit(timeout),
		keyvar.WithLogger(logger),
		keyvar.WithCallback(message.AllCodes, func(cv *keyvar.CmdVar) {
			if reply := cv.LastReply(); reply != nil {
				fmt.Println(reply.Canonical())
			}
		}),
	)
	return d.Call(ctx, cmdVar)
}

// runMonitor prints keyword updates for one actor until interrupted.
func runMonitor(cfg *config.Config, logger *slog.Logger, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("monitor needs an actor")
	}
	actor := args[0]

	registry := keys.NewRegistry(logger, cfg.Dictionaries.Dirs...)
	dict, err := registry.Load(actor)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	d, err := buildDispatcher(ctx, cfg, logger, dispatch.WithDelayCallbacks())
	if err != nil {
		return err
	}
	defer func() { _ = d.Stop() }()

	model, err := dispatch.NewModel(d, actor, dict, logger)
	if err != nil {
		return err
	}

	watched := model.KeyVars()
	if len(args) > 1 {
		watched = watched[:0]
		for _, name := range args[1:] {
			kv, ok := model.KeyVar(name)
			if !ok {
				return fmt.Errorf("actor %s has no keyword %q", actor, name)
			}
			watched = append(watched, kv)
		}
	}
	for _, kv := range watched {
		kv.AddCallback(printKeyVar)
	}

	logger.Info("monitoring", "actor", actor, "keywords", len(watched))
	<-ctx.Done()
	return nil
}

func printKeyVar(kv *keyvar.KeyVar) {
	state := "current"
	if !kv.IsCurrent() {
		state = "stale"
	} else if !kv.IsGenuine() {
		state = "cached"
	}
	fmt.Printf("%s.%s = %v [%s]\n", kv.Actor, kv.Name(), kv.Values(), state)
}

// runDescribe prints an actor's keyword dictionary. Works offline.
func runDescribe(cfg *config.Config, logger *slog.Logger, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("describe needs exactly one actor")
	}
	registry := keys.NewRegistry(logger, cfg.Dictionaries.Dirs...)
	dict, err := registry.Load(args[0])
	if err != nil {
		return err
	}
	fmt.Print(dict.Describe())
	return nil
}
