package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"gestured/internal/hci"
	"gestured/internal/listener"
)

func cmdListen(args []string) {
	fs := flag.NewFlagSet("listen", flag.ExitOnError)
	configPath := fs.String("config", "", "Configuration file")
	dryRun := fs.Bool("dry-run", false, "Log actions instead of running them")
	follow := fs.String("follow", "", "Read frames from a growing dump file instead of the socket")
	fs.Parse(args)

	cfg := loadConfig(*configPath)
	if *dryRun {
		cfg.Actions.DryRun = true
	}

	a, err := newApp(cfg, true, nil)
	if err != nil {
		fatalf("%v", err)
	}

	src, filtered, err := openSource(cfg.Device.Index, cfg.Device.Channel, cfg.Device.PacketType, *follow)
	if err != nil {
		a.close()
		fatalf("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.log.Info("listening",
		"device", cfg.Device.Index,
		"channel", cfg.Device.Channel,
		"gestures", len(a.tree.Bindings()),
		"dry_run", cfg.Actions.DryRun,
	)

	runErr := listener.New(src, listener.Config{
		Classifier: newClassifier(cfg.Input.InitialVolume),
		Handler:    a.matcher,
		Logger:     a.logger.WithComponent("listener"),
		Metrics:    a.metrics,
		OnCancel:   a.matcher.Stop,
	}).Run(ctx)

	a.matcher.Stop()
	if err := src.Close(); err != nil {
		a.log.Debug("close source", "error", err)
	}
	if filtered != nil {
		a.metrics.FramesFiltered.Add(filtered.Dropped())
	}

	if runErr != nil {
		a.log.Error("listener stopped", "error", runErr)
	} else {
		a.log.Info("shutting down")
	}
	a.close()

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
		os.Exit(1)
	}
}

// openSource opens the HCI socket, or the dump file at follow when set, and
// applies the packet type filter. packetType < 0 disables filtering.
func openSource(device uint16, channel string, packetType int, follow string) (hci.Source, *hci.Filtered, error) {
	var src hci.Source
	if follow != "" {
		fl, err := hci.OpenFollow(follow, false)
		if err != nil {
			return nil, nil, err
		}
		src = fl
	} else {
		ch, err := hci.ParseChannel(channel)
		if err != nil {
			return nil, nil, err
		}
		sock, err := hci.OpenSocket(device, ch)
		if err != nil {
			return nil, nil, err
		}
		src = sock
	}

	if packetType < 0 {
		return src, nil, nil
	}
	filtered := hci.Filter(src, byte(packetType))
	return filtered, filtered, nil
}
