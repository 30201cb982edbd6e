package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"gestured/internal/config"
	"gestured/internal/gesture"
	"gestured/internal/hci"
	"gestured/internal/health"
	"gestured/internal/input"
	"gestured/internal/listener"
	"gestured/internal/store"
)

func newClassifier(initialVolume int) *input.Classifier {
	return input.NewClassifier(byte(initialVolume))
}

func cmdCheck(args []string) {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	configPath := fs.String("config", "", "Configuration file")
	printCfg := fs.Bool("print", false, "Print the effective configuration as TOML")
	probe := fs.Bool("probe", false, "Also check the HCI socket, history database and session bus")
	fs.Parse(args)

	cfg := loadConfig(*configPath)

	if *printCfg {
		if err := cfg.WriteTOML(os.Stdout); err != nil {
			fatalf("%v", err)
		}
		return
	}

	tree := gesture.Build(cfg.GestureSpecs())
	printBindings(os.Stdout, tree, cfg)

	if *probe {
		results := newProbes(cfg).Run(context.Background())
		fmt.Println()
		printProbes(os.Stdout, results)
		if health.Overall(results) == health.StatusUnhealthy {
			os.Exit(1)
		}
	}
}

func printBindings(w io.Writer, tree *gesture.Tree, cfg *config.Config) {
	single, combo := cfg.Timing.SingleDelay(), cfg.Timing.ComboDelay()

	fmt.Fprintf(w, "Gestures: %d (tree nodes: %d)\n", len(cfg.Gestures), tree.Size())
	fmt.Fprintf(w, "Delays: single %s, combo %s\n\n", single, combo)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQUENCE\tCOMMIT\tACTION")
	for _, b := range tree.Bindings() {
		commit := "immediate"
		switch {
		case b.Immediate:
		case len(b.Path) == 1:
			commit = "after " + single.String()
		default:
			commit = "after " + combo.String()
		}
		act := b.Action
		if act == "" {
			act = "(none)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", b.Name(), commit, act)
	}
	tw.Flush()
}

func cmdDump(args []string) {
	fs := flag.NewFlagSet("dump", flag.ExitOnError)
	device := fs.Uint("device", uint(hci.DevNone), "HCI device index (required with -channel raw)")
	channel := fs.String("channel", "monitor", "Socket channel: monitor or raw")
	all := fs.Bool("all", false, "Print every frame, not just incoming ACL data")
	classify := fs.Bool("classify", false, "Annotate frames with their symbol")
	fs.Parse(args)

	if *device > 0xffff {
		fatalf("device index out of range: %d", *device)
	}
	packetType := int(hci.PacketACLRx)
	if *all {
		packetType = -1
	}

	src, _, err := openSource(uint16(*device), *channel, packetType, "")
	if err != nil {
		fatalf("%v", err)
	}
	defer src.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	classifier := newClassifier(int(input.DefaultVolume))
	for {
		frame, err := src.ReadFrame(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return
			}
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Print(hci.FormatFrame(frame))
		if *classify {
			res := classifier.Inspect(frame)
			switch {
			case res.Suppressed:
				fmt.Printf("# %s (keep-alive)\n", res.Raw)
			case res.Symbol != input.None:
				fmt.Printf("# %s\n", res.Symbol)
			}
		}
	}
}

func cmdReplay(args []string) {
	fs := flag.NewFlagSet("replay", flag.ExitOnError)
	configPath := fs.String("config", "", "Configuration file")
	execute := fs.Bool("execute", false, "Run bound actions instead of logging them")
	showMetrics := fs.Bool("metrics", false, "Print counters when done")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: gestured replay [-config path] [-execute] [-metrics] <file>")
		os.Exit(1)
	}

	cfg := loadConfig(*configPath)
	if !*execute {
		cfg.Actions.DryRun = true
	}

	a, err := newApp(cfg, *execute, func(c gesture.Commit) {
		how := "matched"
		if c.Timeout {
			how = "timed out"
		}
		act := c.Action
		if act == "" {
			act = "(none)"
		}
		fmt.Printf("%s  %-20s %-10s %s\n", c.At.Format("15:04:05.000"), c.Name(), how, act)
	})
	if err != nil {
		fatalf("%v", err)
	}

	src, err := hci.OpenReplay(fs.Arg(0))
	if err != nil {
		a.close()
		fatalf("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var filtered *hci.Filtered
	var source hci.Source = src
	if cfg.Device.PacketType >= 0 {
		filtered = hci.Filter(src, byte(cfg.Device.PacketType))
		source = filtered
	}

	runErr := listener.New(source, listener.Config{
		Classifier: newClassifier(cfg.Input.InitialVolume),
		Handler:    a.matcher,
		Logger:     a.logger.WithComponent("listener"),
		Metrics:    a.metrics,
	}).Run(ctx)

	// Commit whatever is still pending at end of input.
	if runErr == nil && ctx.Err() == nil {
		a.matcher.OnTimeout()
	}
	src.Close()
	if filtered != nil {
		a.metrics.FramesFiltered.Add(filtered.Dropped())
	}
	a.close()

	if *showMetrics {
		a.metrics.Registry().WritePrometheus(os.Stdout)
	}
	if runErr != nil {
		fatalf("%v", runErr)
	}
}

func cmdHistory(args []string) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	configPath := fs.String("config", "", "Configuration file")
	limit := fs.Int("n", 20, "Number of entries to show")
	fs.Parse(args)

	path := config.DefaultHistoryPath()
	if resolved, err := config.Resolve(*configPath); err == nil {
		if cfg, err := config.Load(resolved); err == nil {
			path = cfg.History.Path
		} else if *configPath != "" {
			fatalf("%v", err)
		}
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Println("No history yet.")
		return
	}

	s, err := store.Open(path)
	if err != nil {
		fatalf("%v", err)
	}
	defer s.Close()

	ctx := context.Background()
	entries, err := s.Recent(ctx, *limit)
	if err != nil {
		fatalf("%v", err)
	}
	total, err := s.Count(ctx)
	if err != nil {
		fatalf("%v", err)
	}

	fmt.Printf("=== Action History (%d of %d) ===\n", len(entries), total)
	printHistory(os.Stdout, entries)
}

func printHistory(w io.Writer, entries []store.Activation) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tRUN\tEXECUTOR\tSTATUS\tDURATION\tACTION")
	for _, e := range entries {
		status := "ok"
		switch {
		case e.Error != "":
			status = "error: " + e.Error
		case e.ExitCode != 0:
			status = fmt.Sprintf("exit %d", e.ExitCode)
		}
		run := e.RunID
		if len(run) > 8 {
			run = run[:8]
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.FiredAt.Format("2006-01-02 15:04:05"),
			run,
			e.Executor,
			status,
			e.Duration.Round(time.Millisecond),
			e.Action,
		)
	}
	tw.Flush()
}
