package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/tailored-agentic-units/restore/observability"
	"github.com/tailored-agentic-units/restore/store"
)

func main() {
	var (
		configFile = flag.String("config", "", "Path to store config file (.json or .toml)")
		name       = flag.String("name", "", "Store name (overrides config)")
		watch      = flag.String("watch", "", "Comma-separated keys the printed listener watches; empty watches all")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging to stderr")
	)
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: restore [flags] action[=payload] ...")
		fmt.Fprintln(os.Stderr, "Actions: increment, decrement, message, reset")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(1)
	}

	cfg := store.DefaultConfig()
	cfg.Name = "counter"
	cfg.State = store.State{"count": 0, "message": "hi"}
	if *configFile != "" {
		loaded, err := store.LoadConfig(*configFile)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = *loaded
	}
	if *name != "" {
		cfg.Name = *name
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	recorder := observability.NewRecorder()
	opts := append(counterOptions(logger), store.WithObserver(
		observability.NewMultiObserver(observability.NewSlogObserver(logger), recorder),
	))

	s, err := store.New(&cfg, opts...)
	if err != nil {
		log.Fatalf("Failed to create store: %v", err)
	}

	var keys []string
	if *watch != "" {
		keys = strings.Split(*watch, ",")
	}
	id, err := s.Subscribe(store.Listener{
		Keys: keys,
		Callback: func(_ context.Context, st store.State) {
			fmt.Printf("notified: count=%v message=%q\n", st["count"], st["message"])
		},
	})
	if err != nil {
		log.Fatalf("Failed to subscribe: %v", err)
	}
	defer s.Unsubscribe(id)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	for _, step := range flag.Args() {
		action, payload := parseStep(step)
		if _, err := s.Dispatch(ctx, action, payload); err != nil {
			log.Fatalf("Dispatch %s failed: %v", action, err)
		}
	}

	out, err := json.MarshalIndent(s.GetState(), "", "  ")
	if err != nil {
		log.Fatalf("Failed to encode state: %v", err)
	}
	fmt.Printf("\nState:\n%s\n", out)
	fmt.Printf("\nCommits: %d, Notifications: %d\n",
		recorder.Count(store.EventCommitComplete)+recorder.Count(store.EventStateReplace),
		recorder.Count(store.EventNotify),
	)
}

// parseStep splits "action=payload". A step without "=" has a nil payload.
func parseStep(step string) (string, any) {
	action, payload, found := strings.Cut(step, "=")
	if !found {
		return action, nil
	}
	return action, payload
}
