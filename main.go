// Command isoblob grows a random density blob, smooths it, extracts its
// isosurface and writes the resulting mesh as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/chazu/isoblob/pkg/config"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "isoblob:", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("isoblob", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to YAML config file (empty for defaults)")
	seed := fs.Int64("seed", 0, "random seed (0 uses the clock)")
	out := fs.String("out", "-", "output path for the mesh JSON, - for stdout")
	logLevel := fs.String("log-level", "info", "log level: debug, info, warn, error")
	size := fs.Int("size", 0, "override field.size")
	realtime := fs.Bool("realtime", false, "pace the run on the configured frame rate")
	dumpConfig := fs.String("dump-config", "", "write the effective config to this path and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}

	level, err := parseLevel(*logLevel)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *size > 0 {
		cfg.Field.Size = *size
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if *dumpConfig != "" {
		return cfg.WriteYAML(*dumpConfig)
	}

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	logger.Info("generating", "size", cfg.Field.Size, "passes", cfg.Diffusion.Passes, "seed", *seed)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	app := NewApp(cfg, logger)
	app.Realtime = *realtime
	result := app.Generate(ctx, *seed)
	if len(result.Errors) > 0 {
		return fmt.Errorf("generate: %s", strings.Join(result.Errors, "; "))
	}
	return writeJSON(*out, stdout, result)
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return l, fmt.Errorf("invalid log level %q", s)
	}
	return l, nil
}

func writeJSON(path string, stdout io.Writer, v any) error {
	w := stdout
	if path != "-" && path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating output: %w", err)
		}
		defer f.Close()
		w = f
	}
	enc := json.NewEncoder(w)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("writing mesh: %w", err)
	}
	return nil
}
