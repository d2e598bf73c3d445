// Command parsestatement sends one statement to the extraction service and
// prints the fields it found.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	"github.com/statement-parser/client/internal/config"
	"github.com/statement-parser/client/internal/extraction"
	"github.com/statement-parser/client/internal/logger"
	"github.com/statement-parser/client/internal/models"
	"github.com/statement-parser/client/internal/session"
	"go.uber.org/zap"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("parsestatement", flag.ContinueOnError)
	fs.SetOutput(stderr)
	baseURL := fs.String("url", envOr("EXTRACTION_URL", config.DefaultExtractionURL), "extraction service base URL")
	timeout := fs.Duration("timeout", 0, "request timeout (0 for none)")
	asJSON := fs.Bool("json", false, "print the final snapshot as JSON")
	verbose := fs.Bool("v", false, "log requests to stderr")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "usage: parsestatement [flags] statement.pdf\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}

	level := "warn"
	if *verbose {
		level = "debug"
	}
	if err := logger.Init(level); err != nil {
		fmt.Fprintf(stderr, "failed to initialize logger: %v\n", err)
		return 1
	}
	defer logger.Sync()

	client, err := extraction.NewClient(extraction.Config{BaseURL: *baseURL, Timeout: *timeout}, logger.Get())
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	file, err := models.NewSelectedFileFromPath(fs.Arg(0))
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	controller := session.NewController(client, logger.Get())
	controller.SelectFile(file)

	start := time.Now()
	snap, err := controller.Submit(ctx)
	if err != nil {
		logger.Warn("extraction failed", zap.String("file", file.Name), zap.Error(err))
	}

	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(snap); err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
	} else {
		printSnapshot(stdout, snap, time.Since(start))
	}

	if snap.Phase != models.PhaseSuccess {
		return 1
	}
	return 0
}

func printSnapshot(w io.Writer, snap models.Snapshot, elapsed time.Duration) {
	fmt.Fprintf(w, "Selected: %s\n\n", snap.FileName)
	if snap.Phase != models.PhaseSuccess {
		fmt.Fprintf(w, "Error: %s\n", snap.Error)
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, f := range snap.Fields {
		value := f.Value
		if !f.Extracted {
			value = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\n", f.Label, value)
	}
	tw.Flush()
	fmt.Fprintf(w, "\n(%s)\n", elapsed.Round(time.Millisecond))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
