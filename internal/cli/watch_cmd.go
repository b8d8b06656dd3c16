// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// watch_cmd.go - Continuous invoice analysis command.
//
// Command: watch <dir>
// Short:   Watch a directory and analyze invoices as they arrive
//
// Examples:
//   costlens watch ./invoices     Analyze each new invoice JSON file
package cli

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/jeranaias/costlens/internal/analyzer"
	"github.com/jeranaias/costlens/internal/pipeline"
)

// watchDebounce is how long a file must be quiet before it is analyzed.
const watchDebounce = 500 * time.Millisecond

// HandleWatch handles the "watch" command.
func HandleWatch(args Args) error {
	if args.Dir == "" {
		return NewValidationErrorWithExample("directory", "", "an invoice directory is required", "costlens watch ./invoices")
	}
	if info, err := os.Stat(args.Dir); err != nil || !info.IsDir() {
		return NewNotFoundError("invoice directory", args.Dir)
	}

	app, err := openApp(args)
	if err != nil {
		return err
	}
	defer app.Close()

	a, err := app.Analyzer()
	if err != nil {
		return err
	}

	w, err := pipeline.NewWatcher(a, args.Dir, watchDebounce)
	if err != nil {
		return NewCommandError("watch", "start", "watcher setup failed", err)
	}
	defer w.Close()

	w.OnResult = func(path string, analysis *analyzer.Analysis, err error) {
		name := filepath.Base(path)
		switch {
		case err != nil:
			fmt.Printf("%s %s: %v\n", ErrorStyle.Render("[FAIL]"), name, err)
		case analysis.CacheHit:
			fmt.Printf("%s %s (cached, %s)\n", SuccessStyle.Render("[HIT] "), name, analysis.Entry.Fingerprint.Short())
		default:
			fmt.Printf("%s %s (%d tokens, $%.4f)\n", SuccessStyle.Render("[DONE]"), name,
				analysis.Entry.TokensUsed, analysis.Entry.CostUSD)
		}
	}

	if err := w.Watch(); err != nil {
		return NewCommandError("watch", "start", "watch failed", err)
	}

	if !args.Quiet {
		fmt.Println(TitleStyle.Render("Watching " + args.Dir))
		fmt.Println(DimStyle.Render("Drop invoice JSON files into the directory. Ctrl-C to stop."))
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	<-interrupt
	return nil
}
