// Command follower-dashboard polls a tracker/follower telemetry service and
// plots both streams in the terminal. Without a terminal on stdout (or with
// -headless) it writes every applied cycle to stdout as JSON lines instead.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	tui "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/term"
	"github.com/google/uuid"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/keilerkonzept/follower-dashboard/internal/config"
	"github.com/keilerkonzept/follower-dashboard/internal/dashboard"
	"github.com/keilerkonzept/follower-dashboard/internal/history"
	"github.com/keilerkonzept/follower-dashboard/internal/page"
	"github.com/keilerkonzept/follower-dashboard/internal/telemetry"
)

func main() {
	cfg, err := config.Parse(os.Args[0], os.Args[1:], os.Stderr)
	if err != nil {
		log.Fatal(err)
	}

	session := uuid.NewString()
	logger := &lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
	}
	defer logger.Close()
	log.SetOutput(logger)
	log.SetPrefix("[" + session[:8] + "] ")
	log.Printf("session %s polling %s every %s", session, cfg.BaseURL(), cfg.PollInterval)

	client := telemetry.NewClient(cfg.BaseURL(), &http.Client{Timeout: cfg.RequestTimeout})
	p := page.New(client, page.Options{
		Retention:         cfg.Retention,
		DiagnosticsWindow: cfg.DiagnosticsWindow,
		DiagnosticsTopK:   cfg.DiagnosticsTopK,
	})

	if cfg.Headless || !term.IsTerminal(os.Stdout.Fd()) {
		runHeadless(p, cfg)
		return
	}

	m := dashboard.New(p, dashboard.Options{
		PollInterval:  cfg.PollInterval,
		SeriesWindow:  cfg.SeriesWindow,
		RawTransition: cfg.RawTransition,
		ExportDir:     cfg.ExportDir,
		SessionID:     session,
		BaseURL:       cfg.BaseURL(),
	})
	var opts []tui.ProgramOption
	if cfg.AltScreen {
		opts = append(opts, tui.WithAltScreen())
	}
	_, err = tui.NewProgram(m, opts...).Run()
	p.Close()
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("session %s done: %+v", session, p.Counters())
}

// runHeadless polls until interrupted and streams the raw entries of every
// applied cycle to stdout.
func runHeadless(p *page.Page, cfg config.Config) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		mu      sync.Mutex
		written uint64
		last    page.Status
	)
	store := p.Store()
	page.Poll(ctx, p, cfg.PollInterval, func(r page.Result) {
		mu.Lock()
		defer mu.Unlock()
		s := page.StatusSuccess
		if r.Err != nil {
			s = page.StatusError
		}
		if s != last {
			log.Printf("headless: status %s -> %s", last, s)
			last = s
		}
		entries := store.Since(written)
		if len(entries) == 0 {
			return
		}
		if err := history.WriteJSONL(os.Stdout, entries); err != nil {
			log.Printf("headless: write cycle %d: %v", r.Seq, err)
		}
		written = entries[len(entries)-1].Seq
	})
	log.Printf("headless run done: %+v", p.Counters())
}
