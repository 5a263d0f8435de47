// Command mock-telemetry serves simulated tracker and follower telemetry for
// the dashboard to poll.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/keilerkonzept/follower-dashboard/internal/mock"
)

func main() {
	var (
		addr     = flag.String("addr", "127.0.0.1:5077", "listen address")
		failRate = flag.Float64("fail-rate", 0, "probability in [0,1] of answering a telemetry request with HTTP 500")
		step     = flag.Duration("step", time.Second, "background simulation step (0 disables)")
		verbose  = flag.Bool("verbose", false, "log every generated sample")
	)
	flag.Parse()
	if *failRate < 0 || *failRate > 1 {
		log.Fatal("-fail-rate must be in [0,1]")
	}

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting mock telemetry generator...")

	gen := mock.NewGenerator(nil)
	srv := mock.NewServer(gen, mock.Options{FailRate: *failRate, Verbose: *verbose})

	httpServer := &http.Server{
		Addr:         *addr,
		Handler:      srv,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *step > 0 {
		go func() {
			t := time.NewTicker(*step)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-t.C:
					gen.Step()
					if *verbose {
						x, y := gen.Center()
						log.Printf("center (%.3f, %.3f)", x, y)
					}
				}
			}
		}()
	}

	go func() {
		log.Printf("Serving telemetry on http://%s", *addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	log.Println("Server stopped")
}
