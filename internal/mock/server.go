package mock

import (
	"log"
	"math/rand/v2"
	"net/http"
	"strconv"
	"sync"

	"github.com/ohler55/ojg/oj"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/keilerkonzept/follower-dashboard/internal/telemetry"
)

type Options struct {
	// FailRate is the probability in [0, 1] that a telemetry request is
	// answered with HTTP 500.
	FailRate float64
	// Verbose logs every generated sample.
	Verbose bool
	Rand    *rand.Rand
}

// Server serves the telemetry endpoints and their request metrics.
type Server struct {
	gen  *Generator
	opts Options
	mux  *http.ServeMux

	mu  sync.Mutex
	rnd *rand.Rand

	requests *prometheus.CounterVec
}

func NewServer(gen *Generator, opts Options) *Server {
	rnd := opts.Rand
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	reg := prometheus.NewRegistry()
	s := &Server{
		gen:  gen,
		opts: opts,
		mux:  http.NewServeMux(),
		rnd:  rnd,
		requests: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "mock_telemetry_requests_total",
				Help: "Telemetry requests served, by endpoint and status code",
			},
			[]string{"endpoint", "code"},
		),
	}
	s.mux.HandleFunc("GET "+telemetry.KindTracker.Path(), s.handle(telemetry.KindTracker, gen.Tracker))
	s.mux.HandleFunc("GET "+telemetry.KindFollower.Path(), s.handle(telemetry.KindFollower, gen.Follower))
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	s.mux.ServeHTTP(w, r)
}

func (s *Server) fail() bool {
	if s.opts.FailRate <= 0 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.Float64() < s.opts.FailRate
}

func (s *Server) handle(kind telemetry.Kind, sample func() map[string]any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.fail() {
			s.requests.WithLabelValues(kind.String(), strconv.Itoa(http.StatusInternalServerError)).Inc()
			http.Error(w, "injected failure", http.StatusInternalServerError)
			return
		}
		data := sample()
		body := oj.JSON(data)
		if s.opts.Verbose {
			log.Printf("generated %s data: %s", kind, body)
		}
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write([]byte(body)); err != nil {
			log.Printf("write %s response: %v", kind, err)
		}
		s.requests.WithLabelValues(kind.String(), strconv.Itoa(http.StatusOK)).Inc()
	}
}
