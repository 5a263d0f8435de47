// Package mock simulates the tracker and follower telemetry service.
package mock

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"
)

const (
	maxStep = 0.05
	boxSize = 0.2
)

// PID is a positional PID controller with a zero setpoint. The integral term
// and the output are clamped to the limits; the derivative acts on the input
// so setpoint changes do not kick.
type PID struct {
	Kp, Ki, Kd float64
	Min, Max   float64

	integral  float64
	lastInput float64
	started   bool
}

func newPID() *PID {
	return &PID{Kp: 1.0, Ki: 0.1, Kd: 0.05, Min: -5, Max: 5}
}

// Update feeds one measurement taken dt after the previous one.
func (p *PID) Update(input float64, dt time.Duration) float64 {
	secs := dt.Seconds()
	if secs <= 0 {
		secs = 1e-9
	}
	errv := -input
	dInput := 0.0
	if p.started {
		dInput = input - p.lastInput
	}
	p.integral = clamp(p.integral+p.Ki*errv*secs, p.Min, p.Max)
	out := p.Kp*errv + p.integral - p.Kd*dInput/secs
	p.lastInput, p.started = input, true
	return clamp(out, p.Min, p.Max)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Generator holds the simulated target and the follower controllers. It is
// safe for concurrent use.
type Generator struct {
	mu     sync.Mutex
	rnd    *rand.Rand
	now    func() time.Time
	cx, cy float64

	pidX, pidY, pidZ *PID
	vx, vy, vz       float64
	lastUpdate       time.Time
}

// NewGenerator returns a generator whose target starts at the origin. A nil
// rnd seeds one from the clock.
func NewGenerator(rnd *rand.Rand) *Generator {
	if rnd == nil {
		seed := uint64(time.Now().UnixNano())
		rnd = rand.New(rand.NewPCG(seed, seed>>1))
	}
	return &Generator{
		rnd:  rnd,
		now:  time.Now,
		pidX: newPID(),
		pidY: newPID(),
		pidZ: newPID(),
	}
}

// Center returns the target position in camera coordinates (y down).
func (g *Generator) Center() (x, y float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cx, g.cy
}

func (g *Generator) move() {
	g.cx = clamp(g.cx+(g.rnd.Float64()*2-1)*maxStep, -1, 1)
	g.cy = clamp(g.cy+(g.rnd.Float64()*2-1)*maxStep, -1, 1)
}

func (g *Generator) steer() {
	now := g.now()
	dt := 10 * time.Millisecond
	if !g.lastUpdate.IsZero() {
		dt = now.Sub(g.lastUpdate)
	}
	g.lastUpdate = now
	g.vx = g.pidX.Update(-g.cy, dt)
	g.vy = g.pidY.Update(g.cx, dt)
	g.vz = g.pidZ.Update(-g.cy, dt)
}

// Step advances the simulation once without producing a sample.
func (g *Generator) Step() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.move()
	g.steer()
}

// Tracker moves the target and reports it with y pointing up.
func (g *Generator) Tracker() map[string]any {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.move()
	return map[string]any{
		"bounding_box":    []any{g.cx - boxSize/2, -g.cy - boxSize/2, boxSize, boxSize},
		"center":          []any{g.cx, -g.cy},
		"timestamp":       g.now().UTC().Format(time.RFC3339Nano),
		"tracker_started": true,
	}
}

// Follower updates the controllers against the current target.
func (g *Generator) Follower() map[string]any {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.steer()
	return map[string]any{
		"vel_x":     g.vx,
		"vel_y":     g.vy,
		"vel_z":     g.vz,
		"timestamp": g.now().UTC().Format(time.RFC3339Nano),
		"status":    "active",
	}
}
