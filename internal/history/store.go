// Package history accumulates telemetry in memory: tracker history, follower
// history and the interleaved raw log.
package history

import (
	"bufio"
	"io"
	"sync"
	"time"

	"github.com/keilerkonzept/follower-dashboard/internal/telemetry"
	"github.com/ohler55/ojg/oj"
)

// Unbounded keeps every cycle for the life of the store.
const Unbounded = 0

// RawEntry is one request's payload tagged with the endpoint it came from.
type RawEntry struct {
	Seq     uint64
	Kind    telemetry.Kind
	Payload telemetry.Sample
	At      time.Time
}

// Store holds the three append-only sequences. Invariants, observable at
// any time: len(tracker) == len(follower) and len(raw) == 2*len(tracker).
type Store struct {
	mu        sync.RWMutex
	retention int
	tracker   []telemetry.Sample
	follower  []telemetry.Sample
	raw       []RawEntry
}

// New returns a store keeping the newest retention cycles, or everything
// when retention is Unbounded.
func New(retention int) *Store {
	if retention < 0 {
		retention = Unbounded
	}
	return &Store{retention: retention}
}

func (s *Store) Retention() int { return s.retention }

// Append records one successful cycle: the tracker sample, the follower
// sample and both raw entries, tracker first.
func (s *Store) Append(seq uint64, c telemetry.Cycle, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracker = append(s.tracker, c.Tracker)
	s.follower = append(s.follower, c.Follower)
	s.raw = append(s.raw,
		RawEntry{Seq: seq, Kind: telemetry.KindTracker, Payload: c.Tracker, At: at},
		RawEntry{Seq: seq, Kind: telemetry.KindFollower, Payload: c.Follower, At: at},
	)
	if s.retention == Unbounded || len(s.tracker) <= s.retention {
		return
	}
	drop := len(s.tracker) - s.retention
	s.tracker = trim(s.tracker, drop)
	s.follower = trim(s.follower, drop)
	s.raw = trim(s.raw, 2*drop)
}

// trim drops the first n elements. The dropped slots are zeroed so their
// payloads can be collected before the next reallocation.
func trim[T any](in []T, n int) []T {
	clear(in[:n])
	return in[n:]
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tracker)
}

func (s *Store) Empty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tracker) == 0 && len(s.follower) == 0
}

func (s *Store) Tracker() []telemetry.Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]telemetry.Sample(nil), s.tracker...)
}

func (s *Store) Follower() []telemetry.Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]telemetry.Sample(nil), s.follower...)
}

func (s *Store) Raw() []RawEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]RawEntry(nil), s.raw...)
}

// Latest returns the newest tracker and follower samples.
func (s *Store) Latest() (tracker, follower telemetry.Sample, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(s.tracker)
	if n == 0 {
		return nil, nil, false
	}
	return s.tracker[n-1], s.follower[n-1], true
}

// Since returns the raw entries of cycles newer than afterSeq.
func (s *Store) Since(afterSeq uint64) []RawEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []RawEntry
	for _, e := range s.raw {
		if e.Seq > afterSeq {
			out = append(out, e)
		}
	}
	return out
}

// WriteJSONL writes entries as one JSON object per line.
func WriteJSONL(w io.Writer, entries []RawEntry) error {
	bw := bufio.NewWriter(w)
	opts := oj.DefaultOptions
	opts.Sort = true
	for _, e := range entries {
		line := map[string]any{
			"seq":     int64(e.Seq),
			"kind":    e.Kind.String(),
			"at":      e.At.UTC().Format(time.RFC3339Nano),
			"payload": map[string]any(e.Payload),
		}
		if _, err := bw.WriteString(oj.JSON(line, &opts)); err != nil {
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ExportJSONL writes the whole raw log as JSON lines.
func (s *Store) ExportJSONL(w io.Writer) error {
	return WriteJSONL(w, s.Raw())
}
