// Package telemetry talks to the remote telemetry service: it fetches tracker
// and follower samples and resolves field paths inside them.
package telemetry

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ohler55/ojg/jp"
)

// Sample is one JSON object returned by the service. Its structure is not
// validated; plots pull numbers out of it through a FieldPath.
type Sample map[string]any

// Kind tags which endpoint a sample came from.
type Kind int

const (
	KindTracker Kind = iota
	KindFollower
)

func (k Kind) String() string {
	switch k {
	case KindTracker:
		return "tracker"
	case KindFollower:
		return "follower"
	}
	return "unknown"
}

// Path is the endpoint path relative to the service base URL.
func (k Kind) Path() string {
	switch k {
	case KindTracker:
		return "/telemetry/tracker_data"
	case KindFollower:
		return "/telemetry/follower_data"
	}
	return ""
}

// FieldPath is a compiled key into nested sample fields. Keys are dotted,
// numeric segments index arrays ("center.0", "vel_x"); a key starting with
// '$' is taken as a full JSONPath expression.
type FieldPath struct {
	key  string
	expr jp.Expr
}

func ParsePath(key string) (FieldPath, error) {
	if key == "" {
		return FieldPath{}, fmt.Errorf("empty field path")
	}
	if strings.HasPrefix(key, "$") {
		x, err := jp.ParseString(key)
		if err != nil {
			return FieldPath{}, fmt.Errorf("invalid field path %q: %w", key, err)
		}
		return FieldPath{key: key, expr: x}, nil
	}
	x := jp.R()
	for _, seg := range strings.Split(key, ".") {
		if seg == "" {
			return FieldPath{}, fmt.Errorf("invalid field path %q: empty segment", key)
		}
		if n, err := strconv.Atoi(seg); err == nil {
			x = x.N(n)
			continue
		}
		x = x.C(seg)
	}
	return FieldPath{key: key, expr: x}, nil
}

// MustPath is ParsePath for keys known at compile time.
func MustPath(key string) FieldPath {
	p, err := ParsePath(key)
	if err != nil {
		panic(err)
	}
	return p
}

func (p FieldPath) String() string { return p.key }

// Float resolves the path in s. Missing and non-numeric values report false.
func (p FieldPath) Float(s Sample) (float64, bool) {
	if s == nil || p.expr == nil {
		return 0, false
	}
	return toFloat(p.expr.First(map[string]any(s)))
}

// Lookup compiles key and resolves it in s.
func Lookup(s Sample, key string) (float64, bool) {
	p, err := ParsePath(key)
	if err != nil {
		return 0, false
	}
	return p.Float(s)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}
