package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/ohler55/ojg"
	"github.com/ohler55/ojg/oj"
)

// maxPayload bounds a single response body.
const maxPayload = 4 << 20

var ErrBadPayload = errors.New("payload is not a JSON object")

// FetchError describes one failed request. Code is the HTTP status, or 0 when
// no response was received.
type FetchError struct {
	Kind Kind
	Code int
	Err  error
}

func (e *FetchError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s: HTTP %d", e.Kind, e.Code)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Reason is a short, low-cardinality label for diagnostics counting.
func (e *FetchError) Reason() string {
	switch {
	case e.Code != 0:
		return fmt.Sprintf("%s: HTTP %d", e.Kind, e.Code)
	case errors.Is(e.Err, context.Canceled):
		return e.Kind.String() + ": canceled"
	case errors.Is(e.Err, context.DeadlineExceeded):
		return e.Kind.String() + ": timeout"
	case errors.Is(e.Err, ErrBadPayload):
		return e.Kind.String() + ": bad payload"
	}
	return e.Kind.String() + ": network error"
}

// Reasons lists the Reason of every FetchError inside err.
func Reasons(err error) []string {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []string
		for _, e := range joined.Unwrap() {
			out = append(out, Reasons(e)...)
		}
		return out
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return []string{fe.Reason()}
	}
	return []string{"cycle: " + err.Error()}
}

// Cycle is the combined result of one successful fetch cycle.
type Cycle struct {
	Tracker  Sample
	Follower Sample
}

type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a client for the service at baseURL. A nil hc uses
// http.DefaultClient.
func NewClient(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    hc,
	}
}

func (c *Client) BaseURL() string { return c.baseURL }

// Fetch issues one GET for kind and decodes the JSON object it returns.
func (c *Client) Fetch(ctx context.Context, kind Kind) (Sample, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+kind.Path(), nil)
	if err != nil {
		return nil, &FetchError{Kind: kind, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &FetchError{Kind: kind, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxPayload))
		return nil, &FetchError{Kind: kind, Code: resp.StatusCode, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayload))
	if err != nil {
		return nil, &FetchError{Kind: kind, Err: err}
	}
	v, err := oj.Parse(body, ojg.NumConvFloat64)
	if err != nil {
		return nil, &FetchError{Kind: kind, Err: fmt.Errorf("%w: %v", ErrBadPayload, err)}
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, &FetchError{Kind: kind, Err: ErrBadPayload}
	}
	return Sample(obj), nil
}

// FetchCycle requests tracker and follower data concurrently and waits for
// both. The cycle only succeeds when both requests do; otherwise the error
// joins every failed request.
func (c *Client) FetchCycle(ctx context.Context) (Cycle, error) {
	var (
		wg                  sync.WaitGroup
		cycle               Cycle
		trackerErr, follErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		cycle.Tracker, trackerErr = c.Fetch(ctx, KindTracker)
	}()
	go func() {
		defer wg.Done()
		cycle.Follower, follErr = c.Fetch(ctx, KindFollower)
	}()
	wg.Wait()

	if err := errors.Join(trackerErr, follErr); err != nil {
		return Cycle{}, err
	}
	return cycle, nil
}
