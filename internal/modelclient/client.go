package modelclient

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"time"
)

const (
	retryBaseDelay   = 500 * time.Millisecond
	retryFactor      = 2.0
	retryJitterFrac  = 0.25
	retryCap         = 30 * time.Second
	retryMaxAttempts = 4
)

// Stream mirrors the teacher's driver.Stream shape: a channel of typed
// events plus a single-value error channel signaling stream end.
type Stream struct {
	Events <-chan Event
	Done   <-chan error
}

// Client owns a Transport and the request defaults a per-request
// Request may omit.
type Client struct {
	Transport        Transport
	DefaultModel     string
	DefaultEffort    string
	DefaultVerbosity string
	MaxQueue         int
	MaxToolArgBuffer int
	rng              *rand.Rand

	// testBaseDelay overrides retryBaseDelay when non-zero, letting
	// tests exercise the retry loop without waiting out real backoffs.
	testBaseDelay time.Duration
}

// NewClient builds a Client around transport with the given defaults.
func NewClient(transport Transport, defaultModel, defaultEffort, defaultVerbosity string) *Client {
	return &Client{
		Transport:        transport,
		DefaultModel:     defaultModel,
		DefaultEffort:    defaultEffort,
		DefaultVerbosity: defaultVerbosity,
		rng:              rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Send applies client defaults to req, then streams the turn, retrying
// on 429/5xx transport failures per spec.md §4.J as long as no event
// has been emitted yet in this turn.
func (c *Client) Send(ctx context.Context, req Request) *Stream {
	if req.Model == "" {
		req.Model = c.DefaultModel
	}
	if req.ReasoningEffort == "" {
		req.ReasoningEffort = c.DefaultEffort
	}
	if req.Verbosity == "" {
		req.Verbosity = c.DefaultVerbosity
	}
	req.Stream = true

	eventsCh := NewQueue(c.MaxQueue)
	doneCh := make(chan error, 1)

	go c.run(ctx, req, eventsCh, doneCh)

	return &Stream{Events: eventsCh, Done: doneCh}
}

func (c *Client) run(ctx context.Context, req Request, eventsCh chan Event, doneCh chan<- error) {
	defer close(eventsCh)
	defer close(doneCh)

	emittedAny := false
	var lastErr error

	for attempt := 0; attempt < retryMaxAttempts; attempt++ {
		body, transportErr, err := c.Transport.Send(ctx, req)
		if err != nil {
			doneCh <- err
			return
		}
		if transportErr != nil {
			lastErr = transportErr
			if transportErr.StatusCode == http.StatusUnauthorized || !retryableStatus(transportErr.StatusCode) {
				doneCh <- transportErr
				return
			}
			c.backoff(ctx, attempt, transportErr.RetryAfter)
			continue
		}

		wrapped := make(chan Event, cap(eventsCh))
		done := make(chan error, 1)
		go func() {
			done <- ConsumeStream(body, wrapped, c.MaxToolArgBuffer)
			body.Close()
		}()

		for ev := range wrapped {
			emittedAny = true
			eventsCh <- ev
		}
		streamErr := <-done

		if streamErr == nil {
			doneCh <- nil
			return
		}
		lastErr = streamErr
		if emittedAny {
			doneCh <- streamErr
			return
		}
		c.backoff(ctx, attempt, 0)
	}

	doneCh <- fmt.Errorf("exhausted retries: %w", lastErr)
}

func retryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || (status >= 500 && status < 600)
}

func (c *Client) backoff(ctx context.Context, attempt int, retryAfterSeconds float64) {
	base := retryBaseDelay
	if c.testBaseDelay > 0 {
		base = c.testBaseDelay
	}

	var delay time.Duration
	if retryAfterSeconds > 0 {
		delay = time.Duration(retryAfterSeconds * float64(time.Second))
	} else {
		base := float64(base) * pow(retryFactor, attempt)
		jitter := 1 + (c.rng.Float64()*2-1)*retryJitterFrac
		delay = time.Duration(base * jitter)
	}
	if delay > retryCap {
		delay = retryCap
	}
	select {
	case <-ctx.Done():
	case <-time.After(delay):
	}
}

func pow(base float64, exp int) float64 {
	result := 1.0
	for i := 0; i < exp; i++ {
		result *= base
	}
	return result
}
