// Package services holds the outbound clients used by the spot pipeline:
// geocoding, transcription, chapter summaries, translation, audio conversion
// and blob storage.
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

var (
	// ErrNotConfigured is returned when a client is missing its endpoint or credentials.
	ErrNotConfigured = errors.New("service not configured")
	// ErrLocationNotFound is returned when geocoding yields no result.
	ErrLocationNotFound = errors.New("location not found")
	// ErrTranscriptionFailed is returned when a transcription backend rejects the audio.
	ErrTranscriptionFailed = errors.New("transcription failed")
	// ErrUpstream wraps non-2xx answers from an outbound service.
	ErrUpstream = errors.New("upstream service error")
)

// Cache is the byte cache used for memoizing outbound lookups. Implementations
// must treat a nil receiver or unreachable backend as a miss.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
}

// NopCache never stores anything.
type NopCache struct{}

// Get always misses.
func (NopCache) Get(context.Context, string) ([]byte, bool) { return nil, false }

// Set discards the value.
func (NopCache) Set(context.Context, string, []byte, time.Duration) {}

func defaultClient(c *http.Client, timeout time.Duration) *http.Client {
	if c != nil {
		return c
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// upstreamError drains a failed response into an error matching ErrUpstream.
func upstreamError(service string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("%w: %s returned %d: %s", ErrUpstream, service, resp.StatusCode, string(body))
}
