package status

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxBodyBytes bounds how much of a backend response is decoded.
const maxBodyBytes = 1 << 20

// Backend is one streaming server that can report stream liveness.
type Backend interface {
	// Name identifies the backend in logs, metrics and failure messages.
	Name() string
	// Kind is the serverType reported in snapshots.
	Kind() string
	// Timeout bounds a single Probe.
	Timeout() time.Duration
	// Probe queries the backend. An error means the next backend is tried.
	Probe(ctx context.Context) (Snapshot, error)
}

// getJSON fetches url and decodes a JSON body into v.
// Non-2xx responses are errors.
func getJSON(ctx context.Context, client *http.Client, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
