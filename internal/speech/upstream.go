package speech

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxErrorBody caps how much of a failed reply ends up in the error text.
const maxErrorBody = 4 << 10

// StatusError is a non-200 reply from a speech backend.
type StatusError struct {
	Backend string
	Status  string
	Body    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned %s: %s", e.Backend, e.Status, e.Body)
}

// backend posts to one speech service. Only a 200 reply is handed back to the caller.
type backend struct {
	name       string
	httpClient *http.Client
	header     http.Header
}

func newBackend(name string, timeout time.Duration) backend {
	return backend{
		name:       name,
		httpClient: &http.Client{Timeout: timeout},
		header:     http.Header{},
	}
}

func (b backend) post(ctx context.Context, url, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, err
	}
	for k, v := range b.header {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", b.name, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{Backend: b.name, Status: resp.Status, Body: strings.TrimSpace(string(msg))}
	}
	return resp, nil
}
