package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/s33g/lumin/internal/config"
)

const (
	fragmentSize     = 4096
	maxErrorBodySize = 64 * 1024
)

// ErrBodyClosed is returned by Body.Next after Close
var ErrBodyClosed = errors.New("response body closed")

// TransportError is the single terminal failure of a streaming request:
// connection failures, non-2xx statuses, read failures and cancellation.
type TransportError struct {
	StatusCode int // 0 when no response was received
	Message    string
	Err        error
}

func (e *TransportError) Error() string {
	return e.Message
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsAuth reports whether the upstream rejected the credential
func (e *TransportError) IsAuth() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// Transport issues streaming completion requests to a fixed endpoint
type Transport struct {
	httpClient *http.Client
	endpoint   string
	referer    string
	title      string
	logger     zerolog.Logger
}

// NewTransport creates a transport for the configured completions endpoint
func NewTransport(cfg config.OpenRouterConfig, logger zerolog.Logger) *Transport {
	return &Transport{
		// Zero means no timeout.
		httpClient: &http.Client{Timeout: cfg.Timeout()},
		endpoint:   strings.TrimRight(cfg.BaseURL, "/") + "/chat/completions",
		referer:    cfg.Referer,
		title:      cfg.Title,
		logger:     logger,
	}
}

// Endpoint returns the completions URL requests are sent to
func (t *Transport) Endpoint() string {
	return t.endpoint
}

// Open prepares a streaming request. Nothing is sent until the first call
// to Body.Next.
func (t *Transport) Open(ctx context.Context, credential string, req ChatRequest) *Body {
	ctx, cancel := context.WithCancel(ctx)
	return &Body{
		ctx:        ctx,
		cancel:     cancel,
		transport:  t,
		credential: credential,
		req:        req,
	}
}

// Body is the raw fragment sequence of one streaming response.
// Next is called by a single consumer; Close may be called from any goroutine
// and interrupts a blocked read or a request still waiting for headers.
type Body struct {
	ctx        context.Context
	cancel     context.CancelFunc // aborts a request still waiting for headers
	transport  *Transport
	credential string
	req        ChatRequest

	chunk   []byte
	err     error // terminal
	readErr error // deferred until buffered bytes were returned

	mu     sync.Mutex
	resp   *http.Response
	closed bool
}

// Next returns the next raw fragment, io.EOF at the end of the body, or a
// *TransportError. A terminal result is returned again on every later call.
func (b *Body) Next() (string, error) {
	if b.err != nil {
		return "", b.err
	}

	resp, closed := b.state()
	if closed {
		b.err = ErrBodyClosed
		return "", b.err
	}

	if resp == nil {
		var err error
		resp, err = b.transport.send(b.ctx, b.credential, b.req)
		if err != nil {
			if b.isClosed() {
				err = ErrBodyClosed
			}
			b.err = err
			return "", b.err
		}
		if !b.attach(resp) {
			b.err = ErrBodyClosed
			return "", b.err
		}
		b.chunk = make([]byte, fragmentSize)
	}

	if b.readErr != nil {
		b.err = b.readErr
		return "", b.err
	}

	for {
		n, err := resp.Body.Read(b.chunk)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				b.readErr = io.EOF
			case b.isClosed():
				b.readErr = ErrBodyClosed
			default:
				b.readErr = b.transport.readError(b.ctx, err)
			}
		}
		if n > 0 {
			return string(b.chunk[:n]), nil
		}
		if b.readErr != nil {
			b.err = b.readErr
			return "", b.err
		}
	}
}

// Close releases the connection. It is safe to call more than once.
func (b *Body) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	resp := b.resp
	b.mu.Unlock()

	b.cancel()

	if resp != nil {
		return resp.Body.Close()
	}
	return nil
}

func (b *Body) state() (*http.Response, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.resp, b.closed
}

func (b *Body) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// attach stores the response unless Close won the race, in which case the
// response is released immediately.
func (b *Body) attach(resp *http.Response) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		resp.Body.Close()
		return false
	}
	b.resp = resp
	return true
}

func (t *Transport) send(ctx context.Context, credential string, req ChatRequest) (*http.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, &TransportError{Message: fmt.Sprintf("failed to marshal request: %v", err), Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Message: fmt.Sprintf("failed to create request: %v", err), Err: err}
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Authorization", "Bearer "+credential)
	if t.referer != "" {
		httpReq.Header.Set("HTTP-Referer", t.referer)
	}
	if t.title != "" {
		httpReq.Header.Set("X-Title", t.title)
	}

	t.logger.Debug().
		Str("endpoint", t.endpoint).
		Str("model", req.Model).
		Int("messages", len(req.Messages)).
		Msg("Opening completion stream")

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, &TransportError{Message: fmt.Sprintf("request cancelled: %v", ctxErr), Err: ctxErr}
		}
		return nil, &TransportError{Message: fmt.Sprintf("request failed: %v", err), Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, statusError(resp)
	}

	return resp, nil
}

func (t *Transport) readError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return &TransportError{Message: fmt.Sprintf("request cancelled: %v", ctxErr), Err: ctxErr}
	}
	return &TransportError{Message: fmt.Sprintf("stream read failed: %v", err), Err: err}
}

// statusError builds the error for a non-2xx response, preferring the
// provider's own message when the body is an ErrorResponse.
func statusError(resp *http.Response) *TransportError {
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))

	var errResp ErrorResponse
	if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error.Message != "" {
		return &TransportError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("API error (%d): %s", resp.StatusCode, errResp.Error.Message),
		}
	}

	detail := strings.TrimSpace(string(respBody))
	if detail == "" {
		detail = http.StatusText(resp.StatusCode)
	}
	return &TransportError{
		StatusCode: resp.StatusCode,
		Message:    fmt.Sprintf("API error (%d): %s", resp.StatusCode, detail),
	}
}
