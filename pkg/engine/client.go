package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mockrelay/mockrelay/pkg/logging"
	"github.com/mockrelay/mockrelay/pkg/mock"
)

// Call describes one outbound HTTP call made on behalf of an inbound
// request. URL is the path-and-query portion, resolved against the
// client's base.
type Call struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    string
}

// Outcome is the result of an outbound call. A 404 status stands in
// for "no upstream answer" whether the upstream said so or could not
// be reached at all.
type Outcome struct {
	Status      int
	ContentType string
	Headers     http.Header
	Body        string
}

// Client performs upstream passthrough calls. When the engine is not
// running the client answers 404 without touching the network, and in
// fallback mode a 404 from the upstream is retried against the local
// listener so locally mocked routes still win.
type Client struct {
	base  string
	state *State
	http  *http.Client
	log   *slog.Logger
}

// NewClient returns a Client targeting the given base URL.
func NewClient(base string, state *State, httpClient *http.Client, log *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Client{base: base, state: state, http: httpClient, log: log}
}

// Base returns the configured upstream base URL.
func (c *Client) Base() string { return c.base }

// Do performs the call. singleAttempt disables the local-fallback
// retry on a 404 answer. A malformed call yields a *ValidationError;
// an unreachable upstream yields a plain 404 outcome.
func (c *Client) Do(ctx context.Context, call *Call, singleAttempt bool) (*Outcome, error) {
	if err := c.validate(call); err != nil {
		return nil, err
	}

	running, port := c.state.Snapshot()
	if !running {
		return &Outcome{Status: http.StatusNotFound}, nil
	}

	out := c.attempt(ctx, call, collapseSlashes(c.base+call.URL))
	if singleAttempt || out.Status != http.StatusNotFound {
		return out, nil
	}

	// The upstream had nothing; replay against the local listener so a
	// mock bound to the same route can answer.
	local := fmt.Sprintf("http://127.0.0.1:%d%s", port, call.URL)
	return c.attempt(ctx, call, local), nil
}

func (c *Client) validate(call *Call) error {
	if call == nil {
		return &ValidationError{Reason: "missing call descriptor"}
	}
	if !mock.MethodSupported(call.Method) {
		return &ValidationError{Reason: fmt.Sprintf("unsupported method %q", call.Method)}
	}
	if call.URL == "" || !strings.HasPrefix(call.URL, "/") {
		return &ValidationError{Reason: fmt.Sprintf("url %q must start with /", call.URL)}
	}
	return nil
}

func (c *Client) attempt(ctx context.Context, call *Call, url string) *Outcome {
	req, err := http.NewRequestWithContext(ctx, call.Method, url, strings.NewReader(call.Body))
	if err != nil {
		c.log.Warn("building upstream request", "url", url, "error", err)
		return &Outcome{Status: http.StatusNotFound}
	}
	for name, val := range call.Headers {
		if strings.EqualFold(name, "Content-Length") || strings.EqualFold(name, "Host") {
			continue
		}
		req.Header.Set(name, val)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug("upstream unreachable", "url", url, "error", err)
		return &Outcome{Status: http.StatusNotFound}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.log.Warn("reading upstream response", "url", url, "error", err)
		return &Outcome{Status: http.StatusNotFound}
	}

	return &Outcome{
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Headers:     resp.Header,
		Body:        string(body),
	}
}

// collapseSlashes squeezes runs of slashes in a URL down to one while
// leaving the "://" after the scheme intact.
func collapseSlashes(url string) string {
	var b strings.Builder
	b.Grow(len(url))
	for i := 0; i < len(url); i++ {
		ch := url[i]
		if ch == '/' && i+1 < len(url) && url[i+1] == '/' {
			// Keep the double slash of "://".
			if i > 0 && url[i-1] == ':' {
				b.WriteString("//")
				i++
				continue
			}
			for i+1 < len(url) && url[i+1] == '/' {
				i++
			}
		}
		b.WriteByte(ch)
	}
	return b.String()
}
