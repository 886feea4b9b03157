package resolver

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/mockrelay/mockrelay/pkg/logging"
	"github.com/mockrelay/mockrelay/pkg/mock"
)

// Proxy forwards the request to the endpoint's configured upstream and
// relays whatever comes back. An unreachable upstream resolves to
// (nil, nil) so the caller can fall back to the endpoint default.
type Proxy struct {
	client *http.Client
	log    *slog.Logger
}

// NewProxy returns a Proxy resolver using the given client. A nil
// client gets a plain default.
func NewProxy(client *http.Client, log *slog.Logger) *Proxy {
	if client == nil {
		client = &http.Client{}
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Proxy{client: client, log: log}
}

// Resolve forwards the request to the proxy target.
func (p *Proxy) Resolve(ctx context.Context, req *Request, ep *mock.Endpoint) (*mock.Resolved, error) {
	if ep.Proxy == nil || ep.Proxy.Target == "" {
		return nil, nil
	}

	if ep.Proxy.TimeoutMillis > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(ep.Proxy.TimeoutMillis)*time.Millisecond)
		defer cancel()
	}

	url := strings.TrimRight(ep.Proxy.Target, "/") + req.Path
	out, err := http.NewRequestWithContext(ctx, req.Method, url, strings.NewReader(req.Body))
	if err != nil {
		p.log.Warn("building proxy request", "endpoint", ep.ID, "url", url, "error", err)
		return nil, nil
	}
	for name, vals := range req.Headers {
		if name == "Content-Length" || name == "Host" {
			continue
		}
		for _, v := range vals {
			out.Header.Add(name, v)
		}
	}

	resp, err := p.client.Do(out)
	if err != nil {
		p.log.Warn("proxy upstream unreachable", "endpoint", ep.ID, "url", url, "error", err)
		return nil, nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		p.log.Warn("reading proxy response", "endpoint", ep.ID, "url", url, "error", err)
		return nil, nil
	}

	return &mock.Resolved{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        string(body),
		Headers:     relayHeaders(resp.Header),
	}, nil
}

func relayHeaders(h http.Header) []mock.Header {
	names := make([]string, 0, len(h))
	for name := range h {
		if name == "Content-Length" || name == "Content-Type" {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]mock.Header, 0, len(names))
	for _, name := range names {
		out = append(out, mock.Header{Name: name, Value: h.Get(name)})
	}
	return out
}
