package engine

import (
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/mockrelay/mockrelay/pkg/enrich"
	"github.com/mockrelay/mockrelay/pkg/httputil"
	"github.com/mockrelay/mockrelay/pkg/logging"
	"github.com/mockrelay/mockrelay/pkg/mock"
	"github.com/mockrelay/mockrelay/pkg/resolver"
)

// Fallback latency bounds, used when an endpoint enables latency
// without sensible values.
const (
	defaultLatencyMinMillis = 1000
	defaultLatencyMaxMillis = 5000
)

// post finishes a resolved response: token enrichment, ordered
// headers, optional randomized latency, then the write.
type post struct {
	log   *slog.Logger
	sleep func(time.Duration)
}

func newPost(log *slog.Logger) *post {
	if log == nil {
		log = logging.Nop()
	}
	return &post{log: log, sleep: time.Sleep}
}

// pruneSuspended drops variants and rules marked for suspension from
// the endpoint's in-memory lists. Callers must hold the endpoint's
// guard lock: the lists are shared across requests and the removal is
// permanent until the registry is rebuilt.
func pruneSuspended(ep *mock.Endpoint) {
	if ep.Sequence != nil {
		kept := ep.Sequence.Variants[:0]
		for _, v := range ep.Sequence.Variants {
			if !v.Suspend {
				kept = append(kept, v)
			}
		}
		ep.Sequence.Variants = kept
	}
	if ep.Rule != nil {
		kept := ep.Rule.Rules[:0]
		for _, r := range ep.Rule.Rules {
			if !r.Suspend {
				kept = append(kept, r)
			}
		}
		ep.Rule.Rules = kept

		defaults := ep.Rule.Defaults[:0]
		for _, v := range ep.Rule.Defaults {
			if !v.Suspend {
				defaults = append(defaults, v)
			}
		}
		ep.Rule.Defaults = defaults
	}
}

// defaultResolved picks the endpoint's answer when its resolver had no
// outcome: the first remaining variant or rule, a bare 404 for HTTP
// proxies, and nothing for the rest.
func defaultResolved(ep *mock.Endpoint) *mock.Resolved {
	switch ep.Type {
	case mock.TypeSequence:
		if ep.Sequence != nil && len(ep.Sequence.Variants) > 0 {
			v := ep.Sequence.Variants[0]
			return &mock.Resolved{StatusCode: v.StatusCode, ContentType: v.ContentType, Body: v.Body, Headers: v.Headers}
		}
	case mock.TypeRule:
		// Unmatched rules never answer; only the endpoint's own default
		// variants do.
		if ep.Rule != nil && len(ep.Rule.Defaults) > 0 {
			v := ep.Rule.Defaults[0]
			return &mock.Resolved{StatusCode: v.StatusCode, ContentType: v.ContentType, Body: v.Body, Headers: v.Headers}
		}
	case mock.TypeProxyHTTP:
		return &mock.Resolved{StatusCode: http.StatusNotFound}
	}
	return nil
}

// write finalizes the response. It returns the status actually sent,
// which differs from the resolved status when enrichment fails.
func (p *post) write(w http.ResponseWriter, req *resolver.Request, ep *mock.Endpoint, res *mock.Resolved) int {
	body, err := enrich.Enrich(res.Body, req)
	if err != nil {
		// Enrichment failures name the offending token; latency is skipped.
		p.log.Warn("response enrichment failed", "endpoint", ep.ID, "error", err)
		httputil.WriteInternalError(w, "enrichment_failed", err.Error())
		return http.StatusInternalServerError
	}

	if ep.Latency.Enabled {
		p.sleep(latencyDuration(ep.Latency))
	}

	for _, h := range res.Headers {
		w.Header().Set(h.Name, h.Value)
	}
	if res.ContentType != "" {
		w.Header().Set("Content-Type", res.ContentType)
	}
	w.WriteHeader(res.StatusCode)
	if body != "" {
		_, _ = w.Write([]byte(body))
	}
	return res.StatusCode
}

// latencyDuration draws a uniform duration from the configured window,
// substituting the fallback bounds for non-positive values.
func latencyDuration(lc mock.LatencyConfig) time.Duration {
	min, max := lc.MinMillis, lc.MaxMillis
	if min <= 0 {
		min = defaultLatencyMinMillis
	}
	if max <= 0 || max < min {
		max = defaultLatencyMaxMillis
	}
	if max < min {
		max = min
	}
	millis := min
	if max > min {
		millis = min + rand.Int64N(max-min+1)
	}
	return time.Duration(millis) * time.Millisecond
}
