// Package enrich substitutes ${...} tokens in mock response bodies
// with values drawn from the inbound request.
package enrich

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mockrelay/mockrelay/pkg/resolver"
)

var tokenPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Error reports a token that could not be resolved from the request.
type Error struct {
	Token string
}

func (e *Error) Error() string {
	return fmt.Sprintf("unable to resolve response token ${%s}", e.Token)
}

// Enrich replaces every ${...} token in body. Supported tokens:
//
//	${path.<name>}    path parameter
//	${query.<name>}   first value of a query parameter
//	${header.<name>}  request header
//	${body}           raw request body
//	${uuid}           fresh random UUID
//	${timestamp}      current Unix time in milliseconds
//
// The first token that cannot be resolved aborts enrichment with an
// *Error; the caller must not use the partially substituted body.
func Enrich(body string, req *resolver.Request) (string, error) {
	var tokenErr *Error

	out := tokenPattern.ReplaceAllStringFunc(body, func(m string) string {
		if tokenErr != nil {
			return m
		}
		token := m[2 : len(m)-1]
		val, err := lookup(token, req)
		if err != nil {
			tokenErr = err
			return m
		}
		return val
	})
	if tokenErr != nil {
		return "", tokenErr
	}
	return out, nil
}

func lookup(token string, req *resolver.Request) (string, *Error) {
	switch {
	case token == "uuid":
		return uuid.NewString(), nil
	case token == "timestamp":
		return strconv.FormatInt(time.Now().UnixMilli(), 10), nil
	case token == "body":
		return req.Body, nil
	case strings.HasPrefix(token, "path."):
		name := strings.TrimPrefix(token, "path.")
		if v, ok := req.Params[name]; ok {
			return v, nil
		}
	case strings.HasPrefix(token, "query."):
		name := strings.TrimPrefix(token, "query.")
		if vs, ok := req.Query[name]; ok && len(vs) > 0 {
			return vs[0], nil
		}
	case strings.HasPrefix(token, "header."):
		name := strings.TrimPrefix(token, "header.")
		if v := req.Headers.Get(name); v != "" {
			return v, nil
		}
	}
	return "", &Error{Token: token}
}
