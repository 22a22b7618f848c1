package minrepo

import (
	"errors"
	"fmt"
)

// ErrNoMatch means the page was fetched fine but no parsing strategy
// recognized any machine rows in it. It is deliberately distinct from
// *FetchError so callers can tell structural drift apart from the site
// being unreachable.
var ErrNoMatch = errors.New("no parsing strategy matched the page")

type FetchErrorKind int

const (
	FetchTimeout FetchErrorKind = iota
	FetchHTTPClientError
	FetchHTTPServerError
	FetchConnectionRefused
	FetchBlocked
)

func (k FetchErrorKind) String() string {
	switch k {
	case FetchTimeout:
		return "timeout"
	case FetchHTTPClientError:
		return "http_4xx"
	case FetchHTTPServerError:
		return "http_5xx"
	case FetchConnectionRefused:
		return "connection_refused"
	case FetchBlocked:
		return "blocked_or_captcha"
	}
	return "unknown"
}

type FetchError struct {
	Kind       FetchErrorKind
	StatusCode int
	Url        string
	Err        error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s: %s", e.Url, e.Kind, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s (status %d)", e.Url, e.Kind, e.StatusCode)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsBlocked reports whether err is a fetch error caused by rate
// limiting or a captcha interstitial, the one failure mode that should
// rotate egress instead of plainly retrying.
func IsBlocked(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Kind == FetchBlocked
}
