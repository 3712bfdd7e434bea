// Package ferr enumerates the error kinds from spec §7 as sentinel-wrapped
// typed errors, grounded on the teacher's plain wrapped-error style
// (network.ErrMaxRetry) but extended to a closed set since the spec treats
// error *kind* as meaningful, not just the message.
package ferr

import "fmt"

// Kind is one of the error kinds enumerated in spec §7.
type Kind string

const (
	KindInvalidURL             Kind = "InvalidURL"
	KindInvalidDomain          Kind = "InvalidDomain"
	KindInvalidProxyFormat     Kind = "InvalidProxyFormat"
	KindUnsupportedProxyProto  Kind = "UnsupportedProxyProtocol"
	KindMissingProxyHost       Kind = "MissingProxyHost"
	KindInvalidProxyPort       Kind = "InvalidProxyPort"
	KindEmptyPool              Kind = "EmptyPool"
	KindHTTPStatus             Kind = "HTTPStatus"
	KindRateLimited            Kind = "RateLimited"
	KindTransport              Kind = "Transport"
	KindTimeout                Kind = "Timeout"
	KindProxyConnection        Kind = "ProxyConnection"
	KindProxyAuth              Kind = "ProxyAuth"
	KindProxyTimeout           Kind = "ProxyTimeout"
	KindAllProxiesFailed       Kind = "AllProxiesFailed"
	KindParseFailed            Kind = "ParseFailed"
	KindMissingChapterContent  Kind = "MissingChapterContent"
	KindIOFailure              Kind = "IOFailure"
)

// Error is a typed, wrapped error carrying a Kind plus optional structured
// fields (HTTP status code, proxy host/port, proxy-failure count).
type Error struct {
	Kind    Kind
	Message string
	Code    int    // HTTPStatus code, when Kind == KindHTTPStatus
	Host    string // proxy host, when Kind is one of the Proxy* kinds
	Port    int    // proxy port, when Kind is one of the Proxy* kinds
	Count   int    // failed-proxy count, when Kind == KindAllProxiesFailed
	Last    Kind   // last failure kind, when Kind == KindAllProxiesFailed
	Wrapped error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindHTTPStatus:
		return fmt.Sprintf("http status %d", e.Code)
	case KindProxyConnection, KindProxyAuth, KindProxyTimeout:
		return fmt.Sprintf("%s: %s:%d", e.Kind, e.Host, e.Port)
	case KindAllProxiesFailed:
		return fmt.Sprintf("all proxies failed (%d tried, last=%s)", e.Count, e.Last)
	default:
		if e.Message != "" {
			return fmt.Sprintf("%s: %s", e.Kind, e.Message)
		}
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Wrapped }

// Is lets errors.Is(err, ferr.New(kind)) match any *Error sharing the kind.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return other.Kind == e.Kind
}

// New constructs a bare *Error of the given kind, usable as an errors.Is
// sentinel target.
func New(kind Kind) *Error { return &Error{Kind: kind} }

// Wrap constructs an *Error of the given kind wrapping err with message.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Wrapped: err}
}

// HTTPStatus constructs a KindHTTPStatus error for a non-2xx, non-429 response.
func HTTPStatus(code int) *Error { return &Error{Kind: KindHTTPStatus, Code: code} }

// AllProxiesFailed constructs a KindAllProxiesFailed error.
func AllProxiesFailed(count int, last Kind) *Error {
	return &Error{Kind: KindAllProxiesFailed, Count: count, Last: last}
}

// ProxyError constructs one of the three Proxy* kinds for host:port.
func ProxyError(kind Kind, host string, port int) *Error {
	return &Error{Kind: kind, Host: host, Port: port}
}

// CategorizeTransportError maps a raw transport error message to one of the
// Proxy* kinds per spec §7's substring rules, falling back to KindTransport.
func CategorizeTransportError(host string, port int, err error) *Error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case containsAny(msg, "ECONNREFUSED", "ENOTFOUND", "connection refused", "no such host"):
		return ProxyError(KindProxyConnection, host, port)
	case containsAny(msg, "407", "authentication"):
		return ProxyError(KindProxyAuth, host, port)
	case containsAny(msg, "timeout", "aborted", "deadline exceeded"):
		return ProxyError(KindProxyTimeout, host, port)
	default:
		return Wrap(KindTransport, msg, err)
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if indexFold(s, sub) {
			return true
		}
	}
	return false
}

func indexFold(s, sub string) bool {
	ls, lsub := foldASCII(s), foldASCII(sub)
	if lsub == "" {
		return true
	}
	for i := 0; i+len(lsub) <= len(ls); i++ {
		if ls[i:i+len(lsub)] == lsub {
			return true
		}
	}
	return false
}

func foldASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
