package device

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed call.
type ErrorKind int

const (
	// KindNetwork means no response was received.
	KindNetwork ErrorKind = iota + 1
	// KindServer means the device answered with a failure status or
	// {success:false}.
	KindServer
	// KindParse means the response body could not be decoded.
	KindParse
)

func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindServer:
		return "server"
	case KindParse:
		return "parse"
	default:
		return "unknown"
	}
}

var (
	ErrNetwork = errors.New("device unreachable")
	ErrServer  = errors.New("device reported failure")
	ErrParse   = errors.New("device response not parseable")
)

// RequestError is returned by every Client call that fails.
type RequestError struct {
	Kind     ErrorKind
	Method   string
	Endpoint string
	Status   int
	Message  string
	Err      error
}

func (e *RequestError) Error() string {
	switch e.Kind {
	case KindNetwork:
		return fmt.Sprintf("%s %s: network: %v", e.Method, e.Endpoint, e.Err)
	case KindServer:
		if e.Status > 0 && e.Message != "" {
			return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.Endpoint, e.Status, e.Message)
		}
		if e.Status > 0 {
			return fmt.Sprintf("%s %s: HTTP %d", e.Method, e.Endpoint, e.Status)
		}
		return fmt.Sprintf("%s %s: %s", e.Method, e.Endpoint, e.Message)
	case KindParse:
		return fmt.Sprintf("%s %s: decode: %v", e.Method, e.Endpoint, e.Err)
	default:
		return fmt.Sprintf("%s %s: %v", e.Method, e.Endpoint, e.Err)
	}
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinels so callers can use errors.Is(err, ErrServer).
func (e *RequestError) Is(target error) bool {
	switch target {
	case ErrNetwork:
		return e.Kind == KindNetwork
	case ErrServer:
		return e.Kind == KindServer
	case ErrParse:
		return e.Kind == KindParse
	}
	return false
}

// Reason is the short text shown to an operator.
func Reason(err error) string {
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		if err == nil {
			return ""
		}
		return err.Error()
	}
	switch reqErr.Kind {
	case KindNetwork:
		return "device unreachable"
	case KindServer:
		if reqErr.Message != "" {
			return reqErr.Message
		}
		return fmt.Sprintf("device returned HTTP %d", reqErr.Status)
	case KindParse:
		return "unexpected device response"
	}
	return reqErr.Error()
}
