package sandbox

import (
	"errors"
	"fmt"
)

type ErrorKind int

const (
	KindTransport ErrorKind = iota + 1
	KindStatus
	KindDecode
	KindNotConfigured
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindStatus:
		return "status"
	case KindDecode:
		return "decode"
	case KindNotConfigured:
		return "not_configured"
	default:
		return "unknown"
	}
}

// CallError is the only error type returned by Client methods. Its
// message is what ends up in the activity log.
type CallError struct {
	Kind     ErrorKind
	Endpoint string
	Status   int
	Body     string
	Err      error
}

func (e *CallError) Error() string {
	switch e.Kind {
	case KindNotConfigured:
		return "MCP Server URL not provided."
	case KindStatus:
		return fmt.Sprintf("MCP API Error: %d - %s", e.Status, e.Body)
	case KindDecode:
		return fmt.Sprintf("MCP API Error: invalid response from %s: %v", e.Endpoint, e.Err)
	default:
		return fmt.Sprintf("Failed to connect to MCP server: %v", e.Err)
	}
}

func (e *CallError) Unwrap() error { return e.Err }

// KindOf returns the kind of a CallError anywhere in err's chain, or 0.
func KindOf(err error) ErrorKind {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return 0
}
