package payment

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	ErrTransient       = errors.New("gateway temporarily unavailable")
	ErrInvalidResponse = errors.New("unexpected gateway response")
	ErrValidation      = errors.New("payment validation failed")
	ErrUnknownGateway  = errors.New("unknown gateway")
	ErrGatewayDisabled = errors.New("gateway disabled")
	ErrTokenNotFound   = errors.New("pending purchase not found")
)

// transportError wraps a failed round trip. A request that never produced a
// response is never a settlement, so every such failure is transient.
func transportError(gateway string, err error) error {
	reason := "request failed"
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		reason = "timeout"
	}
	return fmt.Errorf("%w: %s: %s: %v", ErrTransient, gateway, reason, err)
}

func invalidResponse(gateway, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidResponse, gateway, fmt.Sprintf(format, args...))
}

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// ErrorKind maps an error onto a short label for metrics.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTransient):
		return "transient"
	case errors.Is(err, ErrInvalidResponse):
		return "invalid_response"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrTokenNotFound):
		return "token_not_found"
	default:
		return "internal"
	}
}

func errUnknownStatus(raw string) error {
	return fmt.Errorf("unknown status %q", raw)
}
