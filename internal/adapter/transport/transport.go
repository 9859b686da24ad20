// Package transport builds HTTP transports for model backends and maps transport
// failures onto the domain error taxonomy.
package transport

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"docqa/internal/domain"
)

// NewTransport returns a transport whose dials give up after connectTimeout.
// It sets no overall deadline; read deadlines are owned by the caller.
func NewTransport(connectTimeout time.Duration) *http.Transport {
	dialer := &net.Dialer{
		Timeout:   connectTimeout,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   connectTimeout,
		MaxIdleConns:          16,
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
}

// Classify wraps a transport-level error from op with its domain kind. Errors that
// already carry a kind are returned unchanged.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if domain.KindOf(err) != "" {
		return err
	}

	var netErr net.Error
	switch {
	case errors.Is(err, context.Canceled):
		return domain.E(domain.KindCanceled, op, "request canceled", err)
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		return domain.TimeoutError(op, err)
	default:
		// refused, reset, unreachable and DNS failures all mean the backend cannot be reached
		return domain.UnavailableError(op, err)
	}
}
