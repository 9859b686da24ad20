package domain

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can branch without matching strings.
type Kind string

const (
	KindConfig             Kind = "config"
	KindExtraction         Kind = "extraction"
	KindUnavailable        Kind = "unavailable"
	KindTimeout            Kind = "timeout"
	KindUnexpectedResponse Kind = "unexpected_response"
	KindInvalidInput       Kind = "invalid_input"
	KindCanceled           Kind = "canceled"
)

// Error is the typed error carried across the pipeline.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Op == "" {
		return fmt.Sprintf("%s: %s", e.Kind, msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// E builds an Error. err may be nil.
func E(kind Kind, op, msg string, err error) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg, Err: err}
}

func ConfigError(op, msg string) error {
	return E(KindConfig, op, msg, nil)
}

func ExtractionError(op, msg string, err error) error {
	return E(KindExtraction, op, msg, err)
}

func UnavailableError(op string, err error) error {
	return E(KindUnavailable, op, "backend unreachable", err)
}

func TimeoutError(op string, err error) error {
	return E(KindTimeout, op, "backend timed out", err)
}

func UnexpectedResponseError(op, msg string) error {
	return E(KindUnexpectedResponse, op, msg, nil)
}

func InvalidInputError(op, msg string) error {
	return E(KindInvalidInput, op, msg, nil)
}

// KindOf returns the kind of the outermost *Error in err's chain, or "" when there is none.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// UserMessage renders err for an end user.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	switch KindOf(err) {
	case KindUnavailable:
		return "Cannot reach the AI model. Please make sure the model server is running."
	case KindTimeout:
		return "The AI model took too long to respond. Please try again; shorter questions work faster."
	case KindUnexpectedResponse:
		return "The AI returned an unexpected format. Please try again."
	case KindConfig:
		return "The service is misconfigured: " + err.Error()
	default:
		return err.Error()
	}
}
