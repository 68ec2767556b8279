package httperror

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/stellar/go-stellar-sdk/support/log"
	"github.com/stellar/go-stellar-sdk/support/render/httpjson"
)

type HTTPError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"error"`
	// Extras carries field-level validation details to the client.
	Extras map[string]any `json:"extras,omitempty"`
	// Err wraps the original error so callers can errors.Is/As through it.
	Err error `json:"-"`
}

func (e *HTTPError) Error() string {
	return e.Message
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

func (e *HTTPError) Render(w http.ResponseWriter) {
	httpjson.RenderStatus(w, e.StatusCode, e, httpjson.JSON)
}

// ReportErrorFunc is a function type used to report unexpected errors.
type ReportErrorFunc func(ctx context.Context, err error, msg string)

var reportError ReportErrorFunc = func(ctx context.Context, err error, msg string) {
	if msg != "" {
		err = fmt.Errorf("%s: %w", msg, err)
	}
	log.Ctx(ctx).WithStack(err).Errorf("%+v", err)
}

// SetDefaultReportErrorFunc replaces the error reporter used by
// InternalError. serve wires the crash tracker in here at startup.
func SetDefaultReportErrorFunc(fn ReportErrorFunc) {
	reportError = fn
}

// NewHTTPError builds an HTTPError. When originalErr already is an HTTPError
// for the same status and no message or extras override it, it is reused
// as-is so its own message survives the round trip.
func NewHTTPError(statusCode int, msg string, originalErr error, extras map[string]any) *HTTPError {
	if msg == "" && originalErr != nil && len(extras) == 0 {
		var hErr *HTTPError
		if errors.As(originalErr, &hErr) && hErr.StatusCode == statusCode {
			return hErr
		}
	}

	return &HTTPError{
		StatusCode: statusCode,
		Message:    msg,
		Extras:     extras,
		Err:        originalErr,
	}
}

func withFallback(statusCode int, msg, fallback string, originalErr error, extras map[string]any) *HTTPError {
	if msg == "" {
		msg = fallback
	}
	return NewHTTPError(statusCode, msg, originalErr, extras)
}

func BadRequest(msg string, originalErr error, extras map[string]any) *HTTPError {
	return withFallback(http.StatusBadRequest, msg, "The request was invalid in some way.", originalErr, extras)
}

func Unauthorized(msg string, originalErr error, extras map[string]any) *HTTPError {
	return withFallback(http.StatusUnauthorized, msg, "Not authorized.", originalErr, extras)
}

func NotFound(msg string, originalErr error, extras map[string]any) *HTTPError {
	return withFallback(http.StatusNotFound, msg, "Resource not found.", originalErr, extras)
}

func Conflict(msg string, originalErr error, extras map[string]any) *HTTPError {
	return withFallback(http.StatusConflict, msg, "The resource already exists.", originalErr, extras)
}

func ServiceUnavailable(msg string, originalErr error, extras map[string]any) *HTTPError {
	return withFallback(http.StatusServiceUnavailable, msg, "Service unavailable.", originalErr, extras)
}

// InternalError additionally reports originalErr through the configured
// reporter, since a 500 is never the client's fault.
func InternalError(ctx context.Context, msg string, originalErr error, extras map[string]any) *HTTPError {
	if msg == "" {
		msg = "An internal error occurred while processing this request."
	}
	reportError(ctx, originalErr, msg)
	return NewHTTPError(http.StatusInternalServerError, msg, originalErr, extras)
}
