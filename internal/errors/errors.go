package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// Kind categorizes focus-system failures so callers can branch on the
// class of fault without string matching.
type Kind string

const (
	KindInvalidConfig Kind = "invalid_config"
	KindInvalidImage  Kind = "invalid_image"
	KindUnknownMetric Kind = "unknown_metric"
	KindMotion        Kind = "motion"
	KindMotionTimeout Kind = "motion_timeout"
	KindAcquisition   Kind = "acquisition"
	KindCanceled      Kind = "canceled"
	KindConflict      Kind = "conflict"
	KindNotFound      Kind = "not_found"
	KindInternal      Kind = "internal"
)

// Error is a structured focus-system error. Trial and Position identify
// where in a focus run the failure happened; Trial is 1-based and zero
// when the failure is not tied to a specific trial.
type Error struct {
	Kind       Kind      `json:"kind"`
	Message    string    `json:"message"`
	Trial      int       `json:"trial,omitempty"`
	Position   []float64 `json:"position,omitempty"`
	StatusCode int       `json:"status_code"`
	Cause      error     `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Trial > 0 {
		fmt.Fprintf(&b, " (trial %d", e.Trial)
		if len(e.Position) > 0 {
			b.WriteString(" at ")
			b.WriteString(FormatPosition(e.Position))
		}
		b.WriteString(")")
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, " (caused by: %v)", e.Cause)
	}
	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// AtTrial tags the error with the trial number and target position it
// occurred at, returning the same error for chaining.
func (e *Error) AtTrial(trial int, position []float64) *Error {
	e.Trial = trial
	e.Position = append([]float64(nil), position...)
	return e
}

// NewInvalidConfig reports a configuration that fails validation.
func NewInvalidConfig(message string, cause error) *Error {
	return &Error{
		Kind:       KindInvalidConfig,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Cause:      cause,
	}
}

// NewInvalidImage reports a frame that cannot be processed.
func NewInvalidImage(message string, cause error) *Error {
	return &Error{
		Kind:       KindInvalidImage,
		Message:    message,
		StatusCode: http.StatusUnprocessableEntity,
		Cause:      cause,
	}
}

// NewUnknownMetric reports a sharpness metric name with no registered scorer.
func NewUnknownMetric(name string) *Error {
	return &Error{
		Kind:       KindUnknownMetric,
		Message:    fmt.Sprintf("unknown sharpness metric %q", name),
		StatusCode: http.StatusBadRequest,
	}
}

// NewMotion reports an actuator move or settle failure.
func NewMotion(message string, cause error) *Error {
	return &Error{
		Kind:       KindMotion,
		Message:    message,
		StatusCode: http.StatusBadGateway,
		Cause:      cause,
	}
}

// NewMotionTimeout reports an actuator that did not settle in time.
func NewMotionTimeout(message string, cause error) *Error {
	return &Error{
		Kind:       KindMotionTimeout,
		Message:    message,
		StatusCode: http.StatusGatewayTimeout,
		Cause:      cause,
	}
}

// NewAcquisition reports a frame capture failure.
func NewAcquisition(message string, cause error) *Error {
	return &Error{
		Kind:       KindAcquisition,
		Message:    message,
		StatusCode: http.StatusBadGateway,
		Cause:      cause,
	}
}

// NewCanceled reports a run stopped by context cancellation or deadline.
func NewCanceled(message string, cause error) *Error {
	return &Error{
		Kind:       KindCanceled,
		Message:    message,
		StatusCode: http.StatusRequestTimeout,
		Cause:      cause,
	}
}

// NewConflict reports an operation rejected because of rig state, such as
// starting a run while one is already in progress.
func NewConflict(message string) *Error {
	return &Error{
		Kind:       KindConflict,
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

// NewNotFound reports a missing resource.
func NewNotFound(message string) *Error {
	return &Error{
		Kind:       KindNotFound,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

// NewInternal reports an unexpected failure.
func NewInternal(message string, cause error) *Error {
	return &Error{
		Kind:       KindInternal,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// IsKind checks if the error (or any error it wraps) has the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// AsError extracts the structured error from err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	ok := stderrors.As(err, &e)
	return e, ok
}

// GetStatusCode extracts the HTTP status code from an error
func GetStatusCode(err error) int {
	var e *Error
	if stderrors.As(err, &e) {
		return e.StatusCode
	}
	return http.StatusInternalServerError
}

// FormatPosition renders a position vector like "[1.5, 3]" for messages
// and log fields.
func FormatPosition(pos []float64) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range pos {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	}
	b.WriteByte(']')
	return b.String()
}
