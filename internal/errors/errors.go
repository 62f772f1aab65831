package errors

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type Code codes.Code

const (
	CodeInvalidArgument  = Code(codes.InvalidArgument)
	CodeNotFound         = Code(codes.NotFound)
	CodeAlreadyExists    = Code(codes.AlreadyExists)
	CodePermissionDenied = Code(codes.PermissionDenied)
	CodeInternal         = Code(codes.Internal)
	CodeUnavailable      = Code(codes.Unavailable)
	CodeUnauthenticated  = Code(codes.Unauthenticated)
)

// Reasons name the failure kinds surfaced to the user.
const (
	ReasonAuthentication   = "AUTHENTICATION_FAILURE"
	ReasonNotFound         = "NOT_FOUND"
	ReasonValidation       = "VALIDATION_FAILURE"
	ReasonStorage          = "STORAGE_FAILURE"
	ReasonScoreSave        = "SCORE_SAVE_FAILURE"
	ReasonPermissionDenied = "PERMISSION_DENIED"
)

var code2http = map[Code]int{
	CodeInvalidArgument:  http.StatusBadRequest,
	CodeNotFound:         http.StatusNotFound,
	CodeAlreadyExists:    http.StatusConflict,
	CodePermissionDenied: http.StatusForbidden,
	CodeInternal:         http.StatusInternalServerError,
	CodeUnavailable:      http.StatusServiceUnavailable,
	CodeUnauthenticated:  http.StatusUnauthorized,
}

type Error struct {
	Code    Code   `json:"code"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	err     error
}

func New(code Code, opts ...Option) *Error {
	e := &Error{
		Code:    code,
		Message: codes.Code(code).String(),
	}

	for _, opt := range opts {
		opt.apply(e)
	}

	return e
}

func (e *Error) Error() string {
	s := fmt.Sprintf("code: %d, message: %s", e.Code, e.Message)
	if e.Reason != "" {
		s += fmt.Sprintf(", reason: %s", e.Reason)
	}
	if e.err != nil {
		s += fmt.Sprintf(", err: %s", e.err)
	}

	return s
}

func (e *Error) Unwrap() error {
	return e.err
}

func (e *Error) GRPCStatus() *status.Status {
	return status.New(codes.Code(e.Code), e.Message)
}

func (e *Error) HTTPStatusCode() int {
	if c, ok := code2http[e.Code]; ok {
		return c
	}

	return http.StatusInternalServerError
}

// Convert returns the first *Error in err's chain, or wraps err as an internal error.
func Convert(err error) *Error {
	var e *Error
	if !errors.As(err, &e) {
		return Internal(err)
	}

	return e
}

// Is reports whether err carries an *Error with the given code.
func Is(err error, code Code) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

func Internal(err error) *Error {
	return New(CodeInternal, WithCause(err))
}

// Unauthenticated reports bad credentials or a missing session.
func Unauthenticated(err error) *Error {
	return New(CodeUnauthenticated,
		WithReason(ReasonAuthentication),
		WithMessagef("authentication required"),
		WithCause(err),
	)
}

// NotFound reports a missing entity.
func NotFound(entity, id string) *Error {
	return New(CodeNotFound,
		WithReason(ReasonNotFound),
		WithMessagef("%s not found: id=%s", entity, id),
	)
}

// Validation reports an empty or malformed required field.
func Validation(field, format string, args ...any) *Error {
	return New(CodeInvalidArgument,
		WithReason(ReasonValidation),
		WithMessagef(format, args...),
		WithField(field),
	)
}

// Storage reports a network or service failure of the document store.
func Storage(op string, err error) *Error {
	return New(CodeUnavailable,
		WithReason(ReasonStorage),
		WithMessagef("storage: %s failed", op),
		WithCause(err),
	)
}

// ScoreSave reports that grading succeeded but persisting the result failed.
func ScoreSave(err error) *Error {
	return New(CodeUnavailable,
		WithReason(ReasonScoreSave),
		WithMessagef("quiz result was graded but could not be saved"),
		WithCause(err),
	)
}

func PermissionDenied(format string, args ...any) *Error {
	return New(CodePermissionDenied,
		WithReason(ReasonPermissionDenied),
		WithMessagef(format, args...),
	)
}

type Option interface {
	apply(*Error)
}

type optionFunc func(*Error)

func (f optionFunc) apply(e *Error) {
	f(e)
}

func WithCause(err error) Option {
	return optionFunc(func(e *Error) {
		e.err = err
	})
}

func WithMessagef(format string, args ...any) Option {
	return optionFunc(func(e *Error) {
		e.Message = fmt.Sprintf(format, args...)
	})
}

func WithReason(reason string) Option {
	return optionFunc(func(e *Error) {
		e.Reason = reason
	})
}

func WithField(field string) Option {
	return optionFunc(func(e *Error) {
		e.Field = field
	})
}
