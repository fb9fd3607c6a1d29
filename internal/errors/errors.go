// Package errors implements the node's single typed-error vocabulary.
//
// Every fallible operation in the consensus core returns an *Error rather
// than a bare error, so callers can branch on Code without string matching.
package errors

import (
	"errors"
	"fmt"
	"reflect"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ERR enumerates the closed set of error kinds the consensus core can raise.
type ERR int32

const (
	ERR_UNKNOWN ERR = iota
	ERR_IO
	ERR_STORE
	ERR_PARSE
	ERR_NOT_FOUND
	ERR_ALREADY_FOUND
	ERR_INVALID_ID
	ERR_INVALID_LENGTH
	ERR_INVALID_SIZE
	ERR_INVALID_RANGE
	ERR_INVALID_STAGE
	ERR_INVALID_ADDRESS
	ERR_INVALID_NODE
	ERR_INVALID_TRANSACTION
	ERR_INVALID_MESSAGE
	ERR_INVALID_ACCOUNT
	ERR_INVALID_SIGNATURE
	ERR_INVALID_CHECKSUM
	ERR_OUT_OF_BOUND
	ERR_BALLOON_PARAMS
	ERR_ALREADY_MINED
	ERR_NOT_MINED
	ERR_TIMEOUT
	ERR_NOT_ALLOWED
)

var errName = map[ERR]string{
	ERR_UNKNOWN:             "UNKNOWN",
	ERR_IO:                  "IO",
	ERR_STORE:               "STORE",
	ERR_PARSE:               "PARSE",
	ERR_NOT_FOUND:           "NOT_FOUND",
	ERR_ALREADY_FOUND:       "ALREADY_FOUND",
	ERR_INVALID_ID:          "INVALID_ID",
	ERR_INVALID_LENGTH:      "INVALID_LENGTH",
	ERR_INVALID_SIZE:        "INVALID_SIZE",
	ERR_INVALID_RANGE:       "INVALID_RANGE",
	ERR_INVALID_STAGE:       "INVALID_STAGE",
	ERR_INVALID_ADDRESS:     "INVALID_ADDRESS",
	ERR_INVALID_NODE:        "INVALID_NODE",
	ERR_INVALID_TRANSACTION: "INVALID_TRANSACTION",
	ERR_INVALID_MESSAGE:     "INVALID_MESSAGE",
	ERR_INVALID_ACCOUNT:     "INVALID_ACCOUNT",
	ERR_INVALID_SIGNATURE:   "INVALID_SIGNATURE",
	ERR_INVALID_CHECKSUM:    "INVALID_CHECKSUM",
	ERR_OUT_OF_BOUND:        "OUT_OF_BOUND",
	ERR_BALLOON_PARAMS:      "BALLOON_PARAMS",
	ERR_ALREADY_MINED:       "ALREADY_MINED",
	ERR_NOT_MINED:           "NOT_MINED",
	ERR_TIMEOUT:             "TIMEOUT",
	ERR_NOT_ALLOWED:         "NOT_ALLOWED",
}

func (c ERR) String() string {
	if s, ok := errName[c]; ok {
		return s
	}
	return "UNKNOWN"
}

// ErrData carries structured detail alongside an Error, e.g. the offending key.
type ErrData interface {
	Error() string
}

// Error is the node's universal error type.
type Error struct {
	Code       ERR
	Message    string
	WrappedErr error
	Data       ErrData
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}

	dataMsg := ""
	if e.Data != nil {
		dataMsg = e.Data.Error()
	}

	if e.WrappedErr == nil {
		if dataMsg == "" {
			return fmt.Sprintf("%s: %s", e.Code, e.Message)
		}
		return fmt.Sprintf("%s: %s, data: %s", e.Code, e.Message, dataMsg)
	}

	if dataMsg == "" {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.WrappedErr)
	}

	return fmt.Sprintf("%s: %s: %v, data: %s", e.Code, e.Message, e.WrappedErr, dataMsg)
}

// Is reports whether error codes match.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}

	var ue *Error
	if errors.As(target, &ue) {
		if e.Code == ue.Code {
			return true
		}

		if e.WrappedErr == nil {
			return false
		}
	}

	if unwrapped := errors.Unwrap(e); unwrapped != nil {
		if ue, ok := unwrapped.(*Error); ok {
			return ue.Is(target)
		}
	}

	return false
}

func (e *Error) As(target interface{}) bool {
	if e == nil {
		return false
	}

	if targetErr, ok := target.(**Error); ok {
		*targetErr = e
		return true
	}

	if e.Data != nil {
		if data, ok := e.Data.(error); ok {
			return errors.As(data, target)
		}
	}

	if e.WrappedErr != nil {
		if reflect.ValueOf(e.WrappedErr).IsValid() && reflect.ValueOf(e.WrappedErr).Kind() == reflect.Ptr && reflect.ValueOf(e.WrappedErr).IsNil() {
			return false
		}
		return errors.As(e.WrappedErr, target)
	}

	return false
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.WrappedErr
}

// New builds an *Error, optionally wrapping a trailing error/*Error param
// and formatting message with the remaining params.
func New(code ERR, message string, params ...interface{}) *Error {
	var wErr *Error

	if len(params) > 0 {
		lastParam := params[len(params)-1]

		if err, ok := lastParam.(*Error); ok {
			wErr = err
			params = params[:len(params)-1]
		} else if err, ok := lastParam.(error); ok {
			wErr = &Error{Message: err.Error()}
			params = params[:len(params)-1]
		}
	}

	if len(params) > 0 {
		message = fmt.Sprintf(message, params...)
	}

	return &Error{
		Code:       code,
		Message:    message,
		WrappedErr: wErr,
	}
}

// codeToGRPC maps a node error code to the closest gRPC status code.
func codeToGRPC(code ERR) codes.Code {
	switch code {
	case ERR_NOT_FOUND:
		return codes.NotFound
	case ERR_ALREADY_FOUND, ERR_ALREADY_MINED:
		return codes.AlreadyExists
	case ERR_INVALID_ID, ERR_INVALID_LENGTH, ERR_INVALID_SIZE, ERR_INVALID_RANGE,
		ERR_INVALID_STAGE, ERR_INVALID_ADDRESS, ERR_INVALID_NODE,
		ERR_INVALID_TRANSACTION, ERR_INVALID_MESSAGE, ERR_INVALID_ACCOUNT,
		ERR_INVALID_SIGNATURE, ERR_INVALID_CHECKSUM, ERR_BALLOON_PARAMS:
		return codes.InvalidArgument
	case ERR_OUT_OF_BOUND:
		return codes.OutOfRange
	case ERR_TIMEOUT:
		return codes.DeadlineExceeded
	case ERR_NOT_ALLOWED:
		return codes.PermissionDenied
	default:
		return codes.Internal
	}
}

// WrapGRPC turns a node *Error into one carrying a gRPC status as its
// wrapped error, so it can cross the client/consensus RPC boundary intact.
func WrapGRPC(err *Error) *Error {
	if err == nil {
		return nil
	}

	st := status.New(codeToGRPC(err.Code), fmt.Sprintf("%s: %s", err.Code, err.Message))

	return &Error{
		Code:       err.Code,
		Message:    err.Message,
		WrappedErr: st.Err(),
	}
}

// UnwrapGRPC reconstructs a node *Error from a gRPC status error received
// from a peer.
func UnwrapGRPC(err error) *Error {
	if err == nil {
		return nil
	}

	st, ok := status.FromError(err)
	if !ok {
		return New(ERR_UNKNOWN, err.Error())
	}

	switch st.Code() {
	case codes.NotFound:
		return New(ERR_NOT_FOUND, st.Message())
	case codes.AlreadyExists:
		return New(ERR_ALREADY_FOUND, st.Message())
	case codes.InvalidArgument:
		return New(ERR_INVALID_MESSAGE, st.Message())
	case codes.OutOfRange:
		return New(ERR_OUT_OF_BOUND, st.Message())
	case codes.DeadlineExceeded:
		return New(ERR_TIMEOUT, st.Message())
	case codes.PermissionDenied:
		return New(ERR_NOT_ALLOWED, st.Message())
	default:
		return New(ERR_UNKNOWN, st.Message())
	}
}

// Is is a passthrough to errors.Is for convenience at call sites.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As is a passthrough to errors.As for convenience at call sites.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Predefined sentinels for the most commonly checked codes.
var (
	ErrNotFound      = New(ERR_NOT_FOUND, "not found")
	ErrAlreadyFound  = New(ERR_ALREADY_FOUND, "already found")
	ErrTimeout       = New(ERR_TIMEOUT, "timeout")
	ErrAlreadyMined  = New(ERR_ALREADY_MINED, "already mined")
	ErrNotMined      = New(ERR_NOT_MINED, "not mined")
	ErrOutOfBound    = New(ERR_OUT_OF_BOUND, "out of bound")
	ErrBalloonParams = New(ERR_BALLOON_PARAMS, "invalid balloon params")
)
