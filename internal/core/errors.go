package core

// errors.go defines the error taxonomy shared by the orchestrator and both
// gateways. Every error leaving this package can be classified with KindOf,
// which the web layer uses to pick a status code and a user message.

import (
	"context"
	"errors"
	"fmt"

	"github.com/JonMunkholm/chflat/internal/identifier"
)

// Kind classifies a failure.
type Kind uint8

const (
	KindInternal Kind = iota
	KindInvalidInput
	KindUnsupportedTopology
	KindNoColumnsSelected
	KindConnection
	KindAuth
	KindNotFound
	KindPartialTransfer
	KindBusy
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindUnsupportedTopology:
		return "unsupported_topology"
	case KindNoColumnsSelected:
		return "no_columns_selected"
	case KindConnection:
		return "connection_error"
	case KindAuth:
		return "auth_error"
	case KindNotFound:
		return "not_found"
	case KindPartialTransfer:
		return "partial_transfer"
	case KindBusy:
		return "busy"
	default:
		return "internal"
	}
}

// ClientError reports whether the kind is caused by the request itself.
// Client errors are never retried and their messages are safe to return.
func (k Kind) ClientError() bool {
	switch k {
	case KindInvalidInput, KindUnsupportedTopology, KindNoColumnsSelected, KindNotFound:
		return true
	}
	return false
}

// Sentinel causes for the request-shape kinds.
var (
	ErrNoColumnsSelected   = errors.New("no columns selected")
	ErrUnsupportedTopology = errors.New("only one table or two joined tables are supported")
)

// Error is a classified failure. Op names the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// E wraps err with a kind. A nil err yields nil.
func E(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds a classified error from a format string.
func Errorf(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Invalid is shorthand for an InvalidInput error.
func Invalid(op, format string, args ...any) error {
	return Errorf(KindInvalidInput, op, format, args...)
}

// PartialTransferError reports a transfer that failed after Committed rows
// were durably written. Committed rows are not rolled back.
type PartialTransferError struct {
	Committed int64
	Err       error
}

func (e *PartialTransferError) Error() string {
	return fmt.Sprintf("transfer failed after %d rows committed: %v", e.Committed, e.Err)
}

func (e *PartialTransferError) Unwrap() error { return e.Err }

// KindOf returns the kind of the outermost classified error in err's chain.
// Identifier validation failures are InvalidInput even when unwrapped.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}

	var pe *PartialTransferError
	var ce *Error
	switch {
	case errors.As(err, &pe):
		return KindPartialTransfer
	case errors.As(err, &ce):
		return ce.Kind
	case errors.Is(err, identifier.ErrInvalid):
		return KindInvalidInput
	case errors.Is(err, ErrNoColumnsSelected):
		return KindNoColumnsSelected
	case errors.Is(err, ErrUnsupportedTopology):
		return KindUnsupportedTopology
	case errors.Is(err, ErrTooManyTransfers):
		return KindBusy
	case errors.Is(err, context.DeadlineExceeded):
		return KindConnection
	default:
		return KindInternal
	}
}

// CommittedRows returns the committed row count carried by a
// PartialTransferError, if any.
func CommittedRows(err error) (int64, bool) {
	var pe *PartialTransferError
	if errors.As(err, &pe) {
		return pe.Committed, true
	}
	return 0, false
}
