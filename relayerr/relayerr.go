// Package relayerr defines the error-kind taxonomy spec.md §7 surfaces
// to clients, shared by verifier, store, and rpcserver so the JSON-RPC
// layer never has to special-case a concrete error type from each
// component individually.
package relayerr

import "fmt"

// Kind classifies why an operation failed.
type Kind int

const (
	KindInvalidRLP Kind = iota
	KindInvalidSignature
	KindInvalidTransaction
	KindInvalidBlockNumber
	KindInvalidTimestamp
	KindGasTooLow
	KindGasTooHigh
	KindGasPriceTooLow
	KindSenderQuotaExceeded
	KindNotCertified
	KindInsufficientBalance
	KindInvalidNonce
	KindNotFound
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindInvalidRLP:
		return "InvalidRlp"
	case KindInvalidSignature:
		return "InvalidSignature"
	case KindInvalidTransaction:
		return "InvalidTransaction"
	case KindInvalidBlockNumber:
		return "InvalidBlockNumber"
	case KindInvalidTimestamp:
		return "InvalidTimestamp"
	case KindGasTooLow:
		return "GasTooLow"
	case KindGasTooHigh:
		return "GasTooHigh"
	case KindGasPriceTooLow:
		return "GasPriceTooLow"
	case KindSenderQuotaExceeded:
		return "SenderQuotaExceeded"
	case KindNotCertified:
		return "NotCertified"
	case KindInsufficientBalance:
		return "InsufficientBalance"
	case KindInvalidNonce:
		return "InvalidNonce"
	case KindNotFound:
		return "NotFound"
	default:
		return "Internal"
	}
}

// IsInternal reports whether this kind reflects an I/O or plumbing
// failure, as opposed to a rejection of the client's request.
func (k Kind) IsInternal() bool { return k == KindInternal }

// Error is the concrete error type every component returns for a
// client-meaningful failure.
type Error struct {
	Kind  Kind
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds a bare Error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf builds a bare Error with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap carries an underlying error (typically I/O) forward as the
// given kind, preserving it for errors.Is/As via Unwrap. This mirrors
// the original Rust implementation's error_chain foreign_links idiom
// (_examples/original_source/server/src/database.rs) for surfacing
// io::Error as a domain error without losing the cause.
func Wrap(kind Kind, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: err.Error(), Cause: err}
}

// KindOf extracts the Kind of err if it (or something it wraps) is a
// *Error, defaulting to KindInternal otherwise.
func KindOf(err error) Kind {
	var e *Error
	if asError(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
