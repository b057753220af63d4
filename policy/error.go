// Package policy defines the enforcement core's closed error surface and
// the tunable bounds that the production validator checks requests against.
package policy

import (
	"fmt"

	goerrors "github.com/go-errors/errors"
)

// Kind classifies why a signing request was refused.
type Kind uint8

const (
	// KindTransactionFormat means the transaction's shape or witness
	// layout is not a valid commitment/HTLC/sweep/closing transaction for
	// this channel. The caller can only recover by supplying a corrected
	// transaction.
	KindTransactionFormat Kind = iota

	// KindPolicy means the transaction parses fine but violates a named
	// policy rule (balance, fee, CLTV, progression, unknown destination).
	KindPolicy

	// KindInternal means an unexpected condition occurred, such as a
	// persistence write failure. Fatal for the current request; the
	// channel remains usable for subsequent requests.
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindTransactionFormat:
		return "transaction format"
	case KindPolicy:
		return "policy"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error is the single error type returned across the validator surface.
// Every Policy-kind error carries a stable Tag so that external audits can
// correlate rejections with rule text without parsing free-form messages.
type Error struct {
	Kind Kind
	Tag  string
	Op   string
	Msg  string

	// cause is populated for KindInternal errors so the stack trace of
	// the underlying failure (e.g. a persistence write) is not lost
	// crossing the channel-lock boundary into logs.
	cause error
}

func (e *Error) Error() string {
	if e.Tag != "" {
		return fmt.Sprintf("%s: %s: %s [%s]", e.Kind, e.Op, e.Msg, e.Tag)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Op, e.Msg)
}

// Unwrap exposes the wrapped cause, if any, for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.cause
}

// TransactionFormatf builds a KindTransactionFormat error.
func TransactionFormatf(op, format string, args ...interface{}) *Error {
	return &Error{
		Kind: KindTransactionFormat,
		Op:   op,
		Msg:  fmt.Sprintf(format, args...),
	}
}

// Policyf builds a KindPolicy error carrying the given stable rule tag.
// Per §7 and §8 (P8), every policy rejection must carry a non-empty tag.
func Policyf(op, tag, format string, args ...interface{}) *Error {
	if tag == "" {
		panic("policy error without a rule tag")
	}
	return &Error{
		Kind: KindPolicy,
		Tag:  tag,
		Op:   op,
		Msg:  fmt.Sprintf(format, args...),
	}
}

// Internalf builds a KindInternal error, capturing a stack trace via
// go-errors so the failure can be diagnosed after the channel lock has been
// released.
func Internalf(op string, cause error, format string, args ...interface{}) *Error {
	var wrapped error
	if cause != nil {
		wrapped = goerrors.Wrap(cause, 1)
	}
	msg := fmt.Sprintf(format, args...)
	log.Errorf("%s: %s: %v", op, msg, cause)
	return &Error{
		Kind:  KindInternal,
		Op:    op,
		Msg:   msg,
		cause: wrapped,
	}
}

// IsKind reports whether err is a *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	pe, ok := err.(*Error)
	return ok && pe.Kind == kind
}

// Tag extracts the rule tag from err, or "" if err is not a tagged Policy
// error.
func Tag(err error) string {
	if pe, ok := err.(*Error); ok {
		return pe.Tag
	}
	return ""
}
