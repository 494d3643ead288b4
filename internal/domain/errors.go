package domain

import (
	"context"
	"fmt"
	"net"

	"github.com/pkg/errors"
)

// ErrorKind classifies pipeline failures.
type ErrorKind string

const (
	KindNotFound          ErrorKind = "not_found"
	KindUpstream          ErrorKind = "upstream"
	KindUpstreamTimeout   ErrorKind = "upstream_timeout"
	KindMalformedResponse ErrorKind = "malformed_response"
	KindStaging           ErrorKind = "staging"
	KindUpload            ErrorKind = "upload"
	KindPersistence       ErrorKind = "persistence"
	KindCaption           ErrorKind = "caption"
)

// Category is what the presentation layer needs to pick a user message.
type Category string

const (
	CategoryNotFound  Category = "not_found"
	CategoryTemporary Category = "temporary"
	CategoryInternal  Category = "internal"
)

// Error is a typed pipeline failure. Op names the step that failed.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// E builds a typed error. A nil err still produces an error of the given kind.
func E(kind ErrorKind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the outermost typed error in the chain, or "" if none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// CategoryOf maps an error to the user-visible distinction between
// "not found", "try again later" and "internal error".
func CategoryOf(err error) Category {
	switch KindOf(err) {
	case KindNotFound:
		return CategoryNotFound
	case KindUpstream, KindUpstreamTimeout, KindStaging, KindUpload:
		return CategoryTemporary
	default:
		return CategoryInternal
	}
}

// NeedsOperator reports failures that point at a contract violation or a broken
// backend rather than something the user can retry away.
func NeedsOperator(err error) bool {
	switch KindOf(err) {
	case KindMalformedResponse, KindUpload, KindPersistence, KindCaption:
		return true
	}
	return false
}

// IsTimeout reports deadline and network timeouts anywhere in the chain.
func IsTimeout(err error) bool {
	var netErr net.Error
	return errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout())
}
