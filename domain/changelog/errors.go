package changelog

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures on the poll path.
type ErrorKind uint8

const (
	// KindConnectivity covers failed calls against the log or the store.
	KindConnectivity ErrorKind = iota + 1
	// KindLookup means the store has no item for a resolved key.
	KindLookup
	// KindParse means a change envelope or stored item could not be decoded.
	KindParse
)

func (k ErrorKind) String() string {
	switch k {
	case KindConnectivity:
		return "connectivity"
	case KindLookup:
		return "lookup"
	case KindParse:
		return "parse"
	default:
		return "unknown"
	}
}

// ErrNotFound is wrapped by Lookup errors produced for missing items.
var ErrNotFound = errors.New("item not found")

// Error is the tagged error returned by backends and the enricher.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s error", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Connectivity tags err as a failed call against the log or the store.
func Connectivity(op string, err error) error {
	return &Error{Kind: KindConnectivity, Op: op, Err: err}
}

// Lookup tags err as a missing item.
func Lookup(op string, err error) error {
	return &Error{Kind: KindLookup, Op: op, Err: err}
}

// Parse tags err as undecodable input.
func Parse(op string, err error) error {
	return &Error{Kind: KindParse, Op: op, Err: err}
}

// KindOf returns the kind of the first tagged error in err's chain, or 0.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func IsConnectivity(err error) bool { return KindOf(err) == KindConnectivity }
func IsLookup(err error) bool       { return KindOf(err) == KindLookup }
func IsParse(err error) bool        { return KindOf(err) == KindParse }
