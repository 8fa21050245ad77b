// Package errs classifies the errors relaydb's storage and query engine can
// return, so callers (ingest handlers, query handlers, schedulers) can apply
// the policy spec'd for each kind without parsing error strings.
package errs

import "errors"

// Kind classifies an error for the purpose of caller-visible policy
// decisions (HTTP status mapping, retry behavior, fatal-at-startup checks).
type Kind uint8

const (
	KindInternal Kind = iota
	KindBadRequest
	KindNotFound
	KindOutOfMemory
	KindCorrupted
	KindIoError
	KindFull
	KindAlreadyExists
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "bad_request"
	case KindNotFound:
		return "not_found"
	case KindOutOfMemory:
		return "out_of_memory"
	case KindCorrupted:
		return "corrupted"
	case KindIoError:
		return "io_error"
	case KindFull:
		return "full"
	case KindAlreadyExists:
		return "already_exists"
	case KindCancelled:
		return "cancelled"
	default:
		return "internal"
	}
}

// Error wraps an underlying cause with a Kind classification.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Kind.String() + ": " + e.Err.Error()
	}

	return e.Op + ": " + e.Kind.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// New creates an *Error with the given kind, operation label, and cause.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the Kind of err, or KindInternal if err does not carry one.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	return KindInternal
}

// Sentinel errors returned directly by leaf packages; wrap with New when a
// caller-facing operation label is useful.
var (
	ErrInvalidHeaderSize     = errors.New("invalid header size")
	ErrInvalidHeaderFlags    = errors.New("invalid header flags")
	ErrInvalidIndexEntrySize = errors.New("invalid index entry size")
	ErrInvalidPageSize       = errors.New("invalid page size")
	ErrPageFull              = errors.New("page is full")
	ErrPageEmpty             = errors.New("page is empty")
	ErrNonMonotonicTimestamp = errors.New("timestamp does not increase")
	ErrResolutionMismatch    = errors.New("timestamp resolution mismatch")
	ErrCorrupted             = errors.New("corrupted on-disk state")
	ErrDuplicateTimeSeries   = errors.New("duplicate time series in meta file")
	ErrNotFound              = errors.New("not found")
	ErrInvalidFileIndex      = errors.New("invalid file index")
	ErrInvalidHeaderIndex    = errors.New("invalid header index")
	ErrFileIndexFull         = errors.New("header array is full")
	ErrClosed                = errors.New("file is closed")
	ErrRemapFailed           = errors.New("mmap remap failed")
	ErrOutOfRange            = errors.New("timestamp out of tsdb range")
	ErrCancelled             = errors.New("operation cancelled")
	ErrUnknownMetric         = errors.New("unknown metric")
	ErrUnknownAggregator     = errors.New("unknown aggregator")
	ErrUnknownDownsampler    = errors.New("unknown downsampler")
	ErrReadOnly              = errors.New("file is read-only")
)
