package core

import (
	"errors"
	"fmt"
)

// Failure kinds of an ingestion/report run. Match them with errors.Is.
var (
	// ErrNetwork: a page could not be fetched within the attempt cap.
	ErrNetwork = errors.New("network error")
	// ErrDecryption: the page payload is not a valid key+ciphertext pair.
	ErrDecryption = errors.New("decryption error")
	// ErrNormalization: a raw row cannot be mapped to a transaction.
	ErrNormalization = errors.New("normalization error")
	// ErrEmptyDataset: nothing survived cleaning.
	ErrEmptyDataset = errors.New("empty dataset")
	// ErrMissingSession: the session key or user does not resolve to stored data.
	ErrMissingSession = errors.New("missing session")
	// ErrSnapshotPending: the session exists but ingestion has not finished.
	ErrSnapshotPending = errors.New("snapshot pending")
)

// Error attaches a failure kind and the operation that failed to an
// underlying cause.
type Error struct {
	Kind error
	Op   string
	Err  error
}

// NewError wraps err with a kind. A nil err yields an error carrying only the kind.
func NewError(kind error, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%v: %v", e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	default:
		return fmt.Sprint(e.Kind)
	}
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Cause returns the underlying error, or nil when the error carries only a
// kind. errors.Unwrap returns nil for *Error since it unwraps to several
// errors; use Cause or errors.As instead.
func (e *Error) Cause() error {
	return e.Err
}

// CauseOf returns the cause of the first *Error in err's chain, or err itself
// when there is none.
func CauseOf(err error) error {
	var e *Error
	if errors.As(err, &e) && e.Err != nil {
		return e.Err
	}
	return err
}

// KindOf returns the failure kind of err, or nil when err carries none.
func KindOf(err error) error {
	for _, kind := range []error{ErrNetwork, ErrDecryption, ErrNormalization, ErrEmptyDataset, ErrMissingSession, ErrSnapshotPending} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
