package dashboard

import (
	"errors"
	"fmt"
)

var (
	ErrEmptySelection    = errors.New("nothing selected")
	ErrTrashView         = errors.New("not available in the trash")
	ErrNotConfirmed      = errors.New("not confirmed")
	ErrUnknownDrawing    = errors.New("unknown drawing")
	ErrUnknownCollection = errors.New("unknown collection")
	ErrEmptyName         = errors.New("name must not be empty")
	ErrNoChange          = errors.New("nothing to change")
)

// ValidationError rejects a command before any state is touched.
type ValidationError struct {
	Op  string
	Err error
}

func (e *ValidationError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(op string, err error) error {
	return &ValidationError{Op: op, Err: err}
}

// RemoteError is a failed call to the remote store.
type RemoteError struct {
	Op  string
	ID  string
	Err error
}

func (e *RemoteError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.ID, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// ImportError is the failure of one imported file.
type ImportError struct {
	File string
	Err  error
}

func (e *ImportError) Error() string { return e.File + ": " + e.Err.Error() }

func (e *ImportError) Unwrap() error { return e.Err }

// ImportSummary aggregates a batch of imported files.
type ImportSummary struct {
	SuccessCount int
	FailedCount  int
	Errors       []*ImportError
}

func (s *ImportSummary) add(file string, err error) {
	if err == nil {
		s.SuccessCount++
		return
	}
	s.FailedCount++
	var ie *ImportError
	if !errors.As(err, &ie) {
		ie = &ImportError{File: file, Err: err}
	}
	s.Errors = append(s.Errors, ie)
}

func (s *ImportSummary) merge(o ImportSummary) {
	s.SuccessCount += o.SuccessCount
	s.FailedCount += o.FailedCount
	s.Errors = append(s.Errors, o.Errors...)
}
